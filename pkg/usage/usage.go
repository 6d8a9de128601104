// Package usage reconstructs per-application foreground time from a stream
// of lifecycle events and ranks applications by that time.
package usage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLabelNotFound is returned by a LabelResolver that has no display
	// name for an application.
	ErrLabelNotFound = errors.New("label not found")

	// ErrSourceUnavailable wraps any failure to read events or bucket
	// aggregates from an EventSource.
	ErrSourceUnavailable = errors.New("usage source unavailable")
)

// Kind is the type of a lifecycle event.
type Kind int

const (
	ForegroundEnter Kind = iota + 1
	ForegroundExit
)

func (k Kind) String() string {
	switch k {
	case ForegroundEnter:
		return "enter"
	case ForegroundExit:
		return "exit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "enter":
		return ForegroundEnter, nil
	case "exit":
		return ForegroundExit, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is a single foreground transition recorded by the event source.
// Timestamp is in milliseconds since the Unix epoch.
type Event struct {
	AppID     string
	Timestamp int64
	Kind      Kind
}

// Window is the reporting range [Start, End] in milliseconds.
type Window struct {
	Start int64
	End   int64
}

// Duration returns the window length in milliseconds.
func (w Window) Duration() int64 {
	return w.End - w.Start
}

// Valid reports whether Start <= End.
func (w Window) Valid() bool {
	return w.Start <= w.End
}

// Row is one ranked line of the usage report.
type Row struct {
	AppID             string `json:"app_id"`
	Label             string `json:"label"`
	TotalForegroundMs int64  `json:"total_foreground_ms"`
}

// LabelResolver maps an application identifier to a display name.
type LabelResolver interface {
	ResolveLabel(appID string) (string, error)
}

// LabelFunc adapts a function to LabelResolver.
type LabelFunc func(appID string) (string, error)

func (f LabelFunc) ResolveLabel(appID string) (string, error) {
	return f(appID)
}

// EventSource supplies raw events and pre-aggregated bucket statistics.
type EventSource interface {
	// QueryEvents returns the events inside w ordered by timestamp.
	QueryEvents(ctx context.Context, w Window) ([]Event, error)

	// QueryBucketAggregate returns foreground milliseconds per application
	// inside the bucket, as computed by the source.
	QueryBucketAggregate(ctx context.Context, bucket Window) (map[string]int64, error)
}
