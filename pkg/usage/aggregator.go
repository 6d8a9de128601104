package usage

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects how an Aggregator obtains per-application totals.
type Mode int

const (
	// ModeExact reconstructs sessions from individual lifecycle events.
	ModeExact Mode = iota
	// ModeBucketed sums the source's own per-bucket statistics.
	ModeBucketed
)

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeBucketed:
		return "bucketed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "exact", "bucketed" and its alias "hourly".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ModeExact, nil
	case "bucketed", "hourly":
		return ModeBucketed, nil
	}
	return 0, fmt.Errorf("invalid aggregation mode %q (valid: exact, bucketed)", s)
}

// Strategy produces ranked rows for a window from an event source.
type Strategy interface {
	Rows(ctx context.Context, src EventSource, w Window, labels LabelResolver) ([]Row, error)
}

// ExactStrategy fetches every event in the window and reconstructs sessions.
type ExactStrategy struct{}

func (ExactStrategy) Rows(ctx context.Context, src EventSource, w Window, labels LabelResolver) ([]Row, error) {
	events, err := src.QueryEvents(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %w", ErrSourceUnavailable, err)
	}
	return Aggregate(events, w, labels), nil
}

// BucketStrategy queries fixed-size buckets independently and sums them.
type BucketStrategy struct {
	Size int64
}

func (s BucketStrategy) Rows(ctx context.Context, src EventSource, w Window, labels LabelResolver) ([]Row, error) {
	size := s.Size
	if size <= 0 {
		size = DefaultBucketSize
	}

	buckets := Buckets(w, size)
	aggregates := make([]map[string]int64, 0, len(buckets))
	for _, bucket := range buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agg, err := src.QueryBucketAggregate(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("%w: query bucket [%d, %d): %w", ErrSourceUnavailable, bucket.Start, bucket.End, err)
		}
		aggregates = append(aggregates, agg)
	}

	return AggregateBuckets(aggregates, labels), nil
}

// Aggregator binds a source and a label resolver to a selectable strategy.
type Aggregator struct {
	Source     EventSource
	Labels     LabelResolver
	Mode       Mode
	BucketSize int64
}

// Strategy returns the strategy for the configured mode.
func (a *Aggregator) Strategy() Strategy {
	if a.Mode == ModeBucketed {
		return BucketStrategy{Size: a.BucketSize}
	}
	return ExactStrategy{}
}

// Aggregate produces the ranked report for w. Only source failures are
// returned as errors; pairing problems and label misses never are.
func (a *Aggregator) Aggregate(ctx context.Context, w Window) ([]Row, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid window: start %d after end %d", w.Start, w.End)
	}
	return a.Strategy().Rows(ctx, a.Source, w, a.Labels)
}
