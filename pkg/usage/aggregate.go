package usage

import (
	"cmp"
	"slices"
)

// totals accumulates milliseconds per application and remembers the order
// in which applications were first seen.
type totals struct {
	ms    map[string]int64
	order []string
}

func newTotals() *totals {
	return &totals{ms: make(map[string]int64)}
}

func (t *totals) seen(appID string) {
	if _, ok := t.ms[appID]; !ok {
		t.ms[appID] = 0
		t.order = append(t.order, appID)
	}
}

func (t *totals) add(appID string, delta int64) {
	t.seen(appID)
	if delta > 0 {
		t.ms[appID] += delta
	}
}

// Aggregate reconstructs foreground time per application from events inside
// w and returns the ranked rows.
//
// A second enter for an already open application restarts its session, an
// exit without an open session is dropped, and sessions still open at w.End
// are closed there. Applications with no accumulated time are omitted. A
// label that cannot be resolved falls back to the application id.
func Aggregate(events []Event, w Window, labels LabelResolver) []Row {
	return rank(reconstruct(events, w), labels)
}

func reconstruct(events []Event, w Window) *totals {
	if !slices.IsSortedFunc(events, byTimestamp) {
		events = slices.Clone(events)
		slices.SortStableFunc(events, byTimestamp)
	}

	t := newTotals()
	open := make(map[string]int64)

	for _, ev := range events {
		t.seen(ev.AppID)

		switch ev.Kind {
		case ForegroundEnter:
			open[ev.AppID] = ev.Timestamp
		case ForegroundExit:
			enteredAt, ok := open[ev.AppID]
			if !ok {
				continue
			}
			t.add(ev.AppID, ev.Timestamp-enteredAt)
			delete(open, ev.AppID)
		}
	}

	// Closing order does not matter: each app only touches its own total.
	for appID, enteredAt := range open {
		t.add(appID, w.End-enteredAt)
	}

	return t
}

func byTimestamp(a, b Event) int {
	return cmp.Compare(a.Timestamp, b.Timestamp)
}

func rank(t *totals, labels LabelResolver) []Row {
	rows := make([]Row, 0, len(t.order))
	for _, appID := range t.order {
		ms := t.ms[appID]
		if ms <= 0 {
			continue
		}
		rows = append(rows, Row{
			AppID:             appID,
			Label:             resolveLabel(labels, appID),
			TotalForegroundMs: ms,
		})
	}

	// Stable sort keeps first-appearance order among equal totals.
	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Compare(b.TotalForegroundMs, a.TotalForegroundMs)
	})

	return rows
}

func resolveLabel(labels LabelResolver, appID string) string {
	if labels == nil {
		return appID
	}
	label, err := labels.ResolveLabel(appID)
	if err != nil || label == "" {
		return appID
	}
	return label
}
