package usage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enter(app string, ts int64) Event { return Event{AppID: app, Timestamp: ts, Kind: ForegroundEnter} }
func exit(app string, ts int64) Event  { return Event{AppID: app, Timestamp: ts, Kind: ForegroundExit} }

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		window Window
		want   []Row
	}{
		{
			name:   "closed session inside window",
			events: []Event{enter("com.a", 0), exit("com.a", 60000)},
			window: Window{Start: 0, End: 120000},
			want:   []Row{{AppID: "com.a", Label: "com.a", TotalForegroundMs: 60000}},
		},
		{
			name:   "session open at window end",
			events: []Event{enter("com.a", 0)},
			window: Window{Start: 0, End: 100000},
			want:   []Row{{AppID: "com.a", Label: "com.a", TotalForegroundMs: 100000}},
		},
		{
			name:   "exit without enter",
			events: []Event{exit("com.b", 50)},
			window: Window{Start: 0, End: 1000},
			want:   []Row{},
		},
		{
			name: "ranked by total descending",
			events: []Event{
				enter("com.a", 0), exit("com.a", 30000),
				enter("com.b", 30000), exit("com.b", 120000),
			},
			window: Window{Start: 0, End: 200000},
			want: []Row{
				{AppID: "com.b", Label: "com.b", TotalForegroundMs: 90000},
				{AppID: "com.a", Label: "com.a", TotalForegroundMs: 30000},
			},
		},
		{
			name:   "duplicate enter restarts the session",
			events: []Event{enter("com.a", 0), enter("com.a", 100), exit("com.a", 250)},
			window: Window{Start: 0, End: 1000},
			want:   []Row{{AppID: "com.a", Label: "com.a", TotalForegroundMs: 150}},
		},
		{
			name:   "zero length session is dropped",
			events: []Event{enter("com.a", 500), exit("com.a", 500)},
			window: Window{Start: 0, End: 1000},
			want:   []Row{},
		},
		{
			name:   "duplicate exit is ignored",
			events: []Event{enter("com.a", 0), exit("com.a", 10), exit("com.a", 40)},
			window: Window{Start: 0, End: 1000},
			want:   []Row{{AppID: "com.a", Label: "com.a", TotalForegroundMs: 10}},
		},
		{
			name: "equal totals keep first appearance order",
			events: []Event{
				exit("com.z", 1),
				enter("com.y", 2), exit("com.y", 12),
				enter("com.z", 20), exit("com.z", 30),
			},
			window: Window{Start: 0, End: 100},
			want: []Row{
				{AppID: "com.z", Label: "com.z", TotalForegroundMs: 10},
				{AppID: "com.y", Label: "com.y", TotalForegroundMs: 10},
			},
		},
		{
			name: "overlap across applications is kept",
			events: []Event{
				enter("com.a", 0), enter("com.b", 10),
				exit("com.a", 50), exit("com.b", 60),
			},
			window: Window{Start: 0, End: 100},
			want: []Row{
				{AppID: "com.a", Label: "com.a", TotalForegroundMs: 50},
				{AppID: "com.b", Label: "com.b", TotalForegroundMs: 50},
			},
		},
		{
			name:   "unsorted input is processed in timestamp order",
			events: []Event{exit("com.a", 40), enter("com.a", 10)},
			window: Window{Start: 0, End: 100},
			want:   []Row{{AppID: "com.a", Label: "com.a", TotalForegroundMs: 30}},
		},
		{
			name:   "empty stream",
			events: nil,
			window: Window{Start: 0, End: 100},
			want:   []Row{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.events, tt.window, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateAlternatingPairsSum(t *testing.T) {
	var events []Event
	var want int64
	for i := int64(0); i < 50; i++ {
		start := i * 1000
		length := 10 + i*7
		events = append(events, enter("com.a", start), exit("com.a", start+length))
		want += length
	}

	rows := Aggregate(events, Window{Start: 0, End: 100000}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, want, rows[0].TotalForegroundMs)
}

func TestAggregateLabelFallback(t *testing.T) {
	labels := LabelFunc(func(appID string) (string, error) {
		switch appID {
		case "com.a":
			return "Alpha", nil
		case "com.empty":
			return "", nil
		}
		return "", ErrLabelNotFound
	})

	events := []Event{
		enter("com.a", 0), exit("com.a", 300),
		enter("com.c", 300), exit("com.c", 500),
		enter("com.empty", 500), exit("com.empty", 600),
	}

	rows := Aggregate(events, Window{Start: 0, End: 1000}, labels)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha", rows[0].Label)
	assert.Equal(t, "com.c", rows[1].Label)
	assert.Equal(t, "com.empty", rows[2].Label)
}

func TestAggregateIsIdempotentAndDoesNotMutateInput(t *testing.T) {
	events := []Event{exit("com.b", 90), enter("com.a", 10), enter("com.b", 20), exit("com.a", 70)}
	snapshot := append([]Event(nil), events...)
	w := Window{Start: 0, End: 200}

	first := Aggregate(events, w, nil)
	second := Aggregate(events, w, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, events)
}

func TestAggregateNeverReturnsNonPositiveTotals(t *testing.T) {
	events := []Event{
		exit("com.a", 0), enter("com.b", 5), enter("com.b", 5), exit("com.b", 5),
		enter("com.c", 10), exit("com.c", 11), exit("com.c", 12),
	}
	for _, row := range Aggregate(events, Window{Start: 0, End: 20}, nil) {
		assert.Positive(t, row.TotalForegroundMs, "row %s", row.AppID)
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{ForegroundEnter, ForegroundExit} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("paused")
	assert.Error(t, err)
}

func TestLabelFuncPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := LabelFunc(func(string) (string, error) { return "", boom }).ResolveLabel("x")
	assert.ErrorIs(t, err, boom)
}

func ExampleAggregate() {
	events := []Event{
		{AppID: "org.mozilla.firefox", Timestamp: 0, Kind: ForegroundEnter},
		{AppID: "org.mozilla.firefox", Timestamp: 60000, Kind: ForegroundExit},
		{AppID: "com.slack", Timestamp: 60000, Kind: ForegroundEnter},
	}

	rows := Aggregate(events, Window{Start: 0, End: 180000}, nil)
	for _, row := range rows {
		fmt.Printf("%s %dms\n", row.AppID, row.TotalForegroundMs)
	}
	// Output:
	// com.slack 120000ms
	// org.mozilla.firefox 60000ms
}
