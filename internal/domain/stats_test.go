package domain

import (
	"testing"
	"time"
)

func TestSeriesZeroShapes(t *testing.T) {
	tests := []struct {
		name    string
		series  TimeSeries
		buckets int
		first   string
		last    string
	}{
		{"hourly", NewHourlySeries(), 24, "0", "23"},
		{"daily february", NewDailySeries(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)), 28, "1", "28"},
		{"daily leap february", NewDailySeries(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)), 29, "1", "29"},
		{"daily july", NewDailySeries(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)), 31, "1", "31"},
		{"monthly", NewMonthlySeries(), 12, "1", "12"},
		{"weekday", NewWeekdaySeries(), 7, "Mon", "Sun"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := tc.series
			if len(ts.Labels) != tc.buckets || len(ts.Coffee) != tc.buckets || len(ts.Mate) != tc.buckets {
				t.Fatalf("expected %d buckets, got labels=%d coffee=%d mate=%d",
					tc.buckets, len(ts.Labels), len(ts.Coffee), len(ts.Mate))
			}
			if ts.Labels[0] != tc.first || ts.Labels[tc.buckets-1] != tc.last {
				t.Fatalf("unexpected label range %q..%q", ts.Labels[0], ts.Labels[tc.buckets-1])
			}
			for i := range ts.Coffee {
				if ts.Coffee[i] != 0 || ts.Mate[i] != 0 {
					t.Fatalf("expected zero-filled buckets, got coffee=%d mate=%d at %d",
						ts.Coffee[i], ts.Mate[i], i)
				}
			}
			if ts.MaxValue != 1 {
				t.Fatalf("expected MaxValue 1 on empty series, got %d", ts.MaxValue)
			}
		})
	}
}

func TestTimeSeriesSet(t *testing.T) {
	ts := NewHourlySeries()

	ts.Set(DrinkCoffee, 8, 3)
	ts.Set(DrinkMate, 8, 5)
	if ts.Coffee[8] != 3 || ts.Mate[8] != 5 {
		t.Fatalf("unexpected bucket values: coffee=%d mate=%d", ts.Coffee[8], ts.Mate[8])
	}
	if ts.MaxValue != 5 {
		t.Fatalf("expected MaxValue 5, got %d", ts.MaxValue)
	}

	// A smaller value never lowers MaxValue.
	ts.Set(DrinkCoffee, 9, 2)
	if ts.MaxValue != 5 {
		t.Fatalf("expected MaxValue to stay 5, got %d", ts.MaxValue)
	}

	// Out-of-range buckets and unknown drink types are ignored.
	ts.Set(DrinkCoffee, -1, 99)
	ts.Set(DrinkCoffee, 24, 99)
	ts.Set(DrinkType("water"), 3, 99)
	if ts.MaxValue != 5 {
		t.Fatalf("expected ignored writes to leave MaxValue at 5, got %d", ts.MaxValue)
	}
	if ts.Coffee[3] != 0 || ts.Mate[3] != 0 {
		t.Fatalf("expected bucket 3 untouched")
	}

	// Boundary buckets are writable.
	ts.Set(DrinkMate, 0, 1)
	ts.Set(DrinkMate, 23, 7)
	if ts.Mate[0] != 1 || ts.Mate[23] != 7 || ts.MaxValue != 7 {
		t.Fatalf("unexpected boundary writes: first=%d last=%d max=%d", ts.Mate[0], ts.Mate[23], ts.MaxValue)
	}
}
