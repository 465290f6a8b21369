package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/scheduler"
)

func TestEngine_Expand(t *testing.T) {
	t.Parallel()

	engine := NewEngine(0)

	t.Run("weekly series starting on a monday", func(t *testing.T) {
		t.Parallel()
		dates, err := engine.Expand(scheduler.NewDate(2024, time.May, 6), KindWeekly, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"2024-05-06", "2024-05-13", "2024-05-20"}
		assertDates(t, dates, want)
	})

	t.Run("biweekly crosses month boundaries", func(t *testing.T) {
		t.Parallel()
		dates, err := engine.Expand(scheduler.NewDate(2024, time.May, 20), KindBiweekly, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDates(t, dates, []string{"2024-05-20", "2024-06-03", "2024-06-17"})
	})

	t.Run("monthly clamps to the last valid day", func(t *testing.T) {
		t.Parallel()
		dates, err := engine.Expand(scheduler.NewDate(2024, time.January, 31), KindMonthly, 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDates(t, dates, []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"})
	})

	t.Run("none yields the anchor", func(t *testing.T) {
		t.Parallel()
		for _, count := range []int{0, 1} {
			dates, err := engine.Expand(scheduler.NewDate(2024, time.May, 10), KindNone, count)
			if err != nil {
				t.Fatalf("count %d: unexpected error: %v", count, err)
			}
			assertDates(t, dates, []string{"2024-05-10"})
		}
	})
}

func TestEngine_ExpandCountsAreExactAndIncreasing(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultMaxOccurrences)
	anchors := []scheduler.Date{
		scheduler.NewDate(2024, time.January, 29),
		scheduler.NewDate(2024, time.February, 29),
		scheduler.NewDate(2023, time.December, 31),
	}

	for _, kind := range []Kind{KindWeekly, KindBiweekly, KindMonthly} {
		for _, anchor := range anchors {
			for n := 1; n <= DefaultMaxOccurrences; n++ {
				dates, err := engine.Expand(anchor, kind, n)
				if err != nil {
					t.Fatalf("%s/%s/%d: unexpected error: %v", kind, anchor, n, err)
				}
				if len(dates) != n {
					t.Fatalf("%s/%s/%d: expected %d dates, got %d", kind, anchor, n, n, len(dates))
				}
				if dates[0] != anchor {
					t.Fatalf("%s/%s/%d: first date %s differs from anchor", kind, anchor, n, dates[0])
				}
				for i := 1; i < len(dates); i++ {
					if !dates[i-1].Before(dates[i]) {
						t.Fatalf("%s/%s/%d: dates not increasing at %d: %s then %s", kind, anchor, n, i, dates[i-1], dates[i])
					}
				}
			}
		}
	}
}

func TestEngine_ExpandErrors(t *testing.T) {
	t.Parallel()

	engine := NewEngine(10)
	anchor := scheduler.NewDate(2024, time.May, 6)

	tests := []struct {
		name   string
		anchor scheduler.Date
		kind   Kind
		count  int
		want   error
	}{
		{name: "zero count", anchor: anchor, kind: KindWeekly, count: 0, want: ErrInvalidCount},
		{name: "above limit", anchor: anchor, kind: KindMonthly, count: 11, want: ErrInvalidCount},
		{name: "none with many", anchor: anchor, kind: KindNone, count: 3, want: ErrInvalidCount},
		{name: "unknown kind", anchor: anchor, kind: Kind("daily"), count: 2, want: ErrInvalidKind},
		{name: "missing anchor", kind: KindWeekly, count: 2, want: ErrInvalidAnchor},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := engine.Expand(tc.anchor, tc.kind, tc.count); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	cases := map[string]Kind{"": KindNone, "Weekly": KindWeekly, " biweekly ": KindBiweekly, "monthly": KindMonthly, "none": KindNone}
	for input, want := range cases {
		got, err := ParseKind(input)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (%v)", input, want, got, err)
		}
	}
	if _, err := ParseKind("yearly"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func assertDates(t *testing.T, got []scheduler.Date, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("date %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
