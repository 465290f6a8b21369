package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/room-scheduler/internal/scheduler"
)

// Kind represents supported repeat patterns.
type Kind string

const (
	// KindNone books the anchor date only.
	KindNone Kind = "none"
	// KindWeekly repeats every 7 days.
	KindWeekly Kind = "weekly"
	// KindBiweekly repeats every 14 days.
	KindBiweekly Kind = "biweekly"
	// KindMonthly repeats on the anchor's day of month, clamped to the month's last day.
	KindMonthly Kind = "monthly"
)

// DefaultMaxOccurrences bounds a series when the engine is built without a limit.
const DefaultMaxOccurrences = 52

var (
	// ErrInvalidKind indicates the recurrence kind is not supported.
	ErrInvalidKind = errors.New("recurrence: invalid kind")
	// ErrInvalidCount indicates the occurrence count is below one or above the limit.
	ErrInvalidCount = errors.New("recurrence: invalid occurrence count")
	// ErrInvalidAnchor indicates the anchor date is unset.
	ErrInvalidAnchor = errors.New("recurrence: anchor date is required")
)

// ParseKind normalizes user input into a Kind. An empty value means KindNone.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return KindNone, nil
	case KindNone, KindWeekly, KindBiweekly, KindMonthly:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, value)
	}
}

// Engine expands an anchor date and repeat pattern into concrete dates.
type Engine struct {
	maxOccurrences int
}

// NewEngine constructs an Engine. A non-positive maxOccurrences uses DefaultMaxOccurrences.
func NewEngine(maxOccurrences int) *Engine {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{maxOccurrences: maxOccurrences}
}

// MaxOccurrences reports the largest count Expand accepts.
func (e *Engine) MaxOccurrences() int {
	return e.maxOccurrences
}

// Expand returns exactly count strictly increasing dates starting at anchor.
//
// The engine enforces the following semantics:
//   - KindNone yields [anchor] and requires count to be 1 (or 0, treated as 1).
//   - Weekly and biweekly add 7·i and 14·i days.
//   - Monthly adds i months to the anchor itself, never to the previous
//     occurrence, so a clamped February does not drag later months back.
func (e *Engine) Expand(anchor scheduler.Date, kind Kind, count int) ([]scheduler.Date, error) {
	if anchor.IsZero() {
		return nil, ErrInvalidAnchor
	}

	if kind == "" {
		kind = KindNone
	}
	if kind == KindNone {
		if count > 1 || count < 0 {
			return nil, fmt.Errorf("%w: %d occurrences for a single booking", ErrInvalidCount, count)
		}
		return []scheduler.Date{anchor}, nil
	}

	if count < 1 || count > e.maxOccurrences {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidCount, count, e.maxOccurrences)
	}

	var step func(i int) scheduler.Date
	switch kind {
	case KindWeekly:
		step = func(i int) scheduler.Date { return anchor.AddDays(7 * i) }
	case KindBiweekly:
		step = func(i int) scheduler.Date { return anchor.AddDays(14 * i) }
	case KindMonthly:
		step = func(i int) scheduler.Date { return anchor.AddMonthsClamped(i) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	dates := make([]scheduler.Date, 0, count)
	for i := 0; i < count; i++ {
		dates = append(dates, step(i))
	}
	return dates, nil
}
