package window

import (
	"errors"
	"fmt"
	"time"
)

// Window is a half-open date interval [Start, End) at UTC day precision.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Period is a calendar length used to size the current window.
type Period struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// DefaultPeriod is one calendar year.
var DefaultPeriod = Period{Years: 1}

var ErrEmptyPeriod = errors.New("window period must be positive")

// Pair is the current window together with the baseline immediately before it.
type Pair struct {
	Baseline Window `json:"baseline"`
	Current  Window `json:"current"`
}

// Derive builds the current window ending at the start of the day before
// asOf and a baseline of identical length ending where current starts.
func Derive(asOf time.Time, length Period) (Pair, error) {
	if length.Years < 0 || length.Months < 0 || length.Days < 0 ||
		length.Years+length.Months+length.Days == 0 {
		return Pair{}, ErrEmptyPeriod
	}

	end := Day(asOf).AddDate(0, 0, -1)
	start := end.AddDate(-length.Years, -length.Months, -length.Days)
	days := int(end.Sub(start).Hours() / 24)

	current := Window{Start: start, End: end}
	baseline := Window{Start: start.AddDate(0, 0, -days), End: start}
	return Pair{Baseline: baseline, Current: current}, nil
}

// Trailing returns the window of the given number of days ending at the start
// of asOf's day. Used for short lookbacks such as active fire detections.
func Trailing(asOf time.Time, days int) Window {
	end := Day(asOf)
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Lookback returns the window of the given number of years ending at end.
func Lookback(end time.Time, years int) Window {
	end = Day(end)
	return Window{Start: end.AddDate(-years, 0, 0), End: end}
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Duration returns End − Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Days returns the window length in whole days.
func (w Window) Days() int {
	return int(w.Duration().Hours() / 24)
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// StartYear returns the calendar year of Start.
func (w Window) StartYear() int {
	return w.Start.Year()
}

// Validate checks the pair invariants: contiguous and of equal length.
func (p Pair) Validate() error {
	if !p.Baseline.End.Equal(p.Current.Start) {
		return fmt.Errorf("baseline ends %s but current starts %s", p.Baseline.End.Format(time.DateOnly), p.Current.Start.Format(time.DateOnly))
	}
	if p.Baseline.Duration() != p.Current.Duration() {
		return fmt.Errorf("baseline spans %d days, current spans %d", p.Baseline.Days(), p.Current.Days())
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
