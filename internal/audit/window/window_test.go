package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	asOf := time.Date(2025, 6, 7, 15, 30, 0, 0, time.UTC)

	pair, err := Derive(asOf, DefaultPeriod)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC), pair.Current.End)
	assert.Equal(t, time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC), pair.Current.Start)
	assert.Equal(t, pair.Current.Start, pair.Baseline.End)
	assert.Equal(t, pair.Current.Duration(), pair.Baseline.Duration())
	assert.Equal(t, 365, pair.Current.Days())
	assert.NoError(t, pair.Validate())
}

func TestDeriveAcrossLeapYear(t *testing.T) {
	// current window spans 29 Feb 2024, baseline reuses the same day count
	pair, err := Derive(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), DefaultPeriod)
	require.NoError(t, err)

	assert.Equal(t, 366, pair.Current.Days())
	assert.Equal(t, 366, pair.Baseline.Days())
	assert.NoError(t, pair.Validate())
}

func TestDeriveRejectsEmptyPeriod(t *testing.T) {
	_, err := Derive(time.Now(), Period{})
	assert.ErrorIs(t, err, ErrEmptyPeriod)

	_, err = Derive(time.Now(), Period{Years: -1, Months: 13})
	assert.ErrorIs(t, err, ErrEmptyPeriod)
}

func TestDeriveNormalizesTimezone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	asOf := time.Date(2025, 6, 7, 23, 0, 0, 0, loc) // 02:00 UTC on the 8th

	pair, err := Derive(asOf, Period{Months: 6})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), pair.Current.End)
}

func TestContainsIsHalfOpen(t *testing.T) {
	w := Window{Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)}
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))
	assert.Equal(t, "[2025-01-01, 2025-01-04)", w.String())
}

func TestTrailing(t *testing.T) {
	w := Trailing(time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, 3, w.Days())
	assert.Equal(t, time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), w.End)
}

func TestLookback(t *testing.T) {
	w := Lookback(time.Date(2025, 6, 6, 18, 0, 0, 0, time.UTC), 10)
	assert.Equal(t, time.Date(2015, 6, 6, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, "[2015-06-06, 2025-06-06)", w.String())
}
