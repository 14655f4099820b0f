package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertWeek(t *testing.T, w WeekWindow) {
	t.Helper()
	require.Equal(t, time.Monday, w[0].Weekday(), "first day %s", w[0])
	require.Equal(t, time.Sunday, w[6].Weekday(), "last day %s", w[6])
	for i := 1; i < len(w); i++ {
		assert.Equal(t, w[i-1].AddDate(0, 0, 1), w[i], "day %d not contiguous", i)
	}
}

func TestComputeWeekEveryWeekday(t *testing.T) {
	// 2025-01-13 is a Monday.
	for i := 0; i < 7; i++ {
		anchor := date(2025, time.January, 13+i).Add(15*time.Hour + 42*time.Minute)
		w := ComputeWeek(anchor)
		assertWeek(t, w)
		assert.Equal(t, date(2025, time.January, 13), w.Start(), "anchor %s", anchor)
	}
}

func TestComputeWeekSundayBelongsToPrecedingMonday(t *testing.T) {
	w := ComputeWeek(date(2025, time.January, 19))
	assert.Equal(t, date(2025, time.January, 13), w[0])
	assert.Equal(t, date(2025, time.January, 19), w[6])
}

func TestComputeWeekAcrossMonthEnd(t *testing.T) {
	// Friday Jan 31 2025.
	w := ComputeWeek(date(2025, time.January, 31))
	assertWeek(t, w)
	assert.Equal(t, date(2025, time.January, 27), w[0])
	assert.Equal(t, date(2025, time.February, 2), w[6])
}

func TestComputeWeekAcrossYearEnd(t *testing.T) {
	w := ComputeWeek(date(2025, time.January, 1))
	assertWeek(t, w)
	assert.Equal(t, date(2024, time.December, 30), w[0])
	assert.Equal(t, date(2025, time.January, 5), w[6])
}

func TestComputeWeekLeapDay(t *testing.T) {
	w := ComputeWeek(date(2024, time.February, 29))
	assertWeek(t, w)
	assert.Equal(t, date(2024, time.February, 26), w[0])
	assert.Equal(t, date(2024, time.March, 3), w[6])
}

func TestComputeWeekAcrossDST(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// Clocks go forward on Sunday 2025-03-30.
	w := ComputeWeek(time.Date(2025, time.March, 30, 23, 0, 0, 0, paris))
	assertWeek(t, w)
	for _, d := range w {
		assert.Equal(t, 0, d.Hour())
		assert.Equal(t, paris, d.Location())
	}
	assert.Equal(t, 30, w[6].Day())
}

func TestComputeWeekManyAnchors(t *testing.T) {
	start := date(2023, time.December, 1)
	for i := 0; i < 800; i++ {
		anchor := start.AddDate(0, 0, i)
		w := ComputeWeek(anchor)
		assertWeek(t, w)
		assert.True(t, w.Contains(anchor), "anchor %s outside %s..%s", anchor, w.Start(), w.End())
	}
}

func TestComputeWeekStartingSunday(t *testing.T) {
	w := ComputeWeekStarting(date(2025, time.January, 15), time.Sunday)
	assert.Equal(t, date(2025, time.January, 12), w[0])
	assert.Equal(t, time.Saturday, w[6].Weekday())
}

func TestWeekDayIndexAndContains(t *testing.T) {
	w := ComputeWeek(date(2025, time.January, 15))
	assert.Equal(t, 0, w.DayIndex(date(2025, time.January, 13).Add(9*time.Hour)))
	assert.Equal(t, 6, w.DayIndex(date(2025, time.January, 19).Add(23*time.Hour)))
	assert.Equal(t, -1, w.DayIndex(date(2025, time.January, 20)))
	assert.False(t, w.Contains(w.End()))
	assert.True(t, w.Contains(w.Start()))
}

func TestWeekPrevNext(t *testing.T) {
	w := ComputeWeek(date(2025, time.January, 31))
	assert.Equal(t, date(2025, time.February, 3), w.Next()[0])
	assert.Equal(t, date(2025, time.January, 20), w.Prev()[0])
	assert.Equal(t, w, w.Next().Prev())
}

func TestWeekLabel(t *testing.T) {
	w := ComputeWeek(date(2025, time.January, 31))
	assert.Equal(t, "27 janvier - 2 février, 2025", w.Label())
}
