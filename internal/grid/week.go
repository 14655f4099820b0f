// Package grid holds the geometry of the weekly timetable: which dates a
// week covers, how wall-clock times map onto vertical slots, and where each
// event block sits inside the seven-column grid.
//
// Everything here is a pure function of its inputs. Mutable state (the
// current anchor date, the event list) belongs to the callers.
package grid

import (
	"fmt"
	"time"
)

// DaysPerWeek is the length of a WeekWindow.
const DaysPerWeek = 7

// WeekWindow is the ordered run of seven calendar dates, each at local
// midnight, covering one week.
type WeekWindow [DaysPerWeek]time.Time

// ComputeWeek returns the Monday-through-Sunday week containing anchor.
func ComputeWeek(anchor time.Time) WeekWindow {
	return ComputeWeekStarting(anchor, time.Monday)
}

// ComputeWeekStarting returns the week containing anchor whose first day is
// the given weekday. Dates keep anchor's location.
func ComputeWeekStarting(anchor time.Time, first time.Weekday) WeekWindow {
	offset := -((int(anchor.Weekday()) - int(first) + DaysPerWeek) % DaysPerWeek)

	y, m, d := anchor.Date()
	loc := anchor.Location()

	var w WeekWindow
	for i := range w {
		// time.Date normalizes day overflow into the next month/year.
		w[i] = time.Date(y, m, d+offset+i, 0, 0, 0, 0, loc)
	}
	return w
}

// Start is the first date of the week.
func (w WeekWindow) Start() time.Time { return w[0] }

// End is midnight after the last day; the window is [Start, End).
func (w WeekWindow) End() time.Time {
	return w[0].AddDate(0, 0, DaysPerWeek)
}

// Contains reports whether t falls inside [Start, End).
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start()) && t.Before(w.End())
}

// DayIndex returns the column of t's calendar date in the week, or -1 when
// the date lies outside it. t is compared in the week's location.
func (w WeekWindow) DayIndex(t time.Time) int {
	t = t.In(w[0].Location())
	y, m, d := t.Date()
	for i, day := range w {
		dy, dm, dd := day.Date()
		if dy == y && dm == m && dd == d {
			return i
		}
	}
	return -1
}

// Prev returns the week before w.
func (w WeekWindow) Prev() WeekWindow {
	return ComputeWeekStarting(w[0].AddDate(0, 0, -DaysPerWeek), w[0].Weekday())
}

// Next returns the week after w.
func (w WeekWindow) Next() WeekWindow {
	return ComputeWeekStarting(w[0].AddDate(0, 0, DaysPerWeek), w[0].Weekday())
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var frenchDays = [...]string{"Dim.", "Lun.", "Mar.", "Mer.", "Jeu.", "Ven.", "Sam."}

// FrenchMonth returns the lower-case French month name.
func FrenchMonth(m time.Month) string {
	return frenchMonths[m-1]
}

// FrenchDay returns the abbreviated French weekday, e.g. "Lun.".
func FrenchDay(d time.Weekday) string {
	return frenchDays[d]
}

// Label formats the week as shown in the schedule header,
// e.g. "27 janvier - 2 février, 2025".
func (w WeekWindow) Label() string {
	first, last := w[0], w[DaysPerWeek-1]
	return fmt.Sprintf("%d %s - %d %s, %d",
		first.Day(), FrenchMonth(first.Month()),
		last.Day(), FrenchMonth(last.Month()),
		last.Year())
}
