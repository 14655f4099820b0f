package grid

import (
	"fmt"
	"time"
)

// Month is the compact month overview: a label and the dates of the month
// laid out in week rows. Leading is the number of blank cells before the
// 1st so that each date falls under its weekday column.
type Month struct {
	Label   string
	First   time.Weekday
	Leading int
	Days    []time.Time
}

// MonthGrid returns the month containing anchor with columns starting on
// first. Dates are local midnight in anchor's location.
func MonthGrid(anchor time.Time, first time.Weekday) Month {
	y, m, _ := anchor.Date()
	loc := anchor.Location()
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	n := time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()

	mo := Month{
		Label:   fmt.Sprintf("%s %d", FrenchMonth(m), y),
		First:   first,
		Leading: (int(start.Weekday()) - int(first) + DaysPerWeek) % DaysPerWeek,
		Days:    make([]time.Time, n),
	}
	for i := range mo.Days {
		mo.Days[i] = time.Date(y, m, 1+i, 0, 0, 0, 0, loc)
	}
	return mo
}

// Rows returns the number of week rows needed to draw the month.
func (mo Month) Rows() int {
	return (mo.Leading + len(mo.Days) + DaysPerWeek - 1) / DaysPerWeek
}

// Headers returns the one-letter weekday headers in column order,
// e.g. "L M M J V S D" for a Monday start.
func (mo Month) Headers() []string {
	letters := [...]string{"D", "L", "M", "M", "J", "V", "S"}
	out := make([]string, DaysPerWeek)
	for i := range out {
		out[i] = letters[(int(mo.First)+i)%DaysPerWeek]
	}
	return out
}
