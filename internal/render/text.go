// Package render draws a placed week as a fixed-width text timetable.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"weekgrid/internal/grid"
)

// TextOptions controls the text layout.
type TextOptions struct {
	Slots    grid.SlotMapper
	EndHour  int // last hour shown; rows cover [DayStartHour, EndHour)
	ColWidth int // display cells per day column, default 14
}

// Text writes the week header and one row per slot. Each event fills the
// rows its span covers in its day column; the first row shows the title.
// Overlapping events in one cell are joined with "/". Events outside the
// displayed hours are not drawn.
//
// Placement geometry is read in slot units, so res must come from a placer
// whose SlotHeight is 1.
func Text(w io.Writer, week grid.WeekWindow, res grid.PlaceResult, opts TextOptions) error {
	if opts.ColWidth <= 0 {
		opts.ColWidth = 14
	}
	if opts.Slots == (grid.SlotMapper{}) {
		opts.Slots = grid.DefaultSlotMapper
	}
	if opts.EndHour <= opts.Slots.DayStartHour {
		opts.EndHour = grid.DefaultDayEndHour
	}
	rows := opts.Slots.SlotCount(opts.EndHour)
	const gutter = 6

	cells := make([][]string, rows)
	for i := range cells {
		cells[i] = make([]string, grid.DaysPerWeek)
	}
	for _, p := range res.Placed {
		if p.DayIndex >= grid.DaysPerWeek {
			continue
		}
		first := int(math.Floor(p.TopOffset))
		last := int(math.Ceil(p.TopOffset+p.HeightOffset)) - 1
		for r := first; r <= last; r++ {
			if r < 0 || r >= rows {
				continue
			}
			label := ":"
			if r == first || (first < 0 && r == 0) {
				label = p.Title
			}
			if cells[r][p.DayIndex] != "" {
				label = cells[r][p.DayIndex] + "/" + label
			}
			cells[r][p.DayIndex] = label
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", week.Label())

	b.WriteString(strings.Repeat(" ", gutter))
	for _, d := range week {
		head := fmt.Sprintf("%s %d", grid.FrenchDay(d.Weekday()), d.Day())
		b.WriteString("|")
		b.WriteString(fit(head, opts.ColWidth))
	}
	b.WriteString("|\n")

	sep := strings.Repeat("-", gutter) + strings.Repeat("+"+strings.Repeat("-", opts.ColWidth), grid.DaysPerWeek) + "+\n"
	b.WriteString(sep)

	for r := 0; r < rows; r++ {
		b.WriteString(fit(opts.Slots.SlotToClock(float64(r)), gutter))
		for d := 0; d < grid.DaysPerWeek; d++ {
			b.WriteString("|")
			b.WriteString(fit(cells[r][d], opts.ColWidth))
		}
		b.WriteString("|\n")
	}
	b.WriteString(sep)

	if res.Dropped > 0 {
		fmt.Fprintf(&b, "%d event(s) dropped\n", res.Dropped)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// fit truncates or pads s to exactly width display cells.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "~")
	}
	return runewidth.FillRight(s, width)
}
