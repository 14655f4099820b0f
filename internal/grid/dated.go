package grid

import (
	"time"

	"weekgrid/internal/model"
)

// OnWeek reports whether ev is drawn on w. Undated events repeat every week
// and are returned unchanged. A dated event belongs only to the week that
// contains its date; its DayIndex is then set from that date. A malformed
// date is a *FormatError.
func OnWeek(ev model.CalendarEvent, w WeekWindow) (model.CalendarEvent, bool, error) {
	if ev.Date == "" {
		return ev, true, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, ev.Date, w.Start().Location())
	if err != nil {
		return ev, false, &FormatError{Input: ev.Date, Reason: "date must be YYYY-MM-DD"}
	}
	i := w.DayIndex(d)
	if i < 0 {
		return ev, false, nil
	}
	ev.DayIndex = i
	return ev, true, nil
}
