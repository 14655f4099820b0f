package ics

import (
	"weekgrid/internal/grid"
	"weekgrid/internal/model"
)

// WeekEvents converts occurrences into timetable events for one week.
//
// All-day occurrences and occurrences whose start date is outside the week
// are skipped. Start and end are wall-clock times in the week's location;
// an occurrence running past midnight is clipped to "24:00" on its start
// day.
func WeekEvents(occs []model.Occurrence, week grid.WeekWindow) []model.CalendarEvent {
	loc := week.Start().Location()
	out := make([]model.CalendarEvent, 0, len(occs))

	for _, occ := range occs {
		if occ.AllDay {
			continue
		}
		start := occ.Start.In(loc)
		day := week.DayIndex(start)
		if day < 0 {
			continue
		}

		midnight := week[day].AddDate(0, 0, 1)
		end := occ.End.In(loc)
		endClock := grid.FormatClock(end.Hour()*60 + end.Minute())
		if !end.Before(midnight) {
			endClock = "24:00"
		}

		out = append(out, model.CalendarEvent{
			ID:        occ.UID + "@" + occ.InstanceKey,
			Title:     occ.Summary,
			Room:      occ.Location,
			DayIndex:  day,
			StartTime: grid.FormatClock(start.Hour()*60 + start.Minute()),
			EndTime:   endClock,
			Color:     model.ParseColor(string(occ.Color)),
			SourceID:  occ.SourceID,
		})
	}
	return out
}
