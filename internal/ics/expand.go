package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandOptions controls recurrence expansion.
type ExpandOptions struct {
	// Location is the zone every occurrence is converted to. Nil means
	// time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrences returned; an occurrence is
	// kept when it overlaps [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// Expansion is the output of Expand.
type Expansion struct {
	// Occurrences is sorted by start time, then UID.
	Occurrences []model.Occurrence
	// Truncated lists UIDs that hit MaxOccurrencesPerEvent.
	Truncated []string
}

// Expand turns parsed events into concrete occurrences inside the range.
// It handles single events, RRULE series, EXDATE exclusions and
// RECURRENCE-ID overrides.
func Expand(events []ParsedEvent, opts ExpandOptions) (Expansion, error) {
	var res Expansion

	if opts.RangeEnd.Before(opts.RangeStart) {
		return res, errors.New("ics: RangeEnd is before RangeStart")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxOccurrencesPerEvent <= 0 {
		opts.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	base := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := base[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	for _, uid := range uids {
		truncated := false
		for _, ev := range base[uid] {
			occ, hitCap := expandOne(ev, overrides[uid], opts)
			truncated = truncated || hitCap
			res.Occurrences = append(res.Occurrences, occ...)
		}
		if truncated {
			res.Truncated = append(res.Truncated, uid)
			appLog.Warn("ics: occurrences truncated", "uid", uid, "cap", opts.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		a, b := res.Occurrences[i], res.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.UID < b.UID
	})
	return res, nil
}

func expandOne(ev ParsedEvent, overrides []ParsedEvent, opts ExpandOptions) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, opts.RangeStart, opts.RangeEnd) {
			return nil, false
		}
		return []model.Occurrence{occurrenceFor(ev, overrides, ev.Start, ev.End, opts.Location)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Pull the window back by the event's duration so a series instance that
	// started before RangeStart but is still running is included.
	dur := ev.End.Sub(ev.Start)
	from := opts.RangeStart.Add(-dur).In(ev.Start.Location())
	to := opts.RangeEnd.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	hitCap := false
	if len(starts) > opts.MaxOccurrencesPerEvent {
		starts = starts[:opts.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, int(dur.Hours()/24+0.5))
		}
		occ := occurrenceFor(ev, overrides, s, e, opts.Location)
		if !overlaps(occ.Start, occ.End, opts.RangeStart, opts.RangeEnd) {
			continue
		}
		out = append(out, occ)
	}
	return out, hitCap
}

// occurrenceFor builds the occurrence for one instance start, applying a
// RECURRENCE-ID override when one matches.
func occurrenceFor(ev ParsedEvent, overrides []ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			ev, start, end = ov, ov.Start, ov.End
			break
		}
	}

	s, e := start.In(loc), end.In(loc)
	return model.Occurrence{
		SourceID:    ev.Feed.ID,
		UID:         ev.UID,
		InstanceKey: s.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Color:       ev.Feed.Color,
		Start:       s,
		End:         e,
	}
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd).
// A zero-length event at aStart counts when aStart lies in the range.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
