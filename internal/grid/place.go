package grid

import (
	"errors"
	"fmt"
	"time"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// DataError marks an event that parsed but cannot be drawn: its day lies
// outside the grid or its duration is not positive.
type DataError struct {
	EventID string
	Reason  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("grid: event %q dropped: %s", e.EventID, e.Reason)
}

// PlacedEvent is an event with its rectangle inside the grid.
//
// TopOffset and HeightOffset are in the caller's slot-height unit.
// LeftFraction and WidthFraction are fractions of the full grid width.
type PlacedEvent struct {
	model.CalendarEvent

	// Date is the calendar date of the event's column; zero when the
	// column lies past the end of the week (more than 7 columns).
	Date time.Time

	TopOffset     float64
	HeightOffset  float64
	LeftFraction  float64
	WidthFraction float64

	// Lane and Lanes are only set when overlap resolution is enabled;
	// otherwise Lane=0, Lanes=1.
	Lane  int
	Lanes int
}

// PlaceResult is the outcome of a placement pass. Placed keeps input order.
type PlaceResult struct {
	Placed   []PlacedEvent
	Dropped  int
	Problems []error
}

// Err joins all per-event problems, or returns nil.
func (r PlaceResult) Err() error {
	return errors.Join(r.Problems...)
}

// ErrSlotHeight is reported when a Placer has a negative SlotHeight.
var ErrSlotHeight = errors.New("grid: slot height must not be negative")

// Placer computes event rectangles. The zero value uses 7 columns, a slot
// height of 1 and DefaultSlotMapper.
//
// SlotHeight 0 means 1, so geometry comes back in slot units. A negative
// SlotHeight is a configuration error: Place drops every event and reports
// ErrSlotHeight once. Columns <= 0 means 7.
type Placer struct {
	Slots      SlotMapper
	SlotHeight float64
	Columns    int

	// ResolveOverlaps splits overlapping events of one day into side-by-side
	// lanes. When false, overlapping events share the full column width.
	ResolveOverlaps bool
}

// PlaceEvents places events with DefaultSlotMapper and no overlap
// resolution. columns <= 0 means 7.
func PlaceEvents(events []model.CalendarEvent, week WeekWindow, slotHeight float64, columns int) PlaceResult {
	p := Placer{Slots: DefaultSlotMapper, SlotHeight: slotHeight, Columns: columns}
	return p.Place(events, week)
}

// Place computes the rectangle of every drawable event. Events that cannot
// be drawn are counted in Dropped and described in Problems; the rest are
// still returned. Dated events outside week are skipped without being
// counted.
func (p Placer) Place(events []model.CalendarEvent, week WeekWindow) PlaceResult {
	if p.SlotHeight < 0 {
		appLog.Warn("grid: negative slot height, nothing placed",
			"slot_height", p.SlotHeight,
			"dropped", len(events),
		)
		return PlaceResult{
			Placed:   []PlacedEvent{},
			Dropped:  len(events),
			Problems: []error{fmt.Errorf("%w: %g", ErrSlotHeight, p.SlotHeight)},
		}
	}

	cols := p.columns()
	unit := p.SlotHeight
	if unit == 0 {
		unit = 1
	}
	slots := p.Slots
	if slots == (SlotMapper{}) {
		slots = DefaultSlotMapper
	}

	res := PlaceResult{Placed: make([]PlacedEvent, 0, len(events))}
	drop := func(err error) {
		res.Dropped++
		res.Problems = append(res.Problems, err)
	}

	for _, raw := range events {
		ev, onWeek, err := OnWeek(raw, week)
		if err != nil {
			drop(fmt.Errorf("event %q date: %w", ev.ID, err))
			continue
		}
		if !onWeek {
			continue
		}
		if ev.DayIndex < 0 || ev.DayIndex >= cols {
			drop(&DataError{EventID: ev.ID, Reason: fmt.Sprintf("day index %d outside [0,%d]", ev.DayIndex, cols-1)})
			continue
		}

		start, err := slots.TimeToSlot(ev.StartTime)
		if err != nil {
			drop(fmt.Errorf("event %q start: %w", ev.ID, err))
			continue
		}
		end, err := slots.TimeToSlot(ev.EndTime)
		if err != nil {
			drop(fmt.Errorf("event %q end: %w", ev.ID, err))
			continue
		}

		height := (end - start) * unit
		if height <= 0 {
			drop(&DataError{EventID: ev.ID, Reason: fmt.Sprintf("end %s not after start %s", ev.EndTime, ev.StartTime)})
			continue
		}

		pe := PlacedEvent{
			CalendarEvent: ev,
			TopOffset:     start * unit,
			HeightOffset:  height,
			LeftFraction:  float64(ev.DayIndex) / float64(cols),
			WidthFraction: 1 / float64(cols),
			Lanes:         1,
		}
		if ev.DayIndex < DaysPerWeek {
			pe.Date = week[ev.DayIndex]
		}
		res.Placed = append(res.Placed, pe)
	}

	if p.ResolveOverlaps {
		assignLanes(res.Placed, cols)
	}

	if res.Dropped > 0 {
		appLog.Warn("grid: dropped events during placement",
			"dropped", res.Dropped,
			"placed", len(res.Placed),
			"week_start", week.Start().Format(time.DateOnly),
		)
	}

	return res
}

func (p Placer) columns() int {
	if p.Columns <= 0 {
		return DaysPerWeek
	}
	return p.Columns
}
