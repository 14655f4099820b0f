package grid

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultDayStartHour = 8
	DefaultDayEndHour   = 20
	DefaultSlotMinutes  = 30
)

// FormatError reports a time string that is not a valid "HH:MM" clock.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("grid: invalid time %q: %s", e.Input, e.Reason)
}

// SlotMapper converts wall-clock times into vertical grid positions measured
// in slots from the start of the displayed day.
type SlotMapper struct {
	DayStartHour int
	SlotMinutes  int
}

// DefaultSlotMapper starts the day at 08:00 with 30-minute slots.
var DefaultSlotMapper = SlotMapper{
	DayStartHour: DefaultDayStartHour,
	SlotMinutes:  DefaultSlotMinutes,
}

// TimeToSlot maps t using DefaultSlotMapper.
func TimeToSlot(t string) (float64, error) {
	return DefaultSlotMapper.TimeToSlot(t)
}

// TimeToSlot returns the (possibly fractional, possibly negative) slot index
// of t. Times before the day start are not clipped.
func (m SlotMapper) TimeToSlot(t string) (float64, error) {
	mins, err := ParseClock(t)
	if err != nil {
		return 0, err
	}
	return m.MinutesToSlot(mins), nil
}

// MinutesToSlot converts minutes since midnight to a slot index.
func (m SlotMapper) MinutesToSlot(mins int) float64 {
	fromStart := mins - m.DayStartHour*60
	return float64(fromStart) / float64(m.slotMinutes())
}

// SlotToClock is the inverse of TimeToSlot, rounded down to the minute.
func (m SlotMapper) SlotToClock(slot float64) string {
	mins := m.DayStartHour*60 + int(slot*float64(m.slotMinutes()))
	return FormatClock(mins)
}

// SlotCount returns how many slots lie between the day start and endHour.
func (m SlotMapper) SlotCount(endHour int) int {
	n := (endHour - m.DayStartHour) * 60 / m.slotMinutes()
	if n < 0 {
		return 0
	}
	return n
}

// HourLabels returns the time-gutter labels from the day start up to and
// including endHour, e.g. "8:00" .. "20:00".
func (m SlotMapper) HourLabels(endHour int) []string {
	if endHour < m.DayStartHour {
		return nil
	}
	labels := make([]string, 0, endHour-m.DayStartHour+1)
	for h := m.DayStartHour; h <= endHour; h++ {
		labels = append(labels, strconv.Itoa(h)+":00")
	}
	return labels
}

func (m SlotMapper) slotMinutes() int {
	if m.SlotMinutes <= 0 {
		return DefaultSlotMinutes
	}
	return m.SlotMinutes
}

// ParseClock parses "HH:MM" into minutes since midnight. Hours run 0..23;
// "24:00" is accepted as the end of the day.
func ParseClock(s string) (int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, &FormatError{Input: s, Reason: "missing ':'"}
	}
	h, err := parseClockPart(hs)
	if err != nil {
		return 0, &FormatError{Input: s, Reason: "hours " + err.Error()}
	}
	m, err := parseClockPart(ms)
	if err != nil {
		return 0, &FormatError{Input: s, Reason: "minutes " + err.Error()}
	}
	if m > 59 {
		return 0, &FormatError{Input: s, Reason: "minutes out of range"}
	}
	if h > 24 || (h == 24 && m != 0) {
		return 0, &FormatError{Input: s, Reason: "hours out of range"}
	}
	return h*60 + m, nil
}

// parseClockPart accepts one or two ASCII digits.
func parseClockPart(p string) (int, error) {
	if p == "" || len(p) > 2 {
		return 0, fmt.Errorf("must be 1-2 digits")
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return 0, fmt.Errorf("not numeric")
		}
	}
	n, _ := strconv.Atoi(p)
	return n, nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
