package model

import (
	"strings"
	"time"
)

// ColorTag is the display color of an event block. The set matches the
// palette offered by the schedule editor.
type ColorTag string

const (
	ColorBlue   ColorTag = "blue"
	ColorRed    ColorTag = "red"
	ColorGreen  ColorTag = "green"
	ColorYellow ColorTag = "yellow"
	ColorPurple ColorTag = "purple"
	ColorPink   ColorTag = "pink"
	ColorGray   ColorTag = "gray"
)

// Colors lists every supported tag in palette order.
var Colors = []ColorTag{
	ColorBlue, ColorRed, ColorGreen, ColorYellow, ColorPurple, ColorPink, ColorGray,
}

// French display names, as shown in the color picker.
var colorNames = map[ColorTag]string{
	ColorBlue:   "Bleu",
	ColorRed:    "Rouge",
	ColorGreen:  "Vert",
	ColorYellow: "Jaune",
	ColorPurple: "Violet",
	ColorPink:   "Rose",
	ColorGray:   "Gris",
}

// ParseColor accepts a tag ("red"), a French name ("Rouge") or a legacy
// CSS class ("bg-red-500"). Anything else maps to ColorBlue.
func ParseColor(s string) ColorTag {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "bg-")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	for _, c := range Colors {
		if s == string(c) || s == strings.ToLower(colorNames[c]) {
			return c
		}
	}
	return ColorBlue
}

// Name returns the French display name of the color.
func (c ColorTag) Name() string {
	if n, ok := colorNames[c]; ok {
		return n
	}
	return colorNames[ColorBlue]
}

// CalendarEvent is one block on the weekly timetable. DayIndex counts from
// the first column of the week (Monday=0); times are "HH:MM" wall-clock
// strings.
type CalendarEvent struct {
	ID         string   `yaml:"id" json:"id"`
	Title      string   `yaml:"title" json:"title" validate:"required"`
	Group      string   `yaml:"group,omitempty" json:"group,omitempty"`
	Room       string   `yaml:"room,omitempty" json:"room,omitempty"`
	Instructor string   `yaml:"instructor,omitempty" json:"instructor,omitempty"`
	DayIndex   int      `yaml:"day" json:"day"`
	StartTime  string   `yaml:"start" json:"start" validate:"required"`
	EndTime    string   `yaml:"end" json:"end" validate:"required"`
	Color      ColorTag `yaml:"color,omitempty" json:"color,omitempty"`

	// Date pins a one-off event to a calendar day ("YYYY-MM-DD"). Undated
	// events repeat every week on DayIndex; dated ones appear only in the
	// week containing Date, and DayIndex is derived from it.
	Date string `yaml:"date,omitempty" json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// SourceID is empty for seed and API events, and the feed ID for
	// events derived from an ICS subscription.
	SourceID string `yaml:"-" json:"source_id,omitempty"`
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // feed ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool
	Color  ColorTag

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
