// Package nav owns the week the user is looking at. It is the only mutable
// piece of the view state; the grid package derives everything else from
// the anchor date it hands out.
package nav

import (
	"sync"
	"time"

	"weekgrid/internal/grid"
)

// Navigator moves an anchor date week by week. Safe for concurrent use.
type Navigator struct {
	mu     sync.Mutex
	anchor time.Time
	first  time.Weekday
	loc    *time.Location
	now    func() time.Time
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// WithFirstWeekday sets the first column of the week (default Monday).
func WithFirstWeekday(d time.Weekday) Option {
	return func(n *Navigator) { n.first = d }
}

// New returns a Navigator anchored on today in loc. A nil loc means
// time.Local.
func New(loc *time.Location, opts ...Option) *Navigator {
	if loc == nil {
		loc = time.Local
	}
	n := &Navigator{
		first: time.Monday,
		loc:   loc,
		now:   time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	n.anchor = n.today()
	return n
}

func (n *Navigator) today() time.Time {
	y, m, d := n.now().In(n.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, n.loc)
}

// Anchor returns the current anchor date.
func (n *Navigator) Anchor() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.anchor
}

// Week returns the window containing the current anchor.
func (n *Navigator) Week() grid.WeekWindow {
	n.mu.Lock()
	defer n.mu.Unlock()
	return grid.ComputeWeekStarting(n.anchor, n.first)
}

// WeekOf returns the window containing t, using the navigator's first
// weekday and location, without moving the anchor.
func (n *Navigator) WeekOf(t time.Time) grid.WeekWindow {
	return grid.ComputeWeekStarting(t.In(n.loc), n.first)
}

// Prev moves the anchor back seven days and returns the new week.
func (n *Navigator) Prev() grid.WeekWindow {
	return n.shift(-grid.DaysPerWeek)
}

// Next moves the anchor forward seven days and returns the new week.
func (n *Navigator) Next() grid.WeekWindow {
	return n.shift(grid.DaysPerWeek)
}

// Today resets the anchor to the current date and returns its week.
func (n *Navigator) Today() grid.WeekWindow {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.anchor = n.today()
	return grid.ComputeWeekStarting(n.anchor, n.first)
}

// Set moves the anchor to t (converted to the navigator's location).
func (n *Navigator) Set(t time.Time) grid.WeekWindow {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.anchor = t.In(n.loc)
	return grid.ComputeWeekStarting(n.anchor, n.first)
}

func (n *Navigator) shift(days int) grid.WeekWindow {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.anchor = n.anchor.AddDate(0, 0, days)
	return grid.ComputeWeekStarting(n.anchor, n.first)
}
