// Package store keeps the in-memory event list: seed events from the config
// file, events created through the API, and the latest parsed snapshot of
// each ICS feed. Feed snapshots are expanded for whichever week is asked
// for, so they never carry a week of their own.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"weekgrid/internal/grid"
	"weekgrid/internal/ics"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// ErrNotFound is returned when an event ID is unknown.
var ErrNotFound = errors.New("store: event not found")

// ErrReadOnly is returned when a caller tries to modify a feed event.
var ErrReadOnly = errors.New("store: feed events are read-only")

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	local []model.CalendarEvent
	feeds map[string][]ics.ParsedEvent

	validate *validator.Validate
}

// New returns a store holding a copy of seed. Seed events without an ID get
// a generated one.
func New(seed []model.CalendarEvent) *Store {
	s := &Store{
		local:    make([]model.CalendarEvent, 0, len(seed)),
		feeds:    make(map[string][]ics.ParsedEvent),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, ev := range seed {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		s.local = append(s.local, ev)
	}
	return s
}

// List returns local events in insertion order. Feed events only exist
// for a given week; see ForWeek.
func (s *Store) List() []model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CalendarEvent, len(s.local))
	copy(out, s.local)
	return out
}

// ForWeek returns the events drawn on week: undated local events, local
// events dated inside week with DayIndex set from their date, then each
// feed's occurrences in that week, feeds ordered by ID.
func (s *Store) ForWeek(week grid.WeekWindow) []model.CalendarEvent {
	s.mu.RLock()
	local := make([]model.CalendarEvent, len(s.local))
	copy(local, s.local)
	ids := make([]string, 0, len(s.feeds))
	for id := range s.feeds {
		ids = append(ids, id)
	}
	feeds := make(map[string][]ics.ParsedEvent, len(s.feeds))
	for id, evs := range s.feeds {
		feeds[id] = evs
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	out := make([]model.CalendarEvent, 0, len(local))
	for _, ev := range local {
		placed, ok, err := grid.OnWeek(ev, week)
		if err != nil {
			// Kept so the placer reports it.
			out = append(out, ev)
			continue
		}
		if ok {
			out = append(out, placed)
		}
	}

	for _, id := range ids {
		exp, err := ics.Expand(feeds[id], ics.ExpandOptions{
			Location:   week.Start().Location(),
			RangeStart: week.Start(),
			RangeEnd:   week.End(),
		})
		if err != nil {
			appLog.Error("store: expand feed failed", err, "feed", id)
			continue
		}
		for _, ev := range ics.WeekEvents(exp.Occurrences, week) {
			ev.SourceID = id
			out = append(out, ev)
		}
	}
	return out
}

// Get looks up a local event by ID.
func (s *Store) Get(id string) (model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.local[i], nil
	}
	return model.CalendarEvent{}, ErrNotFound
}

// Upsert validates ev and stores it. An empty ID creates a new event with
// a generated UUID; a known ID replaces that event. The stored event is
// returned.
//
// Only required fields and the date format are checked here. Day range and
// time ordering are judged by the grid when the event is placed.
func (s *Store) Upsert(ev model.CalendarEvent) (model.CalendarEvent, error) {
	if err := s.validate.Struct(ev); err != nil {
		return model.CalendarEvent{}, fmt.Errorf("store: invalid event: %w", err)
	}
	if ev.SourceID != "" {
		return model.CalendarEvent{}, ErrReadOnly
	}
	ev.Color = model.ParseColor(string(ev.Color))

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if i := s.indexOf(ev.ID); i >= 0 {
		s.local[i] = ev
		appLog.Debug("store: event updated", "id", ev.ID)
		return ev, nil
	}
	s.local = append(s.local, ev)
	appLog.Debug("store: event created", "id", ev.ID)
	return ev, nil
}

// Delete removes a local event.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.local = append(s.local[:i], s.local[i+1:]...)
	return nil
}

// ReplaceFeed swaps the parsed snapshot of one feed. A nil or empty slice
// clears the feed.
func (s *Store) ReplaceFeed(feedID string, events []ics.ParsedEvent) {
	snap := make([]ics.ParsedEvent, len(events))
	copy(snap, events)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap) == 0 {
		delete(s.feeds, feedID)
		return
	}
	s.feeds[feedID] = snap
	appLog.Debug("store: feed replaced", "feed", feedID, "events", len(snap))
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i, ev := range s.local {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
