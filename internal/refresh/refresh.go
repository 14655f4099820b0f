// Package refresh keeps the parsed ICS feeds in the store current.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"weekgrid/internal/ics"
	appLog "weekgrid/internal/log"
)

// FeedFetcher is the subset of *ics.Fetcher the refresher needs.
type FeedFetcher interface {
	FetchAll(ctx context.Context, feeds []ics.Feed) ([]ics.FeedBody, error)
}

// EventSink receives the parsed events of each feed. Expansion into a
// week happens when that week is read.
type EventSink interface {
	ReplaceFeed(feedID string, events []ics.ParsedEvent)
}

// Refresher fetches and parses feeds, then replaces each feed's snapshot in
// the sink. RunOnce calls are serialized.
type Refresher struct {
	feeds   []ics.Feed
	fetcher FeedFetcher
	sink    EventSink

	mu   sync.Mutex
	cron *cron.Cron
}

// New builds a Refresher.
func New(feeds []ics.Feed, fetcher FeedFetcher, sink EventSink) *Refresher {
	return &Refresher{feeds: feeds, fetcher: fetcher, sink: sink}
}

// RunOnce refreshes every feed. Feeds that fail to fetch or parse keep
// their previous snapshot; their errors are returned joined after all feeds
// were processed.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.feeds) == 0 {
		return nil
	}

	started := time.Now()

	bodies, fetchErr := r.fetcher.FetchAll(ctx, r.feeds)

	total := 0
	errs := []error{fetchErr}
	for _, b := range bodies {
		parsed, err := ics.ParseICS(b.Feed, b.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh: parse %s: %w", b.Feed.ID, err))
			continue
		}
		r.sink.ReplaceFeed(b.Feed.ID, parsed)
		total += len(parsed)
	}

	appLog.Info("refresh completed",
		"feeds", len(r.feeds),
		"fetched", len(bodies),
		"events", total,
		"elapsed", time.Since(started).String(),
	)

	return errors.Join(errs...)
}

// Start schedules RunOnce on spec (standard 5-field cron). The returned
// error reports an invalid spec. Stop must be called to release the
// scheduler.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	appLog.Info("refresh scheduler started", "spec", spec, "feeds", len(r.feeds))
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
