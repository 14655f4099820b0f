package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// Feed is one ICS subscription.
type Feed struct {
	ID    string
	URL   string
	Color model.ColorTag
}

// FeedBody is the payload obtained for a feed, fresh or from cache.
type FeedBody struct {
	Feed      Feed
	Body      []byte
	FromCache bool // true when the cached body was reused (304 or fetch failure)
}

// cacheMeta holds HTTP validators for a single feed URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests
// (ETag / Last-Modified) and keeps the last good body on disk so a feed
// outage does not empty the timetable.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. An empty cacheDir
// uses ./var/ics-cache; a nil client gets a 15s timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// FetchAll fetches every feed in order. Failed feeds are logged and left
// out of the results; their errors are joined into the returned error.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FeedBody, error) {
	results := make([]FeedBody, 0, len(feeds))
	var errs []error

	for _, feed := range feeds {
		res, err := f.Fetch(ctx, feed)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			appLog.Error("ics fetch failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// Fetch downloads one feed, honoring the cached validators. Network errors
// and non-OK statuses fall back to the cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (FeedBody, error) {
	if feed.URL == "" {
		return FeedBody{}, errors.New("ics: feed URL is empty")
	}

	dir := f.cacheDirFor(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FeedBody{}, err
	}

	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(cause error) (FeedBody, error) {
		if len(cached) == 0 {
			return FeedBody{}, cause
		}
		appLog.Warn("ics fetch failed, using cached body", "id", feed.ID, "url", redactURL(feed.URL), "cause", cause.Error())
		return FeedBody{Feed: feed, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FeedBody{}, err
	}
	if meta.URL == feed.URL {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", redactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		meta = cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, meta, body); err != nil {
			// The fresh body is still good; only the next conditional request suffers.
			appLog.Error("ics cache save failed", err, "id", feed.ID, "url", redactURL(feed.URL))
		}
		appLog.Info("ics fetch success", "id", feed.ID, "url", redactURL(feed.URL), "bytes", len(body))
		return FeedBody{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FeedBody{}, errors.New("ics: 304 Not Modified but no cached body")
		}
		appLog.Debug("ics feed not modified", "id", feed.ID)
		return FeedBody{Feed: feed, Body: cached, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("ics: unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed secret tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
