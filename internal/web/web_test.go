package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekgrid/internal/config"
	"weekgrid/internal/ics"
	"weekgrid/internal/model"
	"weekgrid/internal/nav"
	"weekgrid/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.RateLimit = config.RateLimitConfig{}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	now := time.Date(2025, time.January, 31, 10, 0, 0, 0, cfg.Location())
	clock := func() time.Time { return now }

	n := nav.New(cfg.Location(), nav.WithClock(clock), nav.WithFirstWeekday(cfg.FirstWeekday()))
	s := NewServer(cfg, store.New(cfg.Events), n, nil)
	s.now = clock
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeWeek(t *testing.T, rec *httptest.ResponseRecorder) weekResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp weekResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	rec := do(t, h, http.MethodGet, "/api/week", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/week", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/week", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWeekDefault(t *testing.T) {
	_, h := newTestServer(t, nil)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	assert.Equal(t, "27 janvier - 2 février, 2025", resp.Label)
	assert.Equal(t, "2025-01-27", resp.Start)
	assert.Equal(t, "2025-02-02", resp.End)
	require.Len(t, resp.Days, 7)
	assert.Equal(t, "Lun.", resp.Days[0].Name)
	assert.True(t, resp.Days[4].Today)
	assert.False(t, resp.Days[0].Today)
	assert.Len(t, resp.HourLabels, 13)
	assert.Equal(t, 0, resp.Dropped)

	require.Len(t, resp.Events, 5)
	first := resp.Events[0]
	assert.Equal(t, "Mathématiques", first.Title)
	assert.Equal(t, "2025-01-27", first.Date)
	assert.InDelta(t, 4*48.0, first.Top, 1e-9)
	assert.InDelta(t, 4*48.0, first.Height, 1e-9)
	assert.InDelta(t, 0, first.Left, 1e-9)
	assert.InDelta(t, 1.0/7, first.Width, 1e-9)
}

func TestWeekDateParam(t *testing.T) {
	s, h := newTestServer(t, nil)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week?date=2025-03-05", ""))
	assert.Equal(t, "2025-03-03", resp.Start)
	for _, d := range resp.Days {
		assert.False(t, d.Today)
	}

	// Looking at another week leaves the navigator alone.
	assert.Equal(t, 27, s.nav.Week()[0].Day())

	rec := do(t, h, http.MethodGet, "/api/week?date=05/03/2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekNavigation(t *testing.T) {
	_, h := newTestServer(t, nil)

	resp := decodeWeek(t, do(t, h, http.MethodPost, "/api/week/next", ""))
	assert.Equal(t, "2025-02-03", resp.Start)
	assert.Equal(t, "2025-02-03", resp.Events[0].Date)

	resp = decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	assert.Equal(t, "2025-02-03", resp.Start)

	decodeWeek(t, do(t, h, http.MethodPost, "/api/week/prev", ""))
	resp = decodeWeek(t, do(t, h, http.MethodPost, "/api/week/prev", ""))
	assert.Equal(t, "2025-01-20", resp.Start)

	resp = decodeWeek(t, do(t, h, http.MethodPost, "/api/week/today", ""))
	assert.Equal(t, "2025-01-27", resp.Start)

	rec := do(t, h, http.MethodGet, "/api/week/next", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// Monday 27 January 2025, 10:00 in Paris.
const mondayMeeting = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//weekgrid//test//FR\r\n" +
	"BEGIN:VEVENT\r\nUID:rentree\r\nSUMMARY:Réunion de rentrée\r\nLOCATION:Amphi B\r\n" +
	"DTSTART:20250127T090000Z\r\nDTEND:20250127T100000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func feedEvents(resp weekResponse) []placedDTO {
	var out []placedDTO
	for _, e := range resp.Events {
		if e.SourceID != "" {
			out = append(out, e)
		}
	}
	return out
}

func TestFeedEventsStayInTheirWeek(t *testing.T) {
	s, h := newTestServer(t, nil)
	parsed, err := ics.ParseICS(ics.Feed{ID: "ecole", URL: "https://example.com/ecole.ics"}, []byte(mondayMeeting))
	require.NoError(t, err)
	s.events.ReplaceFeed("ecole", parsed)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	feed := feedEvents(resp)
	require.Len(t, feed, 1)
	assert.Equal(t, "Réunion de rentrée", feed[0].Title)
	assert.Equal(t, "Amphi B", feed[0].Room)
	assert.Equal(t, "2025-01-27", feed[0].Date)
	assert.Equal(t, "10:00", feed[0].StartTime)
	assert.Equal(t, "11:00", feed[0].EndTime)

	resp = decodeWeek(t, do(t, h, http.MethodGet, "/api/week?date=2025-03-03", ""))
	assert.Len(t, resp.Events, 5)
	assert.Empty(t, feedEvents(resp))

	resp = decodeWeek(t, do(t, h, http.MethodPost, "/api/week/next", ""))
	assert.Equal(t, "2025-02-03", resp.Start)
	assert.Empty(t, feedEvents(resp))

	resp = decodeWeek(t, do(t, h, http.MethodPost, "/api/week/prev", ""))
	assert.Len(t, feedEvents(resp), 1)

	rec := do(t, h, http.MethodGet, "/api/events?date=2025-01-29", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 6)

	rec = do(t, h, http.MethodGet, "/api/events", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 5)

	rec = do(t, h, http.MethodGet, "/api/events?date=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatedEventAppearsInOneWeek(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events",
		`{"title":"Conseil de classe","room":"Salle 12","instructor":"M. Martin","date":"2025-02-06","start":"17:00","end":"19:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created upsertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Empty(t, created.Warnings)
	assert.Equal(t, "2025-02-06", created.Event.Date)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	assert.Len(t, resp.Events, 5)

	resp = decodeWeek(t, do(t, h, http.MethodGet, "/api/week?date=2025-02-06", ""))
	require.Len(t, resp.Events, 6)
	conseil := resp.Events[5]
	assert.Equal(t, "Conseil de classe", conseil.Title)
	assert.Equal(t, 3, conseil.DayIndex)
	assert.Equal(t, "2025-02-06", conseil.Date)
	assert.InDelta(t, 3.0/7, conseil.Left, 1e-9)

	resp = decodeWeek(t, do(t, h, http.MethodGet, "/api/week?date=2025-02-13", ""))
	assert.Len(t, resp.Events, 5)

	rec = do(t, h, http.MethodPost, "/api/events", `{"title":"X","date":"06/02/2025","start":"17:00","end":"19:00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMonth(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/month", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mo monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mo))
	assert.Equal(t, "janvier 2025", mo.Label)
	assert.Equal(t, []string{"L", "M", "M", "J", "V", "S", "D"}, mo.Headers)
	assert.Equal(t, 2, mo.Leading)
	assert.Equal(t, 5, mo.Rows)
	require.Len(t, mo.Days, 31)
	assert.True(t, mo.Days[30].Today)
	assert.False(t, mo.Days[0].Today)

	rec = do(t, h, http.MethodGet, "/api/month?date=2026-02-10", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mo))
	assert.Equal(t, "février 2026", mo.Label)
	assert.Equal(t, 6, mo.Leading)
	assert.Len(t, mo.Days, 28)

	rec = do(t, h, http.MethodGet, "/api/month?date=2026-13-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type gateRefresher struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *gateRefresher) RunOnce(context.Context) error {
	r.calls.Add(1)
	r.started <- struct{}{}
	<-r.release
	return nil
}

func TestRefreshRequestsCoalesce(t *testing.T) {
	s, h := newTestServer(t, nil)
	ref := &gateRefresher{started: make(chan struct{}, 8), release: make(chan struct{})}
	s.refresher = ref

	rec := do(t, h, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "started")

	select {
	case <-ref.started:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not start")
	}

	for range 5 {
		rec = do(t, h, http.MethodPost, "/api/refresh", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "queued")
	}
	close(ref.release)

	select {
	case <-ref.started:
	case <-time.After(2 * time.Second):
		t.Fatal("queued refresh did not run")
	}
	assert.Eventually(t, func() bool {
		s.refresh.Lock()
		defer s.refresh.Unlock()
		return !s.refresh.running
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), ref.calls.Load())
}

func TestRefreshWithoutFeeds(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertEvent(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events",
		`{"title":"Chimie","group":"Groupe C","day":5,"start":"08:00","end":"09:30","color":"Vert"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created upsertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Event.ID)
	assert.Equal(t, model.ColorGreen, created.Event.Color)
	assert.Empty(t, created.Warnings)

	update := created.Event
	update.EndTime = "10:00"
	body, err := json.Marshal(update)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/events", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 6)
	assert.Equal(t, "10:00", all[5].EndTime)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	require.Len(t, resp.Events, 6)
	assert.InDelta(t, 4*48.0, resp.Events[5].Height, 1e-9)
}

func TestUpsertEventRejects(t *testing.T) {
	_, h := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"title":`, http.StatusBadRequest},
		{"unknown field", `{"title":"X","start":"08:00","end":"09:00","salle":"B12"}`, http.StatusBadRequest},
		{"missing title", `{"start":"08:00","end":"09:00"}`, http.StatusUnprocessableEntity},
		{"missing end", `{"title":"X","start":"08:00"}`, http.StatusUnprocessableEntity},
		{"feed event", `{"title":"X","start":"08:00","end":"09:00","source_id":"ecole"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/events", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestUpsertEventOffGridWarns(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events", `{"id":"x","title":"Samedi+1","day":7,"start":"10:00","end":"11:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created upsertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Warnings, 1)
	assert.Contains(t, created.Warnings[0], "day index 7")

	rec = do(t, h, http.MethodPost, "/api/events", `{"id":"y","title":"Inversé","day":1,"start":"12:00","end":"10:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	assert.Len(t, resp.Events, 5)
	assert.Equal(t, 2, resp.Dropped)
	assert.Len(t, resp.Problems, 2)
}

func TestDeleteEvent(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodDelete, "/api/events/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/events/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeWeek(t, do(t, h, http.MethodGet, "/api/week", ""))
	assert.Len(t, resp.Events, 4)
}

func TestWeekHTML(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/week", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "27 janvier - 2 février, 2025")
	assert.Contains(t, body, "Mathématiques")
	assert.Contains(t, body, "top: 192px")
	assert.Contains(t, body, "#ef4444")
	assert.Contains(t, body, "20:00")

	rec = do(t, h, http.MethodGet, "/week?date=2025-02-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10 février - 16 février, 2025")

	rec = do(t, h, http.MethodGet, "/week?date=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/static/week.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".schedule")
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{PerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit")
}
