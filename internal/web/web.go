package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"weekgrid/internal/config"
	"weekgrid/internal/grid"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/nav"
	"weekgrid/internal/store"
)

// Refresher re-pulls the ICS feeds.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Server exposes the timetable over HTTP: a JSON API for the week grid and
// events, and an HTML rendering of the grid.
type Server struct {
	cfg       *config.Config
	events    *store.Store
	nav       *nav.Navigator
	placer    grid.Placer
	refresher Refresher
	limiter   *clientLimiter
	mux       *http.ServeMux

	// refresh coalesces POST /api/refresh: at most one run in flight and
	// one queued behind it.
	refresh struct {
		sync.Mutex
		running bool
		pending bool
	}

	now func() time.Time
}

// NewServer constructs a new Server. refresher may be nil.
func NewServer(cfg *config.Config, events *store.Store, navigator *nav.Navigator, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		events:    events,
		nav:       navigator,
		placer:    cfg.Grid.Placer(),
		refresher: refresher,
		limiter:   newClientLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with rate limiting and, when
// configured, basic auth applied.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		h = s.basicAuthMiddleware(h)
	}
	return s.limiter.middleware(h)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("POST /api/week/prev", s.handleNavigate(s.nav.Prev))
	s.mux.HandleFunc("POST /api/week/next", s.handleNavigate(s.nav.Next))
	s.mux.HandleFunc("POST /api/week/today", s.handleNavigate(s.nav.Today))
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleUpsertEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	s.mux.HandleFunc("GET /week", s.handleWeekHTML)
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", staticHandler()))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="weekgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// weekParam resolves the optional date query parameter to its week. It
// writes a 400 and reports false when the date is malformed.
func (s *Server) weekParam(w http.ResponseWriter, r *http.Request) (grid.WeekWindow, bool) {
	d := r.URL.Query().Get("date")
	if d == "" {
		return s.nav.Week(), true
	}
	t, err := time.ParseInLocation(time.DateOnly, d, s.cfg.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return grid.WeekWindow{}, false
	}
	return s.nav.WeekOf(t), true
}

// handleWeek returns the placed grid for one week.
//
// GET /api/week?date=YYYY-MM-DD
//   - date: any day of the wanted week; defaults to the navigator anchor.
//     Asking for a date does not move the navigator.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	week, ok := s.weekParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.buildWeek(week))
}

// handleNavigate moves the navigator and answers with the new week.
func (s *Server) handleNavigate(move func() grid.WeekWindow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week := move()
		appLog.Debug("week navigation", "path", r.URL.Path, "week_start", week.Start().Format(time.DateOnly))
		writeJSON(w, http.StatusOK, s.buildWeek(week))
	}
}

// handleRefresh starts a feed refresh in the background. While one runs,
// further requests collapse into a single follow-up run.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotFound, "no feeds configured")
		return
	}
	status := "queued"
	if s.triggerRefresh() {
		status = "started"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

// triggerRefresh reports whether a new run was started.
func (s *Server) triggerRefresh() bool {
	s.refresh.Lock()
	defer s.refresh.Unlock()
	if s.refresh.running {
		s.refresh.pending = true
		return false
	}
	s.refresh.running = true
	go s.refreshLoop()
	return true
}

func (s *Server) refreshLoop() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.refresher.RunOnce(ctx); err != nil {
			appLog.Error("requested refresh failed", err)
		}
		cancel()

		s.refresh.Lock()
		if !s.refresh.pending {
			s.refresh.running = false
			s.refresh.Unlock()
			return
		}
		s.refresh.pending = false
		s.refresh.Unlock()
	}
}

// handleListEvents lists local events, or with ?date= every event drawn on
// that week including feed occurrences.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("date") == "" {
		writeJSON(w, http.StatusOK, s.events.List())
		return
	}
	week, ok := s.weekParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.events.ForWeek(week))
}

// handleUpsertEvent creates an event (empty id) or replaces an existing one.
func (s *Server) handleUpsertEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.CalendarEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.events.Upsert(ev)
	switch {
	case errors.Is(err, store.ErrReadOnly):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Report placement problems now rather than leaving the event silently
	// missing from the grid. Dated events are checked against their own week.
	week := s.nav.Week()
	if saved.Date != "" {
		if d, err := time.ParseInLocation(time.DateOnly, saved.Date, s.cfg.Location()); err == nil {
			week = s.nav.WeekOf(d)
		}
	}
	res := s.placer.Place([]model.CalendarEvent{saved}, week)
	resp := upsertResponse{Event: saved}
	for _, p := range res.Problems {
		resp.Warnings = append(resp.Warnings, p.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
