package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"weekgrid/internal/config"
	"weekgrid/internal/grid"
	"weekgrid/internal/model"
)

// weekResponse is the JSON shape of /api/week and the navigation endpoints.
type weekResponse struct {
	Label      string            `json:"label"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	Days       []dayDTO          `json:"days"`
	HourLabels []string          `json:"hour_labels"`
	Grid       config.GridConfig `json:"grid"`
	Events     []placedDTO       `json:"events"`
	Dropped    int               `json:"dropped"`
	Problems   []string          `json:"problems,omitempty"`
}

type dayDTO struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Today bool   `json:"today"`
}

// placedDTO flattens grid.PlacedEvent for JSON.
type placedDTO struct {
	model.CalendarEvent
	Date   string  `json:"date,omitempty"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Lane   int     `json:"lane"`
	Lanes  int     `json:"lanes"`
}

// monthResponse is the compact month overview of GET /api/month.
type monthResponse struct {
	Label   string   `json:"label"`
	Headers []string `json:"headers"`
	Leading int      `json:"leading"`
	Rows    int      `json:"rows"`
	Days    []dayDTO `json:"days"`
}

type upsertResponse struct {
	Event    model.CalendarEvent `json:"event"`
	Warnings []string            `json:"warnings,omitempty"`
}

// buildWeek places the stored events on week.
func (s *Server) buildWeek(week grid.WeekWindow) weekResponse {
	res := s.placer.Place(s.events.ForWeek(week), week)

	today := s.now().In(week.Start().Location())
	resp := weekResponse{
		Label:      week.Label(),
		Start:      week.Start().Format(time.DateOnly),
		End:        week[grid.DaysPerWeek-1].Format(time.DateOnly),
		Days:       make([]dayDTO, 0, grid.DaysPerWeek),
		HourLabels: s.placer.Slots.HourLabels(s.cfg.Grid.DayEndHour),
		Grid:       s.cfg.Grid,
		Events:     make([]placedDTO, 0, len(res.Placed)),
		Dropped:    res.Dropped,
	}
	cols := s.placer.Columns
	if cols <= 0 {
		cols = grid.DaysPerWeek
	}
	for i, d := range week {
		if i >= cols {
			break
		}
		resp.Days = append(resp.Days, dayDTO{
			Date:  d.Format(time.DateOnly),
			Name:  grid.FrenchDay(d.Weekday()),
			Today: sameDate(d, today),
		})
	}
	for _, p := range res.Placed {
		dto := placedDTO{
			CalendarEvent: p.CalendarEvent,
			Top:           p.TopOffset,
			Height:        p.HeightOffset,
			Left:          p.LeftFraction,
			Width:         p.WidthFraction,
			Lane:          p.Lane,
			Lanes:         p.Lanes,
		}
		if !p.Date.IsZero() {
			dto.Date = p.Date.Format(time.DateOnly)
		}
		resp.Events = append(resp.Events, dto)
	}
	for _, err := range res.Problems {
		resp.Problems = append(resp.Problems, err.Error())
	}
	return resp
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WriteWeek encodes the placed grid for week as indented JSON, in the same
// shape as GET /api/week.
func (s *Server) WriteWeek(w io.Writer, week grid.WeekWindow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.buildWeek(week))
}

// handleMonth returns the month overview containing ?date= (default
// today), columns starting on the configured first weekday.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.cfg.Location())
	anchor := today
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.ParseInLocation(time.DateOnly, d, s.cfg.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		anchor = t
	}

	mo := grid.MonthGrid(anchor, s.cfg.FirstWeekday())
	resp := monthResponse{
		Label:   mo.Label,
		Headers: mo.Headers(),
		Leading: mo.Leading,
		Rows:    mo.Rows(),
		Days:    make([]dayDTO, 0, len(mo.Days)),
	}
	for _, d := range mo.Days {
		resp.Days = append(resp.Days, dayDTO{
			Date:  d.Format(time.DateOnly),
			Name:  grid.FrenchDay(d.Weekday()),
			Today: sameDate(d, today),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
