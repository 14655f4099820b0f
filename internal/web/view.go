package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

//go:embed assets/*
var assetsFS embed.FS

var weekTmpl = template.Must(template.ParseFS(assetsFS, "assets/week.html"))

// Block background per color tag, matching the dashboard palette.
var colorCSS = map[model.ColorTag]template.CSS{
	model.ColorBlue:   "#3b82f6",
	model.ColorRed:    "#ef4444",
	model.ColorGreen:  "#22c55e",
	model.ColorYellow: "#eab308",
	model.ColorPurple: "#a855f7",
	model.ColorPink:   "#ec4899",
	model.ColorGray:   "#6b7280",
}

type weekView struct {
	Label      string
	Days       []dayView
	HourLabels []string
	HourHeight float64
	GridHeight float64
	Columns    []columnView
	Events     []eventView
	Dropped    int
}

type dayView struct {
	Name  string
	Num   int
	Today bool
}

type columnView struct {
	Left, Width float64
}

type eventView struct {
	Title, Group, Room string
	Start, End         string
	Top, Height        float64
	Left, Width        float64
	Color              template.CSS
}

// staticHandler serves the stylesheet and other embedded assets.
func staticHandler() http.Handler {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// handleWeekHTML renders the grid as a standalone page. Geometry is in
// pixels: TopOffset/HeightOffset are multiplied by the configured slot
// height. The root element carries data-ready="true" once rendered, which
// the screenshot capture waits on.
//
// GET /week?date=YYYY-MM-DD
func (s *Server) handleWeekHTML(w http.ResponseWriter, r *http.Request) {
	week := s.nav.Week()
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.ParseInLocation(time.DateOnly, d, s.cfg.Location())
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		week = s.nav.WeekOf(t)
	}
	resp := s.buildWeek(week)

	slotHeight := s.placer.SlotHeight
	if slotHeight == 0 {
		slotHeight = 1
	}
	slotsPerHour := 60 / float64(s.cfg.Grid.SlotMinutes)

	v := weekView{
		Label:      resp.Label,
		HourLabels: resp.HourLabels,
		HourHeight: slotHeight * slotsPerHour,
		GridHeight: slotHeight * float64(s.placer.Slots.SlotCount(s.cfg.Grid.DayEndHour)),
		Dropped:    resp.Dropped,
	}
	for i, d := range resp.Days {
		v.Days = append(v.Days, dayView{Name: d.Name, Num: week[i].Day(), Today: d.Today})
	}
	if n := len(resp.Days); n > 0 {
		width := 100 / float64(n)
		for i := range n {
			v.Columns = append(v.Columns, columnView{Left: float64(i) * width, Width: width})
		}
	}
	for _, e := range resp.Events {
		color, ok := colorCSS[model.ParseColor(string(e.Color))]
		if !ok {
			color = colorCSS[model.ColorBlue]
		}
		v.Events = append(v.Events, eventView{
			Title:  e.Title,
			Group:  e.Group,
			Room:   e.Room,
			Start:  e.StartTime,
			End:    e.EndTime,
			Top:    round2(e.Top),
			Height: round2(e.Height),
			Left:   round2(e.Left * 100),
			Width:  round2(e.Width * 100),
			Color:  color,
		})
	}

	var buf bytes.Buffer
	if err := weekTmpl.Execute(&buf, v); err != nil {
		appLog.Error("failed to render week page", err, "week_start", resp.Start)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
