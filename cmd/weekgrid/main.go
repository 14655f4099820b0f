package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weekgrid/internal/capture"
	"weekgrid/internal/config"
	"weekgrid/internal/grid"
	"weekgrid/internal/ics"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/nav"
	"weekgrid/internal/refresh"
	"weekgrid/internal/render"
	"weekgrid/internal/store"
	"weekgrid/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath  string
	listen      string
	date        string
	once        bool
	dump        bool
	capturePath string
}

func main() {
	appLog.Info("weekgrid starting", "version", "0.1.0")
	defer appLog.Sync()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI -listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"events", len(conf.Events),
		"ics_count", len(conf.ICS),
		"once", flags.once,
		"dump", flags.dump,
		"capture", flags.capturePath,
	)

	events := store.New(conf.Events)
	navigator := nav.New(conf.Location(), nav.WithFirstWeekday(conf.FirstWeekday()))
	if flags.date != "" {
		d, err := time.ParseInLocation(time.DateOnly, flags.date, conf.Location())
		if err != nil {
			appLog.Error("invalid -date, expected YYYY-MM-DD", err, "date", flags.date)
			os.Exit(2)
		}
		navigator.Set(d)
	}

	fetcher := ics.NewFetcher(conf.CacheDir, nil)
	refresher := refresh.New(conf.Feeds(), fetcher, events)
	server := web.NewServer(conf, events, navigator, refresher)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once || flags.dump || flags.capturePath != "" {
		if err := refresher.RunOnce(ctx); err != nil {
			// Partial feed failures still leave a usable grid.
			appLog.Error("initial refresh had errors", err)
		}
	}

	switch {
	case flags.once:
		if err := server.WriteWeek(os.Stdout, navigator.Week()); err != nil {
			appLog.Error("failed to write week", err)
			os.Exit(1)
		}
		return

	case flags.dump:
		if err := dumpWeek(conf, events, navigator.Week()); err != nil {
			appLog.Error("failed to dump week", err)
			os.Exit(1)
		}
		return

	case flags.capturePath != "":
		if err := captureWeek(ctx, conf, server, navigator.Week(), flags.capturePath); err != nil {
			appLog.Error("capture failed", err, "path", flags.capturePath)
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := refresher.RunOnce(ctx); err != nil {
			appLog.Error("initial refresh had errors", err)
		}
	}()
	if err := refresher.Start(ctx, conf.RefreshCron); err != nil {
		appLog.Error("failed to start refresh scheduler", err)
		os.Exit(1)
	}
	defer refresher.Stop()

	if err := server.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		refresher.Stop()
		os.Exit(1)
	}

	appLog.Info("weekgrid exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/weekgrid/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.date, "date", "", "Initial week anchor, YYYY-MM-DD (default today)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh feeds once, print the week as JSON and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Refresh feeds once, print the week as a text grid and exit")
	flag.StringVar(&cfg.capturePath, "capture", "", "Serve, screenshot /week to this PNG path and exit")

	flag.Parse()

	return cfg
}

// dumpWeek prints the text grid. The text renderer works in slot units, so
// placement uses a slot height of 1 regardless of the configured pixels.
func dumpWeek(conf *config.Config, events *store.Store, week grid.WeekWindow) error {
	placer := conf.Grid.Placer()
	placer.SlotHeight = 1
	res := placer.Place(events.ForWeek(week), week)
	return render.Text(os.Stdout, week, res, render.TextOptions{
		Slots:   conf.Grid.SlotMapper(),
		EndHour: conf.Grid.DayEndHour,
	})
}

// captureWeek serves the HTML view, screenshots it and shuts the server down.
func captureWeek(ctx context.Context, conf *config.Config, server *web.Server, week grid.WeekWindow, path string) error {
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(srvCtx) }()

	base := "http://" + dialAddr(conf.Listen)
	if err := waitHealthy(ctx, base+"/health", 5*time.Second); err != nil {
		return err
	}

	opts := capture.Options{
		URL:        fmt.Sprintf("%s/week?date=%s", base, week.Start().Format(time.DateOnly)),
		OutputPath: path,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	capErr := capture.WeekPNG(ctx, opts)

	stop()
	if err := <-errCh; err != nil {
		return errors.Join(capErr, err)
	}
	return capErr
}

// dialAddr turns a listen address into one a local client can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func waitHealthy(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w", url, ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}
