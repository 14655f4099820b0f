// Package capture renders the /week page in headless Chromium and saves it
// as a PNG.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "weekgrid/internal/log"
)

// Viewport defaults fit a 7-column week from 08:00 to 20:00 at 48px per slot.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 1300
	DefaultTimeout = 30 * time.Second
)

// ReadySelector is the element the week page exposes once rendered.
const ReadySelector = `[data-ready="true"]`

// Options configures one screenshot.
type Options struct {
	// URL of the week page, e.g. "http://127.0.0.1:8080/week?date=2025-01-27".
	URL string
	// OutputPath receives the PNG. Its directory must exist.
	OutputPath string

	// Width and Height are the viewport in CSS pixels; zero uses defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture; zero uses DefaultTimeout.
	Timeout time.Duration

	// Username and Password are sent as basic auth when set.
	Username string
	Password string
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if filepath.Ext(o.OutputPath) != ".png" {
		return fmt.Errorf("capture: output %q must end in .png", o.OutputPath)
	}
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("capture: invalid viewport %dx%d", o.Width, o.Height)
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// WeekPNG navigates to opts.URL, waits for ReadySelector and writes a full
// page screenshot to opts.OutputPath.
func WeekPNG(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if opts.Username != "" {
		tasks = append(tasks, network.Enable(), chromedp.ActionFunc(func(ctx context.Context) error {
			return setBasicAuth(ctx, opts.Username, opts.Password)
		}))
	}
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}

	appLog.Info("week captured",
		"url", opts.URL,
		"path", opts.OutputPath,
		"bytes", len(png),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

func setBasicAuth(ctx context.Context, user, pass string) error {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}).Do(ctx)
}
