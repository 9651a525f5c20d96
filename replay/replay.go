// Package replay reproduces a quantized grid on the external canvas site
// by simulating per-cell clicks through a headless browser, then triggers
// the site's publish flow and scrapes the resulting public URL.
package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/setanarut/pixelpress/grid"
	"github.com/setanarut/pixelpress/palette"
)

// DiscoveryError means an expected UI element was not found. This is the
// primary signal that the target site's DOM shape has changed.
type DiscoveryError struct {
	What string
}

func (e *DiscoveryError) Error() string {
	return "replay: " + e.What
}

// Site describes the uncontrolled target page: selectors, timings, and
// the substring identifying the gallery link after a successful publish.
type Site struct {
	URL           string
	CellSelector  string
	ColorSelector string
	TitleSelector string
	GalleryHost   string

	NavigateTimeout time.Duration
	SettleDelay     time.Duration // after navigation and initial publish
	ConfirmSettle   time.Duration // after modal confirm, site processes and navigates
	ClickDelay      time.Duration // between cell activations, tolerates site debouncing
}

// DefaultSite matches the currently observed DOM of the target site.
func DefaultSite(url string) Site {
	return Site{
		URL:             url,
		CellSelector:    "#paint-grid input[type=checkbox]",
		ColorSelector:   "[role=radio]",
		TitleSelector:   "input[type=text]",
		GalleryHost:     "gallery.",
		NavigateTimeout: 60 * time.Second,
		SettleDelay:     2 * time.Second,
		ConfirmSettle:   4 * time.Second,
		ClickDelay:      25 * time.Millisecond,
	}
}

// Driver is one live browser session against the target site. The
// production implementation is chromedp; tests substitute a fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CellCount(ctx context.Context) (int, error)
	SelectColor(ctx context.Context, idx int) error
	ClickCell(ctx context.Context, idx int) error
	Buttons(ctx context.Context) ([]ButtonCandidate, error)
	ClickButton(ctx context.Context, index int) error
	SetTitle(ctx context.Context, value string) error
	Links(ctx context.Context) ([]string, error)
	Close() error
}

// Engine replays grids against a Site. Steps within one job are strictly
// sequential; simultaneous clicks would race the site's debounced state.
// Concurrent jobs each get their own Driver session.
type Engine struct {
	Site      Site
	NewDriver func(ctx context.Context, site Site) (Driver, error)
	Log       *logrus.Logger
}

// NewEngine returns an engine backed by headless Chrome.
func NewEngine(site Site, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Site: site, NewDriver: NewChromeDriver, Log: log}
}

// MaxTitleLen bounds the fallback title derived from the prompt.
const MaxTitleLen = 60

// FallbackTitle truncates the prompt for use when no title was supplied.
func FallbackTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) <= MaxTitleLen {
		return prompt
	}
	return prompt[:MaxTitleLen]
}

// DrawAndPublish runs the full paint-and-publish sequence and returns the
// published gallery URL. The sequence is linear with no backward
// transitions; any failure aborts and the browser session is always
// released. Partial paint progress is not rolled back: a retry re-runs
// everything from launch. A missing gallery link after a confirmed
// publish is a soft failure returned as an empty URL with a nil error.
func (e *Engine) DrawAndPublish(ctx context.Context, g *grid.Grid, pal palette.Palette, title string) (string, error) {
	drv, err := e.NewDriver(ctx, e.Site)
	if err != nil {
		return "", fmt.Errorf("replay: launch: %w", err)
	}
	defer drv.Close()

	if err := drv.Navigate(ctx, e.Site.URL); err != nil {
		return "", fmt.Errorf("replay: navigate: %w", err)
	}

	cells, err := drv.CellCount(ctx)
	if err != nil {
		return "", fmt.Errorf("replay: discover cells: %w", err)
	}
	if cells == 0 {
		return "", &DiscoveryError{What: "no grid cells found"}
	}
	e.Log.WithFields(logrus.Fields{"cells": cells}).Info("grid controls discovered")

	if err := e.paint(ctx, drv, g, pal, cells); err != nil {
		return "", err
	}

	if err := e.clickPublish(ctx, drv, MatchExactID("publish"), MatchMaxY()); err != nil {
		return "", err
	}
	e.sleep(ctx, e.Site.SettleDelay)

	if err := drv.SetTitle(ctx, title); err != nil {
		return "", fmt.Errorf("replay: set title: %w", err)
	}

	if err := e.clickPublish(ctx, drv, MatchLastInDocument()); err != nil {
		return "", err
	}
	e.sleep(ctx, e.Site.ConfirmSettle)

	url, err := e.scrapeGalleryURL(ctx, drv)
	if err != nil {
		return "", err
	}
	if url == "" {
		e.Log.Warn("publish confirmed but gallery link not found")
	}
	return url, nil
}

// paint replays the grid color-major: for each drawable palette index in
// ascending order, select that color once, then activate its cells in
// row-major scan order. Colors with no assigned cells are skipped.
func (e *Engine) paint(ctx context.Context, drv Driver, g *grid.Grid, pal palette.Palette, cellCount int) error {
	for idx := 1; idx < len(pal); idx++ {
		targets := g.CellsWith(idx)
		if len(targets) == 0 {
			continue
		}
		if err := drv.SelectColor(ctx, idx); err != nil {
			return fmt.Errorf("replay: select color %q: %w", pal[idx].Name, err)
		}
		for _, rc := range targets {
			cell := rc[0]*grid.Cols + rc[1]
			if cell >= cellCount {
				return &DiscoveryError{What: fmt.Sprintf("cell %d out of range (%d controls)", cell, cellCount)}
			}
			if err := drv.ClickCell(ctx, cell); err != nil {
				return fmt.Errorf("replay: paint cell %d: %w", cell, err)
			}
			e.sleep(ctx, e.Site.ClickDelay)
		}
		e.Log.WithFields(logrus.Fields{
			"color": pal[idx].Name,
			"cells": len(targets),
		}).Info("color painted")
	}
	return nil
}

// clickPublish finds a button whose visible text contains "Publish" using
// the given ranked matchers and clicks it.
func (e *Engine) clickPublish(ctx context.Context, drv Driver, matchers ...Matcher) error {
	cands, err := drv.Buttons(ctx)
	if err != nil {
		return fmt.Errorf("replay: scan buttons: %w", err)
	}
	btn, ok := pickButton(cands, "Publish", matchers...)
	if !ok {
		return &DiscoveryError{What: "no publish button found"}
	}
	if err := drv.ClickButton(ctx, btn.Index); err != nil {
		return fmt.Errorf("replay: click publish: %w", err)
	}
	return nil
}

// scrapeGalleryURL scans hyperlinks for one pointing at the gallery host.
func (e *Engine) scrapeGalleryURL(ctx context.Context, drv Driver) (string, error) {
	links, err := drv.Links(ctx)
	if err != nil {
		return "", fmt.Errorf("replay: scan links: %w", err)
	}
	for _, href := range links {
		if strings.Contains(href, e.Site.GalleryHost) {
			return href, nil
		}
	}
	return "", nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
