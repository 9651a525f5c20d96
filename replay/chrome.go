package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// discoverTimeout bounds condition-based waits for expected elements.
// Past it we report what we saw instead of hanging on a drifted DOM.
const discoverTimeout = 10 * time.Second

// chromeDriver drives one headless Chrome session via chromedp.
type chromeDriver struct {
	site        Site
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	cells  []*cdp.Node
	colors []*cdp.Node
}

// NewChromeDriver launches a headless Chrome session with sandboxing
// disabled for containerized execution.
func NewChromeDriver(parent context.Context, site Site) (Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface
	// here rather than inside the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}
	return &chromeDriver{site: site, ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(d.ctx, d.site.NavigateTimeout)
	defer cancel()
	// The site renders its grid client-side; body readiness plus a fixed
	// settle delay is the closest observable to network idleness.
	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.site.SettleDelay),
	)
}

func (d *chromeDriver) CellCount(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(d.ctx, discoverTimeout)
	defer cancel()
	err := chromedp.Run(runCtx,
		chromedp.Nodes(d.site.CellSelector, &d.cells, chromedp.ByQueryAll),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		// Nothing matched within the wait bound; the engine turns a zero
		// count into a discovery error.
		d.cells = nil
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(d.cells), nil
}

func (d *chromeDriver) SelectColor(ctx context.Context, idx int) error {
	if d.colors == nil {
		runCtx, cancel := context.WithTimeout(d.ctx, discoverTimeout)
		err := chromedp.Run(runCtx,
			chromedp.Nodes(d.site.ColorSelector, &d.colors, chromedp.ByQueryAll),
		)
		cancel()
		if err != nil {
			return err
		}
	}
	if idx < 0 || idx >= len(d.colors) {
		return &DiscoveryError{What: fmt.Sprintf("color selector %d not found (%d present)", idx, len(d.colors))}
	}
	return chromedp.Run(d.ctx, chromedp.MouseClickNode(d.colors[idx]))
}

func (d *chromeDriver) ClickCell(ctx context.Context, idx int) error {
	if idx < 0 || idx >= len(d.cells) {
		return &DiscoveryError{What: fmt.Sprintf("cell control %d not found", idx)}
	}
	return chromedp.Run(d.ctx, chromedp.MouseClickNode(d.cells[idx]))
}

// buttonScanJS collects every button's text, id, document order, and
// vertical midpoint for the ranked selector strategy.
const buttonScanJS = `Array.from(document.querySelectorAll("button")).map((b, i) => {
	const r = b.getBoundingClientRect();
	return {text: b.innerText || "", id: b.id || "", index: i, y: r.top + r.height / 2};
})`

func (d *chromeDriver) Buttons(ctx context.Context) ([]ButtonCandidate, error) {
	var raw []struct {
		Text  string  `json:"text"`
		ID    string  `json:"id"`
		Index int     `json:"index"`
		Y     float64 `json:"y"`
	}
	runCtx, cancel := context.WithTimeout(d.ctx, discoverTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(buttonScanJS, &raw)); err != nil {
		return nil, err
	}
	out := make([]ButtonCandidate, len(raw))
	for i, r := range raw {
		out[i] = ButtonCandidate{Text: r.Text, ID: r.ID, Index: r.Index, Y: r.Y}
	}
	return out, nil
}

func (d *chromeDriver) ClickButton(ctx context.Context, index int) error {
	js := fmt.Sprintf(`document.querySelectorAll("button")[%d].click()`, index)
	return chromedp.Run(d.ctx, chromedp.Evaluate(js, nil))
}

func (d *chromeDriver) SetTitle(ctx context.Context, value string) error {
	runCtx, cancel := context.WithTimeout(d.ctx, discoverTimeout)
	defer cancel()
	// SetValue replaces any prefilled text, matching the select-all and
	// overwrite behavior of the manual flow.
	return chromedp.Run(runCtx,
		chromedp.WaitVisible(d.site.TitleSelector, chromedp.ByQuery),
		chromedp.SetValue(d.site.TitleSelector, value, chromedp.ByQuery),
	)
}

const linkScanJS = `Array.from(document.querySelectorAll("a[href]")).map(a => a.href)`

func (d *chromeDriver) Links(ctx context.Context) ([]string, error) {
	var hrefs []string
	runCtx, cancel := context.WithTimeout(d.ctx, discoverTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(linkScanJS, &hrefs)); err != nil {
		return nil, err
	}
	return hrefs, nil
}

// Close releases the browser session. Safe to call on any failure branch.
func (d *chromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}
