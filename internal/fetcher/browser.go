package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// BrowserFetcher implements Renderer using a headless browser via Rod.
// One browser process serves the whole run; every navigation gets its own
// incognito context that is disposed before the call returns.
type BrowserFetcher struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	cfg        *config.BrowserConfig
	stealthCfg *StealthConfig
	logger     *slog.Logger
}

// NewBrowserFetcher launches a headless browser and connects to it. Pages
// are created through the stealth evasions when browser.stealth is set.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    &cfg.Browser,
		logger: logger.With("component", "browser_fetcher"),
	}
	if cfg.Browser.Stealth {
		bf.stealthCfg = DefaultStealthConfig(cfg.Fetcher.UserAgent)
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		bf.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready",
		"headless", bf.cfg.Headless,
		"stealth", bf.stealthCfg != nil,
	)

	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.cfg.Bin != "" {
		l = l.Bin(bf.cfg.Bin)
	}
	if bf.stealthCfg != nil {
		l = bf.stealthCfg.applyLaunch(l)
	}

	bf.launcher = l
	return l.Launch()
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, rawURL string, _ http.Header) (page *types.Page, err error) {
	start := time.Now()
	defer bf.recoverInto(rawURL, &err)

	p, release, err := bf.openPage(ctx)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	defer release()

	if err := bf.load(ctx, p, rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if info, err := p.Info(); err == nil && info != nil && info.URL != "" {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", rawURL,
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return &types.Page{
		URL:           rawURL,
		FinalURL:      finalURL,
		StatusCode:    http.StatusOK, // Rod doesn't easily expose status codes
		ContentType:   "text/html",
		Body:          []byte(html),
		Rendered:      true,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}, nil
}

// Rows loads rawURL and reads the first anchor of each of the first limit
// rows matched by the first selector that yields any element.
func (bf *BrowserFetcher) Rows(ctx context.Context, rawURL string, selectors []string, limit int) (rows []types.RenderedRow, err error) {
	defer bf.recoverInto(rawURL, &err)

	p, release, err := bf.openPage(ctx)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	defer release()

	if err := bf.load(ctx, p, rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	var matched rod.Elements
	var used string
	for _, sel := range selectors {
		els, err := queryAll(p, sel)
		if err != nil {
			bf.logger.Debug("row selector failed", "url", rawURL, "selector", sel, "error", err)
			continue
		}
		if len(els) > 0 {
			matched, used = els, sel
			break
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	for i, el := range matched {
		if i >= limit {
			break
		}
		row, ok := readRow(el)
		if ok {
			rows = append(rows, row)
		}
	}

	bf.logger.Debug("rendered rows extracted", "url", rawURL, "selector", used, "matched", len(matched), "rows", len(rows))
	return rows, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
	}
	if bf.launcher != nil {
		bf.launcher.Kill()
	}
	return err
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// openPage creates an incognito context and a page inside it. The returned
// release func closes both and must be called on every path.
func (bf *BrowserFetcher) openPage(ctx context.Context) (*rod.Page, func(), error) {
	incognito, err := bf.browser.Incognito()
	if err != nil {
		return nil, nil, fmt.Errorf("create browser context: %w", err)
	}

	var page *rod.Page
	if bf.stealthCfg != nil {
		page, err = bf.stealthCfg.newPage(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, nil, fmt.Errorf("create page: %w", err)
	}

	release := func() {
		if err := page.Close(); err != nil {
			bf.logger.Debug("page close failed", "error", err)
		}
		if err := incognito.Close(); err != nil {
			bf.logger.Debug("browser context close failed", "error", err)
		}
	}
	return page.Context(ctx), release, nil
}

// load navigates, waits for the network to go idle, then waits the settle
// delay so late widget scripts can finish mutating the DOM.
func (bf *BrowserFetcher) load(ctx context.Context, page *rod.Page, rawURL string) error {
	p := page.Timeout(bf.cfg.NavTimeout)
	defer p.CancelTimeout()

	waitIdle := p.WaitRequestIdle(bf.cfg.IdleWindow, nil, nil, nil)
	if err := p.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	waitIdle()

	if bf.cfg.SettleDelay > 0 {
		select {
		case <-time.After(bf.cfg.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// recoverInto turns a panic from the browser driver into an unavailable error.
func (bf *BrowserFetcher) recoverInto(rawURL string, err *error) {
	if r := recover(); r != nil {
		bf.logger.Error("browser panic recovered", "url", rawURL, "panic", r)
		*err = &types.FetchError{URL: rawURL, Err: fmt.Errorf("browser panic: %v", r)}
	}
}

func queryAll(p *rod.Page, selector string) (rod.Elements, error) {
	if expr, ok := strings.CutPrefix(selector, parser.XPathPrefix); ok {
		return p.ElementsX(expr)
	}
	return p.Elements(selector)
}

// readRow reads text, href and inline handler of the row's first anchor.
// Rows without an anchor fall back to the row's own click handler.
func readRow(row *rod.Element) (types.RenderedRow, bool) {
	anchors, err := row.Elements("a")
	if err != nil || len(anchors) == 0 {
		handler := attr(row, "onclick")
		if handler == "" {
			return types.RenderedRow{}, false
		}
		text, _ := row.Text()
		return types.RenderedRow{Text: text, Handler: handler}, true
	}

	a := anchors.First()
	text, _ := a.Text()
	handler := attr(a, "onclick")
	if handler == "" {
		handler = attr(row, "onclick")
	}
	return types.RenderedRow{
		Text:    text,
		Href:    attr(a, "href"),
		Handler: handler,
	}, true
}

func attr(el *rod.Element, name string) string {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}
