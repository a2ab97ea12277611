package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/grez-lucas/webbank/internal/scraper/browser"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
)

// submitJS posts fields to action the way a plain HTML form would, so the
// browser handles cookies, redirects and the resulting document itself.
const submitJS = `(action, fields) => {
	const form = document.createElement('form');
	form.method = 'POST';
	form.action = action;
	form.acceptCharset = document.characterSet;
	for (const [name, values] of Object.entries(fields || {})) {
		for (const value of values) {
			const input = document.createElement('input');
			input.type = 'hidden';
			input.name = name;
			input.value = value;
			form.appendChild(input);
		}
	}
	(document.body || document.documentElement).appendChild(form);
	HTMLFormElement.prototype.submit.call(form);
}`

type browserConfig struct {
	bin        string
	headless   bool
	controlURL string
	timeout    time.Duration
	hijacker   func(*rod.Hijack)
	logger     *zap.Logger
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*browserConfig)

func WithBrowserBin(path string) BrowserOption {
	return func(c *browserConfig) { c.bin = path }
}

func WithHeadless(headless bool) BrowserOption {
	return func(c *browserConfig) { c.headless = headless }
}

// WithControlURL connects to an already running browser instead of
// launching one.
func WithControlURL(u string) BrowserOption {
	return func(c *browserConfig) { c.controlURL = u }
}

func WithNavigationTimeout(d time.Duration) BrowserOption {
	return func(c *browserConfig) { c.timeout = d }
}

// WithHijacker routes every request through h, e.g. a HAR replayer.
func WithHijacker(h func(*rod.Hijack)) BrowserOption {
	return func(c *browserConfig) { c.hijacker = h }
}

func WithBrowserLogger(l *zap.Logger) BrowserOption {
	return func(c *browserConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// BrowserFetcher drives a stealth Chromium page through go-rod. It is meant
// for portals whose documents are only complete after scripts ran; the
// returned body is the flattened DOM, frames included.
type BrowserFetcher struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	cfg     browserConfig
}

func NewBrowserFetcher(opts ...BrowserOption) (*BrowserFetcher, error) {
	cfg := browserConfig{
		headless: true,
		timeout:  30 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	controlURL := cfg.controlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.headless).
			Set("disable-blink-features", "AutomationControlled").
			Set("no-first-run").
			Set("no-default-browser-check")
		if cfg.bin != "" {
			l = l.Bin(cfg.bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	p, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	f := &BrowserFetcher{browser: b, page: p, cfg: cfg}
	if cfg.hijacker != nil {
		f.router = p.HijackRequests()
		if err := f.router.Add("*", "", cfg.hijacker); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("install hijacker: %w", err)
		}
		go f.router.Run()
	}

	return f, nil
}

// boundPage returns the page bound to ctx and, when configured, to the
// navigation timeout. release must be called once the fetch is over.
func (f *BrowserFetcher) boundPage(ctx context.Context) (p *rod.Page, release func()) {
	p = f.page.Context(ctx)
	if f.cfg.timeout <= 0 {
		return p, func() {}
	}
	timed := p.Timeout(f.cfg.timeout)
	return timed, func() { timed.CancelTimeout() }
}

func (f *BrowserFetcher) Fetch(ctx context.Context, req *page.Request) (*Response, error) {
	p, release := f.boundPage(ctx)
	defer release()

	switch req.Method {
	case http.MethodGet:
		if err := p.Navigate(req.URL.String()); err != nil {
			return nil, fmt.Errorf("%s: %w", req, err)
		}
	case http.MethodPost:
		wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
		if _, err := p.Eval(submitJS, req.URL.String(), map[string][]string(req.Form)); err != nil {
			return nil, fmt.Errorf("%s: %w", req, err)
		}
		wait()
	default:
		return nil, fmt.Errorf("%s: unsupported method", req)
	}

	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%s: wait load: %w", req, err)
	}
	if err := browser.WaitForIFrames(p); err != nil {
		f.cfg.logger.Debug("frames did not settle", zap.Error(err))
	}

	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("%s: page info: %w", req, err)
	}
	final, err := url.Parse(info.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: final URL: %w", req, err)
	}

	flat, err := browser.Flatten(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	f.cfg.logger.Debug("browser fetched",
		zap.String("method", req.Method),
		zap.String("final_url", final.Redacted()),
		zap.Int("frames", flat.Frames),
		zap.Int("shadow_roots", flat.Shadows))

	// The page API does not surface the document status; a rendered
	// document is reported as 200.
	return &Response{URL: final, Status: http.StatusOK, Body: []byte(flat.HTML)}, nil
}

// ClearCookies removes every cookie from the browser.
func (f *BrowserFetcher) ClearCookies() error {
	return f.browser.SetCookies(nil)
}

func (f *BrowserFetcher) Close() error {
	if f.router != nil {
		_ = f.router.Stop()
	}
	return f.browser.Close()
}
