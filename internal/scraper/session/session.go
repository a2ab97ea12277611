// Package session owns the state of one browsing session: cookies (through
// its Fetcher), the latest classified page and the routing context learned
// at login. Every navigation goes through Open, which fetches, classifies
// and replaces the current page snapshot.
//
// A Session is driven by a single goroutine. Independent sessions share
// nothing but their read-only page tables.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
)

type Session struct {
	id      string
	code    bank.BankCode
	table   *page.Table
	fetcher Fetcher
	logger  *zap.Logger
	metrics *Metrics

	current page.Page
	routing string
	routed  bool
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func New(code bank.BankCode, table *page.Table, fetcher Fetcher, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		code:    code,
		table:   table,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id), zap.String("bank", string(code)))
	return s
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Code() bank.BankCode    { return s.code }
func (s *Session) Logger() *zap.Logger    { return s.logger }
func (s *Session) Metrics() *Metrics      { return s.metrics }
func (s *Session) Current() page.Page     { return s.current }

type navConfig struct {
	skipAuth bool
}

// NavOption tunes a single navigation.
type NavOption func(*navConfig)

// SkipAuth marks a navigation that is expected to land on a login page, so
// doing so is not reported as ErrSessionExpired.
func SkipAuth() NavOption {
	return func(c *navConfig) { c.skipAuth = true }
}

// Navigate fetches rawURL with GET. Relative URLs resolve against the
// current document.
func (s *Session) Navigate(ctx context.Context, rawURL string, opts ...NavOption) (page.Page, error) {
	u, err := s.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, page.Get(u), opts...)
}

// Open performs req and classifies the response. On success the result
// becomes the current page. When the fetch itself fails the previous page
// is left in place and must not be trusted; when classification fails the
// session has no current page.
//
// Landing on an unavailable page returns the page together with
// ErrServiceUnavailable. Landing on a login page without SkipAuth returns
// the page together with ErrSessionExpired. Neither case is retried.
func (s *Session) Open(ctx context.Context, req *page.Request, opts ...NavOption) (page.Page, error) {
	var cfg navConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	resp, err := s.fetcher.Fetch(ctx, req)
	s.metrics.observeFetch(s.code, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", bank.ErrTimeout, err)
		}
		return nil, err
	}

	doc, err := page.NewDocument(resp.URL, resp.Status, resp.Body)
	if err != nil {
		s.current = nil
		return nil, err
	}

	p, err := s.table.Classify(doc)
	if err != nil {
		s.current = nil
		s.metrics.classificationFailed(s.code)
		s.logger.Warn("page not classified",
			zap.String("url", resp.URL.Redacted()),
			zap.Int("status", resp.Status),
			zap.String("title", doc.Title()))
		return nil, err
	}

	s.current = p
	s.metrics.navigated(s.code, p.Kind())
	s.logger.Debug("navigated",
		zap.String("method", req.Method),
		zap.String("url", resp.URL.Redacted()),
		zap.Int("status", resp.Status),
		zap.Stringer("kind", p.Kind()))

	switch {
	case p.Kind() == page.KindUnavailable:
		return p, fmt.Errorf("%w: %s", bank.ErrServiceUnavailable, resp.URL.Redacted())
	case !cfg.skipAuth && (p.Kind() == page.KindLogin || p.Kind() == page.KindLoginError):
		return p, fmt.Errorf("%w: landed on %s", bank.ErrSessionExpired, p.Kind())
	}
	return p, nil
}

// SubmitForm fills and submits a form of the current page. An empty name
// selects the page's only form.
func (s *Session) SubmitForm(ctx context.Context, name string, values map[string]string, opts ...NavOption) (page.Page, error) {
	if s.current == nil {
		return nil, fmt.Errorf("%w: no current page", bank.ErrFormNotFound)
	}
	form, err := page.SelectForm(s.current.Forms(), name)
	if err != nil {
		return nil, fmt.Errorf("%s page: %w", s.current.Kind(), err)
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	s.logger.Debug("submitting form",
		zap.String("form", form.Name),
		zap.Strings("fields", names))

	return s.Open(ctx, form.Request(values), opts...)
}

// Is reports whether the current page is one of kinds.
func (s *Session) Is(kinds ...page.Kind) bool {
	if s.current == nil {
		return false
	}
	for _, k := range kinds {
		if s.current.Kind() == k {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether the current page belongs to a logged in
// session.
func (s *Session) IsAuthenticated() bool {
	return s.current != nil && s.current.Kind().Authenticated()
}

// Reset starts a fresh session lifecycle: cookies are dropped, along with
// the current page and the routing context.
func (s *Session) Reset() error {
	if err := s.fetcher.ClearCookies(); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	s.current = nil
	s.routing = ""
	s.routed = false
	s.logger.Debug("session reset")
	return nil
}

// Routing returns the routing context recorded at login.
func (s *Session) Routing() (string, bool) {
	return s.routing, s.routed
}

// SetRouting records the routing context. It can be set once per session
// lifecycle.
func (s *Session) SetRouting(v string) error {
	if s.routed {
		return fmt.Errorf("%w: %q", bank.ErrRoutingContextSet, s.routing)
	}
	s.routing = v
	s.routed = true
	s.logger.Debug("routing context set", zap.String("routing", v))
	return nil
}

// Resolve resolves ref against the current document, or parses it as an
// absolute URL when there is none.
func (s *Session) Resolve(ref string) (*url.URL, error) {
	if s.current != nil {
		return s.current.Document().Resolve(ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", ref, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative URL %q without a current page", ref)
	}
	return u, nil
}

func (s *Session) Close() error {
	return s.fetcher.Close()
}
