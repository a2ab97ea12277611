package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// HTTPFetcher fetches pages with net/http, keeping cookies in a jar that
// follows public suffix rules.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	// formEncoding encodes outgoing form values for sites that do not
	// accept UTF-8. Nil sends UTF-8.
	formEncoding encoding.Encoding
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithTransport replaces the underlying round tripper (HAR replay in tests).
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client.Transport = rt
	}
}

func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithFormEncoding sets the charset outgoing form values are encoded in.
func WithFormEncoding(enc encoding.Encoding) HTTPOption {
	return func(f *HTTPFetcher) {
		f.formEncoding = enc
	}
}

// WithRateLimit caps the number of requests per second. Zero disables it.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(f *HTTPFetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout bounds each round trip, redirects included.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewHTTPFetcher(opts ...HTTPOption) (*HTTPFetcher, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	f := &HTTPFetcher{
		client:    &http.Client{Jar: jar},
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *page.Request) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	httpReq, err := f.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		f.logger.Debug("unknown charset, reading raw body",
			zap.String("content_type", resp.Header.Get("Content-Type")),
			zap.Error(err))
		reader = resp.Body
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req, err)
	}

	f.logger.Debug("fetched",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("final_url", resp.Request.URL.Redacted()),
		zap.Int("status", resp.StatusCode))

	return &Response{
		URL:    resp.Request.URL,
		Status: resp.StatusCode,
		Body:   body,
	}, nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, req *page.Request) (*http.Request, error) {
	var body io.Reader
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		form, err := f.encodeForm(req.Form)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(form)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", req, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")
	return httpReq, nil
}

func (f *HTTPFetcher) encodeForm(values url.Values) (string, error) {
	if f.formEncoding == nil || len(values) == 0 {
		return values.Encode(), nil
	}

	enc := encoding.ReplaceUnsupported(f.formEncoding.NewEncoder())
	encoded := make(url.Values, len(values))
	for name, vs := range values {
		key, err := enc.String(name)
		if err != nil {
			return "", fmt.Errorf("encode form field %q: %w", name, err)
		}
		for _, v := range vs {
			ev, err := enc.String(v)
			if err != nil {
				return "", fmt.Errorf("encode form field %q: %w", name, err)
			}
			encoded.Add(key, ev)
		}
	}
	return encoded.Encode(), nil
}

// ClearCookies drops every cookie by swapping in a fresh jar.
func (f *HTTPFetcher) ClearCookies() error {
	jar, err := newJar()
	if err != nil {
		return err
	}
	f.client.Jar = jar
	return nil
}

// Cookies returns the cookies the jar would send to u.
func (f *HTTPFetcher) Cookies(u *url.URL) []*http.Cookie {
	return f.client.Jar.Cookies(u)
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return jar, nil
}
