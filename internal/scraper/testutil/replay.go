package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Replayer serves recorded responses, either to a go-rod page through
// Middleware or to an HTTPFetcher as its round tripper.
type Replayer struct {
	// exact is keyed by method and full URL.
	exact map[string]*HAREntry
	// loose is keyed by method and URL without query, first entry wins.
	loose map[string]*HAREntry

	passthrough bool
	logger      *zap.Logger

	mu     sync.Mutex
	served int
	missed []string
}

type ReplayerOption func(*Replayer)

// WithPassthrough lets unmatched requests reach the network. By default they
// get a 404.
func WithPassthrough(enabled bool) ReplayerOption {
	return func(r *Replayer) {
		r.passthrough = enabled
	}
}

func WithReplayLogger(l *zap.Logger) ReplayerOption {
	return func(r *Replayer) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewReplayer(har *HARLog, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		exact:  make(map[string]*HAREntry),
		loose:  make(map[string]*HAREntry),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for i := range har.Entries {
		entry := &har.Entries[i]
		method := entry.Request.Method
		if _, ok := r.exact[method+" "+entry.Request.URL]; !ok {
			r.exact[method+" "+entry.Request.URL] = entry
		}
		if key, ok := looseKey(method, entry.Request.URL); ok {
			if _, exists := r.loose[key]; !exists {
				r.loose[key] = entry
			}
		}
	}
	return r
}

func looseKey(method, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return method + " " + u.Scheme + "://" + u.Host + u.Path, true
}

// Lookup finds the entry recorded for method and rawURL, falling back to a
// match that ignores the query string.
func (r *Replayer) Lookup(method, rawURL string) (*HAREntry, bool) {
	if e, ok := r.exact[method+" "+rawURL]; ok {
		return e, true
	}
	if key, ok := looseKey(method, rawURL); ok {
		if e, ok := r.loose[key]; ok {
			return e, true
		}
	}
	return nil, false
}

func (r *Replayer) hit(rawURL string, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if found {
		r.served++
		r.logger.Debug("replay hit", zap.String("url", rawURL))
		return
	}
	r.missed = append(r.missed, rawURL)
	r.logger.Warn("replay miss", zap.String("url", rawURL))
}

// RoundTrip serves the recorded response as is. Redirects are left to the
// http.Client, which asks for the Location target in turn.
func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	entry, found := r.Lookup(req.Method, req.URL.String())
	r.hit(req.URL.String(), found)
	if !found {
		if r.passthrough {
			return http.DefaultTransport.RoundTrip(req)
		}
		return &http.Response{
			Status:     "404 Not Found",
			StatusCode: http.StatusNotFound,
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     http.Header{"Content-Type": {"text/plain"}},
			Body:       io.NopCloser(strings.NewReader("no recording for " + req.URL.String())),
			Request:    req,
		}, nil
	}

	header := make(http.Header)
	for _, h := range entry.Response.Headers {
		switch strings.ToLower(h.Name) {
		case "content-encoding", "content-length":
			continue
		}
		header.Add(h.Name, h.Value)
	}
	if header.Get("Content-Type") == "" && entry.Response.Content.MimeType != "" {
		header.Set("Content-Type", entry.Response.Content.MimeType)
	}
	body := entry.Response.Content.Body()

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Response.Status, http.StatusText(entry.Response.Status)),
		StatusCode:    entry.Response.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// Middleware returns a go-rod hijack handler. Use it with
// router.MustAdd("*", replayer.Middleware()).
func (r *Replayer) Middleware() func(*rod.Hijack) {
	return func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()
		entry, found := r.Lookup(ctx.Request.Method(), reqURL)
		r.hit(reqURL, found)

		if !found {
			if r.passthrough {
				_ = ctx.LoadResponse(http.DefaultClient, true)
				return
			}
			payload := ctx.Response.Payload()
			payload.ResponseCode = http.StatusNotFound
			payload.ResponseHeaders = []*proto.FetchHeaderEntry{{Name: "Content-Type", Value: "text/plain"}}
			payload.Body = []byte("no recording for " + reqURL)
			return
		}

		// The browser would not see the redirect body anyway, and a hijacked
		// 3xx is not followed, so serve the end of the chain directly.
		resp := r.followRedirects(entry).Response

		var headers []*proto.FetchHeaderEntry
		hasType := false
		for _, h := range resp.Headers {
			switch strings.ToLower(h.Name) {
			case "content-encoding", "content-length", "location":
				continue
			case "content-type":
				hasType = true
			}
			headers = append(headers, &proto.FetchHeaderEntry{Name: h.Name, Value: h.Value})
		}
		if !hasType && resp.Content.MimeType != "" {
			headers = append(headers, &proto.FetchHeaderEntry{Name: "Content-Type", Value: resp.Content.MimeType})
		}

		payload := ctx.Response.Payload()
		payload.ResponseCode = resp.Status
		payload.ResponseHeaders = headers
		payload.Body = resp.Content.Body()
	}
}

func (r *Replayer) followRedirects(entry *HAREntry) *HAREntry {
	const maxRedirects = 10
	current := entry
	for range maxRedirects {
		if current.Response.Status < 300 || current.Response.Status >= 400 {
			return current
		}
		location := current.Response.Header("Location")
		if location == "" {
			return current
		}
		if base, err := url.Parse(current.Request.URL); err == nil {
			if ref, err := base.Parse(location); err == nil {
				location = ref.String()
			}
		}
		target, found := r.Lookup(http.MethodGet, location)
		if !found {
			r.logger.Warn("redirect target not recorded", zap.String("location", location))
			return current
		}
		current = target
	}
	return current
}

// ReplayStats summarises the index and what was served from it.
type ReplayStats struct {
	Exact  int
	Loose  int
	Served int
	Missed []string
}

func (r *Replayer) Stats() ReplayStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReplayStats{
		Exact:  len(r.exact),
		Loose:  len(r.loose),
		Served: r.served,
		Missed: append([]string(nil), r.missed...),
	}
}
