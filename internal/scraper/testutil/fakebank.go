package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// Hit is one request a FakeBank received.
type Hit struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	// Cookies maps the names of the cookies sent to their values.
	Cookies map[string]string
}

// FakeBank is an httptest server scripted route by route. Routes use
// http.ServeMux patterns ("GET /login", "/fr/banque/{page}").
type FakeBank struct {
	*httptest.Server

	t   testing.TB
	mux *http.ServeMux

	mu   sync.Mutex
	hits []Hit
}

// NewFakeBank starts a server that is closed when the test ends. Unknown
// paths answer 404.
func NewFakeBank(t testing.TB) *FakeBank {
	t.Helper()
	f := &FakeBank{t: t, mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeBank) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := url.Values{}
	for k, v := range r.PostForm {
		form[k] = v
	}

	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	f.mu.Lock()
	f.hits = append(f.hits, Hit{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Form:    form,
		Cookies: cookies,
	})
	f.mu.Unlock()

	f.mux.ServeHTTP(w, r)
}

func (f *FakeBank) Handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

// HTML serves body as UTF-8 HTML.
func (f *FakeBank) HTML(pattern, body string) {
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	})
}

// Latin1 serves body encoded as ISO-8859-1, like older bank portals do.
func (f *FakeBank) Latin1(pattern, body string) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(body)
	require.NoError(f.t, err, "encode %s", pattern)
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		io.WriteString(w, encoded)
	})
}

// Redirect answers with a 302 to target, which may be relative.
func (f *FakeBank) Redirect(pattern, target string) {
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// URL returns the absolute URL of path on the fake.
func (f *FakeBank) URL(path string) string {
	return f.Server.URL + path
}

// Host returns the fake's host:port.
func (f *FakeBank) Host() string {
	return strings.TrimPrefix(f.Server.URL, "http://")
}

func (f *FakeBank) Hits() []Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Hit(nil), f.hits...)
}

// HitCount counts requests whose path is path.
func (f *FakeBank) HitCount(path string) int {
	n := 0
	for _, h := range f.Hits() {
		if h.Path == path {
			n++
		}
	}
	return n
}

// LastHit returns the latest request to path.
func (f *FakeBank) LastHit(path string) (Hit, bool) {
	hits := f.Hits()
	for i := len(hits) - 1; i >= 0; i-- {
		if hits[i].Path == path {
			return hits[i], true
		}
	}
	return Hit{}, false
}
