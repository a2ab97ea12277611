package page

import (
	"net/http"
	"net/url"
)

// Request describes one navigation: what the session should fetch next.
// Page roles build requests, only the session executes them.
type Request struct {
	Method string
	URL    *url.URL
	Form   url.Values
}

// Get returns a GET request for u.
func Get(u *url.URL) *Request {
	return &Request{Method: http.MethodGet, URL: u}
}

// Post returns a form-encoded POST request for u.
func Post(u *url.URL, form url.Values) *Request {
	return &Request{Method: http.MethodPost, URL: u, Form: form}
}

// Key identifies the request for visited-page bookkeeping.
func (r *Request) Key() string {
	key := r.Method + " " + r.URL.String()
	if len(r.Form) > 0 {
		key += " " + r.Form.Encode()
	}
	return key
}

func (r *Request) String() string {
	return r.Method + " " + r.URL.String()
}
