// Package testutil provides fakes and recordings for scraper tests: HAR
// capture, sanitizing and replay, a scripted fake bank server and the
// SCRAPER_TEST_MODE switch.
package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

// HARLog is a reduced HAR (HTTP Archive) holding only what replay needs.
type HARLog struct {
	Entries []HAREntry `json:"entries"`
}

// HAREntry is one request/response pair.
type HAREntry struct {
	Request  HARRequest  `json:"request"`
	Response HARResponse `json:"response"`
}

type HARRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []HARHeader `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
}

type HARResponse struct {
	Status  int         `json:"status"`
	Headers []HARHeader `json:"headers,omitempty"`
	Content HARContent  `json:"content"`
}

type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HARContent struct {
	MimeType string `json:"mimeType"`
	// Text is the body, base64 encoded when Encoding says so.
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// Header returns the first header called name, case-insensitively.
func (r HARResponse) Header(name string) string {
	return headerValue(r.Headers, name)
}

// Body returns the decoded response body.
func (c HARContent) Body() []byte {
	if c.Encoding == "base64" {
		if b, err := base64.StdEncoding.DecodeString(c.Text); err == nil {
			return b
		}
	}
	return []byte(c.Text)
}

func headerValue(headers []HARHeader, name string) string {
	for _, h := range headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			return h.Value
		}
	}
	return ""
}

// Chrome DevTools exports HAR 1.2, wrapping entries in "log" and carrying
// request bodies in postData.
type chromeHAR struct {
	Log struct {
		Entries []struct {
			Request struct {
				Method   string      `json:"method"`
				URL      string      `json:"url"`
				Headers  []HARHeader `json:"headers,omitempty"`
				PostData *struct {
					Text string `json:"text"`
				} `json:"postData,omitempty"`
			} `json:"request"`
			Response HARResponse `json:"response"`
		} `json:"entries"`
	} `json:"log"`
}

// LoadHAR reads a HAR file in either the reduced format or the Chrome
// DevTools export format.
func LoadHAR(path string) (*HARLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read HAR file: %w", err)
	}

	var chrome chromeHAR
	if err := json.Unmarshal(data, &chrome); err == nil && len(chrome.Log.Entries) > 0 {
		har := &HARLog{Entries: make([]HAREntry, len(chrome.Log.Entries))}
		for i, ce := range chrome.Log.Entries {
			var body string
			if ce.Request.PostData != nil {
				body = ce.Request.PostData.Text
			}
			har.Entries[i] = HAREntry{
				Request: HARRequest{
					Method:  ce.Request.Method,
					URL:     ce.Request.URL,
					Headers: ce.Request.Headers,
					Body:    body,
				},
				Response: ce.Response,
			}
		}
		return har, nil
	}

	var har HARLog
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("parse HAR JSON: %w", err)
	}
	return &har, nil
}

func SaveHAR(path string, har *HARLog) error {
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal HAR: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write HAR file: %w", err)
	}
	return nil
}

func MustLoadHAR(t testing.TB, path string) *HARLog {
	t.Helper()
	har, err := LoadHAR(path)
	require.NoError(t, err, "load HAR %s", path)
	return har
}

// Recorder is an http.RoundTripper that forwards to Next and keeps every
// exchange, so a live HTTPFetcher session can be saved for replay.
type Recorder struct {
	Next http.RoundTripper

	mu  sync.Mutex
	har HARLog
}

func NewRecorder(next http.RoundTripper) *Recorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Recorder{Next: next}
}

func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		if reqBody, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	resp, err := r.Next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	content := HARContent{
		MimeType: resp.Header.Get("Content-Type"),
		Size:     len(respBody),
	}
	if utf8.Valid(respBody) {
		content.Text = string(respBody)
	} else {
		content.Text = base64.StdEncoding.EncodeToString(respBody)
		content.Encoding = "base64"
	}

	r.mu.Lock()
	r.har.Entries = append(r.har.Entries, HAREntry{
		Request: HARRequest{
			Method:  req.Method,
			URL:     req.URL.String(),
			Headers: toHARHeaders(req.Header),
			Body:    string(reqBody),
		},
		Response: HARResponse{
			Status:  resp.StatusCode,
			Headers: toHARHeaders(resp.Header),
			Content: content,
		},
	})
	r.mu.Unlock()

	return resp, nil
}

// HAR returns a copy of what was recorded so far.
func (r *Recorder) HAR() *HARLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &HARLog{Entries: append([]HAREntry(nil), r.har.Entries...)}
}

func toHARHeaders(h http.Header) []HARHeader {
	var out []HARHeader
	for name, values := range h {
		for _, v := range values {
			out = append(out, HARHeader{Name: name, Value: v})
		}
	}
	return out
}
