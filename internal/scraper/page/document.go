package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
)

// Document is an immutable snapshot of one fetched response. A new snapshot
// is built for every navigation and never updated afterwards.
type Document struct {
	url    *url.URL
	base   *url.URL
	status int
	body   []byte
	dom    *goquery.Document
	forms  []*Form
}

// NewDocument parses body (already decoded to UTF-8) fetched from u.
func NewDocument(u *url.URL, status int, body []byte) (*Document, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: document without URL", bank.ErrParsingFailed)
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bank.ErrParsingFailed, err)
	}

	d := &Document{
		url:    u,
		base:   u,
		status: status,
		body:   body,
		dom:    dom,
	}
	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if b, err := u.Parse(strings.TrimSpace(href)); err == nil {
			d.base = b
		}
	}
	d.forms = parseForms(d)

	return d, nil
}

// MustDocument is like NewDocument but panics on error. Intended for tests.
func MustDocument(rawURL string, body string) *Document {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	d, err := NewDocument(u, 200, []byte(body))
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) URL() *url.URL {
	u := *d.url
	return &u
}

func (d *Document) Status() int { return d.status }

// Body returns a copy of the decoded response body.
func (d *Document) Body() []byte {
	return bytes.Clone(d.body)
}

// Contains reports whether phrase appears verbatim in the body.
func (d *Document) Contains(phrase string) bool {
	return phrase != "" && bytes.Contains(d.body, []byte(phrase))
}

// Find runs a CSS selector against the parsed document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// FindMatcher runs a pre-compiled matcher against the parsed document.
func (d *Document) FindMatcher(m goquery.Matcher) *goquery.Selection {
	return d.dom.FindMatcher(m)
}

func (d *Document) Title() string {
	return strings.TrimSpace(d.dom.Find("title").First().Text())
}

// Resolve resolves ref against the document's base URL.
func (d *Document) Resolve(ref string) (*url.URL, error) {
	u, err := d.base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, err)
	}
	return u, nil
}

// Forms returns every form found in the document, in document order.
func (d *Document) Forms() []*Form {
	return d.forms
}

// Form returns the form whose name or id is name.
func (d *Document) Form(name string) (*Form, error) {
	return SelectForm(d.forms, name)
}
