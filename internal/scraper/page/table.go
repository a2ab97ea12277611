package page

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
)

// Predicate inspects document content.
type Predicate func(*Document) bool

// Rule maps documents to a Kind.
type Rule struct {
	kind    Kind
	pattern *regexp.Regexp
	path    bool
	when    Predicate
	build   Constructor
}

// URL matches pattern against the full URL string.
func URL(pattern string, kind Kind, build Constructor) Rule {
	return Rule{kind: kind, pattern: regexp.MustCompile(pattern), build: build}
}

// Path matches pattern against the URL path only.
func Path(pattern string, kind Kind, build Constructor) Rule {
	return Rule{kind: kind, pattern: regexp.MustCompile(pattern), path: true, build: build}
}

// Sniff matches on content alone, whatever the URL. Sniffers are consulted
// before any URL rule.
func Sniff(kind Kind, match Predicate, build Constructor) Rule {
	return Rule{kind: kind, when: match, build: build}
}

// When narrows a URL rule with a content predicate, for URLs that serve
// several roles.
func (r Rule) When(match Predicate) Rule {
	r.when = match
	return r
}

func (r Rule) Kind() Kind { return r.kind }

func (r Rule) matchesURL(u *url.URL) bool {
	if r.pattern == nil {
		return false
	}
	if r.path {
		return r.pattern.MatchString(u.Path)
	}
	return r.pattern.MatchString(u.String())
}

func (r Rule) construct(doc *Document) Page {
	b := NewBase(r.kind, doc)
	if r.build == nil {
		return b
	}
	return r.build(b)
}

// Table is an ordered, immutable set of rules for one site. It is safe for
// concurrent use by any number of sessions.
type Table struct {
	name     string
	sniffers []Rule
	rules    []Rule
}

func NewTable(name string, rules ...Rule) *Table {
	t := &Table{name: name}
	for _, r := range rules {
		if r.pattern == nil {
			t.sniffers = append(t.sniffers, r)
			continue
		}
		t.rules = append(t.rules, r)
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Len() int { return len(t.sniffers) + len(t.rules) }

// KindOf classifies by URL alone, skipping rules that need content. It is a
// pure function of the table and u.
func (t *Table) KindOf(u *url.URL) (Kind, bool) {
	for _, r := range t.rules {
		if r.when == nil && r.matchesURL(u) {
			return r.kind, true
		}
	}
	return KindUnknown, false
}

// Classify returns the role of the first rule matching doc.
func (t *Table) Classify(doc *Document) (Page, error) {
	for _, r := range t.sniffers {
		if r.when(doc) {
			return r.construct(doc), nil
		}
	}

	u := doc.URL()
	for _, r := range t.rules {
		if !r.matchesURL(u) {
			continue
		}
		if r.when != nil && !r.when(doc) {
			continue
		}
		return r.construct(doc), nil
	}

	return nil, fmt.Errorf("%w: %s: no rule for %s", bank.ErrClassification, t.name, u.Redacted())
}

// ContainsAny matches documents whose body holds one of phrases.
func ContainsAny(phrases ...string) Predicate {
	return func(d *Document) bool {
		for _, p := range phrases {
			if d.Contains(p) {
				return true
			}
		}
		return false
	}
}

// HasElement matches documents where selector finds at least one node.
func HasElement(selector string) Predicate {
	return func(d *Document) bool {
		return d.Find(selector).Length() > 0
	}
}
