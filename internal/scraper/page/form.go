package page

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
)

// Form is a snapshot of an HTML form and the values a browser would submit
// for it without user input.
type Form struct {
	Name   string
	ID     string
	Method string
	Action *url.URL

	defaults url.Values
	controls map[string]bool
}

// Has reports whether the form declares a control called name.
func (f *Form) Has(name string) bool {
	return f.controls[name]
}

// Value returns the default value of the named control.
func (f *Form) Value(name string) string {
	return f.defaults.Get(name)
}

// Defaults returns a copy of the values submitted when nothing is filled in.
func (f *Form) Defaults() url.Values {
	return cloneValues(f.defaults)
}

// Request builds the submission for the form, overriding defaults with values.
func (f *Form) Request(values map[string]string) *Request {
	fields := f.Defaults()
	for name, v := range values {
		fields.Set(name, v)
	}

	if f.Method == http.MethodGet {
		u := *f.Action
		q := u.Query()
		for name, vs := range fields {
			q[name] = vs
		}
		u.RawQuery = q.Encode()
		return Get(&u)
	}
	return Post(f.Action, fields)
}

// PostBack builds an ASP.NET __doPostBack submission for the form.
func (f *Form) PostBack(target, argument string) *Request {
	return f.Request(map[string]string{
		"__EVENTTARGET":   target,
		"__EVENTARGUMENT": argument,
	})
}

// SelectForm picks the form named (or identified by) name. With an empty
// name the single form in forms is returned; zero or several forms is an
// error.
func SelectForm(forms []*Form, name string) (*Form, error) {
	if name != "" {
		for _, f := range forms {
			if f.Name == name || f.ID == name {
				return f, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", bank.ErrFormNotFound, name)
	}

	switch len(forms) {
	case 0:
		return nil, bank.ErrFormNotFound
	case 1:
		return forms[0], nil
	default:
		return nil, fmt.Errorf("%w: %d candidate forms", bank.ErrAmbiguousForm, len(forms))
	}
}

func parseForms(d *Document) []*Form {
	var forms []*Form
	d.dom.Find("form").Each(func(_ int, s *goquery.Selection) {
		forms = append(forms, parseForm(d, s))
	})
	return forms
}

func parseForm(d *Document, s *goquery.Selection) *Form {
	method := strings.ToUpper(strings.TrimSpace(s.AttrOr("method", "")))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	action := d.URL()
	if raw := s.AttrOr("action", ""); strings.TrimSpace(raw) != "" {
		if u, err := d.Resolve(raw); err == nil {
			action = u
		}
	}

	f := &Form{
		Name:     s.AttrOr("name", ""),
		ID:       s.AttrOr("id", ""),
		Method:   method,
		Action:   action,
		defaults: url.Values{},
		controls: map[string]bool{},
	}

	s.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		if name == "" {
			return
		}
		f.controls[name] = true
		if _, disabled := in.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(in) {
		case "input":
			switch strings.ToLower(in.AttrOr("type", "text")) {
			case "submit", "reset", "button", "image", "file":
			case "checkbox", "radio":
				if _, checked := in.Attr("checked"); checked {
					f.defaults.Add(name, in.AttrOr("value", "on"))
				}
			default:
				f.defaults.Add(name, in.AttrOr("value", ""))
			}
		case "textarea":
			f.defaults.Add(name, in.Text())
		case "select":
			opt := in.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = in.Find("option").First()
			}
			if opt.Length() > 0 {
				f.defaults.Add(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
			}
		}
	})

	return f
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
