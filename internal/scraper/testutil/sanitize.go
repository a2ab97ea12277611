package testutil

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// SensitivePatterns match the names of fields, query parameters and JSON
// keys whose values never belong in a committed recording.
var SensitivePatterns = []string{
	`(?i)pass(word|wd)?`,
	`(?i)pwd`,
	`(?i)mot_?de_?passe`,
	`(?i)secret`,
	`(?i)codconf`,

	// Identifiers typed at login.
	`(?i)^_?cm_user$`,
	`(?i)^nuser$`,
	`(?i)identifiant`,
	`(?i)login`,

	`(?i)token`,
	`(?i)session`,
	`(?i)sess_`,
	`(?i)auth`,
	`(?i)jwt`,
	`(?i)bearer`,
	`(?i)api_?key`,
	`(?i)credential`,
	`(?i)__viewstate`,
}

// SensitiveHeaders are redacted whatever their value.
var SensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-auth-token":        true,
	"x-api-key":           true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
	"proxy-authorization": true,
}

var (
	sensitiveKeys = compileAll(SensitivePatterns)
	// IBANs and French card numbers can show up anywhere in a page.
	ibanPattern = regexp.MustCompile(`\bFR\d{2}(?:\s?[0-9A-Z]{4}){5}\s?[0-9A-Z]{3}\b`)
	cardPattern = regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`)
)

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// SanitizeHAR returns a copy of har with credentials, session material and
// account numbers replaced by [REDACTED].
func SanitizeHAR(har *HARLog) *HARLog {
	out := &HARLog{Entries: make([]HAREntry, len(har.Entries))}
	for i, e := range har.Entries {
		out.Entries[i] = HAREntry{
			Request: HARRequest{
				Method:  e.Request.Method,
				URL:     sanitizeURL(e.Request.URL),
				Headers: sanitizeHeaders(e.Request.Headers),
				Body:    sanitizeBody(e.Request.Body),
			},
			Response: HARResponse{
				Status:  e.Response.Status,
				Headers: sanitizeHeaders(e.Response.Headers),
				Content: sanitizeContent(e.Response.Content),
			},
		}
	}
	return out
}

// SanitizeText redacts account numbers from page text, as used for HTML
// fixtures.
func SanitizeText(s string) string {
	s = ibanPattern.ReplaceAllString(s, redacted)
	return cardPattern.ReplaceAllString(s, redacted)
}

func sanitizeContent(c HARContent) HARContent {
	if c.Encoding == "base64" {
		return c
	}
	c.Text = SanitizeText(sanitizeBody(c.Text))
	return c
}

func sanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.RawQuery == "" {
		return rawURL
	}
	query := parsed.Query()
	for key := range query {
		if isSensitiveKey(key) {
			query.Set(key, redacted)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func sanitizeHeaders(headers []HARHeader) []HARHeader {
	out := make([]HARHeader, len(headers))
	for i, h := range headers {
		if SensitiveHeaders[strings.ToLower(h.Name)] || isSensitiveKey(h.Name) {
			out[i] = HARHeader{Name: h.Name, Value: redacted}
			continue
		}
		out[i] = h
	}
	return out
}

func sanitizeBody(body string) string {
	trimmed := strings.TrimSpace(body)
	switch {
	case trimmed == "":
		return body
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return sanitizeJSONBody(body)
	case strings.HasPrefix(trimmed, "<"):
		return sanitizeHTMLInputs(body)
	case strings.Contains(body, "="):
		return sanitizeFormBody(body)
	}
	return body
}

func sanitizeFormBody(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}
	for key := range values {
		if isSensitiveKey(key) {
			values.Set(key, redacted)
		}
	}
	return values.Encode()
}

var (
	jsonStringField = regexp.MustCompile(`"([^"]+)"\s*:\s*"[^"]*"`)
	jsonOtherField  = regexp.MustCompile(`"([^"]+)"\s*:\s*([^",}\]\s][^",}\]]*)`)
	inputValue      = regexp.MustCompile(`(?i)(<input[^>]*\bname="([^"]+)"[^>]*\bvalue=")[^"]*(")`)
)

func sanitizeJSONBody(body string) string {
	redactField := func(re *regexp.Regexp) func(string) string {
		return func(m string) string {
			key := re.FindStringSubmatch(m)[1]
			if !isSensitiveKey(key) {
				return m
			}
			return `"` + key + `": "` + redacted + `"`
		}
	}
	body = jsonStringField.ReplaceAllStringFunc(body, redactField(jsonStringField))
	return jsonOtherField.ReplaceAllStringFunc(body, redactField(jsonOtherField))
}

// sanitizeHTMLInputs blanks the value attribute of sensitive inputs, such as
// the __VIEWSTATE blobs ASP.NET pages carry.
func sanitizeHTMLInputs(body string) string {
	return inputValue.ReplaceAllStringFunc(body, func(m string) string {
		sub := inputValue.FindStringSubmatch(m)
		if !isSensitiveKey(sub[2]) {
			return m
		}
		return sub[1] + redacted + sub[3]
	})
}

func isSensitiveKey(key string) bool {
	for _, re := range sensitiveKeys {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
