package testutil

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHAR_ChromeExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.har")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log": {"entries": [{
			"request": {"method": "POST", "url": "https://bank.test/login", "postData": {"text": "a=1"}},
			"response": {"status": 302, "headers": [{"name": "location", "value": "/home"}], "content": {"text": ""}}
		}]}
	}`), 0o644))

	har, err := LoadHAR(path)
	require.NoError(t, err)
	require.Len(t, har.Entries, 1)
	assert.Equal(t, "a=1", har.Entries[0].Request.Body)
	assert.Equal(t, "/home", har.Entries[0].Response.Header("Location"))
}

func TestSaveAndLoadHAR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	want := &HARLog{Entries: []HAREntry{{
		Request:  HARRequest{Method: "GET", URL: "https://bank.test/"},
		Response: HARResponse{Status: 200, Content: HARContent{MimeType: "text/html", Text: "<p>ok</p>"}},
	}}}
	require.NoError(t, SaveHAR(path, want))

	assert.Equal(t, want, MustLoadHAR(t, path))
}

func TestLoadHAR_Missing(t *testing.T) {
	_, err := LoadHAR(filepath.Join(t.TempDir(), "nope.har"))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	fake := NewFakeBank(t)
	fake.Latin1("POST /login", "<p>Bienvenue à vous</p>")

	rec := NewRecorder(nil)
	client := &http.Client{Transport: rec}

	resp, err := client.Post(fake.URL("/login"), "application/x-www-form-urlencoded", strings.NewReader("user=jd"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "\xe0 vous")

	har := rec.HAR()
	require.Len(t, har.Entries, 1)
	e := har.Entries[0]
	assert.Equal(t, "user=jd", e.Request.Body)
	assert.Equal(t, http.StatusOK, e.Response.Status)
	// Latin-1 bytes are not valid UTF-8 and are kept as base64.
	assert.Equal(t, "base64", e.Response.Content.Encoding)
	assert.Equal(t, body, e.Response.Content.Body())
}
