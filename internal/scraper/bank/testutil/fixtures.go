// Package testutil loads the HTML fixtures bank packages keep under
// <bank>/testdata/fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/stretchr/testify/require"
)

// FixturePath returns the path of <bankDir>/testdata/fixtures/<name>.html.
func FixturePath(bankDir, name string) string {
	// Resolved from this file so tests can run from any package directory.
	_, filename, _, _ := runtime.Caller(0)
	baseDir := filepath.Dir(filepath.Dir(filename)) // up to bank/
	return filepath.Join(baseDir, bankDir, "testdata", "fixtures", name+".html")
}

// LoadFixture reads an HTML fixture file for the given bank.
func LoadFixture(t testing.TB, bankDir, name string) string {
	t.Helper()
	data, err := os.ReadFile(FixturePath(bankDir, name))
	require.NoError(t, err, "load fixture %s/%s", bankDir, name)
	return string(data)
}

// FixtureDocument parses a fixture as if it had been fetched from rawURL.
func FixtureDocument(t testing.TB, bankDir, name, rawURL string) *page.Document {
	t.Helper()
	return page.MustDocument(rawURL, LoadFixture(t, bankDir, name))
}
