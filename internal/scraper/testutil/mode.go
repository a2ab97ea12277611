package testutil

import (
	"os"
	"testing"
)

// TestMode selects which tests run against what.
type TestMode string

const (
	TestModeMock    TestMode = "mock"    // Static fixtures and fake servers
	TestModeReplay  TestMode = "replay"  // Recorded sessions
	TestModeBrowser TestMode = "browser" // Local Chrome, no bank traffic
	TestModeLive    TestMode = "live"    // Hit the real bank (dangerous!)
)

// Mode reads SCRAPER_TEST_MODE, defaulting to mock.
func Mode() TestMode {
	mode := os.Getenv("SCRAPER_TEST_MODE")
	if mode == "" {
		return TestModeMock
	}
	return TestMode(mode)
}

// SkipUnlessMode skips the test unless SCRAPER_TEST_MODE is required.
func SkipUnlessMode(t testing.TB, required TestMode) {
	t.Helper()
	if Mode() != required {
		t.Skipf("Skipping: requires SCRAPER_TEST_MODE=%s", required)
	}
}
