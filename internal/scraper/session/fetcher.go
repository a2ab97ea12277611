package session

import (
	"context"
	"net/url"

	"github.com/grez-lucas/webbank/internal/scraper/page"
)

// Response is what a Fetcher hands back once redirects were followed.
type Response struct {
	// URL is the final URL after redirects.
	URL    *url.URL
	Status int
	// Body is decoded to UTF-8.
	Body []byte
}

//go:generate mockgen -source=fetcher.go -destination=mocks/fetcher.go -package=mocks

// Fetcher performs the network round trips for one session. Cookies persist
// across calls until ClearCookies.
type Fetcher interface {
	Fetch(ctx context.Context, req *page.Request) (*Response, error)
	ClearCookies() error
	Close() error
}
