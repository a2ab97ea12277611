package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"go.uber.org/zap"
)

type AuthState int

const (
	AuthUnauthenticated AuthState = iota
	AuthSubmitting
	AuthAuthenticated
	AuthRejected
)

func (s AuthState) String() string {
	switch s {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthSubmitting:
		return "submitting"
	case AuthAuthenticated:
		return "authenticated"
	case AuthRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Phase builds one login submission from the current page. A nil request
// with a nil error means the phase does not apply to this page.
type Phase func(current page.Page, creds bank.Credentials) (*page.Request, error)

// Handshake describes how a site logs in.
type Handshake struct {
	// LoginURL is fetched when the session is not already on a login page.
	LoginURL string
	// Phases run in order until one lands on an authenticated page.
	Phases []Phase
	// Routing extracts the routing context from the landing page.
	Routing func(landing page.Page) (string, error)
	// HomeURL is the authenticated landing URL for a routing context.
	HomeURL func(routing string) string
	// Rejection extracts the site's error message from a rejected login.
	Rejection func(current page.Page) string
}

// Authenticator runs the login state machine for one session.
type Authenticator struct {
	sess   *session.Session
	hs     Handshake
	state  AuthState
	creds  bank.Credentials
	logger *zap.Logger
}

func NewAuthenticator(sess *session.Session, hs Handshake) *Authenticator {
	return &Authenticator{
		sess:   sess,
		hs:     hs,
		logger: sess.Logger().Named("auth"),
	}
}

func (a *Authenticator) Session() *session.Session { return a.sess }
func (a *Authenticator) State() AuthState           { return a.state }

// Authenticated reports whether the last login succeeded and nothing since
// showed the session expiring.
func (a *Authenticator) Authenticated() bool {
	return a.state == AuthAuthenticated
}

// Login authenticates with creds. It is a no-op when the session is already
// authenticated with the same credentials; otherwise the session is reset first so
// no cookie from an earlier attempt leaks into this one. A rejected login is
// never retried.
func (a *Authenticator) Login(ctx context.Context, creds bank.Credentials) error {
	if a.Authenticated() && a.creds == creds && a.sess.IsAuthenticated() {
		return nil
	}

	if err := a.sess.Reset(); err != nil {
		return err
	}
	a.state = AuthUnauthenticated
	a.creds = creds

	// Reset dropped the current page, so the login form is always fetched
	// fresh.
	if _, err := a.sess.Navigate(ctx, a.hs.LoginURL, session.SkipAuth()); err != nil {
		return err
	}

	a.state = AuthSubmitting
	for i, phase := range a.hs.Phases {
		if a.sess.IsAuthenticated() || a.sess.Is(page.KindLoginError) {
			break
		}
		current := a.sess.Current()
		if current == nil {
			break
		}
		req, err := phase(current, creds)
		if err != nil {
			a.state = AuthUnauthenticated
			return fmt.Errorf("login phase %d: %w", i+1, err)
		}
		if req == nil {
			a.logger.Debug("login phase skipped", zap.Int("phase", i+1))
			continue
		}
		if _, err := a.sess.Open(ctx, req, session.SkipAuth()); err != nil {
			a.state = AuthUnauthenticated
			return fmt.Errorf("login phase %d: %w", i+1, err)
		}
	}

	if !a.sess.IsAuthenticated() {
		a.state = AuthRejected
		var details string
		if a.hs.Rejection != nil && a.sess.Current() != nil {
			details = a.hs.Rejection(a.sess.Current())
		}
		a.logger.Info("login rejected", zap.String("details", details))
		return &bank.ScraperError{
			BankCode:  a.sess.Code(),
			Operation: "login",
			Cause:     bank.ErrInvalidCredentials,
			Details:   details,
		}
	}

	if a.hs.Routing != nil {
		routing, err := a.hs.Routing(a.sess.Current())
		if err != nil {
			a.state = AuthUnauthenticated
			return fmt.Errorf("%w: %w", bank.ErrRoutingContext, err)
		}
		if err := a.sess.SetRouting(routing); err != nil {
			return err
		}
	}

	a.state = AuthAuthenticated
	a.logger.Info("logged in", zap.Stringer("landing", a.sess.Current().Kind()))
	return nil
}

// Home navigates to the authenticated landing page, logging in first with
// the last credentials when the session is not authenticated.
func (a *Authenticator) Home(ctx context.Context) (page.Page, error) {
	if !a.Authenticated() {
		if a.state == AuthUnauthenticated && a.creds.Login == "" {
			return nil, bank.ErrNotAuthenticated
		}
		if a.state == AuthRejected {
			return nil, fmt.Errorf("%w: last login was rejected", bank.ErrNotAuthenticated)
		}
		if err := a.Login(ctx, a.creds); err != nil {
			return nil, err
		}
	}

	routing, _ := a.sess.Routing()
	p, err := a.sess.Navigate(ctx, a.hs.HomeURL(routing))
	if errors.Is(err, bank.ErrSessionExpired) {
		a.state = AuthUnauthenticated
	}
	return p, err
}
