// Package scraper opens bank sessions from configuration.
package scraper

import (
	"fmt"
	"net/http"

	"github.com/grez-lucas/webbank/internal/config"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/bank/caissedepargne"
	"github.com/grez-lucas/webbank/internal/scraper/bank/creditmutuel"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type openOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	transport  http.RoundTripper
}

type OpenOption func(*openOptions)

func WithLogger(l *zap.Logger) OpenOption {
	return func(o *openOptions) { o.logger = l }
}

// WithRegisterer records session metrics on reg. Metrics are only
// collected when the config enables them.
func WithRegisterer(reg prometheus.Registerer) OpenOption {
	return func(o *openOptions) { o.registerer = reg }
}

// WithTransport sends HTTP traffic through rt. It has no effect in browser
// mode.
func WithTransport(rt http.RoundTripper) OpenOption {
	return func(o *openOptions) { o.transport = rt }
}

// Open validates cfg and returns the bank it names, not yet logged in.
func Open(cfg *config.Config, opts ...OpenOption) (bank.Capability, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var metrics *session.Metrics
	if cfg.Metrics.Enabled && o.registerer != nil {
		metrics = session.NewMetrics(o.registerer)
	}

	creds := bank.Credentials{
		Login:         cfg.Login,
		Password:      cfg.Password,
		AccountNumber: cfg.AccountNumber,
	}
	name := cfg.BankName()
	logger := o.logger.With(zap.String("bank", name))

	fetcher, err := newFetcher(cfg, o.transport, logger)
	if err != nil {
		return nil, fmt.Errorf("%s fetcher: %w", name, err)
	}

	var capability bank.Capability
	switch name {
	case config.BankCreditMutuel:
		capability, err = creditmutuel.New(creds,
			creditmutuel.WithFetcher(fetcher),
			creditmutuel.WithLogger(logger),
			creditmutuel.WithMetrics(metrics))
	case config.BankCaisseEpargne:
		capability, err = caissedepargne.New(creds,
			caissedepargne.WithDomain(cfg.Domain),
			caissedepargne.WithFetcher(fetcher),
			caissedepargne.WithLogger(logger),
			caissedepargne.WithMetrics(metrics))
	default:
		err = fmt.Errorf("%w: unknown bank %q", config.ErrInvalidConfig, cfg.Bank)
	}
	if err != nil {
		_ = fetcher.Close()
		return nil, err
	}
	return capability, nil
}

// newFetcher picks the transport the config asks for.
func newFetcher(cfg *config.Config, rt http.RoundTripper, logger *zap.Logger) (session.Fetcher, error) {
	if cfg.Browser.Enabled {
		return session.NewBrowserFetcher(
			session.WithHeadless(cfg.Browser.Headless),
			session.WithBrowserBin(cfg.Browser.Bin),
			session.WithNavigationTimeout(cfg.GetTimeout()),
			session.WithBrowserLogger(logger.Named("browser")))
	}

	opts := []session.HTTPOption{
		session.WithUserAgent(cfg.UserAgent),
		session.WithRateLimit(cfg.RequestsPerSecond, 1),
		session.WithTimeout(cfg.GetTimeout()),
		session.WithHTTPLogger(logger.Named("http")),
	}
	if rt != nil {
		opts = append(opts, session.WithTransport(rt))
	}
	if cfg.BankName() == config.BankCreditMutuel {
		return creditmutuel.NewFetcher(opts...)
	}
	return session.NewHTTPFetcher(opts...)
}
