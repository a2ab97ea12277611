package caissedepargne

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const code = bank.BankCaisseEpargne

// Browser implements bank.Capability for Caisse d'Épargne.
type Browser struct {
	creds     bank.Credentials
	endpoints Endpoints
	sess      *session.Session
	auth      *flow.Authenticator
	retriever *flow.Retriever
	logger    *zap.Logger
}

type options struct {
	endpoints Endpoints
	fetcher   session.Fetcher
	logger    *zap.Logger
	metrics   *session.Metrics
}

type Option func(*options)

// WithDomain selects the regional host the login starts from.
func WithDomain(domain string) Option {
	return func(o *options) {
		if domain != "" {
			o.endpoints.Base = "https://" + strings.TrimRight(domain, "/")
		}
	}
}

// WithEndpoints replaces every host, such as with test servers.
func WithEndpoints(e Endpoints) Option {
	return func(o *options) { o.endpoints = e }
}

func WithFetcher(f session.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *session.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds a browser for creds. Credentials.AccountNumber is the nuser
// some customers are asked for alongside their password.
func New(creds bank.Credentials, opts ...Option) (*Browser, error) {
	o := options{
		endpoints: DefaultEndpoints(""),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		f, err := session.NewHTTPFetcher(session.WithHTTPLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.fetcher = f
	}

	sess := session.New(code, Table(o.endpoints), o.fetcher,
		session.WithLogger(o.logger),
		session.WithMetrics(o.metrics))
	auth := flow.NewAuthenticator(sess, handshake(o.endpoints))

	return &Browser{
		creds:     creds,
		endpoints: o.endpoints,
		sess:      sess,
		auth:      auth,
		retriever: flow.NewRetriever(auth, flow.Routes{Market: o.endpoints.Portfolio()}),
		logger:    o.logger,
	}, nil
}

var _ bank.Capability = (*Browser)(nil)

func (b *Browser) Login(ctx context.Context) error {
	return bank.Wrap(code, "Login", b.auth.Login(ctx, b.creds))
}

func (b *Browser) Accounts(ctx context.Context) ([]bank.Account, error) {
	accounts, err := b.retriever.Accounts(ctx)
	return accounts, bank.Wrap(code, "Accounts", err)
}

func (b *Browser) Account(ctx context.Context, id string) (*bank.Account, error) {
	acc, err := b.retriever.Account(ctx, id)
	return acc, bank.Wrap(code, "Account", err)
}

// History yields nothing for accounts whose link is not a history view.
func (b *Browser) History(ctx context.Context, account bank.Account) iter.Seq2[bank.Transaction, error] {
	if !hasHistory(account.History) {
		b.logger.Debug("account has no history view", zap.String("account", account.ID))
		return bank.Once(func(func(bank.Transaction, error) bool) {})
	}
	return bank.WrapSeq(code, "History", b.retriever.History(ctx, account.History))
}

// Coming yields the pending card operations of account.
func (b *Browser) Coming(ctx context.Context, account bank.Account) iter.Seq2[bank.Transaction, error] {
	cards := account
	cards.CardLinks = nil
	for _, hc := range account.CardLinks {
		if hasHistory(hc) {
			cards.CardLinks = append(cards.CardLinks, hc)
		}
	}
	return bank.WrapSeq(code, "Coming", b.retriever.Coming(ctx, cards))
}

func (b *Browser) Investments(ctx context.Context, account bank.Account) ([]bank.Investment, error) {
	invs, err := b.retriever.Investments(ctx, account)
	return invs, bank.Wrap(code, "Investments", err)
}

// Transfer is not offered by this portal.
func (b *Browser) Transfer(ctx context.Context, from, to bank.Account, amount decimal.Decimal, reason string) (*bank.TransferReceipt, error) {
	return nil, bank.Wrap(code, "Transfer",
		fmt.Errorf("%w: transfers are not supported", bank.ErrUnsupportedOperation))
}

func (b *Browser) Close() error {
	return b.sess.Close()
}
