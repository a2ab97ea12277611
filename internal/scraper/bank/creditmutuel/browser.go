package creditmutuel

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

const code = bank.BankCreditMutuel

// Browser implements bank.Capability for Crédit Mutuel.
type Browser struct {
	creds     bank.Credentials
	sess      *session.Session
	auth      *flow.Authenticator
	retriever *flow.Retriever
	transfers *flow.Transferer
	logger    *zap.Logger
}

type options struct {
	baseURL string
	fetcher session.Fetcher
	logger  *zap.Logger
	metrics *session.Metrics
	clock   func() time.Time
}

type Option func(*options)

// WithBaseURL points the browser at another host, such as a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f session.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *session.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock stamping transfer receipts.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// NewFetcher returns an HTTP fetcher speaking the portal's ISO-8859-1.
func NewFetcher(opts ...session.HTTPOption) (*session.HTTPFetcher, error) {
	return session.NewHTTPFetcher(append([]session.HTTPOption{session.WithFormEncoding(charmap.ISO8859_1)}, opts...)...)
}

func New(creds bank.Credentials, opts ...Option) (*Browser, error) {
	o := options{
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		f, err := NewFetcher(session.WithHTTPLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.fetcher = f
	}

	sess := session.New(code, Table(), o.fetcher,
		session.WithLogger(o.logger),
		session.WithMetrics(o.metrics))
	auth := flow.NewAuthenticator(sess, handshake(o.baseURL))

	var topts []flow.TransferOption
	if o.clock != nil {
		topts = append(topts, flow.WithClock(o.clock))
	}

	return &Browser{
		creds:     creds,
		sess:      sess,
		auth:      auth,
		retriever: flow.NewRetriever(auth, flow.Routes{}),
		transfers: flow.NewTransferer(auth, transferProtocol(o.baseURL), topts...),
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

func (b *Browser) History(ctx context.Context, account bank.Account) iter.Seq2[bank.Transaction, error] {
	return bank.WrapSeq(code, "History", b.retriever.History(ctx, account.History))
}

// Coming yields the pending operations of the cards attached to account.
func (b *Browser) Coming(ctx context.Context, account bank.Account) iter.Seq2[bank.Transaction, error] {
	return bank.WrapSeq(code, "Coming", b.retriever.Coming(ctx, account))
}

// Investments is not offered by this portal.
func (b *Browser) Investments(ctx context.Context, account bank.Account) ([]bank.Investment, error) {
	if !account.SupportsInvestments() {
		return nil, bank.Wrap(code, "Investments",
			fmt.Errorf("%w: investments of %s account %s", bank.ErrUnsupportedOperation, account.Type, account.ID))
	}
	return nil, bank.Wrap(code, "Investments",
		fmt.Errorf("%w: positions are not published by this portal", bank.ErrUnsupportedOperation))
}

func (b *Browser) Transfer(ctx context.Context, from, to bank.Account, amount decimal.Decimal, reason string) (*bank.TransferReceipt, error) {
	receipt, err := b.transfers.Transfer(ctx, bank.TransferRequest{
		From:   from,
		To:     to,
		Amount: amount,
		Reason: reason,
	})
	return receipt, bank.Wrap(code, "Transfer", err)
}

func (b *Browser) Close() error {
	return b.sess.Close()
}
