package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
)

type TransferState int

const (
	TransferIdle TransferState = iota
	TransferFormFilled
	TransferSubmitted
	TransferConfirmed
	TransferFailed
)

func (s TransferState) String() string {
	switch s {
	case TransferIdle:
		return "idle"
	case TransferFormFilled:
		return "form_filled"
	case TransferSubmitted:
		return "submitted"
	case TransferConfirmed:
		return "confirmed"
	case TransferFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferProtocol is a site's two-step transfer: a form to fill, a prompt
// to confirm, and the phrases telling the outcomes apart.
type TransferProtocol struct {
	// EntryURL is the transfer form for a routing context.
	EntryURL func(routing string) string
	Form     string
	// Fields maps a request to the form's field values.
	Fields      func(req bank.TransferRequest) (map[string]string, error)
	ConfirmForm string

	InsufficientFunds      page.Predicate
	BalanceCeilingExceeded page.Predicate
	ConfirmationPrompt     page.Predicate
	Executed               page.Predicate
}

// Transferer executes transfers. Nothing it does is ever retried: a
// resubmitted confirmation could move the money twice.
type Transferer struct {
	auth   *Authenticator
	proto  TransferProtocol
	now    func() time.Time
	state  TransferState
	logger *zap.Logger
}

type TransferOption func(*Transferer)

// WithClock replaces time.Now for the submission timestamp.
func WithClock(now func() time.Time) TransferOption {
	return func(t *Transferer) { t.now = now }
}

func NewTransferer(auth *Authenticator, proto TransferProtocol, opts ...TransferOption) *Transferer {
	t := &Transferer{
		auth:   auth,
		proto:  proto,
		now:    time.Now,
		logger: auth.Session().Logger().Named("transfer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transferer) State() TransferState { return t.state }

// Transfer moves req.Amount from req.From to req.To. A receipt is returned
// only when the site showed both the confirmation prompt and the executed
// message.
func (t *Transferer) Transfer(ctx context.Context, req bank.TransferRequest) (*bank.TransferReceipt, error) {
	t.state = TransferIdle
	receipt, err := t.run(ctx, req)

	sess := t.auth.Session()
	outcome := "executed"
	if err != nil {
		t.state = TransferFailed
		outcome = "error"
		var te *bank.TransferError
		if errors.As(err, &te) {
			outcome = outcomeLabel(te.Reason)
		}
		t.logger.Warn("transfer failed", zap.String("outcome", outcome), zap.Error(err))
	}
	sess.Metrics().RecordTransfer(sess.Code(), outcome)
	return receipt, err
}

func (t *Transferer) run(ctx context.Context, req bank.TransferRequest) (*bank.TransferReceipt, error) {
	if !t.auth.Authenticated() {
		return nil, bank.ErrNotAuthenticated
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("transfer amount must be positive, got %s", req.Amount)
	}
	sess := t.auth.Session()
	routing, _ := sess.Routing()

	p, err := sess.Navigate(ctx, t.proto.EntryURL(routing))
	if err != nil {
		return nil, err
	}
	if p.Kind() != page.KindTransfer {
		return nil, fmt.Errorf("%w: expected %s, landed on %s", bank.ErrUnexpectedPage, page.KindTransfer, p.Kind())
	}

	form, err := page.SelectForm(p.Forms(), t.proto.Form)
	if err != nil {
		return nil, err
	}
	fields, err := t.proto.Fields(req)
	if err != nil {
		return nil, err
	}
	t.state = TransferFormFilled

	if p, err = sess.Open(ctx, form.Request(fields)); err != nil {
		return nil, err
	}
	t.state = TransferSubmitted

	doc := p.Document()
	switch {
	case t.proto.InsufficientFunds(doc):
		return nil, &bank.TransferError{Reason: bank.TransferInsufficientFunds}
	case t.proto.BalanceCeilingExceeded(doc):
		return nil, &bank.TransferError{Reason: bank.TransferBalanceCeilingExceeded}
	case !t.proto.ConfirmationPrompt(doc):
		return nil, &bank.TransferError{Reason: bank.TransferProtocolMismatch, Detail: "no confirmation prompt"}
	}

	confirm, err := page.SelectForm(p.Forms(), t.proto.ConfirmForm)
	if err != nil {
		return nil, &bank.TransferError{Reason: bank.TransferProtocolMismatch, Detail: err.Error()}
	}
	submitted := t.now()
	if p, err = sess.Open(ctx, confirm.Request(nil)); err != nil {
		return nil, err
	}
	if !t.proto.Executed(p.Document()) {
		return nil, &bank.TransferError{Reason: bank.TransferProtocolMismatch, Detail: "no execution message"}
	}
	t.state = TransferConfirmed

	receipt := &bank.TransferReceipt{
		ID:        submitted.Format("20060102150405"),
		Amount:    req.Amount,
		Origin:    req.From.ID,
		Recipient: req.To.ID,
		Reason:    req.Reason,
		Date:      submitted,
	}
	t.logger.Info("transfer executed", zap.String("receipt", receipt.ID))
	return receipt, nil
}

func outcomeLabel(f bank.TransferFailure) string {
	switch f {
	case bank.TransferInsufficientFunds:
		return "insufficient_funds"
	case bank.TransferBalanceCeilingExceeded:
		return "balance_ceiling_exceeded"
	case bank.TransferProtocolMismatch:
		return "protocol_mismatch"
	default:
		return "error"
	}
}
