package bank

import (
	"errors"
	"fmt"
	"iter"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrNotAuthenticated   = errors.New("not authenticated")

	ErrServiceUnavailable   = errors.New("bank service unavailable")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrAccountNotFound      = errors.New("account not found")

	ErrClassification = errors.New("page not classified")
	ErrUnexpectedPage = errors.New("unexpected page")
	ErrFormNotFound   = errors.New("form not found")
	ErrAmbiguousForm  = errors.New("ambiguous form")
	ErrLinkNotFound   = errors.New("link not found")

	ErrRoutingContext    = errors.New("routing context unavailable")
	ErrRoutingContextSet = errors.New("routing context already set")
	ErrSequenceConsumed  = errors.New("sequence already consumed")

	ErrParsingFailed = errors.New("failed to parse bank response")
	ErrTimeout       = errors.New("operation timed out")

	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBalanceCeilingExceeded = errors.New("balance ceiling exceeded")
	ErrProtocolMismatch       = errors.New("transfer protocol mismatch")
)

// ScraperError provides detailed error context
type ScraperError struct {
	BankCode  BankCode
	Operation string
	Cause     error
	Details   string
}

func (e *ScraperError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s failed: %v", e.BankCode, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s] %s failed: %v - %s", e.BankCode, e.Operation, e.Cause, e.Details)
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}

// Wrap returns err as a *ScraperError for the given bank and operation. It is
// a no-op for nil errors and for errors that already carry scraper context.
func Wrap(code BankCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ScraperError
	if errors.As(err, &se) {
		return err
	}
	return &ScraperError{BankCode: code, Operation: op, Cause: err}
}

type TransferFailure int

const (
	TransferInsufficientFunds TransferFailure = iota + 1
	TransferBalanceCeilingExceeded
	TransferProtocolMismatch
)

func (f TransferFailure) String() string {
	switch f {
	case TransferInsufficientFunds:
		return "insufficient funds"
	case TransferBalanceCeilingExceeded:
		return "balance ceiling exceeded"
	case TransferProtocolMismatch:
		return "protocol mismatch"
	default:
		return "unknown"
	}
}

// TransferError reports a transfer the site refused or that ended on a page
// the workflow does not recognise. Transfers are never retried.
type TransferError struct {
	Reason TransferFailure
	Detail string
}

func (e *TransferError) Error() string {
	if e.Detail == "" {
		return "transfer failed: " + e.Reason.String()
	}
	return fmt.Sprintf("transfer failed: %s: %s", e.Reason, e.Detail)
}

func (e *TransferError) Unwrap() error {
	switch e.Reason {
	case TransferInsufficientFunds:
		return ErrInsufficientFunds
	case TransferBalanceCeilingExceeded:
		return ErrBalanceCeilingExceeded
	case TransferProtocolMismatch:
		return ErrProtocolMismatch
	default:
		return nil
	}
}

// WrapSeq applies Wrap to every error seq yields.
func WrapSeq[T any](code BankCode, op string, seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			if !yield(v, Wrap(code, op, err)) {
				return
			}
		}
	}
}

// Once makes seq refuse a second iteration: ranging it again yields a
// single ErrSequenceConsumed.
func Once[T any](seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	consumed := false
	return func(yield func(T, error) bool) {
		if consumed {
			var zero T
			yield(zero, ErrSequenceConsumed)
			return
		}
		consumed = true
		seq(yield)
	}
}
