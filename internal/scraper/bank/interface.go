// Package bank defines the common structs and logic used throughout bank
// implementations.
package bank

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"
)

// Capability is the surface a bank implementation exposes to callers. Every
// method drives one logical session sequentially; implementations are not
// safe for concurrent use.
type Capability interface {
	// Login authenticates with the bank and establishes a session.
	Login(ctx context.Context) error

	Accounts(ctx context.Context) ([]Account, error)
	Account(ctx context.Context, id string) (*Account, error)

	// History yields the account's transactions in the order the site
	// paginates them. The sequence can be ranged over once.
	History(ctx context.Context, account Account) iter.Seq2[Transaction, error]

	// Coming yields pending card operations, each tagged TransactionCard.
	Coming(ctx context.Context, account Account) iter.Seq2[Transaction, error]

	// Investments fails with ErrUnsupportedOperation unless the account is a
	// market or life insurance account.
	Investments(ctx context.Context, account Account) ([]Investment, error)

	Transfer(ctx context.Context, from, to Account, amount decimal.Decimal, reason string) (*TransferReceipt, error)

	Close() error
}

type BankCode string

const (
	BankCreditMutuel  BankCode = "CREDITMUTUEL"
	BankCaisseEpargne BankCode = "CAISSEEPARGNE"
)
