package bank

import (
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountUnknown       AccountType = "UNKNOWN"
	AccountChecking      AccountType = "CHECKING"
	AccountSavings       AccountType = "SAVINGS"
	AccountMarket        AccountType = "MARKET"
	AccountLifeInsurance AccountType = "LIFE_INSURANCE"
	AccountCard          AccountType = "CARD"
	AccountLoan          AccountType = "LOAN"
)

// HistoryContext is an opaque locator the site needs to reopen an account's
// transaction history. Only the bank implementation that produced it knows
// how to read it.
type HistoryContext struct {
	Link   string
	Params map[string]string
}

// IsZero reports whether the context carries no locator at all.
func (h HistoryContext) IsZero() bool {
	return h.Link == "" && len(h.Params) == 0
}

// Param returns the named parameter or "" when absent.
func (h HistoryContext) Param(name string) string {
	if h.Params == nil {
		return ""
	}
	return h.Params[name]
}

type Account struct {
	ID       string
	Label    string
	Balance  decimal.Decimal
	Currency Currency
	Type     AccountType

	History HistoryContext
	// CardLinks holds one history context per deferred-debit card attached
	// to the account.
	CardLinks []HistoryContext
}

// SupportsInvestments reports whether positions can be listed for the account.
func (a Account) SupportsInvestments() bool {
	return a.Type == AccountMarket || a.Type == AccountLifeInsurance
}

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// Investment is one position held in a market or life insurance account.
type Investment struct {
	Code      string
	Label     string
	Quantity  decimal.Decimal
	UnitValue decimal.Decimal
	Valuation decimal.Decimal
}
