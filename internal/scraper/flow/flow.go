// Package flow implements the multi-step workflows that run on top of a
// session: authentication, paginated history, investment retrieval and
// transfers. Workflows only read page roles and hand the requests those
// roles build back to the session; site packages supply the roles.
package flow

import (
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
)

// AccountList is the role of a site's landing page listing accounts.
type AccountList interface {
	page.Page
	Accounts() ([]bank.Account, error)
	// OpenHistory builds the request that opens hc. A nil request means
	// the context has no history to show.
	OpenHistory(hc bank.HistoryContext, routing string) (*page.Request, error)
}

// Operations is the role of one page of transaction history.
type Operations interface {
	page.Page
	Transactions() ([]bank.Transaction, error)
	// NextPage returns nil on the last page.
	NextPage(routing string) (*page.Request, error)
}

// InvestmentSource is a role listing investment positions.
type InvestmentSource interface {
	page.Page
	Investments() ([]bank.Investment, error)
}

// Continuer is a role whose only way forward is submitting its form.
type Continuer interface {
	page.Page
	Continue() (*page.Request, error)
}

// ErrorReporter is implemented by roles that can render an in-page error.
type ErrorReporter interface {
	IsError() bool
}

// ContractOpener links an account to its life insurance contract.
type ContractOpener interface {
	page.Page
	OpenContract(account bank.Account) (*page.Request, error)
}

// ValuationLinker resolves the page holding a contract's positions.
type ValuationLinker interface {
	page.Page
	ValuationLink() (*page.Request, error)
}
