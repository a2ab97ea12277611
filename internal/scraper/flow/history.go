package flow

import (
	"context"
	"fmt"
	"iter"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
)

// Retriever reads accounts, history and investments through an
// authenticated session.
type Retriever struct {
	auth   *Authenticator
	routes Routes
	logger *zap.Logger
}

// Routes holds the fixed URLs some retrievals jump to.
type Routes struct {
	// Market is the valuation page of the securities portfolio.
	Market string
}

func NewRetriever(auth *Authenticator, routes Routes) *Retriever {
	return &Retriever{
		auth:   auth,
		routes: routes,
		logger: auth.Session().Logger().Named("retriever"),
	}
}

// accountList returns the current page when it already lists accounts and
// goes back to the landing page otherwise.
func (r *Retriever) accountList(ctx context.Context) (AccountList, error) {
	if !r.auth.Authenticated() {
		return nil, bank.ErrNotAuthenticated
	}

	sess := r.auth.Session()
	if list, ok := sess.Current().(AccountList); ok && sess.Is(page.KindAccountList) {
		return list, nil
	}

	p, err := r.auth.Home(ctx)
	if err != nil {
		return nil, err
	}
	list, ok := p.(AccountList)
	if !ok || p.Kind() != page.KindAccountList {
		return nil, fmt.Errorf("%w: expected %s, landed on %s", bank.ErrUnexpectedPage, page.KindAccountList, p.Kind())
	}
	return list, nil
}

func (r *Retriever) Accounts(ctx context.Context) ([]bank.Account, error) {
	list, err := r.accountList(ctx)
	if err != nil {
		return nil, err
	}
	return list.Accounts()
}

func (r *Retriever) Account(ctx context.Context, id string) (*bank.Account, error) {
	accounts, err := r.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", bank.ErrAccountNotFound, id)
}

// History yields the transactions behind hc page after page. It stops
// when a page has no next link, when a navigation lands anywhere but on an
// operations page, or when a request repeats one already made.
func (r *Retriever) History(ctx context.Context, hc bank.HistoryContext) iter.Seq2[bank.Transaction, error] {
	return bank.Once(func(yield func(bank.Transaction, error) bool) {
		if _, err := r.pages(ctx, hc, "", yield); err != nil {
			yield(bank.Transaction{}, err)
		}
	})
}

// Coming yields the pending operations of every card linked to account,
// each tagged as a card transaction.
func (r *Retriever) Coming(ctx context.Context, account bank.Account) iter.Seq2[bank.Transaction, error] {
	return bank.Once(func(yield func(bank.Transaction, error) bool) {
		for _, hc := range account.CardLinks {
			more, err := r.pages(ctx, hc, bank.TransactionCard, yield)
			if err != nil {
				yield(bank.Transaction{}, err)
				return
			}
			if !more {
				return
			}
		}
	})
}

// pages walks the history behind hc, reporting false once yield asked to
// stop. A non-empty tag overrides each transaction's type.
func (r *Retriever) pages(ctx context.Context, hc bank.HistoryContext, tag bank.TransactionType, yield func(bank.Transaction, error) bool) (bool, error) {
	list, err := r.accountList(ctx)
	if err != nil {
		return false, err
	}

	sess := r.auth.Session()
	routing, _ := sess.Routing()
	req, err := list.OpenHistory(hc, routing)
	if err != nil {
		return false, err
	}

	visited := make(map[string]bool)
	for n := 1; req != nil; n++ {
		if visited[req.Key()] {
			r.logger.Warn("history page repeats, stopping", zap.String("request", req.String()))
			return true, nil
		}
		visited[req.Key()] = true

		p, err := sess.Open(ctx, req)
		if err != nil {
			return false, err
		}
		ops, ok := p.(Operations)
		if !ok || p.Kind() != page.KindOperations {
			r.logger.Debug("history ended", zap.Int("pages", n-1), zap.Stringer("kind", p.Kind()))
			return true, nil
		}

		txs, err := ops.Transactions()
		if err != nil {
			return false, err
		}
		for _, tx := range txs {
			if tag != "" {
				tx.Type = tag
			}
			if !yield(tx, nil) {
				return false, nil
			}
		}

		if req, err = ops.NextPage(routing); err != nil {
			return false, err
		}
	}
	return true, nil
}
