package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"go.uber.org/zap"
)

// Investments lists the positions of a market or life insurance account.
// Any other account type fails before a single request is made.
//
// Two dead ends count as an empty portfolio rather than a failure: a market
// page reporting an error, and a life insurance contract whose links cannot
// be found.
func (r *Retriever) Investments(ctx context.Context, account bank.Account) ([]bank.Investment, error) {
	if !account.SupportsInvestments() {
		return nil, fmt.Errorf("%w: investments of %s account %s", bank.ErrUnsupportedOperation, account.Type, account.ID)
	}

	list, err := r.accountList(ctx)
	if err != nil {
		return nil, err
	}
	routing, _ := r.auth.Session().Routing()
	req, err := list.OpenHistory(account.History, routing)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: account %s has no history context", bank.ErrLinkNotFound, account.ID)
	}
	p, err := r.auth.Session().Open(ctx, req)
	if err != nil {
		return nil, err
	}

	switch account.Type {
	case bank.AccountMarket:
		return r.market(ctx, p)
	default:
		return r.lifeInsurance(ctx, p, account)
	}
}

func (r *Retriever) market(ctx context.Context, p page.Page) ([]bank.Investment, error) {
	sess := r.auth.Session()

	next, err := as[Continuer](p)
	if err != nil {
		return nil, err
	}
	req, err := next.Continue()
	if err != nil {
		return nil, err
	}
	if p, err = sess.Open(ctx, req); err != nil {
		return nil, err
	}
	if rep, ok := p.(ErrorReporter); ok && rep.IsError() {
		r.logger.Info("market page reports an error, no positions")
		return nil, nil
	}

	if r.routes.Market == "" {
		return nil, fmt.Errorf("%w: no market route", bank.ErrUnsupportedOperation)
	}
	if p, err = sess.Navigate(ctx, r.routes.Market); err != nil {
		return nil, err
	}
	return positions(p)
}

func (r *Retriever) lifeInsurance(ctx context.Context, p page.Page, account bank.Account) ([]bank.Investment, error) {
	sess := r.auth.Session()

	opener, err := as[ContractOpener](p)
	if err != nil {
		return nil, err
	}
	req, err := opener.OpenContract(account)
	if errors.Is(err, bank.ErrLinkNotFound) {
		r.logger.Info("no life insurance contract link", zap.String("account", account.ID), zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p, err = sess.Open(ctx, req); err != nil {
		return nil, err
	}

	next, err := as[Continuer](p)
	if err != nil {
		return nil, err
	}
	if req, err = next.Continue(); err != nil {
		return nil, err
	}
	if p, err = sess.Open(ctx, req); err != nil {
		return nil, err
	}

	linker, err := as[ValuationLinker](p)
	if err != nil {
		return nil, err
	}
	req, err = linker.ValuationLink()
	if errors.Is(err, bank.ErrLinkNotFound) {
		r.logger.Info("no valuation link", zap.String("account", account.ID), zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p, err = sess.Open(ctx, req); err != nil {
		return nil, err
	}
	return positions(p)
}

func positions(p page.Page) ([]bank.Investment, error) {
	src, err := as[InvestmentSource](p)
	if err != nil {
		return nil, err
	}
	return src.Investments()
}

// as asserts that p plays role R.
func as[R any](p page.Page) (R, error) {
	role, ok := p.(R)
	if !ok {
		var zero R
		return zero, fmt.Errorf("%w: %s page cannot serve as %T", bank.ErrUnexpectedPage, p.Kind(), (*R)(nil))
	}
	return role, nil
}
