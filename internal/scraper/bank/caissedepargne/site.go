// Package caissedepargne drives the Caisse d'Épargne portal. Login takes up
// to three postbacks on the authentication popup, the customer is then
// served from a regional host, and securities and life insurance positions
// live on partner hosts.
package caissedepargne

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/page"
)

const (
	DefaultDomain        = "www.caisse-epargne.fr"
	DefaultMarket        = "https://www.caisse-epargne.offrebourse.com"
	DefaultLifeInsurance = "https://www.extranet2.caisse-epargne.fr"

	loginPath  = "/particuliers/ind_pauthpopup.aspx?mar=101&reg=&fctpopup=auth&cv=0"
	portalPath = "/Portail.aspx"
)

// Endpoints are the hosts a session visits. Only Base depends on the
// customer's region.
type Endpoints struct {
	Base          string
	Market        string
	LifeInsurance string
}

// DefaultEndpoints returns the production hosts for domain, or for the
// national host when domain is empty.
func DefaultEndpoints(domain string) Endpoints {
	if domain == "" {
		domain = DefaultDomain
	}
	return Endpoints{
		Base:          "https://" + domain,
		Market:        DefaultMarket,
		LifeInsurance: DefaultLifeInsurance,
	}
}

// Portfolio is the valuation page of the securities account.
func (e Endpoints) Portfolio() string {
	return e.Market + "/Portefeuille"
}

func origin(raw string) string {
	return `^` + regexp.QuoteMeta(strings.TrimRight(raw, "/"))
}

// Table builds the page table for e. Partner pages are recognised by host,
// portal pages by path on whichever regional host served them.
func Table(e Endpoints) *page.Table {
	return page.NewTable("caissedepargne",
		page.Sniff(page.KindUnavailable, page.ContainsAny("Service momentanément indisponible", "opération de maintenance"), page.Generic),
		page.Path(`^/particuliers/ind_pauthpopup\.aspx`, page.KindLogin, newLoginPage),
		page.Path(`^/Portail\.aspx`, page.KindOperations, newOperationsPage).When(page.HasElement(SelectorHistoryTable)),
		page.Path(`^/Portail\.aspx`, page.KindAccountList, newAccountsPage).When(page.HasElement(SelectorAccountTable)),
		page.Path(`^/Portail\.aspx`, page.KindUserSpace, newPortalPage),
		page.Path(`^/login\.aspx$`, page.KindLoginError, newLoginErrorPage),
		page.Path(`^/Pages/logout\.aspx`, page.KindLoginError, newLoginErrorPage),
		page.Path(`^/page_hs_dei_.*\.aspx`, page.KindUnavailable, page.Generic),
		page.Path(`^/Pages/Bourse`, page.KindMarket, newMarketPage),
		page.URL(origin(e.Market)+`/(ReroutageSJR|Portefeuille)`, page.KindMarket, newMarketPage),
		page.Path(`^/Assurance/Pages/Assurance\.aspx`, page.KindLifeInsurance, newLifeInsurancePage),
		page.URL(origin(e.LifeInsurance), page.KindLifeInsurance, newLifeInsurancePage),
	)
}

func handshake(e Endpoints) flow.Handshake {
	scheme := "https"
	if u, err := url.Parse(e.Base); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	return flow.Handshake{
		LoginURL: e.Base + loginPath,
		Phases:   []flow.Phase{submitIdentifier, submitAccountNumber, submitPassword},
		Routing: func(landing page.Page) (string, error) {
			host := landing.Document().URL().Host
			if host == "" {
				return "", fmt.Errorf("landing page %s has no host", landing.Document().URL())
			}
			return host, nil
		},
		HomeURL: func(routing string) string {
			return scheme + "://" + routing + portalPath
		},
		Rejection: func(current page.Page) string {
			if p, ok := current.(loginErrorPage); ok {
				return p.Message()
			}
			return ""
		},
	}
}

func loginForm(current page.Page) (*page.Form, error) {
	if _, ok := current.(loginPage); !ok {
		return nil, fmt.Errorf("%w: login form expected on %s page", bank.ErrUnexpectedPage, current.Kind())
	}
	return page.SelectForm(current.Forms(), FormMain)
}

// submitIdentifier posts the user name alone.
func submitIdentifier(current page.Page, creds bank.Credentials) (*page.Request, error) {
	form, err := loginForm(current)
	if err != nil {
		return nil, err
	}
	if !form.Has(FieldUserName) || form.Has(FieldPassword) {
		return nil, nil
	}
	return form.Request(map[string]string{
		FieldUserName:   creds.Login,
		"__EVENTTARGET": FieldUserName,
	}), nil
}

// submitAccountNumber posts the password with the account number, for
// pages that ask for one.
func submitAccountNumber(current page.Page, creds bank.Credentials) (*page.Request, error) {
	form, err := loginForm(current)
	if err != nil {
		return nil, err
	}
	if !form.Has(FieldNUser) {
		return nil, nil
	}
	return form.Request(map[string]string{
		FieldNUser:        creds.AccountNumber,
		FieldPassword:     creds.Password,
		"__EVENTTARGET":   FieldSubmit,
		"__EVENTARGUMENT": ArgLoginServer,
	}), nil
}

// submitPassword is the personal keypad variant: password only.
func submitPassword(current page.Page, creds bank.Credentials) (*page.Request, error) {
	form, err := loginForm(current)
	if err != nil {
		return nil, err
	}
	if form.Has(FieldNUser) || !form.Has(FieldPassword) {
		return nil, nil
	}
	return form.Request(map[string]string{
		FieldPassword:     creds.Password,
		"__EVENTTARGET":   FieldSubmit,
		"__EVENTARGUMENT": ArgLoginServer,
	}), nil
}

// hasHistory reports whether hc opens a transaction history. Other links
// lead to summaries the history pages cannot read.
func hasHistory(hc bank.HistoryContext) bool {
	return strings.HasPrefix(hc.Link, "HISTORIQUE")
}
