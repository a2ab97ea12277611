package caissedepargne

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/shopspring/decimal"
)

type loginPage struct{ page.Base }

func newLoginPage(b page.Base) page.Page { return loginPage{b} }

type loginErrorPage struct{ page.Base }

func newLoginErrorPage(b page.Base) page.Page { return loginErrorPage{b} }

func (p loginErrorPage) Message() string {
	return cleanText(p.Document().Find(SelectorLoginError).First().Text())
}

var accountNumber = regexp.MustCompile(`\d{8,}`)

var postBack = regexp.MustCompile(`__doPostBack\('([^']*)','([^']*)'\)`)

// parsePostBack extracts the event target and argument of a javascript
// postback link.
func parsePostBack(href string) (target, argument string, ok bool) {
	m := postBack.FindStringSubmatch(href)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// portalPostBack replays a postback on the portal form of doc.
func portalPostBack(p page.Page, target, argument string) (*page.Request, error) {
	form, err := page.SelectForm(p.Forms(), FormPortal)
	if err != nil {
		return nil, err
	}
	return form.PostBack(target, argument), nil
}

// portalPage is a portal page with neither accounts nor history, such as
// the contract summary of a life insurance account.
type portalPage struct{ page.Base }

func newPortalPage(b page.Base) page.Page { return portalPage{b} }

// OpenContract follows the link to the insurer's page for account.
func (p portalPage) OpenContract(account bank.Account) (*page.Request, error) {
	var href string
	p.Document().Find(SelectorContractLink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), account.ID) || strings.Contains(a.AttrOr("href", ""), account.ID) {
			href = a.AttrOr("href", "")
			return false
		}
		return true
	})
	if href == "" {
		return nil, fmt.Errorf("%w: no contract link for %s", bank.ErrLinkNotFound, account.ID)
	}
	u, err := p.Document().Resolve(href)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bank.ErrLinkNotFound, href, err)
	}
	return page.Get(u), nil
}

type accountsPage struct{ page.Base }

func newAccountsPage(b page.Base) page.Page { return accountsPage{b} }

// Accounts reads the synthesis table. Each account link is a postback
// whose argument names the view it opens; card rows belong to the account
// listed above them.
func (p accountsPage) Accounts() ([]bank.Account, error) {
	var (
		accounts []bank.Account
		err      error
	)
	p.Document().Find(SelectorAccountRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.FindMatcher(matchLink).First()
		if link.Length() == 0 {
			return true
		}
		target, argument, ok := parsePostBack(link.AttrOr("href", ""))
		if !ok {
			return true
		}
		hc := bank.HistoryContext{Link: argument, Params: map[string]string{"target": target}}

		if strings.HasPrefix(argument, "HISTORIQUE_CB") {
			if len(accounts) > 0 {
				last := &accounts[len(accounts)-1]
				last.CardLinks = append(last.CardLinks, hc)
			}
			return true
		}

		id := accountNumber.FindString(row.FindMatcher(matchNumber).Text())
		if id == "" {
			err = fmt.Errorf("%w: no account number in row %q", bank.ErrParsingFailed, cleanText(row.Text()))
			return false
		}
		balance, perr := bank.ParseFrenchAmount(row.FindMatcher(matchAmount).First().Text())
		if perr != nil {
			err = fmt.Errorf("%w: balance of %s: %v", bank.ErrParsingFailed, id, perr)
			return false
		}

		label := cleanText(link.Text())
		accounts = append(accounts, bank.Account{
			ID:       id,
			Label:    label,
			Balance:  balance,
			Currency: bank.CurrencyEUR,
			Type:     accountType(label),
			History:  hc,
		})
		return true
	})
	return accounts, err
}

// OpenHistory replays the account's postback. The routing context is not
// needed: the portal form already posts to the regional host.
func (p accountsPage) OpenHistory(hc bank.HistoryContext, _ string) (*page.Request, error) {
	if hc.Link == "" {
		return nil, nil
	}
	return portalPostBack(p, hc.Param("target"), hc.Link)
}

var accountTypes = []struct {
	prefix string
	typ    bank.AccountType
}{
	{"COMPTE DE DÉPÔT", bank.AccountChecking},
	{"COMPTE COURANT", bank.AccountChecking},
	{"CPT DEPOT", bank.AccountChecking},
	{"LIVRET", bank.AccountSavings},
	{"LEP", bank.AccountSavings},
	{"PEL", bank.AccountSavings},
	{"CEL", bank.AccountSavings},
	{"COMPTE TITRES", bank.AccountMarket},
	{"PEA", bank.AccountMarket},
	{"ASSURANCE VIE", bank.AccountLifeInsurance},
	{"NUANCES", bank.AccountLifeInsurance},
	{"PRÊT", bank.AccountLoan},
	{"CRÉDIT", bank.AccountLoan},
}

func accountType(label string) bank.AccountType {
	upper := strings.ToUpper(label)
	for _, t := range accountTypes {
		if strings.HasPrefix(upper, t.prefix) {
			return t.typ
		}
	}
	return bank.AccountUnknown
}

type operationsPage struct{ page.Base }

func newOperationsPage(b page.Base) page.Page { return operationsPage{b} }

// Transactions reads the history grid: date, label, debit, credit.
func (p operationsPage) Transactions() ([]bank.Transaction, error) {
	var (
		txs []bank.Transaction
		err error
	)
	p.Document().Find(SelectorHistoryRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.FindMatcher(matchCells)
		if cells.Length() < 4 {
			return true
		}
		date, derr := bank.ParseBankDate(cells.Eq(0).Text())
		if derr != nil {
			err = fmt.Errorf("%w: operation date: %v", bank.ErrParsingFailed, derr)
			return false
		}
		label := cleanText(cells.Eq(1).Text())

		raw, credit := cleanText(cells.Eq(2).Text()), false
		if raw == "" {
			raw, credit = cleanText(cells.Eq(3).Text()), true
		}
		amount, aerr := bank.ParseFrenchAmount(raw)
		if aerr != nil {
			err = fmt.Errorf("%w: amount of %q: %v", bank.ErrParsingFailed, label, aerr)
			return false
		}
		if !credit {
			amount = amount.Abs().Neg()
		}

		txs = append(txs, bank.Transaction{
			Date:        date,
			ValueDate:   date,
			Description: label,
			Amount:      amount,
			Type:        bank.GuessTransactionType(label, amount),
		})
		return true
	})
	return txs, err
}

func (p operationsPage) NextPage(_ string) (*page.Request, error) {
	href, ok := p.Document().Find(SelectorNextPage).First().Attr("href")
	if !ok {
		return nil, nil
	}
	target, argument, ok := parsePostBack(href)
	if !ok {
		return nil, nil
	}
	return portalPostBack(p, target, argument)
}

// marketPage covers the portal's securities entry, the broker's rerouting
// page and the portfolio itself.
type marketPage struct{ page.Base }

func newMarketPage(b page.Base) page.Page { return marketPage{b} }

// Continue submits the page's single form, which hands the session over to
// the broker.
func (p marketPage) Continue() (*page.Request, error) {
	form, err := page.SelectForm(p.Forms(), "")
	if err != nil {
		return nil, err
	}
	return form.Request(nil), nil
}

func (p marketPage) IsError() bool {
	return p.Document().Find(SelectorMarketError).Length() > 0
}

// Investments reads the portfolio: label, code, quantity, unit value and
// valuation.
func (p marketPage) Investments() ([]bank.Investment, error) {
	return readPositions(p.Document(), SelectorPositionRows)
}

type lifeInsurancePage struct{ page.Base }

func newLifeInsurancePage(b page.Base) page.Page { return lifeInsurancePage{b} }

func (p lifeInsurancePage) Continue() (*page.Request, error) {
	form, err := page.SelectForm(p.Forms(), "")
	if err != nil {
		return nil, err
	}
	return form.Request(nil), nil
}

// ValuationLink finds the contract's allocation page in the insurer menu.
func (p lifeInsurancePage) ValuationLink() (*page.Request, error) {
	href, ok := p.Document().Find(SelectorValuationLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, fmt.Errorf("%w: no allocation link on %s", bank.ErrLinkNotFound, p.Document().URL().Path)
	}
	u, err := p.Document().Resolve(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bank.ErrLinkNotFound, href, err)
	}
	return page.Get(u), nil
}

func (p lifeInsurancePage) Investments() ([]bank.Investment, error) {
	return readPositions(p.Document(), SelectorContractRows)
}

// readPositions reads rows of label, code, quantity, unit value and
// valuation. Euro funds show no quantity nor unit value.
func readPositions(doc *page.Document, rows string) ([]bank.Investment, error) {
	var (
		out []bank.Investment
		err error
	)
	doc.Find(rows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.FindMatcher(matchCells)
		if cells.Length() < 5 {
			return true
		}
		inv := bank.Investment{
			Label: cleanText(cells.Eq(0).Text()),
			Code:  cleanText(cells.Eq(1).Text()),
		}
		for i, dst := range []*decimal.Decimal{&inv.Quantity, &inv.UnitValue, &inv.Valuation} {
			raw := cleanText(cells.Eq(i + 2).Text())
			if raw == "" || raw == "-" {
				continue
			}
			v, perr := bank.ParseFrenchAmount(raw)
			if perr != nil {
				err = fmt.Errorf("%w: position %q: %v", bank.ErrParsingFailed, inv.Label, perr)
				return false
			}
			*dst = v
		}
		out = append(out, inv)
		return true
	})
	return out, err
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
