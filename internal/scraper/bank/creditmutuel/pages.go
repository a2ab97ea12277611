package creditmutuel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
)

type loginPage struct{ page.Base }

func newLoginPage(b page.Base) page.Page { return loginPage{b} }

// Login fills the identification form.
func (p loginPage) Login(user, password string) (*page.Request, error) {
	form, err := page.SelectForm(p.Forms(), FormLogin)
	if err != nil {
		return nil, err
	}
	return form.Request(map[string]string{
		FieldLogin:    user,
		FieldPassword: password,
	}), nil
}

type loginErrorPage struct{ page.Base }

func newLoginErrorPage(b page.Base) page.Page { return loginErrorPage{b} }

// Message is the reason the portal gives for refusing the login.
func (p loginErrorPage) Message() string {
	return cleanText(p.Document().Find(SelectorLoginMsg).First().Text())
}

type accountsPage struct{ page.Base }

func newAccountsPage(b page.Base) page.Page { return accountsPage{b} }

var accountNumber = regexp.MustCompile(`\d{8,}`)

// Accounts reads the financial summary. Card rows are not accounts of their
// own: their operations are attached to the account listed just above.
func (p accountsPage) Accounts() ([]bank.Account, error) {
	var (
		accounts []bank.Account
		err      error
	)
	p.Document().Find(SelectorAccountRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.FindMatcher(matchAccountLink).First()
		if link.Length() == 0 {
			return true
		}
		href := link.AttrOr("href", "")
		text := cleanText(link.Text())

		if strings.Contains(href, "operations_carte.cgi") {
			if len(accounts) > 0 {
				last := &accounts[len(accounts)-1]
				last.CardLinks = append(last.CardLinks, bank.HistoryContext{Link: href})
			}
			return true
		}

		id := accountNumber.FindString(text)
		if id == "" {
			err = fmt.Errorf("%w: no account number in %q", bank.ErrParsingFailed, text)
			return false
		}
		balance, perr := bank.ParseFrenchAmount(row.FindMatcher(matchCells).Last().Text())
		if perr != nil {
			err = fmt.Errorf("%w: balance of %s: %v", bank.ErrParsingFailed, id, perr)
			return false
		}

		label := cleanText(strings.Replace(text, id, "", 1))
		accounts = append(accounts, bank.Account{
			ID:       id,
			Label:    label,
			Balance:  balance,
			Currency: bank.CurrencyEUR,
			Type:     accountType(label),
			History:  bank.HistoryContext{Link: href},
		})
		return true
	})
	return accounts, err
}

func (p accountsPage) OpenHistory(hc bank.HistoryContext, routing string) (*page.Request, error) {
	if hc.Link == "" {
		return nil, nil
	}
	return resolveLink(p.Document(), routing, hc.Link)
}

var accountTypes = []struct {
	prefix string
	typ    bank.AccountType
}{
	{"C/C", bank.AccountChecking},
	{"COMPTE CHEQUE", bank.AccountChecking},
	{"LIVRET", bank.AccountSavings},
	{"LEP", bank.AccountSavings},
	{"PEL", bank.AccountSavings},
	{"CEL", bank.AccountSavings},
	{"PEA", bank.AccountMarket},
	{"COMPTE TITRES", bank.AccountMarket},
	{"ASSURANCE VIE", bank.AccountLifeInsurance},
	{"PRET", bank.AccountLoan},
	{"CREDIT", bank.AccountLoan},
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

// Transactions reads the operations table: date, value date, label, debit
// and credit columns. Rows with fewer cells are headers or totals.
func (p operationsPage) Transactions() ([]bank.Transaction, error) {
	var (
		txs []bank.Transaction
		err error
	)
	p.Document().Find(SelectorOperationRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.FindMatcher(matchCells)
		if cells.Length() < 5 {
			return true
		}

		date, derr := bank.ParseBankDate(cells.Eq(0).Text())
		if derr != nil {
			err = fmt.Errorf("%w: operation date: %v", bank.ErrParsingFailed, derr)
			return false
		}
		valueDate, _ := bank.ParseBankDate(cells.Eq(1).Text())
		label := cleanText(cells.Eq(2).Text())

		var tx bank.Transaction
		if debit := cleanText(cells.Eq(3).Text()); debit != "" {
			amount, aerr := bank.ParseFrenchAmount(debit)
			if aerr != nil {
				err = fmt.Errorf("%w: debit of %q: %v", bank.ErrParsingFailed, label, aerr)
				return false
			}
			tx.Amount = amount.Abs().Neg()
		} else {
			amount, aerr := bank.ParseFrenchAmount(cells.Eq(4).Text())
			if aerr != nil {
				err = fmt.Errorf("%w: credit of %q: %v", bank.ErrParsingFailed, label, aerr)
				return false
			}
			tx.Amount = amount
		}

		tx.Date = date
		tx.ValueDate = valueDate
		tx.Description = label
		tx.Type = bank.GuessTransactionType(label, tx.Amount)
		txs = append(txs, tx)
		return true
	})
	return txs, err
}

func (p operationsPage) NextPage(routing string) (*page.Request, error) {
	href, ok := p.Document().Find(SelectorNextPage).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, nil
	}
	return resolveLink(p.Document(), routing, strings.TrimSpace(href))
}

// resolveLink resolves a portal link. Absolute paths are used as they are,
// anything else lives under the sub-bank's banking directory.
func resolveLink(doc *page.Document, routing, link string) (*page.Request, error) {
	ref := link
	if !strings.HasPrefix(link, "/") && !strings.Contains(link, "://") {
		ref = "/" + routing + "/fr/banque/" + link
	}
	u, err := doc.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bank.ErrLinkNotFound, link, err)
	}
	return page.Get(u), nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
