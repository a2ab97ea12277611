package flow_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/grez-lucas/webbank/internal/scraper/testutil"
	"github.com/stretchr/testify/require"
)

// The roles below model a minimal bank: a login form, an account list, a
// paginated history, a market and a life insurance sub-flow.

type listPage struct{ page.Base }

func (p listPage) Accounts() ([]bank.Account, error) {
	var accounts []bank.Account
	p.Document().Find("li.account").Each(func(_ int, s *goquery.Selection) {
		acc := bank.Account{
			ID:    s.AttrOr("data-id", ""),
			Label: strings.TrimSpace(s.Text()),
			Type:  bank.AccountType(s.AttrOr("data-type", string(bank.AccountChecking))),
		}
		acc.History.Link = s.AttrOr("data-link", "")
		if card, ok := s.Attr("data-card"); ok {
			acc.CardLinks = append(acc.CardLinks, bank.HistoryContext{Link: card})
		}
		accounts = append(accounts, acc)
	})
	return accounts, nil
}

func (p listPage) OpenHistory(hc bank.HistoryContext, routing string) (*page.Request, error) {
	if hc.Link == "" {
		return nil, nil
	}
	u, err := p.Document().Resolve("/" + routing + hc.Link)
	if err != nil {
		return nil, err
	}
	return page.Get(u), nil
}

type opsPage struct{ page.Base }

func (p opsPage) Transactions() ([]bank.Transaction, error) {
	var txs []bank.Transaction
	var err error
	p.Document().Find("tr.op").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		cells := s.Find("td")
		date, e := bank.ParseBankDate(cells.Eq(0).Text())
		if e != nil {
			err = e
			return false
		}
		amount, e := bank.ParseFrenchAmount(cells.Eq(2).Text())
		if e != nil {
			err = e
			return false
		}
		txs = append(txs, bank.Transaction{
			Date:        date,
			Description: strings.TrimSpace(cells.Eq(1).Text()),
			Amount:      amount,
			Type:        bank.TransactionDebit,
		})
		return true
	})
	return txs, err
}

func (p opsPage) NextPage(string) (*page.Request, error) {
	href, ok := p.Document().Find("a.next").Attr("href")
	if !ok {
		return nil, nil
	}
	u, err := p.Document().Resolve(href)
	if err != nil {
		return nil, err
	}
	return page.Get(u), nil
}

// gate continues through its only form.
type gate struct{ page.Base }

func (p gate) Continue() (*page.Request, error) {
	form, err := page.SelectForm(p.Forms(), "")
	if err != nil {
		return nil, err
	}
	return form.Request(nil), nil
}

func (p gate) IsError() bool {
	return p.Document().Find(".error").Length() > 0
}

type positions struct{ page.Base }

func (p positions) Investments() ([]bank.Investment, error) {
	var out []bank.Investment
	p.Document().Find("tr.position").Each(func(_ int, s *goquery.Selection) {
		valuation, _ := bank.ParseFrenchAmount(s.Find("td.value").Text())
		out = append(out, bank.Investment{
			Label:     strings.TrimSpace(s.Find("td.label").Text()),
			Valuation: valuation,
		})
	})
	return out, nil
}

type contracts struct{ page.Base }

func (p contracts) OpenContract(acc bank.Account) (*page.Request, error) {
	href, ok := p.Document().Find(fmt.Sprintf(`a[data-contract=%q]`, acc.ID)).Attr("href")
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", bank.ErrLinkNotFound, acc.ID)
	}
	u, err := p.Document().Resolve(href)
	if err != nil {
		return nil, err
	}
	return page.Get(u), nil
}

type summary struct{ page.Base }

func (p summary) ValuationLink() (*page.Request, error) {
	href, ok := p.Document().Find("a#repart").Attr("href")
	if !ok {
		return nil, fmt.Errorf("%w: repartition", bank.ErrLinkNotFound)
	}
	u, err := p.Document().Resolve(href)
	if err != nil {
		return nil, err
	}
	return page.Get(u), nil
}

func testTable() *page.Table {
	return page.NewTable("testbank",
		page.Sniff(page.KindUnavailable, page.ContainsAny("Service indisponible"), page.Generic),
		page.Path(`^/login$`, page.KindLogin, page.Generic),
		page.Path(`^/error$`, page.KindLoginError, page.Generic),
		page.Path(`^/[^/]+/home$`, page.KindAccountList, func(b page.Base) page.Page { return listPage{b} }),
		page.Path(`^/[^/]+/ops/`, page.KindOperations, func(b page.Base) page.Page { return opsPage{b} }),
		page.Path(`^/[^/]+/nodata`, page.KindNoOperations, page.Generic),
		page.Path(`^/[^/]+/market/portfolio$`, page.KindMarket, func(b page.Base) page.Page { return positions{b} }),
		page.Path(`^/[^/]+/market/`, page.KindMarket, func(b page.Base) page.Page { return gate{b} }),
		page.Path(`^/[^/]+/life/index$`, page.KindLifeInsurance, func(b page.Base) page.Page { return contracts{b} }),
		page.Path(`^/[^/]+/life/gate2?$`, page.KindLifeInsurance, func(b page.Base) page.Page { return gate{b} }),
		page.Path(`^/[^/]+/life/summary2?$`, page.KindLifeInsurance, func(b page.Base) page.Page { return summary{b} }),
		page.Path(`^/[^/]+/life/repart$`, page.KindLifeInsurance, func(b page.Base) page.Page { return positions{b} }),
		page.Path(`^/[^/]+/transfer`, page.KindTransfer, page.Generic),
	)
}

const loginForm = `<form name="login" method="post" action="/login">
	<input type="text" name="user"><input type="password" name="pass">
</form>`

// newFakeSite serves a login that accepts alice/secret and routes her under
// /zone1.
func newFakeSite(t *testing.T) *testutil.FakeBank {
	t.Helper()
	fake := testutil.NewFakeBank(t)
	fake.HTML("GET /login", loginForm)
	fake.Handle("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("user") == "alice" && r.PostFormValue("pass") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "alice", Path: "/"})
			http.Redirect(w, r, "/zone1/home", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/error", http.StatusFound)
	})
	fake.HTML("/error", `<p class="msg">Identifiant ou mot de passe incorrect</p>`)
	fake.HTML("/zone1/home", `<ul>
		<li class="account" data-id="CHK1" data-link="/ops/1" data-card="/ops/card">Compte courant</li>
		<li class="account" data-id="CHK2" data-link="/ops/loop">Compte joint</li>
		<li class="account" data-id="SAV1" data-type="SAVINGS" data-link="/nodata">Livret A</li>
		<li class="account" data-id="MKT1" data-type="MARKET" data-link="/market/entry">Titres</li>
		<li class="account" data-id="MKT2" data-type="MARKET" data-link="/market/closed">PEA</li>
		<li class="account" data-id="LIF1" data-type="LIFE_INSURANCE" data-link="/life/index">Assurance vie</li>
		<li class="account" data-id="LIF2" data-type="LIFE_INSURANCE" data-link="/life/index">Autre contrat</li>
		<li class="account" data-id="LIF3" data-type="LIFE_INSURANCE" data-link="/life/index">Contrat en cours</li>
	</ul>`)
	fake.HTML("/zone1/ops/1", `<table>
		<tr class="op"><td>03/01/2024</td><td>CB CARREFOUR</td><td>-12,50</td></tr>
		<tr class="op"><td>02/01/2024</td><td>VIR SALAIRE</td><td>1 500,00</td></tr>
	</table><a class="next" href="/zone1/ops/2">Suivant</a>`)
	fake.HTML("/zone1/ops/2", `<table>
		<tr class="op"><td>01/01/2024</td><td>PRLV EDF</td><td>-40,00</td></tr>
	</table>`)
	fake.HTML("/zone1/ops/card", `<table>
		<tr class="op"><td>05/01/2024</td><td>AMAZON</td><td>-9,99</td></tr>
	</table>`)
	fake.HTML("/zone1/ops/loop", `<table>
		<tr class="op"><td>04/01/2024</td><td>FRAIS</td><td>-2,00</td></tr>
	</table><a class="next" href="/zone1/ops/loop">Suivant</a>`)
	fake.HTML("/zone1/nodata", `<p>Aucune opération</p>`)
	fake.HTML("/zone1/market/entry", `<form method="post" action="/zone1/market/check"><input type="hidden" name="k" value="v"></form>`)
	fake.HTML("/zone1/market/closed", `<form method="post" action="/zone1/market/check"><input type="hidden" name="k" value="closed"></form>`)
	fake.Handle("/zone1/market/check", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("k") == "closed" {
			io.WriteString(w, `<p class="error">Votre compte titres est clôturé</p>`)
			return
		}
		io.WriteString(w, `<p>ok</p>`)
	})
	fake.HTML("/zone1/market/portfolio", `<table>
		<tr class="position"><td class="label">AIR LIQUIDE</td><td class="value">1 234,00</td></tr>
	</table>`)
	fake.HTML("/zone1/life/index", `<a data-contract="LIF1" href="/zone1/life/gate">Contrat</a>
		<a data-contract="LIF3" href="/zone1/life/gate2">Contrat en cours</a>`)
	fake.HTML("/zone1/life/gate", `<form method="post" action="/zone1/life/summary"></form>`)
	fake.HTML("/zone1/life/summary", `<a id="repart" href="/zone1/life/repart">Répartition</a>`)
	fake.HTML("/zone1/life/gate2", `<form method="post" action="/zone1/life/summary2"></form>`)
	fake.HTML("/zone1/life/summary2", `<p>Répartition indisponible</p>`)
	fake.HTML("/zone1/life/repart", `<table>
		<tr class="position"><td class="label">Fonds euros</td><td class="value">10 000,00</td></tr>
		<tr class="position"><td class="label">UC Actions</td><td class="value">2 500,50</td></tr>
	</table>`)
	return fake
}

func testHandshake(fake *testutil.FakeBank) flow.Handshake {
	return flow.Handshake{
		LoginURL: fake.URL("/login"),
		Phases: []flow.Phase{
			func(current page.Page, creds bank.Credentials) (*page.Request, error) {
				form, err := page.SelectForm(current.Forms(), "login")
				if err != nil {
					return nil, err
				}
				return form.Request(map[string]string{"user": creds.Login, "pass": creds.Password}), nil
			},
		},
		Routing: func(landing page.Page) (string, error) {
			parts := strings.Split(strings.Trim(landing.Document().URL().Path, "/"), "/")
			if len(parts) == 0 || parts[0] == "" {
				return "", fmt.Errorf("no zone in %s", landing.Document().URL())
			}
			return parts[0], nil
		},
		HomeURL: func(routing string) string { return fake.URL("/" + routing + "/home") },
		Rejection: func(current page.Page) string {
			return strings.TrimSpace(current.Document().Find("p.msg").Text())
		},
	}
}

type harness struct {
	fake *testutil.FakeBank
	sess *session.Session
	auth *flow.Authenticator
	ret  *flow.Retriever
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	fake := newFakeSite(t)
	fetcher, err := session.NewHTTPFetcher()
	require.NoError(t, err)
	sess := session.New("TESTBANK", testTable(), fetcher, opts...)
	t.Cleanup(func() { sess.Close() })

	auth := flow.NewAuthenticator(sess, testHandshake(fake))
	return &harness{
		fake: fake,
		sess: sess,
		auth: auth,
		ret:  flow.NewRetriever(auth, flow.Routes{Market: fake.URL("/zone1/market/portfolio")}),
	}
}

var alice = bank.Credentials{Login: "alice", Password: "secret"}
