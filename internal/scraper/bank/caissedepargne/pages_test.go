package caissedepargne

import (
	"strings"
	"testing"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/bank/testutil"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	national = "https://www.caisse-epargne.fr"
	regional = "https://www.net382.caisse-epargne.fr"
)

var prod = DefaultEndpoints("")

// render loads a fixture with its partner hosts pointed at e.
func render(t testing.TB, fixture string, e Endpoints) string {
	t.Helper()
	return strings.NewReplacer(
		"{{MARKET}}", e.Market,
		"{{EXTRANET}}", e.LifeInsurance,
	).Replace(testutil.LoadFixture(t, "caissedepargne", fixture))
}

func classify(t *testing.T, fixture, rawURL string) page.Page {
	t.Helper()
	p, err := Table(prod).Classify(page.MustDocument(rawURL, render(t, fixture, prod)))
	require.NoError(t, err)
	return p
}

func TestTable_Classify(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		url     string
		want    page.Kind
	}{
		{"login", "login_step1", national + loginPath, page.KindLogin},
		{"accounts", "accounts", regional + "/Portail.aspx", page.KindAccountList},
		{"history", "history_p1", regional + "/Portail.aspx", page.KindOperations},
		{"contracts", "contracts", regional + "/Portail.aspx?tache=CPTSYNT0", page.KindUserSpace},
		{"login error", "login_error", national + "/login.aspx", page.KindLoginError},
		{"logout", "login_error", regional + "/Pages/logout.aspx?ret=1", page.KindLoginError},
		{"closed", "market_reroute", regional + "/page_hs_dei_3.aspx", page.KindUnavailable},
		{"bourse", "bourse", regional + "/Pages/Bourse/Titres.aspx", page.KindMarket},
		{"rerouting", "market_reroute", DefaultMarket + "/ReroutageSJR", page.KindMarket},
		{"portfolio", "portfolio", prod.Portfolio(), page.KindMarket},
		{"assurance", "assurance", regional + "/Assurance/Pages/Assurance.aspx?contrat=1", page.KindLifeInsurance},
		{"extranet", "extranet_home", DefaultLifeInsurance + "/espaceclient/accueil.do", page.KindLifeInsurance},
		{"maintenance", "maintenance", regional + "/Portail.aspx", page.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(t, tt.fixture, tt.url).Kind())
		})
	}
}

func TestTable_PartnerPagesNeedTheirHost(t *testing.T) {
	doc := page.MustDocument("https://evil.example.com/Portefeuille", "<p></p>")
	_, err := Table(prod).Classify(doc)
	assert.ErrorIs(t, err, bank.ErrClassification)
}

func TestLoginPhases(t *testing.T) {
	creds := bank.Credentials{Login: "0123456789", Password: "246810", AccountNumber: "42"}

	t.Run("identifier", func(t *testing.T) {
		p := classify(t, "login_step1", national+loginPath)

		req, err := submitIdentifier(p, creds)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "0123456789", req.Form.Get(FieldUserName))
		assert.Equal(t, FieldUserName, req.Form.Get("__EVENTTARGET"))
		assert.Equal(t, "dDwtMTA4NzE0NDQ7Oz4=", req.Form.Get("__VIEWSTATE"))
		assert.Equal(t, "/particuliers/ind_pauthpopup.aspx", req.URL.Path)

		for _, phase := range []func(page.Page, bank.Credentials) (*page.Request, error){submitAccountNumber, submitPassword} {
			req, err := phase(p, creds)
			require.NoError(t, err)
			assert.Nil(t, req)
		}
	})

	t.Run("account number", func(t *testing.T) {
		p := classify(t, "login_nuser", national+loginPath)

		req, err := submitIdentifier(p, creds)
		require.NoError(t, err)
		assert.Nil(t, req)

		req, err = submitAccountNumber(p, creds)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, "42", req.Form.Get(FieldNUser))
		assert.Equal(t, "246810", req.Form.Get(FieldPassword))
		assert.Equal(t, ArgLoginServer, req.Form.Get("__EVENTARGUMENT"))

		req, err = submitPassword(p, creds)
		require.NoError(t, err)
		assert.Nil(t, req, "password-only phase must not run when the account number is asked")
	})

	t.Run("personal keypad", func(t *testing.T) {
		p := classify(t, "login_password", national+loginPath)

		req, err := submitAccountNumber(p, creds)
		require.NoError(t, err)
		assert.Nil(t, req)

		req, err = submitPassword(p, creds)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, "246810", req.Form.Get(FieldPassword))
		assert.False(t, req.Form.Has(FieldNUser))
	})

	t.Run("wrong page", func(t *testing.T) {
		p := classify(t, "accounts", regional+"/Portail.aspx")
		_, err := submitIdentifier(p, creds)
		assert.ErrorIs(t, err, bank.ErrUnexpectedPage)
	})
}

func TestHandshake_RoutingAndHome(t *testing.T) {
	hs := handshake(prod)
	assert.Equal(t, national+loginPath, hs.LoginURL)

	routing, err := hs.Routing(classify(t, "accounts", regional+"/Portail.aspx"))
	require.NoError(t, err)
	assert.Equal(t, "www.net382.caisse-epargne.fr", routing)
	assert.Equal(t, regional+"/Portail.aspx", hs.HomeURL(routing))

	assert.Equal(t,
		"Les informations saisies ne nous permettent pas de vous identifier. Merci de vérifier votre identifiant et votre code confidentiel.",
		hs.Rejection(classify(t, "login_error", national+"/login.aspx")))
}

func TestAccountsPage_Accounts(t *testing.T) {
	p := classify(t, "accounts", regional+"/Portail.aspx").(accountsPage)

	accounts, err := p.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 7)

	checking := accounts[0]
	assert.Equal(t, "04012345678", checking.ID)
	assert.Equal(t, "Compte de Dépôt", checking.Label)
	assert.Equal(t, bank.AccountChecking, checking.Type)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(checking.Balance))
	assert.Equal(t, "HISTORIQUE_COB#E#0#0", checking.History.Link)
	assert.Equal(t, "MM$SYNTHESE", checking.History.Param("target"))
	require.Len(t, checking.CardLinks, 1)
	assert.Equal(t, "HISTORIQUE_CB#E#0#0", checking.CardLinks[0].Link)

	types := make(map[string]bank.AccountType)
	for _, a := range accounts {
		types[a.ID] = a.Type
	}
	assert.Equal(t, map[string]bank.AccountType{
		"04012345678": bank.AccountChecking,
		"04012345679": bank.AccountSavings,
		"04012345680": bank.AccountMarket,
		"04012345684": bank.AccountMarket,
		"04012345681": bank.AccountLifeInsurance,
		"04012345683": bank.AccountLifeInsurance,
		"04012345682": bank.AccountLoan,
	}, types)
	assert.True(t, decimal.RequireFromString("-5000").Equal(accounts[6].Balance))
}

func TestAccountsPage_OpenHistoryPostsBack(t *testing.T) {
	p := classify(t, "accounts", regional+"/Portail.aspx").(accountsPage)

	req, err := p.OpenHistory(bank.HistoryContext{Link: "HISTORIQUE_COB#E#0#0", Params: map[string]string{"target": "MM$SYNTHESE"}}, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, regional+"/Portail.aspx", req.URL.String())
	assert.Equal(t, "MM$SYNTHESE", req.Form.Get("__EVENTTARGET"))
	assert.Equal(t, "HISTORIQUE_COB#E#0#0", req.Form.Get("__EVENTARGUMENT"))
	assert.Equal(t, "c3ludGhlc2U=", req.Form.Get("__VIEWSTATE"))

	req, err = p.OpenHistory(bank.HistoryContext{}, "")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestHasHistory(t *testing.T) {
	assert.True(t, hasHistory(bank.HistoryContext{Link: "HISTORIQUE_COB#E#0#0"}))
	assert.True(t, hasHistory(bank.HistoryContext{Link: "HISTORIQUE_CB#E#0#0"}))
	assert.False(t, hasHistory(bank.HistoryContext{Link: "SYNTHESE_PRET#E#4#0"}))
	assert.False(t, hasHistory(bank.HistoryContext{}))
}

func TestOperationsPage(t *testing.T) {
	p := classify(t, "history_p1", regional+"/Portail.aspx").(operationsPage)

	txs, err := p.Transactions()
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "CB CARREFOUR FACT 140324", txs[0].Description)
	assert.True(t, decimal.RequireFromString("-52.30").Equal(txs[0].Amount))
	assert.Equal(t, bank.TransactionDebit, txs[0].Type)
	assert.True(t, decimal.RequireFromString("2450").Equal(txs[1].Amount))
	assert.Equal(t, bank.TransactionTransfer, txs[1].Type)

	next, err := p.NextPage("")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "MM$HISTORIQUE_COMPTE$lnkSuivante", next.Form.Get("__EVENTTARGET"))
	assert.Equal(t, "aGlzdG9yaXF1ZTE=", next.Form.Get("__VIEWSTATE"))

	last := classify(t, "history_p2", regional+"/Portail.aspx").(operationsPage)
	next, err = last.NextPage("")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestMarketPages(t *testing.T) {
	entry := classify(t, "bourse", regional+"/Pages/Bourse/Titres.aspx").(marketPage)
	req, err := entry.Continue()
	require.NoError(t, err)
	assert.Equal(t, DefaultMarket+"/ReroutageSJR", req.URL.String())
	assert.Equal(t, "b0urse", req.Form.Get("jeton"))
	assert.False(t, entry.IsError())

	failed := classify(t, "market_error", DefaultMarket+"/ReroutageSJR").(marketPage)
	assert.True(t, failed.IsError())

	portfolio := classify(t, "portfolio", prod.Portfolio()).(marketPage)
	invs, err := portfolio.Investments()
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "AIR LIQUIDE", invs[0].Label)
	assert.Equal(t, "FR0000120073", invs[0].Code)
	assert.True(t, decimal.NewFromInt(10).Equal(invs[0].Quantity))
	assert.True(t, decimal.RequireFromString("185.5").Equal(invs[0].UnitValue))
	assert.True(t, decimal.RequireFromString("1855").Equal(invs[0].Valuation))
}

func TestLifeInsurancePages(t *testing.T) {
	contracts := classify(t, "contracts", regional+"/Portail.aspx").(portalPage)

	req, err := contracts.OpenContract(bank.Account{ID: "04012345681"})
	require.NoError(t, err)
	assert.Equal(t, regional+"/Assurance/Pages/Assurance.aspx?contrat=04012345681", req.URL.String())

	_, err = contracts.OpenContract(bank.Account{ID: "04012345683"})
	assert.ErrorIs(t, err, bank.ErrLinkNotFound)

	home := classify(t, "extranet_home", DefaultLifeInsurance+"/espaceclient/accueil.do").(lifeInsurancePage)
	req, err = home.ValuationLink()
	require.NoError(t, err)
	assert.Equal(t, DefaultLifeInsurance+"/espaceclient/repartition.do?contrat=04012345681", req.URL.String())

	allocation := classify(t, "repartition", DefaultLifeInsurance+"/espaceclient/repartition.do?contrat=1").(lifeInsurancePage)
	_, err = allocation.ValuationLink()
	assert.ErrorIs(t, err, bank.ErrLinkNotFound)

	invs, err := allocation.Investments()
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "Fonds euros", invs[0].Label)
	assert.True(t, invs[0].Quantity.IsZero())
	assert.True(t, decimal.RequireFromString("15000").Equal(invs[0].Valuation))
	assert.True(t, decimal.RequireFromString("312.5014").Equal(invs[1].Quantity))
}
