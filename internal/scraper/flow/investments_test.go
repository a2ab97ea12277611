package flow_test

import (
	"context"
	"testing"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/grez-lucas/webbank/internal/scraper/session/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRetriever_InvestmentsRejectsIneligibleAccountsOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectation is set: any fetch fails the test.
	fetcher := mocks.NewMockFetcher(ctrl)
	sess := session.New("TESTBANK", testTable(), fetcher)
	ret := flow.NewRetriever(flow.NewAuthenticator(sess, flow.Handshake{}), flow.Routes{})

	for _, typ := range []bank.AccountType{bank.AccountChecking, bank.AccountSavings, bank.AccountCard, bank.AccountUnknown} {
		t.Run(string(typ), func(t *testing.T) {
			_, err := ret.Investments(context.Background(), bank.Account{ID: "X", Type: typ})
			assert.ErrorIs(t, err, bank.ErrUnsupportedOperation)
		})
	}
}

func TestRetriever_Investments(t *testing.T) {
	tests := []struct {
		name    string
		account string
		want    []bank.Investment
	}{
		{
			name:    "market portfolio",
			account: "MKT1",
			want: []bank.Investment{
				{Label: "AIR LIQUIDE", Valuation: decimal.RequireFromString("1234")},
			},
		},
		{
			name:    "market error page means no positions",
			account: "MKT2",
		},
		{
			name:    "life insurance repartition",
			account: "LIF1",
			want: []bank.Investment{
				{Label: "Fonds euros", Valuation: decimal.RequireFromString("10000")},
				{Label: "UC Actions", Valuation: decimal.RequireFromString("2500.5")},
			},
		},
		{
			name:    "life insurance without contract link",
			account: "LIF2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := loggedIn(t)
			acc := account(t, h, tt.account)

			got, err := h.ret.Investments(context.Background(), acc)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Label, got[i].Label)
				assert.True(t, tt.want[i].Valuation.Equal(got[i].Valuation), "valuation of %s: %s", got[i].Label, got[i].Valuation)
			}
		})
	}
}

func TestRetriever_LifeInsuranceWithoutValuationLink(t *testing.T) {
	h := loggedIn(t)

	got, err := h.ret.Investments(context.Background(), account(t, h, "LIF3"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, h.fake.HitCount("/zone1/life/summary2"))
	assert.Zero(t, h.fake.HitCount("/zone1/life/repart"))
}

func TestRetriever_MarketErrorSkipsPortfolio(t *testing.T) {
	h := loggedIn(t)

	_, err := h.ret.Investments(context.Background(), account(t, h, "MKT2"))
	require.NoError(t, err)
	assert.Zero(t, h.fake.HitCount("/zone1/market/portfolio"))
}
