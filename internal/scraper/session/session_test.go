package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/grez-lucas/webbank/internal/scraper/session"
	"github.com/grez-lucas/webbank/internal/scraper/session/mocks"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testBank bank.BankCode = "TEST"

func testTable() *page.Table {
	return page.NewTable("test",
		page.Sniff(page.KindUnavailable, page.ContainsAny("maintenance"), page.Generic),
		page.Path(`^/login$`, page.KindLogin, page.Generic),
		page.Path(`^/accounts$`, page.KindAccountList, page.Generic),
		page.Path(`^/ops$`, page.KindOperations, page.Generic),
	)
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.FormValue("user") == "alice" && r.FormValue("token") == "t0k" {
				http.SetCookie(w, &http.Cookie{Name: "SID", Value: "s1", Path: "/"})
				http.Redirect(w, r, "/accounts", http.StatusFound)
				return
			}
		}
		io.WriteString(w, `<form name="auth" method="post" action="/login">
			<input type="hidden" name="token" value="t0k">
			<input type="text" name="user">
			<input type="submit" name="go" value="OK">
		</form>`)
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SID"); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		io.WriteString(w, `<a href="ops">ops</a>`)
	})
	mux.HandleFunc("/ops", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<table></table>`)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<h1>Site en maintenance</h1>`)
	})
	mux.HandleFunc("/weird", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<p>?</p>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPSession(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	f, err := session.NewHTTPFetcher()
	require.NoError(t, err)
	s := session.New(testBank, testTable(), f, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSession_NavigateClassifiesCurrentPage(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)
	ctx := context.Background()

	assert.Nil(t, s.Current())
	assert.False(t, s.IsAuthenticated())

	p, err := s.Navigate(ctx, srv.URL+"/login", session.SkipAuth())
	require.NoError(t, err)
	assert.Equal(t, page.KindLogin, p.Kind())
	assert.True(t, s.Is(page.KindLogin))
	assert.False(t, s.IsAuthenticated())

	p, err = s.SubmitForm(ctx, "auth", map[string]string{"user": "alice"}, session.SkipAuth())
	require.NoError(t, err)
	assert.Equal(t, page.KindAccountList, p.Kind())
	assert.True(t, s.IsAuthenticated())

	// Relative links resolve against the current page.
	p, err = s.Navigate(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, page.KindOperations, p.Kind())
	assert.Same(t, p, s.Current())
}

func TestSession_LoginPageWithoutSkipAuthIsSessionExpired(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)

	p, err := s.Navigate(context.Background(), srv.URL+"/accounts")
	require.ErrorIs(t, err, bank.ErrSessionExpired)
	require.NotNil(t, p)
	assert.Equal(t, page.KindLogin, p.Kind())
	assert.True(t, s.Is(page.KindLogin))
}

func TestSession_UnavailablePage(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)

	_, err := s.Navigate(context.Background(), srv.URL+"/down", session.SkipAuth())
	require.ErrorIs(t, err, bank.ErrServiceUnavailable)
	assert.True(t, s.Is(page.KindUnavailable))
	assert.False(t, s.IsAuthenticated())
}

func TestSession_ClassificationFailureLeavesNoCurrentPage(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)
	ctx := context.Background()

	_, err := s.Navigate(ctx, srv.URL+"/ops")
	require.NoError(t, err)

	_, err = s.Navigate(ctx, srv.URL+"/weird")
	require.ErrorIs(t, err, bank.ErrClassification)
	assert.Nil(t, s.Current())
	assert.False(t, s.Is(page.KindOperations))
}

func TestSession_FetchErrorKeepsPreviousPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	s := session.New(testBank, testTable(), fetcher)
	ctx := context.Background()

	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(&session.Response{
		URL:    mustParse(t, "https://bank.test/ops"),
		Status: http.StatusOK,
		Body:   []byte("<table></table>"),
	}, nil)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.Navigate(ctx, "https://bank.test/ops")
	require.NoError(t, err)

	_, err = s.Navigate(ctx, "https://bank.test/accounts")
	require.Error(t, err)
	assert.True(t, s.Is(page.KindOperations))
}

func TestSession_DeadlineIsReportedAsTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	s := session.New(testBank, testTable(), fetcher)

	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

	_, err := s.Navigate(context.Background(), "https://bank.test/ops")
	require.ErrorIs(t, err, bank.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_NavigateRelativeWithoutCurrentPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	s := session.New(testBank, testTable(), fetcher)

	_, err := s.Navigate(context.Background(), "ops")
	assert.Error(t, err)
}

func TestSession_ResetClearsState(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)
	ctx := context.Background()

	_, err := s.Navigate(ctx, srv.URL+"/login", session.SkipAuth())
	require.NoError(t, err)
	_, err = s.SubmitForm(ctx, "auth", map[string]string{"user": "alice"}, session.SkipAuth())
	require.NoError(t, err)
	require.NoError(t, s.SetRouting("cmut"))

	require.NoError(t, s.Reset())
	assert.Nil(t, s.Current())
	_, ok := s.Routing()
	assert.False(t, ok)

	// The cookie went with the reset, so the account list bounces to login.
	_, err = s.Navigate(ctx, srv.URL+"/accounts")
	assert.ErrorIs(t, err, bank.ErrSessionExpired)
}

func TestSession_ResetPropagatesCookieError(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	s := session.New(testBank, testTable(), fetcher)

	fetcher.EXPECT().ClearCookies().Return(errors.New("boom"))
	assert.Error(t, s.Reset())
}

func TestSession_RoutingIsSetOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	s := session.New(testBank, testTable(), fetcher)

	_, ok := s.Routing()
	assert.False(t, ok)

	require.NoError(t, s.SetRouting("cmso"))
	err := s.SetRouting("cmut")
	assert.ErrorIs(t, err, bank.ErrRoutingContextSet)

	v, ok := s.Routing()
	assert.True(t, ok)
	assert.Equal(t, "cmso", v)
}

func TestSession_SubmitFormErrors(t *testing.T) {
	srv := testSite(t)
	s := newHTTPSession(t)

	_, err := s.SubmitForm(context.Background(), "", nil)
	assert.ErrorIs(t, err, bank.ErrFormNotFound)

	_, err = s.Navigate(context.Background(), srv.URL+"/ops")
	require.NoError(t, err)
	_, err = s.SubmitForm(context.Background(), "auth", nil)
	assert.ErrorIs(t, err, bank.ErrFormNotFound)
}

func TestSession_Metrics(t *testing.T) {
	srv := testSite(t)
	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	s := newHTTPSession(t, session.WithMetrics(metrics))
	ctx := context.Background()

	_, err := s.Navigate(ctx, srv.URL+"/ops")
	require.NoError(t, err)
	_, err = s.Navigate(ctx, srv.URL+"/weird")
	require.Error(t, err)

	count, err := promtest.GatherAndCount(reg, "webbank_navigations_total", "webbank_classification_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = promtest.GatherAndCount(reg, "webbank_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *session.Metrics
	assert.NotPanics(t, func() { m.RecordTransfer(testBank, "executed") })
	assert.Nil(t, session.NewMetrics(nil))
}
