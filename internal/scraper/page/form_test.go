package page

import (
	"net/http"
	"testing"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transferFormHTML = `<html><body>
<form name="FormVirUniSaiCpt" method="post" action="WI_VPLV_VirUniSaiCpt.asp?RAZ=ALL">
  <input type="hidden" name="token" value="abc">
  <select name="IDB"><option value="0">A</option><option value="1" selected>B</option></select>
  <select name="ICR"><option value="2">C</option><option value="3">D</option></select>
  <input type="text" name="MTTVIR">
  <input type="text" name="LIBDBT" disabled value="x">
  <input type="checkbox" name="agree" checked>
  <input type="checkbox" name="newsletter" value="yes">
  <textarea name="comment">hello</textarea>
  <input type="submit" name="send" value="Valider">
</form>
<form id="search" action="/search"><input name="q" value="default"></form>
</body></html>`

func TestDocument_Forms(t *testing.T) {
	doc := MustDocument("https://bank.example/cmdv/fr/banque/virement.cgi", transferFormHTML)

	forms := doc.Forms()
	require.Len(t, forms, 2)

	f := forms[0]
	assert.Equal(t, "FormVirUniSaiCpt", f.Name)
	assert.Equal(t, http.MethodPost, f.Method)
	assert.Equal(t, "https://bank.example/cmdv/fr/banque/WI_VPLV_VirUniSaiCpt.asp?RAZ=ALL", f.Action.String())

	assert.Equal(t, "abc", f.Value("token"))
	assert.Equal(t, "1", f.Value("IDB"))
	assert.Equal(t, "2", f.Value("ICR"), "first option is the default")
	assert.Equal(t, "on", f.Value("agree"))
	assert.Equal(t, "hello", f.Value("comment"))

	defaults := f.Defaults()
	assert.NotContains(t, defaults, "LIBDBT", "disabled controls are not submitted")
	assert.NotContains(t, defaults, "newsletter", "unchecked boxes are not submitted")
	assert.NotContains(t, defaults, "send", "submit buttons are not submitted")

	assert.True(t, f.Has("LIBDBT"))
	assert.True(t, f.Has("MTTVIR"))
	assert.False(t, f.Has("missing"))
}

func TestForm_Request(t *testing.T) {
	doc := MustDocument("https://bank.example/cmdv/fr/banque/virement.cgi", transferFormHTML)

	f, err := doc.Form("FormVirUniSaiCpt")
	require.NoError(t, err)

	req := f.Request(map[string]string{"MTTVIR": "50,5", "IDB": "3"})
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "50,5", req.Form.Get("MTTVIR"))
	assert.Equal(t, "3", req.Form.Get("IDB"))
	assert.Equal(t, "abc", req.Form.Get("token"))

	// Filling a request never touches the form snapshot.
	assert.Equal(t, "1", f.Value("IDB"))

	search, err := doc.Form("search")
	require.NoError(t, err)
	get := search.Request(map[string]string{"q": "livret"})
	assert.Equal(t, http.MethodGet, get.Method)
	assert.Equal(t, "https://bank.example/search?q=livret", get.URL.String())
	assert.Nil(t, get.Form)
}

func TestForm_PostBack(t *testing.T) {
	doc := MustDocument("https://bank.example/Portail.aspx", `<form id="main" method="post">
		<input type="hidden" name="__VIEWSTATE" value="vs">
		<input type="hidden" name="__EVENTTARGET" value="">
	</form>`)

	f, err := doc.Form("")
	require.NoError(t, err)

	req := f.PostBack("MM$SYNTHESE", "HISTORIQUE_CCP#0")
	assert.Equal(t, "https://bank.example/Portail.aspx", req.URL.String())
	assert.Equal(t, "MM$SYNTHESE", req.Form.Get("__EVENTTARGET"))
	assert.Equal(t, "HISTORIQUE_CCP#0", req.Form.Get("__EVENTARGUMENT"))
	assert.Equal(t, "vs", req.Form.Get("__VIEWSTATE"))
}

func TestSelectForm(t *testing.T) {
	doc := MustDocument("https://bank.example/", transferFormHTML)
	empty := MustDocument("https://bank.example/", "<p>no forms</p>")

	_, err := SelectForm(doc.Forms(), "")
	assert.ErrorIs(t, err, bank.ErrAmbiguousForm)

	_, err = SelectForm(empty.Forms(), "")
	assert.ErrorIs(t, err, bank.ErrFormNotFound)

	_, err = SelectForm(doc.Forms(), "FormVirUniCnf")
	assert.ErrorIs(t, err, bank.ErrFormNotFound)

	f, err := SelectForm(doc.Forms(), "search")
	require.NoError(t, err)
	assert.Equal(t, "search", f.ID)
}

func TestDocument_ResolveUsesBaseHref(t *testing.T) {
	doc := MustDocument("https://bank.example/a/b/page.html",
		`<html><head><base href="https://static.bank.example/root/"><title> Accueil </title></head></html>`)

	u, err := doc.Resolve("next.html")
	require.NoError(t, err)
	assert.Equal(t, "https://static.bank.example/root/next.html", u.String())
	assert.Equal(t, "Accueil", doc.Title())
}

func TestDocument_Contains(t *testing.T) {
	doc := MustDocument("https://bank.example/", "<p>Votre virement a été exécuté ce jour</p>")

	assert.True(t, doc.Contains("Votre virement a été exécuté ce jour"))
	assert.False(t, doc.Contains("Montant insuffisant."))
	assert.False(t, doc.Contains(""))

	body := doc.Body()
	body[0] = 'X'
	assert.True(t, doc.Contains("<p>"), "Body returns a copy")
}
