// Package creditmutuel drives the Crédit Mutuel customer portal: a single
// phase login, accounts and history served under a per-customer sub-bank
// prefix, and a two-step transfer between own accounts.
package creditmutuel

import (
	"fmt"
	"slices"
	"strings"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/flow"
	"github.com/grez-lucas/webbank/internal/scraper/page"
)

const (
	DefaultBaseURL = "https://www.creditmutuel.fr"

	loginPath    = "/groupe/fr/index.html"
	transferPath = "WI_VPLV_VirUniSaiCpt.asp?RAZ=ALL&Cat=6&PERM=N&CHX=A"
)

// SubBanks are the regional federations whose prefix routes a customer's
// pages.
var SubBanks = []string{
	"cmdv", "cmcee", "cmse", "cmidf", "cmsmb", "cmma", "cmmabn", "cmc", "cmlaco", "cmnormandie", "cmm",
}

// Phrases the transfer pages are told apart by.
const (
	PhraseInsufficientFunds = "Montant insuffisant."
	PhraseBalanceCeiling    = "Solde maximum autorisé dépassé."
	PhraseConfirm           = "Confirmez un virement entre vos comptes"
	PhraseExecuted          = "Votre virement a été exécuté ce jour"
)

var table = page.NewTable("creditmutuel",
	page.Sniff(page.KindUnavailable, page.ContainsAny("Site momentanément indisponible", "opération de maintenance"), page.Generic),
	page.Path(`^/groupe/fr/index\.html$`, page.KindLogin, newLoginPage),
	page.Path(`^/.*/fr/identification/default\.cgi`, page.KindLoginError, newLoginErrorPage),
	page.Path(`^/.*/fr/banque/situation_financiere\.cgi`, page.KindAccountList, newAccountsPage),
	page.Path(`^/.*/fr/banque/espace_personnel\.aspx`, page.KindUserSpace, page.Generic),
	page.Path(`^/.*/fr/banque/mouvements\.cgi`, page.KindOperations, newOperationsPage),
	page.Path(`^/.*/fr/banque/nr/nr_devbooster\.aspx`, page.KindOperations, newOperationsPage),
	page.Path(`^/.*/fr/banque/operations_carte\.cgi`, page.KindOperations, newOperationsPage),
	page.Path(`^/.*/fr/banque/arrivees\.asp`, page.KindNoOperations, page.Generic),
	page.Path(`^/.*/fr/banque/BAD`, page.KindInfo, page.Generic),
	page.Path(`^/.*/fr/banque/.*Vir`, page.KindTransfer, page.Generic),
)

// Table returns the page table shared by every Crédit Mutuel session.
func Table() *page.Table { return table }

// subBank finds the sub-bank prefix among the landing URL's path segments.
func subBank(landing page.Page) (string, error) {
	for _, part := range strings.Split(landing.Document().URL().Path, "/") {
		if slices.Contains(SubBanks, part) {
			return part, nil
		}
	}
	return "", fmt.Errorf("no sub-bank in %s", landing.Document().URL().Path)
}

func handshake(base string) flow.Handshake {
	return flow.Handshake{
		LoginURL: base + loginPath,
		Phases:   []flow.Phase{submitLogin},
		Routing:  subBank,
		HomeURL: func(routing string) string {
			return bankURL(base, routing, "situation_financiere.cgi")
		},
		Rejection: func(current page.Page) string {
			if p, ok := current.(loginErrorPage); ok {
				return p.Message()
			}
			return ""
		},
	}
}

func submitLogin(current page.Page, creds bank.Credentials) (*page.Request, error) {
	login, ok := current.(loginPage)
	if !ok {
		return nil, fmt.Errorf("%w: login form expected on %s page", bank.ErrUnexpectedPage, current.Kind())
	}
	return login.Login(creds.Login, creds.Password)
}

func transferProtocol(base string) flow.TransferProtocol {
	return flow.TransferProtocol{
		EntryURL: func(routing string) string {
			return bankURL(base, routing, transferPath)
		},
		Form:                   FormTransfer,
		Fields:                 transferFields,
		ConfirmForm:            FormTransferConfirm,
		InsufficientFunds:      page.ContainsAny(PhraseInsufficientFunds),
		BalanceCeilingExceeded: page.ContainsAny(PhraseBalanceCeiling),
		ConfirmationPrompt:     page.ContainsAny(PhraseConfirm),
		Executed:               page.ContainsAny(PhraseExecuted),
	}
}

// transferFields fills the transfer form. Accounts are picked by the last
// character of their identifier, which is how the form numbers them.
func transferFields(req bank.TransferRequest) (map[string]string, error) {
	if req.From.ID == "" || req.To.ID == "" {
		return nil, fmt.Errorf("%w: transfer needs both account identifiers", bank.ErrAccountNotFound)
	}
	fields := map[string]string{
		FieldFromAccount: req.From.ID[len(req.From.ID)-1:],
		FieldToAccount:   req.To.ID[len(req.To.ID)-1:],
		FieldAmount:      bank.FormatFrenchAmount(req.Amount),
	}
	if req.Reason != "" {
		fields[FieldDebitLabel] = req.Reason
		fields[FieldCreditLabel] = req.Reason
	}
	return fields, nil
}

// bankURL builds https://<host>/<subbank>/fr/banque/<ref>.
func bankURL(base, routing, ref string) string {
	return fmt.Sprintf("%s/%s/fr/banque/%s", base, routing, ref)
}
