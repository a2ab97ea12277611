package caissedepargne

import "github.com/andybalholm/cascadia"

// Login popup. Every step posts the same ASP.NET form back to itself.
const (
	FormMain = "Main"

	fieldPrefix    = "ctl01$CC_ind_pauthpopup$ctl01$CC_ind_ident$ctl01$"
	FieldUserName  = fieldPrefix + "CC_ind_inputUserName"
	FieldNUser     = fieldPrefix + "CC_ind_inputNuser"
	FieldPassword  = fieldPrefix + "CC_ind_inputPassword"
	FieldSubmit    = fieldPrefix + "CC_ind_btnValider"
	ArgLoginServer = "idsrv=WE"

	SelectorLoginError = "div.erreur"
)

// Portal pages
const (
	FormPortal = "main"

	SelectorAccountTable = "table.accompte"
	SelectorAccountRows  = "table.accompte tr"
	SelectorHistoryTable = "table.tblHistorique"
	SelectorHistoryRows  = "table.tblHistorique tbody tr"
	SelectorNextPage     = "a.lnkSuivante"
	SelectorContractLink = "a[href*='Assurance.aspx']"
)

// Market and life insurance
const (
	SelectorMarketError   = "div.erreur"
	SelectorPositionRows  = "table#tableValeurs tbody tr"
	SelectorValuationLink = "tr#sousMenuConsultation3 a[href]"
	SelectorContractRows  = "table.repartition tbody tr"
)

var (
	matchLink   = cascadia.MustCompile("a[href]")
	matchCells  = cascadia.MustCompile("td")
	matchNumber = cascadia.MustCompile("span.numero")
	matchAmount = cascadia.MustCompile("td.montant")
)
