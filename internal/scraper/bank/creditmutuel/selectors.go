package creditmutuel

import "github.com/andybalholm/cascadia"

// CSS selectors for the Crédit Mutuel web portal
const (
	// Login page
	FormLogin        = "bloc_ident"
	FieldLogin       = "_cm_user"
	FieldPassword    = "_cm_pwd"
	SelectorLoginMsg = "div.blocmsg"

	// Accounts page
	SelectorAccountRows = "table.liste tbody tr"

	// Operations pages (account history and card operations)
	SelectorOperationRows = "table.liste tbody tr"
	SelectorNextPage      = "div.pager a.suivant"

	// Transfer pages
	FormTransfer        = "FormVirUniSaiCpt"
	FormTransferConfirm = "FormVirUniCnf"
	FieldFromAccount    = "IDB"
	FieldToAccount      = "ICR"
	FieldAmount         = "MTTVIR"
	FieldDebitLabel     = "LIBDBT"
	FieldCreditLabel    = "LIBCRT"
)

var (
	matchAccountLink = cascadia.MustCompile("td a[href]")
	matchCells       = cascadia.MustCompile("td")
)
