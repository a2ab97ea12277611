package bank

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionUnknown  TransactionType = "UNKNOWN"
	TransactionCredit   TransactionType = "CREDIT"
	TransactionDebit    TransactionType = "DEBIT"
	TransactionTransfer TransactionType = "TRANSFER"
	TransactionCheck    TransactionType = "CHECK"
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionBank     TransactionType = "BANK"
	// TransactionCard marks deferred card operations, debited later in bulk.
	TransactionCard TransactionType = "CARD"
)

type Transaction struct {
	Date        time.Time
	ValueDate   time.Time
	Description string
	// Amount is signed: negative for money leaving the account.
	Amount decimal.Decimal
	Type   TransactionType
}

// Credentials are passed explicitly at construction; nothing in the scraper
// reads them from the environment.
type Credentials struct {
	Login    string
	Password string
	// AccountNumber is the secondary identifier some sites ask for in a
	// second login phase.
	AccountNumber string
}

type TransferRequest struct {
	From   Account
	To     Account
	Amount decimal.Decimal
	Reason string
}

// TransferReceipt is returned only once the site confirmed execution.
type TransferReceipt struct {
	ID        string
	Amount    decimal.Decimal
	Origin    string
	Recipient string
	Reason    string
	Date      time.Time
}

var labelPrefixes = []struct {
	prefix string
	typ    TransactionType
}{
	{"VIR", TransactionTransfer},
	{"CHEQUE", TransactionCheck},
	{"CHQ", TransactionCheck},
	{"REMISE", TransactionDeposit},
	{"DEPOT", TransactionDeposit},
	{"FRAIS", TransactionBank},
	{"COTIS", TransactionBank},
	{"COMMISSION", TransactionBank},
	{"PRLV", TransactionDebit},
	{"PRELEVEMENT", TransactionDebit},
}

// GuessTransactionType infers a type from the label prefixes French banks
// use, falling back to the sign of amount.
func GuessTransactionType(label string, amount decimal.Decimal) TransactionType {
	upper := strings.ToUpper(strings.TrimSpace(label))
	for _, p := range labelPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			return p.typ
		}
	}
	if amount.IsNegative() {
		return TransactionDebit
	}
	return TransactionCredit
}
