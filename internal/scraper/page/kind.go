package page

// Kind is the semantic role of a fetched document.
type Kind int

const (
	KindUnknown Kind = iota
	KindLogin
	KindLoginError
	KindAccountList
	KindUserSpace
	KindOperations
	KindNoOperations
	KindUnavailable
	KindMarket
	KindLifeInsurance
	KindTransfer
	KindInfo
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindLogin:         "login",
	KindLoginError:    "login_error",
	KindAccountList:   "account_list",
	KindUserSpace:     "user_space",
	KindOperations:    "operations",
	KindNoOperations:  "no_operations",
	KindUnavailable:   "unavailable",
	KindMarket:        "market",
	KindLifeInsurance: "life_insurance",
	KindTransfer:      "transfer",
	KindInfo:          "info",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Authenticated reports whether landing on this kind means the session holds
// a valid login.
func (k Kind) Authenticated() bool {
	switch k {
	case KindUnknown, KindLogin, KindLoginError, KindUnavailable:
		return false
	default:
		return true
	}
}
