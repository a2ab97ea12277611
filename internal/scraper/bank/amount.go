package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// FrenchDateLayout is the dd/mm/yyyy layout used across French portals.
	FrenchDateLayout      = "02/01/2006"
	FrenchShortDateLayout = "02/01/06"
)

var amountCleaner = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"€", "",
	"EUR", "",
	"+", "",
)

// ParseFrenchAmount parses amounts written with a decimal comma and optional
// dot or space thousand separators ("1 234,56 €", "-1.234,5").
func ParseFrenchAmount(s string) (decimal.Decimal, error) {
	clean := amountCleaner.Replace(strings.TrimSpace(s))
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	}
	if clean == "" || clean == "-" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// FormatFrenchAmount renders an amount the way French forms expect it:
// shortest decimal representation with a decimal comma.
func FormatFrenchAmount(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// ParseBankDate parses dd/mm/yyyy, falling back to dd/mm/yy.
func ParseBankDate(s string) (time.Time, error) {
	clean := strings.TrimSpace(s)
	t, err := time.Parse(FrenchDateLayout, clean)
	if err == nil {
		return t, nil
	}
	if t, shortErr := time.Parse(FrenchShortDateLayout, clean); shortErr == nil {
		return t, nil
	}
	return time.Time{}, err
}
