package mpesa

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// NormalizePhone turns a Kenyan mobile number in any of the usual local
// or international spellings into 254XXXXXXXXX.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(digits, "254"):
	case strings.HasPrefix(digits, "0"):
		digits = "254" + digits[1:]
	case strings.HasPrefix(digits, "7"), strings.HasPrefix(digits, "1"):
		digits = "254" + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, "254") {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// WholeAmount rounds up to whole shillings; M-Pesa rejects fractions.
func WholeAmount(amount decimal.Decimal) int64 {
	return amount.Ceil().IntPart()
}
