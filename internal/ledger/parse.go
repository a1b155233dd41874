package ledger

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// currencySuffixes are stripped from price text before parsing.
var currencySuffixes = []string{"تومان", "toman", "IRT", "ریال"}

// ParseAmount parses an integer amount as typed by an operator: thousands
// separators (",", "٬", "_", spaces) and a trailing currency word are accepted,
// fractional values are not.
func ParseAmount(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	for _, suffix := range currencySuffixes {
		clean = strings.TrimSpace(strings.TrimSuffix(clean, suffix))
	}

	clean = strings.NewReplacer(",", "", "٬", "", "_", "", " ", "").Replace(clean)
	clean = toASCIIDigits(clean)

	if clean == "" {
		return 0, &ValidationError{Reason: "is required"}
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, &ValidationError{Reason: "must be a whole number"}
	}

	if !d.IsInteger() {
		return 0, &ValidationError{Reason: "must be a whole number"}
	}

	// IntPart silently wraps values outside int64.
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, &ValidationError{Reason: "is out of range"}
	}

	return d.IntPart(), nil
}

// ParseAddInput validates raw form values for AddProduct.
func ParseAddInput(name, quantity, buyPrice, sellPrice string) (AddParams, error) {
	params := AddParams{Name: strings.TrimSpace(name)}
	if params.Name == "" {
		return AddParams{}, &ValidationError{Field: "name", Reason: "is required"}
	}

	fields := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"quantity", quantity, &params.Quantity},
		{"buy_price", buyPrice, &params.BuyPrice},
		{"sell_price", sellPrice, &params.SellPrice},
	}

	for _, f := range fields {
		v, err := ParseAmount(f.raw)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Field = f.name
			}

			return AddParams{}, err
		}

		*f.dst = v
	}

	return params, params.validate()
}

// toASCIIDigits maps Persian and Arabic-Indic digits to ASCII.
func toASCIIDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}

		return r
	}, s)
}
