package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"Plain", "1500", 1500, false},
		{"ThousandsSeparator", "12,500", 12500, false},
		{"CurrencySuffix", "12,500 تومان", 12500, false},
		{"PersianDigits", "۱۲۵۰۰", 12500, false},
		{"ArabicSeparator", "۱٬۲۰۰", 1200, false},
		{"Negative", "-300", -300, false},
		{"Fraction", "12.5", 0, true},
		{"Empty", "  ", 0, true},
		{"Garbage", "abc", 0, true},
		{"MaxInt64", "9,223,372,036,854,775,807", 9223372036854775807, false},
		{"AboveInt64", "9223372036854775808", 0, true},
		{"WrapsToSmallValue", "18446744073709551621", 0, true},
		{"BelowInt64", "-9223372036854775809", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.ParseAmount(tt.input)

			if tt.wantErr {
				assert.ErrorIs(t, err, ledger.ErrValidation)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddInput(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		got, err := ledger.ParseAddInput(" Coffee ", "10", "1,000", "1500 toman")
		require.NoError(t, err)
		assert.Equal(t, ledger.AddParams{Name: "Coffee", Quantity: 10, BuyPrice: 1000, SellPrice: 1500}, got)
	})

	tests := []struct {
		name      string
		args      [4]string
		wantField string
	}{
		{"MissingName", [4]string{"", "1", "1", "1"}, "name"},
		{"BadQuantity", [4]string{"Tea", "x", "1", "1"}, "quantity"},
		{"NegativeQuantity", [4]string{"Tea", "-2", "1", "1"}, "quantity"},
		{"MissingBuyPrice", [4]string{"Tea", "1", "", "1"}, "buy_price"},
		{"BadSellPrice", [4]string{"Tea", "1", "1", "1.5"}, "sell_price"},
		{"WrappingQuantity", [4]string{"Tea", "18446744073709551621", "1", "1"}, "quantity"},
		{"HugeSellPrice", [4]string{"Tea", "1", "1", "2,000,000,000,000"}, "sell_price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.ParseAddInput(tt.args[0], tt.args[1], tt.args[2], tt.args[3])

			var ve *ledger.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestParseView(t *testing.T) {
	v, err := ledger.ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ledger.ViewAll, v)

	v, err = ledger.ParseView("Best_Seller")
	require.NoError(t, err)
	assert.Equal(t, ledger.ViewBestSeller, v)

	_, err = ledger.ParseView("cheapest")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	assert.Equal(t, ledger.ViewAll, ledger.ViewMostProfitable.Next())
}
