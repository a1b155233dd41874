package stockimport

import (
	"strings"
)

type field int

const (
	fieldName field = iota
	fieldQuantity
	fieldBuyPrice
	fieldSellPrice
)

var fields = []field{fieldName, fieldQuantity, fieldBuyPrice, fieldSellPrice}

// aliases lists the header spellings accepted for each column. Matching is
// case-insensitive and ignores surrounding spaces, underscores and dashes.
var aliases = map[field][]string{
	fieldName:      {"name", "product", "item", "نام", "نام کالا", "کالا", "محصول"},
	fieldQuantity:  {"quantity", "qty", "stock", "count", "تعداد", "موجودی"},
	fieldBuyPrice:  {"buy", "buy price", "cost", "purchase price", "قیمت خرید", "خرید"},
	fieldSellPrice: {"sell", "sell price", "price", "sale price", "قیمت فروش", "فروش"},
}

var aliasIndex = func() map[string]field {
	idx := make(map[string]field)

	for f, names := range aliases {
		for _, n := range names {
			idx[normalizeHeader(n)] = f
		}
	}

	return idx
}()

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", "\u200c", " ").Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// detectHeader returns the column of every field and the index of the first
// row naming all four of them.
func detectHeader(rows [][]string) (map[field]int, int, bool) {
	for rowIdx, row := range rows {
		cols := make(map[field]int, len(fields))

		for i, cell := range row {
			f, ok := aliasIndex[normalizeHeader(cell)]
			if !ok {
				continue
			}

			if _, seen := cols[f]; !seen {
				cols[f] = i
			}
		}

		if len(cols) == len(fields) {
			return cols, rowIdx, true
		}
	}

	return nil, 0, false
}
