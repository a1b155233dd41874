package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

type View string

const (
	ViewAll            View = "all"
	ViewLowStock       View = "low_stock"
	ViewLeastStock     View = "least_stock"
	ViewBestSeller     View = "best_seller"
	ViewMostProfitable View = "most_profitable"
)

// Views lists every view in the order operators cycle through them.
var Views = []View{ViewAll, ViewLowStock, ViewLeastStock, ViewBestSeller, ViewMostProfitable}

func ParseView(s string) (View, error) {
	if s == "" {
		return ViewAll, nil
	}

	v := View(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Views, v) {
		return "", &ValidationError{Field: "view", Reason: fmt.Sprintf("unknown view %q", s)}
	}

	return v, nil
}

// Next returns the view after v, wrapping around.
func (v View) Next() View {
	i := slices.Index(Views, v)
	return Views[(i+1)%len(Views)]
}

type ListFilter struct {
	Query string
	View  View
}

// ProductRow is a product decorated for display.
type ProductRow struct {
	*Product
	PercentSold int64 `json:"percent_sold"`
	LowStock    bool  `json:"low_stock"`
	TotalProfit int64 `json:"total_profit"` // sold × current unit margin
}

type SaleFilter struct {
	Since *time.Time
	Until *time.Time
	Limit int
}

// Totals is the one-line inventory report.
type Totals struct {
	Products      int   `json:"products"`
	TotalQuantity int64 `json:"total_quantity"`
	StockValue    int64 `json:"stock_value"` // Σ quantity × buy price
	TotalSold     int64 `json:"total_sold"`
	TotalProfit   int64 `json:"total_profit"` // Σ sale record profit
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, s.fail("get product", err)
	}

	return p, nil
}

// ListProducts returns products matching the name query, ordered by the view.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]ProductRow, error) {
	products, err := s.repo.ListProducts(ctx, strings.TrimSpace(filter.Query))
	if err != nil {
		return nil, s.fail("list products", err)
	}

	threshold := s.opts.LowStockThreshold

	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		if filter.View == ViewLowStock && p.Quantity >= threshold {
			continue
		}

		rows = append(rows, ProductRow{
			Product:     p,
			PercentSold: PercentSold(p.SoldQuantity, p.Quantity),
			LowStock:    p.Quantity <= threshold,
			TotalProfit: p.SoldQuantity * p.UnitProfit(),
		})
	}

	switch filter.View {
	case ViewLeastStock:
		slices.SortStableFunc(rows, func(a, b ProductRow) int { return cmp.Compare(a.Quantity, b.Quantity) })
	case ViewBestSeller:
		slices.SortStableFunc(rows, func(a, b ProductRow) int { return cmp.Compare(b.SoldQuantity, a.SoldQuantity) })
	case ViewMostProfitable:
		slices.SortStableFunc(rows, func(a, b ProductRow) int { return cmp.Compare(b.TotalProfit, a.TotalProfit) })
	}

	return rows, nil
}

// PercentSold is the share of all stock ever held that has been sold.
func PercentSold(sold, onHand int64) int64 {
	total := sold + onHand
	if total <= 0 {
		return 0
	}

	return sold * 100 / total
}

// ListSales returns sale records newest first, capped at the history limit
// when the filter sets none.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]*SaleRecord, error) {
	if filter.Limit <= 0 || filter.Limit > s.opts.HistoryLimit {
		filter.Limit = s.opts.HistoryLimit
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, s.fail("list sales", err)
	}

	return sales, nil
}

func (s *Service) Report(ctx context.Context) (*Totals, error) {
	products, err := s.repo.ListProducts(ctx, "")
	if err != nil {
		return nil, s.fail("report", err)
	}

	totals := &Totals{Products: len(products)}
	for _, p := range products {
		totals.TotalQuantity += p.Quantity
		totals.StockValue += p.Quantity * p.BuyPrice
		totals.TotalSold += p.SoldQuantity
	}

	profit, err := s.repo.TotalProfit(ctx)
	if err != nil {
		return nil, s.fail("report", err)
	}

	totals.TotalProfit = profit

	return totals, nil
}
