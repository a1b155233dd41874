package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

// deletedProduct labels history rows whose product no longer exists.
const deletedProduct = "(deleted)"

var header = []string{"id", "date", "product_id", "product", "quantity", "buy_price", "sell_price", "profit"}

// Source is the part of the ledger needed to export sales.
type Source interface {
	ListSales(ctx context.Context, filter ledger.SaleFilter) ([]*ledger.SaleRecord, error)
}

// Service writes the sales history out as CSV and renders text summaries.
type Service struct {
	sales   Source
	printer *message.Printer
}

// NewService creates a new export Service.
func NewService(sales Source) *Service {
	return &Service{
		sales:   sales,
		printer: message.NewPrinter(language.English),
	}
}

// WriteSalesCSV writes the sales matching filter to w, newest first. It
// returns the number of rows written.
func (s *Service) WriteSalesCSV(ctx context.Context, w io.Writer, filter ledger.SaleFilter) (int, error) {
	sales, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("listing sales: %w", err)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	for _, sale := range sales {
		productID := ""
		if sale.ProductID != nil {
			productID = strconv.FormatInt(*sale.ProductID, 10)
		}

		record := []string{
			strconv.FormatInt(sale.ID, 10),
			sale.CreatedAt.Format(time.RFC3339),
			productID,
			productLabel(sale),
			strconv.FormatInt(sale.Quantity, 10),
			strconv.FormatInt(sale.BuyPrice, 10),
			strconv.FormatInt(sale.SellPrice, 10),
			strconv.FormatInt(sale.Profit, 10),
		}

		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing sale %d: %w", sale.ID, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}

	return len(sales), nil
}

// Summary renders one line per sale followed by a totals line, suitable for
// pasting into a message at the end of a shift.
func (s *Service) Summary(ctx context.Context, filter ledger.SaleFilter) (string, error) {
	sales, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("listing sales: %w", err)
	}

	var (
		sb                  strings.Builder
		units, revenue, sum int64
	)

	for _, sale := range sales {
		sb.WriteString(s.printer.Sprintf("* %s | %s | %d x %d = %d | profit %d\n",
			sale.CreatedAt.Format("2006-01-02 15:04"),
			productLabel(sale),
			sale.Quantity,
			sale.SellPrice,
			sale.Quantity*sale.SellPrice,
			sale.Profit,
		))

		units += sale.Quantity
		revenue += sale.Quantity * sale.SellPrice
		sum += sale.Profit
	}

	sb.WriteString(s.printer.Sprintf("%d sales, %d units, revenue %d, profit %d\n", len(sales), units, revenue, sum))

	return sb.String(), nil
}

func productLabel(sale *ledger.SaleRecord) string {
	if sale.ProductName == "" {
		return deletedProduct
	}

	return sale.ProductName
}
