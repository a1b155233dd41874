package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	DefaultLowStockThreshold = 5
	DefaultHistoryLimit      = 2000

	// MaxQuantity and MaxPrice bound AddProduct input so that stock value
	// and profit products stay well inside int64.
	MaxQuantity int64 = 1_000_000
	MaxPrice    int64 = 1_000_000_000_000
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	Begin(ctx context.Context) (Tx, error)

	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, query string) ([]*Product, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]*SaleRecord, error)
	TotalProfit(ctx context.Context) (int64, error)
	UndoDepth(ctx context.Context) (int, error)
}

// Tx is a single store transaction. Every ledger command runs inside one.
type Tx interface {
	GetProductForUpdate(ctx context.Context, id int64) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	// RestoreProduct inserts p keeping p.ID; it reports false when the id is taken.
	RestoreProduct(ctx context.Context, p *Product) (bool, error)
	UpdateStock(ctx context.Context, id, quantity, sold int64) (bool, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)

	InsertSale(ctx context.Context, sale *SaleRecord) error
	DeleteSale(ctx context.Context, id int64) (bool, error)
	// LatestSale returns nil when no sale matches.
	LatestSale(ctx context.Context, productID, quantity int64) (*SaleRecord, error)

	PushUndo(ctx context.Context, entry *UndoEntry) error
	// PopUndo removes and returns the newest entry, or nil when the stack is empty.
	PopUndo(ctx context.Context) (*UndoEntry, error)

	LogAction(ctx context.Context, action ActionKind, detail string) error

	Commit() error
	Rollback() error
}

type Options struct {
	LowStockThreshold int64
	HistoryLimit      int
}

// Service is the ledger command processor. Mutating commands are serialized
// so no two of them ever interleave.
type Service struct {
	repo Repository
	opts Options

	mu sync.Mutex
}

func NewService(repo Repository, opts Options) *Service {
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}

	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	return &Service{repo: repo, opts: opts}
}

func (s *Service) LowStockThreshold() int64 {
	return s.opts.LowStockThreshold
}

type AddParams struct {
	Name      string
	Quantity  int64
	BuyPrice  int64
	SellPrice int64
}

func (p AddParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}

	if p.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	if p.Quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at most %d", MaxQuantity)}
	}

	for _, f := range []struct {
		name  string
		price int64
	}{{"buy_price", p.BuyPrice}, {"sell_price", p.SellPrice}} {
		if f.price > MaxPrice || f.price < -MaxPrice {
			return &ValidationError{Field: f.name, Reason: fmt.Sprintf("must be between %d and %d", -MaxPrice, MaxPrice)}
		}
	}

	return nil
}

// AddProduct inserts a new product and records how to remove it again.
func (s *Service) AddProduct(ctx context.Context, params AddParams) (*Product, error) {
	params.Name = strings.TrimSpace(params.Name)
	if err := params.validate(); err != nil {
		observeCommand("add", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product := &Product{
		Name:      params.Name,
		Quantity:  params.Quantity,
		BuyPrice:  params.BuyPrice,
		SellPrice: params.SellPrice,
	}

	err := s.inTx(ctx, "add product", func(tx Tx) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return fmt.Errorf("inserting product: %w", err)
		}

		if err := pushUndo(ctx, tx, UndoAdd, AddPayload{ProductID: product.ID}); err != nil {
			return err
		}

		return tx.LogAction(ctx, ActionAdd, fmt.Sprintf("%s | qty=%d buy=%d sell=%d",
			product.Name, product.Quantity, product.BuyPrice, product.SellPrice))
	})

	observeCommand("add", err)

	if err != nil {
		return nil, err
	}

	slog.Info("product added", "id", product.ID, "name", product.Name, "quantity", product.Quantity)

	return product, nil
}

type SellParams struct {
	ProductID int64
	Quantity  int64
	// AllowPartial caps the sale at the stock on hand instead of failing.
	// Callers set it once the operator has confirmed the smaller quantity.
	AllowPartial bool
}

type SellResult struct {
	Product   *Product
	Sale      *SaleRecord
	Requested int64
	Capped    bool
}

// SellProduct records a sale against current stock.
func (s *Service) SellProduct(ctx context.Context, params SellParams) (*SellResult, error) {
	requested := max(params.Quantity, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *SellResult

	err := s.inTx(ctx, "sell product", func(tx Tx) error {
		p, err := tx.GetProductForUpdate(ctx, params.ProductID)
		if err != nil {
			return err
		}

		if p.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
		}

		qty := requested
		if qty > p.Quantity {
			if !params.AllowPartial {
				return &InsufficientStockError{ProductID: p.ID, Requested: requested, Available: p.Quantity}
			}

			qty = p.Quantity
		}

		prevQty, prevSold := p.Quantity, p.SoldQuantity
		p.Quantity -= qty
		p.SoldQuantity += qty

		updated, err := tx.UpdateStock(ctx, p.ID, p.Quantity, p.SoldQuantity)
		if err != nil {
			return fmt.Errorf("updating stock: %w", err)
		}

		if !updated {
			return ErrNotFound
		}

		productID := p.ID
		sale := &SaleRecord{
			ProductID:   &productID,
			ProductName: p.Name,
			Quantity:    qty,
			BuyPrice:    p.BuyPrice,
			SellPrice:   p.SellPrice,
			Profit:      qty * p.UnitProfit(),
		}

		if err := tx.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("inserting sale: %w", err)
		}

		payload := SellPayload{
			ProductID:        p.ID,
			Quantity:         qty,
			PreviousQuantity: prevQty,
			PreviousSold:     prevSold,
			SaleID:           sale.ID,
		}
		if err := pushUndo(ctx, tx, UndoSell, payload); err != nil {
			return err
		}

		if err := tx.LogAction(ctx, ActionSell, fmt.Sprintf("%s id=%d qty_sold=%d qty_before=%d qty_after=%d",
			p.Name, p.ID, qty, prevQty, p.Quantity)); err != nil {
			return err
		}

		result = &SellResult{Product: p, Sale: sale, Requested: requested, Capped: qty < requested}

		return nil
	})

	observeCommand("sell", err)

	if err != nil {
		return nil, err
	}

	slog.Info("product sold",
		"id", result.Product.ID, "quantity", result.Sale.Quantity, "remaining", result.Product.Quantity, "capped", result.Capped)

	return result, nil
}

// DeleteProduct removes a product after saving everything needed to bring it
// back. Its sales history stays in place with an unknown product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted *Product

	err := s.inTx(ctx, "delete product", func(tx Tx) error {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}

		payload := DeletePayload{
			ProductID: p.ID,
			Product: ProductSnapshot{
				Name:         p.Name,
				Quantity:     p.Quantity,
				BuyPrice:     p.BuyPrice,
				SellPrice:    p.SellPrice,
				SoldQuantity: p.SoldQuantity,
			},
		}
		if err := pushUndo(ctx, tx, UndoDelete, payload); err != nil {
			return err
		}

		ok, err := tx.DeleteProduct(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("deleting product: %w", err)
		}

		if !ok {
			return ErrNotFound
		}

		deleted = p

		return tx.LogAction(ctx, ActionDelete, fmt.Sprintf("id=%d name=%s", p.ID, p.Name))
	})

	observeCommand("delete", err)

	if err != nil {
		return nil, err
	}

	slog.Info("product deleted", "id", deleted.ID, "name", deleted.Name)

	return deleted, nil
}

// DeleteSale edits the sales history by removing one record. It is not
// undoable and does not touch product counters.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, "delete sale", func(tx Tx) error {
		ok, err := tx.DeleteSale(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting sale: %w", err)
		}

		if !ok {
			return ErrSaleNotFound
		}

		return tx.LogAction(ctx, ActionDeleteSale, fmt.Sprintf("id=%d", id))
	})

	observeCommand("delete_sale", err)

	return err
}

// inTx runs fn inside one store transaction. The transaction is always
// released, and failures leave the store untouched.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return s.fail(op, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return s.fail(op, err)
	}

	if err := tx.Commit(); err != nil {
		return s.fail(op, fmt.Errorf("committing: %w", err))
	}

	return nil
}

func (s *Service) fail(op string, err error) error {
	err = storageErr(op, err)

	var se *StorageError
	if errors.As(err, &se) {
		slog.Error("ledger command failed", "op", op, "error", se.Err)
	}

	return err
}

func pushUndo(ctx context.Context, tx Tx, kind UndoKind, payload any) error {
	entry, err := newUndoEntry(kind, payload)
	if err != nil {
		return err
	}

	if err := tx.PushUndo(ctx, entry); err != nil {
		return fmt.Errorf("pushing undo entry: %w", err)
	}

	return nil
}
