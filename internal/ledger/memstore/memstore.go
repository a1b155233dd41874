// Package memstore keeps the ledger in process memory. It backs tests and the
// STORE_DRIVER=memory mode; nothing survives a restart.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

var errTxDone = errors.New("memstore: transaction already finished")

var (
	_ ledger.Repository = (*Store)(nil)
	_ ledger.Tx         = (*tx)(nil)
)

type state struct {
	products map[int64]ledger.Product
	sales    []ledger.SaleRecord
	actions  []ledger.ActionLog
	undo     []ledger.UndoEntry

	nextProduct int64
	nextSale    int64
	nextAction  int64
	nextUndo    int64
}

func newState() *state {
	return &state{
		products:    make(map[int64]ledger.Product),
		nextProduct: 1,
		nextSale:    1,
		nextAction:  1,
		nextUndo:    1,
	}
}

func (s *state) clone() *state {
	c := *s
	c.products = make(map[int64]ledger.Product, len(s.products))
	for id, p := range s.products {
		c.products[id] = p
	}

	c.sales = slices.Clone(s.sales)
	c.actions = slices.Clone(s.actions)
	c.undo = slices.Clone(s.undo)

	return &c
}

// Store is a ledger.Repository over an in-memory state. A transaction holds
// the write lock from Begin until Commit or Rollback, so writers run one at a
// time while readers see only committed state.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()

	return &tx{store: s, state: s.state.clone()}, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.products[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}

	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, query string) ([]*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)

	products := make([]*ledger.Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}

		products = append(products, &p)
	}

	slices.SortFunc(products, func(a, b *ledger.Product) int {
		return cmp.Compare(b.ID, a.ID)
	})

	return products, nil
}

func (s *Store) ListSales(ctx context.Context, filter ledger.SaleFilter) ([]*ledger.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sales []*ledger.SaleRecord

	for i := len(s.state.sales) - 1; i >= 0; i-- {
		sale := s.state.sales[i]

		if filter.Since != nil && sale.CreatedAt.Before(*filter.Since) {
			continue
		}

		if filter.Until != nil && !sale.CreatedAt.Before(*filter.Until) {
			continue
		}

		sale.ProductName = ""
		if sale.ProductID != nil {
			if p, ok := s.state.products[*sale.ProductID]; ok {
				sale.ProductName = p.Name
			}
		}

		sales = append(sales, &sale)

		if filter.Limit > 0 && len(sales) == filter.Limit {
			break
		}
	}

	return sales, nil
}

func (s *Store) TotalProfit(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, sale := range s.state.sales {
		total += sale.Profit
	}

	return total, nil
}

func (s *Store) UndoDepth(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.state.undo), nil
}

// Snapshot copies every table under the read lock.
func (s *Store) Snapshot(ctx context.Context) (*ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &ledger.Snapshot{
		ID:       uuid.New(),
		TakenAt:  s.now(),
		Products: make([]*ledger.Product, 0, len(s.state.products)),
		Sales:    make([]*ledger.SaleRecord, 0, len(s.state.sales)),
		Actions:  make([]*ledger.ActionLog, 0, len(s.state.actions)),
		Undo:     make([]*ledger.UndoEntry, 0, len(s.state.undo)),
	}

	for _, p := range s.state.products {
		snap.Products = append(snap.Products, &p)
	}

	slices.SortFunc(snap.Products, func(a, b *ledger.Product) int { return cmp.Compare(a.ID, b.ID) })

	for _, sale := range s.state.sales {
		snap.Sales = append(snap.Sales, &sale)
	}

	for _, a := range s.state.actions {
		snap.Actions = append(snap.Actions, &a)
	}

	for _, e := range s.state.undo {
		snap.Undo = append(snap.Undo, &e)
	}

	return snap, nil
}

// Restore replaces the whole state with the snapshot contents.
func (s *Store) Restore(ctx context.Context, snap *ledger.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := newState()

	for _, p := range snap.Products {
		next.products[p.ID] = *p
		next.nextProduct = max(next.nextProduct, p.ID+1)
	}

	for _, sale := range snap.Sales {
		next.sales = append(next.sales, *sale)
		next.nextSale = max(next.nextSale, sale.ID+1)
	}

	for _, a := range snap.Actions {
		next.actions = append(next.actions, *a)
		next.nextAction = max(next.nextAction, a.ID+1)
	}

	for _, e := range snap.Undo {
		next.undo = append(next.undo, *e)
		next.nextUndo = max(next.nextUndo, e.ID+1)
	}

	slices.SortFunc(next.sales, func(a, b ledger.SaleRecord) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(next.undo, func(a, b ledger.UndoEntry) int { return cmp.Compare(a.ID, b.ID) })

	next.actions = append(next.actions, ledger.ActionLog{
		ID:        next.nextAction,
		Action:    ledger.ActionRestoreDump,
		Detail:    fmt.Sprintf("snapshot=%s taken_at=%s", snap.ID, snap.TakenAt.Format("2006-01-02 15:04:05")),
		CreatedAt: s.now(),
	})
	next.nextAction++

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	return nil
}

type tx struct {
	store *Store
	state *state
	done  bool
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}

	t.done = true
	t.store.state = t.state
	t.store.mu.Unlock()

	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}

	t.done = true
	t.store.mu.Unlock()

	return nil
}

func (t *tx) GetProductForUpdate(ctx context.Context, id int64) (*ledger.Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}

	return &p, nil
}

func (t *tx) InsertProduct(ctx context.Context, p *ledger.Product) error {
	p.ID = t.state.nextProduct
	p.CreatedAt = t.store.now()
	t.state.nextProduct++
	t.state.products[p.ID] = *p

	return nil
}

func (t *tx) RestoreProduct(ctx context.Context, p *ledger.Product) (bool, error) {
	if _, taken := t.state.products[p.ID]; taken {
		return false, nil
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.store.now()
	}

	t.state.products[p.ID] = *p
	t.state.nextProduct = max(t.state.nextProduct, p.ID+1)

	return true, nil
}

func (t *tx) UpdateStock(ctx context.Context, id, quantity, sold int64) (bool, error) {
	p, ok := t.state.products[id]
	if !ok {
		return false, nil
	}

	if quantity < 0 {
		return false, ledger.ErrOutOfStock
	}

	p.Quantity = quantity
	p.SoldQuantity = sold
	t.state.products[id] = p

	return true, nil
}

func (t *tx) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	if _, ok := t.state.products[id]; !ok {
		return false, nil
	}

	delete(t.state.products, id)

	for i := range t.state.sales {
		if pid := t.state.sales[i].ProductID; pid != nil && *pid == id {
			t.state.sales[i].ProductID = nil
		}
	}

	return true, nil
}

func (t *tx) InsertSale(ctx context.Context, sale *ledger.SaleRecord) error {
	sale.ID = t.state.nextSale
	sale.CreatedAt = t.store.now()
	t.state.nextSale++
	t.state.sales = append(t.state.sales, *sale)

	return nil
}

func (t *tx) DeleteSale(ctx context.Context, id int64) (bool, error) {
	i := slices.IndexFunc(t.state.sales, func(s ledger.SaleRecord) bool { return s.ID == id })
	if i < 0 {
		return false, nil
	}

	t.state.sales = slices.Delete(t.state.sales, i, i+1)

	return true, nil
}

func (t *tx) LatestSale(ctx context.Context, productID, quantity int64) (*ledger.SaleRecord, error) {
	for i := len(t.state.sales) - 1; i >= 0; i-- {
		sale := t.state.sales[i]
		if sale.ProductID != nil && *sale.ProductID == productID && sale.Quantity == quantity {
			return &sale, nil
		}
	}

	return nil, nil
}

func (t *tx) PushUndo(ctx context.Context, entry *ledger.UndoEntry) error {
	entry.ID = t.state.nextUndo
	entry.CreatedAt = t.store.now()
	t.state.nextUndo++
	t.state.undo = append(t.state.undo, *entry)

	return nil
}

func (t *tx) PopUndo(ctx context.Context) (*ledger.UndoEntry, error) {
	n := len(t.state.undo)
	if n == 0 {
		return nil, nil
	}

	entry := t.state.undo[n-1]
	t.state.undo = t.state.undo[:n-1]

	return &entry, nil
}

func (t *tx) LogAction(ctx context.Context, action ledger.ActionKind, detail string) error {
	t.state.actions = append(t.state.actions, ledger.ActionLog{
		ID:        t.state.nextAction,
		Action:    action,
		Detail:    detail,
		CreatedAt: t.store.now(),
	})
	t.state.nextAction++

	return nil
}
