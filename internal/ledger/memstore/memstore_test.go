package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger/memstore"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	p := &ledger.Product{Name: "Tea", Quantity: 3}
	require.NoError(t, tx.InsertProduct(ctx, p))
	require.NoError(t, tx.Rollback())

	_, err = store.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// Rollback after rollback is harmless.
	assert.NoError(t, tx.Rollback())
}

func TestStore_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	p := &ledger.Product{Name: "Tea", Quantity: 3}
	require.NoError(t, tx.InsertProduct(ctx, p))
	require.NoError(t, tx.PushUndo(ctx, &ledger.UndoEntry{Kind: ledger.UndoAdd, Payload: []byte(`{"product_id":1}`)}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tea", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	depth, err := store.UndoDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestStore_RestoreProductKeepsID(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ok, err := tx.RestoreProduct(ctx, &ledger.Product{ID: 9, Name: "Cake"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tx.RestoreProduct(ctx, &ledger.Product{ID: 9, Name: "Pie"})
	require.NoError(t, err)
	assert.False(t, ok)

	next := &ledger.Product{Name: "Bun"}
	require.NoError(t, tx.InsertProduct(ctx, next))
	assert.Equal(t, int64(10), next.ID)
}

func TestStore_UpdateStockRejectsNegative(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	p := &ledger.Product{Name: "Tea", Quantity: 1}
	require.NoError(t, tx.InsertProduct(ctx, p))

	_, err = tx.UpdateStock(ctx, p.ID, -1, 2)
	assert.ErrorIs(t, err, ledger.ErrOutOfStock)

	ok, err := tx.UpdateStock(ctx, 404, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeleteProductNullsSaleReference(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	p := &ledger.Product{Name: "Tea", Quantity: 5}
	require.NoError(t, tx.InsertProduct(ctx, p))

	id := p.ID
	require.NoError(t, tx.InsertSale(ctx, &ledger.SaleRecord{ProductID: &id, Quantity: 2, Profit: 10}))

	ok, err := tx.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	latest, err := tx.LatestSale(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, tx.Commit())

	sales, err := store.ListSales(ctx, ledger.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Nil(t, sales[0].ProductID)

	profit, err := store.TotalProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), profit)
}

func TestStore_SnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memstore.New()
	svc := ledger.NewService(src, ledger.Options{})

	p, err := svc.AddProduct(ctx, ledger.AddParams{Name: "Coffee", Quantity: 10, BuyPrice: 1000, SellPrice: 1500})
	require.NoError(t, err)

	_, err = svc.SellProduct(ctx, ledger.SellParams{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Products, 1)
	assert.Len(t, snap.Sales, 1)
	assert.Len(t, snap.Actions, 2)
	assert.Len(t, snap.Undo, 2)

	dst := memstore.New()
	require.NoError(t, dst.Restore(ctx, snap))

	restored := ledger.NewService(dst, ledger.Options{})

	res, err := restored.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.UndoSell, res.Entry.Kind)

	got, err := restored.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity)

	next, err := restored.AddProduct(ctx, ledger.AddParams{Name: "Tea", Quantity: 1})
	require.NoError(t, err)
	assert.Greater(t, next.ID, p.ID)
}
