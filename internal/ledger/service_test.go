package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

func newMocks(t *testing.T) (*ledger.MockRepository, *ledger.MockTx) {
	t.Helper()

	ctrl := gomock.NewController(t)

	return ledger.NewMockRepository(ctrl), ledger.NewMockTx(ctrl)
}

func TestService_AddProduct(t *testing.T) {
	type testCase struct {
		name      string
		params    ledger.AddParams
		setupMock func(r *ledger.MockRepository, tx *ledger.MockTx)
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "Success",
			params: ledger.AddParams{Name: "  Coffee ", Quantity: 10, BuyPrice: 1000, SellPrice: 1500},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().
					InsertProduct(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *ledger.Product) error {
						assert.Equal(t, "Coffee", p.Name)
						p.ID = 7
						return nil
					})
				tx.EXPECT().
					PushUndo(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.UndoEntry) error {
						assert.Equal(t, ledger.UndoAdd, e.Kind)
						assert.JSONEq(t, `{"product_id":7}`, string(e.Payload))
						return nil
					})
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionAdd, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name:    "EmptyName",
			params:  ledger.AddParams{Name: "   ", Quantity: 1},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "NegativeQuantity",
			params:  ledger.AddParams{Name: "Tea", Quantity: -1},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "QuantityAboveLimit",
			params:  ledger.AddParams{Name: "Tea", Quantity: ledger.MaxQuantity + 1},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "SellPriceAboveLimit",
			params:  ledger.AddParams{Name: "Tea", Quantity: 1, SellPrice: math.MaxInt64},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "BuyPriceBelowLimit",
			params:  ledger.AddParams{Name: "Tea", Quantity: 1, BuyPrice: -ledger.MaxPrice - 1},
			wantErr: ledger.ErrValidation,
		},
		{
			name:   "InsertFails",
			params: ledger.AddParams{Name: "Tea", Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().InsertProduct(gomock.Any(), gomock.Any()).Return(errors.New("db error"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrStorage,
		},
		{
			name:   "BeginFails",
			params: ledger.AddParams{Name: "Tea", Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantErr: ledger.ErrStorage,
		},
		{
			name:   "CommitFails",
			params: ledger.AddParams{Name: "Tea", Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().InsertProduct(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().PushUndo(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().LogAction(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(errors.New("serialization failure"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tx := newMocks(t)
			if tt.setupMock != nil {
				tt.setupMock(repo, tx)
			}

			svc := ledger.NewService(repo, ledger.Options{})
			got, err := svc.AddProduct(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(7), got.ID)
			assert.Equal(t, int64(0), got.SoldQuantity)
		})
	}
}

func TestService_SellProduct(t *testing.T) {
	product := func(qty int64) *ledger.Product {
		return &ledger.Product{ID: 1, Name: "Tea", Quantity: qty, BuyPrice: 500, SellPrice: 800}
	}

	type testCase struct {
		name          string
		params        ledger.SellParams
		setupMock     func(r *ledger.MockRepository, tx *ledger.MockTx)
		wantErr       error
		wantSold      int64
		wantRemaining int64
		wantCapped    bool
	}

	tests := []testCase{
		{
			name:   "Success",
			params: ledger.SellParams{ProductID: 1, Quantity: 2},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(5), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(1), int64(3), int64(2)).Return(true, nil)
				tx.EXPECT().
					InsertSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *ledger.SaleRecord) error {
						assert.Equal(t, int64(600), s.Profit)
						s.ID = 42
						return nil
					})
				tx.EXPECT().
					PushUndo(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.UndoEntry) error {
						var p ledger.SellPayload
						require.NoError(t, json.Unmarshal(e.Payload, &p))
						assert.Equal(t, ledger.SellPayload{
							ProductID: 1, Quantity: 2, PreviousQuantity: 5, PreviousSold: 0, SaleID: 42,
						}, p)
						return nil
					})
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionSell, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantSold:      2,
			wantRemaining: 3,
		},
		{
			name:   "ZeroQuantityCoercedToOne",
			params: ledger.SellParams{ProductID: 1, Quantity: 0},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(5), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(1), int64(4), int64(1)).Return(true, nil)
				tx.EXPECT().InsertSale(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().PushUndo(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().LogAction(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantSold:      1,
			wantRemaining: 4,
		},
		{
			name:   "NotFound",
			params: ledger.SellParams{ProductID: 9, Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(9)).Return(nil, ledger.ErrNotFound)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrNotFound,
		},
		{
			name:   "OutOfStock",
			params: ledger.SellParams{ProductID: 1, Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(0), nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrOutOfStock,
		},
		{
			name:   "InsufficientWithoutConfirmation",
			params: ledger.SellParams{ProductID: 1, Quantity: 5},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(2), nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrInsufficientStock,
		},
		{
			name:   "CappedWhenConfirmed",
			params: ledger.SellParams{ProductID: 1, Quantity: 5, AllowPartial: true},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(2), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(1), int64(0), int64(2)).Return(true, nil)
				tx.EXPECT().InsertSale(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().PushUndo(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().LogAction(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantSold:      2,
			wantRemaining: 0,
			wantCapped:    true,
		},
		{
			name:   "UpdateFails",
			params: ledger.SellParams{ProductID: 1, Quantity: 1},
			setupMock: func(r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(1)).Return(product(2), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("db error"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tx := newMocks(t)
			tt.setupMock(repo, tx)

			svc := ledger.NewService(repo, ledger.Options{})
			got, err := svc.SellProduct(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSold, got.Sale.Quantity)
			assert.Equal(t, tt.wantRemaining, got.Product.Quantity)
			assert.Equal(t, tt.wantCapped, got.Capped)
		})
	}
}

func TestService_SellProduct_InsufficientReportsAvailable(t *testing.T) {
	repo, tx := newMocks(t)
	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(3)).Return(&ledger.Product{ID: 3, Quantity: 2}, nil)
	tx.EXPECT().Rollback().Return(nil)

	svc := ledger.NewService(repo, ledger.Options{})
	_, err := svc.SellProduct(context.Background(), ledger.SellParams{ProductID: 3, Quantity: 5})

	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.Available)
	assert.Equal(t, int64(5), insufficient.Requested)
}

func TestService_DeleteProduct(t *testing.T) {
	t.Run("SnapshotPushedBeforeDelete", func(t *testing.T) {
		repo, tx := newMocks(t)
		p := &ledger.Product{ID: 4, Name: "Cake", Quantity: 3, BuyPrice: 100, SellPrice: 250, SoldQuantity: 9}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(4)).Return(p, nil)
		gomock.InOrder(
			tx.EXPECT().
				PushUndo(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, e *ledger.UndoEntry) error {
					var payload ledger.DeletePayload
					require.NoError(t, e.Decode(&payload))
					assert.Equal(t, int64(4), payload.ProductID)
					assert.Equal(t, ledger.ProductSnapshot{
						Name: "Cake", Quantity: 3, BuyPrice: 100, SellPrice: 250, SoldQuantity: 9,
					}, payload.Product)
					return nil
				}),
			tx.EXPECT().DeleteProduct(gomock.Any(), int64(4)).Return(true, nil),
		)
		tx.EXPECT().LogAction(gomock.Any(), ledger.ActionDelete, gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := ledger.NewService(repo, ledger.Options{})
		got, err := svc.DeleteProduct(context.Background(), 4)

		require.NoError(t, err)
		assert.Equal(t, "Cake", got.Name)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, tx := newMocks(t)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().GetProductForUpdate(gomock.Any(), int64(4)).Return(nil, ledger.ErrNotFound)
		tx.EXPECT().Rollback().Return(nil)

		svc := ledger.NewService(repo, ledger.Options{})
		_, err := svc.DeleteProduct(context.Background(), 4)

		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestService_DeleteSale(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo, tx := newMocks(t)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().DeleteSale(gomock.Any(), int64(11)).Return(true, nil)
		tx.EXPECT().LogAction(gomock.Any(), ledger.ActionDeleteSale, "id=11").Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := ledger.NewService(repo, ledger.Options{})
		assert.NoError(t, svc.DeleteSale(context.Background(), 11))
	})

	t.Run("Missing", func(t *testing.T) {
		repo, tx := newMocks(t)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().DeleteSale(gomock.Any(), int64(11)).Return(false, nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := ledger.NewService(repo, ledger.Options{})
		assert.ErrorIs(t, svc.DeleteSale(context.Background(), 11), ledger.ErrSaleNotFound)
	})
}

func TestService_StorageErrorHidesDriverMessage(t *testing.T) {
	repo, tx := newMocks(t)
	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().DeleteSale(gomock.Any(), gomock.Any()).Return(false, errors.New("pq: relation sales does not exist"))
	tx.EXPECT().Rollback().Return(nil)

	svc := ledger.NewService(repo, ledger.Options{})
	err := svc.DeleteSale(context.Background(), 1)

	var se *ledger.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "delete sale", se.Op)
	assert.NotContains(t, err.Error(), "relation")
}
