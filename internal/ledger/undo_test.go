package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

func undoEntry(t *testing.T, kind ledger.UndoKind, payload any) *ledger.UndoEntry {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return &ledger.UndoEntry{ID: 1, Kind: kind, Payload: raw}
}

func TestService_UndoLast(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx)
		want      ledger.UndoResult
		wantErr   error
	}

	tests := []testCase{
		{
			name: "EmptyStack",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(nil, nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{Empty: true},
		},
		{
			name: "AddDeletesProduct",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoAdd, ledger.AddPayload{ProductID: 5}), nil)
				tx.EXPECT().DeleteProduct(gomock.Any(), int64(5)).Return(true, nil)
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoAdd, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 5},
		},
		{
			name: "AddAlreadyGone",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoAdd, ledger.AddPayload{ProductID: 5}), nil)
				tx.EXPECT().DeleteProduct(gomock.Any(), int64(5)).Return(false, nil)
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoAdd, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 5, ProductMissing: true},
		},
		{
			name: "SellExactRecord",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				payload := ledger.SellPayload{ProductID: 2, Quantity: 3, PreviousQuantity: 10, PreviousSold: 0, SaleID: 8}
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoSell, payload), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(2), int64(10), int64(0)).Return(true, nil)
				tx.EXPECT().DeleteSale(gomock.Any(), int64(8)).Return(true, nil)
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoSell, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 2},
		},
		{
			name: "SellFallsBackToLatestMatch",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				payload := ledger.SellPayload{ProductID: 2, Quantity: 3, PreviousQuantity: 10, SaleID: 8}
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoSell, payload), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(2), int64(10), int64(0)).Return(true, nil)
				tx.EXPECT().DeleteSale(gomock.Any(), int64(8)).Return(false, nil)
				tx.EXPECT().LatestSale(gomock.Any(), int64(2), int64(3)).Return(&ledger.SaleRecord{ID: 12}, nil)
				tx.EXPECT().DeleteSale(gomock.Any(), int64(12)).Return(true, nil)
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoSell, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 2, Approximate: true},
		},
		{
			name: "SellProductMissing",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				payload := ledger.SellPayload{ProductID: 2, Quantity: 1, PreviousQuantity: 1, SaleID: 8}
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoSell, payload), nil)
				tx.EXPECT().UpdateStock(gomock.Any(), int64(2), int64(1), int64(0)).Return(false, nil)
				tx.EXPECT().DeleteSale(gomock.Any(), int64(8)).Return(true, nil)
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoSell, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 2, ProductMissing: true},
		},
		{
			name: "DeleteRestoresOriginalID",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				payload := ledger.DeletePayload{ProductID: 4, Product: ledger.ProductSnapshot{Name: "Cake", Quantity: 3}}
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoDelete, payload), nil)
				tx.EXPECT().
					RestoreProduct(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *ledger.Product) (bool, error) {
						assert.Equal(t, int64(4), p.ID)
						assert.Equal(t, "Cake", p.Name)
						return true, nil
					})
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoDelete, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 4},
		},
		{
			name: "DeleteIDTaken",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				payload := ledger.DeletePayload{ProductID: 4, Product: ledger.ProductSnapshot{Name: "Cake"}}
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoDelete, payload), nil)
				tx.EXPECT().RestoreProduct(gomock.Any(), gomock.Any()).Return(false, nil)
				tx.EXPECT().
					InsertProduct(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *ledger.Product) error {
						p.ID = 20
						return nil
					})
				tx.EXPECT().LogAction(gomock.Any(), ledger.ActionUndoDelete, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{ProductID: 20, IDChanged: true},
		},
		{
			name: "UnknownKindDiscarded",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(&ledger.UndoEntry{ID: 3, Kind: "RENAME", Payload: []byte(`{}`)}, nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			want: ledger.UndoResult{Discarded: true},
		},
		{
			name: "CompensationFails",
			setupMock: func(t *testing.T, r *ledger.MockRepository, tx *ledger.MockTx) {
				r.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().PopUndo(gomock.Any()).Return(undoEntry(t, ledger.UndoAdd, ledger.AddPayload{ProductID: 5}), nil)
				tx.EXPECT().DeleteProduct(gomock.Any(), int64(5)).Return(false, errors.New("db error"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tx := newMocks(t)
			tt.setupMock(t, repo, tx)

			svc := ledger.NewService(repo, ledger.Options{})
			got, err := svc.UndoLast(context.Background())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)

			got.Entry = nil
			assert.Equal(t, tt.want, *got)
		})
	}
}
