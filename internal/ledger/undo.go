package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// UndoResult describes what UndoLast reversed.
type UndoResult struct {
	// Empty is set when there was nothing to undo.
	Empty bool
	Entry *UndoEntry

	// ProductID is the product the compensation touched. After an undone
	// delete it may differ from the original id.
	ProductID int64
	IDChanged bool

	// ProductMissing reports that the product no longer existed.
	ProductMissing bool

	// Approximate is set when an undone sale could not find its own sale
	// record and removed the latest matching one instead.
	Approximate bool

	// Discarded is set when the entry could not be understood. It is dropped
	// so the rest of the stack stays reachable.
	Discarded bool
}

// UndoLast pops the newest undo entry and applies its inverse in the same
// transaction.
func (s *Service) UndoLast(ctx context.Context) (*UndoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &UndoResult{}

	err := s.inTx(ctx, "undo", func(tx Tx) error {
		entry, err := tx.PopUndo(ctx)
		if err != nil {
			return fmt.Errorf("popping undo entry: %w", err)
		}

		if entry == nil {
			result.Empty = true
			return nil
		}

		result.Entry = entry

		switch entry.Kind {
		case UndoAdd:
			return undoAdd(ctx, tx, entry, result)
		case UndoSell:
			return undoSell(ctx, tx, entry, result)
		case UndoDelete:
			return undoDelete(ctx, tx, entry, result)
		default:
			slog.Error("discarding unknown undo entry", "id", entry.ID, "kind", entry.Kind)
			result.Discarded = true

			return nil
		}
	})

	observeCommand("undo", err)

	if err != nil {
		return nil, err
	}

	if result.Entry != nil && !result.Discarded {
		undoTotal.WithLabelValues(string(result.Entry.Kind)).Inc()
		slog.Info("undone", "kind", result.Entry.Kind, "product_id", result.ProductID, "approximate", result.Approximate)
	}

	return result, nil
}

// UndoDepth reports how many entries the undo stack holds.
func (s *Service) UndoDepth(ctx context.Context) (int, error) {
	n, err := s.repo.UndoDepth(ctx)
	if err != nil {
		return 0, s.fail("undo depth", err)
	}

	return n, nil
}

func undoAdd(ctx context.Context, tx Tx, entry *UndoEntry, result *UndoResult) error {
	var payload AddPayload
	if err := entry.Decode(&payload); err != nil {
		return discard(entry, result, err)
	}

	result.ProductID = payload.ProductID

	ok, err := tx.DeleteProduct(ctx, payload.ProductID)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}

	result.ProductMissing = !ok

	return tx.LogAction(ctx, ActionUndoAdd, fmt.Sprintf("deleted id=%d", payload.ProductID))
}

func undoSell(ctx context.Context, tx Tx, entry *UndoEntry, result *UndoResult) error {
	var payload SellPayload
	if err := entry.Decode(&payload); err != nil {
		return discard(entry, result, err)
	}

	result.ProductID = payload.ProductID

	ok, err := tx.UpdateStock(ctx, payload.ProductID, payload.PreviousQuantity, payload.PreviousSold)
	if err != nil {
		return fmt.Errorf("restoring stock: %w", err)
	}

	if !ok {
		result.ProductMissing = true
		slog.Warn("undo sell: product no longer exists", "product_id", payload.ProductID)
	}

	deleted, err := tx.DeleteSale(ctx, payload.SaleID)
	if err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}

	if !deleted {
		sale, err := tx.LatestSale(ctx, payload.ProductID, payload.Quantity)
		if err != nil {
			return fmt.Errorf("finding matching sale: %w", err)
		}

		if sale != nil {
			if _, err := tx.DeleteSale(ctx, sale.ID); err != nil {
				return fmt.Errorf("deleting matching sale: %w", err)
			}

			result.Approximate = true
			slog.Warn("undo sell: removed latest matching sale record",
				"product_id", payload.ProductID, "quantity", payload.Quantity, "expected_sale_id", payload.SaleID, "removed_sale_id", sale.ID)
		} else {
			slog.Warn("undo sell: no sale record left to remove", "product_id", payload.ProductID, "sale_id", payload.SaleID)
		}
	}

	return tx.LogAction(ctx, ActionUndoSell, fmt.Sprintf("reverted id=%d qty=%d", payload.ProductID, payload.Quantity))
}

func undoDelete(ctx context.Context, tx Tx, entry *UndoEntry, result *UndoResult) error {
	var payload DeletePayload
	if err := entry.Decode(&payload); err != nil {
		return discard(entry, result, err)
	}

	p := &Product{
		ID:           payload.ProductID,
		Name:         payload.Product.Name,
		Quantity:     payload.Product.Quantity,
		BuyPrice:     payload.Product.BuyPrice,
		SellPrice:    payload.Product.SellPrice,
		SoldQuantity: payload.Product.SoldQuantity,
	}

	restored, err := tx.RestoreProduct(ctx, p)
	if err != nil {
		return fmt.Errorf("restoring product: %w", err)
	}

	if !restored {
		p.ID = 0
		if err := tx.InsertProduct(ctx, p); err != nil {
			return fmt.Errorf("reinserting product: %w", err)
		}

		result.IDChanged = true
		slog.Warn("undo delete: original id taken, product restored under a new id",
			"original_id", payload.ProductID, "new_id", p.ID)
	}

	result.ProductID = p.ID

	return tx.LogAction(ctx, ActionUndoDelete, fmt.Sprintf("restored id=%d name=%s", p.ID, p.Name))
}

func discard(entry *UndoEntry, result *UndoResult, err error) error {
	slog.Error("discarding unreadable undo entry", "id", entry.ID, "kind", entry.Kind, "error", err)
	result.Discarded = true

	return nil
}
