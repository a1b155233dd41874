package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PurgeEmpty deletes every product with no stock left. Each removal commits
// on its own and none of them can be undone. A failure on one product is
// logged and the purge carries on with the rest.
func (s *Service) PurgeEmpty(ctx context.Context) ([]*Product, error) {
	products, err := s.repo.ListProducts(ctx, "")
	if err != nil {
		return nil, s.fail("purge empty", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*Product

	for _, candidate := range products {
		if candidate.Quantity > 0 {
			continue
		}

		var gone *Product

		err := s.inTx(ctx, "purge empty", func(tx Tx) error {
			p, err := tx.GetProductForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}

			// Restocked since the listing.
			if p.Quantity > 0 {
				return nil
			}

			if _, err := tx.DeleteProduct(ctx, p.ID); err != nil {
				return fmt.Errorf("deleting product: %w", err)
			}

			gone = p

			return tx.LogAction(ctx, ActionPurgeEmpty, fmt.Sprintf("id=%d name=%s", p.ID, p.Name))
		})

		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			slog.Warn("purge: skipping product", "id", candidate.ID, "error", err)
		case gone != nil:
			removed = append(removed, gone)
		}
	}

	observeCommand("purge_empty", nil)
	slog.Info("purged empty products", "count", len(removed))

	return removed, nil
}
