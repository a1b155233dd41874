package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

var (
	_ ledger.Repository = (*Store)(nil)
	_ ledger.Tx         = (*tx)(nil)
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, name, quantity, buy_price, sell_price, sold_quantity, created_at`

func scanProduct(s scanner) (*ledger.Product, error) {
	var p ledger.Product
	if err := s.Scan(&p.ID, &p.Name, &p.Quantity, &p.BuyPrice, &p.SellPrice, &p.SoldQuantity, &p.CreatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

const saleColumns = `s.id, s.product_id, COALESCE(p.name, ''), s.quantity, s.buy_price, s.sell_price, s.profit, s.created_at`

func scanSale(s scanner) (*ledger.SaleRecord, error) {
	var (
		sale      ledger.SaleRecord
		productID sql.NullInt64
	)

	if err := s.Scan(
		&sale.ID, &productID, &sale.ProductName, &sale.Quantity,
		&sale.BuyPrice, &sale.SellPrice, &sale.Profit, &sale.CreatedAt,
	); err != nil {
		return nil, err
	}

	if productID.Valid {
		sale.ProductID = &productID.Int64
	}

	return &sale, nil
}

// isStockViolation reports whether err is the quantity CHECK constraint firing.
func isStockViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514" && pgErr.ConstraintName == "products_quantity_non_negative"
	}

	return false
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	return &tx{tx: dbTx}, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*ledger.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("getting product: %w", err)
	}

	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, search string) ([]*ledger.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE $1 = '' OR STRPOS(LOWER(name), LOWER($1)) > 0
		ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*ledger.Product

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return products, nil
}

func (s *Store) ListSales(ctx context.Context, filter ledger.SaleFilter) ([]*ledger.SaleRecord, error) {
	query := `SELECT ` + saleColumns + `
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Since != nil {
		query += fmt.Sprintf(" AND s.created_at >= $%d", argIdx)

		args = append(args, *filter.Since)
		argIdx++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND s.created_at < $%d", argIdx)

		args = append(args, *filter.Until)
		argIdx++
	}

	query += " ORDER BY s.id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []*ledger.SaleRecord

	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}

		sales = append(sales, sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales: %w", err)
	}

	return sales, nil
}

func (s *Store) TotalProfit(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(profit), 0) FROM sales`).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing profit: %w", err)
	}

	return total, nil
}

func (s *Store) UndoDepth(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM undo_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting undo entries: %w", err)
	}

	return n, nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Commit() error   { return t.tx.Commit() }
func (t *tx) Rollback() error { return t.tx.Rollback() }

func (t *tx) GetProductForUpdate(ctx context.Context, id int64) (*ledger.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	p, err := scanProduct(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("locking product: %w", err)
	}

	return p, nil
}

func (t *tx) InsertProduct(ctx context.Context, p *ledger.Product) error {
	query := `
		INSERT INTO products (name, quantity, buy_price, sell_price, sold_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query, p.Name, p.Quantity, p.BuyPrice, p.SellPrice, p.SoldQuantity).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}

	return nil
}

func (t *tx) RestoreProduct(ctx context.Context, p *ledger.Product) (bool, error) {
	query := `
		INSERT INTO products (id, name, quantity, buy_price, sell_price, sold_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`

	err := t.tx.QueryRowContext(ctx, query, p.ID, p.Name, p.Quantity, p.BuyPrice, p.SellPrice, p.SoldQuantity).
		Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("restoring product: %w", err)
	}

	return true, nil
}

func (t *tx) UpdateStock(ctx context.Context, id, quantity, sold int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE products SET quantity = $1, sold_quantity = $2 WHERE id = $3`, quantity, sold, id)
	if err != nil {
		if isStockViolation(err) {
			return false, ledger.ErrOutOfStock
		}

		return false, fmt.Errorf("updating stock: %w", err)
	}

	return affected(res)
}

func (t *tx) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting product: %w", err)
	}

	return affected(res)
}

func (t *tx) InsertSale(ctx context.Context, sale *ledger.SaleRecord) error {
	query := `
		INSERT INTO sales (product_id, quantity, buy_price, sell_price, profit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query, sale.ProductID, sale.Quantity, sale.BuyPrice, sale.SellPrice, sale.Profit).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating sale: %w", err)
	}

	return nil
}

func (t *tx) DeleteSale(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting sale: %w", err)
	}

	return affected(res)
}

func (t *tx) LatestSale(ctx context.Context, productID, quantity int64) (*ledger.SaleRecord, error) {
	query := `SELECT ` + saleColumns + `
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		WHERE s.product_id = $1 AND s.quantity = $2
		ORDER BY s.id DESC
		LIMIT 1`

	sale, err := scanSale(t.tx.QueryRowContext(ctx, query, productID, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding latest sale: %w", err)
	}

	return sale, nil
}

func (t *tx) PushUndo(ctx context.Context, entry *ledger.UndoEntry) error {
	query := `
		INSERT INTO undo_entries (action, payload)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query, string(entry.Kind), []byte(entry.Payload)).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("pushing undo entry: %w", err)
	}

	return nil
}

func (t *tx) PopUndo(ctx context.Context) (*ledger.UndoEntry, error) {
	query := `
		DELETE FROM undo_entries
		WHERE id = (SELECT id FROM undo_entries ORDER BY id DESC LIMIT 1 FOR UPDATE)
		RETURNING id, action, payload, created_at
	`

	var (
		entry   ledger.UndoEntry
		payload []byte
	)

	err := t.tx.QueryRowContext(ctx, query).Scan(&entry.ID, &entry.Kind, &payload, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("popping undo entry: %w", err)
	}

	entry.Payload = payload

	return &entry, nil
}

func (t *tx) LogAction(ctx context.Context, action ledger.ActionKind, detail string) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO action_logs (action, detail) VALUES ($1, $2)`, string(action), detail); err != nil {
		return fmt.Errorf("logging action: %w", err)
	}

	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}

	return n > 0, nil
}

// Snapshot reads every table inside one read-only REPEATABLE READ
// transaction, so the copy is consistent and writers are never blocked.
func (s *Store) Snapshot(ctx context.Context) (*ledger.Snapshot, error) {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer dbTx.Rollback()

	snap := &ledger.Snapshot{ID: uuid.New()}

	if err := dbTx.QueryRowContext(ctx, `SELECT NOW()`).Scan(&snap.TakenAt); err != nil {
		return nil, fmt.Errorf("reading snapshot time: %w", err)
	}

	if snap.Products, err = queryAll(ctx, dbTx,
		`SELECT `+productColumns+` FROM products ORDER BY id`, scanProduct); err != nil {
		return nil, fmt.Errorf("snapshotting products: %w", err)
	}

	if snap.Sales, err = queryAll(ctx, dbTx,
		`SELECT `+saleColumns+` FROM sales s LEFT JOIN products p ON p.id = s.product_id ORDER BY s.id`, scanSale); err != nil {
		return nil, fmt.Errorf("snapshotting sales: %w", err)
	}

	if snap.Actions, err = queryAll(ctx, dbTx,
		`SELECT id, action, detail, created_at FROM action_logs ORDER BY id`, scanAction); err != nil {
		return nil, fmt.Errorf("snapshotting action logs: %w", err)
	}

	if snap.Undo, err = queryAll(ctx, dbTx,
		`SELECT id, action, payload, created_at FROM undo_entries ORDER BY id`, scanUndo); err != nil {
		return nil, fmt.Errorf("snapshotting undo entries: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("closing snapshot tx: %w", err)
	}

	return snap, nil
}

func scanAction(s scanner) (*ledger.ActionLog, error) {
	var a ledger.ActionLog
	if err := s.Scan(&a.ID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}

func scanUndo(s scanner) (*ledger.UndoEntry, error) {
	var (
		e       ledger.UndoEntry
		payload []byte
	)

	if err := s.Scan(&e.ID, &e.Kind, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}

	e.Payload = payload

	return &e, nil
}

func queryAll[T any](ctx context.Context, dbTx *sql.Tx, query string, scan func(scanner) (*T, error)) ([]*T, error) {
	rows, err := dbTx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*T{}

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

// Restore replaces the contents of every ledger table with the snapshot and
// moves the id sequences past the restored rows.
func (s *Store) Restore(ctx context.Context, snap *ledger.Snapshot) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning restore tx: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx,
		`TRUNCATE sales, undo_entries, action_logs, products RESTART IDENTITY`); err != nil {
		return fmt.Errorf("clearing tables: %w", err)
	}

	for _, p := range snap.Products {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO products (id, name, quantity, buy_price, sell_price, sold_quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.Name, p.Quantity, p.BuyPrice, p.SellPrice, p.SoldQuantity, p.CreatedAt); err != nil {
			return fmt.Errorf("restoring product %d: %w", p.ID, err)
		}
	}

	for _, sale := range snap.Sales {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO sales (id, product_id, quantity, buy_price, sell_price, profit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sale.ID, sale.ProductID, sale.Quantity, sale.BuyPrice, sale.SellPrice, sale.Profit, sale.CreatedAt); err != nil {
			return fmt.Errorf("restoring sale %d: %w", sale.ID, err)
		}
	}

	for _, a := range snap.Actions {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO action_logs (id, action, detail, created_at) VALUES ($1, $2, $3, $4)`,
			a.ID, string(a.Action), a.Detail, a.CreatedAt); err != nil {
			return fmt.Errorf("restoring action log %d: %w", a.ID, err)
		}
	}

	for _, e := range snap.Undo {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO undo_entries (id, action, payload, created_at) VALUES ($1, $2, $3, $4)`,
			e.ID, string(e.Kind), []byte(e.Payload), e.CreatedAt); err != nil {
			return fmt.Errorf("restoring undo entry %d: %w", e.ID, err)
		}
	}

	for _, table := range []string{"products", "sales", "action_logs", "undo_entries"} {
		query := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)`,
			table)
		if _, err := dbTx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("resetting %s sequence: %w", table, err)
		}
	}

	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO action_logs (action, detail) VALUES ($1, $2)`,
		string(ledger.ActionRestoreDump), fmt.Sprintf("snapshot=%s taken_at=%s", snap.ID, snap.TakenAt.Format("2006-01-02 15:04:05"))); err != nil {
		return fmt.Errorf("logging restore: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing restore: %w", err)
	}

	return nil
}
