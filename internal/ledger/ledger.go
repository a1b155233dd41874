package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Product is a stock line on the counter.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Quantity     int64     `json:"quantity"`   // on hand, never negative
	BuyPrice     int64     `json:"buy_price"`  // smallest currency unit
	SellPrice    int64     `json:"sell_price"` // smallest currency unit
	SoldQuantity int64     `json:"sold_quantity"`
	CreatedAt    time.Time `json:"created_at"`
}

// UnitProfit is the margin earned on a single unit at current prices.
func (p *Product) UnitProfit() int64 {
	return p.SellPrice - p.BuyPrice
}

// SaleRecord is an immutable row of the sales history.
type SaleRecord struct {
	ID          int64     `json:"id"`
	ProductID   *int64    `json:"product_id"` // nil once the product has been deleted
	ProductName string    `json:"-"`          // resolved on read, empty when the product is gone
	Quantity    int64     `json:"quantity"`
	BuyPrice    int64     `json:"buy_price"`
	SellPrice   int64     `json:"sell_price"`
	Profit      int64     `json:"profit"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActionKind labels an entry of the audit trail.
type ActionKind string

const (
	ActionAdd         ActionKind = "ADD"
	ActionSell        ActionKind = "SELL"
	ActionDelete      ActionKind = "DELETE"
	ActionUndoAdd     ActionKind = "UNDO_ADD"
	ActionUndoSell    ActionKind = "UNDO_SELL"
	ActionUndoDelete  ActionKind = "UNDO_DELETE"
	ActionDeleteSale  ActionKind = "DELETE_SALE"
	ActionPurgeEmpty  ActionKind = "PURGE_EMPTY"
	ActionRestoreDump ActionKind = "RESTORE"
)

// ActionLog is a write-only audit row kept for human diagnostics.
type ActionLog struct {
	ID        int64      `json:"id"`
	Action    ActionKind `json:"action"`
	Detail    string     `json:"detail"`
	CreatedAt time.Time  `json:"created_at"`
}

// UndoKind is the kind of reversible ledger command.
type UndoKind string

const (
	UndoAdd    UndoKind = "ADD"
	UndoSell   UndoKind = "SELL"
	UndoDelete UndoKind = "DELETE"
)

// UndoEntry is one frame of the persistent undo stack. Payload holds the
// JSON encoding of AddPayload, SellPayload or DeletePayload depending on Kind.
type UndoEntry struct {
	ID        int64           `json:"id"`
	Kind      UndoKind        `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type AddPayload struct {
	ProductID int64 `json:"product_id"`
}

type SellPayload struct {
	ProductID        int64 `json:"product_id"`
	Quantity         int64 `json:"quantity"`
	PreviousQuantity int64 `json:"previous_quantity"`
	PreviousSold     int64 `json:"previous_sold"`
	SaleID           int64 `json:"sale_id"`
}

type DeletePayload struct {
	ProductID int64           `json:"product_id"`
	Product   ProductSnapshot `json:"product"`
}

// ProductSnapshot is the full state of a product captured before deletion.
type ProductSnapshot struct {
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	BuyPrice     int64  `json:"buy_price"`
	SellPrice    int64  `json:"sell_price"`
	SoldQuantity int64  `json:"sold_quantity"`
}

func newUndoEntry(kind UndoKind, payload any) (*UndoEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s undo payload: %w", kind, err)
	}

	return &UndoEntry{Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the entry payload into v.
func (e *UndoEntry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s undo payload %d: %w", e.Kind, e.ID, err)
	}

	return nil
}

// Snapshot is a point-in-time copy of every ledger table.
type Snapshot struct {
	ID       uuid.UUID     `json:"id"`
	TakenAt  time.Time     `json:"taken_at"`
	Products []*Product    `json:"products"`
	Sales    []*SaleRecord `json:"sales"`
	Actions  []*ActionLog  `json:"actions"`
	Undo     []*UndoEntry  `json:"undo"`
}
