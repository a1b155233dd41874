package product

import (
	"time"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

type productResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Quantity     int64     `json:"quantity"`
	BuyPrice     int64     `json:"buy_price"`
	SellPrice    int64     `json:"sell_price"`
	SoldQuantity int64     `json:"sold_quantity"`
	PercentSold  int64     `json:"percent_sold"`
	LowStock     bool      `json:"low_stock"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(p *ledger.Product, threshold int64) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Quantity:     p.Quantity,
		BuyPrice:     p.BuyPrice,
		SellPrice:    p.SellPrice,
		SoldQuantity: p.SoldQuantity,
		PercentSold:  ledger.PercentSold(p.SoldQuantity, p.Quantity),
		LowStock:     p.Quantity <= threshold,
		CreatedAt:    p.CreatedAt,
	}
}
