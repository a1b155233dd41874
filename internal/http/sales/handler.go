package sales

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cafenet/internal/http/response"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/{id}", h.delete)
}

type saleResponse struct {
	ID          int64     `json:"id"`
	ProductID   *int64    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Quantity    int64     `json:"quantity"`
	BuyPrice    int64     `json:"buy_price"`
	SellPrice   int64     `json:"sell_price"`
	Profit      int64     `json:"profit"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	records, err := h.svc.ListSales(r.Context(), filter)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := make([]saleResponse, len(records))
	for i, s := range records {
		resp[i] = saleResponse{
			ID:          s.ID,
			ProductID:   s.ProductID,
			ProductName: s.ProductName,
			Quantity:    s.Quantity,
			BuyPrice:    s.BuyPrice,
			SellPrice:   s.SellPrice,
			Profit:      s.Profit,
			CreatedAt:   s.CreatedAt,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "invalid id")
		return
	}

	if err := h.svc.DeleteSale(r.Context(), id); err != nil {
		response.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ParseFilter reads start_date, end_date (local YYYY-MM-DD, end inclusive) and
// limit from the query string.
func ParseFilter(r *http.Request) (ledger.SaleFilter, error) {
	var filter ledger.SaleFilter

	q := r.URL.Query()

	if s := q.Get("start_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
		if err != nil {
			return filter, &ledger.ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}

		filter.Since = new(t)
	}

	if s := q.Get("end_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
		if err != nil {
			return filter, &ledger.ValidationError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}

		filter.Until = new(t.AddDate(0, 0, 1))
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, &ledger.ValidationError{Field: "limit", Reason: "must be a non-negative number"}
		}

		filter.Limit = n
	}

	return filter, nil
}
