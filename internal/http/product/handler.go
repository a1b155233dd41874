package product

import (
	"encoding/json"
	"net/http"
	"strconv"

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
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/sell", h.sell)
}

// createProductRequest takes amounts as text so operators can send "12,500"
// or Persian digits just like in the TUI form.
type createProductRequest struct {
	Name      string          `json:"name"`
	Quantity  json.RawMessage `json:"quantity"`
	BuyPrice  json.RawMessage `json:"buy_price"`
	SellPrice json.RawMessage `json:"sell_price"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	params, err := ledger.ParseAddInput(req.Name, rawAmount(req.Quantity), rawAmount(req.BuyPrice), rawAmount(req.SellPrice))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.svc.AddProduct(r.Context(), params)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, toResponse(p, h.svc.LowStockThreshold()))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	view, err := ledger.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	rows, err := h.svc.ListProducts(r.Context(), ledger.ListFilter{
		Query: r.URL.Query().Get("q"),
		View:  view,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, rows)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponse(p, h.svc.LowStockThreshold()))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		response.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type sellRequest struct {
	Quantity     int64 `json:"quantity"`
	AllowPartial bool  `json:"allow_partial"`
}

type sellResponse struct {
	Product   productResponse    `json:"product"`
	Sale      *ledger.SaleRecord `json:"sale"`
	Requested int64              `json:"requested"`
	Capped    bool               `json:"capped"`
}

func (h *Handler) sell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	// An empty body sells a single unit.
	req := sellRequest{Quantity: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "invalid request body: "+err.Error())
			return
		}
	}

	res, err := h.svc.SellProduct(r.Context(), ledger.SellParams{
		ProductID:    id,
		Quantity:     req.Quantity,
		AllowPartial: req.AllowPartial,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, sellResponse{
		Product:   toResponse(res.Product, h.svc.LowStockThreshold()),
		Sale:      res.Sale,
		Requested: res.Requested,
		Capped:    res.Capped,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "invalid id")
		return 0, false
	}

	return id, true
}

// rawAmount accepts both JSON numbers and strings.
func rawAmount(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}
