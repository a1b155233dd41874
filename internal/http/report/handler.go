package report

import (
	"net/http"

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
	r.Get("/", h.report)
}

// MaintenanceRoutes mounts the non-reversible housekeeping commands.
func (h *Handler) MaintenanceRoutes(r chi.Router) {
	r.Post("/purge-empty", h.purgeEmpty)
}

type reportResponse struct {
	*ledger.Totals
	LowStockThreshold int64 `json:"low_stock_threshold"`
	UndoDepth         int   `json:"undo_depth"`
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.Report(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	depth, err := h.svc.UndoDepth(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, reportResponse{
		Totals:            totals,
		LowStockThreshold: h.svc.LowStockThreshold(),
		UndoDepth:         depth,
	})
}

type purgeResponse struct {
	Removed  int               `json:"removed"`
	Products []*ledger.Product `json:"products"`
}

func (h *Handler) purgeEmpty(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.PurgeEmpty(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if removed == nil {
		removed = []*ledger.Product{}
	}

	response.JSON(w, http.StatusOK, purgeResponse{Removed: len(removed), Products: removed})
}
