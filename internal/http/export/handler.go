package export

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cafenet/internal/export"
	"github.com/MrJamesThe3rd/cafenet/internal/http/response"
	"github.com/MrJamesThe3rd/cafenet/internal/http/sales"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/sales", h.salesCSV)
	r.Get("/sales/summary", h.summary)
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

func (h *Handler) salesCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := sales.ParseFilter(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	// Buffer so a failed listing still gets a JSON error instead of a
	// truncated file.
	var buf bytes.Buffer

	if _, err := h.svc.WriteSalesCSV(r.Context(), &buf, filter); err != nil {
		response.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"sales_%s.csv\"", time.Now().Format("20060102")))

	_, _ = buf.WriteTo(w)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := sales.ParseFilter(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	body, err := h.svc.Summary(r.Context(), filter)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, summaryResponse{Summary: body})
}
