package undo

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
	r.Get("/", h.depth)
	r.Post("/", h.undo)
}

type depthResponse struct {
	Depth int `json:"depth"`
}

type undoResponse struct {
	Empty          bool            `json:"empty"`
	Kind           ledger.UndoKind `json:"kind,omitempty"`
	ProductID      int64           `json:"product_id,omitempty"`
	IDChanged      bool            `json:"id_changed,omitempty"`
	ProductMissing bool            `json:"product_missing,omitempty"`
	Approximate    bool            `json:"approximate,omitempty"`
	Discarded      bool            `json:"discarded,omitempty"`
	Remaining      int             `json:"remaining"`
}

func (h *Handler) depth(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UndoDepth(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, depthResponse{Depth: n})
}

func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.UndoLast(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := undoResponse{
		Empty:          res.Empty,
		ProductID:      res.ProductID,
		IDChanged:      res.IDChanged,
		ProductMissing: res.ProductMissing,
		Approximate:    res.Approximate,
		Discarded:      res.Discarded,
	}

	if res.Entry != nil {
		resp.Kind = res.Entry.Kind
	}

	if resp.Remaining, err = h.svc.UndoDepth(r.Context()); err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, resp)
}
