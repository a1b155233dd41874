// Package response writes JSON bodies and maps ledger errors to HTTP status
// codes.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeOutOfStock        = "OUT_OF_STOCK"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeStorage           = "STORAGE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Available *int64 `json:"available,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Fail writes a JSON error with the given status and code.
func Fail(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	JSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// Error maps err to a status code. Storage and unknown errors never expose
// their message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}

	var (
		status       int
		insufficient *ledger.InsufficientStockError
	)

	switch {
	case errors.As(err, &insufficient):
		status, resp.Code = http.StatusConflict, CodeInsufficientStock
		resp.Available = new(insufficient.Available)
	case errors.Is(err, ledger.ErrValidation):
		status, resp.Code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrSaleNotFound):
		status, resp.Code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, ledger.ErrOutOfStock):
		status, resp.Code = http.StatusConflict, CodeOutOfStock
	case errors.Is(err, ledger.ErrStorage):
		status, resp.Code = http.StatusInternalServerError, CodeStorage
		resp.Error = "storage failure"
	default:
		slog.Error("unhandled error", "error", err, "request_id", resp.RequestID)

		status, resp.Code = http.StatusInternalServerError, CodeInternal
		resp.Error = "internal error"
	}

	JSON(w, status, resp)
}
