package importcsv

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cafenet/internal/http/response"
	"github.com/MrJamesThe3rd/cafenet/internal/stockimport"
)

const maxUpload = 10 << 20

type Handler struct {
	importSvc *stockimport.Service
}

func NewHandler(importSvc *stockimport.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type importResponse struct {
	Imported int `json:"imported"`
	*stockimport.Result
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, "file field is required")
		return
	}
	defer file.Close()

	result, err := h.importSvc.Import(r.Context(), file, stockimport.Options{
		Charset: r.FormValue("charset"),
	})
	if err != nil {
		if errors.Is(err, stockimport.ErrNoHeader) || result == nil {
			response.Fail(w, r, http.StatusBadRequest, response.CodeValidation, err.Error())
			return
		}

		response.Error(w, r, err)

		return
	}

	if result.Skipped == nil {
		result.Skipped = []stockimport.RowError{}
	}

	response.JSON(w, http.StatusCreated, importResponse{Imported: len(result.Added), Result: result})
}
