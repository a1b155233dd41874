package backup

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/http/response"
)

type Handler struct {
	coord *backup.Coordinator
}

func NewHandler(coord *backup.Coordinator) *Handler {
	return &Handler{coord: coord}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

type createResponse struct {
	Name string `json:"name"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.coord.List()
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if files == nil {
		files = []backup.Info{}
	}

	response.JSON(w, http.StatusOK, files)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	path, err := h.coord.BackupNow(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, createResponse{Name: filepath.Base(path)})
}
