// internal/catalog/handler.go
package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lending/internal/auth"
	"lending/internal/httpx"
)

var validate = httpx.NewValidator()

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the book endpoints. The router is expected to be behind
// authentication already; adding books additionally requires staff.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/books/", h.handleList)
	r.Get("/books/{id}/", h.handleGet)
	r.With(auth.RequireStaff).Post("/books/", h.handleAdd)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if books == nil {
		books = []*Book{}
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "Not found.")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	switch {
	case errors.Is(err, ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, "Not found.")
	case err != nil:
		h.internalError(w, r, err)
	default:
		httpx.WriteJSON(w, http.StatusOK, book)
	}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FromValidation(err))
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "catalog request failed", "error", err)
	httpx.Error(w, http.StatusInternalServerError, "internal error")
}
