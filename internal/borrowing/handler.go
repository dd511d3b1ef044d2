// internal/borrowing/handler.go
package borrowing

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

// Routes mounts the borrowing endpoints. Requests must already carry an
// authenticated requester.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/borrowings/", h.handleList)
	r.Post("/borrowings/", h.handleCreate)
	r.Get("/borrowings/{id}/", h.handleGet)
	r.Post("/borrowings/{id}/return/", h.handleReturn)
}

type createRequest struct {
	Book               int64  `json:"book" validate:"required,gt=0"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterOrAbort(w, r)
	if !ok {
		return
	}

	filter, errs := parseListFilter(r, requester)
	if errs != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	summaries := []Summary{}
	for b, err := range h.service.List(r.Context(), requester, filter) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		summaries = append(summaries, NewSummary(b))
	}
	httpx.WriteJSON(w, http.StatusOK, summaries)
}

// parseListFilter reads is_active and, for staff only, user_id. Non-staff
// requesters are scoped to themselves, so their user_id is not even parsed.
func parseListFilter(r *http.Request, requester auth.Requester) (ListFilter, httpx.FieldErrors) {
	var filter ListFilter
	errs := httpx.FieldErrors{}
	q := r.URL.Query()

	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			errs.Add("is_active", "Must be a valid boolean.")
		}
		filter.IsActive = active
	}

	if raw := q.Get("user_id"); raw != "" && requester.IsStaff {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs.Add("user_id", "A valid integer is required.")
		} else {
			filter.UserID = &id
		}
	}

	if len(errs) > 0 {
		return ListFilter{}, errs
	}
	return filter, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), requester, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewDetail(b))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterOrAbort(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FromValidation(err))
		return
	}
	expected, err := ParseDate(req.ExpectedReturnDate)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FieldErrors{
			"expected_return_date": {"Date has wrong format. Use one of these formats instead: YYYY-MM-DD."},
		})
		return
	}

	b, err := h.service.Create(r.Context(), requester, CreateInput{
		BookID:             req.Book,
		ExpectedReturnDate: expected,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, NewDetail(b))
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Return(r.Context(), requester, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewDetail(b))
}

// writeError maps service errors to responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FieldErrors{verr.Field: {verr.Message}})
	case errors.Is(err, ErrAlreadyReturned):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FieldErrors{
			"actual_return_date": {"This borrowing has already been returned."},
		})
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "Not found.")
	default:
		h.logger.ErrorContext(r.Context(), "borrowing request failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func requesterOrAbort(w http.ResponseWriter, r *http.Request) (auth.Requester, bool) {
	requester, ok := auth.RequesterFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return requester, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}
