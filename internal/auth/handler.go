// internal/auth/handler.go
package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

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

// Routes mounts the token endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/token/", h.handleToken)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.FromValidation(err))
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrRateLimited):
		httpx.Error(w, http.StatusTooManyRequests, "Request was throttled.")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, "No active account found with the given credentials")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"access": token})
	}
}
