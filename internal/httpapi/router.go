// Package httpapi assembles the HTTP surface of the service.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
	"lending/internal/httpx"
)

// Pinger checks a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators mounted by NewRouter. DB may be
// nil for the in-memory store.
type Deps struct {
	Logger     *slog.Logger
	Tokens     *auth.TokenIssuer
	Auth       *auth.Handler
	Books      *catalog.Handler
	Borrowings *borrowing.Handler
	DB         Pinger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestID)
	r.Use(httpx.AccessLog(d.Logger))
	r.Use(httpx.Trace)

	r.Get("/healthz", health(d.DB))
	d.Auth.Routes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(d.Tokens))
		d.Books.Routes(r)
		d.Borrowings.Routes(r)
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				httpx.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
