// Package handler exposes the chat assistant over HTTP, both as a chi
// router and as an API Gateway Lambda handler.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"store-assistant/internal/auth"
	"store-assistant/internal/domain"
	"store-assistant/internal/usecase"
)

const (
	headerCorrelationID  = "X-Correlation-Id"
	headerNonce          = "X-Chat-Nonce"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Restart(ctx context.Context, sessionID string) error
}

type OrderUseCase interface {
	Place(ctx context.Context, in usecase.PlaceOrderInput) (domain.OrderResult, error)
}

type SettingsReader interface {
	Load(ctx context.Context) (domain.Settings, error)
}

// NonceService issues nonces for /session and verifies them on every
// other protected route.
type NonceService interface {
	Issue(sessionID string, identity *domain.Identity, ttl time.Duration) (string, time.Time, error)
	Verify(nonce string) (*auth.Claims, error)
}

type Dependencies struct {
	Chat     ChatUseCase
	Orders   OrderUseCase
	Settings SettingsReader
	Nonces   NonceService
}

type Options struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	NonceTTL       time.Duration
}

type Handler struct {
	chat     ChatUseCase
	orders   OrderUseCase
	settings SettingsReader
	nonces   NonceService
	nonceTTL time.Duration
	limiter  *rateLimiter
	router   chi.Router
	newID    func() string
}

func NewHandler(deps Dependencies, opts Options) (*Handler, error) {
	switch {
	case deps.Chat == nil:
		return nil, errors.New("handler: chat use case must not be nil")
	case deps.Orders == nil:
		return nil, errors.New("handler: order use case must not be nil")
	case deps.Settings == nil:
		return nil, errors.New("handler: settings reader must not be nil")
	case deps.Nonces == nil:
		return nil, errors.New("handler: nonce service must not be nil")
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	if opts.NonceTTL <= 0 {
		opts.NonceTTL = 12 * time.Hour
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	h := &Handler{
		chat:     deps.Chat,
		orders:   deps.Orders,
		settings: deps.Settings,
		nonces:   deps.Nonces,
		nonceTTL: opts.NonceTTL,
		limiter:  newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		newID:    newCorrelationID,
	}
	h.router = h.routes(opts.AllowedOrigins)
	return h, nil
}

func (h *Handler) routes(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(h.withCorrelationID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerNonce, headerIdempotencyKey, headerCorrelationID},
		ExposedHeaders: []string{headerCorrelationID},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: "Not found."})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: "method_not_allowed", Message: "Method not allowed."})
	})

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.limiter.middleware)
		r.Get("/session", h.handleSession)

		r.Group(func(r chi.Router) {
			r.Use(h.requireNonce)
			r.Post("/chat", h.handleChat)
			r.Post("/create-order", h.handleCreateOrder)
			r.Delete("/checkout", h.handleRestart)
		})
	})
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}
