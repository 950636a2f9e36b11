package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type RouterConfig struct {
	Logger             *slog.Logger
	Authenticator      auth.Authenticator
	Limiter            *IPRateLimiter
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders  bool

	Payments  *PaymentHandler
	Orders    *OrdersHandler
	Furniture *FurnitureHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(cfg.Logger))
	r.Use(RecoverJSON(cfg.Logger))
	r.Use(CORS)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	confirm := http.Handler(http.HandlerFunc(cfg.Payments.Confirm))
	if cfg.Limiter != nil {
		confirm = cfg.Limiter.Middleware(confirm)
	}

	// the storefront still posts to the old edge-function path
	r.Method(http.MethodPost, "/functions/v1/approve-payment", confirm)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/payments/confirm", confirm)

		requireIdentity := RequireIdentity(cfg.Authenticator, cfg.Logger)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Get("/orders", cfg.Orders.ListOrders)
			if cfg.Furniture != nil {
				r.Get("/me/furniture", cfg.Furniture.ListMyFurniture)
			}
		})

		if cfg.Furniture != nil {
			r.Route("/furniture", func(r chi.Router) {
				r.Get("/", cfg.Furniture.ListFurniture)
				r.Get("/{id}", cfg.Furniture.GetFurniture)
				r.With(requireIdentity).Post("/", cfg.Furniture.CreateFurniture)
			})
		}
	})

	return r
}
