// Package httpapi — JSON API кассы поверх chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/printing"
	"github.com/vladislavdragonenkov/pos/internal/service/syncer"
	"github.com/vladislavdragonenkov/pos/internal/settings"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// AdminStore — операции администратора над локальными данными.
type AdminStore interface {
	Shop() domain.ShopProfile
	UpdateShop(ctx context.Context, upd domain.ShopUpdate) (domain.ShopProfile, error)
	VerifyPassword(password string) error
	ClearLocalData(ctx context.Context) error
	PendingSync() []domain.PendingSyncEntry
}

// SyncFlusher досылает очередь синхронизации.
type SyncFlusher interface {
	Flush(ctx context.Context) (syncer.Report, error)
}

// Deps — зависимости роутера. Syncer, Health и Metrics необязательны.
type Deps struct {
	Catalog  *catalog.Service
	Checkout *checkout.Service
	Printing *printing.Service
	Admin    AdminStore
	Syncer   SyncFlusher
	JWT      *JWTManager
	Labels   settings.ReceiptLabels
	Health   *health.Handler
	Metrics  http.Handler
	Logger   *log.Entry
	Now      func() time.Time
}

type handler struct {
	Deps
}

// NewRouter собирает все маршруты API.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "http-api")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogging(deps.Logger))

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.ServeHTTP)
		r.Get("/readyz", deps.Health.ReadinessHandler)
	}
	r.Get("/livez", health.LivenessHandler)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	admin := RequireAdmin(deps.JWT)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, http.StatusOK, version.Get())
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{id}", h.getProduct)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.createProduct)
				r.Put("/{id}", h.updateProduct)
				r.Delete("/{id}", h.deleteProduct)
				r.Post("/sync", h.syncProducts)
			})
		})

		r.With(admin).Get("/exports/products", h.exportProducts)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Get("/totals", h.cartTotals)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{productId}", h.updateCartItem)
			r.Delete("/items/{productId}", h.removeCartItem)
		})

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", h.listReceipts)
			r.Post("/", h.saveReceipt)
			r.Get("/preview", h.previewReceipt)
			r.Get("/{id}", h.getReceipt)
			r.Get("/{id}/export", h.exportReceipt)
			r.Post("/{id}/print", h.printReceipt)
		})

		r.Route("/printer", func(r chi.Router) {
			r.Get("/status", h.printerStatus)
			r.Post("/connect", h.connectPrinter)
			r.Post("/disconnect", h.disconnectPrinter)
			r.Post("/test", h.testPrint)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.login)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/shop", h.getShop)
				r.Put("/shop", h.updateShop)
				r.Post("/clear", h.clearData)
				r.Get("/pending", h.listPending)
				r.Post("/pending/flush", h.flushPending)
			})
		})
	})

	return r
}
