// Package http exposes the commerce core as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/checkout"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/fjod/go_market/internal/redemption"
	"github.com/fjod/go_market/internal/referral"
	"github.com/fjod/go_market/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Sessions interface {
	Resume(ctx context.Context, sessionID, deviceID string, identity domain.Identity) (*session.Session, error)
	End(sessionID string)
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Redemptions interface {
	Submit(ctx context.Context, user domain.Identity, p redemption.SubmitParams) (*domain.RedemptionRequest, error)
	SetStatus(ctx context.Context, operator domain.Identity, id uuid.UUID, to domain.RedemptionStatus) (*domain.RedemptionRequest, error)
	List(ctx context.Context, user domain.Identity) ([]*domain.RedemptionRequest, error)
	ListAll(ctx context.Context, operator domain.Identity) ([]*domain.RedemptionRequest, error)
	Balance(ctx context.Context, user domain.Identity) (domain.UserBalance, error)
}

type Orders interface {
	List(ctx context.Context, who domain.Identity) ([]*domain.Order, error)
	Get(ctx context.Context, who domain.Identity, id uuid.UUID) (*domain.Order, error)
	SetStatus(ctx context.Context, operator domain.Identity, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
	AttachDelivery(ctx context.Context, seller domain.Identity, id uuid.UUID, productID, ref string) (*domain.Order, error)
}

// Notifier receives user-facing toasts for a session.
type Notifier interface {
	Success(ctx context.Context, sessionID, msg string)
	Warning(ctx context.Context, sessionID, msg string)
	Error(ctx context.Context, sessionID, msg string)
}

type Deps struct {
	Auth        auth.Provider
	Sessions    Sessions
	Catalog     Catalog
	Referrals   *referral.Capturer
	Checkouts   *checkout.Registry
	Redemptions Redemptions
	Orders      Orders
	Notifier    Notifier
	Timeout     time.Duration
	Log         *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log.With("component", "http")
	sh := &SessionHandler{sessions: d.Sessions, catalog: d.Catalog, referrals: d.Referrals, checkouts: d.Checkouts, timeout: d.Timeout, log: log}
	ch := &CheckoutHandler{sessions: d.Sessions, checkouts: d.Checkouts, notifier: d.Notifier, timeout: d.Timeout, log: log}
	rh := &RedemptionHandler{redemptions: d.Redemptions, timeout: d.Timeout, log: log}
	oh := &OrdersHandler{orders: d.Orders, timeout: d.Timeout, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(d.Timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(log, w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth, log))

		r.Post("/session/start", sh.Start)
		r.Post("/session/end", sh.End)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", sh.GetCart)
			r.Post("/items", sh.AddItem)
			r.Delete("/items/{product_id}", sh.RemoveItem)
		})
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", sh.GetFavorites)
			r.Post("/toggle", sh.ToggleFavorite)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", ch.Get)
			r.Post("/method", ch.SelectMethod)
			r.Post("/details", ch.EnterDetails)
			r.Post("/back", ch.Back)
			r.Post("/submit", ch.Submit)
			r.Post("/cancel", ch.Cancel)
			r.Post("/close", ch.Close)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAccount(log))

			r.Get("/balance", rh.Balance)
			r.Post("/redemptions", rh.Submit)
			r.Get("/redemptions", rh.List)
			r.Get("/admin/redemptions", rh.ListAll)
			r.Put("/admin/redemptions/{id}/status", rh.SetStatus)

			r.Get("/orders", oh.List)
			r.Get("/orders/{id}", oh.Get)
			r.Put("/orders/{id}/status", oh.SetStatus)
			r.Put("/orders/{id}/items/{product_id}/delivery", oh.AttachDelivery)
		})
	})

	return r
}
