package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/checkout"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/fjod/go_market/internal/referral"
	"github.com/fjod/go_market/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type SessionHandler struct {
	sessions  Sessions
	catalog   Catalog
	referrals *referral.Capturer
	checkouts *checkout.Registry
	timeout   time.Duration
	log       *logger.Logger
}

type StartSessionRequestDTO struct {
	EntryURL string `json:"entry_url"`
}

type ProductRequestDTO struct {
	ProductID string `json:"product_id"`
}

type SessionResponse struct {
	SessionID  string  `json:"session_id"`
	DeviceID   string  `json:"device_id"`
	Mode       string  `json:"mode"`
	ReferrerID *string `json:"referrer_id,omitempty"`
	Cart       CartDTO `json:"cart"`
}

type CartDTO struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
}

type FavoritesDTO struct {
	Favorites []domain.FavoriteEntry `json:"favorites"`
}

type ToggleFavoriteResponse struct {
	Favorited bool                   `json:"favorited"`
	Favorites []domain.FavoriteEntry `json:"favorites"`
}

// resumeSession binds the request to its browsing session and echoes the
// session id so a client without one learns the id it was given.
func resumeSession(ctx context.Context, sessions Sessions, w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	sess, err := sessions.Resume(ctx,
		strings.TrimSpace(r.Header.Get(HeaderSessionID)),
		strings.TrimSpace(r.Header.Get(HeaderDeviceID)),
		auth.FromContext(r.Context()))
	if err != nil {
		return nil, err
	}
	w.Header().Set(HeaderSessionID, sess.ID)
	w.Header().Set(HeaderDeviceID, sess.DeviceID)
	return sess, nil
}

func cartView(sess *session.Session) CartDTO {
	store := sess.Store()
	lines := store.Cart()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return CartDTO{Lines: lines, Total: store.Total()}
}

func favoritesView(sess *session.Session) []domain.FavoriteEntry {
	favs := sess.Store().Favorites()
	if favs == nil {
		favs = []domain.FavoriteEntry{}
	}
	return favs
}

// Start runs on every page load. It resumes the session and captures a
// referral parameter from the entry URL.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req StartSessionRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	referrer, err := h.referrals.Capture(ctx, sess.ID, sess, req.EntryURL)
	if err != nil {
		h.log.Warn("referral capture incomplete", "session_id", sess.ID, "error", err)
	}

	respondJSON(h.log, w, http.StatusOK, SessionResponse{
		SessionID:  sess.ID,
		DeviceID:   sess.DeviceID,
		Mode:       sess.Mode().String(),
		ReferrerID: referrer,
		Cart:       cartView(sess),
	})
}

// End closes the browsing session: its live subscription stops and any
// unfinished checkout is discarded.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(HeaderSessionID))
	if sessionID == "" {
		respondError(h.log, w, http.StatusBadRequest, "invalid_session", "X-Session-ID header is required")
		return
	}
	h.checkouts.Drop(sessionID)
	h.sessions.End(sessionID)
	if err := h.referrals.Forget(r.Context(), sessionID); err != nil {
		h.log.Warn("referrer not cleared", "session_id", sessionID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, cartView(sess))
}

// AddItem adds one unit of a product. Adding a product already in the cart
// leaves the cart unchanged and answers 200 instead of 201.
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, ok := h.productFromBody(ctx, w, r)
	if !ok {
		return
	}
	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	status := http.StatusOK
	if sess.Store().AddToCart(ctx, product.CartLine(time.Now().UTC())) {
		status = http.StatusCreated
	}
	respondJSON(h.log, w, status, cartView(sess))
}

func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(h.log, w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	sess.Store().RemoveFromCart(ctx, productID)
	respondJSON(h.log, w, http.StatusOK, cartView(sess))
}

func (h *SessionHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, FavoritesDTO{Favorites: favoritesView(sess)})
}

func (h *SessionHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, ok := h.productFromBody(ctx, w, r)
	if !ok {
		return
	}
	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	favorited := sess.Store().ToggleFavorite(ctx, product.FavoriteEntry(time.Now().UTC()))
	respondJSON(h.log, w, http.StatusOK, ToggleFavoriteResponse{
		Favorited: favorited,
		Favorites: favoritesView(sess),
	})
}

func (h *SessionHandler) productFromBody(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(h.log, w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return nil, false
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(h.log, w, err)
		return nil, false
	}
	return product, true
}
