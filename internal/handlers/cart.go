package handlers

import (
	"encoding/gob"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/shopspring/decimal"
)

const (
	guestCartSession = "guest-cart"
	guestCartKey     = "items"
	maxCartQuantity  = 99
)

// GuestCartLine is what the guest cart cookie holds per product.
type GuestCartLine struct {
	ProductID int64
	Quantity  int
}

// Register types for gob encoding (used by sessions)
func init() {
	gob.Register([]GuestCartLine{})
}

type CartHandler struct {
	*Config
}

type cartItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,max=99"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,max=99"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) error {
	items, err := h.Store.CartItems(r.Context(), currentUser(r).ID)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"items":    items,
		"subtotal": cartSubtotal(items).StringFixed(2),
	})
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) error {
	var payload cartItemRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := h.requireProduct(r, payload.ProductID); err != nil {
		return err
	}
	if err := h.Store.AddToCart(r.Context(), currentUser(r).ID, payload.ProductID, payload.Quantity); err != nil {
		return err
	}
	return h.get(w, r)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "productId")
	if err != nil {
		return err
	}
	var payload cartQuantityRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := h.Store.SetCartQuantity(r.Context(), currentUser(r).ID, productID, payload.Quantity); err != nil {
		return err
	}
	return h.get(w, r)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "productId")
	if err != nil {
		return err
	}
	if err := h.Store.RemoveFromCart(r.Context(), currentUser(r).ID, productID); err != nil {
		return err
	}
	return h.get(w, r)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) error {
	if err := h.Store.ClearCart(r.Context(), currentUser(r).ID); err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "cart cleared", nil)
}

func (h *CartHandler) requireProduct(r *http.Request, id int64) error {
	if _, err := h.Store.GetProduct(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return servererrors.NotFound(servererrors.ErrProductNotFound)
		}
		return err
	}
	return nil
}

func cartSubtotal(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// guestCartCSRF protects the cookie-backed guest cart. The token is handed
// out in the X-CSRF-Token response header of every guest cart request.
func guestCartCSRF(cfg *config.Config) func(http.Handler) http.Handler {
	protect := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/api/guest-cart"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins([]string{hostOf(cfg.AllowedOrigin)}),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("CSRF check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			handlerutils.WriteErrorJSON(w, http.StatusForbidden, "invalid or missing CSRF token", nil)
		})),
	)
	return func(next http.Handler) http.Handler {
		exposeToken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-CSRF-Token", csrf.Token(r))
			next.ServeHTTP(w, r)
		})
		protected := protect(exposeToken)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.CookieSecure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (h *CartHandler) guestLines(r *http.Request) []GuestCartLine {
	session, err := h.Sessions.Get(r, guestCartSession)
	if err != nil {
		// a cookie signed with an old key decodes to an empty cart
		slog.Debug("Discarding unreadable guest cart", "error", err)
	}
	lines, _ := session.Values[guestCartKey].([]GuestCartLine)
	return lines
}

func (h *CartHandler) saveGuestLines(w http.ResponseWriter, r *http.Request, lines []GuestCartLine) error {
	session, _ := h.Sessions.Get(r, guestCartSession)
	if len(lines) == 0 {
		delete(session.Values, guestCartKey)
	} else {
		session.Values[guestCartKey] = lines
	}
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
		return err
	}
	return nil
}

// writeGuestCart joins the stored lines with current product data, dropping
// lines whose product is gone.
func (h *CartHandler) writeGuestCart(w http.ResponseWriter, r *http.Request, lines []GuestCartLine) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := h.Store.ProductsByID(r.Context(), ids)
	if err != nil {
		return err
	}

	items := []models.CartItem{}
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		items = append(items, models.CartItem{
			ProductID: p.ID,
			Quantity:  l.Quantity,
			Name:      p.Name,
			Image:     p.ImageURL,
			Price:     p.Price,
			InStock:   p.InStock,
		})
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"items":    items,
		"subtotal": cartSubtotal(items).StringFixed(2),
	})
}

func (h *CartHandler) guestGet(w http.ResponseWriter, r *http.Request) error {
	return h.writeGuestCart(w, r, h.guestLines(r))
}

func (h *CartHandler) guestAdd(w http.ResponseWriter, r *http.Request) error {
	var payload cartItemRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := h.requireProduct(r, payload.ProductID); err != nil {
		return err
	}

	lines := addLine(h.guestLines(r), payload.ProductID, payload.Quantity)
	if err := h.saveGuestLines(w, r, lines); err != nil {
		return err
	}
	return h.writeGuestCart(w, r, lines)
}

func (h *CartHandler) guestRemove(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "productId")
	if err != nil {
		return err
	}
	lines := h.guestLines(r)
	kept := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	if err := h.saveGuestLines(w, r, kept); err != nil {
		return err
	}
	return h.writeGuestCart(w, r, kept)
}

// guestMerge moves the guest cart into the signed-in user's cart and empties
// the cookie.
func (h *CartHandler) guestMerge(w http.ResponseWriter, r *http.Request) error {
	lines := h.guestLines(r)
	userID := currentUser(r).ID

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := h.Store.ProductsByID(r.Context(), ids)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, ok := products[l.ProductID]; !ok {
			continue
		}
		if err := h.Store.AddToCart(r.Context(), userID, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}

	if err := h.saveGuestLines(w, r, nil); err != nil {
		return err
	}
	return h.get(w, r)
}

func addLine(lines []GuestCartLine, productID int64, quantity int) []GuestCartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = min(lines[i].Quantity+quantity, maxCartQuantity)
			return lines
		}
	}
	return append(lines, GuestCartLine{ProductID: productID, Quantity: quantity})
}
