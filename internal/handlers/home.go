package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/shopspring/decimal"
)

// HomeHandler serves the public catalogue.
type HomeHandler struct {
	*Config
}

func (h *HomeHandler) health(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		dbStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}
	return handlerutils.WriteJSON(w, status, map[string]any{
		"success":  status == http.StatusOK,
		"status":   dbStatus,
		"database": h.Store.Driver,
		"time":     time.Now().UTC(),
	})
}

func (h *HomeHandler) notFound(w http.ResponseWriter, r *http.Request) error {
	return servererrors.NotFound(servererrors.ErrNotFound)
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPagination(page, limit, total int) pagination {
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// pageParams reads page and limit, defaulting to page 1 and defaultLimit and
// capping limit at 100.
func pageParams(q url.Values, defaultLimit int) (page, limit int, err error) {
	page, limit = 1, defaultLimit
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, servererrors.BadRequest("page must be a positive integer", nil)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, servererrors.BadRequest("limit must be a positive integer", nil)
		}
	}
	return page, min(limit, 100), nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, servererrors.BadRequest(servererrors.ErrInvalidID.Error(), nil)
	}
	return id, nil
}

func parseBool(q url.Values, key string) (*bool, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, servererrors.BadRequest(key+" must be true or false", nil)
	}
	return &b, nil
}

func parseMoney(q url.Values, key string) (decimal.Decimal, error) {
	v := q.Get(key)
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Zero, servererrors.BadRequest(key+" must be a non-negative number", nil)
	}
	return d, nil
}

// productFilter builds a store filter from the catalogue query string.
// sort takes the form field:direction, e.g. price:asc.
func productFilter(q url.Values) (store.ProductFilter, error) {
	f := store.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	var err error
	if f.PriceMin, err = parseMoney(q, "minPrice"); err != nil {
		return f, err
	}
	if f.PriceMax, err = parseMoney(q, "maxPrice"); err != nil {
		return f, err
	}
	if f.Featured, err = parseBool(q, "featured"); err != nil {
		return f, err
	}
	if f.InStock, err = parseBool(q, "inStock"); err != nil {
		return f, err
	}
	if f.Page, f.Limit, err = pageParams(q, 20); err != nil {
		return f, err
	}

	if sort := q.Get("sort"); sort != "" {
		field, dir, _ := strings.Cut(sort, ":")
		if !store.ValidSortKey(field) {
			return f, servererrors.BadRequest("cannot sort by "+field, nil)
		}
		dir = strings.ToLower(dir)
		if dir != "" && dir != "asc" && dir != "desc" {
			return f, servererrors.BadRequest("sort direction must be asc or desc", nil)
		}
		f.SortBy, f.SortDir = field, dir
	}
	return f, nil
}

func (h *HomeHandler) listProducts(w http.ResponseWriter, r *http.Request) error {
	f, err := productFilter(r.URL.Query())
	if err != nil {
		return err
	}
	products, total, err := h.Store.ListProducts(r.Context(), f)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", map[string]any{
		"products":   products,
		"pagination": newPagination(f.Page, f.Limit, total),
	})
}

func (h *HomeHandler) categories(w http.ResponseWriter, r *http.Request) error {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", categories)
}

func (h *HomeHandler) getProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "", p)
}
