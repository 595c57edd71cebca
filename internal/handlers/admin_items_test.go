package handlers

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 212, G: 175, B: 55, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAdminProductLifecycle(t *testing.T) {
	f := newFixture(t, 100)
	adminToken, _ := f.register("owner@jewell.test")
	userToken, _ := f.register("buyer@jewell.test")

	product := map[string]any{
		"name":          "Emerald Studs",
		"description":   "Sterling silver studs",
		"category":      "Earrings",
		"price":         "3200",
		"originalPrice": "3800",
		"stockQuantity": 4,
		"featured":      true,
	}

	rec := f.do(http.MethodPost, "/api/admin/products", product, withToken(userToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/products", product, withToken(adminToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := dataAs[models.Product](t, rec)
	assert.True(t, created.InStock)
	assert.True(t, created.OriginalPrice.Valid)

	product["price"] = "0"
	rec = f.do(http.MethodPost, "/api/admin/products", product, withToken(adminToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	delete(product, "category")
	product["price"] = "100"
	rec = f.do(http.MethodPost, "/api/admin/products", product, withToken(adminToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "category is required", readEnvelope(t, rec).Message)

	path := fmt.Sprintf("/api/admin/products/%d", created.ID)
	rec = f.do(http.MethodPut, path, map[string]any{
		"name": "Emerald Studs", "category": "Earrings", "price": "2900", "stockQuantity": 0,
	}, withToken(adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := dataAs[models.Product](t, rec)
	assert.Equal(t, "2900", updated.Price.String())
	assert.False(t, updated.InStock)

	rec = f.do(http.MethodPut, "/api/admin/products/9999", map[string]any{
		"name": "Ghost", "category": "Rings", "price": "10",
	}, withToken(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, path, nil, withToken(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadProductImage(t *testing.T) {
	f := newFixture(t, 100)
	adminToken, _ := f.register("owner@jewell.test")
	p := f.seedProduct("Gold Locket", 5200, 1)
	path := fmt.Sprintf("/api/admin/products/%d/image", p.ID)

	rec := f.upload(path, adminToken, "locket.png", pngBytes(t, 1600, 900))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := dataAs[models.Product](t, rec)
	require.True(t, strings.HasPrefix(updated.ImageURL, "/static/uploads/"), updated.ImageURL)
	assert.Equal(t, []string{updated.ImageURL}, updated.Images)

	name := strings.TrimPrefix(updated.ImageURL, "/static/uploads/")
	file, err := os.Open(filepath.Join(f.cfg.UploadDir, name))
	require.NoError(t, err)
	defer file.Close()
	cfg, err := jpeg.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 450, cfg.Height)

	rec = f.do(http.MethodGet, updated.ImageURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = f.upload(path, adminToken, "notes.txt", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.upload("/api/admin/products/9999/image", adminToken, "locket.png", pngBytes(t, 10, 10))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
