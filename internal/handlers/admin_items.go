package handlers

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlerutils"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/servererrors"
	"github.com/nfnt/resize"
	"github.com/shopspring/decimal"
)

const (
	maxUploadSize = 10 << 20 // 10MB
	imageWidth    = 800
	imageQuality  = 80
)

type productRequest struct {
	Name          string              `json:"name" validate:"required,max=200"`
	Description   string              `json:"description" validate:"max=5000"`
	Category      string              `json:"category" validate:"required,max=100"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	StockQuantity int                 `json:"stockQuantity" validate:"gte=0"`
	Featured      bool                `json:"featured"`
	ImageURL      string              `json:"image" validate:"max=500"`
	Images        []string            `json:"images" validate:"max=10,dive,max=500"`
	DeliveryInfo  string              `json:"deliveryInfo" validate:"max=500"`
	WarrantyInfo  string              `json:"warrantyInfo" validate:"max=500"`
}

func (p productRequest) check() error {
	if !p.Price.IsPositive() {
		return servererrors.BadRequest("price must be greater than zero", []string{"price"})
	}
	if p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsNegative() {
		return servererrors.BadRequest("originalPrice cannot be negative", []string{"originalPrice"})
	}
	return nil
}

func (p productRequest) apply(dst *models.Product) {
	dst.Name = strings.TrimSpace(p.Name)
	dst.Description = strings.TrimSpace(p.Description)
	dst.Category = strings.TrimSpace(p.Category)
	dst.Price = p.Price
	dst.OriginalPrice = p.OriginalPrice
	dst.StockQuantity = p.StockQuantity
	dst.Featured = p.Featured
	dst.DeliveryInfo = p.DeliveryInfo
	dst.WarrantyInfo = p.WarrantyInfo
	if p.ImageURL != "" {
		dst.ImageURL = p.ImageURL
	}
	if p.Images != nil {
		dst.Images = p.Images
	}
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) error {
	var payload productRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := payload.check(); err != nil {
		return err
	}

	p := &models.Product{Images: []string{}}
	payload.apply(p)
	if err := h.Store.CreateProduct(r.Context(), p); err != nil {
		return err
	}
	slog.Info("Product created", "productId", p.ID, "by", currentUser(r).ID)
	return handlerutils.WriteSuccessJSON(w, http.StatusCreated, "product created", p)
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var payload productRequest
	if err := decode(r, &payload); err != nil {
		return err
	}
	if err := payload.check(); err != nil {
		return err
	}

	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		return err
	}
	payload.apply(p)
	if err := h.Store.UpdateProduct(r.Context(), p); err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "product updated", p)
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	// order lines keep their own name and price copy
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		return err
	}
	slog.Info("Product deleted", "productId", id, "by", currentUser(r).ID)
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "product deleted", nil)
}

// uploadProductImage accepts a PNG or JPEG in the "image" form field,
// scales it to 800px wide and stores it as the product's main image.
func (h *AdminHandler) uploadProductImage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if _, err := h.Store.GetProduct(r.Context(), id); err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return servererrors.BadRequest("image must be a multipart upload of at most 10MB", nil)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return servererrors.BadRequest("image file is required", []string{"image"})
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil || (format != "png" && format != "jpeg") {
		return servererrors.BadRequest("unsupported image format, use PNG or JPEG", []string{"image"})
	}

	name, err := h.saveImage(img)
	if err != nil {
		return err
	}
	url := "/static/uploads/" + name
	if err := h.Store.UpdateProductImage(r.Context(), id, url); err != nil {
		os.Remove(filepath.Join(h.App.UploadDir, name))
		return err
	}

	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		return err
	}
	return handlerutils.WriteSuccessJSON(w, http.StatusOK, "image uploaded", p)
}

func (h *AdminHandler) saveImage(img image.Image) (string, error) {
	if err := os.MkdirAll(h.App.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	name := fmt.Sprintf("%s.jpg", uuid.New().String())
	out, err := os.Create(filepath.Join(h.App.UploadDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer out.Close()

	resized := resize.Resize(imageWidth, 0, img, resize.Lanczos3)
	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: imageQuality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return name, nil
}
