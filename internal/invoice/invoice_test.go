package invoice

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(items ...models.OrderItem) *models.Order {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	fee := decimal.NewFromInt(300)
	return &models.Order{
		OrderNumber:     "JHLOYW3V28ABCD",
		Status:          models.OrderProcessing,
		PaymentMethod:   models.PaymentMpesa,
		PaymentStatus:   models.PaymentPaid,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		Total:           subtotal.Add(fee),
		DeliveryName:    "Njeri Kamau",
		DeliveryPhone:   "254712345678",
		DeliveryAddress: "Kimathi Street",
		DeliveryCity:    "Nairobi",
		CreatedAt:       time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Items:           items,
	}
}

func TestRenderTablePDF(t *testing.T) {
	o := sampleOrder(
		models.OrderItem{ProductName: "Gold Hoops", Price: decimal.NewFromInt(2500), Quantity: 2},
		models.OrderItem{ProductName: "Crème Pearl Drop", Price: decimal.RequireFromString("1999.50"), Quantity: 1},
	)
	doc, err := NewRenderer(DefaultShop).Render(o, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "invoice-JHLOYW3V28ABCD.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
}

func TestRenderWithNoItems(t *testing.T) {
	doc, err := NewRenderer(DefaultShop).Render(sampleOrder(), "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)

	text, err := NewRenderer(DefaultShop).Render(sampleOrder(), FormatText)
	require.NoError(t, err)
	assert.Contains(t, string(text.Data), "Total")
	assert.Contains(t, string(text.Data), "KES 300.00")
}

func TestRenderTextFormat(t *testing.T) {
	o := sampleOrder(models.OrderItem{ProductName: "Silver Cuff", Price: decimal.NewFromInt(1200), Quantity: 3})
	doc, err := NewRenderer(DefaultShop).Render(o, "TEXT")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", doc.ContentType)
	assert.Equal(t, "invoice-JHLOYW3V28ABCD.txt", doc.Filename)

	body := string(doc.Data)
	assert.Contains(t, body, "JEWELL HAVEN - INVOICE")
	assert.Contains(t, body, "Silver Cuff")
	assert.Contains(t, body, "3600.00")
	assert.Contains(t, body, "KES 3900.00")
	assert.Contains(t, body, "Njeri Kamau")
}

func TestFallsBackWhenATierPanics(t *testing.T) {
	r := NewRenderer(DefaultShop)
	r.tiers[0].render = func(Shop, *models.Order) ([]byte, error) { panic("font table exploded") }

	doc, err := r.Render(sampleOrder(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)

	r.tiers[1].render = func(Shop, *models.Order) ([]byte, error) { return nil, errors.New("no pdf today") }
	doc, err = r.Render(sampleOrder(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", doc.ContentType)

	r.tiers[2].render = func(Shop, *models.Order) ([]byte, error) { return nil, errors.New("disk full") }
	_, err = r.Render(sampleOrder(), FormatPDF)
	assert.ErrorContains(t, err, "disk full")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 5))
}
