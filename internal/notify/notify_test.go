package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingEmail) Send(_ context.Context, to, subject, html string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, html)
	return Result{Channel: ChannelEmail, To: to, Sent: true}
}

type failingSMS struct{}

func (failingSMS) Send(_ context.Context, to, _ string) Result {
	return Result{Channel: ChannelSMS, To: to, Error: "gateway down"}
}

func TestSendOTPReportsEachChannel(t *testing.T) {
	templates, err := DefaultTemplates()
	require.NoError(t, err)
	email := &recordingEmail{}
	n := NewNotifier(failingSMS{}, email, templates)

	results := n.SendOTP(context.Background(), OTPMessage{
		Name: "Wanjiru", Phone: "254712345678", Email: "w@example.com", Code: "123456",
		Purpose: models.OTPVerify, ExpiresInMinutes: 10,
	})
	require.Len(t, results, 2)
	assert.False(t, results[0].Sent)
	assert.Equal(t, "gateway down", results[0].Error)
	assert.True(t, results[1].Sent)

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0], "123456")
	assert.Contains(t, email.sent[0], "Wanjiru")
}

func TestMissingRecipientIsAResultNotAPanic(t *testing.T) {
	templates, err := DefaultTemplates()
	require.NoError(t, err)
	n := NewNotifier(failingSMS{}, &recordingEmail{}, templates)

	res := n.ContactReply(context.Background(), &models.Contact{Name: "A"}, &models.ContactReply{Message: "hi"})
	assert.False(t, res.Sent)
	assert.NotEmpty(t, res.Error)
}

func TestOrderPlacedRendersItems(t *testing.T) {
	templates, err := DefaultTemplates()
	require.NoError(t, err)
	email := &recordingEmail{}
	n := NewNotifier(failingSMS{}, email, templates)

	o := &models.Order{
		OrderNumber: "JH123", DeliveryName: "Amina", DeliveryEmail: "amina@example.com",
		PaymentMethod: models.PaymentCOD, Subtotal: decimal.NewFromInt(3000), Total: decimal.NewFromInt(3000),
		Items: []models.OrderItem{{ProductName: "Pearl Necklace", Price: decimal.NewFromInt(1500), Quantity: 2}},
	}
	n.OrderPlaced(context.Background(), o)

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0], "Pearl Necklace")
	assert.Contains(t, email.sent[0], "KES 3000.00")
	assert.Contains(t, email.sent[0], "Cash on delivery")
}

func TestSMSClientPostsJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sms-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewSMSClient(config.SMSConfig{BaseURL: srv.URL, APIKey: "sms-key", SenderID: "JEWELL"}, time.Second)
	res := c.Send(context.Background(), "254712345678", "hello")
	assert.True(t, res.Sent)
	assert.Equal(t, "JEWELL", got["senderId"])
	assert.Equal(t, "hello", got["message"])
}

func TestEmailClientReportsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewEmailClient(config.EmailConfig{BaseURL: srv.URL}, time.Second)
	res := c.Send(context.Background(), "a@example.com", "s", "<p>x</p>")
	assert.False(t, res.Sent)
	assert.Contains(t, res.Error, "429")
	assert.Contains(t, res.Error, "quota exceeded")
}

func TestUnconfiguredGateway(t *testing.T) {
	res := NewEmailClient(config.EmailConfig{}, time.Second).Send(context.Background(), "a@example.com", "s", "x")
	assert.False(t, res.Sent)
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)
}
