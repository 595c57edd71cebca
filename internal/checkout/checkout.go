// Package checkout owns the order and payment workflow: placing orders,
// starting and confirming M-Pesa payments, and keeping product stock in
// step with order state.
package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/events"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/mpesa"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrNoItems          = errors.New("order has no available products")
	ErrForbidden        = errors.New("order belongs to another customer")
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrNotMpesa         = errors.New("order is not an M-Pesa order")
	ErrNotCancellable   = errors.New("order can no longer be cancelled")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrInvalidPayStatus = errors.New("invalid payment status")
)

const orderNumberAttempts = 3

// Gateway is the part of the M-Pesa client the workflow needs.
type Gateway interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, reference, description string) (*mpesa.STKPushResult, error)
	Verify(ctx context.Context, checkoutRequestID string) (*mpesa.VerifyResult, error)
}

// Actor is whoever is acting on an order.
type Actor struct {
	UserID int64
	Role   models.Role
}

func (a Actor) owns(o *models.Order) bool {
	return a.Role.IsAdmin() || o.UserID == a.UserID
}

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	Name    events.Name
	OrderID int64
}

type ServiceConfig struct {
	Store       *store.Store
	Gateway     Gateway
	Bus         events.Publisher
	OrderPrefix string
	DeliveryFee decimal.Decimal
}

type Service struct {
	*ServiceConfig
	log *slog.Logger
}

func NewService(cfg *ServiceConfig) *Service {
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = "JH"
	}
	return &Service{
		ServiceConfig: cfg,
		log:           slog.With("component", "checkout"),
	}
}

type ItemInput struct {
	ProductID int64           `json:"productId" validate:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
}

type DeliveryInput struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city"`
}

type CreateOrderInput struct {
	UserID        int64                `json:"-"`
	Items         []ItemInput          `json:"items" validate:"required,min=1,dive"`
	Delivery      DeliveryInput        `json:"delivery"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=mpesa cod"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	DeliveryFee   decimal.Decimal      `json:"deliveryFee"`
	Total         decimal.Decimal      `json:"total"`
	Notes         string               `json:"notes" validate:"max=1000"`
}

// CreateOrder writes the order and its items in one transaction. Prices,
// names and images come from the catalogue; items whose product no longer
// exists are dropped.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("unsupported payment method %q", in.PaymentMethod)
	}

	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order, err = s.createOrder(ctx, in)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		s.log.Warn("Order number collision, retrying", "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Order created", "orderId", order.ID, "orderNumber", order.OrderNumber,
		"items", len(order.Items), "total", order.Total.String(), "method", order.PaymentMethod)
	s.publish(events.OrderCreated, order.ID)
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}

	order := &models.Order{
		OrderNumber:     GenerateOrderNumber(s.OrderPrefix, time.Now()),
		UserID:          in.UserID,
		Status:          models.OrderPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		DeliveryName:    strings.TrimSpace(in.Delivery.Name),
		DeliveryPhone:   strings.TrimSpace(in.Delivery.Phone),
		DeliveryEmail:   strings.TrimSpace(in.Delivery.Email),
		DeliveryAddress: strings.TrimSpace(in.Delivery.Address),
		DeliveryCity:    strings.TrimSpace(in.Delivery.City),
		Notes:           strings.TrimSpace(in.Notes),
	}

	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		products, err := tx.ProductsByID(ctx, ids)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, it := range in.Items {
			p, ok := products[it.ProductID]
			if !ok {
				s.log.Warn("Skipping unknown product in order", "productId", it.ProductID)
				continue
			}
			item := models.OrderItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				ProductImage: p.ImageURL,
				Price:        p.Price,
				Quantity:     it.Quantity,
			}
			subtotal = subtotal.Add(item.LineTotal())
			order.Items = append(order.Items, item)
		}
		if len(order.Items) == 0 {
			return ErrNoItems
		}

		order.Subtotal = subtotal
		order.DeliveryFee = s.deliveryFee(in.DeliveryFee)
		order.Total = subtotal.Add(order.DeliveryFee)
		if !in.Subtotal.IsZero() && !in.Subtotal.Equal(subtotal) {
			s.log.Warn("Client subtotal differs from catalogue prices",
				"client", in.Subtotal.String(), "server", subtotal.String())
		}

		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// deliveryFee prefers the configured fee and falls back to the client's
// figure when none is configured.
func (s *Service) deliveryFee(client decimal.Decimal) decimal.Decimal {
	if s.DeliveryFee.IsPositive() {
		return s.DeliveryFee
	}
	if client.IsNegative() {
		return decimal.Zero
	}
	return client
}

// GetOrder returns the order with its items if actor may see it.
func (s *Service) GetOrder(ctx context.Context, actor Actor, id int64) (*models.Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// InitiatePayment sends an STK push for the order total to phone and
// records the checkout request id on the order.
func (s *Service) InitiatePayment(ctx context.Context, actor Actor, orderID int64, phone string, amount decimal.Decimal) (*mpesa.STKPushResult, error) {
	o, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != models.PaymentMpesa {
		return nil, ErrNotMpesa
	}
	if o.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if !amount.IsZero() && !amount.Equal(o.Total) {
		s.log.Warn("Requested amount differs from order total, charging the total",
			"orderId", o.ID, "requested", amount.String(), "total", o.Total.String())
	}

	res, err := s.Gateway.STKPush(ctx, phone, o.Total, o.OrderNumber, "Payment for order "+o.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SetCheckoutID(ctx, o.ID, res.CheckoutRequestID); err != nil {
		return nil, fmt.Errorf("failed to record checkout id: %w", err)
	}
	if o.PaymentStatus == models.PaymentFailed {
		if err := s.Store.UpdatePaymentStatus(ctx, o.ID, models.PaymentPending); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// VerifyPayment asks the gateway for the checkout's status and applies a
// terminal outcome to the matching order. The gateway's answer is returned
// whether or not an order matched.
func (s *Service) VerifyPayment(ctx context.Context, checkoutRequestID string) (*mpesa.VerifyResult, error) {
	res, err := s.Gateway.Verify(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Paid():
		if _, err := s.ConfirmPayment(ctx, checkoutRequestID, res.ReceiptNumber); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	case res.Failed():
		if err := s.FailPayment(ctx, checkoutRequestID, res.ResultDesc); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return res, nil
}

// HandleCallback applies a gateway webhook. A success without a receipt is
// left pending for the reconciler to settle.
func (s *Service) HandleCallback(ctx context.Context, cb *mpesa.Callback) error {
	switch {
	case cb.Paid():
		_, err := s.ConfirmPayment(ctx, cb.CheckoutRequestID, cb.ReceiptNumber)
		return err
	case cb.ResultCode == 0:
		s.log.Warn("Successful callback carries no receipt, leaving payment pending",
			"checkoutRequestId", cb.CheckoutRequestID)
		return nil
	default:
		return s.FailPayment(ctx, cb.CheckoutRequestID, cb.ResultDesc)
	}
}

// ConfirmPayment marks the order paid, moves it to processing and takes its
// stock, all in one transaction. Repeated confirmations change nothing and
// report false.
func (s *Service) ConfirmPayment(ctx context.Context, checkoutRequestID, receipt string) (bool, error) {
	var (
		orderID int64
		changed bool
	)
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		o, err := tx.GetOrderByCheckoutID(ctx, checkoutRequestID)
		if err != nil {
			return err
		}
		orderID = o.ID
		if o.PaymentStatus == models.PaymentPaid {
			return nil
		}
		if o.Status == models.OrderCancelled {
			s.log.Warn("Payment received for a cancelled order", "orderId", o.ID, "receipt", receipt)
		}
		if err := tx.MarkPaid(ctx, o.ID, receipt); err != nil {
			return err
		}
		changed = true
		return s.applyStock(ctx, tx, o)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("No order for checkout request", "checkoutRequestId", checkoutRequestID)
		}
		return false, err
	}

	if changed {
		s.log.Info("Payment confirmed", "orderId", orderID, "receipt", receipt)
		s.publish(events.OrderPaid, orderID)
	}
	return changed, nil
}

// FailPayment records a terminal failure unless the order has already moved
// past pending.
func (s *Service) FailPayment(ctx context.Context, checkoutRequestID, reason string) error {
	failed, err := s.Store.FailPendingPayment(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	if failed {
		s.log.Info("Payment failed", "checkoutRequestId", checkoutRequestID, "reason", reason)
	}
	return nil
}

// UpdateStatus sets any valid status. Moving a cash-on-delivery order into
// a fulfilling status takes its stock; cancelling gives it back.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *models.Order
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, status); err != nil {
			return err
		}

		switch {
		case status == models.OrderCancelled:
			err = s.restoreStock(ctx, tx, o)
		case status.Fulfilling() && o.PaymentMethod == models.PaymentCOD:
			err = s.applyStock(ctx, tx, o)
		}
		if err != nil {
			return err
		}

		updated, err = tx.GetOrder(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Order status updated", "orderId", orderID, "status", status)
	s.publish(events.OrderStatusChanged, orderID)
	return updated, nil
}

// UpdatePaymentStatus lets the back-office record payments made outside
// the gateway. Marking an order paid takes its stock.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidPayStatus
	}

	var updated *models.Order
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.UpdatePaymentStatus(ctx, o.ID, status); err != nil {
			return err
		}
		if status == models.PaymentPaid {
			if err := s.applyStock(ctx, tx, o); err != nil {
				return err
			}
		}
		updated, err = tx.GetOrder(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if status == models.PaymentPaid {
		s.publish(events.OrderPaid, orderID)
	}
	return updated, nil
}

// CancelOrder lets a customer cancel their own unpaid order while it is
// still pending or processing.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, orderID int64) (*models.Order, error) {
	o, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		if o.PaymentStatus == models.PaymentPaid ||
			(o.Status != models.OrderPending && o.Status != models.OrderProcessing) {
			return nil, ErrNotCancellable
		}
	}
	return s.UpdateStatus(ctx, orderID, models.OrderCancelled)
}

// applyStock takes each item's units off the shelf once per order and
// remembers how many each line actually got.
func (s *Service) applyStock(ctx context.Context, tx *store.Store, o *models.Order) error {
	won, err := tx.ClaimStockApplication(ctx, o.ID)
	if err != nil || !won {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		taken, err := tx.TakeStock(ctx, it.ProductID, it.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("Product of order item no longer exists", "orderId", o.ID, "productId", it.ProductID)
			continue
		}
		if err != nil {
			return err
		}
		if taken < it.Quantity {
			s.log.Warn("Not enough stock for order item", "orderId", o.ID, "productId", it.ProductID,
				"quantity", it.Quantity, "taken", taken)
		}
		if err := tx.SetStockTaken(ctx, it.ID, taken); err != nil {
			return err
		}
		it.StockTaken = taken
	}
	return nil
}

// restoreStock puts back exactly what applyStock took.
func (s *Service) restoreStock(ctx context.Context, tx *store.Store, o *models.Order) error {
	released, err := tx.ReleaseStockApplication(ctx, o.ID)
	if err != nil || !released {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.StockTaken == 0 {
			continue
		}
		err := tx.AdjustStock(ctx, it.ProductID, it.StockTaken)
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("Product of order item no longer exists", "orderId", o.ID, "productId", it.ProductID)
		} else if err != nil {
			return err
		}
		if err := tx.SetStockTaken(ctx, it.ID, 0); err != nil {
			return err
		}
		it.StockTaken = 0
	}
	return nil
}

func (s *Service) publish(name events.Name, orderID int64) {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.Publish(&events.Event{Name: name, Payload: OrderEvent{Name: name, OrderID: orderID}}); err != nil {
		s.log.Warn("Failed to publish event", "event", name, "orderId", orderID, "error", err)
	}
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateOrderNumber returns prefix + base36(unix millis) + four random
// base36 characters, all upper case.
func GenerateOrderNumber(prefix string, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(prefix))
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))

	limit := big.NewInt(int64(len(base36)))
	for _i := 0; _i < 4; _i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(base36)))
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String()
}
