package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/events"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/notify"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

const subscriberName = "checkout.notifications"

// OrderNotifier is the part of notify.Notifier the subscriber uses.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, o *models.Order) []notify.Result
	PaymentReceived(ctx context.Context, o *models.Order) []notify.Result
	OrderStatusChanged(ctx context.Context, o *models.Order) []notify.Result
}

// NotificationHandler turns order events into customer messages.
type NotificationHandler struct {
	store     *store.Store
	notifier  OrderNotifier
	addressCh chan any
	wg        *sync.WaitGroup
	log       *slog.Logger
}

// NewNotificationHandler registers the order events, subscribes to them and
// starts listening. It stops when the bus closes its channel.
func NewNotificationHandler(bus events.Bus, st *store.Store, notifier OrderNotifier, wg *sync.WaitGroup) (*NotificationHandler, error) {
	h := &NotificationHandler{
		store:     st,
		notifier:  notifier,
		addressCh: make(chan any, 100),
		wg:        wg,
		log:       slog.With("component", subscriberName),
	}

	bus.RegisterEvents(events.OrderCreated, events.OrderPaid, events.OrderStatusChanged)

	for _, name := range []events.Name{events.OrderCreated, events.OrderPaid, events.OrderStatusChanged} {
		if err := bus.Subscribe(name, &events.Subscriber{Name: subscriberName, AddressCh: h.addressCh}); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}
	}

	h.wg.Add(1)
	go h.listen()
	return h, nil
}

func (h *NotificationHandler) listen() {
	defer h.wg.Done()
	for msg := range h.addressCh {
		switch ev := msg.(type) {
		case OrderEvent:
			h.handle(ev)
		default:
			h.log.Warn("Received unknown event payload", "type", fmt.Sprintf("%T", ev))
		}
	}
	h.log.Debug("Notification handler stopped")
}

func (h *NotificationHandler) handle(n OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	o, err := h.store.GetOrder(ctx, n.OrderID)
	if err != nil {
		h.log.Error("Failed to load order for notification", "orderId", n.OrderID, "error", err)
		return
	}

	var results []notify.Result
	switch n.Name {
	case events.OrderCreated:
		results = h.notifier.OrderPlaced(ctx, o)
	case events.OrderPaid:
		results = h.notifier.PaymentReceived(ctx, o)
	case events.OrderStatusChanged:
		results = h.notifier.OrderStatusChanged(ctx, o)
	}
	for _, r := range results {
		if !r.Sent {
			h.log.Warn("Order notification not delivered", "orderId", o.ID, "event", n.Name, "channel", r.Channel, "error", r.Error)
		}
	}
}
