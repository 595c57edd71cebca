package checkout

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler re-checks M-Pesa orders that are still pending so a payment
// completed after the customer stopped polling is not lost.
type Reconciler struct {
	service  *Service
	interval time.Duration
	window   time.Duration
	batch    int
	log      *slog.Logger
}

func NewReconciler(service *Service, interval, window time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Reconciler{
		service:  service,
		interval: interval,
		window:   window,
		batch:    50,
		log:      slog.With("component", "reconciler"),
	}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info("Payment reconciler started", "interval", r.interval, "window", r.window)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Payment reconciler stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce verifies one batch of pending checkouts and returns how many were
// confirmed paid.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	orders, err := r.service.Store.PendingCheckouts(ctx, time.Now().Add(-r.window), r.batch)
	if err != nil {
		r.log.Error("Failed to load pending checkouts", "error", err)
		return 0
	}

	confirmed := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		res, err := r.service.VerifyPayment(ctx, o.MpesaCheckoutID)
		if err != nil {
			r.log.Warn("Verification failed", "orderId", o.ID, "error", err)
			continue
		}
		if res.Paid() {
			confirmed++
		}
	}
	if len(orders) > 0 {
		r.log.Debug("Reconciled pending checkouts", "checked", len(orders), "confirmed", confirmed)
	}
	return confirmed
}
