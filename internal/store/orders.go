package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

const orderColumns = `id, order_number, user_id, status, payment_method, payment_status, subtotal, delivery_fee, total,
	delivery_name, delivery_phone, delivery_email, delivery_address, delivery_city, notes,
	mpesa_checkout_id, mpesa_receipt_number, stock_applied, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var (
		o                 models.Order
		checkout, receipt sql.NullString
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.Subtotal, &o.DeliveryFee, &o.Total, &o.DeliveryName, &o.DeliveryPhone, &o.DeliveryEmail,
		&o.DeliveryAddress, &o.DeliveryCity, &o.Notes, &checkout, &receipt, &o.StockApplied,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.MpesaCheckoutID = checkout.String
	o.MpesaReceiptNumber = receipt.String
	return &o, nil
}

// CreateOrder inserts the order header and its items. Callers wanting the
// pair to be atomic run it inside WithTx.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	id, err := s.insert(ctx, `
		INSERT INTO orders (order_number, user_id, status, payment_method, payment_status, subtotal, delivery_fee, total,
			delivery_name, delivery_phone, delivery_email, delivery_address, delivery_city, notes, stock_applied,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?)`,
		o.OrderNumber, o.UserID, o.Status, o.PaymentMethod, o.PaymentStatus, o.Subtotal, o.DeliveryFee, o.Total,
		o.DeliveryName, o.DeliveryPhone, o.DeliveryEmail, o.DeliveryAddress, o.DeliveryCity, o.Notes,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	o.ID = id

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = id
		itemID, err := s.insert(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, product_image, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.ProductName, item.ProductImage, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", item.ProductID, err)
		}
		item.ID = itemID
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrderWhere(ctx, "id = ?", id)
}

func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.getOrderWhere(ctx, "order_number = ?", strings.ToUpper(strings.TrimSpace(number)))
}

// GetOrderByCheckoutID looks an order up through the unique index on the
// gateway correlation column.
func (s *Store) GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error) {
	return s.getOrderWhere(ctx, "mpesa_checkout_id = ?", checkoutID)
}

func (s *Store) getOrderWhere(ctx context.Context, where string, arg any) (*models.Order, error) {
	o, err := scanOrder(s.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		return nil, translate(err)
	}
	items, err := s.OrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Store) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.query(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, price, quantity, stock_taken
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage, &it.Price, &it.Quantity, &it.StockTaken); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// OrderFilter selects orders for listings. Zero values mean "any".
type OrderFilter struct {
	UserID        int64
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Limit         int
	Offset        int
}

// ListOrders returns order headers (without items) newest first, plus the
// total number of matches.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, int, error) {
	var (
		where  []string
		params []any
	)
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		params = append(params, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		params = append(params, f.Status)
	}
	if f.PaymentStatus != "" {
		where = append(where, "payment_status = ?")
		params = append(params, f.PaymentStatus)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM orders`+clause, params...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT `+orderColumns+` FROM orders`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(params, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// PendingCheckouts returns mpesa orders still awaiting payment that have a
// checkout id and were created after since.
func (s *Store) PendingCheckouts(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	rows, err := s.query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_method = ? AND payment_status = ? AND mpesa_checkout_id IS NOT NULL AND created_at >= ?
		ORDER BY created_at LIMIT ?`,
		models.PaymentMpesa, models.PaymentPending, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) SetCheckoutID(ctx context.Context, orderID int64, checkoutID string) error {
	res, err := s.exec(ctx, `UPDATE orders SET mpesa_checkout_id = ?, updated_at = ? WHERE id = ?`,
		checkoutID, time.Now().UTC(), orderID)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := s.exec(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	res, err := s.exec(ctx, `UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// FailPendingPayment marks the checkout's order failed only while its payment
// is still pending, so it can never overwrite a confirmed payment. It reports
// whether the order changed.
func (s *Store) FailPendingPayment(ctx context.Context, checkoutID string) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE orders SET payment_status = ?, updated_at = ?
		WHERE mpesa_checkout_id = ? AND payment_status = ?`,
		models.PaymentFailed, time.Now().UTC(), checkoutID, models.PaymentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM orders WHERE mpesa_checkout_id = ?`, checkoutID).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// MarkPaid records a confirmed payment and moves the order to processing.
func (s *Store) MarkPaid(ctx context.Context, id int64, receipt string) error {
	res, err := s.exec(ctx, `
		UPDATE orders SET payment_status = ?, status = ?, mpesa_receipt_number = ?, updated_at = ?
		WHERE id = ?`,
		models.PaymentPaid, models.OrderProcessing, receipt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// ClaimStockApplication flips stock_applied from false to true and reports
// whether this call did the flip. Only the caller that wins may decrement.
func (s *Store) ClaimStockApplication(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.exec(ctx, `UPDATE orders SET stock_applied = TRUE WHERE id = ? AND stock_applied = FALSE`, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetStockTaken records how many units an order line took from stock.
func (s *Store) SetStockTaken(ctx context.Context, itemID int64, n int) error {
	res, err := s.exec(ctx, `UPDATE order_items SET stock_taken = ? WHERE id = ?`, n, itemID)
	if err != nil {
		return err
	}
	return affected(res)
}

// ReleaseStockApplication is the inverse of ClaimStockApplication, used when
// a fulfilled order is cancelled and its stock goes back on the shelf.
func (s *Store) ReleaseStockApplication(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.exec(ctx, `UPDATE orders SET stock_applied = FALSE WHERE id = ? AND stock_applied = TRUE`, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return err
	}
	res, err := s.exec(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
