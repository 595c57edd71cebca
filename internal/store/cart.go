package store

import (
	"context"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

// CartItems returns the user's cart joined with current product data.
func (s *Store) CartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	rows, err := s.query(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, p.name, p.image_url, p.price, p.in_stock, c.created_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Name, &it.Image, &it.Price,
			&it.InStock, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddToCart adds quantity to the existing line for the product, or creates it.
func (s *Store) AddToCart(ctx context.Context, userID, productID int64, quantity int) error {
	return s.WithTx(ctx, func(tx *Store) error {
		res, err := tx.exec(ctx, `UPDATE cart_items SET quantity = quantity + ? WHERE user_id = ? AND product_id = ?`,
			quantity, userID, productID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.insert(ctx, `INSERT INTO cart_items (user_id, product_id, quantity, created_at) VALUES (?, ?, ?, ?)`,
			userID, productID, quantity, time.Now().UTC())
		return err
	})
}

func (s *Store) SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, userID, productID)
	}
	res, err := s.exec(ctx, `UPDATE cart_items SET quantity = ? WHERE user_id = ? AND product_id = ?`,
		quantity, userID, productID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	res, err := s.exec(ctx, `DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}
