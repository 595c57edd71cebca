package store

import (
	"context"

	"github.com/shopspring/decimal"
)

type DashboardStats struct {
	TotalProducts  int             `json:"totalProducts"`
	OutOfStock     int             `json:"outOfStock"`
	TotalOrders    int             `json:"totalOrders"`
	TotalUsers     int             `json:"totalUsers"`
	NewContacts    int             `json:"newContacts"`
	Revenue        decimal.Decimal `json:"revenue"`
	OrdersByStatus map[string]int  `json:"ordersByStatus"`
	TopProducts    []ProductSales  `json:"topProducts"`
}

type ProductSales struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitsSold   int    `json:"unitsSold"`
}

func (s *Store) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		OrdersByStatus: make(map[string]int),
		TopProducts:    []ProductSales{},
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM products`, &stats.TotalProducts},
		{`SELECT COUNT(*) FROM products WHERE in_stock = FALSE`, &stats.OutOfStock},
		{`SELECT COUNT(*) FROM orders`, &stats.TotalOrders},
		{`SELECT COUNT(*) FROM users`, &stats.TotalUsers},
		{`SELECT COUNT(*) FROM contacts WHERE status = 'new'`, &stats.NewContacts},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var revenue decimal.NullDecimal
	if err := s.queryRow(ctx, `SELECT SUM(total) FROM orders WHERE payment_status = 'paid'`).Scan(&revenue); err != nil {
		return nil, err
	}
	stats.Revenue = revenue.Decimal

	// rows are closed before the next query: SQLite runs on one connection
	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.OrdersByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := s.query(ctx, `
		SELECT product_id, product_name, SUM(quantity) AS units
		FROM order_items
		GROUP BY product_id, product_name
		ORDER BY units DESC
		LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var ps ProductSales
		if err := itemRows.Scan(&ps.ProductID, &ps.ProductName, &ps.UnitsSold); err != nil {
			return nil, err
		}
		stats.TopProducts = append(stats.TopProducts, ps)
	}
	return stats, itemRows.Err()
}
