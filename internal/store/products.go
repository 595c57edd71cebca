package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, category, price, original_price, stock_quantity, in_stock, featured,
	image_url, images, delivery_info, warranty_info, created_at, updated_at`

// ProductFilter narrows, orders and pages the catalogue.
type ProductFilter struct {
	Category string
	Search   string
	PriceMin decimal.Decimal
	PriceMax decimal.Decimal
	Featured *bool
	InStock  *bool
	SortBy   string
	SortDir  string
	Page     int
	Limit    int
}

// sortable maps public sort keys onto columns; anything else is rejected
// before it can reach the ORDER BY clause.
var sortable = map[string]string{
	"name":       "name",
	"price":      "price",
	"category":   "category",
	"created_at": "created_at",
	"createdAt":  "created_at",
	"featured":   "featured",
	"stock":      "stock_quantity",
}

// ValidSortKey reports whether key can be used as ProductFilter.SortBy.
func ValidSortKey(key string) bool {
	_, ok := sortable[key]
	return ok
}

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var (
		p      models.Product
		images string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.OriginalPrice, &p.StockQuantity,
		&p.InStock, &p.Featured, &p.ImageURL, &images, &p.DeliveryInfo, &p.WarrantyInfo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			return nil, fmt.Errorf("product %d has malformed images column: %w", p.ID, err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func encodeImages(images []string) string {
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	return string(b)
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	p.InStock = p.StockQuantity > 0
	p.CreatedAt, p.UpdatedAt = now, now

	id, err := s.insert(ctx, `
		INSERT INTO products (name, description, category, price, original_price, stock_quantity, in_stock, featured,
			image_url, images, delivery_info, warranty_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Category, p.Price, p.OriginalPrice, p.StockQuantity, p.InStock, p.Featured,
		p.ImageURL, encodeImages(p.Images), p.DeliveryInfo, p.WarrantyInfo, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	p.ID = id
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.InStock = p.StockQuantity > 0
	p.UpdatedAt = time.Now().UTC()
	res, err := s.exec(ctx, `
		UPDATE products
		SET name = ?, description = ?, category = ?, price = ?, original_price = ?, stock_quantity = ?, in_stock = ?,
			featured = ?, image_url = ?, images = ?, delivery_info = ?, warranty_info = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Category, p.Price, p.OriginalPrice, p.StockQuantity, p.InStock,
		p.Featured, p.ImageURL, encodeImages(p.Images), p.DeliveryInfo, p.WarrantyInfo, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return affected(res)
}

func (s *Store) UpdateProductImage(ctx context.Context, id int64, imageURL string) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.Images = append([]string{imageURL}, p.Images...)
	res, err := s.exec(ctx, `UPDATE products SET image_url = ?, images = ?, updated_at = ? WHERE id = ?`,
		imageURL, encodeImages(p.Images), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return affected(res)
}

// SetProductStock writes the quantity and the in-stock label derived from it.
func (s *Store) SetProductStock(ctx context.Context, id int64, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	res, err := s.exec(ctx, `UPDATE products SET stock_quantity = ?, in_stock = ?, updated_at = ? WHERE id = ?`,
		quantity, quantity > 0, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListProducts returns one page of products matching f and the total number
// of matches.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]*models.Product, int, error) {
	query, countQuery, params := productQuery(f)

	var count int
	if err := s.queryRow(ctx, countQuery, params[:len(params)-2]...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := s.query(ctx, query, params...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, count, rows.Err()
}

func productQuery(f ProductFilter) (string, string, []any) {
	query := `SELECT ` + productColumns + ` FROM products`
	countQuery := `SELECT COUNT(*) FROM products`

	var (
		where  []string
		params []any
	)

	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?)")
		params = append(params, like, like, like)
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) = ?")
		params = append(params, strings.ToLower(f.Category))
	}
	if f.PriceMin.IsPositive() {
		where = append(where, "price >= ?")
		params = append(params, f.PriceMin)
	}
	if f.PriceMax.IsPositive() {
		where = append(where, "price <= ?")
		params = append(params, f.PriceMax)
	}
	if f.Featured != nil {
		where = append(where, "featured = ?")
		params = append(params, *f.Featured)
	}
	if f.InStock != nil {
		where = append(where, "in_stock = ?")
		params = append(params, *f.InStock)
	}

	if len(where) > 0 {
		clause := " WHERE " + strings.Join(where, " AND ")
		query += clause
		countQuery += clause
	}

	column, ok := sortable[f.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortDir, "asc") {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", column, dir, dir)

	limit, page := f.Limit, f.Page
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	query += " LIMIT ? OFFSET ?"
	params = append(params, limit, (page-1)*limit)

	return query, countQuery, params
}

// ProductsByID loads the given products in one query, keyed by id. Unknown
// ids are simply absent from the result.
func (s *Store) ProductsByID(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	found := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.query(ctx, `SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = p
	}
	return found, rows.Err()
}

// TakeStock removes up to qty units of the product and returns how many it
// removed. The row is locked on Postgres so concurrent takers queue up.
func (s *Store) TakeStock(ctx context.Context, id int64, qty int) (int, error) {
	query := `SELECT stock_quantity FROM products WHERE id = ?`
	if s.Driver == "postgres" {
		query += ` FOR UPDATE`
	}
	var stock int
	if err := s.queryRow(ctx, query, id).Scan(&stock); err != nil {
		return 0, translate(err)
	}

	taken := min(stock, qty)
	if taken <= 0 {
		return 0, nil
	}
	if err := s.AdjustStock(ctx, id, -taken); err != nil {
		return 0, err
	}
	return taken, nil
}

// AdjustStock adds delta to the product's stock in one statement, flooring
// the result at zero and keeping in_stock in line with it.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) error {
	res, err := s.exec(ctx, `
		UPDATE products
		SET stock_quantity = CASE WHEN stock_quantity + ? < 0 THEN 0 ELSE stock_quantity + ? END,
			in_stock = CASE WHEN stock_quantity + ? > 0 THEN TRUE ELSE FALSE END,
			updated_at = ?
		WHERE id = ?`,
		delta, delta, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to adjust stock of product %d: %w", id, err)
	}
	return affected(res)
}
