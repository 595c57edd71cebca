package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedProduct(t *testing.T, s *Store, name, category string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Category:      category,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func seedUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Name: "Test"}
	require.NoError(t, s.WithTx(context.Background(), func(tx *Store) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestRebind(t *testing.T) {
	pg := &Store{Driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{Driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestProductCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := seedProduct(t, s, "Gold Ring", "rings", 1500, 3)
	assert.True(t, p.InStock)
	assert.NotZero(t, p.ID)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gold Ring", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, []string{}, got.Images)

	got.StockQuantity = 0
	require.NoError(t, s.UpdateProduct(ctx, got))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.InStock)

	require.NoError(t, s.UpdateProductImage(ctx, p.ID, "/static/uploads/a.jpg"))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/a.jpg", got.ImageURL)
	assert.Equal(t, []string{"/static/uploads/a.jpg"}, got.Images)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	_, err = s.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), ErrNotFound)
}

func TestListProductsFilterSortPage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedProduct(t, s, "Silver Chain", "necklaces", 800, 5)
	seedProduct(t, s, "Gold Chain", "necklaces", 2500, 0)
	seedProduct(t, s, "Pearl Stud", "earrings", 1200, 2)

	all, total, err := s.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	necklaces, total, err := s.ListProducts(ctx, ProductFilter{Category: "Necklaces", SortBy: "price", SortDir: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, necklaces, 2)
	assert.Equal(t, "Silver Chain", necklaces[0].Name)
	assert.Equal(t, "Gold Chain", necklaces[1].Name)

	inStock := true
	avail, total, err := s.ListProducts(ctx, ProductFilter{InStock: &inStock})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, p := range avail {
		assert.True(t, p.InStock)
	}

	found, _, err := s.ListProducts(ctx, ProductFilter{Search: "chain", PriceMax: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Silver Chain", found[0].Name)

	page2, total, err := s.ListProducts(ctx, ProductFilter{SortBy: "name", SortDir: "asc", Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page2, 1)
	assert.Equal(t, "Silver Chain", page2[0].Name)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"earrings", "necklaces"}, categories)

	assert.True(t, ValidSortKey("price"))
	assert.False(t, ValidSortKey("price; DROP TABLE products"))
}

func TestSetProductStockClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Bangle", "bracelets", 900, 2)

	require.NoError(t, s.SetProductStock(ctx, p.ID, -4))
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
	assert.False(t, got.InStock)
}

func TestProductsByIDSkipsUnknown(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, "Anklet", "anklets", 400, 1)

	found, err := s.ProductsByID(context.Background(), []int64{p.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, p.ID)
}

func TestFirstUserIsSuperAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := seedUser(t, s, "Owner@Example.com")
	second := seedUser(t, s, "shopper@example.com")

	assert.Equal(t, models.RoleSuperAdmin, first.Role)
	assert.Equal(t, models.RoleUser, second.Role)
	assert.Equal(t, "owner@example.com", first.Email)

	got, err := s.GetUserByEmail(ctx, " OWNER@example.com ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	dup := &models.User{Email: "owner@example.com", PasswordHash: "x"}
	err = s.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "buyer@example.com")
	p := seedProduct(t, s, "Ring", "rings", 1000, 5)

	o := &models.Order{
		OrderNumber:   "JHTEST0001",
		UserID:        u.ID,
		Status:        models.OrderPending,
		PaymentMethod: models.PaymentMpesa,
		PaymentStatus: models.PaymentPending,
		Subtotal:      decimal.NewFromInt(2000),
		Total:         decimal.NewFromInt(2000),
		Items: []models.OrderItem{
			{ProductID: p.ID, ProductName: p.Name, Price: p.Price, Quantity: 2},
		},
	}
	require.NoError(t, s.WithTx(ctx, func(tx *Store) error { return tx.CreateOrder(ctx, o) }))
	require.NotZero(t, o.ID)

	require.NoError(t, s.SetCheckoutID(ctx, o.ID, "ws_CO_123"))

	byCheckout, err := s.GetOrderByCheckoutID(ctx, "ws_CO_123")
	require.NoError(t, err)
	assert.Equal(t, o.ID, byCheckout.ID)
	require.Len(t, byCheckout.Items, 1)
	assert.Equal(t, 2, byCheckout.Items[0].Quantity)
	assert.Zero(t, byCheckout.Items[0].StockTaken)

	require.NoError(t, s.SetStockTaken(ctx, byCheckout.Items[0].ID, 2))
	items, err := s.OrderItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].StockTaken)

	byNumber, err := s.GetOrderByNumber(ctx, "jhtest0001")
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	pending, err := s.PendingCheckouts(ctx, o.CreatedAt.Add(-1), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.MarkPaid(ctx, o.ID, "QWE123"))
	paid, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderProcessing, paid.Status)
	assert.Equal(t, "QWE123", paid.MpesaReceiptNumber)

	list, total, err := s.ListOrders(ctx, OrderFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteOrder(ctx, o.ID))
	_, err = s.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimStockApplicationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "buyer@example.com")
	o := &models.Order{
		OrderNumber:   "JHCLAIM",
		UserID:        u.ID,
		Status:        models.OrderPending,
		PaymentMethod: models.PaymentCOD,
		PaymentStatus: models.PaymentPending,
	}
	require.NoError(t, s.CreateOrder(ctx, o))

	won, err := s.ClaimStockApplication(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.ClaimStockApplication(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, won)

	released, err := s.ReleaseStockApplication(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = s.ReleaseStockApplication(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestDuplicateCheckoutIDRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "buyer@example.com")

	for _, number := range []string{"JHA", "JHB"} {
		o := &models.Order{OrderNumber: number, UserID: u.ID, Status: models.OrderPending,
			PaymentMethod: models.PaymentMpesa, PaymentStatus: models.PaymentPending}
		require.NoError(t, s.CreateOrder(ctx, o))
		err := s.SetCheckoutID(ctx, o.ID, "ws_CO_same")
		if number == "JHA" {
			require.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
}

func TestFailPendingPayment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "buyer@example.com")

	o := &models.Order{OrderNumber: "JHFAIL", UserID: u.ID, Status: models.OrderPending,
		PaymentMethod: models.PaymentMpesa, PaymentStatus: models.PaymentPending}
	require.NoError(t, s.CreateOrder(ctx, o))
	require.NoError(t, s.SetCheckoutID(ctx, o.ID, "ws_CO_fail"))

	failed, err := s.FailPendingPayment(ctx, "ws_CO_fail")
	require.NoError(t, err)
	assert.True(t, failed)

	failed, err = s.FailPendingPayment(ctx, "ws_CO_fail")
	require.NoError(t, err)
	assert.False(t, failed, "already failed")

	require.NoError(t, s.MarkPaid(ctx, o.ID, "RCPT1"))
	failed, err = s.FailPendingPayment(ctx, "ws_CO_fail")
	require.NoError(t, err)
	assert.False(t, failed)
	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)

	_, err = s.FailPendingPayment(ctx, "ws_CO_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSignupsPromoteOneSuperAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			return s.CreateUser(ctx, &models.User{Email: fmt.Sprintf("user%d@example.com", i), PasswordHash: "x"})
		})
	}
	require.NoError(t, g.Wait())

	var supers int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, models.RoleSuperAdmin).Scan(&supers))
	assert.Equal(t, 1, supers)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Brooch", "brooches", 300, 4)

	err := s.WithTx(ctx, func(tx *Store) error {
		if err := tx.SetProductStock(ctx, p.ID, 0); err != nil {
			return err
		}
		return ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StockQuantity)
}

func TestOTPSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "otp@example.com")

	first := &models.OTPCode{UserID: u.ID, Code: "111111", Purpose: models.OTPVerify, ExpiresAt: timeIn(10)}
	require.NoError(t, s.CreateOTP(ctx, first))
	second := &models.OTPCode{UserID: u.ID, Code: "222222", Purpose: models.OTPVerify, ExpiresAt: timeIn(10)}
	require.NoError(t, s.CreateOTP(ctx, second))

	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, models.OTPVerify, "111111"), ErrNotFound, "older code was superseded")
	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, models.OTPReset, "222222"), ErrNotFound, "wrong purpose")
	require.NoError(t, s.ConsumeOTP(ctx, u.ID, models.OTPVerify, "222222"))
	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, models.OTPVerify, "222222"), ErrNotFound, "already used")

	expired := &models.OTPCode{UserID: u.ID, Code: "333333", Purpose: models.OTPReset, ExpiresAt: timeIn(-1)}
	require.NoError(t, s.CreateOTP(ctx, expired))
	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, models.OTPReset, "333333"), ErrNotFound)
}

func TestCart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "cart@example.com")
	p := seedProduct(t, s, "Locket", "necklaces", 700, 3)

	require.NoError(t, s.AddToCart(ctx, u.ID, p.ID, 1))
	require.NoError(t, s.AddToCart(ctx, u.ID, p.ID, 2))

	items, err := s.CartItems(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Locket", items[0].Name)

	require.NoError(t, s.SetCartQuantity(ctx, u.ID, p.ID, 1))
	items, err = s.CartItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].Quantity)

	require.NoError(t, s.SetCartQuantity(ctx, u.ID, p.ID, 0))
	items, err = s.CartItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, s.RemoveFromCart(ctx, u.ID, p.ID), ErrNotFound)
}

func TestContactReplyMarksReplied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	admin := seedUser(t, s, "admin@example.com")

	c := &models.Contact{Name: "Ann", Email: "ann@example.com", Subject: "Sizing", Message: "Do you resize rings?"}
	require.NoError(t, s.CreateContact(ctx, c))
	assert.Equal(t, models.ContactNew, c.Status)

	r := &models.ContactReply{ContactID: c.ID, AdminID: admin.ID, AdminName: admin.Name, Message: "Yes we do."}
	require.NoError(t, s.AddContactReply(ctx, r))

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactReplied, got.Status)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, "Yes we do.", got.Replies[0].Message)

	list, total, err := s.ListContacts(ctx, models.ContactReplied, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteContact(ctx, c.ID))
	_, err = s.GetContact(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "stats@example.com")
	p := seedProduct(t, s, "Tiara", "hair", 5000, 1)
	seedProduct(t, s, "Clip", "hair", 100, 0)

	o := &models.Order{OrderNumber: "JHSTATS", UserID: u.ID, Status: models.OrderPending,
		PaymentMethod: models.PaymentCOD, PaymentStatus: models.PaymentPending,
		Subtotal: decimal.NewFromInt(5000), Total: decimal.NewFromInt(5000),
		Items: []models.OrderItem{{ProductID: p.ID, ProductName: p.Name, Price: p.Price, Quantity: 1}}}
	require.NoError(t, s.CreateOrder(ctx, o))
	require.NoError(t, s.UpdatePaymentStatus(ctx, o.ID, models.PaymentPaid))

	stats, err := s.GetDashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProducts)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.True(t, stats.Revenue.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 1, stats.OrdersByStatus["pending"])
	require.Len(t, stats.TopProducts, 1)
	assert.Equal(t, "Tiara", stats.TopProducts[0].ProductName)
}

func timeIn(minutes int) time.Time {
	return time.Now().Add(time.Duration(minutes) * time.Minute)
}

func TestAdjustStockFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Cuff", "bracelets", 650, 2)

	require.NoError(t, s.AdjustStock(ctx, p.ID, -1))
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)
	assert.True(t, got.InStock)

	require.NoError(t, s.AdjustStock(ctx, p.ID, -5))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
	assert.False(t, got.InStock)

	require.NoError(t, s.AdjustStock(ctx, p.ID, 3))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
	assert.True(t, got.InStock)

	assert.ErrorIs(t, s.AdjustStock(ctx, 9999, 1), ErrNotFound)
}

func TestTakeStockStopsAtShelf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Anklet", "anklets", 400, 2)

	taken, err := s.TakeStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, taken)

	taken, err = s.TakeStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, taken)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
	assert.False(t, got.InStock)

	_, err = s.TakeStock(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
