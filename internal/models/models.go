package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsAdmin reports whether the role may use the back-office.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Product struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	StockQuantity int                 `json:"stockQuantity"`
	InStock       bool                `json:"inStock"`
	Featured      bool                `json:"featured"`
	ImageURL      string              `json:"image"`
	Images        []string            `json:"images"`
	DeliveryInfo  string              `json:"deliveryInfo"`
	WarrantyInfo  string              `json:"warrantyInfo"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderPaid       OrderStatus = "paid"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderPaid, OrderShipped, OrderDelivered, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Fulfilling reports whether an order in this status has left the shelf, which
// is the point at which its stock must have been taken.
func (s OrderStatus) Fulfilling() bool {
	switch s {
	case OrderProcessing, OrderPaid, OrderShipped, OrderDelivered, OrderCompleted:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMpesa PaymentMethod = "mpesa"
	PaymentCOD   PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMpesa || m == PaymentCOD
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Order struct {
	ID                 int64           `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	UserID             int64           `json:"userId"`
	Status             OrderStatus     `json:"status"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"deliveryFee"`
	Total              decimal.Decimal `json:"total"`
	DeliveryName       string          `json:"deliveryName"`
	DeliveryPhone      string          `json:"deliveryPhone"`
	DeliveryEmail      string          `json:"deliveryEmail"`
	DeliveryAddress    string          `json:"deliveryAddress"`
	DeliveryCity       string          `json:"deliveryCity"`
	Notes              string          `json:"notes"`
	MpesaCheckoutID    string          `json:"mpesaCheckoutId,omitempty"`
	MpesaReceiptNumber string          `json:"mpesaReceiptNumber,omitempty"`
	StockApplied       bool            `json:"-"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Items              []OrderItem     `json:"items,omitempty"`
}

// OrderItem keeps the product's name, image and price as they were when the
// order was placed.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"orderId"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	// StockTaken is how many units left the shelf for this line, which is
	// less than Quantity when stock ran out.
	StockTaken int `json:"-"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type CartItem struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"inStock"`
	CreatedAt time.Time       `json:"createdAt"`
}

type OTPPurpose string

const (
	OTPVerify OTPPurpose = "verify"
	OTPReset  OTPPurpose = "reset"
)

type OTPCode struct {
	ID        int64
	UserID    int64
	Code      string
	Purpose   OTPPurpose
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type ContactStatus string

const (
	ContactNew      ContactStatus = "new"
	ContactRead     ContactStatus = "read"
	ContactReplied  ContactStatus = "replied"
	ContactArchived ContactStatus = "archived"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied, ContactArchived:
		return true
	}
	return false
}

type Contact struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Status    ContactStatus  `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	Replies   []ContactReply `json:"replies,omitempty"`
}

type ContactReply struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contactId"`
	AdminID   int64     `json:"adminId"`
	AdminName string    `json:"adminName"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
