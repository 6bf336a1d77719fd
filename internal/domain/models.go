package domain

import (
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    *int            `json:"category"`
	IsActive    bool            `json:"is_active"`
}

type ProductWriteRequest struct {
	Name        string          `json:"name" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    *int            `json:"category"`
	IsActive    bool            `json:"is_active"`
}

type StockUpdateRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Action   string `json:"action" validate:"oneof=set add subtract"`
}

type Customer struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone"`
	City      string `json:"city,omitempty"`
}

// DisplayName falls back to first + last name when the list serializer
// omitted full_name.
func (c Customer) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

type CustomerWriteRequest struct {
	FirstName string `json:"first_name" validate:"required_without=LastName"`
	LastName  string `json:"last_name" validate:"required_without=FirstName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type SaleItem struct {
	ID          int             `json:"id"`
	Product     *int            `json:"product"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Sale struct {
	ID            int        `json:"id"`
	Customer      *int       `json:"customer,omitempty"`
	CustomerName  *string    `json:"customer_name"`
	SaleDate      Moment     `json:"sale_date"`
	TotalAmount   string     `json:"total_amount"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Items         []SaleItem `json:"items"`
	ItemsCount    int        `json:"items_count"`
	CreatedAt     Moment     `json:"created_at"`
}

// ResolvedItem is a draft row after name resolution, in the shape the sale
// and stock-check endpoints expect.
type ResolvedItem struct {
	ProductID int             `json:"product" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleWriteRequest struct {
	Customer      *int           `json:"customer"`
	PaymentMethod string         `json:"payment_method" validate:"required"`
	Notes         string         `json:"notes"`
	Items         []ResolvedItem `json:"items" validate:"required,min=1,dive"`
}

type OutOfStockNotice struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type SaleWriteResponse struct {
	Customer       *int               `json:"customer"`
	PaymentMethod  string             `json:"payment_method"`
	Notes          string             `json:"notes"`
	OutOfStockInfo []OutOfStockNotice `json:"out_of_stock_info"`
}

type OutOfStockSale struct {
	ID           int    `json:"id"`
	Product      int    `json:"product"`
	ProductName  string `json:"product_name"`
	QuantitySold int    `json:"quantity_sold"`
	Sale         *int   `json:"sale"`
	Notes        string `json:"notes"`
	CreatedAt    Moment `json:"created_at"`
}

type StockCheckRequest struct {
	Items []ResolvedItem `json:"items"`
}

type StockIssue struct {
	ProductID   int    `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Shortage    int    `json:"shortage"`
}

type StockCheckResponse struct {
	HasIssues bool         `json:"has_issues"`
	Issues    []StockIssue `json:"issues"`
}

type Expense struct {
	ID            int    `json:"id"`
	Category      *int   `json:"category"`
	CategoryName  string `json:"category_name,omitempty"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	ExpenseDate   Moment `json:"expense_date"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     Moment `json:"created_at"`
}

type ExpenseWriteRequest struct {
	Description   string          `json:"description" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	ExpenseDate   string          `json:"expense_date" validate:"required,datetime=2006-01-02"`
	Category      *int            `json:"category"`
	PaymentMethod string          `json:"payment_method" validate:"oneof=cash card check transfer other"`
	Notes         string          `json:"notes"`
}

type ExpenseCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type InvoiceItem struct {
	ID          int             `json:"id,omitempty"`
	Description string          `json:"description" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal,omitempty"`
}

type Invoice struct {
	ID            int           `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	Customer      *int          `json:"customer,omitempty"`
	CustomerName  string        `json:"customer_name"`
	Date          Moment        `json:"date"`
	Subtotal      string        `json:"subtotal,omitempty"`
	TotalAmount   string        `json:"total_amount"`
	Items         []InvoiceItem `json:"items,omitempty"`
	CreatedAt     Moment        `json:"created_at"`
}

type InvoiceWriteRequest struct {
	Customer int           `json:"customer" validate:"required,gt=0"`
	Date     string        `json:"date" validate:"required,datetime=2006-01-02"`
	Items    []InvoiceItem `json:"items" validate:"required,min=1,dive"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserProfile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type LoginResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    UserProfile `json:"user"`
}

type DashboardStats struct {
	Products struct {
		Total    int `json:"total"`
		Active   int `json:"active"`
		LowStock int `json:"low_stock"`
	} `json:"products"`
	Sales struct {
		Total  int `json:"total"`
		Recent int `json:"recent"`
	} `json:"sales"`
	Expenses struct {
		Total  int     `json:"total"`
		Recent int     `json:"recent"`
		Amount float64 `json:"amount"`
	} `json:"expenses"`
	Customers struct {
		Total  int `json:"total"`
		Recent int `json:"recent"`
	} `json:"customers"`
	Revenue struct {
		Total float64 `json:"total"`
		Net   float64 `json:"net"`
	} `json:"revenue"`
	MonthlyRevenue []float64 `json:"monthly_revenue"`
}

type ImportResult struct {
	Message string   `json:"message"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

type ActivityKind string

const (
	ActivitySale    ActivityKind = "sale"
	ActivityExpense ActivityKind = "expense"
	ActivityInvoice ActivityKind = "invoice"
)

// ActivityEntry is a display projection; it is never written back.
type ActivityEntry struct {
	SourceID    string       `json:"source_id"`
	Kind        ActivityKind `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Timestamp   Moment       `json:"timestamp"`
	TimeAgo     string       `json:"time_ago"`
}

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentCheck    = "check"
	PaymentTransfer = "transfer"
	PaymentOther    = "other"
)

const (
	StockActionSet      = "set"
	StockActionAdd      = "add"
	StockActionSubtract = "subtract"
)

// MonthlyRevenueLen is the length of the dashboard revenue series.
const MonthlyRevenueLen = 12
