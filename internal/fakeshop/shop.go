// Package fakeshop is an in-process stand-in for the boutique REST backend.
// It keeps its state in memory, speaks the same JSON shapes and can be told
// to fail specific calls, which lets the client stack be tested end to end
// with net/http/httptest.
package fakeshop

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/domain"
)

type Shop struct {
	auth     *authority
	now      func() time.Time
	pageSize int

	mu         sync.Mutex
	products   map[int]domain.Product
	customers  map[int]domain.Customer
	sales      map[int]domain.Sale
	expenses   map[int]domain.Expense
	invoices   map[int]domain.Invoice
	categories map[int]domain.ExpenseCategory
	outOfStock map[int]domain.OutOfStockSale
	seq        map[string]int
	faults     map[string][]fault
	calls      map[string]int
}

type fault struct {
	pass   bool
	status int
	body   string
}

type Option func(*Shop)

func WithClock(now func() time.Time) Option {
	return func(s *Shop) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPageSize makes list endpoints answer with the paginated
// {count, next, results} envelope instead of a bare array.
func WithPageSize(n int) Option {
	return func(s *Shop) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Shop) {
		s.auth.tokenTTL = ttl
	}
}

func New(opts ...Option) *Shop {
	s := &Shop{
		now:        time.Now,
		products:   make(map[int]domain.Product),
		customers:  make(map[int]domain.Customer),
		sales:      make(map[int]domain.Sale),
		expenses:   make(map[int]domain.Expense),
		invoices:   make(map[int]domain.Invoice),
		categories: make(map[int]domain.ExpenseCategory),
		outOfStock: make(map[int]domain.OutOfStockSale),
		seq:        make(map[string]int),
		faults:     make(map[string][]fault),
		calls:      make(map[string]int),
	}
	s.auth = newAuthority("", time.Hour, func() time.Time { return s.now() })
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shop) AddUser(username string, password string) error {
	return s.auth.addUser(username, password)
}

// Token signs an access token for a registered user without going through
// the login endpoint.
func (s *Shop) Token(username string) (string, error) {
	s.auth.mu.RLock()
	cred, ok := s.auth.users[username]
	s.auth.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	now := s.now().UTC()
	return s.auth.sign(username, cred.id, now, now.Add(s.auth.tokenTTL))
}

func (s *Shop) next(collection string) int {
	s.seq[collection]++
	return s.seq[collection]
}

func (s *Shop) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.next("products")
	} else if p.ID > s.seq["products"] {
		s.seq["products"] = p.ID
	}
	s.products[p.ID] = p
	return p
}

func (s *Shop) AddCustomer(c domain.Customer) domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.next("customers")
	}
	c.FullName = c.DisplayName()
	s.customers[c.ID] = c
	return c
}

// AddSale stores a sale as history without touching stock. A blank total is
// computed from the items.
func (s *Shop) AddSale(sale domain.Sale) domain.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sale.ID == 0 {
		sale.ID = s.next("sales")
	}
	if sale.TotalAmount == "" {
		total := decimal.Zero
		for _, item := range sale.Items {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		sale.TotalAmount = total.StringFixed(2)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = sale.SaleDate
	}
	sale.ItemsCount = len(sale.Items)
	s.sales[sale.ID] = sale
	return sale
}

func (s *Shop) AddExpense(e domain.Expense) domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.next("expenses")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.ExpenseDate
	}
	s.expenses[e.ID] = e
	return e
}

func (s *Shop) AddInvoice(inv domain.Invoice) domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == 0 {
		inv.ID = s.next("invoices")
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = invoiceNumber(inv.ID)
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = inv.Date
	}
	s.invoices[inv.ID] = inv
	return inv
}

func (s *Shop) Product(id int) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Shop) Sales() []domain.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedSales(s.sales)
}

func (s *Shop) Expenses() []domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedExpenses(s.expenses)
}

func (s *Shop) Customers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return valuesByID(s.customers, func(c domain.Customer) int { return c.ID })
}

func (s *Shop) OutOfStockSales() []domain.OutOfStockSale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return valuesByID(s.outOfStock, func(o domain.OutOfStockSale) int { return o.ID })
}

// Fail makes the next times calls to method+path answer with status and a
// {"detail": detail} body instead of reaching the handler.
func (s *Shop) Fail(method string, path string, status int, detail string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	for i := 0; i < times; i++ {
		s.faults[key] = append(s.faults[key], fault{status: status, body: detail})
	}
}

// FailAt lets nth-1 calls to method+path through and fails the nth one.
func (s *Shop) FailAt(method string, path string, nth int, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	for i := 1; i < nth; i++ {
		s.faults[key] = append(s.faults[key], fault{pass: true})
	}
	s.faults[key] = append(s.faults[key], fault{status: status, body: detail})
}

// Calls counts requests that reached method+path, failed ones included.
func (s *Shop) Calls(method string, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *Shop) takeFault(key string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	queue := s.faults[key]
	if len(queue) == 0 {
		return fault{}, false
	}
	s.faults[key] = queue[1:]
	return queue[0], true
}

func (s *Shop) withFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f, ok := s.takeFault(r.Method + " " + r.URL.Path); ok && !f.pass {
			writeJSON(w, f.status, map[string]any{"detail": f.body})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func invoiceNumber(id int) string {
	return fmt.Sprintf("FAC-%05d", id)
}

func valuesByID[T any](m map[int]T, id func(T) int) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func sortedSales(m map[int]domain.Sale) []domain.Sale {
	out := valuesByID(m, func(s domain.Sale) int { return s.ID })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SaleDate.Equal(out[j].SaleDate.Time) {
			return out[i].SaleDate.After(out[j].SaleDate.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func sortedExpenses(m map[int]domain.Expense) []domain.Expense {
	out := valuesByID(m, func(e domain.Expense) int { return e.ID })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate.Time) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func sortedInvoices(m map[int]domain.Invoice) []domain.Invoice {
	out := valuesByID(m, func(inv domain.Invoice) int { return inv.ID })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
