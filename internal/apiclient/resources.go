package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/session"
)

type ListParams struct {
	DateFrom string
	DateTo   string
	Limit    int
	Search   string
	Customer int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.DateFrom != "" {
		q.Set("date_from", p.DateFrom)
	}
	if p.DateTo != "" {
		q.Set("date_to", p.DateTo)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Customer > 0 {
		q.Set("customer", strconv.Itoa(p.Customer))
	}
	return q
}

func (c *Client) Login(ctx context.Context, username string, password string) (domain.LoginResponse, error) {
	payload, err := jsonBody(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		return domain.LoginResponse{}, err
	}
	var resp domain.LoginResponse
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login/",
		body:        payload,
		contentType: "application/json",
		noAuth:      true,
	}, &resp)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if err := c.session.Set(ctx, session.Tokens{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("store session: %w", err)
	}
	return resp, nil
}

// Logout is local only; the backend keeps no server-side session.
func (c *Client) Logout(ctx context.Context) {
	c.session.Teardown(ctx, "logout")
}

func (c *Client) Profile(ctx context.Context) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.doJSON(ctx, request{method: http.MethodGet, path: "/account/profile/"}, &out)
	return out, err
}

// DashboardStats fetches aggregate counts. The monthly revenue series must
// have exactly 12 entries.
func (c *Client) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var out domain.DashboardStats
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/dashboard/stats/"}, &out); err != nil {
		return domain.DashboardStats{}, err
	}
	if len(out.MonthlyRevenue) != domain.MonthlyRevenueLen {
		return domain.DashboardStats{}, &apperr.ServerError{
			Status: http.StatusOK,
			Detail: fmt.Sprintf("expected %d monthly revenue entries, got %d", domain.MonthlyRevenueLen, len(out.MonthlyRevenue)),
		}
	}
	return out, nil
}

// Products

func (c *Client) ListProducts(ctx context.Context, params ListParams) ([]domain.Product, error) {
	return listAll[domain.Product](ctx, c, "/products/", params.values())
}

func (c *Client) GetProduct(ctx context.Context, id int) (domain.Product, error) {
	var out domain.Product
	err := c.doJSON(ctx, request{method: http.MethodGet, path: itemPath("products", id)}, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, req domain.ProductWriteRequest) (domain.Product, error) {
	var out domain.Product
	err := c.write(ctx, http.MethodPost, "/products/", req, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int, req domain.ProductWriteRequest) (domain.Product, error) {
	var out domain.Product
	err := c.write(ctx, http.MethodPatch, itemPath("products", id), req, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: itemPath("products", id)}, nil)
}

func (c *Client) UpdateProductStock(ctx context.Context, id int, req domain.StockUpdateRequest) (domain.Product, error) {
	var out domain.Product
	err := c.write(ctx, http.MethodPost, itemPath("products", id)+"update_stock/", req, &out)
	return out, err
}

// Customers

func (c *Client) ListCustomers(ctx context.Context, params ListParams) ([]domain.Customer, error) {
	return listAll[domain.Customer](ctx, c, "/customers/", params.values())
}

func (c *Client) GetCustomer(ctx context.Context, id int) (domain.Customer, error) {
	var out domain.Customer
	err := c.doJSON(ctx, request{method: http.MethodGet, path: itemPath("customers", id)}, &out)
	return out, err
}

func (c *Client) CreateCustomer(ctx context.Context, req domain.CustomerWriteRequest) (domain.Customer, error) {
	var out domain.Customer
	err := c.write(ctx, http.MethodPost, "/customers/", req, &out)
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int, req domain.CustomerWriteRequest) (domain.Customer, error) {
	var out domain.Customer
	err := c.write(ctx, http.MethodPatch, itemPath("customers", id), req, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id int) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: itemPath("customers", id)}, nil)
}

// Sales

func (c *Client) ListSales(ctx context.Context, params ListParams) ([]domain.Sale, error) {
	return listAll[domain.Sale](ctx, c, "/sales/", params.values())
}

func (c *Client) GetSale(ctx context.Context, id int) (domain.Sale, error) {
	var out domain.Sale
	err := c.doJSON(ctx, request{method: http.MethodGet, path: itemPath("sales", id)}, &out)
	return out, err
}

// CreateSale posts every item in one request; the backend applies them in a
// single transaction.
func (c *Client) CreateSale(ctx context.Context, req domain.SaleWriteRequest) (domain.SaleWriteResponse, error) {
	var out domain.SaleWriteResponse
	err := c.write(ctx, http.MethodPost, "/sales/", req, &out)
	return out, err
}

func (c *Client) UpdateSale(ctx context.Context, id int, req domain.SaleWriteRequest) (domain.SaleWriteResponse, error) {
	var out domain.SaleWriteResponse
	err := c.write(ctx, http.MethodPatch, itemPath("sales", id), req, &out)
	return out, err
}

func (c *Client) DeleteSale(ctx context.Context, id int) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: itemPath("sales", id)}, nil)
}

func (c *Client) CheckStock(ctx context.Context, items []domain.ResolvedItem) (domain.StockCheckResponse, error) {
	var out domain.StockCheckResponse
	err := c.write(ctx, http.MethodPost, "/sales/check_stock/", domain.StockCheckRequest{Items: items}, &out)
	return out, err
}

func (c *Client) ListOutOfStockSales(ctx context.Context) ([]domain.OutOfStockSale, error) {
	return listAll[domain.OutOfStockSale](ctx, c, "/out-of-stock-sales/", url.Values{})
}

// Expenses

func (c *Client) ListExpenses(ctx context.Context, params ListParams) ([]domain.Expense, error) {
	return listAll[domain.Expense](ctx, c, "/expenses/", params.values())
}

func (c *Client) CreateExpense(ctx context.Context, req domain.ExpenseWriteRequest) (domain.Expense, error) {
	var out domain.Expense
	err := c.write(ctx, http.MethodPost, "/expenses/", req, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id int, req domain.ExpenseWriteRequest) (domain.Expense, error) {
	var out domain.Expense
	err := c.write(ctx, http.MethodPatch, itemPath("expenses", id), req, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: itemPath("expenses", id)}, nil)
}

func (c *Client) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return listAll[domain.ExpenseCategory](ctx, c, "/expense-categories/", url.Values{})
}

func (c *Client) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (domain.ExpenseCategory, error) {
	var out domain.ExpenseCategory
	err := c.write(ctx, http.MethodPost, "/expense-categories/", category, &out)
	return out, err
}

// Invoices

func (c *Client) ListInvoices(ctx context.Context, params ListParams) ([]domain.Invoice, error) {
	return listAll[domain.Invoice](ctx, c, "/invoices/", params.values())
}

func (c *Client) GetInvoice(ctx context.Context, id int) (domain.Invoice, error) {
	var out domain.Invoice
	err := c.doJSON(ctx, request{method: http.MethodGet, path: itemPath("invoices", id)}, &out)
	return out, err
}

func (c *Client) CreateInvoice(ctx context.Context, req domain.InvoiceWriteRequest) (domain.Invoice, error) {
	var out domain.Invoice
	err := c.write(ctx, http.MethodPost, "/invoices/", req, &out)
	return out, err
}

func (c *Client) UpdateInvoice(ctx context.Context, id int, req domain.InvoiceWriteRequest) (domain.Invoice, error) {
	var out domain.Invoice
	err := c.write(ctx, http.MethodPatch, itemPath("invoices", id), req, &out)
	return out, err
}

func (c *Client) DeleteInvoice(ctx context.Context, id int) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: itemPath("invoices", id)}, nil)
}

func (c *Client) write(ctx context.Context, method string, path string, payload any, out any) error {
	body, err := jsonBody(payload)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, request{method: method, path: path, body: body, contentType: "application/json"}, out)
}

func itemPath(collection string, id int) string {
	return fmt.Sprintf("/%s/%d/", collection, id)
}
