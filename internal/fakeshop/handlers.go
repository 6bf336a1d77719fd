package fakeshop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/sheet"
)

const maxUpload = 10 << 20

type userContextKey struct{}

func contextWithUser(ctx context.Context, user domain.UserProfile) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func userFromContext(ctx context.Context) (domain.UserProfile, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.UserProfile)
	return user, ok
}

func (s *Shop) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login/{$}", s.handleLogin)
	mux.HandleFunc("GET /account/profile/{$}", s.requireAuth(s.handleProfile))
	mux.HandleFunc("GET /dashboard/stats/{$}", s.requireAuth(s.handleStats))

	mux.HandleFunc("GET /products/{$}", s.requireAuth(s.handleListProducts))
	mux.HandleFunc("POST /products/{$}", s.requireAuth(s.handleCreateProduct))
	mux.HandleFunc("GET /products/{id}/{$}", s.requireAuth(s.handleGetProduct))
	mux.HandleFunc("PATCH /products/{id}/{$}", s.requireAuth(s.handleUpdateProduct))
	mux.HandleFunc("DELETE /products/{id}/{$}", s.requireAuth(s.handleDeleteProduct))
	mux.HandleFunc("POST /products/{id}/update_stock/{$}", s.requireAuth(s.handleUpdateStock))
	mux.HandleFunc("POST /products/import-excel/{$}", s.requireAuth(s.handleImportExcel))

	mux.HandleFunc("GET /customers/{$}", s.requireAuth(s.handleListCustomers))
	mux.HandleFunc("POST /customers/{$}", s.requireAuth(s.handleCreateCustomer))
	mux.HandleFunc("GET /customers/{id}/{$}", s.requireAuth(s.handleGetCustomer))
	mux.HandleFunc("PATCH /customers/{id}/{$}", s.requireAuth(s.handleUpdateCustomer))
	mux.HandleFunc("DELETE /customers/{id}/{$}", s.requireAuth(s.handleDeleteCustomer))

	mux.HandleFunc("GET /sales/{$}", s.requireAuth(s.handleListSales))
	mux.HandleFunc("POST /sales/{$}", s.requireAuth(s.handleCreateSale))
	mux.HandleFunc("GET /sales/{id}/{$}", s.requireAuth(s.handleGetSale))
	mux.HandleFunc("PATCH /sales/{id}/{$}", s.requireAuth(s.handleUpdateSale))
	mux.HandleFunc("DELETE /sales/{id}/{$}", s.requireAuth(s.handleDeleteSale))
	mux.HandleFunc("POST /sales/check_stock/{$}", s.requireAuth(s.handleCheckStock))
	mux.HandleFunc("GET /sales/export_report/{$}", s.requireAuth(s.handleExportSales))
	mux.HandleFunc("GET /out-of-stock-sales/{$}", s.requireAuth(s.handleListOutOfStock))

	mux.HandleFunc("GET /expenses/{$}", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /expenses/{$}", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("PATCH /expenses/{id}/{$}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}/{$}", s.requireAuth(s.handleDeleteExpense))
	mux.HandleFunc("GET /expenses/export_report/{$}", s.requireAuth(s.handleExportExpenses))
	mux.HandleFunc("GET /expense-categories/{$}", s.requireAuth(s.handleListCategories))
	mux.HandleFunc("POST /expense-categories/{$}", s.requireAuth(s.handleCreateCategory))

	mux.HandleFunc("GET /invoices/{$}", s.requireAuth(s.handleListInvoices))
	mux.HandleFunc("POST /invoices/{$}", s.requireAuth(s.handleCreateInvoice))
	mux.HandleFunc("GET /invoices/{id}/{$}", s.requireAuth(s.handleGetInvoice))
	mux.HandleFunc("PATCH /invoices/{id}/{$}", s.requireAuth(s.handleUpdateInvoice))
	mux.HandleFunc("DELETE /invoices/{id}/{$}", s.requireAuth(s.handleDeleteInvoice))
	mux.HandleFunc("GET /invoices/{id}/download_pdf/{$}", s.requireAuth(s.handleInvoicePDF("attachment")))
	mux.HandleFunc("GET /invoices/{id}/preview_pdf/{$}", s.requireAuth(s.handleInvoicePDF("inline")))

	return s.withFaults(mux)
}

func (s *Shop) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		user, err := s.auth.parse(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(contextWithUser(r.Context(), user)))
	}
}

func (s *Shop) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.auth.login(req)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Shop) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (s *Shop) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recentCutoff := now.AddDate(0, 0, -30)
	var stats domain.DashboardStats
	stats.Products.Total = len(s.products)
	for _, p := range s.products {
		if p.IsActive {
			stats.Products.Active++
			if p.Stock < 10 {
				stats.Products.LowStock++
			}
		}
	}

	revenue := decimal.Zero
	monthly := make([]decimal.Decimal, domain.MonthlyRevenueLen)
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(domain.MonthlyRevenueLen - 1), 0)
	for _, sale := range s.sales {
		stats.Sales.Total++
		if sale.SaleDate.After(recentCutoff) {
			stats.Sales.Recent++
		}
		amount := domain.ParseAmount(sale.TotalAmount)
		revenue = revenue.Add(amount)
		at := sale.SaleDate.In(now.Location())
		months := (at.Year()-firstMonth.Year())*12 + int(at.Month()) - int(firstMonth.Month())
		if months >= 0 && months < domain.MonthlyRevenueLen {
			monthly[months] = monthly[months].Add(amount)
		}
	}

	spent := decimal.Zero
	for _, e := range s.expenses {
		stats.Expenses.Total++
		if e.ExpenseDate.After(recentCutoff) {
			stats.Expenses.Recent++
		}
		spent = spent.Add(domain.ParseAmount(e.Amount))
	}
	stats.Expenses.Amount = spent.InexactFloat64()
	stats.Customers.Total = len(s.customers)
	stats.Revenue.Total = revenue.InexactFloat64()
	stats.Revenue.Net = revenue.Sub(spent).InexactFloat64()
	stats.MonthlyRevenue = make([]float64, len(monthly))
	for i, m := range monthly {
		stats.MonthlyRevenue[i] = m.InexactFloat64()
	}
	writeJSON(w, http.StatusOK, stats)
}

// Products

func (s *Shop) handleListProducts(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	s.mu.Lock()
	all := valuesByID(s.products, func(p domain.Product) int { return p.ID })
	s.mu.Unlock()

	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if search == "" || strings.Contains(strings.ToLower(p.Name), search) {
			out = append(out, p)
		}
	}
	s.writeList(w, r, out)
}

func (s *Shop) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, found := s.Product(id)
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Shop) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeDetail(w, http.StatusBadRequest, "name: Ce champ ne peut être vide.")
		return
	}
	p := s.AddProduct(domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		IsActive:    req.IsActive,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Shop) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.ProductWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	p, found := s.products[id]
	if found {
		if name := strings.TrimSpace(req.Name); name != "" {
			p.Name = name
		}
		p.Description = req.Description
		p.Price = req.Price
		p.Stock = req.Stock
		p.Category = req.Category
		p.IsActive = req.IsActive
		s.products[id] = p
	}
	s.mu.Unlock()

	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Shop) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, func(id int) bool {
		_, ok := s.products[id]
		delete(s.products, id)
		return ok
	})
}

func (s *Shop) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req := domain.StockUpdateRequest{Action: domain.StockActionSet}
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	p, found := s.products[id]
	if found {
		switch req.Action {
		case domain.StockActionAdd:
			p.Stock += req.Quantity
		case domain.StockActionSubtract:
			p.Stock = max(0, p.Stock-req.Quantity)
		default:
			p.Stock = req.Quantity
		}
		s.products[id] = p
	}
	s.mu.Unlock()

	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleImportExcel creates products by name or overwrites the stock of the
// existing ones, like the backend's import action.
func (s *Shop) handleImportExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Aucun fichier fourni. Veuillez envoyer un fichier Excel."})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Aucun fichier fourni. Veuillez envoyer un fichier Excel."})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Le fichier doit être au format Excel (.xlsx ou .xls)"})
		return
	}

	preview, err := sheet.InspectImport(file)
	if err != nil {
		msg := "Erreur lors de la lecture du fichier: " + err.Error()
		if errors.Is(err, sheet.ErrMissingColumns) {
			msg = `Colonnes "designation" et "quantite" introuvables dans le fichier`
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
		return
	}

	result := domain.ImportResult{Message: "Import terminé avec succès", Errors: preview.Problems}
	s.mu.Lock()
	for _, row := range preview.Rows {
		existing, found := s.productByNameLocked(row.Name)
		if found {
			existing.Stock = row.Quantity
			s.products[existing.ID] = existing
			result.Updated++
			continue
		}
		id := s.next("products")
		s.products[id] = domain.Product{ID: id, Name: row.Name, Stock: row.Quantity, Price: decimal.Zero, IsActive: true}
		result.Created++
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Shop) productByNameLocked(name string) (domain.Product, bool) {
	for _, p := range valuesByID(s.products, func(p domain.Product) int { return p.ID }) {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Customers

func (s *Shop) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	out := make([]domain.Customer, 0)
	for _, c := range s.Customers() {
		if search == "" || strings.Contains(strings.ToLower(c.DisplayName()+" "+c.Phone), search) {
			out = append(out, c)
		}
	}
	s.writeList(w, r, out)
}

func (s *Shop) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	c, found := s.customers[id]
	s.mu.Unlock()
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Shop) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.LastName) == "" {
		writeDetail(w, http.StatusBadRequest, "first_name: Ce champ est obligatoire.")
		return
	}
	c := s.AddCustomer(domain.Customer{FirstName: req.FirstName, LastName: req.LastName, Phone: req.Phone, City: req.City})
	writeJSON(w, http.StatusCreated, c)
}

func (s *Shop) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.CustomerWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	c, found := s.customers[id]
	if found {
		c.FirstName, c.LastName, c.Phone, c.City = req.FirstName, req.LastName, req.Phone, req.City
		c.FullName = ""
		c.FullName = c.DisplayName()
		s.customers[id] = c
	}
	s.mu.Unlock()

	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Shop) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, func(id int) bool {
		_, ok := s.customers[id]
		delete(s.customers, id)
		return ok
	})
}

// Sales

type saleItemInput struct {
	Product   int             `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type saleInput struct {
	Customer      *int            `json:"customer"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
	Items         []saleItemInput `json:"items"`
}

type saleOutput struct {
	domain.Sale
	OutOfStockInfo []domain.OutOfStockNotice `json:"out_of_stock_info"`
}

func (s *Shop) handleListSales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	customer, _ := strconv.Atoi(r.URL.Query().Get("customer"))

	out := make([]domain.Sale, 0)
	for _, sale := range s.Sales() {
		if !inRange(sale.SaleDate.Time, from, to) {
			continue
		}
		if customer > 0 && (sale.Customer == nil || *sale.Customer != customer) {
			continue
		}
		out = append(out, sale)
	}
	s.writeList(w, r, out)
}

func (s *Shop) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	sale, found := s.sales[id]
	s.mu.Unlock()
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// handleCreateSale applies every item in one critical section. Items asking
// for more than the stock empty it and record the surplus as an out-of-stock
// sale.
func (s *Shop) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req saleInput
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSaleInputLocked(req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now().UTC()
	sale := domain.Sale{
		ID:            s.next("sales"),
		Customer:      req.Customer,
		PaymentMethod: defaultString(req.PaymentMethod, domain.PaymentCash),
		Notes:         req.Notes,
		SaleDate:      domain.NewMoment(now),
		CreatedAt:     domain.NewMoment(now),
	}
	notices := s.applySaleItemsLocked(&sale, req.Items)
	s.sales[sale.ID] = sale
	writeJSON(w, http.StatusCreated, saleOutput{Sale: sale, OutOfStockInfo: notices})
}

func (s *Shop) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req saleInput
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, found := s.sales[id]
	if !found {
		writeNotFound(w)
		return
	}
	if err := s.checkSaleInputLocked(req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.restoreSaleLocked(sale)
	sale.Customer = req.Customer
	sale.PaymentMethod = defaultString(req.PaymentMethod, sale.PaymentMethod)
	sale.Notes = req.Notes
	notices := s.applySaleItemsLocked(&sale, req.Items)
	s.sales[id] = sale
	writeJSON(w, http.StatusOK, saleOutput{Sale: sale, OutOfStockInfo: notices})
}

func (s *Shop) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, func(id int) bool {
		sale, ok := s.sales[id]
		if !ok {
			return false
		}
		s.restoreSaleLocked(sale)
		delete(s.sales, id)
		return true
	})
}

func (s *Shop) checkSaleInputLocked(req saleInput) error {
	if len(req.Items) == 0 {
		return errors.New("items: Au moins un article est requis.")
	}
	if req.Customer != nil {
		if _, ok := s.customers[*req.Customer]; !ok {
			return fmt.Errorf("customer: Clé primaire «%d» non valide", *req.Customer)
		}
	}
	for _, item := range req.Items {
		if _, ok := s.products[item.Product]; !ok {
			return fmt.Errorf("product: Clé primaire «%d» non valide", item.Product)
		}
		if item.Quantity < 1 {
			return errors.New("quantity: Assurez-vous que cette valeur est supérieure ou égale à 1.")
		}
	}
	return nil
}

func (s *Shop) applySaleItemsLocked(sale *domain.Sale, items []saleItemInput) []domain.OutOfStockNotice {
	notices := []domain.OutOfStockNotice{}
	total := decimal.Zero
	sale.Items = nil
	for _, in := range items {
		p := s.products[in.Product]
		if p.Stock < in.Quantity {
			surplus := in.Quantity - p.Stock
			p.Stock = 0
			saleID := sale.ID
			oos := domain.OutOfStockSale{
				ID:           s.next("out_of_stock"),
				Product:      p.ID,
				ProductName:  p.Name,
				QuantitySold: surplus,
				Sale:         &saleID,
				Notes:        fmt.Sprintf("Vente #%d", sale.ID),
				CreatedAt:    domain.NewMoment(s.now().UTC()),
			}
			s.outOfStock[oos.ID] = oos
			notices = append(notices, domain.OutOfStockNotice{Product: p.Name, Quantity: surplus})
		} else {
			p.Stock -= in.Quantity
		}
		s.products[p.ID] = p

		productID := p.ID
		subtotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		total = total.Add(subtotal)
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:          s.next("sale_items"),
			Product:     &productID,
			ProductName: p.Name,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    subtotal,
		})
	}
	sale.ItemsCount = len(sale.Items)
	sale.TotalAmount = total.StringFixed(2)
	return notices
}

func (s *Shop) restoreSaleLocked(sale domain.Sale) {
	for _, item := range sale.Items {
		if item.Product == nil {
			continue
		}
		if p, ok := s.products[*item.Product]; ok {
			p.Stock += item.Quantity
			s.products[p.ID] = p
		}
	}
	for id, oos := range s.outOfStock {
		if oos.Sale != nil && *oos.Sale == sale.ID {
			delete(s.outOfStock, id)
		}
	}
}

func (s *Shop) handleCheckStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []saleItemInput `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := domain.StockCheckResponse{Issues: []domain.StockIssue{}}
	for _, item := range req.Items {
		if item.Product == 0 || item.Quantity == 0 {
			continue
		}
		p, ok := s.products[item.Product]
		if !ok {
			resp.Issues = append(resp.Issues, domain.StockIssue{
				ProductID:   item.Product,
				ProductName: "Produit introuvable",
				Requested:   item.Quantity,
				Shortage:    item.Quantity,
			})
			continue
		}
		if p.Stock < item.Quantity {
			resp.Issues = append(resp.Issues, domain.StockIssue{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   item.Quantity,
				Available:   p.Stock,
				Shortage:    item.Quantity - p.Stock,
			})
		}
	}
	resp.HasIssues = len(resp.Issues) > 0
	writeJSON(w, http.StatusOK, resp)
}

func (s *Shop) handleListOutOfStock(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, s.OutOfStockSales())
}

func (s *Shop) handleExportSales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	sales := s.Sales()
	var rows [][]any
	total := decimal.Zero
	for i := len(sales) - 1; i >= 0; i-- {
		sale := sales[i]
		if !inRange(sale.SaleDate.Time, from, to) {
			continue
		}
		for _, item := range sale.Items {
			rows = append(rows, []any{
				sale.SaleDate.Format("02/01/2006"),
				sale.SaleDate.Format("15:04"),
				sale.ID,
				item.ProductName,
				item.Quantity,
				item.UnitPrice.InexactFloat64(),
				item.Subtotal.InexactFloat64(),
				sale.PaymentMethod,
			})
			total = total.Add(item.Subtotal)
		}
	}
	rows = append(rows, []any{}, []any{"TOTAL GÉNÉRAL", "", "", "", "", "", total.InexactFloat64(), ""})
	headers := []string{"Date", "Heure", "ID Vente", "Produit", "Quantité", "Prix Unitaire", "Total", "Méthode de Paiement"}
	s.writeWorkbook(w, r, "Rapport des Ventes", "rapport_ventes", headers, rows)
}

// Expenses

func (s *Shop) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	out := make([]domain.Expense, 0)
	for _, e := range s.Expenses() {
		if inRange(e.ExpenseDate.Time, from, to) {
			out = append(out, e)
		}
	}
	s.writeList(w, r, out)
}

func (s *Shop) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	e, ok := s.decodeExpense(w, r)
	if !ok {
		return
	}
	e.CreatedAt = domain.NewMoment(s.now().UTC())
	writeJSON(w, http.StatusCreated, s.AddExpense(e))
}

func (s *Shop) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, ok := s.decodeExpense(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	existing, found := s.expenses[id]
	if found {
		e.ID = id
		e.CreatedAt = existing.CreatedAt
		s.expenses[id] = e
	}
	s.mu.Unlock()

	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Shop) decodeExpense(w http.ResponseWriter, r *http.Request) (domain.Expense, bool) {
	var req domain.ExpenseWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return domain.Expense{}, false
	}
	if strings.TrimSpace(req.Description) == "" || !req.Amount.IsPositive() {
		writeDetail(w, http.StatusBadRequest, "description et montant sont obligatoires")
		return domain.Expense{}, false
	}
	date := domain.NewDate(s.now())
	if req.ExpenseDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.ExpenseDate)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "expense_date: format de date invalide")
			return domain.Expense{}, false
		}
		date = domain.NewDate(parsed)
	}

	e := domain.Expense{
		Category:      req.Category,
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount.StringFixed(2),
		ExpenseDate:   date,
		PaymentMethod: defaultString(req.PaymentMethod, domain.PaymentCash),
		Notes:         req.Notes,
	}
	if req.Category != nil {
		s.mu.Lock()
		cat, ok := s.categories[*req.Category]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("category: Clé primaire «%d» non valide", *req.Category))
			return domain.Expense{}, false
		}
		e.CategoryName = cat.Name
	}
	return e, true
}

func (s *Shop) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, func(id int) bool {
		_, ok := s.expenses[id]
		delete(s.expenses, id)
		return ok
	})
}

func (s *Shop) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	expenses := s.Expenses()
	var rows [][]any
	total := decimal.Zero
	for i := len(expenses) - 1; i >= 0; i-- {
		e := expenses[i]
		if !inRange(e.ExpenseDate.Time, from, to) {
			continue
		}
		amount := domain.ParseAmount(e.Amount)
		rows = append(rows, []any{e.ExpenseDate.Format("02/01/2006"), e.Description, e.CategoryName, amount.InexactFloat64(), e.PaymentMethod})
		total = total.Add(amount)
	}
	rows = append(rows, []any{}, []any{"TOTAL GÉNÉRAL", "", "", total.InexactFloat64(), ""})
	headers := []string{"Date", "Description", "Catégorie", "Montant", "Méthode de Paiement"}
	s.writeWorkbook(w, r, "Rapport des Dépenses", "rapport_depenses", headers, rows)
}

func (s *Shop) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := valuesByID(s.categories, func(c domain.ExpenseCategory) int { return c.ID })
	s.mu.Unlock()
	s.writeList(w, r, out)
}

func (s *Shop) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCategory
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeDetail(w, http.StatusBadRequest, "name: Ce champ ne peut être vide.")
		return
	}
	s.mu.Lock()
	req.ID = s.next("categories")
	s.categories[req.ID] = req
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, req)
}

// Invoices

func (s *Shop) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	customer, _ := strconv.Atoi(r.URL.Query().Get("customer"))
	s.mu.Lock()
	all := sortedInvoices(s.invoices)
	s.mu.Unlock()

	out := make([]domain.Invoice, 0, len(all))
	for _, inv := range all {
		if customer > 0 && (inv.Customer == nil || *inv.Customer != customer) {
			continue
		}
		out = append(out, inv)
	}
	s.writeList(w, r, out)
}

func (s *Shop) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	inv, found := s.invoices[id]
	s.mu.Unlock()
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Shop) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inv, err := s.buildInvoiceLocked(domain.Invoice{ID: s.next("invoices")}, req)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	inv.InvoiceNumber = invoiceNumber(inv.ID)
	inv.CreatedAt = domain.NewMoment(s.now().UTC())
	s.invoices[inv.ID] = inv
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Shop) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.InvoiceWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, found := s.invoices[id]
	if !found {
		writeNotFound(w)
		return
	}
	inv, err := s.buildInvoiceLocked(existing, req)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.invoices[id] = inv
	writeJSON(w, http.StatusOK, inv)
}

func (s *Shop) buildInvoiceLocked(inv domain.Invoice, req domain.InvoiceWriteRequest) (domain.Invoice, error) {
	customer, ok := s.customers[req.Customer]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("customer: Clé primaire «%d» non valide", req.Customer)
	}
	if len(req.Items) == 0 {
		return domain.Invoice{}, errors.New("items: Au moins une ligne est requise.")
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return domain.Invoice{}, errors.New("date: format de date invalide")
	}

	customerID := customer.ID
	inv.Customer = &customerID
	inv.CustomerName = customer.DisplayName()
	inv.Date = domain.NewDate(date)
	inv.Items = nil
	total := decimal.Zero
	for _, item := range req.Items {
		item.ID = s.next("invoice_items")
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.Subtotal)
		inv.Items = append(inv.Items, item)
	}
	inv.Subtotal = total.StringFixed(2)
	inv.TotalAmount = total.StringFixed(2)
	return inv, nil
}

func (s *Shop) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, func(id int) bool {
		_, ok := s.invoices[id]
		delete(s.invoices, id)
		return ok
	})
}

// handleInvoicePDF serves a minimal PDF document naming the invoice.
func (s *Shop) handleInvoicePDF(disposition string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		inv, found := s.invoices[id]
		s.mu.Unlock()
		if !found {
			writeNotFound(w)
			return
		}

		var buf bytes.Buffer
		fmt.Fprintf(&buf, "%%PDF-1.4\n%% Facture %s - %s - %s FCFA\n%%%%EOF\n", inv.InvoiceNumber, inv.CustomerName, inv.TotalAmount)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="facture_%s.pdf"`, disposition, inv.InvoiceNumber))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// helpers

func (s *Shop) writeWorkbook(w http.ResponseWriter, r *http.Request, sheetName string, prefix string, headers []string, rows [][]any) {
	var buf bytes.Buffer
	if err := sheet.WriteTable(&buf, sheetName, headers, rows); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	q := r.URL.Query()
	filename := fmt.Sprintf("%s_%s_%s.xlsx", prefix, defaultString(q.Get("date_from"), "all"), defaultString(q.Get("date_to"), "all"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeList answers with a bare array, or with one page of the paginated
// envelope when a page size is configured. A limit parameter always yields a
// single page.
func (s *Shop) writeList(w http.ResponseWriter, r *http.Request, items any) {
	list := toSlice(items)
	q := r.URL.Query()
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	if s.pageSize == 0 {
		writeJSON(w, http.StatusOK, list)
		return
	}

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	start := min((page-1)*s.pageSize, len(list))
	end := min(start+s.pageSize, len(list))

	var next any
	if end < len(list) && q.Get("limit") == "" {
		q.Set("page", strconv.Itoa(page+1))
		next = "http://" + r.Host + r.URL.Path + "?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(list),
		"next":     next,
		"previous": nil,
		"results":  list[start:end],
	})
}

func toSlice(items any) []any {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []any{}
	}
	return out
}

func (s *Shop) deleteByID(w http.ResponseWriter, r *http.Request, remove func(id int) bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	found := remove(id)
	s.mu.Unlock()
	if !found {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeNotFound(w)
		return 0, false
	}
	return id, true
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"date_from", &from}, {"date_to", &to}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, p.key+": format de date invalide")
			return time.Time{}, time.Time{}, false
		}
		*p.dst = parsed
	}
	return from, to, true
}

// inRange compares calendar days in UTC; zero bounds are open.
func inRange(t time.Time, from time.Time, to time.Time) bool {
	day := t.UTC().Format(time.DateOnly)
	if !from.IsZero() && day < from.Format(time.DateOnly) {
		return false
	}
	if !to.IsZero() && day > to.Format(time.DateOnly) {
		return false
	}
	return true
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return decoder.Decode(dest)
}

func writeNotFound(w http.ResponseWriter) {
	writeDetail(w, http.StatusNotFound, "Pas trouvé.")
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
