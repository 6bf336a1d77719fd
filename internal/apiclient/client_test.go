package apiclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/fakeshop"
	"boutique/backoffice/internal/session"
	"boutique/backoffice/internal/sheet"
)

func newShopClient(t *testing.T, opts ...fakeshop.Option) (*fakeshop.Shop, *Client) {
	t.Helper()
	shop := fakeshop.New(opts...)
	if err := shop.AddUser("gerant", "motdepasse"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)

	client := New(srv.URL, session.New(nil), WithRetryDelay(0), WithTimeout(5*time.Second))
	if _, err := client.Login(context.Background(), "gerant", "motdepasse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return shop, client
}

func newRawClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.New(nil)
	if err := sess.Set(context.Background(), session.Tokens{Access: "token"}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	return New(srv.URL, sess, WithRetryDelay(0)), sess
}

func TestListAcceptsBareAndPaginatedShapes(t *testing.T) {
	for _, pageSize := range []int{0, 2} {
		shop, client := newShopClient(t, fakeshop.WithPageSize(pageSize))
		for _, name := range []string{"Agrafes", "Carton", "Colle", "Scotch", "Trombones"} {
			shop.AddProduct(domain.Product{Name: name, Price: decimal.NewFromInt(100)})
		}

		products, err := client.ListProducts(context.Background(), ListParams{})
		if err != nil {
			t.Fatalf("page size %d: list: %v", pageSize, err)
		}
		if len(products) != 5 || products[4].Name != "Trombones" {
			t.Fatalf("page size %d: expected all five products, got %+v", pageSize, products)
		}
	}
}

func TestListRejectsUnexpectedShapes(t *testing.T) {
	bodies := []string{`{"items": []}`, `"oops"`, `{"results": {}}`, `42`}
	for _, body := range bodies {
		client, _ := newRawClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
		_, err := client.ListSales(context.Background(), ListParams{})
		var server *apperr.ServerError
		if !errors.As(err, &server) {
			t.Fatalf("body %s: expected server error, got %v", body, err)
		}
	}
}

func TestUnauthorizedTearsDownSessionOnce(t *testing.T) {
	client, sess := newRawClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
	})
	logouts := 0
	sess.OnLogout(func(string) { logouts++ })

	_, err := client.ListSales(context.Background(), ListParams{})
	var expired *apperr.SessionExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if logouts != 1 {
		t.Fatalf("expected exactly one logout signal, got %d", logouts)
	}
	if sess.Active() {
		t.Fatalf("expected tokens cleared")
	}
}

func TestIdempotentGetIsRetriedOnce(t *testing.T) {
	shop, client := newShopClient(t)
	shop.Fail(http.MethodGet, "/sales/", http.StatusBadGateway, "upstream", 1)

	if _, err := client.ListSales(context.Background(), ListParams{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := shop.Calls(http.MethodGet, "/sales/"); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}

	shop.Fail(http.MethodGet, "/expenses/", http.StatusServiceUnavailable, "down", 5)
	_, err := client.ListExpenses(context.Background(), ListParams{})
	var server *apperr.ServerError
	if !errors.As(err, &server) || server.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 server error, got %v", err)
	}
	if got := shop.Calls(http.MethodGet, "/expenses/"); got != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", got)
	}
}

func TestWritesAreNeverRetried(t *testing.T) {
	shop, client := newShopClient(t)
	product := shop.AddProduct(domain.Product{Name: "Scotch", Stock: 3})
	shop.Fail(http.MethodPost, "/sales/", http.StatusBadGateway, "upstream", 1)

	_, err := client.CreateSale(context.Background(), domain.SaleWriteRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.ResolvedItem{{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(250)}},
	})
	if err == nil {
		t.Fatalf("expected the injected failure")
	}
	if got := shop.Calls(http.MethodPost, "/sales/"); got != 1 {
		t.Fatalf("expected a single POST, got %d", got)
	}
}

func TestClientErrorsCarryDetail(t *testing.T) {
	_, client := newShopClient(t)
	_, err := client.CreateSale(context.Background(), domain.SaleWriteRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.ResolvedItem{{ProductID: 77, Quantity: 1}},
	})
	var server *apperr.ServerError
	if !errors.As(err, &server) || server.Status != http.StatusBadRequest || !strings.Contains(server.Detail, "77") {
		t.Fatalf("expected 400 naming the product, got %v", err)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(url, session.New(nil), WithRetryDelay(0))
	_, err := client.ListProducts(context.Background(), ListParams{})
	var network *apperr.NetworkError
	if !errors.As(err, &network) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestDashboardStatsRequiresTwelveMonths(t *testing.T) {
	client, _ := newRawClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"monthly_revenue": [1, 2, 3]}`))
	})
	_, err := client.DashboardStats(context.Background())
	var server *apperr.ServerError
	if !errors.As(err, &server) {
		t.Fatalf("expected server error for short series, got %v", err)
	}
}

func TestCreateSaleReturnsOutOfStockInfo(t *testing.T) {
	shop, client := newShopClient(t)
	product := shop.AddProduct(domain.Product{Name: "Scotch", Stock: 1})

	resp, err := client.CreateSale(context.Background(), domain.SaleWriteRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.ResolvedItem{{ProductID: product.ID, Quantity: 4, UnitPrice: decimal.NewFromInt(250)}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(resp.OutOfStockInfo) != 1 || resp.OutOfStockInfo[0].Quantity != 3 {
		t.Fatalf("unexpected out of stock info: %+v", resp.OutOfStockInfo)
	}

	check, err := client.CheckStock(context.Background(), []domain.ResolvedItem{{ProductID: product.ID, Quantity: 1}})
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if !check.HasIssues || check.Issues[0].Available != 0 {
		t.Fatalf("expected shortage after the sale emptied the stock, got %+v", check)
	}
}

func TestDownloadsUseServerFilename(t *testing.T) {
	shop, client := newShopClient(t)
	customer := shop.AddCustomer(domain.Customer{FirstName: "Awa", LastName: "Diop"})
	inv, err := client.CreateInvoice(context.Background(), domain.InvoiceWriteRequest{
		Customer: customer.ID,
		Date:     "2024-12-04",
		Items:    []domain.InvoiceItem{{Description: "Conseil", Quantity: 1, UnitPrice: decimal.NewFromInt(10000)}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	var pdf bytes.Buffer
	dl, err := client.DownloadInvoicePDF(context.Background(), inv.ID, &pdf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if dl.Filename != "facture_"+inv.InvoiceNumber+".pdf" || !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")) {
		t.Fatalf("unexpected download %+v", dl)
	}

	var xlsx bytes.Buffer
	dl, err = client.ExportSalesReport(context.Background(), "2024-12-01", "", &xlsx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if dl.Filename != "rapport_ventes_2024-12-01_all.xlsx" || dl.Bytes == 0 {
		t.Fatalf("unexpected export %+v", dl)
	}
}

func TestAttachmentNameFallsBack(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", "fallback.pdf"},
		{`attachment; filename="report.xlsx"`, "report.xlsx"},
		{`inline; filename="../../etc/passwd"`, "passwd"},
		{"attachment", "fallback.pdf"},
		{`attachment; filename=".."`, "fallback.pdf"},
		{`attachment; filename="rapports/.."`, "fallback.pdf"},
		{`attachment; filename="facture \"A\".pdf"`, `facture "A".pdf`},
	}
	for _, tc := range cases {
		if got := attachmentName(tc.header, "fallback.pdf"); got != tc.want {
			t.Fatalf("attachmentName(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestImportProductsExcelUploadsMultipart(t *testing.T) {
	shop, client := newShopClient(t)
	shop.AddProduct(domain.Product{Name: "Scotch", Stock: 1})

	var workbook bytes.Buffer
	if err := sheet.WriteTable(&workbook, "Stock", []string{"designation", "quantite"}, [][]any{{"Scotch", 9}, {"Colle", 4}}); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	result, err := client.ImportProductsExcel(context.Background(), "/tmp/stock.xlsx", &workbook)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}
	if got := shop.Calls(http.MethodPost, "/products/import-excel/"); got != 1 {
		t.Fatalf("expected one upload, got %d", got)
	}
}

func TestPaginationLinksStayOnBaseHost(t *testing.T) {
	var calls int
	client, _ := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"count": 2, "next": "http://collector.example/sales/?page=3", "results": [{"id": 2}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count": 2, "next": "/sales/?page=2", "results": [{"id": 1}]}`))
	})

	_, err := client.ListSales(context.Background(), ListParams{})
	var server *apperr.ServerError
	if !errors.As(err, &server) || !strings.Contains(server.Detail, "collector.example") {
		t.Fatalf("expected foreign pagination link refused, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the relative link followed and the foreign one not, got %d calls", calls)
	}
}

func TestAccountAndCatalogOperations(t *testing.T) {
	shop, client := newShopClient(t)
	ctx := context.Background()

	profile, err := client.Profile(ctx)
	if err != nil || profile.Username != "gerant" {
		t.Fatalf("unexpected profile %+v (%v)", profile, err)
	}

	product := shop.AddProduct(domain.Product{Name: "Scotch", Stock: 2, Price: decimal.NewFromInt(250)})
	updated, err := client.UpdateProductStock(ctx, product.ID, domain.StockUpdateRequest{Quantity: 3, Action: domain.StockActionAdd})
	if err != nil || updated.Stock != 5 {
		t.Fatalf("unexpected stock update %+v (%v)", updated, err)
	}
	updated, err = client.UpdateProductStock(ctx, product.ID, domain.StockUpdateRequest{Quantity: 9, Action: domain.StockActionSubtract})
	if err != nil || updated.Stock != 0 {
		t.Fatalf("expected stock floored at zero, got %+v (%v)", updated, err)
	}
	if _, err := client.UpdateProductStock(ctx, product.ID+100, domain.StockUpdateRequest{Quantity: 1, Action: domain.StockActionSet}); err == nil {
		t.Fatalf("expected unknown product rejected")
	}

	created, err := client.CreateExpenseCategory(ctx, domain.ExpenseCategory{Name: "Loyer", Description: "Local"})
	if err != nil || created.ID == 0 {
		t.Fatalf("unexpected category %+v (%v)", created, err)
	}
	if _, err := client.CreateExpenseCategory(ctx, domain.ExpenseCategory{}); err == nil {
		t.Fatalf("expected a nameless category rejected")
	}
	categories, err := client.ListExpenseCategories(ctx)
	if err != nil || len(categories) != 1 || categories[0].Name != "Loyer" {
		t.Fatalf("unexpected categories %+v (%v)", categories, err)
	}
}

func TestOutOfStockSalesAreListed(t *testing.T) {
	shop, client := newShopClient(t)
	product := shop.AddProduct(domain.Product{Name: "Colle", Stock: 1})
	ctx := context.Background()

	none, err := client.ListOutOfStockSales(ctx)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no records yet, got %+v (%v)", none, err)
	}
	if _, err := client.CreateSale(ctx, domain.SaleWriteRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.ResolvedItem{{ProductID: product.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(500)}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	records, err := client.ListOutOfStockSales(ctx)
	if err != nil || len(records) != 1 || records[0].ProductName != "Colle" || records[0].QuantitySold != 2 {
		t.Fatalf("unexpected out of stock records %+v (%v)", records, err)
	}
}

func TestExpenseReportAndInvoicePreview(t *testing.T) {
	shop, client := newShopClient(t)
	ctx := context.Background()
	if _, err := client.CreateExpense(ctx, domain.ExpenseWriteRequest{
		Description: "Facture eau", Amount: decimal.NewFromInt(15000), ExpenseDate: "2024-12-02", PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	var xlsx bytes.Buffer
	dl, err := client.ExportExpensesReport(ctx, "", "2024-12-31", &xlsx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if dl.Filename != "rapport_depenses_all_2024-12-31.xlsx" || dl.Bytes == 0 || xlsx.Len() == 0 {
		t.Fatalf("unexpected export %+v", dl)
	}

	customer := shop.AddCustomer(domain.Customer{FirstName: "Awa", LastName: "Diop"})
	inv, err := client.CreateInvoice(ctx, domain.InvoiceWriteRequest{
		Customer: customer.ID,
		Date:     "2024-12-04",
		Items:    []domain.InvoiceItem{{Description: "Conseil", Quantity: 1, UnitPrice: decimal.NewFromInt(10000)}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	var pdf bytes.Buffer
	dl, err = client.PreviewInvoicePDF(ctx, inv.ID, &pdf)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if dl.ContentType != "application/pdf" || dl.Filename != "facture_"+inv.InvoiceNumber+".pdf" || !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")) {
		t.Fatalf("unexpected preview %+v", dl)
	}
	if got := shop.Calls(http.MethodGet, "/invoices/"+strconv.Itoa(inv.ID)+"/preview_pdf/"); got != 1 {
		t.Fatalf("expected one preview request, got %d", got)
	}
	if inv.Date.Format(time.DateOnly) != "2024-12-04" || !inv.Date.DateOnly {
		t.Fatalf("expected the invoice date kept as a calendar day, got %+v", inv.Date)
	}
}
