package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/activity"
	"boutique/backoffice/internal/apiclient"
	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/catalog"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/grid"
	"boutique/backoffice/internal/history"
	"boutique/backoffice/internal/reconcile"
	"boutique/backoffice/internal/sheet"
	"boutique/backoffice/internal/stockcheck"
	"boutique/backoffice/internal/store"
)

// API is everything the back office asks of the REST backend.
type API interface {
	reconcile.API
	stockcheck.Checker
	activity.Source
	catalog.Source
	Profile(ctx context.Context) (domain.UserProfile, error)
	DashboardStats(ctx context.Context) (domain.DashboardStats, error)
	DeleteSale(ctx context.Context, id int) error
	UpdateProductStock(ctx context.Context, id int, req domain.StockUpdateRequest) (domain.Product, error)
	ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error)
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (domain.ExpenseCategory, error)
	ListOutOfStockSales(ctx context.Context) ([]domain.OutOfStockSale, error)
	ImportProductsExcel(ctx context.Context, filename string, r io.Reader) (domain.ImportResult, error)
	ExportSalesReport(ctx context.Context, from string, to string, w io.Writer) (apiclient.Download, error)
	ExportExpensesReport(ctx context.Context, from string, to string, w io.Writer) (apiclient.Download, error)
	DownloadInvoicePDF(ctx context.Context, id int, w io.Writer) (apiclient.Download, error)
	PreviewInvoicePDF(ctx context.Context, id int, w io.Writer) (apiclient.Download, error)
}

// Service ties the backend client to the canonical catalog and the save
// machinery. Each editing view gets its own Workbench from it.
type Service struct {
	api        API
	catalog    *catalog.Catalog
	feed       *activity.Aggregator
	reconciler *reconcile.Reconciler
	journal    store.Journal
	failOpen   bool
	location   *time.Location
	labeler    history.Labeler
	feedLimits activity.Limits
	now        func() time.Time
	logger     logrus.FieldLogger
}

type Option func(*Service)

func WithJournal(j store.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithStockCheckFailOpen decides whether a failed stock pre-check lets the
// save continue.
func WithStockCheckFailOpen(failOpen bool) Option {
	return func(s *Service) {
		s.failOpen = failOpen
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithLabeler(label history.Labeler) Option {
	return func(s *Service) {
		if label != nil {
			s.labeler = label
		}
	}
}

func WithFeedLimits(l activity.Limits) Option {
	return func(s *Service) {
		s.feedLimits = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(api API, cat *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		api:        api,
		catalog:    cat,
		failOpen:   true,
		location:   time.Local,
		labeler:    history.FrenchDayLabel,
		feedLimits: activity.DefaultLimits,
		now:        time.Now,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = catalog.New(api, catalog.WithLogger(s.logger))
	}

	rcOpts := []reconcile.Option{
		reconcile.WithRefresher(s.catalog),
		reconcile.WithClock(s.now),
		reconcile.WithLogger(s.logger),
	}
	if s.journal != nil {
		rcOpts = append(rcOpts, reconcile.WithJournal(s.journal))
	}
	s.reconciler = reconcile.New(api, s.catalog, rcOpts...)
	s.feed = activity.New(api,
		activity.WithLimits(s.feedLimits),
		activity.WithClock(s.now),
		activity.WithLogger(s.logger),
	)
	s.logger = s.logger.WithField("component", "service")
	return s
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Feed is the recent-activity list of the dashboard.
func (s *Service) Feed(ctx context.Context, maxItems int) ([]domain.ActivityEntry, error) {
	return s.feed.BuildFeed(ctx, maxItems)
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	return s.api.DashboardStats(ctx)
}

func (s *Service) Profile(ctx context.Context) (domain.UserProfile, error) {
	return s.api.Profile(ctx)
}

func (s *Service) SalesHistory(ctx context.Context, params apiclient.ListParams) ([]history.DayGroup[domain.Sale], error) {
	sales, err := s.api.ListSales(ctx, params)
	if err != nil {
		return nil, err
	}
	return history.GroupSales(sales, s.location, s.labeler), nil
}

func (s *Service) ExpenseHistory(ctx context.Context, params apiclient.ListParams) ([]history.DayGroup[domain.Expense], error) {
	expenses, err := s.api.ListExpenses(ctx, params)
	if err != nil {
		return nil, err
	}
	return history.GroupExpenses(expenses, s.location, s.labeler), nil
}

// WriteSalesHistory renders the grouped sales history as a local workbook.
func (s *Service) WriteSalesHistory(ctx context.Context, params apiclient.ListParams, w io.Writer) error {
	groups, err := s.SalesHistory(ctx, params)
	if err != nil {
		return err
	}
	return sheet.WriteHistory(w, "Ventes", groups, func(sale domain.Sale) sheet.Line {
		desc := fmt.Sprintf("Vente #%d", sale.ID)
		if sale.CustomerName != nil && *sale.CustomerName != "" {
			desc += " - " + *sale.CustomerName
		}
		return sheet.Line{
			Date:        sale.SaleDate.In(s.location).Format("02/01/2006 15:04"),
			Description: desc,
			Amount:      domain.ParseAmount(sale.TotalAmount),
		}
	})
}

func (s *Service) WriteExpenseHistory(ctx context.Context, params apiclient.ListParams, w io.Writer) error {
	groups, err := s.ExpenseHistory(ctx, params)
	if err != nil {
		return err
	}
	return sheet.WriteHistory(w, "Dépenses", groups, func(e domain.Expense) sheet.Line {
		return sheet.Line{
			Date:        e.ExpenseDate.In(s.location).Format("02/01/2006"),
			Description: e.Description,
			Amount:      domain.ParseAmount(e.Amount),
		}
	})
}

func (s *Service) ExportSales(ctx context.Context, from string, to string, w io.Writer) (apiclient.Download, error) {
	return s.api.ExportSalesReport(ctx, from, to, w)
}

func (s *Service) ExportExpenses(ctx context.Context, from string, to string, w io.Writer) (apiclient.Download, error) {
	return s.api.ExportExpensesReport(ctx, from, to, w)
}

func (s *Service) InvoicePDF(ctx context.Context, id int, w io.Writer) (apiclient.Download, error) {
	return s.api.DownloadInvoicePDF(ctx, id, w)
}

// PreviewInvoicePDF fetches the inline rendering; the body is the same PDF.
func (s *Service) PreviewInvoicePDF(ctx context.Context, id int, w io.Writer) (apiclient.Download, error) {
	return s.api.PreviewInvoicePDF(ctx, id, w)
}

func (s *Service) ExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return s.api.ListExpenseCategories(ctx)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, name string, description string) (domain.ExpenseCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ExpenseCategory{}, &apperr.ValidationError{Kind: "expense category", Message: "the name is required"}
	}
	return s.api.CreateExpenseCategory(ctx, domain.ExpenseCategory{Name: name, Description: strings.TrimSpace(description)})
}

// AdjustStock changes the stock of a catalog product by name, then
// refetches the catalog so later sales see the new level.
func (s *Service) AdjustStock(ctx context.Context, product string, action string, quantity int) (domain.Product, error) {
	switch action {
	case domain.StockActionSet, domain.StockActionAdd, domain.StockActionSubtract:
	default:
		return domain.Product{}, &apperr.ValidationError{Kind: "stock", Message: fmt.Sprintf("unknown action %q", action)}
	}
	if quantity < 0 {
		return domain.Product{}, &apperr.ValidationError{Kind: "stock", Message: "the quantity cannot be negative"}
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		return domain.Product{}, err
	}
	p, ok := s.catalog.ProductByName(product)
	if !ok {
		return domain.Product{}, &apperr.ReferenceNotFoundError{Entity: "product", Name: product}
	}
	updated, err := s.api.UpdateProductStock(ctx, p.ID, domain.StockUpdateRequest{Quantity: quantity, Action: action})
	if err != nil {
		return domain.Product{}, err
	}
	s.refreshCatalog(ctx)
	return updated, nil
}

func (s *Service) OutOfStockSales(ctx context.Context) ([]domain.OutOfStockSale, error) {
	return s.api.ListOutOfStockSales(ctx)
}

// DeleteSale removes a sale; the backend puts its quantities back in stock,
// so the catalog is refetched.
func (s *Service) DeleteSale(ctx context.Context, id int) error {
	if err := s.api.DeleteSale(ctx, id); err != nil {
		return err
	}
	s.refreshCatalog(ctx)
	return nil
}

// ImportReport pairs the local pre-flight with the backend's answer.
type ImportReport struct {
	Preview sheet.ImportPreview
	Result  domain.ImportResult
}

// ImportProducts checks an xlsx workbook locally before uploading it, so a
// file without the expected columns never reaches the backend. Legacy .xls
// files cannot be read locally and are uploaded unchecked.
func (s *Service) ImportProducts(ctx context.Context, filename string, r io.Reader) (ImportReport, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xlsx" && ext != ".xls" {
		return ImportReport{}, &apperr.ValidationError{Kind: "product import", Message: "the file must be an Excel workbook (.xlsx or .xls)"}
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("read %s: %w", filename, err)
	}

	var report ImportReport
	if ext == ".xlsx" {
		report.Preview, err = sheet.InspectImport(bytes.NewReader(raw))
		if err != nil {
			return ImportReport{}, &apperr.ValidationError{Kind: "product import", Message: err.Error()}
		}
		if len(report.Preview.Rows) == 0 {
			return report, &apperr.ValidationError{Kind: "product import", Message: "the workbook has no product rows"}
		}
	}

	report.Result, err = s.api.ImportProductsExcel(ctx, filename, bytes.NewReader(raw))
	if err != nil {
		return report, err
	}
	s.refreshCatalog(ctx)
	return report, nil
}

// Journal lists the latest save batches, newest first.
func (s *Service) Journal(ctx context.Context, limit int) ([]store.BatchRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ListBatches(ctx, limit)
}

func (s *Service) refreshCatalog(ctx context.Context) {
	s.catalog.Invalidate(ctx)
	if err := s.catalog.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("catalog refresh failed")
	}
}

// NewWorkbench opens an editing view of the given kind.
func (s *Service) NewWorkbench(kind grid.Kind) *Workbench {
	return newWorkbench(s, kind)
}
