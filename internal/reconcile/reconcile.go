package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/grid"
	"boutique/backoffice/internal/store"
	"boutique/backoffice/internal/xid"
)

// API is the write surface of the REST client used by saves.
type API interface {
	CreateSale(ctx context.Context, req domain.SaleWriteRequest) (domain.SaleWriteResponse, error)
	UpdateSale(ctx context.Context, id int, req domain.SaleWriteRequest) (domain.SaleWriteResponse, error)
	CreateInvoice(ctx context.Context, req domain.InvoiceWriteRequest) (domain.Invoice, error)
	UpdateInvoice(ctx context.Context, id int, req domain.InvoiceWriteRequest) (domain.Invoice, error)
	CreateProduct(ctx context.Context, req domain.ProductWriteRequest) (domain.Product, error)
	UpdateProduct(ctx context.Context, id int, req domain.ProductWriteRequest) (domain.Product, error)
	CreateCustomer(ctx context.Context, req domain.CustomerWriteRequest) (domain.Customer, error)
	UpdateCustomer(ctx context.Context, id int, req domain.CustomerWriteRequest) (domain.Customer, error)
	CreateExpense(ctx context.Context, req domain.ExpenseWriteRequest) (domain.Expense, error)
	UpdateExpense(ctx context.Context, id int, req domain.ExpenseWriteRequest) (domain.Expense, error)
}

// Resolver maps human-entered names to canonical entities.
type Resolver interface {
	ProductByName(name string) (domain.Product, bool)
	CustomerByName(name string) (domain.Customer, bool)
}

// Refresher refetches canonical lists after the server state changed.
type Refresher interface {
	Invalidate(ctx context.Context)
	Refresh(ctx context.Context) error
}

// Options carries the sale or invoice header the grid rows belong to.
type Options struct {
	// EntityID is the sale or invoice being edited, nil for a new one.
	EntityID      *int
	Customer      string
	PaymentMethod string
	Notes         string
	Date          string
}

type Result struct {
	BatchID    string
	Kind       string
	Rows       []store.RowRecord
	Skipped    []int
	OutOfStock []domain.OutOfStockNotice
}

// Committed lists the local ids persisted by the save.
func (r Result) Committed() []int {
	var out []int
	for _, row := range r.Rows {
		if row.Outcome == apperr.RowCommitted {
			out = append(out, row.LocalID)
		}
	}
	return out
}

type Reconciler struct {
	api      API
	resolver Resolver
	refresh  Refresher
	journal  store.Journal
	validate *validator.Validate
	now      func() time.Time
	logger   logrus.FieldLogger
}

type Option func(*Reconciler)

func WithRefresher(r Refresher) Option {
	return func(rc *Reconciler) {
		rc.refresh = r
	}
}

func WithJournal(j store.Journal) Option {
	return func(rc *Reconciler) {
		rc.journal = j
	}
}

func WithClock(now func() time.Time) Option {
	return func(rc *Reconciler) {
		if now != nil {
			rc.now = now
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(rc *Reconciler) {
		if logger != nil {
			rc.logger = logger
		}
	}
}

func New(api API, resolver Resolver, opts ...Option) *Reconciler {
	rc := &Reconciler{
		api:      api,
		resolver: resolver,
		validate: validator.New(),
		now:      time.Now,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.logger = rc.logger.WithField("component", "reconcile")
	return rc
}

// Save validates, resolves and commits rows without a stock pre-check.
func (rc *Reconciler) Save(ctx context.Context, kind grid.Kind, rows []grid.DraftRow, opts Options) (Result, error) {
	plan, err := rc.Prepare(kind, rows, opts)
	if err != nil {
		return Result{Kind: kind.Name}, err
	}
	return rc.Commit(ctx, plan)
}

// Plan is a save that passed validation and name resolution. Building it
// performs no network calls.
type Plan struct {
	Kind    grid.Kind
	Options Options
	Rows    []PlannedRow
	Skipped []int

	// Sale and Invoice are set for kinds committed as one request.
	Sale    *domain.SaleWriteRequest
	Invoice *domain.InvoiceWriteRequest
}

// Items is what the stock pre-check needs; empty for non-sale kinds.
func (p Plan) Items() []domain.ResolvedItem {
	if p.Sale == nil {
		return nil
	}
	return append([]domain.ResolvedItem(nil), p.Sale.Items...)
}

// NeedsStockCheck reports whether the plan sells products.
func (p Plan) NeedsStockCheck() bool {
	return p.Sale != nil
}

type PlannedRow struct {
	LocalID  int
	EntityID *int
	Name     string
	Product  *domain.ProductWriteRequest
	Customer *domain.CustomerWriteRequest
	Expense  *domain.ExpenseWriteRequest
}

// Prepare filters rows to the valid ones and resolves every reference before
// anything is written. It fails with *apperr.ValidationError when no row is
// valid and with *apperr.ReferenceNotFoundError on the first unknown name.
func (rc *Reconciler) Prepare(kind grid.Kind, rows []grid.DraftRow, opts Options) (Plan, error) {
	plan := Plan{Kind: kind, Options: opts}
	var valid []grid.DraftRow
	for _, row := range rows {
		if rowIsValid(kind, row) {
			valid = append(valid, row)
		} else {
			plan.Skipped = append(plan.Skipped, row.LocalID)
		}
	}
	if len(valid) == 0 {
		return Plan{}, &apperr.ValidationError{Kind: kind.Name, Message: emptyMessage(kind)}
	}

	var err error
	switch kind.Name {
	case grid.SaleKind.Name:
		err = rc.planSale(&plan, valid)
	case grid.InvoiceLineKind.Name:
		err = rc.planInvoice(&plan, valid)
	case grid.ProductKind.Name:
		err = rc.planProducts(&plan, valid)
	case grid.CustomerKind.Name:
		err = rc.planCustomers(&plan, valid)
	case grid.ExpenseKind.Name:
		err = rc.planExpenses(&plan, valid)
	default:
		err = fmt.Errorf("reconcile: unsupported grid kind %q", kind.Name)
	}
	if err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (rc *Reconciler) planSale(plan *Plan, rows []grid.DraftRow) error {
	req := domain.SaleWriteRequest{
		PaymentMethod: firstNonEmpty(plan.Options.PaymentMethod, domain.PaymentCash),
		Notes:         plan.Options.Notes,
	}
	if name := strings.TrimSpace(plan.Options.Customer); name != "" {
		customer, ok := rc.resolver.CustomerByName(name)
		if !ok {
			return &apperr.ReferenceNotFoundError{Entity: "customer", Name: name}
		}
		id := customer.ID
		req.Customer = &id
	}

	for _, row := range rows {
		name := strings.TrimSpace(row.Field(grid.SaleKind.NameField))
		product, ok := rc.resolver.ProductByName(name)
		if !ok {
			return &apperr.ReferenceNotFoundError{Entity: "product", Name: name}
		}
		req.Items = append(req.Items, domain.ResolvedItem{
			ProductID: product.ID,
			Quantity:  quantityOf(row, grid.SaleKind),
			UnitPrice: priceOf(row, grid.SaleKind),
		})
		plan.Rows = append(plan.Rows, PlannedRow{LocalID: row.LocalID, Name: product.Name})
	}
	if err := rc.check(grid.SaleKind.Name, req); err != nil {
		return err
	}
	plan.Sale = &req
	return nil
}

func (rc *Reconciler) planInvoice(plan *Plan, rows []grid.DraftRow) error {
	name := strings.TrimSpace(plan.Options.Customer)
	if name == "" {
		return &apperr.ValidationError{Kind: grid.InvoiceLineKind.Name, Message: "an invoice needs a customer"}
	}
	customer, ok := rc.resolver.CustomerByName(name)
	if !ok {
		return &apperr.ReferenceNotFoundError{Entity: "customer", Name: name}
	}
	date, err := rc.isoDate(plan.Options.Date)
	if err != nil {
		return &apperr.ValidationError{Kind: grid.InvoiceLineKind.Name, Message: err.Error()}
	}

	req := domain.InvoiceWriteRequest{Customer: customer.ID, Date: date}
	for _, row := range rows {
		desc := strings.TrimSpace(row.Field(grid.InvoiceLineKind.NameField))
		req.Items = append(req.Items, domain.InvoiceItem{
			Description: desc,
			Quantity:    quantityOf(row, grid.InvoiceLineKind),
			UnitPrice:   priceOf(row, grid.InvoiceLineKind),
		})
		plan.Rows = append(plan.Rows, PlannedRow{LocalID: row.LocalID, Name: desc})
	}
	if err := rc.check(grid.InvoiceLineKind.Name, req); err != nil {
		return err
	}
	plan.Invoice = &req
	return nil
}

func (rc *Reconciler) planProducts(plan *Plan, rows []grid.DraftRow) error {
	for _, row := range rows {
		req := domain.ProductWriteRequest{
			Name:        strings.TrimSpace(row.Field("name")),
			Stock:       int(domain.ParseAmount(row.Field("stock")).IntPart()),
			Price:       domain.ParseAmount(row.Field("price")),
			Description: strings.TrimSpace(row.Field("description")),
			IsActive:    true,
		}
		if err := rc.check(grid.ProductKind.Name, req); err != nil {
			return err
		}
		plan.Rows = append(plan.Rows, PlannedRow{LocalID: row.LocalID, EntityID: row.EntityID, Name: req.Name, Product: &req})
	}
	return nil
}

func (rc *Reconciler) planCustomers(plan *Plan, rows []grid.DraftRow) error {
	for _, row := range rows {
		req := domain.CustomerWriteRequest{
			FirstName: strings.TrimSpace(row.Field("first_name")),
			LastName:  strings.TrimSpace(row.Field("last_name")),
			Phone:     strings.TrimSpace(row.Field("phone")),
			City:      strings.TrimSpace(row.Field("city")),
		}
		if err := rc.check(grid.CustomerKind.Name, req); err != nil {
			return err
		}
		name := strings.TrimSpace(req.FirstName + " " + req.LastName)
		plan.Rows = append(plan.Rows, PlannedRow{LocalID: row.LocalID, EntityID: row.EntityID, Name: name, Customer: &req})
	}
	return nil
}

func (rc *Reconciler) planExpenses(plan *Plan, rows []grid.DraftRow) error {
	for _, row := range rows {
		date, err := rc.isoDate(row.Field("expense_date"))
		if err != nil {
			return &apperr.ValidationError{Kind: grid.ExpenseKind.Name, Message: err.Error()}
		}
		req := domain.ExpenseWriteRequest{
			Description:   strings.TrimSpace(row.Field("description")),
			Amount:        domain.ParseAmount(row.Field("amount")),
			ExpenseDate:   date,
			PaymentMethod: firstNonEmpty(strings.TrimSpace(row.Field("payment_method")), domain.PaymentCash),
			Notes:         strings.TrimSpace(row.Field("notes")),
		}
		if raw := strings.TrimSpace(row.Field("category")); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil || id < 1 {
				return &apperr.ValidationError{Kind: grid.ExpenseKind.Name, Message: fmt.Sprintf("category %q is not a category id", raw)}
			}
			req.Category = &id
		}
		if err := rc.check(grid.ExpenseKind.Name, req); err != nil {
			return err
		}
		plan.Rows = append(plan.Rows, PlannedRow{LocalID: row.LocalID, EntityID: row.EntityID, Name: req.Description, Expense: &req})
	}
	return nil
}

// Commit writes a prepared plan. Sales and invoices go out as one request.
// Other kinds have no batch endpoint: rows are written in order and the first
// failure stops the loop with *apperr.PartialCommitError when earlier rows
// were already persisted.
func (rc *Reconciler) Commit(ctx context.Context, plan Plan) (Result, error) {
	result := Result{BatchID: xid.New("batch"), Kind: plan.Kind.Name, Skipped: plan.Skipped}

	var err error
	switch {
	case plan.Sale != nil:
		err = rc.commitSale(ctx, plan, &result)
	case plan.Invoice != nil:
		err = rc.commitInvoice(ctx, plan, &result)
	default:
		err = rc.commitSequential(ctx, plan, &result)
	}

	rc.record(ctx, result, err)
	if len(result.Committed()) > 0 {
		rc.refetch(ctx)
	}
	return result, err
}

func (rc *Reconciler) commitSale(ctx context.Context, plan Plan, result *Result) error {
	var (
		resp domain.SaleWriteResponse
		err  error
	)
	if plan.Options.EntityID != nil {
		resp, err = rc.api.UpdateSale(ctx, *plan.Options.EntityID, *plan.Sale)
	} else {
		resp, err = rc.api.CreateSale(ctx, *plan.Sale)
	}
	markAll(plan, result, err)
	if err != nil {
		return err
	}
	result.OutOfStock = resp.OutOfStockInfo
	return nil
}

func (rc *Reconciler) commitInvoice(ctx context.Context, plan Plan, result *Result) error {
	var err error
	if plan.Options.EntityID != nil {
		_, err = rc.api.UpdateInvoice(ctx, *plan.Options.EntityID, *plan.Invoice)
	} else {
		_, err = rc.api.CreateInvoice(ctx, *plan.Invoice)
	}
	markAll(plan, result, err)
	return err
}

func markAll(plan Plan, result *Result, err error) {
	outcome := apperr.RowCommitted
	msg := ""
	if err != nil {
		outcome = apperr.RowFailed
		msg = err.Error()
	}
	for _, row := range plan.Rows {
		result.Rows = append(result.Rows, store.RowRecord{LocalID: row.LocalID, Name: row.Name, EntityID: plan.Options.EntityID, Outcome: outcome, Error: msg})
	}
}

func (rc *Reconciler) commitSequential(ctx context.Context, plan Plan, result *Result) error {
	for i, row := range plan.Rows {
		entityID, err := rc.commitRow(ctx, row)
		if err == nil {
			result.Rows = append(result.Rows, store.RowRecord{LocalID: row.LocalID, Name: row.Name, EntityID: &entityID, Outcome: apperr.RowCommitted})
			continue
		}

		result.Rows = append(result.Rows, store.RowRecord{LocalID: row.LocalID, Name: row.Name, EntityID: row.EntityID, Outcome: apperr.RowFailed, Error: err.Error()})
		var pending []int
		for _, rest := range plan.Rows[i+1:] {
			pending = append(pending, rest.LocalID)
			result.Rows = append(result.Rows, store.RowRecord{LocalID: rest.LocalID, Name: rest.Name, EntityID: rest.EntityID, Outcome: apperr.RowNotAttempted})
		}
		committed := result.Committed()
		if len(committed) == 0 {
			return err
		}
		return &apperr.PartialCommitError{Committed: committed, Failed: row.LocalID, Pending: pending, Err: err}
	}
	return nil
}

func (rc *Reconciler) commitRow(ctx context.Context, row PlannedRow) (int, error) {
	switch {
	case row.Product != nil:
		if row.EntityID != nil {
			p, err := rc.api.UpdateProduct(ctx, *row.EntityID, *row.Product)
			return p.ID, err
		}
		p, err := rc.api.CreateProduct(ctx, *row.Product)
		return p.ID, err
	case row.Customer != nil:
		if row.EntityID != nil {
			c, err := rc.api.UpdateCustomer(ctx, *row.EntityID, *row.Customer)
			return c.ID, err
		}
		c, err := rc.api.CreateCustomer(ctx, *row.Customer)
		return c.ID, err
	case row.Expense != nil:
		if row.EntityID != nil {
			e, err := rc.api.UpdateExpense(ctx, *row.EntityID, *row.Expense)
			return e.ID, err
		}
		e, err := rc.api.CreateExpense(ctx, *row.Expense)
		return e.ID, err
	default:
		return 0, fmt.Errorf("reconcile: row %d has no payload", row.LocalID)
	}
}

func (rc *Reconciler) record(ctx context.Context, result Result, commitErr error) {
	if rc.journal == nil {
		return
	}
	batch := store.BatchRecord{
		ID:         result.BatchID,
		Kind:       result.Kind,
		Status:     store.BatchCommitted,
		Rows:       result.Rows,
		OutOfStock: result.OutOfStock,
		CreatedAt:  rc.now().UTC(),
	}
	if commitErr != nil {
		batch.Error = commitErr.Error()
		batch.Status = store.BatchFailed
		var partial *apperr.PartialCommitError
		if errors.As(commitErr, &partial) {
			batch.Status = store.BatchPartial
		}
	}
	if err := rc.journal.RecordBatch(ctx, batch); err != nil {
		rc.logger.WithError(err).WithField("batch", batch.ID).Warn("failed to journal save batch")
	}
}

func (rc *Reconciler) refetch(ctx context.Context) {
	if rc.refresh == nil {
		return
	}
	rc.refresh.Invalidate(ctx)
	if err := rc.refresh.Refresh(ctx); err != nil {
		rc.logger.WithError(err).Warn("canonical list refetch failed after save")
	}
}

// check runs the payload's validate tags and reports violations as a
// validation error naming the offending fields.
func (rc *Reconciler) check(kind string, payload any) error {
	err := rc.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s payload: %w", kind, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return &apperr.ValidationError{Kind: kind, Message: strings.Join(parts, "; ")}
}

// isoDate normalises a date cell. Blank means today; "02/01/2006" is
// accepted as the French day-first form.
func (rc *Reconciler) isoDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return rc.now().Format(time.DateOnly), nil
	}
	for _, layout := range []string{time.DateOnly, "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("date %q is not YYYY-MM-DD or DD/MM/YYYY", raw)
}

func rowIsValid(kind grid.Kind, row grid.DraftRow) bool {
	switch kind.Name {
	case grid.CustomerKind.Name:
		return strings.TrimSpace(row.Field("first_name")) != "" || strings.TrimSpace(row.Field("last_name")) != ""
	case grid.ExpenseKind.Name:
		return strings.TrimSpace(row.Field(kind.NameField)) != "" && domain.ParseAmount(row.Field(kind.PriceField)).IsPositive()
	}
	if strings.TrimSpace(row.Field(kind.NameField)) == "" {
		return false
	}
	if kind.Transactional {
		return quantityOf(row, kind) > 0 && priceOf(row, kind).IsPositive()
	}
	return true
}

func quantityOf(row grid.DraftRow, kind grid.Kind) int {
	return int(domain.ParseAmount(row.Field(kind.QuantityField)).IntPart())
}

func priceOf(row grid.DraftRow, kind grid.Kind) decimal.Decimal {
	return domain.ParseAmount(row.Field(kind.PriceField))
}

func emptyMessage(kind grid.Kind) string {
	switch kind.Name {
	case grid.SaleKind.Name:
		return "add at least one row with a product, a quantity and a price"
	case grid.InvoiceLineKind.Name:
		return "add at least one line with a description, a quantity and a price"
	case grid.ExpenseKind.Name:
		return "add at least one expense with a description and an amount"
	case grid.CustomerKind.Name:
		return "add at least one customer with a name"
	default:
		return "nothing valid to save"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
