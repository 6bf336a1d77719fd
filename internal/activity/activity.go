package activity

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"boutique/backoffice/internal/apiclient"
	"boutique/backoffice/internal/domain"
)

const currencySuffix = "FCFA"

// Source is the slice of the REST client the feed reads from.
type Source interface {
	ListSales(ctx context.Context, params apiclient.ListParams) ([]domain.Sale, error)
	ListExpenses(ctx context.Context, params apiclient.ListParams) ([]domain.Expense, error)
	ListInvoices(ctx context.Context, params apiclient.ListParams) ([]domain.Invoice, error)
}

// Limits caps how many records each source contributes before merging.
type Limits struct {
	Sales    int
	Expenses int
	Invoices int
}

var DefaultLimits = Limits{Sales: 3, Expenses: 2, Invoices: 2}

type Aggregator struct {
	source  Source
	limits  Limits
	now     func() time.Time
	printer *message.Printer
	logger  logrus.FieldLogger
}

type Option func(*Aggregator)

func WithLimits(l Limits) Option {
	return func(a *Aggregator) {
		if l.Sales > 0 {
			a.limits.Sales = l.Sales
		}
		if l.Expenses > 0 {
			a.limits.Expenses = l.Expenses
		}
		if l.Invoices > 0 {
			a.limits.Invoices = l.Invoices
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLanguage sets the digit grouping used for amounts.
func WithLanguage(tag language.Tag) Option {
	return func(a *Aggregator) {
		a.printer = message.NewPrinter(tag)
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		limits:  DefaultLimits,
		now:     time.Now,
		printer: message.NewPrinter(language.French),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithField("component", "activity")
	return a
}

// BuildFeed fetches the three sources concurrently and returns at most
// maxItems entries, newest first. Equal timestamps are ordered sale, expense,
// invoice, then by descending record id. Any source failure fails the feed.
func (a *Aggregator) BuildFeed(ctx context.Context, maxItems int) ([]domain.ActivityEntry, error) {
	var (
		sales    []domain.Sale
		expenses []domain.Expense
		invoices []domain.Invoice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = a.source.ListSales(gctx, apiclient.ListParams{Limit: a.limits.Sales})
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = a.source.ListExpenses(gctx, apiclient.ListParams{Limit: a.limits.Expenses})
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = a.source.ListInvoices(gctx, apiclient.ListParams{Limit: a.limits.Invoices})
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.WithError(err).Debug("activity feed fetch failed")
		return nil, err
	}

	now := a.now()
	entries := make([]entry, 0, a.limits.Sales+a.limits.Expenses+a.limits.Invoices)
	for _, s := range head(sales, a.limits.Sales) {
		entries = append(entries, entry{id: s.ID, rank: 0, ActivityEntry: domain.ActivityEntry{
			SourceID:    "sale-" + strconv.Itoa(s.ID),
			Kind:        domain.ActivitySale,
			Title:       "Nouvelle vente",
			Description: fmt.Sprintf("Vente #%d - %s", s.ID, a.amount(s.TotalAmount)),
			Timestamp:   s.SaleDate,
			TimeAgo:     RelativeTime(now, s.SaleDate.In(now.Location())),
		}})
	}
	for _, e := range head(expenses, a.limits.Expenses) {
		desc := e.Description
		if desc == "" {
			desc = "Dépense"
		}
		entries = append(entries, entry{id: e.ID, rank: 1, ActivityEntry: domain.ActivityEntry{
			SourceID:    "expense-" + strconv.Itoa(e.ID),
			Kind:        domain.ActivityExpense,
			Title:       "Dépense enregistrée",
			Description: fmt.Sprintf("%s - %s", desc, a.amount(e.Amount)),
			Timestamp:   e.ExpenseDate,
			TimeAgo:     RelativeTime(now, e.ExpenseDate.In(now.Location())),
		}})
	}
	for _, inv := range head(invoices, a.limits.Invoices) {
		customer := inv.CustomerName
		if customer == "" {
			customer = "Client"
		}
		entries = append(entries, entry{id: inv.ID, rank: 2, ActivityEntry: domain.ActivityEntry{
			SourceID:    "invoice-" + strconv.Itoa(inv.ID),
			Kind:        domain.ActivityInvoice,
			Title:       "Facture créée",
			Description: fmt.Sprintf("Facture %s - %s", inv.InvoiceNumber, customer),
			Timestamp:   inv.Date,
			TimeAgo:     RelativeTime(now, inv.Date.In(now.Location())),
		}})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Timestamp.In(now.Location()), entries[j].Timestamp.In(now.Location())
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		if entries[i].rank != entries[j].rank {
			return entries[i].rank < entries[j].rank
		}
		return entries[i].id > entries[j].id
	})

	if maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}
	out := make([]domain.ActivityEntry, len(entries))
	for i, e := range entries {
		out[i] = e.ActivityEntry
	}
	return out, nil
}

type entry struct {
	domain.ActivityEntry
	id   int
	rank int
}

func (a *Aggregator) amount(raw string) string {
	value := domain.ParseAmount(raw).InexactFloat64()
	return a.printer.Sprint(number.Decimal(value, number.MaxFractionDigits(2))) + " " + currencySuffix
}

func head[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// RelativeTime labels ts relative to now. Timestamps in the future read as
// "just now"; anything a week or older gets a short absolute date.
func RelativeTime(now time.Time, ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d d ago", int(diff/(24*time.Hour)))
	default:
		return ts.In(now.Location()).Format("Jan 2")
	}
}
