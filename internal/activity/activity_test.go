package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/text/language"

	"boutique/backoffice/internal/apiclient"
	"boutique/backoffice/internal/domain"
)

type stubSource struct {
	sales    []domain.Sale
	expenses []domain.Expense
	invoices []domain.Invoice
	err      error
}

func (s *stubSource) ListSales(_ context.Context, _ apiclient.ListParams) ([]domain.Sale, error) {
	return s.sales, nil
}

func (s *stubSource) ListExpenses(_ context.Context, _ apiclient.ListParams) ([]domain.Expense, error) {
	return s.expenses, s.err
}

func (s *stubSource) ListInvoices(_ context.Context, _ apiclient.ListParams) ([]domain.Invoice, error) {
	return s.invoices, nil
}

func at(hh, mm int) domain.Moment {
	return domain.NewMoment(time.Date(2024, 12, 4, hh, mm, 0, 0, time.UTC))
}

func TestBareDatesAgeFromLocalMidnight(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 12, 4, 8, 0, 0, 0, west)
	src := &stubSource{
		sales:    []domain.Sale{{ID: 1, SaleDate: domain.NewMoment(now.Add(-time.Hour)), TotalAmount: "5000"}},
		expenses: []domain.Expense{{ID: 2, Amount: "2000", ExpenseDate: domain.NewDate(time.Date(2024, 12, 4, 0, 0, 0, 0, time.UTC))}},
	}
	agg := New(src, WithClock(func() time.Time { return now }), WithLanguage(language.English))

	feed, err := agg.BuildFeed(context.Background(), 4)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	if len(feed) != 2 || feed[0].SourceID != "sale-1" || feed[1].SourceID != "expense-2" {
		t.Fatalf("unexpected order %+v", feed)
	}
	if feed[1].TimeAgo != "8 h ago" {
		t.Fatalf("expected the expense aged from local midnight, got %q", feed[1].TimeAgo)
	}
}

func TestBuildFeedOrdersByTimestamp(t *testing.T) {
	src := &stubSource{
		sales:    []domain.Sale{{ID: 1, SaleDate: at(10, 0), TotalAmount: "5000"}},
		expenses: []domain.Expense{{ID: 2, Description: "Rent", Amount: "2000", ExpenseDate: at(9, 30)}},
		invoices: []domain.Invoice{{ID: 3, InvoiceNumber: "INV-1", Date: at(10, 5)}},
	}
	now := time.Date(2024, 12, 4, 10, 10, 0, 0, time.UTC)
	agg := New(src, WithClock(func() time.Time { return now }), WithLanguage(language.English))

	feed, err := agg.BuildFeed(context.Background(), 4)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(feed))
	}
	want := []string{"invoice-3", "sale-1", "expense-2"}
	for i, id := range want {
		if feed[i].SourceID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, feed[i].SourceID)
		}
	}
	if feed[1].Description != "Vente #1 - 5,000 FCFA" {
		t.Fatalf("unexpected sale description %q", feed[1].Description)
	}
	if feed[0].Description != "Facture INV-1 - Client" {
		t.Fatalf("unexpected invoice description %q", feed[0].Description)
	}
	if feed[0].TimeAgo != "5 min ago" || feed[2].TimeAgo != "40 min ago" {
		t.Fatalf("unexpected labels %q %q", feed[0].TimeAgo, feed[2].TimeAgo)
	}
}

func TestBuildFeedTieBreakAndTruncation(t *testing.T) {
	same := at(8, 0)
	src := &stubSource{
		sales:    []domain.Sale{{ID: 4, SaleDate: same}, {ID: 9, SaleDate: same}},
		expenses: []domain.Expense{{ID: 1, ExpenseDate: same}},
		invoices: []domain.Invoice{{ID: 2, Date: same}},
	}
	agg := New(src, WithClock(func() time.Time { return same.Time }))

	feed, err := agg.BuildFeed(context.Background(), 3)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	want := []string{"sale-9", "sale-4", "expense-1"}
	if len(feed) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(feed))
	}
	for i, id := range want {
		if feed[i].SourceID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, feed[i].SourceID)
		}
	}
}

func TestBuildFeedCapsEachSource(t *testing.T) {
	var sales []domain.Sale
	for i := 1; i <= 5; i++ {
		sales = append(sales, domain.Sale{ID: i, SaleDate: at(12, i)})
	}
	agg := New(&stubSource{sales: sales}, WithLimits(Limits{Sales: 3}))

	feed, err := agg.BuildFeed(context.Background(), 10)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("expected the sales cap of 3, got %d", len(feed))
	}
}

func TestBuildFeedSurfacesSourceErrors(t *testing.T) {
	boom := errors.New("expenses down")
	agg := New(&stubSource{err: boom})
	if _, err := agg.BuildFeed(context.Background(), 4); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{-5 * time.Minute, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "1 min ago"},
		{59 * time.Minute, "59 min ago"},
		{time.Hour, "1 h ago"},
		{23*time.Hour + 59*time.Minute, "23 h ago"},
		{24 * time.Hour, "1 d ago"},
		{6*24*time.Hour + 23*time.Hour, "6 d ago"},
		{7 * 24 * time.Hour, "Dec 13"},
	}
	for _, tc := range cases {
		if got := RelativeTime(now, now.Add(-tc.ago)); got != tc.want {
			t.Fatalf("RelativeTime(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
	if RelativeTime(now, time.Time{}) != "" {
		t.Fatalf("zero timestamp should have no label")
	}
}
