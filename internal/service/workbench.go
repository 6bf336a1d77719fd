package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/grid"
	"boutique/backoffice/internal/reconcile"
	"boutique/backoffice/internal/stockcheck"
)

// ConfirmFunc is asked whether a sale should go through despite the listed
// shortages. It may block while the user decides.
type ConfirmFunc func(ctx context.Context, issues []domain.StockIssue) bool

// SaveReport describes one Save call that reached the backend or was
// stopped by the user.
type SaveReport struct {
	Result reconcile.Result
	Issues []domain.StockIssue
	// Overridden is set when the user confirmed a stock conflict.
	Overridden bool
	// Cancelled is set when the user declined a stock conflict; nothing was
	// written.
	Cancelled  bool
	FailedOpen bool
}

// Notice is the success dialog for a save.
func (r SaveReport) Notice() apperr.Notice {
	if r.Cancelled {
		return apperr.Notice{Title: "Save cancelled", Message: "Nothing was saved.", Severity: apperr.SeverityInfo}
	}
	msg := fmt.Sprintf("%d %s row(s) saved.", len(r.Result.Committed()), r.Result.Kind)
	if len(r.Result.OutOfStock) == 0 {
		return apperr.Success(msg)
	}
	parts := make([]string, 0, len(r.Result.OutOfStock))
	for _, n := range r.Result.OutOfStock {
		parts = append(parts, fmt.Sprintf("%s (%d)", n.Product, n.Quantity))
	}
	return apperr.Notice{
		Title:    "Saved with stock shortage",
		Message:  msg + " Sold beyond stock: " + strings.Join(parts, ", ") + ".",
		Severity: apperr.SeverityWarning,
	}
}

// Workbench is one editing view: a draft grid plus the save machinery. At
// most one save runs at a time, and a save whose view was closed while it
// was in flight never touches the grid.
type Workbench struct {
	svc        *Service
	grid       *grid.Grid
	negotiator *stockcheck.Negotiator
	logger     logrus.FieldLogger

	mu         sync.Mutex
	saving     bool
	closed     bool
	generation uint64
}

func newWorkbench(s *Service, kind grid.Kind) *Workbench {
	return &Workbench{
		svc:        s,
		grid:       grid.New(kind, s.catalog),
		negotiator: stockcheck.New(s.api, s.failOpen, stockcheck.WithLogger(s.logger)),
		logger:     s.logger.WithField("grid", kind.Name),
	}
}

func (w *Workbench) Grid() *grid.Grid {
	return w.grid
}

func (w *Workbench) Kind() grid.Kind {
	return w.grid.Kind()
}

func (w *Workbench) Saving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saving
}

// Close detaches the view. A save still in flight finishes on the server
// but its result is discarded with apperr.ErrStaleView.
func (w *Workbench) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.generation++
}

func (w *Workbench) begin() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, apperr.ErrStaleView
	}
	if w.saving {
		return 0, apperr.ErrBusy
	}
	w.saving = true
	return w.generation, nil
}

func (w *Workbench) end() {
	w.mu.Lock()
	w.saving = false
	w.mu.Unlock()
}

func (w *Workbench) stale(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || w.generation != gen
}

// Save commits the current drafts. Sales first go through the stock
// pre-check; a conflict is put to confirm, and a nil confirm declines it.
// Drafts are cleared only when everything was saved; after a partial commit
// only the persisted rows leave the grid.
func (w *Workbench) Save(ctx context.Context, opts reconcile.Options, confirm ConfirmFunc) (SaveReport, error) {
	gen, err := w.begin()
	if err != nil {
		return SaveReport{}, err
	}
	defer w.end()

	rows := w.grid.Rows()
	plan, err := w.svc.reconciler.Prepare(w.grid.Kind(), rows, opts)
	if err != nil {
		return SaveReport{}, err
	}

	var report SaveReport
	if plan.NeedsStockCheck() {
		defer w.negotiator.Reset()
		outcome, err := w.negotiator.Check(ctx, plan.Items())
		if err != nil {
			return report, err
		}
		report.FailedOpen = outcome.FailedOpen
		if outcome.State == stockcheck.Conflict {
			report.Issues = outcome.Issues
			if confirm == nil || !confirm(ctx, outcome.Issues) {
				if err := w.negotiator.Cancel(); err != nil {
					return report, err
				}
				report.Cancelled = true
				return report, nil
			}
			if _, err := w.negotiator.Confirm(); err != nil {
				return report, err
			}
			report.Overridden = true
		}
		if !w.negotiator.CanCommit() {
			return report, fmt.Errorf("stock check ended in state %s", w.negotiator.State())
		}
	}

	if w.stale(gen) {
		return report, apperr.ErrStaleView
	}

	report.Result, err = w.svc.reconciler.Commit(ctx, plan)
	if w.stale(gen) {
		w.logger.WithField("batch", report.Result.BatchID).Info("save finished after the view was closed")
		return report, apperr.ErrStaleView
	}

	var partial *apperr.PartialCommitError
	switch {
	case errors.As(err, &partial):
		w.grid.DeleteRows(partial.Committed)
		return report, err
	case err != nil:
		return report, err
	}

	sent := make([]int, 0, len(rows))
	for _, row := range rows {
		sent = append(sent, row.LocalID)
	}
	w.grid.DeleteRows(sent)
	w.logger.WithFields(logrus.Fields{
		"batch":     report.Result.BatchID,
		"committed": len(report.Result.Committed()),
		"skipped":   len(report.Result.Skipped),
	}).Info("drafts saved")
	return report, nil
}
