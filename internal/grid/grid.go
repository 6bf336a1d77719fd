package grid

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/domain"
)

// PriceLookup resolves a canonical unit price by entity name.
type PriceLookup interface {
	PriceOf(name string) (decimal.Decimal, bool)
}

// DraftRow is one unsaved edit. LocalID is unique within a Grid and unrelated
// to the server id; EntityID is set only when editing an existing record.
type DraftRow struct {
	LocalID  int
	EntityID *int
	Fields   map[string]string
	Total    decimal.Decimal
}

func (r DraftRow) Field(name string) string {
	return r.Fields[name]
}

func (r DraftRow) clone() DraftRow {
	out := r
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	if r.EntityID != nil {
		id := *r.EntityID
		out.EntityID = &id
	}
	return out
}

// Grid holds the draft rows of one editing view. It never touches the
// network.
type Grid struct {
	mu     sync.Mutex
	kind   Kind
	prices PriceLookup
	nextID int
	rows   []DraftRow
}

func New(kind Kind, prices PriceLookup) *Grid {
	return &Grid{kind: kind, prices: prices, nextID: 1}
}

func (g *Grid) Kind() Kind {
	return g.kind
}

// AddRow appends a row carrying the kind defaults.
func (g *Grid) AddRow() DraftRow {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := g.newRowLocked(nil, nil)
	return row.clone()
}

// EditExisting opens a draft for a persisted record. When that record is
// already being edited the existing draft is returned unchanged.
func (g *Grid) EditExisting(entityID int, fields map[string]string) DraftRow {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, row := range g.rows {
		if row.EntityID != nil && *row.EntityID == entityID {
			return row.clone()
		}
	}
	id := entityID
	row := g.newRowLocked(&id, fields)
	return row.clone()
}

func (g *Grid) newRowLocked(entityID *int, fields map[string]string) DraftRow {
	row := DraftRow{LocalID: g.nextID, EntityID: entityID, Fields: make(map[string]string, len(g.kind.Fields))}
	g.nextID++
	for _, f := range g.kind.Fields {
		row.Fields[f] = g.kind.Defaults[f]
	}
	for k, v := range fields {
		if g.kind.hasField(k) {
			row.Fields[k] = v
		}
	}
	row.Total = g.totalOf(row.Fields)
	g.rows = append(g.rows, row)
	return row
}

// UpdateCell replaces one field of a row. It reports false for an unknown
// row or a field the kind does not carry.
func (g *Grid) UpdateCell(localID int, field string, value string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.kind.hasField(field) {
		return false
	}
	idx := g.indexLocked(localID)
	if idx < 0 {
		return false
	}

	next := g.rows[idx].clone()
	next.Fields[field] = value
	if field == g.kind.NameField && g.kind.AutoFill && g.prices != nil && g.kind.PriceField != "" {
		if strings.TrimSpace(next.Fields[g.kind.PriceField]) == "" {
			if price, ok := g.prices.PriceOf(value); ok {
				next.Fields[g.kind.PriceField] = price.String()
			}
		}
	}
	next.Total = g.totalOf(next.Fields)
	g.rows[idx] = next
	return true
}

// DeleteRow removes a row; unknown ids are ignored.
func (g *Grid) DeleteRow(localID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx := g.indexLocked(localID); idx >= 0 {
		g.rows = append(g.rows[:idx:idx], g.rows[idx+1:]...)
	}
}

// DeleteRows removes several rows, typically the ones a partial save
// already persisted.
func (g *Grid) DeleteRows(localIDs []int) {
	for _, id := range localIDs {
		g.DeleteRow(id)
	}
}

// Clear drops every draft. Local ids keep increasing afterwards.
func (g *Grid) Clear() {
	g.mu.Lock()
	g.rows = nil
	g.mu.Unlock()
}

func (g *Grid) Rows() []DraftRow {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]DraftRow, len(g.rows))
	for i, row := range g.rows {
		out[i] = row.clone()
	}
	return out
}

func (g *Grid) Row(localID int) (DraftRow, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx := g.indexLocked(localID); idx >= 0 {
		return g.rows[idx].clone(), true
	}
	return DraftRow{}, false
}

func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

func (g *Grid) GrandTotal() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := decimal.Zero
	for _, row := range g.rows {
		total = total.Add(row.Total)
	}
	return total
}

func (g *Grid) indexLocked(localID int) int {
	for i, row := range g.rows {
		if row.LocalID == localID {
			return i
		}
	}
	return -1
}

func (g *Grid) totalOf(fields map[string]string) decimal.Decimal {
	if g.kind.PriceField == "" {
		return decimal.Zero
	}
	price := domain.ParseAmount(fields[g.kind.PriceField])
	if g.kind.QuantityField == "" {
		return price
	}
	return domain.ParseAmount(fields[g.kind.QuantityField]).Mul(price)
}
