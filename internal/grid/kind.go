package grid

// Kind describes one entity grid: which cell holds the name that resolves
// against the canonical list, and which cells feed the row total.
type Kind struct {
	Name          string
	NameField     string
	QuantityField string
	PriceField    string
	Fields        []string
	Defaults      map[string]string
	// Transactional rows need quantity > 0 and price > 0 to be saved.
	Transactional bool
	// AutoFill copies the canonical price when the name cell resolves.
	AutoFill bool
}

func (k Kind) hasField(field string) bool {
	for _, f := range k.Fields {
		if f == field {
			return true
		}
	}
	return false
}

var (
	SaleKind = Kind{
		Name:          "sale",
		NameField:     "product",
		QuantityField: "quantity",
		PriceField:    "unit_price",
		Fields:        []string{"product", "quantity", "unit_price"},
		Defaults:      map[string]string{"quantity": "1"},
		Transactional: true,
		AutoFill:      true,
	}
	InvoiceLineKind = Kind{
		Name:          "invoice_line",
		NameField:     "description",
		QuantityField: "quantity",
		PriceField:    "unit_price",
		Fields:        []string{"description", "quantity", "unit_price"},
		Defaults:      map[string]string{"quantity": "1"},
		Transactional: true,
		AutoFill:      true,
	}
	ExpenseKind = Kind{
		Name:       "expense",
		NameField:  "description",
		PriceField: "amount",
		Fields:     []string{"description", "amount", "expense_date", "payment_method", "category", "notes"},
		Defaults:   map[string]string{"payment_method": "cash"},
	}
	ProductKind = Kind{
		Name:          "product",
		NameField:     "name",
		QuantityField: "stock",
		PriceField:    "price",
		Fields:        []string{"name", "stock", "price", "description"},
		Defaults:      map[string]string{"stock": "0"},
	}
	CustomerKind = Kind{
		Name:      "customer",
		NameField: "first_name",
		Fields:    []string{"first_name", "last_name", "phone", "city"},
		Defaults:  map[string]string{},
	}
)
