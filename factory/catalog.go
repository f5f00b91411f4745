/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into the price lookups and payment
  method enumerations the billing engine consumes. This keeps tariffs
  out of code - hospital administration edits a JSON price list, and the
  factory produces the proper Go values.

WHY JSON?
  - Non-developers maintain the tariff
  - Easy integration with an admin UI
  - Version control for price revisions
  - The payment method list is deployment configuration, not domain
    knowledge baked into the engine

JSON SCHEMA:
  {
    "name": "General Hospital Tariff 2026",
    "payment_methods": ["Cash", "UPI", "Card", "Insurance"],
    "items": [
      {"name": "CBC", "price": 300, "category": "lab"},
      {"name": "Consultation", "price": 400, "category": "opd"}
    ]
  }

USAGE:
  catalog, err := factory.ParseCatalog(jsonStr)
  rec := labs.NewRegistration(catalog, catalog.Methods())

SEE ALSO:
  - ledger: PriceLookup interface and Method type
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a tariff catalog.
type CatalogJSON struct {
	Name           string            `json:"name"`
	PaymentMethods []string          `json:"payment_methods"`
	Items          []CatalogItemJSON `json:"items"`
}

// CatalogItemJSON is one priced entry.
type CatalogItemJSON struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"` // lab, opd, pharmacy
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is a parsed tariff: case-insensitive price lookups plus the
// closed payment method enumeration. It implements ledger.PriceLookup.
type Catalog struct {
	name    string
	prices  map[string]decimal.Decimal // keyed by lowercased name
	byCat   map[string][]string
	methods []ledger.Method
}

// ParseCatalog parses a JSON catalog definition.
func ParseCatalog(jsonStr string) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return FromJSON(cj)
}

// FromJSON builds a Catalog from the decoded schema.
func FromJSON(cj CatalogJSON) (*Catalog, error) {
	if len(cj.PaymentMethods) == 0 {
		return nil, fmt.Errorf("catalog %q: payment_methods must not be empty", cj.Name)
	}

	c := &Catalog{
		name:   cj.Name,
		prices: make(map[string]decimal.Decimal, len(cj.Items)),
		byCat:  make(map[string][]string),
	}

	for _, m := range cj.PaymentMethods {
		c.methods = append(c.methods, ledger.Method(m))
	}

	for _, it := range cj.Items {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if key == "" {
			return nil, fmt.Errorf("catalog %q: item with empty name", cj.Name)
		}
		if _, dup := c.prices[key]; dup {
			return nil, fmt.Errorf("catalog %q: duplicate item %q", cj.Name, it.Name)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("catalog %q: item %q has negative price", cj.Name, it.Name)
		}
		c.prices[key] = decimal.NewFromFloat(it.Price)
		c.byCat[it.Category] = append(c.byCat[it.Category], it.Name)
	}

	return c, nil
}

// PriceFor implements ledger.PriceLookup.
func (c *Catalog) PriceFor(name string) (decimal.Decimal, bool) {
	p, ok := c.prices[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Methods returns the configured payment method enumeration.
func (c *Catalog) Methods() []ledger.Method {
	out := make([]ledger.Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// Names returns the item names in a category (for pick lists).
func (c *Catalog) Names(category string) []string {
	out := make([]string, len(c.byCat[category]))
	copy(out, c.byCat[category])
	return out
}

// Name returns the catalog's display name.
func (c *Catalog) Name() string { return c.name }

// =============================================================================
// DEFAULT CATALOG - Seed tariff for dev and demos
// =============================================================================

// DefaultCatalogJSON is a small seed tariff used when no catalog file is
// supplied.
func DefaultCatalogJSON() string {
	return `{
  "name": "Default Tariff",
  "payment_methods": ["Cash", "UPI", "Card", "Insurance", "Bank Transfer", "Other"],
  "items": [
    {"name": "CBC", "price": 300, "category": "lab"},
    {"name": "LFT", "price": 500, "category": "lab"},
    {"name": "KFT", "price": 450, "category": "lab"},
    {"name": "Lipid Profile", "price": 600, "category": "lab"},
    {"name": "HbA1c", "price": 400, "category": "lab"},
    {"name": "Consultation", "price": 400, "category": "opd"},
    {"name": "Dressing", "price": 150, "category": "opd"},
    {"name": "Injection", "price": 100, "category": "opd"},
    {"name": "Paracetamol 500mg", "price": 20, "category": "pharmacy"},
    {"name": "Amoxicillin 250mg", "price": 85, "category": "pharmacy"}
  ]
}`
}
