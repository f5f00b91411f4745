/*
items.go - Line item collection with reversible removal

PURPOSE:
  LineItemSet owns the billable items for one ledger instance: the
  baseline items loaded from the backend plus items added during the
  session. Removal is a soft mark, reversible until submit, so a user
  who mis-clicks never loses data.

INVARIANTS:
  1. Item names are unique (case-insensitive) among non-removed items
  2. A locked baseline item can never enter the pending-removal set
  3. Session-added items never appear in removed-id output; removing
     one simply discards it

TEMPORARY IDS:
  Session-added items receive ids from a monotonic session-local
  counter ("new-1", "new-2", ...) so the UI and RemoveItem can address
  them. These ids are stripped by the diff emitter and never reach the
  backend.

SEE ALSO:
  - totals.go: Gross total over EffectiveItems
  - diff.go: NewItems / RemovedItemIDs in the submit payload
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LINE ITEM SET
// =============================================================================

// LineItemSet maintains the authoritative item list for one bill.
type LineItemSet struct {
	baseline []LineItem
	added    []LineItem
	removed  map[ItemID]bool // baseline ids pending removal
	catalog  PriceLookup     // may be nil
	nextTemp int
}

// NewLineItemSet builds a set over the baseline items. catalog may be nil,
// in which case unpriced candidates default to zero.
func NewLineItemSet(baseline []LineItem, catalog PriceLookup) *LineItemSet {
	s := &LineItemSet{
		baseline: make([]LineItem, len(baseline)),
		removed:  make(map[ItemID]bool),
		catalog:  catalog,
	}
	copy(s.baseline, baseline)
	return s
}

// AddItem appends a session-added item. The candidate is rejected with
// DuplicateItemError if its name is already present among non-removed
// items (case-insensitive). Price resolution order: explicit candidate
// price, catalog lookup, zero. Payments are not touched.
func (s *LineItemSet) AddItem(c ItemCandidate) (LineItem, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return LineItem{}, fmt.Errorf("%w: empty name", ErrItemNotFound)
	}

	if existing, ok := s.findByName(name); ok {
		return LineItem{}, &DuplicateItemError{Name: name, Existing: existing.ID}
	}

	price := decimal.Zero
	switch {
	case c.Price != nil:
		price = *c.Price
	case s.catalog != nil:
		if p, ok := s.catalog.PriceFor(name); ok {
			price = p
		}
	}

	s.nextTemp++
	item := LineItem{
		ID:    ItemID(fmt.Sprintf("new-%d", s.nextTemp)),
		Name:  name,
		Price: price,
	}
	s.added = append(s.added, item)
	return item, nil
}

// RemoveItem marks a baseline item as pending removal, or discards a
// session-added item outright. Marking is idempotent: removing an already
// pending item is a no-op. Locked baseline items are rejected with
// LockedItemError and the state is unchanged.
func (s *LineItemSet) RemoveItem(id ItemID) error {
	for _, it := range s.baseline {
		if it.ID == id {
			if it.Locked {
				return &LockedItemError{ItemID: it.ID, Name: it.Name}
			}
			s.removed[id] = true
			return nil
		}
	}

	for i, it := range s.added {
		if it.ID == id {
			s.added = append(s.added[:i], s.added[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// UndoRemove takes a baseline item out of the pending-removal set.
// No-op if the id is not pending removal.
func (s *LineItemSet) UndoRemove(id ItemID) {
	delete(s.removed, id)
}

// EffectiveItems returns baseline items minus pending removals, plus
// session-added items, in stable order. This is the list totals and the
// UI render.
func (s *LineItemSet) EffectiveItems() []LineItem {
	out := make([]LineItem, 0, len(s.baseline)+len(s.added))
	for _, it := range s.baseline {
		if !s.removed[it.ID] {
			out = append(out, it)
		}
	}
	out = append(out, s.added...)
	return out
}

// AddedItems returns the session-added items.
func (s *LineItemSet) AddedItems() []LineItem {
	out := make([]LineItem, len(s.added))
	copy(out, s.added)
	return out
}

// RemovedIDs returns the baseline ids pending removal, in baseline order.
func (s *LineItemSet) RemovedIDs() []ItemID {
	var out []ItemID
	for _, it := range s.baseline {
		if s.removed[it.ID] {
			out = append(out, it.ID)
		}
	}
	return out
}

// Gross sums the prices of the effective items.
func (s *LineItemSet) Gross() decimal.Decimal {
	gross := decimal.Zero
	for _, it := range s.EffectiveItems() {
		gross = gross.Add(it.Price)
	}
	return gross
}

// findByName locates a non-removed item by case-insensitive name.
func (s *LineItemSet) findByName(name string) (LineItem, bool) {
	for _, it := range s.EffectiveItems() {
		if strings.EqualFold(it.Name, name) {
			return it, true
		}
	}
	return LineItem{}, false
}
