package state

import (
	"errors"
	"sync"
)

// CartItem is one line of a livestream cart snapshot.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Stock     int     `json:"stock"`
}

// CartSnapshot is the full cart state for one livestream, with derived
// totals. Totals are only ever computed from an authoritative replace; no
// optimistic arithmetic is trusted for money.
type CartSnapshot struct {
	Items       []CartItem `json:"items"`
	TotalItems  int        `json:"totalItems"`
	TotalAmount float64    `json:"totalAmount"`
}

// ErrUnknownItem is returned when a quantity change names a line that is not
// in the snapshot.
var ErrUnknownItem = errors.New("cart item not in snapshot")

// CartStore holds the cart snapshot for one livestream. User mutations are
// clamped locally for immediate feedback, but the committed server value
// always wins on the next fetch: every mutation is followed by a refetch,
// never merged in place.
type CartStore struct {
	mu       sync.RWMutex
	snapshot CartSnapshot
}

// NewCartStore creates an empty cart store.
func NewCartStore() *CartStore {
	return &CartStore{}
}

// ClampQuantity bounds a requested quantity for an item to [0, stock].
// The returned value is what may be sent to the backend; requests outside
// the range are never sent as-is.
func (s *CartStore) ClampQuantity(itemID string, requested int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.snapshot.Items {
		if item.ID == itemID {
			return clamp(requested, 0, item.Stock), nil
		}
	}
	return 0, ErrUnknownItem
}

// CanIncrement reports whether the item's quantity is below its stock
// ceiling. Used to disable the + control at the bound.
func (s *CartStore) CanIncrement(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.snapshot.Items {
		if item.ID == itemID {
			return item.Quantity < item.Stock
		}
	}
	return false
}

// CanDecrement reports whether the item's quantity is above zero.
func (s *CartStore) CanDecrement(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.snapshot.Items {
		if item.ID == itemID {
			return item.Quantity > 0
		}
	}
	return false
}

// ApplySignal classifies a cart-related push (stock-changed, product-added,
// product-removed, generic update). All of them are change signals requiring
// an authoritative refetch; the push body is never merged.
func (s *CartStore) ApplySignal(data []byte) Outcome {
	return NeedsRefetch
}

// Replace installs an authoritative snapshot, recomputing derived totals
// from the line items.
func (s *CartStore) Replace(items []CartItem) {
	snap := CartSnapshot{Items: append([]CartItem(nil), items...)}
	for _, item := range snap.Items {
		snap.TotalItems += item.Quantity
		snap.TotalAmount += float64(item.Quantity) * item.UnitPrice
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns a copy of the current cart state.
func (s *CartStore) Snapshot() CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.snapshot
	cp.Items = append([]CartItem(nil), s.snapshot.Items...)
	return cp
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
