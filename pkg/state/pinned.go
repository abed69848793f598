package state

import (
	"sync"
)

// PinnedProduct is the single product pinned in a livestream, as obtained
// from an authoritative fetch. At most one product is pinned per livestream.
type PinnedProduct struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Price       float64 `json:"price"`
	SKU         string  `json:"sku,omitempty"`
	VariantName string  `json:"variantName,omitempty"`
}

// PinnedStore holds the nullable pinned-product snapshot for one livestream.
//
// Pin and unpin pushes are change signals, not state: their payloads have
// been observed incomplete (unresolvable product names) often enough that
// the store never trusts a push body for display. ApplySignal therefore
// leaves the snapshot untouched and always requests a refetch; only
// Replace, fed from the REST backend, moves the visible state.
type PinnedStore struct {
	mu      sync.RWMutex
	current *PinnedProduct
}

// NewPinnedStore creates a store with nothing pinned.
func NewPinnedStore() *PinnedStore {
	return &PinnedStore{}
}

// ApplySignal classifies a pin-changed push. Always NeedsRefetch.
func (s *PinnedStore) ApplySignal(data []byte) Outcome {
	return NeedsRefetch
}

// Replace installs the authoritative snapshot. nil means nothing is pinned.
func (s *PinnedStore) Replace(p *PinnedProduct) {
	s.mu.Lock()
	if p == nil {
		s.current = nil
	} else {
		cp := *p
		s.current = &cp
	}
	s.mu.Unlock()
}

// Current returns the pinned product, or nil when nothing is pinned.
func (s *PinnedStore) Current() *PinnedProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}
