package state

import "testing"

func TestPinSignalsNeverTrustPushBody(t *testing.T) {
	s := NewPinnedStore()

	// Even a payload that looks complete must not move the snapshot.
	bodies := []string{
		`{"productId":"p1","name":"Mug","price":10}`,
		`{"productId":"p1"}`, // name unresolvable
		`not json`,
		``,
	}
	for _, body := range bodies {
		if got := s.ApplySignal([]byte(body)); got != NeedsRefetch {
			t.Fatalf("outcome = %v, want needs-refetch", got)
		}
		if s.Current() != nil {
			t.Fatal("signal mutated the snapshot")
		}
	}
}

func TestReplaceAndClear(t *testing.T) {
	s := NewPinnedStore()

	s.Replace(&PinnedProduct{ProductID: "p1", Name: "Mug", Price: 12.5, VariantName: "Blue"})
	got := s.Current()
	if got == nil || got.Name != "Mug" || got.VariantName != "Blue" {
		t.Fatalf("current = %+v", got)
	}

	// At most one pinned product: a replace swaps, never accumulates.
	s.Replace(&PinnedProduct{ProductID: "p2", Name: "Cap"})
	got = s.Current()
	if got == nil || got.ProductID != "p2" {
		t.Fatalf("current = %+v", got)
	}

	s.Replace(nil)
	if s.Current() != nil {
		t.Fatal("expected nothing pinned after nil replace")
	}
}

func TestCurrentIsACopy(t *testing.T) {
	s := NewPinnedStore()
	s.Replace(&PinnedProduct{ProductID: "p1", Name: "Mug"})

	got := s.Current()
	got.Name = "tampered"

	if s.Current().Name != "Mug" {
		t.Fatal("Current aliases internal state")
	}
}
