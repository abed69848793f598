// Package state holds the locally-held domain snapshots (notification list,
// pinned product, cart) and the pure reducers that fold incoming push events
// into them. Every mutation goes through a defined reducer entry point;
// stores are plain constructed objects so ownership and testing stay
// explicit.
//
// Each reducer classifies the event it was handed:
//
//   - SelfSufficient: the payload fully determines the next local state, no
//     server round-trip needed.
//   - NeedsRefetch: the event is only a change signal (or its payload is
//     partial or malformed); an authoritative refetch must materialize the
//     new state. Malformation is never fatal.
package state

// Outcome classifies a push event after reduction.
type Outcome int

const (
	// SelfSufficient means local state fully captures the update.
	SelfSufficient Outcome = iota
	// NeedsRefetch means an authoritative fetch is required.
	NeedsRefetch
)

func (o Outcome) String() string {
	if o == SelfSufficient {
		return "self-sufficient"
	}
	return "needs-refetch"
}
