package agent

import (
	"context"
	"fmt"

	"github.com/streamcart/cartsync/pkg/hub"
	"github.com/streamcart/cartsync/pkg/realtime"
	"github.com/streamcart/cartsync/pkg/restapi"
	"github.com/streamcart/cartsync/pkg/state"
)

// Watch starts synchronizing a livestream's pinned product and cart.
// Calling it again for the same livestream is a no-op beyond bumping the
// hub scope's refcount, so overlapping UI surfaces can watch freely.
func (a *Agent) Watch(ctx context.Context, livestreamID string) error {
	if livestreamID == "" {
		return fmt.Errorf("empty livestream id")
	}

	a.mu.Lock()
	sess, known := a.sessions[livestreamID]
	if !known {
		sess = &session{
			livestreamID: livestreamID,
			pinned:       state.NewPinnedStore(),
			cart:         state.NewCartStore(),
		}
		a.sessions[livestreamID] = sess
	}
	a.mu.Unlock()

	if !known {
		// Pinned-product and cart pushes are signals only. The payload is
		// never trusted; every event just arms the debounce window.
		for _, ev := range []string{hub.EventPinChanged, hub.EventProductAdded, hub.EventProductRemoved, hub.EventLivestreamUpdated} {
			a.hub.On(livestreamID, ev, a.pinnedSignal(sess))
		}
		a.hub.On(livestreamID, hub.EventStockChanged, a.cartSignal(sess))

		a.paintSession(sess)
	}

	if _, err := a.hub.Connect(ctx, livestreamID); err != nil {
		if !known {
			a.hub.Off(livestreamID)
			a.dropSession(livestreamID)
		}
		return fmt.Errorf("connecting livestream hub: %w", err)
	}

	if !known {
		a.sched.RefreshNow(a.key(livestreamID, DomainPinned), a.fetchPinned(sess))
		a.sched.RefreshNow(a.key(livestreamID, DomainCart), a.fetchCart(sess))
	}
	return nil
}

// Unwatch releases one reference on the livestream scope. When the last
// watcher leaves, pending fetches are cancelled, the session state and its
// cached snapshots are dropped, and the hub connection is released.
func (a *Agent) Unwatch(livestreamID string) {
	a.mu.Lock()
	_, known := a.sessions[livestreamID]
	a.mu.Unlock()
	if !known {
		return
	}

	last := a.hub.Release(livestreamID)
	if !last {
		return
	}

	a.sched.CancelScope(livestreamID)
	a.dropSession(livestreamID)
	if a.cache != nil {
		if err := a.cache.DeleteScope(livestreamID); err != nil {
			a.logger.Warnf("dropping cached snapshots for %s: %v", livestreamID, err)
		}
	}
	a.broadcast(livestreamID, DomainPinned, realtime.KindCleared)
	a.broadcast(livestreamID, DomainCart, realtime.KindCleared)
}

func (a *Agent) dropSession(livestreamID string) {
	a.mu.Lock()
	delete(a.sessions, livestreamID)
	a.mu.Unlock()
}

func (a *Agent) session(livestreamID string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[livestreamID]
}

// ErrNotWatching is returned for operations on an unwatched livestream.
var ErrNotWatching = fmt.Errorf("livestream not watched")

// Pinned returns the current pinned product of a watched livestream, or nil
// when nothing is pinned.
func (a *Agent) Pinned(livestreamID string) (*state.PinnedProduct, error) {
	sess := a.session(livestreamID)
	if sess == nil {
		return nil, ErrNotWatching
	}
	return sess.pinned.Current(), nil
}

// Cart returns the cart snapshot of a watched livestream.
func (a *Agent) Cart(livestreamID string) (state.CartSnapshot, error) {
	sess := a.session(livestreamID)
	if sess == nil {
		return state.CartSnapshot{}, ErrNotWatching
	}
	return sess.cart.Snapshot(), nil
}

// Watched lists the livestream ids with an active session.
func (a *Agent) Watched() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	return ids
}

// --- push handlers -------------------------------------------------------

func (a *Agent) pinnedSignal(sess *session) hub.Handler {
	return func(data []byte) {
		sess.pinned.ApplySignal(data)
		a.sched.Schedule(a.key(sess.livestreamID, DomainPinned), a.fetchPinned(sess))
	}
}

func (a *Agent) cartSignal(sess *session) hub.Handler {
	return func(data []byte) {
		sess.cart.ApplySignal(data)
		a.sched.Schedule(a.key(sess.livestreamID, DomainCart), a.fetchCart(sess))
	}
}

// --- authoritative fetches -----------------------------------------------

func (a *Agent) fetchPinned(sess *session) func(context.Context) error {
	return func(ctx context.Context) error {
		pinned, err := a.rest.FetchPinnedProduct(ctx, sess.livestreamID)
		if err != nil {
			return err
		}
		sess.pinned.Replace(pinned)
		a.cachePut(sess.livestreamID, DomainPinned, pinned)
		a.broadcast(sess.livestreamID, DomainPinned, realtime.KindReplace)
		return nil
	}
}

func (a *Agent) fetchCart(sess *session) func(context.Context) error {
	return func(ctx context.Context) error {
		items, err := a.rest.FetchCart(ctx, sess.livestreamID)
		if err != nil {
			return err
		}
		sess.cart.Replace(items)
		a.cachePut(sess.livestreamID, DomainCart, items)
		a.broadcast(sess.livestreamID, DomainCart, realtime.KindReplace)
		return nil
	}
}

// --- cart user actions ---------------------------------------------------

// UpdateCartQuantity clamps the requested quantity against known stock,
// sends it to the backend, then forces an immediate authoritative refetch
// so local totals come from the server rather than local math.
func (a *Agent) UpdateCartQuantity(ctx context.Context, livestreamID, itemID string, quantity int) error {
	sess := a.session(livestreamID)
	if sess == nil {
		return ErrNotWatching
	}
	clamped, err := sess.cart.ClampQuantity(itemID, quantity)
	if err != nil {
		return err
	}
	if err := a.rest.UpdateCartQuantity(ctx, livestreamID, itemID, clamped); err != nil {
		return err
	}
	a.sched.RefreshNow(a.key(livestreamID, DomainCart), a.fetchCart(sess))
	return nil
}

// DeleteCartItem removes an item server-side and refetches the cart.
func (a *Agent) DeleteCartItem(ctx context.Context, livestreamID, itemID string) error {
	sess := a.session(livestreamID)
	if sess == nil {
		return ErrNotWatching
	}
	if err := a.rest.DeleteCartItem(ctx, livestreamID, itemID); err != nil {
		return err
	}
	a.sched.RefreshNow(a.key(livestreamID, DomainCart), a.fetchCart(sess))
	return nil
}

// CreateOrder places an order from the watched livestream's cart and
// refetches the cart, which the backend empties on success.
func (a *Agent) CreateOrder(ctx context.Context, livestreamID string, req restapi.CreateOrderRequest) (*restapi.Order, error) {
	sess := a.session(livestreamID)
	if sess == nil {
		return nil, ErrNotWatching
	}
	req.LivestreamID = livestreamID
	order, err := a.rest.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	a.sched.RefreshNow(a.key(livestreamID, DomainCart), a.fetchCart(sess))
	return order, nil
}

// WalletTransactions proxies the wallet history endpoint.
func (a *Agent) WalletTransactions(ctx context.Context, filter restapi.WalletFilter) ([]restapi.WalletTransaction, error) {
	return a.rest.ListWalletTransactions(ctx, filter)
}

// --- cache paint ---------------------------------------------------------

func (a *Agent) paintSession(sess *session) {
	if a.cache == nil {
		return
	}
	var pinned *state.PinnedProduct
	if found, err := a.cache.Get(sess.livestreamID, DomainPinned, &pinned); err == nil && found {
		sess.pinned.Replace(pinned)
	}
	var items []state.CartItem
	if found, err := a.cache.Get(sess.livestreamID, DomainCart, &items); err == nil && found {
		sess.cart.Replace(items)
	}
}

func (a *Agent) cachePut(scope, domain string, v any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(scope, domain, v); err != nil {
		a.logger.Warnf("caching %s/%s: %v", scope, domain, err)
	}
}
