package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/streamcart/cartsync/pkg/state"
)

// ListNotifications returns the authoritative notification list,
// newest-first as the backend orders it.
func (c *Client) ListNotifications(ctx context.Context) ([]state.NotificationEntry, error) {
	var entries []state.NotificationEntry
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkAllNotificationsRead marks every notification read server-side.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil, nil)
}

// FetchCart returns the authoritative cart snapshot for a livestream.
func (c *Client) FetchCart(ctx context.Context, livestreamID string) ([]state.CartItem, error) {
	var items []state.CartItem
	path := "/api/livestreams/" + url.PathEscape(livestreamID) + "/cart"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateCartQuantity sets the quantity of one cart line. Callers clamp the
// quantity to [0, stock] before calling; the committed value still comes
// from the follow-up FetchCart.
func (c *Client) UpdateCartQuantity(ctx context.Context, livestreamID, itemID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity %d out of range", quantity)
	}
	path := "/api/livestreams/" + url.PathEscape(livestreamID) + "/cart/items/" + url.PathEscape(itemID)
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

// DeleteCartItem removes one line from the livestream cart.
func (c *Client) DeleteCartItem(ctx context.Context, livestreamID, itemID string) error {
	path := "/api/livestreams/" + url.PathEscape(livestreamID) + "/cart/items/" + url.PathEscape(itemID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// FetchPinnedProduct returns the currently pinned product of a livestream,
// or nil when nothing is pinned. The backend exposes a list endpoint but at
// most one product is pinned at a time; the head of the list wins.
func (c *Client) FetchPinnedProduct(ctx context.Context, livestreamID string) (*state.PinnedProduct, error) {
	var products []state.PinnedProduct
	path := "/api/livestreams/" + url.PathEscape(livestreamID) + "/pinned-products"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &products); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// CreateOrderRequest describes a checkout from a livestream cart.
type CreateOrderRequest struct {
	LivestreamID  string `json:"livestreamId,omitempty"`
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	// IdempotencyKey guards against duplicate submissions; filled with a
	// fresh UUID when empty.
	IdempotencyKey string `json:"idempotencyKey"`
}

// Order is the backend's view of a created order.
type Order struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"totalAmount"`
	PaymentURL  string    `json:"paymentUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateOrder submits a checkout.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// WalletFilter narrows a wallet transaction listing.
type WalletFilter struct {
	Type string // deposit, withdrawal, refund, ...
	From time.Time
	To   time.Time
	Page int
}

// WalletTransaction is one wallet ledger entry.
type WalletTransaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Balance   float64   `json:"balance"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListWalletTransactions returns wallet entries matching the filter.
func (c *Client) ListWalletTransactions(ctx context.Context, f WalletFilter) ([]WalletTransaction, error) {
	query := url.Values{}
	if f.Type != "" {
		query.Set("type", f.Type)
	}
	if !f.From.IsZero() {
		query.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		query.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}

	var txs []WalletTransaction
	if err := c.do(ctx, http.MethodGet, "/api/wallet/transactions", query, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
