package api

import (
	"time"

	"github.com/streamcart/cartsync/pkg/state"
)

type NotificationsResponse struct {
	Notifications []state.NotificationEntry `json:"notifications"`
	Unread        int                       `json:"unread"`
	Count         int                       `json:"count"`
}

type PinnedResponse struct {
	LivestreamID string               `json:"livestream_id"`
	Pinned       *state.PinnedProduct `json:"pinned"`
}

type CartResponse struct {
	LivestreamID string             `json:"livestream_id"`
	Cart         state.CartSnapshot `json:"cart"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type WatchResponse struct {
	LivestreamID string `json:"livestream_id"`
	Watching     bool   `json:"watching"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Watched   []string  `json:"watched"`
}
