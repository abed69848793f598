package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamcart/cartsync/pkg/hub"
)

// NotificationEntry is one entry of the account-wide notification list.
type NotificationEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationStore keeps the in-memory notification list. Ordering is
// newest-first by arrival, not by timestamp: arrival order is authoritative
// for the list.
type NotificationStore struct {
	mu      sync.RWMutex
	entries []NotificationEntry
	unread  int
}

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// ApplyPush folds a ReceiveNotification payload into the list. The event is
// self-sufficient when the payload carries a message: the entry is prepended
// and the unread count incremented unless the entry arrived already read. A
// malformed payload leaves the list untouched and asks for a refetch
// instead.
func (s *NotificationStore) ApplyPush(data []byte) Outcome {
	p, err := hub.ParsePayload(data)
	if err != nil {
		return NeedsRefetch
	}

	message, ok := p.String("message", "content", "text")
	if !ok {
		return NeedsRefetch
	}
	// Some backend versions push without an id; the entry is still
	// displayable, it just needs a locally unique key.
	id, ok := p.String("id", "notificationId", "notification_id")
	if !ok {
		id = uuid.NewString()
	}

	entry := NotificationEntry{
		ID:        id,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	entry.Type, _ = p.String("type", "notificationType", "tag")
	entry.Link, _ = p.String("linkUrl", "deepLink", "url")
	if read, ok := p.Bool("isRead", "read"); ok {
		entry.IsRead = read
	}
	if ts, ok := p.String("createdAt", "timestamp"); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.CreatedAt = parsed
		}
	}

	s.mu.Lock()
	s.entries = append([]NotificationEntry{entry}, s.entries...)
	if !entry.IsRead {
		s.unread++
	}
	s.mu.Unlock()
	return SelfSufficient
}

// MarkAllRead flips every entry to read and resets the unread count to zero.
func (s *NotificationStore) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		s.entries[i].IsRead = true
	}
	s.unread = 0
}

// ReplaceAll swaps in an authoritative list, recomputing the unread count.
func (s *NotificationStore) ReplaceAll(entries []NotificationEntry) {
	unread := 0
	for _, e := range entries {
		if !e.IsRead {
			unread++
		}
	}
	s.mu.Lock()
	s.entries = append([]NotificationEntry(nil), entries...)
	s.unread = unread
	s.mu.Unlock()
}

// Snapshot returns a copy of the list and the unread count.
func (s *NotificationStore) Snapshot() ([]NotificationEntry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]NotificationEntry(nil), s.entries...), s.unread
}

// Unread returns the current unread count. It is never negative.
func (s *NotificationStore) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}
