package state

import (
	"fmt"
	"testing"
	"time"
)

func TestApplyPushPrependsAndCountsUnread(t *testing.T) {
	s := NewNotificationStore()

	if got := s.ApplyPush([]byte(`{"id":"n1","message":"order shipped"}`)); got != SelfSufficient {
		t.Fatalf("outcome = %v", got)
	}
	if got := s.ApplyPush([]byte(`{"id":"n2","message":"flash sale","type":"Promotion"}`)); got != SelfSufficient {
		t.Fatalf("outcome = %v", got)
	}

	entries, unread := s.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("len = %d", len(entries))
	}
	// Newest-first by arrival.
	if entries[0].ID != "n2" || entries[1].ID != "n1" {
		t.Fatalf("arrival order broken: %v", entries)
	}
	if unread != 2 {
		t.Fatalf("unread = %d", unread)
	}
	if entries[0].Type != "Promotion" {
		t.Errorf("type = %q", entries[0].Type)
	}
}

func TestApplyPushAlreadyReadDoesNotIncrementUnread(t *testing.T) {
	s := NewNotificationStore()
	s.ApplyPush([]byte(`{"id":"n1","message":"seen elsewhere","isRead":true}`))
	if got := s.Unread(); got != 0 {
		t.Fatalf("unread = %d", got)
	}
}

func TestApplyPushMalformedNeedsRefetch(t *testing.T) {
	s := NewNotificationStore()
	tests := []struct {
		name string
		body string
	}{
		{"not json", `garbage`},
		{"missing message", `{"id":"n1"}`},
		{"array body", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ApplyPush([]byte(tt.body)); got != NeedsRefetch {
				t.Fatalf("outcome = %v, want needs-refetch", got)
			}
		})
	}
	if entries, unread := s.Snapshot(); len(entries) != 0 || unread != 0 {
		t.Fatal("malformed pushes must not touch the list")
	}
}

func TestApplyPushGeneratesFallbackID(t *testing.T) {
	s := NewNotificationStore()
	if got := s.ApplyPush([]byte(`{"message":"hello"}`)); got != SelfSufficient {
		t.Fatalf("outcome = %v, want self-sufficient", got)
	}
	entries, _ := s.Snapshot()
	if len(entries) != 1 || entries[0].ID == "" {
		t.Fatalf("entries = %+v, want one entry with a generated id", entries)
	}
}

func TestMarkAllRead(t *testing.T) {
	s := NewNotificationStore()
	for i := 0; i < 5; i++ {
		s.ApplyPush([]byte(fmt.Sprintf(`{"id":"n%d","message":"m"}`, i)))
	}

	s.MarkAllRead()

	entries, unread := s.Snapshot()
	if unread != 0 {
		t.Fatalf("unread = %d, want 0", unread)
	}
	for _, e := range entries {
		if !e.IsRead {
			t.Fatalf("entry %s still unread", e.ID)
		}
	}

	// Idempotent; unread never goes negative.
	s.MarkAllRead()
	if got := s.Unread(); got != 0 {
		t.Fatalf("unread after second mark = %d", got)
	}
}

func TestReplaceAllRecomputesUnread(t *testing.T) {
	s := NewNotificationStore()
	s.ApplyPush([]byte(`{"id":"stale","message":"old"}`))

	now := time.Now().UTC()
	s.ReplaceAll([]NotificationEntry{
		{ID: "a", Message: "one", IsRead: true, CreatedAt: now},
		{ID: "b", Message: "two", CreatedAt: now},
		{ID: "c", Message: "three", CreatedAt: now},
	})

	entries, unread := s.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("len = %d", len(entries))
	}
	if unread != 2 {
		t.Fatalf("unread = %d, want 2", unread)
	}
}

func TestApplyPushCaseInsensitivePayload(t *testing.T) {
	s := NewNotificationStore()
	out := s.ApplyPush([]byte(`{"Id":"n1","Message":"caps","IsRead":false,"LinkUrl":"/orders/1"}`))
	if out != SelfSufficient {
		t.Fatalf("outcome = %v", out)
	}
	entries, _ := s.Snapshot()
	if entries[0].Link != "/orders/1" {
		t.Errorf("link = %q", entries[0].Link)
	}
}
