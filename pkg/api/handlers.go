package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/streamcart/cartsync/pkg/restapi"
	"github.com/streamcart/cartsync/pkg/version"
)

func (s *Server) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	entries, unread := s.agent.Notifications()

	response := NotificationsResponse{
		Notifications: entries,
		Unread:        unread,
		Count:         len(entries),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.MarkAllNotificationsRead(r.Context()); err != nil {
		s.writeAgentError(w, err)
		return
	}

	entries, unread := s.agent.Notifications()
	s.writeJSON(w, http.StatusOK, NotificationsResponse{
		Notifications: entries,
		Unread:        unread,
		Count:         len(entries),
	})
}

func (s *Server) HandleWatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Livestream id is required")
		return
	}

	if err := s.agent.Watch(r.Context(), id); err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, WatchResponse{LivestreamID: id, Watching: true})
}

func (s *Server) HandleUnwatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.agent.Unwatch(id)
	s.writeJSON(w, http.StatusOK, WatchResponse{LivestreamID: id, Watching: false})
}

func (s *Server) HandlePinned(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pinned, err := s.agent.Pinned(id)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PinnedResponse{LivestreamID: id, Pinned: pinned})
}

func (s *Server) HandleCart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snapshot, err := s.agent.Cart(id)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, CartResponse{LivestreamID: id, Cart: snapshot})
}

func (s *Server) HandleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, item := vars["id"], vars["item"]

	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", "Expected JSON with a quantity field")
		return
	}

	if err := s.agent.UpdateCartQuantity(r.Context(), id, item, req.Quantity); err != nil {
		s.writeAgentError(w, err)
		return
	}

	snapshot, err := s.agent.Cart(id)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CartResponse{LivestreamID: id, Cart: snapshot})
}

func (s *Server) HandleDeleteCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, item := vars["id"], vars["item"]

	if err := s.agent.DeleteCartItem(r.Context(), id, item); err != nil {
		s.writeAgentError(w, err)
		return
	}

	snapshot, err := s.agent.Cart(id)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CartResponse{LivestreamID: id, Cart: snapshot})
}

func (s *Server) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req restapi.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", "Expected a JSON order request")
		return
	}

	order, err := s.agent.CreateOrder(r.Context(), id, req)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) HandleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := restapi.WalletFilter{Type: q.Get("type")}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid date format", err.Error())
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid date format", err.Error())
			return
		}
		filter.To = t
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			s.writeError(w, http.StatusBadRequest, "Invalid page", "Page must be a positive integer")
			return
		}
		filter.Page = page
	}

	txs, err := s.agent.WalletTransactions(r.Context(), filter)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Watched:   s.agent.Watched(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
