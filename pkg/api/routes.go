package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the local API router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/notifications", s.HandleNotifications).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications/read-all", s.HandleMarkAllRead).Methods(http.MethodPost)

	r.HandleFunc("/api/livestreams/{id}/watch", s.HandleWatch).Methods(http.MethodPost)
	r.HandleFunc("/api/livestreams/{id}/unwatch", s.HandleUnwatch).Methods(http.MethodPost)
	r.HandleFunc("/api/livestreams/{id}/pinned", s.HandlePinned).Methods(http.MethodGet)
	r.HandleFunc("/api/livestreams/{id}/cart", s.HandleCart).Methods(http.MethodGet)
	r.HandleFunc("/api/livestreams/{id}/cart/items/{item}", s.HandleUpdateCartItem).Methods(http.MethodPut)
	r.HandleFunc("/api/livestreams/{id}/cart/items/{item}", s.HandleDeleteCartItem).Methods(http.MethodDelete)
	r.HandleFunc("/api/livestreams/{id}/orders", s.HandleCreateOrder).Methods(http.MethodPost)

	r.HandleFunc("/api/wallet/transactions", s.HandleWalletTransactions).Methods(http.MethodGet)

	r.HandleFunc("/ws/events", s.HandleEventsWS)
	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)

	return r
}
