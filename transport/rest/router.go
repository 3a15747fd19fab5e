package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter - the room API under /v1 plus the room push socket.
func NewRouter(handlers Handlers, ping PingHandler, roomSocket http.HandlerFunc) http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/ping", ping.PingHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/rooms", handlers.CreateRoom).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/rooms/{code}", handlers.GetRoom).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/rooms/{code}/join", handlers.JoinRoom).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/rooms/{code}/board", handlers.UpdateBoard).Methods(http.MethodPut, http.MethodOptions)
	v1.HandleFunc("/rooms/{code}/history", handlers.History).Methods(http.MethodGet, http.MethodOptions)

	// token travels in the query string, browsers cannot set headers on a websocket handshake
	v1.HandleFunc("/ws/rooms/{code}", roomSocket).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
