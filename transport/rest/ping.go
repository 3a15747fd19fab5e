package rest

import (
	"context"
	"net/http"
	"time"
)

const pingTimeout = 2 * time.Second

type PingHandler interface {
	PingHandler(w http.ResponseWriter, r *http.Request)
}

// StoreCheck - reports whether the room store answers.
type StoreCheck func(ctx context.Context) error

type pingHandler struct {
	check StoreCheck
}

func NewPingHandler(check StoreCheck) PingHandler {
	return &pingHandler{check: check}
}

// PingHandler - GET /ping answers pong while the room store is reachable.
func (that *pingHandler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if that.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := that.check(ctx); err != nil {
			http.Error(w, "room store unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}
