package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/session"
	"github.com/rocketscienceinc/tictactoe-online/transport/rest"
	ws "github.com/rocketscienceinc/tictactoe-online/transport/websocket"
)

// newRoomServer - answers room creation and serves a room socket that pushes one snapshot
// and then runs serveSocket.
func newRoomServer(t *testing.T, serveSocket func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	room := entity.NewRoom("room-1", "AB12CD", "host-1", time.Now().UTC())
	upgrader := websocket.Upgrader{}

	router := mux.NewRouter()
	router.HandleFunc("/v1/rooms", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rest.RoomResponse{Room: room, Token: "token"})
	}).Methods(http.MethodPost)

	router.HandleFunc("/v1/ws/rooms/{code}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		payload, err := json.Marshal(room)
		if err != nil {
			return
		}
		if err = conn.WriteJSON(ws.Message{Action: ws.ActionRoomUpdate, Payload: payload}); err != nil {
			return
		}

		serveSocket(conn)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server
}

func TestClient_SubscriptionEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("Dropped socket disconnects the session", func(t *testing.T) {
		// Given: a server that drops the room socket shortly after the first snapshot
		server := newRoomServer(t, func(*websocket.Conn) {
			time.Sleep(100 * time.Millisecond)
		})

		rooms, err := New(logger, server.URL)
		require.NoError(t, err)

		host := session.New(logger, rooms)
		defer host.LeaveRoom()

		// When: the host opens a room and the socket goes away
		host.CreateRoom(ctx)
		require.Equal(t, session.PhaseWaitingForOpponent, host.State().Phase)

		// Then: the session stops claiming a live connection
		require.Eventually(t, func() bool {
			return !host.State().Connected
		}, waitFor, tick)

		state := host.State()
		assert.Equal(t, session.PhaseError, state.Phase)
		assert.ErrorIs(t, state.Err, apperror.ErrStoreUnavailable)
		assert.NotEmpty(t, state.ErrorMessage)
	})

	t.Run("Unsubscribe is a clean end", func(t *testing.T) {
		// Given: a server that keeps the socket open until the client leaves
		server := newRoomServer(t, func(conn *websocket.Conn) {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})

		rooms, err := New(logger, server.URL)
		require.NoError(t, err)

		room, err := rooms.CreateRoom(ctx, "host-1")
		require.NoError(t, err)

		received := make(chan *entity.Room, 1)
		sub, err := rooms.Subscribe(ctx, room.Code, func(room *entity.Room) {
			received <- room
		})
		require.NoError(t, err)

		select {
		case snapshot := <-received:
			assert.Equal(t, room.Code, snapshot.Code)
		case <-time.After(waitFor):
			t.Fatal("no snapshot received")
		}

		// When: the client unsubscribes
		require.NoError(t, sub.Unsubscribe())

		// Then: the feed is over without an error
		select {
		case <-sub.Done():
		default:
			t.Fatal("subscription still running after Unsubscribe")
		}
		assert.NoError(t, sub.Err())
	})
}
