package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
	"github.com/rocketscienceinc/tictactoe-online/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type roomManager interface {
	Subscribe(ctx context.Context, code string, onUpdate func(*entity.Room)) (repository.Subscription, error)
	UpdateBoardAs(ctx context.Context, code, participantID string, state entity.GameState) (*entity.Room, error)
}

type authService interface {
	ValidateParticipantToken(tokenString string) (*service.ParticipantClaims, error)
}

type Server struct {
	logger   *slog.Logger
	rooms    roomManager
	auth     authService
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, conn *connection, message *Message) error
}

// connection - one participant socket bound to one room.
type connection struct {
	ws            *websocket.Conn
	code          string
	participantID string

	send chan []byte
	done chan struct{}
	once sync.Once

	// feed - closed when the room store stops delivering snapshots
	feed <-chan struct{}
}

func New(logger *slog.Logger, rooms roomManager, auth authService) *Server {
	server := &Server{
		logger: logger.With("component", "wsServer"),
		rooms:  rooms,
		auth:   auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]func(context.Context, *connection, *Message) error),
	}

	server.handlers[ActionRoomUpdate] = server.handleRoomUpdate

	return server
}

// ServeRoom - GET /v1/ws/rooms/{code}?token=... pushes every room snapshot, the current one first.
func (that *Server) ServeRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeRoom")

	code, err := pkg.NormalizeRoomCode(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	claims, err := that.auth.ValidateParticipantToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if claims.RoomCode != code {
		http.Error(w, "token not valid for this room", http.StatusForbidden)
		return
	}

	conn := &connection{
		code:          code,
		participantID: claims.ParticipantID,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
	}

	// subscribe before upgrading so a missing room is still a plain http error;
	// the initial snapshot waits in the send buffer
	sub, err := that.rooms.Subscribe(r.Context(), code, func(room *entity.Room) {
		message, err := newMessage(ActionRoomUpdate, room)
		if err != nil {
			log.Error("failed to build room update", "error", err)
			return
		}
		that.enqueue(conn, message)
	})
	if err != nil {
		log.Warn("failed to subscribe", "code", code, "error", err)
		http.Error(w, err.Error(), subscribeStatus(err))
		return
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn("failed to unsubscribe", "code", code, "error", err)
		}
	}()

	conn.feed = sub.Done()

	conn.ws, err = that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	go that.writePump(conn)

	log.Info("participant connected", "code", code, "role", claims.Role)

	that.readPump(r.Context(), conn)

	log.Info("participant disconnected", "code", code, "role", claims.Role)
}

// readPump - dispatches incoming messages until the peer goes away.
func (that *Server) readPump(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readPump")

	defer conn.close()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			that.sendError(conn, fmt.Errorf("invalid message: %w", err))
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			that.sendError(conn, fmt.Errorf("unknown action %q", message.Action))
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Debug("action failed", "action", message.Action, "error", err)
			that.sendError(conn, err)
		}
	}
}

func (that *Server) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.ws.Close()
	}()

	for {
		select {
		case message := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				conn.close()
				return
			}

		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.close()
				return
			}

		case <-conn.feed:
			// the peer must not mistake a dead feed for a quiet room
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "room updates unavailable"))
			conn.close()
			return

		case <-conn.done:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleRoomUpdate - the socket equivalent of PUT /v1/rooms/{code}/board.
func (that *Server) handleRoomUpdate(ctx context.Context, conn *connection, message *Message) error {
	var state entity.GameState
	if err := json.Unmarshal(message.Payload, &state); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidMove, err)
	}

	if _, err := that.rooms.UpdateBoardAs(ctx, conn.code, conn.participantID, state); err != nil {
		return err
	}

	return nil
}

// enqueue - a peer that cannot keep up is disconnected rather than slowing the room down.
func (that *Server) enqueue(conn *connection, message []byte) {
	select {
	case conn.send <- message:
	case <-conn.done:
	default:
		that.logger.Warn("send buffer full, dropping connection", "code", conn.code)
		conn.close()
	}
}

func (that *Server) sendError(conn *connection, err error) {
	message, buildErr := newErrorMessage(err)
	if buildErr != nil {
		that.logger.Error("failed to build error message", "error", buildErr)
		return
	}

	that.enqueue(conn, message)
}

func subscribeStatus(err error) int {
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return http.StatusNotFound
	}

	return http.StatusServiceUnavailable
}

func (that *connection) close() {
	that.once.Do(func() {
		close(that.done)
	})
}
