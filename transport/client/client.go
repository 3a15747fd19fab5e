package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
	"github.com/rocketscienceinc/tictactoe-online/transport/rest"
	ws "github.com/rocketscienceinc/tictactoe-online/transport/websocket"
)

const requestTimeout = 10 * time.Second

// Client - the room API seen from a participant's device. It remembers the token of every seat it takes.
type Client struct {
	logger  *slog.Logger
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer

	mu     sync.Mutex
	tokens map[string]string
}

func New(logger *slog.Logger, baseURL string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}

	return &Client{
		logger:  logger.With("component", "roomClient"),
		baseURL: parsed,
		http:    &http.Client{Timeout: requestTimeout},
		dialer:  websocket.DefaultDialer,
		tokens:  make(map[string]string),
	}, nil
}

func (that *Client) CreateRoom(ctx context.Context, hostID string) (*entity.Room, error) {
	var resp rest.RoomResponse
	if err := that.do(ctx, http.MethodPost, "/v1/rooms", "", rest.CreateRoomRequest{HostID: hostID}, &resp); err != nil {
		return nil, err
	}

	that.remember(resp.Room.Code, resp.Token)

	return resp.Room, nil
}

func (that *Client) JoinRoom(ctx context.Context, code, guestID string) (*entity.Room, error) {
	var resp rest.RoomResponse

	path := "/v1/rooms/" + url.PathEscape(code) + "/join"
	if err := that.do(ctx, http.MethodPost, path, "", rest.JoinRoomRequest{GuestID: guestID}, &resp); err != nil {
		return nil, err
	}

	that.remember(resp.Room.Code, resp.Token)

	return resp.Room, nil
}

func (that *Client) UpdateBoard(ctx context.Context, code string, state entity.GameState) (*entity.Room, error) {
	token, err := that.token(code)
	if err != nil {
		return nil, err
	}

	var resp rest.RoomResponse
	if err = that.do(ctx, http.MethodPut, "/v1/rooms/"+url.PathEscape(code)+"/board", token, state, &resp); err != nil {
		return nil, err
	}

	return resp.Room, nil
}

// GetRoom - reads the room with the seat token when this client holds one.
func (that *Client) GetRoom(ctx context.Context, code string) (*entity.Room, error) {
	token, _ := that.token(code)

	var resp rest.RoomResponse
	if err := that.do(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(code), token, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Room, nil
}

func (that *Client) History(ctx context.Context, code string) (*rest.HistoryResponse, error) {
	token, err := that.token(code)
	if err != nil {
		return nil, err
	}

	var resp rest.HistoryResponse
	if err = that.do(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(code)+"/history", token, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Subscribe - opens the room socket; onUpdate gets the current snapshot first, then every change.
func (that *Client) Subscribe(
	ctx context.Context, code string, onUpdate func(*entity.Room),
) (repository.Subscription, error) {
	log := that.logger.With("method", "Subscribe", "code", code)

	token, err := that.token(code)
	if err != nil {
		return nil, err
	}

	endpoint := that.socketURL("/v1/ws/rooms/"+url.PathEscape(code), token)

	conn, resp, err := that.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open room socket: %w", errorFromStatus(resp.StatusCode, err.Error()))
		}
		return nil, fmt.Errorf("%w: failed to open room socket: %w", apperror.ErrStoreUnavailable, err)
	}

	sub := &socketSubscription{
		conn: conn,
		done: make(chan struct{}),
	}

	go func() {
		defer close(sub.done)

		for {
			var message ws.Message
			if err := conn.ReadJSON(&message); err != nil {
				if sub.markLost(err) {
					log.Warn("room socket closed", "error", err)
				}
				return
			}

			switch message.Action {
			case ws.ActionRoomUpdate:
				var room entity.Room
				if err := json.Unmarshal(message.Payload, &room); err != nil {
					log.Error("failed to unmarshal room update", "error", err)
					continue
				}
				onUpdate(&room)
			case ws.ActionError:
				log.Warn("room socket error", "payload", string(message.Payload))
			}
		}
	}()

	return sub, nil
}

func (that *Client) remember(code, token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.tokens[code] = token
}

func (that *Client) token(code string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	token, ok := that.tokens[strings.ToUpper(code)]
	if !ok {
		return "", fmt.Errorf("%w: no seat in room %s", apperror.ErrNotRoomMember, code)
	}

	return token, nil
}

func (that *Client) socketURL(path, token string) string {
	endpoint := *that.baseURL
	endpoint.Path += path
	endpoint.RawQuery = url.Values{"token": []string{token}}.Encode()

	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	return endpoint.String()
}

func (that *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, that.baseURL.String()+path, &payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := that.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp rest.ErrorResponse
		if err = json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return errorFromStatus(resp.StatusCode, resp.Status)
		}

		if errResp.Kind == "" {
			return errorFromStatus(resp.StatusCode, errResp.Error)
		}

		return apperror.FromKind(errResp.Kind, errResp.Error)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// errorFromStatus - best guess of the error kind when the server did not name one.
func errorFromStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", apperror.ErrRoomFull, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", apperror.ErrNotRoomMember, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", apperror.ErrInvalidToken, message)
	default:
		return fmt.Errorf("%w: %s", apperror.ErrStoreUnavailable, message)
	}
}

type socketSubscription struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	closing bool
	lost    error
}

// markLost - records why the socket ended unless Unsubscribe closed it; true when it was lost.
func (that *socketSubscription) markLost(err error) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closing {
		return false
	}

	that.lost = fmt.Errorf("%w: room socket closed: %w", apperror.ErrStoreUnavailable, err)

	return true
}

func (that *socketSubscription) Done() <-chan struct{} {
	return that.done
}

func (that *socketSubscription) Err() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.lost
}

func (that *socketSubscription) Unsubscribe() error {
	var err error

	that.once.Do(func() {
		that.mu.Lock()
		that.closing = true
		that.mu.Unlock()

		_ = that.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = that.conn.Close()
		<-that.done
	})

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close room socket: %w", err)
	}

	return nil
}
