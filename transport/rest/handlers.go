package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
)

const maxBodySize = 1 << 16

type Handlers interface {
	CreateRoom(w http.ResponseWriter, r *http.Request)
	JoinRoom(w http.ResponseWriter, r *http.Request)
	UpdateBoard(w http.ResponseWriter, r *http.Request)
	GetRoom(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
}

type roomManager interface {
	CreateRoom(ctx context.Context, hostID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, code, guestID string) (*entity.Room, error)
	UpdateBoardAs(ctx context.Context, code, participantID string, state entity.GameState) (*entity.Room, error)
	GetRoom(ctx context.Context, code, viewerID string) (*entity.Room, error)
	History(ctx context.Context, code string) ([]*entity.GameRecord, entity.Tally, error)
}

type handlers struct {
	logger *slog.Logger
	rooms  roomManager
	auth   authService
}

func NewHandlers(logger *slog.Logger, rooms roomManager, auth authService) Handlers {
	return &handlers{
		logger: logger.With("component", "restHandlers"),
		rooms:  rooms,
		auth:   auth,
	}
}

// CreateRoom - POST /v1/rooms.
func (that *handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.HostID == "" {
		writeError(w, http.StatusBadRequest, errors.New("hostId is required"))
		return
	}

	room, err := that.rooms.CreateRoom(r.Context(), req.HostID)
	if err != nil {
		that.fail(w, "CreateRoom", err)
		return
	}

	that.seat(w, http.StatusCreated, room, req.HostID, entity.RoleHost)
}

// JoinRoom - POST /v1/rooms/{code}/join.
func (that *handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.GuestID == "" {
		writeError(w, http.StatusBadRequest, errors.New("guestId is required"))
		return
	}

	room, err := that.rooms.JoinRoom(r.Context(), mux.Vars(r)["code"], req.GuestID)
	if err != nil {
		that.fail(w, "JoinRoom", err)
		return
	}

	that.seat(w, http.StatusOK, room, req.GuestID, entity.RoleGuest)
}

// UpdateBoard - PUT /v1/rooms/{code}/board, host or guest only.
func (that *handlers) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	code, err := pathCode(r)
	if err != nil {
		that.fail(w, "UpdateBoard", err)
		return
	}

	claims, err := that.participant(r, code)
	if err != nil {
		that.fail(w, "UpdateBoard", err)
		return
	}

	var state entity.GameState
	if err = decodeBody(w, r, &state); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	room, err := that.rooms.UpdateBoardAs(r.Context(), code, claims.ParticipantID, state)
	if err != nil {
		that.fail(w, "UpdateBoard", err)
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// GetRoom - GET /v1/rooms/{code}. The token is optional while the room waits for a guest.
func (that *handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	code, err := pathCode(r)
	if err != nil {
		that.fail(w, "GetRoom", err)
		return
	}

	var viewerID string
	if extractBearerToken(r) != "" {
		claims, err := that.participant(r, code)
		if err != nil {
			that.fail(w, "GetRoom", err)
			return
		}
		viewerID = claims.ParticipantID
	}

	room, err := that.rooms.GetRoom(r.Context(), code, viewerID)
	if err != nil {
		that.fail(w, "GetRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// History - GET /v1/rooms/{code}/history, host or guest only.
func (that *handlers) History(w http.ResponseWriter, r *http.Request) {
	code, err := pathCode(r)
	if err != nil {
		that.fail(w, "History", err)
		return
	}

	if _, err = that.participant(r, code); err != nil {
		that.fail(w, "History", err)
		return
	}

	games, tally, err := that.rooms.History(r.Context(), code)
	if err != nil {
		that.fail(w, "History", err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Games: games, Tally: tally})
}

func (that *handlers) seat(w http.ResponseWriter, status int, room *entity.Room, participantID string, role entity.Role) {
	token, err := that.auth.GenerateParticipantToken(room.Code, participantID, role)
	if err != nil {
		that.fail(w, "seat", err)
		return
	}

	writeJSON(w, status, RoomResponse{Room: room, Token: token})
}

func (that *handlers) fail(w http.ResponseWriter, method string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "error", err)
	} else {
		that.logger.Debug("request rejected", "method", method, "error", err)
	}

	writeError(w, status, err)
}

func pathCode(r *http.Request) (string, error) {
	code, err := pkg.NormalizeRoomCode(mux.Vars(r)["code"])
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrRoomNotFound, err)
	}

	return code, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrRoomFull),
		errors.Is(err, apperror.ErrGameIsNotStarted),
		errors.Is(err, apperror.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrNotRoomMember):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrIdentityCreationFailed):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: apperror.KindOf(err)})
}
