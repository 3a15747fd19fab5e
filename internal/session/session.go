package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
	"github.com/rocketscienceinc/tictactoe-online/internal/tictactoe"
)

type Subscription = repository.Subscription

// RoomStore - the shared room state a session mirrors.
// Subscribe must deliver snapshots of the room to onUpdate until the subscription is released.
type RoomStore interface {
	CreateRoom(ctx context.Context, hostID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, code, guestID string) (*entity.Room, error)
	UpdateBoard(ctx context.Context, code string, state entity.GameState) (*entity.Room, error)
	Subscribe(ctx context.Context, code string, onUpdate func(*entity.Room)) (Subscription, error)
}

// Session - one participant's local mirror of a room. Methods never return errors;
// store failures surface in State.ErrorMessage and invalid moves are ignored.
type Session struct {
	logger *slog.Logger
	store  RoomStore

	newID func() (string, error)
	now   func() time.Time

	scoreBoard *ScoreBoard

	mu            sync.Mutex
	state         State
	participantID string
	sub           Subscription
	// generation changes whenever the session enters or leaves a room; results of older calls are dropped
	generation uint64
	onChange   func(State)
	// recorded - the last game put on the scoreboard, cleared when a new game starts
	recorded *finishedGame
}

type finishedGame struct {
	roomCode string
	board    entity.Board
	outcome  entity.Outcome
}

// New - an online session backed by store.
func New(logger *slog.Logger, store RoomStore) *Session {
	return &Session{
		logger:     logger.With("component", "session"),
		store:      store,
		newID:      pkg.NewParticipantID,
		now:        func() time.Time { return time.Now().UTC() },
		scoreBoard: NewScoreBoard(),
		state:      State{Phase: PhaseIdle},
	}
}

// NewLocal - two players sharing one device, no room store involved.
func NewLocal(logger *slog.Logger) *Session {
	that := New(logger, nil)
	that.state = freshLocalState()

	return that
}

func freshLocalState() State {
	game := entity.NewGameState(entity.StatusPlaying)

	return State{
		Board:  game.Board,
		Turn:   game.Turn,
		Status: game.Status,
		Phase:  PhaseActive,
	}
}

// OnChange - registers the observer called after every state change.
// It runs on the goroutine that changed the state and must not call LeaveRoom synchronously.
func (that *Session) OnChange(observer func(State)) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.onChange = observer
}

func (that *Session) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// ParticipantID - the anonymous identity minted for the current room, empty outside a room.
func (that *Session) ParticipantID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.participantID
}

func (that *Session) ScoreBoard() *ScoreBoard {
	return that.scoreBoard
}

func (that *Session) IsLocal() bool {
	return that.store == nil
}

// CreateRoom - opens a room as host (X) and waits for an opponent.
func (that *Session) CreateRoom(ctx context.Context) {
	if that.IsLocal() {
		return
	}

	generation := that.enter(PhaseCreating)

	hostID, err := that.newID()
	if err != nil {
		that.fail(generation, fmt.Errorf("%w: %w", apperror.ErrIdentityCreationFailed, err))
		return
	}

	room, err := that.store.CreateRoom(ctx, hostID)
	if err != nil {
		that.fail(generation, err)
		return
	}

	if !that.seat(generation, hostID, entity.RoleHost, room) {
		return
	}

	that.subscribe(ctx, generation, room.Code)
}

// JoinRoom - takes the guest seat (O) of the room with the given code.
func (that *Session) JoinRoom(ctx context.Context, code string) {
	if that.IsLocal() {
		return
	}

	generation := that.enter(PhaseJoining)

	guestID, err := that.newID()
	if err != nil {
		that.fail(generation, fmt.Errorf("%w: %w", apperror.ErrIdentityCreationFailed, err))
		return
	}

	room, err := that.store.JoinRoom(ctx, code, guestID)
	if err != nil {
		that.fail(generation, err)
		return
	}

	if !that.seat(generation, guestID, entity.RoleGuest, room) {
		return
	}

	that.subscribe(ctx, generation, room.Code)
}

// SubmitMove - plays cell for this participant. Ignored unless the game is active and it is our turn.
func (that *Session) SubmitMove(ctx context.Context, cell int) {
	log := that.logger.With("method", "SubmitMove")

	that.mu.Lock()

	if phase := that.state.Phase; phase != PhaseActive || that.state.Outcome.IsDecided() || !that.state.IsMyTurn() {
		that.mu.Unlock()
		log.Debug("move ignored", "cell", cell, "phase", phase)
		return
	}

	next, err := tictactoe.MakeTurn(that.state.GameState(), cell)
	if err != nil {
		that.mu.Unlock()
		log.Debug("move ignored", "cell", cell, "error", err)
		return
	}

	that.applyLocked(next)
	that.clearErrorLocked()

	code, generation := that.state.RoomCode, that.generation
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()

	if that.IsLocal() {
		return
	}

	that.push(ctx, generation, code, next)
}

// ResetGame - clears the board for a new game in the same room; X moves first again.
func (that *Session) ResetGame(ctx context.Context) {
	that.mu.Lock()

	if that.IsLocal() {
		that.state = freshLocalState()
		that.recorded = nil
		changed := that.snapshotLocked()
		that.mu.Unlock()

		changed()
		return
	}

	if !that.state.InRoom() || that.state.Status == entity.StatusWaiting {
		that.mu.Unlock()
		return
	}

	next := entity.NewGameState(entity.StatusPlaying)
	that.applyLocked(next)
	that.clearErrorLocked()

	code, generation := that.state.RoomCode, that.generation
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()

	that.push(ctx, generation, code, next)
}

// LeaveRoom - releases the subscription and returns to idle. The scoreboard is kept.
func (that *Session) LeaveRoom() {
	if that.IsLocal() {
		return
	}

	that.mu.Lock()
	sub := that.sub
	that.sub = nil
	that.generation++
	that.participantID = ""
	that.recorded = nil
	that.state = State{Phase: PhaseIdle}
	changed := that.snapshotLocked()
	that.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			that.logger.Warn("failed to release room subscription", "error", err)
		}
	}

	changed()
}

// OnRemoteUpdate - replaces the local mirror with the received snapshot; last writer wins.
func (that *Session) OnRemoteUpdate(room *entity.Room) {
	that.mu.Lock()
	generation := that.generation
	that.mu.Unlock()

	that.remoteUpdate(generation, room)
}

func (that *Session) remoteUpdate(generation uint64, room *entity.Room) {
	if room == nil {
		return
	}

	that.mu.Lock()

	if generation != that.generation || room.Code != that.state.RoomCode {
		that.mu.Unlock()
		return
	}

	that.applyLocked(room.State())
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()
}

// enter - starts a create or join attempt, dropping whatever room the session was in.
func (that *Session) enter(phase Phase) uint64 {
	that.mu.Lock()
	sub := that.sub
	that.sub = nil
	that.generation++
	generation := that.generation
	that.participantID = ""
	that.recorded = nil
	that.state = State{Phase: phase}
	changed := that.snapshotLocked()
	that.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			that.logger.Warn("failed to release room subscription", "error", err)
		}
	}

	changed()

	return generation
}

// seat - records the participant's seat in room; false when the attempt was superseded.
func (that *Session) seat(generation uint64, participantID string, role entity.Role, room *entity.Room) bool {
	that.mu.Lock()

	if generation != that.generation {
		that.mu.Unlock()
		return false
	}

	that.participantID = participantID
	that.state.RoomCode = room.Code
	that.state.Role = role
	that.state.Mark = role.Mark()
	that.applyLocked(room.State())
	changed := that.snapshotLocked()
	that.mu.Unlock()

	that.logger.Info("seated in room", "code", room.Code, "role", role)
	changed()

	return true
}

func (that *Session) subscribe(ctx context.Context, generation uint64, code string) {
	sub, err := that.store.Subscribe(ctx, code, func(room *entity.Room) {
		that.remoteUpdate(generation, room)
	})
	if err != nil {
		that.fail(generation, err)
		return
	}

	that.mu.Lock()

	if generation != that.generation {
		that.mu.Unlock()
		_ = sub.Unsubscribe()
		return
	}

	that.sub = sub
	that.state.Connected = true
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()

	go that.watch(generation, sub)
}

// watch - waits for the feed to end; a feed lost without LeaveRoom disconnects the session.
func (that *Session) watch(generation uint64, sub Subscription) {
	<-sub.Done()

	err := sub.Err()
	if err == nil {
		return
	}

	if !errors.Is(err, apperror.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", apperror.ErrStoreUnavailable, err)
	}

	that.logger.Warn("room feed lost", "error", err)

	that.mu.Lock()

	if generation != that.generation {
		that.mu.Unlock()
		return
	}

	that.state.Connected = false
	that.state.Phase = PhaseError
	that.state.Err = err
	that.state.ErrorMessage = errorMessage(err)
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()
}

func (that *Session) push(ctx context.Context, generation uint64, code string, state entity.GameState) {
	if _, err := that.store.UpdateBoard(ctx, code, state); err != nil {
		that.fail(generation, err)
	}
}

func (that *Session) fail(generation uint64, err error) {
	that.logger.Error("room store call failed", "error", err)

	that.mu.Lock()

	if generation != that.generation {
		that.mu.Unlock()
		return
	}

	that.state.Phase = PhaseError
	that.state.Err = err
	that.state.ErrorMessage = errorMessage(err)
	changed := that.snapshotLocked()
	that.mu.Unlock()

	changed()
}

// applyLocked - takes over a game state and feeds the scoreboard when a game gets decided.
func (that *Session) applyLocked(game entity.GameState) {
	wasDecided := that.state.Outcome.IsDecided()

	that.state.Board = game.Board
	that.state.Turn = game.Turn
	that.state.Outcome = game.Outcome
	that.state.Status = game.Status
	that.state.Phase = phaseOf(game.Status)

	if game.Board.IsEmpty() {
		that.recorded = nil
	}

	if !game.Outcome.IsDecided() || wasDecided {
		return
	}

	// a redelivered snapshot can undo and redo the final move of a game already counted
	finished := finishedGame{roomCode: that.state.RoomCode, board: game.Board, outcome: game.Outcome}
	if that.recorded != nil && *that.recorded == finished {
		return
	}

	that.recorded = &finished
	that.scoreBoard.Record(finished.roomCode, finished.outcome, finished.board, that.now())
}

func (that *Session) clearErrorLocked() {
	that.state.Err = nil
	that.state.ErrorMessage = ""
}

// snapshotLocked - captures the state for the observer; the returned func runs outside the lock.
func (that *Session) snapshotLocked() func() {
	observer, state := that.onChange, that.state

	return func() {
		if observer != nil {
			observer(state)
		}
	}
}
