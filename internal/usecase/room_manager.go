package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
	"github.com/rocketscienceinc/tictactoe-online/internal/tictactoe"
)

const defaultCodeAttempts = 10

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	Join(ctx context.Context, code, guestID string) (*entity.Room, error)
	Update(ctx context.Context, code string, state entity.GameState, guard repository.Guard) (*entity.Room, error)
	Subscribe(ctx context.Context, code string, onUpdate func(*entity.Room)) (repository.Subscription, error)
}

type historyRepo interface {
	Record(ctx context.Context, record *entity.GameRecord) error
	ListByRoom(ctx context.Context, code string) ([]*entity.GameRecord, error)
}

// Options - room policy knobs taken from config.
type Options struct {
	CodeAttempts int
	// ValidateMoves - re-run the rules engine on every write and reject out-of-turn or illegal boards.
	ValidateMoves bool
}

type RoomManager struct {
	logger  *slog.Logger
	rooms   roomRepo
	history historyRepo
	options Options

	generateCode func() (string, error)
	now          func() time.Time
}

func NewRoomManager(logger *slog.Logger, rooms roomRepo, history historyRepo, options Options) *RoomManager {
	if options.CodeAttempts <= 0 {
		options.CodeAttempts = defaultCodeAttempts
	}

	return &RoomManager{
		logger:  logger.With("component", "roomManager"),
		rooms:   rooms,
		history: history,
		options: options,

		generateCode: pkg.GenerateRoomCode,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom - opens a waiting room for the host under a fresh code, retrying on code collisions.
func (that *RoomManager) CreateRoom(ctx context.Context, hostID string) (*entity.Room, error) {
	log := that.logger.With("method", "CreateRoom")

	if hostID == "" {
		return nil, fmt.Errorf("%w: empty host id", apperror.ErrIdentityCreationFailed)
	}

	for attempt := 1; attempt <= that.options.CodeAttempts; attempt++ {
		code, err := that.generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate room code: %w", err)
		}

		room := entity.NewRoom(pkg.NewRecordID(), code, hostID, that.now())

		err = that.rooms.Create(ctx, room)
		if errors.Is(err, repository.ErrRoomCodeTaken) {
			log.Debug("room code collision", "code", code, "attempt", attempt)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}

		log.Info("room created", "code", room.Code)

		return room, nil
	}

	return nil, fmt.Errorf("%w: no free room code after %d attempts",
		apperror.ErrStoreUnavailable, that.options.CodeAttempts)
}

// JoinRoom - takes the guest seat; codes are matched case-insensitively.
func (that *RoomManager) JoinRoom(ctx context.Context, code, guestID string) (*entity.Room, error) {
	log := that.logger.With("method", "JoinRoom")

	if guestID == "" {
		return nil, fmt.Errorf("%w: empty guest id", apperror.ErrIdentityCreationFailed)
	}

	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, err := that.rooms.Join(ctx, code, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	log.Info("guest joined", "code", room.Code)

	return room, nil
}

// UpdateBoard - overwrites the room state with the last writer's snapshot.
func (that *RoomManager) UpdateBoard(ctx context.Context, code string, state entity.GameState) (*entity.Room, error) {
	return that.update(ctx, code, state, func(*entity.Room, entity.GameState) error {
		return nil
	})
}

// UpdateBoardAs - same as UpdateBoard, but only the host or the guest may write.
func (that *RoomManager) UpdateBoardAs(
	ctx context.Context, code, participantID string, state entity.GameState,
) (*entity.Room, error) {
	return that.update(ctx, code, state, func(current *entity.Room, next entity.GameState) error {
		role, err := current.RoleOf(participantID)
		if err != nil {
			return err
		}

		if !that.options.ValidateMoves {
			return nil
		}

		return verifyMove(current, next, role.Mark())
	})
}

func (that *RoomManager) update(
	ctx context.Context, code string, state entity.GameState,
	authorize func(current *entity.Room, next entity.GameState) error,
) (*entity.Room, error) {
	log := that.logger.With("method", "updateBoard")

	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	next, err := deriveState(state)
	if err != nil {
		return nil, err
	}

	var wasFinished bool
	room, err := that.rooms.Update(ctx, code, next, func(current *entity.Room) error {
		if current.IsWaiting() {
			return fmt.Errorf("%w: room %s", apperror.ErrGameIsNotStarted, code)
		}

		if err := authorize(current, next); err != nil {
			return err
		}

		wasFinished = current.IsFinished()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	if room.IsFinished() && !wasFinished {
		log.Info("game finished", "code", room.Code, "outcome", room.Outcome)
		that.archive(ctx, room)
	}

	return room, nil
}

// deriveState - outcome and status always follow from the board, never from the writer.
func deriveState(state entity.GameState) (entity.GameState, error) {
	if !state.Turn.IsValid() {
		return state, fmt.Errorf("%w: turn %q", apperror.ErrInvalidMove, string(state.Turn))
	}

	state.Outcome = tictactoe.ComputeOutcome(state.Board)
	if state.Outcome.IsDecided() {
		state.Status = entity.StatusFinished
	} else {
		state.Status = entity.StatusPlaying
	}

	return state, nil
}

// verifyMove - the written state must be the stored board plus one legal move by mark, or a reset.
func verifyMove(current *entity.Room, next entity.GameState, mark entity.Mark) error {
	if next.Board.IsEmpty() {
		if next.Turn != entity.PlayerX {
			return fmt.Errorf("%w: a new game starts with %s", apperror.ErrInvalidMove, entity.PlayerX)
		}
		return nil
	}

	if current.Turn != mark {
		return fmt.Errorf("%w: %s moves next", apperror.ErrNotYourTurn, current.Turn)
	}

	if err := tictactoe.VerifyTransition(current.Board, next.Board, mark); err != nil {
		return err
	}

	expected := tictactoe.NextTurn(mark)
	if next.Outcome.IsDecided() {
		expected = mark
	}

	if next.Turn != expected {
		return fmt.Errorf("%w: turn must pass to %s", apperror.ErrInvalidMove, expected)
	}

	return nil
}

func (that *RoomManager) archive(ctx context.Context, room *entity.Room) {
	if that.history == nil {
		return
	}

	record := &entity.GameRecord{
		ID:         pkg.NewRecordID(),
		RoomCode:   room.Code,
		Outcome:    room.Outcome,
		Board:      room.Board,
		FinishedAt: room.UpdatedAt,
	}

	if err := that.history.Record(ctx, record); err != nil {
		that.logger.Error("failed to archive game", "code", room.Code, "error", err)
	}
}

// GetRoom - host and guest may always read; anyone may read a room that still waits for its guest.
func (that *RoomManager) GetRoom(ctx context.Context, code, viewerID string) (*entity.Room, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if !room.IsReadableBy(viewerID) {
		return nil, fmt.Errorf("%w: room %s", apperror.ErrNotRoomMember, code)
	}

	return room, nil
}

// Subscribe - onUpdate receives the current snapshot, then every snapshot committed to the room.
func (that *RoomManager) Subscribe(
	ctx context.Context, code string, onUpdate func(*entity.Room),
) (repository.Subscription, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	sub, err := that.rooms.Subscribe(ctx, code, onUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}

	return sub, nil
}

// History - archived games of the room with their tally.
func (that *RoomManager) History(ctx context.Context, code string) ([]*entity.GameRecord, entity.Tally, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, entity.Tally{}, err
	}

	if that.history == nil {
		return []*entity.GameRecord{}, entity.Tally{}, nil
	}

	records, err := that.history.ListByRoom(ctx, code)
	if err != nil {
		return nil, entity.Tally{}, fmt.Errorf("failed to list games: %w", err)
	}

	return records, entity.TallyOf(records), nil
}

func normalizeCode(code string) (string, error) {
	normalized, err := pkg.NormalizeRoomCode(code)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrRoomNotFound, err)
	}

	return normalized, nil
}
