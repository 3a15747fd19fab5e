package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

const (
	roomKeyPrefix = "room:"
	updatesSuffix = ":updates"
	maxTxAttempts = 16
)

var ErrRoomCodeTaken = errors.New("room code already taken")

// Guard - inspects the stored room before an update and vetoes it by returning an error.
type Guard func(current *entity.Room) error

// Subscription - a live listener on one room's update channel.
// Done is closed once no more snapshots will be delivered; Err then tells a lost feed
// from one released by Unsubscribe, which leaves it nil.
type Subscription interface {
	Unsubscribe() error
	Done() <-chan struct{}
	Err() error
}

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	Join(ctx context.Context, code, guestID string) (*entity.Room, error)
	Update(ctx context.Context, code string, state entity.GameState, guard Guard) (*entity.Room, error)
	Subscribe(ctx context.Context, code string, onUpdate func(*entity.Room)) (Subscription, error)
	Delete(ctx context.Context, code string) error
}

// RoomTTL - how long a room key lives after its last write; zero keeps it forever.
type RoomTTL struct {
	Active   time.Duration
	Finished time.Duration
}

type dbRoom struct {
	logger *slog.Logger
	client *redis.Client
	ttl    RoomTTL
	now    func() time.Time
}

func NewRoomRepository(logger *slog.Logger, client *redis.Client, ttl RoomTTL) RoomRepository {
	return &dbRoom{
		logger: logger.With("component", "roomRepository"),
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func roomKey(code string) string {
	return roomKeyPrefix + code
}

func updatesChannel(code string) string {
	return roomKeyPrefix + code + updatesSuffix
}

func (that *dbRoom) expiration(room *entity.Room) time.Duration {
	if room.IsFinished() {
		return that.ttl.Finished
	}

	return that.ttl.Active
}

func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	created, err := that.client.SetNX(ctx, roomKey(room.Code), roomJSON, that.expiration(room)).Result()
	if err != nil {
		return fmt.Errorf("%w: failed to create room: %w", apperror.ErrStoreUnavailable, err)
	}

	if !created {
		return fmt.Errorf("%w: %s", ErrRoomCodeTaken, room.Code)
	}

	return nil
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	return that.get(ctx, that.client, code)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (that *dbRoom) get(ctx context.Context, conn getter, code string) (*entity.Room, error) {
	response, err := conn.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, code)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to get room: %w", apperror.ErrStoreUnavailable, err)
	}

	var room entity.Room
	if err = json.Unmarshal(response, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// Join - compare-and-swap on the guest seat; only a waiting room without a guest accepts, and never its host.
func (that *dbRoom) Join(ctx context.Context, code, guestID string) (*entity.Room, error) {
	return that.modify(ctx, code, func(room *entity.Room, now time.Time) error {
		return room.SeatGuest(guestID, now)
	})
}

// Update - overwrites the mutable fields. Without a guard the last writer wins.
func (that *dbRoom) Update(
	ctx context.Context, code string, state entity.GameState, guard Guard,
) (*entity.Room, error) {
	return that.modify(ctx, code, func(room *entity.Room, now time.Time) error {
		if guard != nil {
			if err := guard(room); err != nil {
				return err
			}
		}

		room.ApplyState(state, now)

		return nil
	})
}

// modify - optimistic WATCH/MULTI read-modify-write that publishes the new snapshot in the same transaction.
func (that *dbRoom) modify(
	ctx context.Context, code string, mutate func(room *entity.Room, now time.Time) error,
) (*entity.Room, error) {
	log := that.logger.With("method", "modify", "code", code)
	key := roomKey(code)

	var (
		result *entity.Room
		vetoed error
	)

	txf := func(tx *redis.Tx) error {
		room, err := that.get(ctx, tx, code)
		if err != nil {
			vetoed = err
			return err
		}

		if err = mutate(room, that.now()); err != nil {
			vetoed = err
			return err
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, that.expiration(room))
			pipe.Publish(ctx, updatesChannel(code), roomJSON)
			return nil
		})
		if err != nil {
			return err
		}

		result = room

		return nil
	}

	for range maxTxAttempts {
		vetoed = nil

		err := that.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, nil
		case vetoed != nil:
			return nil, vetoed
		case errors.Is(err, redis.TxFailedErr):
			log.Debug("room changed concurrently, retrying")
		default:
			return nil, fmt.Errorf("%w: failed to write room: %w", apperror.ErrStoreUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w: too many concurrent writes to room %s", apperror.ErrStoreUnavailable, code)
}

func (that *dbRoom) Delete(ctx context.Context, code string) error {
	if err := that.client.Del(ctx, roomKey(code)).Err(); err != nil {
		return fmt.Errorf("%w: failed to delete room: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

type roomSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	closing  bool
	lost     error
	closeErr error
}

// Subscribe - delivers the current snapshot first, then every committed snapshot in commit order, until Unsubscribe.
func (that *dbRoom) Subscribe(
	ctx context.Context, code string, onUpdate func(*entity.Room),
) (Subscription, error) {
	log := that.logger.With("method", "Subscribe", "code", code)

	pubsub := that.client.Subscribe(ctx, updatesChannel(code))

	// wait for the subscription confirmation so no publish after this call is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: failed to subscribe: %w", apperror.ErrStoreUnavailable, err)
	}

	current, err := that.get(ctx, that.client, code)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &roomSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	messages := pubsub.Channel()
	go func() {
		defer close(sub.done)

		onUpdate(current)

		defer func() {
			sub.mu.Lock()
			defer sub.mu.Unlock()

			if !sub.closing {
				sub.lost = fmt.Errorf("%w: room feed closed", apperror.ErrStoreUnavailable)
			}
		}()

		for message := range messages {
			var room entity.Room
			if err := json.Unmarshal([]byte(message.Payload), &room); err != nil {
				log.Error("failed to unmarshal room update", "error", err)
				continue
			}

			// already covered by the initial snapshot
			if room.UpdatedAt.Before(current.UpdatedAt) {
				continue
			}

			onUpdate(&room)
		}
	}()

	return sub, nil
}

func (that *roomSubscription) Unsubscribe() error {
	that.once.Do(func() {
		that.mu.Lock()
		that.closing = true
		that.mu.Unlock()

		that.closeErr = that.pubsub.Close()
		<-that.done
	})

	if that.closeErr != nil {
		return fmt.Errorf("failed to unsubscribe: %w", that.closeErr)
	}

	return nil
}

func (that *roomSubscription) Done() <-chan struct{} {
	return that.done
}

func (that *roomSubscription) Err() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.lost
}
