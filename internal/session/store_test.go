package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
)

// memoryStore - in-process room store delivering snapshots synchronously to subscribers.
type memoryStore struct {
	mu     sync.Mutex
	codes  []string
	rooms  map[string]*entity.Room
	subs   map[string]map[*memorySubscription]struct{}
	writes int

	createErr error
	updateErr error
}

func newMemoryStore(codes ...string) *memoryStore {
	return &memoryStore{
		codes: codes,
		rooms: make(map[string]*entity.Room),
		subs:  make(map[string]map[*memorySubscription]struct{}),
	}
}

func (that *memoryStore) CreateRoom(_ context.Context, hostID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.createErr != nil {
		return nil, that.createErr
	}

	code := fmt.Sprintf("ROOM%02d", len(that.rooms))
	if len(that.codes) > 0 {
		code, that.codes = that.codes[0], that.codes[1:]
	}

	room := entity.NewRoom(pkg.NewRecordID(), code, hostID, time.Now())
	that.rooms[code] = room

	copied := *room

	return &copied, nil
}

func (that *memoryStore) JoinRoom(_ context.Context, code, guestID string) (*entity.Room, error) {
	code, err := pkg.NormalizeRoomCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrRoomNotFound, err)
	}

	return that.write(code, func(room *entity.Room) error {
		return room.SeatGuest(guestID, time.Now())
	})
}

func (that *memoryStore) UpdateBoard(_ context.Context, code string, state entity.GameState) (*entity.Room, error) {
	that.mu.Lock()
	err := that.updateErr
	that.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return that.write(code, func(room *entity.Room) error {
		room.ApplyState(state, time.Now())
		return nil
	})
}

func (that *memoryStore) write(code string, mutate func(*entity.Room) error) (*entity.Room, error) {
	that.mu.Lock()

	room, ok := that.rooms[code]
	if !ok {
		that.mu.Unlock()
		return nil, apperror.ErrRoomNotFound
	}

	if err := mutate(room); err != nil {
		that.mu.Unlock()
		return nil, err
	}
	that.writes++

	snapshot := *room
	subs := make([]*memorySubscription, 0, len(that.subs[code]))
	for sub := range that.subs[code] {
		subs = append(subs, sub)
	}
	that.mu.Unlock()

	for _, sub := range subs {
		copied := snapshot
		sub.onUpdate(&copied)
	}

	return &snapshot, nil
}

func (that *memoryStore) Subscribe(_ context.Context, code string, onUpdate func(*entity.Room)) (Subscription, error) {
	that.mu.Lock()

	room, ok := that.rooms[code]
	if !ok {
		that.mu.Unlock()
		return nil, apperror.ErrRoomNotFound
	}

	sub := &memorySubscription{store: that, code: code, onUpdate: onUpdate, done: make(chan struct{})}
	if that.subs[code] == nil {
		that.subs[code] = make(map[*memorySubscription]struct{})
	}
	that.subs[code][sub] = struct{}{}
	snapshot := *room
	that.mu.Unlock()

	onUpdate(&snapshot)

	return sub, nil
}

func (that *memoryStore) room(code string) entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	return *that.rooms[code]
}

func (that *memoryStore) subscribers(code string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.subs[code])
}

func (that *memoryStore) writeCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.writes
}

func (that *memoryStore) setUpdateErr(err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.updateErr = err
}

type memorySubscription struct {
	store    *memoryStore
	code     string
	onUpdate func(*entity.Room)

	done chan struct{}
	once sync.Once
	err  error
}

func (that *memorySubscription) Unsubscribe() error {
	that.store.mu.Lock()
	delete(that.store.subs[that.code], that)
	that.store.mu.Unlock()

	that.once.Do(func() { close(that.done) })

	return nil
}

func (that *memorySubscription) Done() <-chan struct{} {
	return that.done
}

func (that *memorySubscription) Err() error {
	select {
	case <-that.done:
		return that.err
	default:
		return nil
	}
}

// dropFeeds - ends every subscription on code with err, the way a broken connection does.
func (that *memoryStore) dropFeeds(code string, err error) {
	that.mu.Lock()
	subs := that.subs[code]
	delete(that.subs, code)
	that.mu.Unlock()

	for sub := range subs {
		sub.once.Do(func() {
			sub.err = err
			close(sub.done)
		})
	}
}
