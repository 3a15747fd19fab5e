package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/testing/suite"
)

var testTTL = RoomTTL{Active: time.Hour, Finished: time.Minute}

func newRoom(code string) *entity.Room {
	return entity.NewRoom("room-"+code, code, "host-1", time.Now().UTC())
}

func TestRoomRepository_Create(t *testing.T) {
	t.Run("Create_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)

		// Given: a new waiting room
		room := newRoom("AB12CD")

		// When: Create is called
		err := roomRepo.Create(ctx, room)

		// Then: the room is stored with a TTL
		require.NoError(t, err)

		stored, err := roomRepo.GetByCode(ctx, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, room.HostID, stored.HostID)
		assert.Equal(t, entity.StatusWaiting, stored.Status)
		assert.Empty(t, stored.GuestID)

		ttl, err := st.Storage.TTL(ctx, roomKey("AB12CD")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("Create_CodeTaken", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)

		// Given: a room that already holds the code
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		// When: another room is created with the same code
		err := roomRepo.Create(ctx, newRoom("AB12CD"))

		// Then: the collision is reported
		require.ErrorIs(t, err, ErrRoomCodeTaken)
	})
}

func TestRoomRepository_GetByCode_NotFound(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)

	// When: GetByCode is called with a non-existent code
	room, err := roomRepo.GetByCode(ctx, "ZZZZZZ")

	// Then: an ErrRoomNotFound error should be returned
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	assert.Nil(t, room)
}

func TestRoomRepository_Join(t *testing.T) {
	t.Run("Join_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		// When: a guest joins the waiting room
		room, err := roomRepo.Join(ctx, "AB12CD", "guest-1")

		// Then: the room starts playing with the guest attached
		require.NoError(t, err)
		assert.Equal(t, "guest-1", room.GuestID)
		assert.Equal(t, entity.StatusPlaying, room.Status)
	})

	t.Run("Join_HostCannotTakeGuestSeat", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		// When: someone joins with the host id read from the waiting room
		_, err := roomRepo.Join(ctx, "AB12CD", "host-1")

		// Then: the join is refused and the seat stays free for the real guest
		require.ErrorIs(t, err, apperror.ErrRoomFull)

		room, err := roomRepo.GetByCode(ctx, "AB12CD")
		require.NoError(t, err)
		assert.False(t, room.HasGuest())
		assert.Equal(t, entity.StatusWaiting, room.Status)

		room, err = roomRepo.Join(ctx, "AB12CD", "guest-1")
		require.NoError(t, err)
		assert.Equal(t, "guest-1", room.GuestID)
	})

	t.Run("Join_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)

		_, err := roomRepo.Join(ctx, "ZZZZZZ", "guest-1")

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Join_Concurrent", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		// When: two guests race for the single seat
		guests := []string{"guest-a", "guest-b"}
		errs := make([]error, len(guests))

		var group errgroup.Group
		for i, guest := range guests {
			group.Go(func() error {
				_, errs[i] = roomRepo.Join(ctx, "AB12CD", guest)
				return nil
			})
		}
		require.NoError(t, group.Wait())

		// Then: exactly one join succeeds and the other finds the room full
		var succeeded, full int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperror.ErrRoomFull):
				full++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, full)

		room, err := roomRepo.GetByCode(ctx, "AB12CD")
		require.NoError(t, err)
		assert.Contains(t, guests, room.GuestID)
	})
}

func TestRoomRepository_Update(t *testing.T) {
	t.Run("Update_LastWriterWins", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))
		_, err := roomRepo.Join(ctx, "AB12CD", "guest-1")
		require.NoError(t, err)

		// Given: two consecutive unguarded writes
		first := entity.NewGameState(entity.StatusPlaying)
		first.Board[0] = entity.PlayerX
		first.Turn = entity.PlayerO

		second := entity.NewGameState(entity.StatusPlaying)
		second.Board[4] = entity.PlayerX
		second.Turn = entity.PlayerO

		_, err = roomRepo.Update(ctx, "AB12CD", first, nil)
		require.NoError(t, err)

		// When: the second one lands
		room, err := roomRepo.Update(ctx, "AB12CD", second, nil)

		// Then: it fully replaces the first
		require.NoError(t, err)
		assert.Equal(t, second.Board, room.Board)
		assert.Equal(t, "guest-1", room.GuestID)
	})

	t.Run("Update_GuardVeto", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		// When: the guard rejects the current room
		_, err := roomRepo.Update(ctx, "AB12CD", entity.NewGameState(entity.StatusPlaying), func(current *entity.Room) error {
			if current.IsWaiting() {
				return apperror.ErrGameIsNotStarted
			}
			return nil
		})

		// Then: the veto is returned and nothing is written
		require.ErrorIs(t, err, apperror.ErrGameIsNotStarted)

		room, err := roomRepo.GetByCode(ctx, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusWaiting, room.Status)
	})

	t.Run("Update_FinishedShortensTTL", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
		require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

		state := entity.NewGameState(entity.StatusFinished)
		state.Board = entity.Board{entity.PlayerX, entity.PlayerX, entity.PlayerX}
		state.Outcome = entity.OutcomeX

		_, err := roomRepo.Update(ctx, "AB12CD", state, nil)
		require.NoError(t, err)

		ttl, err := st.Storage.TTL(ctx, roomKey("AB12CD")).Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, testTTL.Finished)
	})
}

func TestRoomRepository_Subscribe(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
	require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

	var (
		mu       sync.Mutex
		received []*entity.Room
	)

	// Given: a subscriber on the room
	sub, err := roomRepo.Subscribe(ctx, "AB12CD", func(room *entity.Room) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, room)
	})
	require.NoError(t, err)

	// When: the room is joined and then moved
	_, err = roomRepo.Join(ctx, "AB12CD", "guest-1")
	require.NoError(t, err)

	state := entity.NewGameState(entity.StatusPlaying)
	state.Board[0] = entity.PlayerX
	state.Turn = entity.PlayerO
	_, err = roomRepo.Update(ctx, "AB12CD", state, nil)
	require.NoError(t, err)

	// Then: the initial snapshot and both writes arrive in commit order
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, entity.StatusWaiting, received[0].Status)
	assert.Equal(t, "guest-1", received[1].GuestID)
	assert.Equal(t, entity.PlayerX, received[2].Board[0])
	mu.Unlock()

	// When: unsubscribed, no further snapshots are delivered
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())

	// Then: the feed reports a clean release, not a loss
	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription still running after Unsubscribe")
	}
	assert.NoError(t, sub.Err())

	_, err = roomRepo.Update(ctx, "AB12CD", entity.NewGameState(entity.StatusPlaying), nil)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 3)
}

func TestRoomRepository_Subscribe_NotFound(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)

	_, err := roomRepo.Subscribe(ctx, "ZZZZZZ", func(*entity.Room) {})

	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestRoomRepository_Delete(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Logger, st.Storage, testTTL)
	require.NoError(t, roomRepo.Create(ctx, newRoom("AB12CD")))

	err := roomRepo.Delete(ctx, "AB12CD")
	require.NoError(t, err)

	_, err = roomRepo.GetByCode(ctx, "AB12CD")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}
