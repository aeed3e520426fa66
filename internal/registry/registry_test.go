package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotwise-backend/internal/model"
)

func startStore(t *testing.T, initial []model.Spot) (*Store, context.CancelFunc) {
	t.Helper()
	store := NewStore(initial)
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(cancel)
	return store, cancel
}

func TestIDGenerator_Unique(t *testing.T) {
	ids := NewIDGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := ids.Next("det-free parking")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, "spot-1001", ids.Next("spot"))
	assert.Equal(t, "det-free_parking-1002", ids.Next("det-free parking"))
}

func TestCodeGenerator_Format(t *testing.T) {
	codes := NewCodeGenerator()
	re := regexp.MustCompile(`^[0-9A-Z]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		code := codes.Next()
		require.Regexp(t, re, code)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}

	// Two generators replay the same sequence.
	a, b := NewCodeGenerator(), NewCodeGenerator()
	assert.Equal(t, a.Next(), b.Next())
}

func TestMockGenerator_Generate(t *testing.T) {
	gen := NewMockGenerator(7, NewIDGenerator(), NewCodeGenerator())
	spots := gen.Generate(20)

	require.Len(t, spots, 20)
	assert.NoError(t, Validate(spots))
	assert.Equal(t, "spot-1", spots[0].ID)
	assert.Equal(t, "A1", spots[0].SpotNumber)
	assert.Equal(t, "B1", spots[5].SpotNumber)
	assert.Equal(t, "D5", spots[19].SpotNumber)
	assert.Equal(t, model.CategoryHandicap, spots[0].Type)
	assert.Equal(t, model.CategoryElectric, spots[5].Type)
	assert.Equal(t, model.CategoryStandard, spots[7].Type)
	assert.Equal(t, model.Location{X: 3, Y: 2}, spots[13].Location)
	for _, s := range spots {
		assert.Equal(t, model.SourceMock, s.Source)
		if s.IsReserved {
			require.NotNil(t, s.Reservation)
			assert.Len(t, s.Reservation.Code, 6)
		}
	}
}

func TestMockGenerator_Filler(t *testing.T) {
	gen := NewMockGenerator(1, NewIDGenerator(), NewCodeGenerator())
	filler := gen.Filler(3, 2)

	require.Len(t, filler, 3)
	for i, s := range filler {
		assert.Equal(t, fmt.Sprintf("P%d", i+3), s.SpotNumber)
		assert.False(t, s.IsReserved)
		assert.Nil(t, s.Reservation)
		assert.Regexp(t, `^fill-\d+$`, s.ID)
	}
}

func TestValidate(t *testing.T) {
	ok := []model.Spot{{ID: "a"}, {ID: "b"}}
	assert.NoError(t, Validate(ok))

	dup := []model.Spot{{ID: "a"}, {ID: "a"}}
	assert.Error(t, Validate(dup))

	empty := []model.Spot{{ID: ""}}
	assert.Error(t, Validate(empty))

	bad := []model.Spot{{ID: "a", IsReserved: true}}
	assert.ErrorIs(t, Validate(bad), model.ErrReservationMismatch)
}

func TestReplaceOne_LeavesOthersUntouched(t *testing.T) {
	spots := []model.Spot{{ID: "a"}, {ID: "b", IsOccupied: true}, {ID: "c"}}
	next := ReplaceOne(spots, 2, model.Spot{ID: "c", IsOccupied: true})

	assert.Equal(t, spots[0], next[0])
	assert.Equal(t, spots[1], next[1])
	assert.True(t, next[2].IsOccupied)
	assert.False(t, spots[2].IsOccupied, "input must not be modified")
}

func TestStore_UpdateAndListeners(t *testing.T) {
	store, _ := startStore(t, []model.Spot{{ID: "a"}})

	var calls int
	var lastPrev, lastNext []model.Spot
	store.OnChange(func(prev, next []model.Spot) {
		calls++
		lastPrev, lastNext = prev, next
	})

	next, err := store.Update(context.Background(), func(spots []model.Spot) ([]model.Spot, error) {
		return append(spots, model.Spot{ID: "b"}), nil
	})
	require.NoError(t, err)
	assert.Len(t, next, 2)
	assert.Len(t, store.Snapshot(), 2)
	assert.Equal(t, uint64(1), store.Version())
	assert.Equal(t, 1, calls)
	assert.Len(t, lastPrev, 1)
	assert.Len(t, lastNext, 2)
}

func TestStore_RejectedUpdateLeavesRegistry(t *testing.T) {
	store, _ := startStore(t, []model.Spot{{ID: "a"}})
	boom := errors.New("boom")

	_, err := store.Update(context.Background(), func(spots []model.Spot) ([]model.Spot, error) {
		spots[0].IsOccupied = true
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Snapshot()[0].IsOccupied)

	_, err = store.Update(context.Background(), func(spots []model.Spot) ([]model.Spot, error) {
		return append(spots, model.Spot{ID: "a"}), nil
	})
	assert.Error(t, err, "duplicate ids must be rejected")
	assert.Len(t, store.Snapshot(), 1)
	assert.Equal(t, uint64(0), store.Version())
}

func TestStore_SerializesConcurrentUpdates(t *testing.T) {
	store, _ := startStore(t, nil)
	ids := NewIDGenerator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), func(spots []model.Spot) ([]model.Spot, error) {
				return append(spots, model.Spot{ID: ids.Next("c")}), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.Snapshot(), 50)
	assert.Equal(t, uint64(50), store.Version())
}

func TestStore_MarkLoaded(t *testing.T) {
	store, _ := startStore(t, nil)
	assert.True(t, store.Loading())

	require.NoError(t, store.MarkLoaded(context.Background()))
	assert.False(t, store.Loading())
	assert.Equal(t, uint64(0), store.Version())
}

func TestStore_ClosedAfterRunExits(t *testing.T) {
	store, cancel := startStore(t, []model.Spot{{ID: "a"}})
	cancel()

	select {
	case <-store.Done():
	case <-time.After(time.Second):
		t.Fatal("store did not stop")
	}

	_, err := store.Update(context.Background(), func(spots []model.Spot) ([]model.Spot, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.MarkLoaded(context.Background()), ErrClosed)
	assert.Len(t, store.Snapshot(), 1)
}
