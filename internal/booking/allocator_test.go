package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedSlot(t *testing.T, repo *memRepo, doctorID uuid.UUID, at time.Time, available bool) TimeSlot {
	t.Helper()
	slot := TimeSlot{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		At:          at,
		IsAvailable: available,
	}
	repo.mu.Lock()
	repo.slots[slot.ID] = slot
	repo.mu.Unlock()
	return slot
}

func TestReserveSingleWinnerUnderContention(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	doctorID := uuid.New()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	seedSlot(t, repo, doctorID, at, true)

	const callers = 16

	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.Reserve(context.Background(), doctorID, at)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrSlotUnavailable)
		losses++
	}

	assert.Equal(t, 1, wins, "exactly one caller should win the slot")
	assert.Equal(t, callers-1, losses)
}

func TestReserveMissingSlot(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	_, err := alloc.Reserve(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestReserveAlreadyTaken(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	doctorID := uuid.New()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	seedSlot(t, repo, doctorID, at, false)

	_, err := alloc.Reserve(context.Background(), doctorID, at)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestReleaseIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	doctorID := uuid.New()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	slot := seedSlot(t, repo, doctorID, at, true)

	_, err := alloc.Reserve(context.Background(), doctorID, at)
	require.NoError(t, err)

	require.NoError(t, alloc.Release(context.Background(), slot.ID))
	got, err := repo.GetTimeSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	// Second release is a silent no-op.
	require.NoError(t, alloc.Release(context.Background(), slot.ID))
	got, err = repo.GetTimeSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
}

func TestListAvailableWindowAndOrder(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	doctorID := uuid.New()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	s0 := seedSlot(t, repo, doctorID, base, true)
	s1 := seedSlot(t, repo, doctorID, base.Add(30*time.Minute), true)
	seedSlot(t, repo, doctorID, base.Add(time.Hour), false)         // taken
	seedSlot(t, repo, doctorID, base.Add(24*time.Hour), true)       // outside window
	seedSlot(t, repo, uuid.New(), base.Add(30*time.Minute), true)   // other doctor
	boundary := seedSlot(t, repo, doctorID, base.Add(-time.Minute), true)
	_ = boundary // before window start

	from := base
	to := base.Add(2 * time.Hour) // half-open: slot at +24h excluded anyway

	var got []uuid.UUID
	for slot, err := range alloc.ListAvailable(context.Background(), doctorID, from, to) {
		require.NoError(t, err)
		got = append(got, slot.ID)
	}
	assert.Equal(t, []uuid.UUID{s0.ID, s1.ID}, got, "only open in-window slots, ascending")

	// The sequence is restartable: a second range re-reads storage.
	repo.mu.Lock()
	s := repo.slots[s0.ID]
	s.IsAvailable = false
	repo.slots[s0.ID] = s
	repo.mu.Unlock()

	got = got[:0]
	for slot, err := range alloc.ListAvailable(context.Background(), doctorID, from, to) {
		require.NoError(t, err)
		got = append(got, slot.ID)
	}
	assert.Equal(t, []uuid.UUID{s1.ID}, got)
}

func TestListAvailableEarlyBreak(t *testing.T) {
	repo := newMemRepo()
	alloc := NewSlotAllocator(repo, zap.NewNop())

	doctorID := uuid.New()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedSlot(t, repo, doctorID, base.Add(time.Duration(i)*30*time.Minute), true)
	}

	count := 0
	for _, err := range alloc.ListAvailable(context.Background(), doctorID, base, base.Add(6*time.Hour)) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}
