package booking

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotAllocator is the sole writer of slot availability. Every reservation
// and release goes through its compare-and-set so at most one caller wins a
// slot, even across processes.
type SlotAllocator struct {
	repo Repository
	log  *zap.Logger
}

func NewSlotAllocator(repo Repository, log *zap.Logger) *SlotAllocator {
	return &SlotAllocator{repo: repo, log: log}
}

// Reserve claims the doctor's slot at the given time. Losers of a concurrent
// race observe ErrSlotUnavailable; the slot row itself decides the winner.
func (a *SlotAllocator) Reserve(ctx context.Context, doctorID uuid.UUID, at time.Time) (*TimeSlot, error) {
	slot, err := a.repo.GetTimeSlot(ctx, doctorID, at)
	if err != nil {
		return nil, err
	}
	if !slot.IsAvailable {
		return nil, ErrSlotUnavailable
	}

	ok, err := a.repo.ConditionalSetSlotAvailability(ctx, slot.ID, true, false)
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}

	slot.IsAvailable = false
	return slot, nil
}

// Release marks a slot available again. Releasing an already-available slot
// is a silent no-op, so callers may retry safely.
func (a *SlotAllocator) Release(ctx context.Context, slotID uuid.UUID) error {
	ok, err := a.repo.ConditionalSetSlotAvailability(ctx, slotID, false, true)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !ok {
		a.log.Debug("release skipped, slot already available", zap.String("slot_id", slotID.String()))
	}
	return nil
}

// ListAvailable yields the doctor's open slots within [from, to) in ascending
// order. The sequence is restartable: each range re-reads from storage.
func (a *SlotAllocator) ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to time.Time) iter.Seq2[TimeSlot, error] {
	return func(yield func(TimeSlot, error) bool) {
		slots, err := a.repo.ListSlots(ctx, doctorID, from, to, true)
		if err != nil {
			yield(TimeSlot{}, err)
			return
		}
		for _, s := range slots {
			if !yield(s, nil) {
				return
			}
		}
	}
}
