// Package service implements user-initiated state changes. Every write goes through
// the conditional repository operations, so a concurrent job run cannot be undone.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/repository"
)

// TimerService manages safety timers on behalf of their owner.
type TimerService interface {
	// Start creates an active timer ending minutes from now.
	Start(ctx context.Context, userID uuid.UUID, minutes int, dest *model.Location, message string) (*model.SafeTimer, error)
	// Stop moves an active timer to stopped.
	Stop(ctx context.Context, userID, timerID uuid.UUID) error
	// Extend pushes the end time of an active timer forward.
	Extend(ctx context.Context, userID, timerID uuid.UUID, minutes int) (*model.SafeTimer, error)
	// Active returns the user's current active timer.
	Active(ctx context.Context, userID uuid.UUID) (*model.SafeTimer, error)
}

type TimerServiceImpl struct {
	timers     repository.TimerRepository
	maxMinutes int
	now        func() time.Time
}

// NewTimerService constructs TimerService. maxMinutes <= 0 defaults to 24h.
func NewTimerService(timers repository.TimerRepository, maxMinutes int) *TimerServiceImpl {
	if maxMinutes <= 0 {
		maxMinutes = 24 * 60
	}
	return &TimerServiceImpl{timers: timers, maxMinutes: maxMinutes, now: time.Now}
}

// Start validates the duration and inserts the timer.
func (s *TimerServiceImpl) Start(ctx context.Context, userID uuid.UUID, minutes int, dest *model.Location, message string) (*model.SafeTimer, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	if minutes <= 0 || minutes > s.maxMinutes {
		return nil, fmt.Errorf("validation: duration %d out of range 1..%d", minutes, s.maxMinutes)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	t := &model.SafeTimer{
		ID:              id,
		UserID:          userID,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Destination:     dest,
		Message:         message,
		Status:          model.TimerActive,
		CreatedAt:       now,
	}
	if err := s.timers.CreateTimer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Stop checks ownership, then applies active -> stopped conditionally. A timer the
// monitor expired in the meantime yields errs.ErrStateConflict.
func (s *TimerServiceImpl) Stop(ctx context.Context, userID, timerID uuid.UUID) error {
	if userID == uuid.Nil || timerID == uuid.Nil {
		return errors.New("validation: empty userID/timerID")
	}
	t, err := s.timers.GetTimer(ctx, userID, timerID)
	if err != nil {
		return err
	}
	if err := t.Status.CheckTransition(model.TimerStopped); err != nil {
		return err
	}
	return s.timers.TransitionTimerStatus(ctx, timerID, t.Status, model.TimerStopped)
}

// Extend adds minutes to an active timer.
func (s *TimerServiceImpl) Extend(ctx context.Context, userID, timerID uuid.UUID, minutes int) (*model.SafeTimer, error) {
	if userID == uuid.Nil || timerID == uuid.Nil {
		return nil, errors.New("validation: empty userID/timerID")
	}
	if minutes <= 0 || minutes > s.maxMinutes {
		return nil, fmt.Errorf("validation: extension %d out of range 1..%d", minutes, s.maxMinutes)
	}
	return s.timers.ExtendTimer(ctx, userID, timerID, time.Duration(minutes)*time.Minute)
}

// Active returns the most recent active timer or errs.ErrNotFound.
func (s *TimerServiceImpl) Active(ctx context.Context, userID uuid.UUID) (*model.SafeTimer, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.timers.FindActiveTimer(ctx, userID)
}

var _ TimerService = (*TimerServiceImpl)(nil)
