package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// SOSService raises and cancels manual emergencies.
type SOSService interface {
	// Trigger records an active SOS and alerts emergency contacts.
	Trigger(ctx context.Context, userID uuid.UUID, loc model.Location) (*model.SOSEvent, notify.Result, error)
	// Cancel moves an active SOS to cancelled.
	Cancel(ctx context.Context, userID, sosID uuid.UUID, reason string) error
}

type SOSServiceImpl struct {
	events   repository.SOSRepository
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewSOSService constructs SOSService.
func NewSOSService(events repository.SOSRepository, n notify.Notifier, log *zap.Logger) *SOSServiceImpl {
	return &SOSServiceImpl{events: events, notifier: n, log: log.Named("sos"), now: time.Now}
}

// Trigger stores the event first; a failed fan-out is reported in the result and
// does not undo it.
func (s *SOSServiceImpl) Trigger(ctx context.Context, userID uuid.UUID, loc model.Location) (*model.SOSEvent, notify.Result, error) {
	if userID == uuid.Nil {
		return nil, notify.Result{}, errors.New("validation: empty userID")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, notify.Result{}, err
	}
	e := &model.SOSEvent{
		ID:        id,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Location:  loc,
		Type:      model.SOSTypeManual,
		Status:    model.SOSActive,
	}
	if err := s.events.CreateSOSEvent(ctx, e); err != nil {
		return nil, notify.Result{}, err
	}

	res := s.notifier.NotifyEmergencyContacts(ctx, userID, notify.KindSOSAlert, notify.Payload{Location: &loc})
	if !res.Success {
		s.log.Warn("sos alert not delivered",
			zap.String("sos_id", id.String()),
			zap.String("reason", res.Reason),
		)
	}
	return e, res, nil
}

// Cancel checks ownership and applies active -> cancelled conditionally.
func (s *SOSServiceImpl) Cancel(ctx context.Context, userID, sosID uuid.UUID, reason string) error {
	if userID == uuid.Nil || sosID == uuid.Nil {
		return errors.New("validation: empty userID/sosID")
	}
	e, err := s.events.GetSOSEvent(ctx, userID, sosID)
	if err != nil {
		return err
	}
	if err := e.Status.CheckTransition(model.SOSCancelled); err != nil {
		return err
	}
	return s.events.SetSOSStatus(ctx, userID, sosID, e.Status, model.SOSCancelled, reason)
}

var _ SOSService = (*SOSServiceImpl)(nil)
