// Package notify renders alerts and delivers them to users (push) and to their
// emergency contacts (SMS). Delivery failures are reported as results, never as
// errors, so a transport outage cannot abort a job.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/model"
)

// Failure reasons reported in Result.Reason.
const (
	ReasonNoDeviceToken     = "no device token"
	ReasonNoContacts        = "no emergency contacts"
	ReasonUserLookup        = "user lookup failed"
	ReasonContactLookup     = "contact lookup failed"
	ReasonAllRecipientsFail = "all recipients failed"
	ReasonTimeout           = "timeout"
	ReasonUnknownKind       = "unknown kind"
)

// Directory resolves users and their emergency contacts.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	EmergencyContacts(ctx context.Context, userID uuid.UUID) ([]model.TrustedContact, error)
}

// Notifier is what jobs and services depend on.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, kind Kind, p Payload) Result
	NotifyEmergencyContacts(ctx context.Context, userID uuid.UUID, kind Kind, p Payload) Result
}

// Recipient is the outcome for one address.
type Recipient struct {
	Address string
	Name    string
	Success bool
	Error   string
}

// Result is the outcome of one dispatch. Success is true when at least one
// recipient was reached.
type Result struct {
	Success    bool
	Reason     string
	Recipients []Recipient
}

// Options tune the dispatcher.
type Options struct {
	// CallTimeout bounds one transport call. Expiry counts as a delivery failure.
	CallTimeout time.Duration
	// Fanout limits concurrent SMS sends per dispatch.
	Fanout int
}

// Dispatcher implements Notifier over a Pusher and an SMSSender.
type Dispatcher struct {
	dir  Directory
	push Pusher
	sms  SMSSender
	opts Options
	log  *zap.Logger
	m    *metrics.Metrics
}

// NewDispatcher wires the dispatcher. m may be nil.
func NewDispatcher(dir Directory, push Pusher, sms SMSSender, opts Options, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.Fanout <= 0 {
		opts.Fanout = 4
	}
	return &Dispatcher{dir: dir, push: push, sms: sms, opts: opts, log: log.Named("notify"), m: m}
}

// call runs fn under the per-call timeout and records its outcome.
func (d *Dispatcher) call(ctx context.Context, kind Kind, channel string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
	defer cancel()
	start := time.Now()
	err := fn(cctx)
	d.m.RecordNotification(string(kind), channel, err == nil, time.Since(start))
	return err
}

func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return err.Error()
}

func (d *Dispatcher) user(ctx context.Context, userID uuid.UUID, p Payload) (*model.User, error) {
	if p.User != nil {
		return p.User, nil
	}
	return d.dir.GetUser(ctx, userID)
}

// NotifyUser pushes kind to the user's registered device.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, kind Kind, p Payload) Result {
	log := d.log.With(zap.String("user_id", userID.String()), zap.String("kind", string(kind)))
	if !kind.Valid() {
		log.Error("refusing to send unknown kind")
		return Result{Reason: ReasonUnknownKind}
	}

	u, err := d.user(ctx, userID, p)
	if err != nil {
		log.Warn("user lookup failed", zap.Error(err))
		return Result{Reason: ReasonUserLookup}
	}
	if u.DeviceToken == "" {
		log.Debug("skip push", zap.Error(errs.ErrNoDeviceToken))
		d.m.RecordNotification(string(kind), "push", false, 0)
		return Result{Reason: ReasonNoDeviceToken}
	}

	msg := Render(kind, userID, u, p.Location)
	err = d.call(ctx, kind, "push", func(c context.Context) error { return d.push.Push(c, u.DeviceToken, msg) })
	rcpt := Recipient{Address: u.DeviceToken, Name: u.Name, Success: err == nil}
	if err != nil {
		rcpt.Error = describe(err)
		log.Warn("push failed", zap.Error(err))
		return Result{Reason: rcpt.Error, Recipients: []Recipient{rcpt}}
	}
	log.Debug("push sent")
	return Result{Success: true, Recipients: []Recipient{rcpt}}
}

// NotifyEmergencyContacts texts kind to every emergency contact of the user.
func (d *Dispatcher) NotifyEmergencyContacts(ctx context.Context, userID uuid.UUID, kind Kind, p Payload) Result {
	log := d.log.With(zap.String("user_id", userID.String()), zap.String("kind", string(kind)))
	if !kind.Valid() {
		log.Error("refusing to send unknown kind")
		return Result{Reason: ReasonUnknownKind}
	}

	contacts := p.Contacts
	if contacts == nil {
		var err error
		if contacts, err = d.dir.EmergencyContacts(ctx, userID); err != nil {
			log.Warn("contact lookup failed", zap.Error(err))
			return Result{Reason: ReasonContactLookup}
		}
	}
	if len(contacts) == 0 {
		log.Warn("no emergency contacts")
		return Result{Reason: ReasonNoContacts}
	}

	u, err := d.user(ctx, userID, p)
	if err != nil {
		// The message still goes out with a generic name.
		log.Warn("user lookup failed", zap.Error(err))
		u = nil
	}
	text := Render(kind, userID, u, p.Location).SMSText()

	out := make([]Recipient, len(contacts))
	var g errgroup.Group
	g.SetLimit(d.opts.Fanout)
	for i, c := range contacts {
		g.Go(func() error {
			err := d.call(ctx, kind, "sms", func(cc context.Context) error { return d.sms.SendSMS(cc, c.Phone, text) })
			out[i] = Recipient{Address: c.Phone, Name: c.Name, Success: err == nil}
			if err != nil {
				out[i].Error = describe(err)
				log.Warn("sms failed", zap.String("contact", c.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Recipients: out}
	sent := 0
	for _, r := range out {
		if r.Success {
			sent++
		}
	}
	res.Success = sent > 0
	if !res.Success {
		res.Reason = ReasonAllRecipientsFail
	}
	log.Info("contacts notified", zap.Int("sent", sent), zap.Int("failed", len(out)-sent))
	return res
}

var _ Notifier = (*Dispatcher)(nil)
