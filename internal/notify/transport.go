package notify

import (
	"context"

	"go.uber.org/zap"
)

// Pusher delivers a push message to one registered device.
type Pusher interface {
	Push(ctx context.Context, deviceToken string, msg Message) error
}

// SMSSender delivers a text message to one phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// LogTransport writes notifications to the log instead of delivering them.
type LogTransport struct {
	log *zap.Logger
}

// NewLogTransport returns a transport for development and dry runs.
func NewLogTransport(log *zap.Logger) *LogTransport {
	return &LogTransport{log: log.Named("notify.log")}
}

// Push logs the message.
func (t *LogTransport) Push(_ context.Context, deviceToken string, msg Message) error {
	t.log.Info("push", zap.String("token", deviceToken), zap.String("title", msg.Title), zap.String("body", msg.Body))
	return nil
}

// SendSMS logs the text.
func (t *LogTransport) SendSMS(_ context.Context, phone, text string) error {
	t.log.Info("sms", zap.String("phone", phone), zap.String("text", text))
	return nil
}

var (
	_ Pusher    = (*LogTransport)(nil)
	_ SMSSender = (*LogTransport)(nil)
)
