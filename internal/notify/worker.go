// Package notify consumes notification events off the bus and hands them to
// the mailer. Delivery is at-most-once: a failed send is logged and dropped,
// never retried, and the flow that queued the notification has already
// redirected the user.
package notify

import (
	"encoding/json"

	"github.com/coastalkoffix/webapp/internal/mailer"
	"github.com/coastalkoffix/webapp/pkg/events"
	"github.com/coastalkoffix/webapp/pkg/logger"
)

type Worker struct {
	bus    events.Subscriber
	mailer mailer.Service
}

func NewWorker(bus events.Subscriber, mailer mailer.Service) *Worker {
	return &Worker{bus: bus, mailer: mailer}
}

// Start subscribes the worker to the notification subject. Subscription is
// queue-scoped so horizontally scaled instances split the work.
func (w *Worker) Start() error {
	return w.bus.QueueSubscribe(events.NotifySend, "notify", w.handle)
}

func (w *Worker) handle(msg *events.Message) {
	var ev events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("Failed to decode notification event", "error", err)
		return
	}

	var err error
	switch ev.Type {
	case events.NotifyVerificationCode:
		err = w.mailer.SendVerificationCode(ev.Recipient, ev.Code)
	case events.NotifyPasswordResetCode:
		err = w.mailer.SendPasswordResetCode(ev.Recipient, ev.Code)
	default:
		logger.Warn("Unknown notification type", "type", ev.Type)
		return
	}

	if err != nil {
		logger.Error("Failed to send notification email",
			"type", ev.Type,
			"recipient", ev.Recipient,
			"error", err,
		)
		return
	}

	logger.Info("Notification email sent", "type", ev.Type, "recipient", ev.Recipient)
}
