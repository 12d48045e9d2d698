package notification

import (
	"context"
	"encoding/json"

	"resellerportal/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers one claimed notification.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Publisher pushes live events to connected websocket clients.
type Publisher interface {
	SendToAccount(accountID uuid.UUID, message []byte)
	BroadcastToAdmins(message []byte)
}

// LiveEvent is the websocket frame for a notification
type LiveEvent struct {
	Event   string          `json:"event"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

// liveEvents are the events mirrored over websockets. Invite and password
// reset rows carry single-use links and only ever go to the recipient's inbox.
var liveEvents = map[string]bool{
	model.EventAssignmentCreated:     true,
	model.EventAssignmentApproved:    true,
	model.EventAssignmentShipped:     true,
	model.EventAssignmentReceived:    true,
	model.EventAssignmentSold:        true,
	model.EventAssignmentSaleReverse: true,
}

// HubSender publishes assignment events to the recipient account and to every connected admin.
type HubSender struct {
	hub Publisher
}

func NewHubSender(hub Publisher) *HubSender {
	return &HubSender{hub: hub}
}

func (s *HubSender) Send(_ context.Context, n model.Notification) error {
	if !liveEvents[n.Event] {
		return nil
	}
	frame, err := json.Marshal(LiveEvent{Event: n.Event, Subject: n.Subject, Data: json.RawMessage(n.Payload)})
	if err != nil {
		return Permanent(err)
	}
	if n.RecipientAccountID != nil {
		s.hub.SendToAccount(*n.RecipientAccountID, frame)
	}
	s.hub.BroadcastToAdmins(frame)
	return nil
}

// MultiSender delivers through a primary sender whose outcome decides the
// outbox transition, then through best-effort secondaries whose failures are logged.
type MultiSender struct {
	primary     Sender
	secondaries []Sender
	log         *zap.Logger
}

func NewMultiSender(log *zap.Logger, primary Sender, secondaries ...Sender) *MultiSender {
	return &MultiSender{primary: primary, secondaries: secondaries, log: log}
}

func (m *MultiSender) Send(ctx context.Context, n model.Notification) error {
	if err := m.primary.Send(ctx, n); err != nil {
		return err
	}
	for _, s := range m.secondaries {
		if err := s.Send(ctx, n); err != nil {
			m.log.Warn("secondary notification sender failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("event", n.Event),
				zap.Error(err),
			)
		}
	}
	return nil
}
