package notifications

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Broadcaster delivers messages to connected clients.
type Broadcaster interface {
	Broadcast(message WebSocketMessage) error
	SendToUser(userID string, message WebSocketMessage) error
}

// Service turns domain events into WebSocket messages. Delivery is best
// effort: failures are logged and never returned to the caller.
type Service struct {
	ws     Broadcaster
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a notification service. A nil broadcaster disables
// delivery.
func NewService(ws Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ws: ws, logger: logger, now: time.Now}
}

// DocumentGenerated notifies the requesting user, or everyone when the
// document was not requested by a user.
func (s *Service) DocumentGenerated(ctx context.Context, e DocumentEvent) {
	s.deliver(e.RequestedBy, WebSocketMessage{
		Type:    WSMessageTypeDocumentGenerated,
		Data:    e.data(),
		Channel: "documents",
	})
}

// DocumentSkipped reports a request that produced no document.
func (s *Service) DocumentSkipped(ctx context.Context, e DocumentEvent) {
	s.deliver(e.RequestedBy, WebSocketMessage{
		Type:    WSMessageTypeDocumentSkipped,
		Data:    e.data(),
		Channel: "documents",
	})
}

// StatusChanged broadcasts a cooperative status change.
func (s *Service) StatusChanged(ctx context.Context, cooperativeID, from, to, by string) {
	s.deliver("", WebSocketMessage{
		Type: WSMessageTypeStatusChanged,
		Data: map[string]interface{}{
			"cooperative_id": cooperativeID,
			"from":           from,
			"to":             to,
		},
		Channel: "cooperatives",
		Source:  by,
	})
}

// ExportDelivered broadcasts the outcome of a scheduled export.
func (s *Service) ExportDelivered(ctx context.Context, schedule, filename string, recipients int) {
	s.deliver("", WebSocketMessage{
		Type: WSMessageTypeExportDelivered,
		Data: map[string]interface{}{
			"schedule":   schedule,
			"filename":   filename,
			"recipients": recipients,
		},
		Channel: "exports",
	})
}

func (s *Service) deliver(userID string, msg WebSocketMessage) {
	if s == nil || s.ws == nil {
		return
	}
	msg.Timestamp = s.now()

	var err error
	if userID != "" {
		err = s.ws.SendToUser(userID, msg)
	} else {
		msg.Target = "all"
		err = s.ws.Broadcast(msg)
	}
	if err != nil {
		s.logger.Debug("notification not delivered",
			zap.String("type", msg.Type),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
