package services

import (
	"github.com/sirupsen/logrus"
)

// Collaborators invoked after a state machine transaction commits. All of
// them are fire-and-forget: a sink failure is logged and never rolls back or
// fails the committed transition.

// NotificationSink delivers an in-app notification to a user
type NotificationSink interface {
	Notify(userID, notificationType, title, message string, metadata map[string]interface{}) error
}

// Broadcaster pushes events to connected clients, best effort
type Broadcaster interface {
	Broadcast(event string, payload interface{}) error
	SendToRole(role, event string, payload interface{}) error
}

// AuditSink records who did what to which entity
type AuditSink interface {
	LogAudit(actorID, action, entityType, entityID string, oldValue, newValue interface{}) error
}

// LogNotifier is the dev-mode NotificationSink: it only logs
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a NotificationSink that writes to the log
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification instead of delivering it
func (n *LogNotifier) Notify(userID, notificationType, title, message string, metadata map[string]interface{}) error {
	n.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    notificationType,
		"title":   title,
	}).Info("Notification (dev mode)")
	return nil
}

// NoopBroadcaster is used when Redis is disabled
type NoopBroadcaster struct{}

// Broadcast drops the event
func (b *NoopBroadcaster) Broadcast(event string, payload interface{}) error { return nil }

// SendToRole drops the event
func (b *NoopBroadcaster) SendToRole(role, event string, payload interface{}) error { return nil }
