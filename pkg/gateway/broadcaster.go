package gateway

import (
	"github.com/rs/zerolog"
)

// EventBroadcaster pushes server-wide events to every session
type EventBroadcaster struct {
	sessions *SessionRegistry
	logger   zerolog.Logger
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(sessions *SessionRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		sessions: sessions,
		logger:   logger,
	}
}

// Broadcast sends an event to all sessions and returns how many received it
func (b *EventBroadcaster) Broadcast(event string, data interface{}) int {
	sessions := b.sessions.GetAll()
	if len(sessions) == 0 {
		b.logger.Debug().Str("event", event).Msg("No sessions to broadcast to")
		return 0
	}

	successCount := 0
	failureCount := 0
	for _, sess := range sessions {
		msg := EventMessage{
			Event:     event,
			Data:      data,
			Timestamp: nowMillis(),
			Session:   sess.ID,
		}
		if err := sess.Send(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("sessionId", sess.ID).
				Str("event", event).
				Msg("Failed to broadcast to session")
			failureCount++
		} else {
			successCount++
		}
	}

	b.logger.Debug().
		Str("event", event).
		Int("success", successCount).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
	return successCount
}
