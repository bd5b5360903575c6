// internal/workers/notification/send-recommendation/models.go
package sendrecommendation

import "pump-advisor-workers/internal/engine"

type Input struct {
	ConversationID string              `json:"conversationId"`
	RecipientEmail string              `json:"recipientEmail,omitempty"`
	RecipientPhone string              `json:"recipientPhone,omitempty"`
	Pumps          []engine.RankedPump `json:"pumps"`
	DutyPoint      *engine.DutyPoint   `json:"dutyPoint,omitempty"`
	Summary        string              `json:"summary,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)
