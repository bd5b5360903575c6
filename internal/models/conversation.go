// internal/models/conversation.go
package models

import "time"

// ConversationMessage is a row in the conversation_messages table.
type ConversationMessage struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversationId" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Text           string    `json:"text" db:"text"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// RecommendationRecord captures a delivered recommendation for follow-up.
type RecommendationRecord struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversationId" db:"conversation_id"`
	PumpIDs        []string  `json:"pumpIds" db:"pump_ids"`
	FlowM3H        *float64  `json:"flowM3h,omitempty" db:"flow_m3h"`
	HeadM          *float64  `json:"headM,omitempty" db:"head_m"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
