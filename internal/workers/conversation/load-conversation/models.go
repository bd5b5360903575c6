// internal/workers/conversation/load-conversation/models.go
package loadconversation

import "pump-advisor-workers/internal/engine"

type Input struct {
	ConversationID string `json:"conversationId"`
	LatestMessage  string `json:"latestMessage,omitempty"`
}

type Output struct {
	ConversationID string                   `json:"conversationId"`
	Messages       []engine.Message         `json:"messages"`
	State          engine.ConversationState `json:"state"`
	LastAction     string                   `json:"lastAction,omitempty"`
	FromCache      bool                     `json:"fromCache"`
}
