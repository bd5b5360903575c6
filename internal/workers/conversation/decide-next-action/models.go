// internal/workers/conversation/decide-next-action/models.go
package decidenextaction

import "pump-advisor-workers/internal/engine"

type Input struct {
	ConversationID string                   `json:"conversationId,omitempty"`
	State          engine.ConversationState `json:"state"`
	LatestMessage  string                   `json:"latestMessage,omitempty"`
	LastAction     string                   `json:"lastAction,omitempty"`
}

type Output struct {
	Decision engine.Result `json:"decision"`
}
