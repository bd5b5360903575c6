// internal/workers/conversation/phrase-response/models.go
package phraseresponse

import (
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/pkg/catalog"
)

type Input struct {
	ConversationID string        `json:"conversationId,omitempty"`
	Decision       engine.Result `json:"decision"`
	LatestMessage  string        `json:"latestMessage,omitempty"`
}

type Output struct {
	Text         string               `json:"text"`
	Suggestions  []string             `json:"suggestions,omitempty"`
	Requirements []engine.Requirement `json:"requirements,omitempty"`
	Pumps        []engine.RankedPump  `json:"pumps,omitempty"`
	// MentionedPumps carries catalog cards for models named in the prose
	// that are not part of the recommendation list.
	MentionedPumps []catalog.Pump `json:"mentionedPumps,omitempty"`
	LLMUsed        bool           `json:"llmUsed"`
}
