// internal/workers/conversation/phrase-response/handler_test.go
package phraseresponse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/pkg/catalog"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		LLMTimeout: 2 * time.Second,
		LLMEnabled: true,
		MaxRetries: 1,
	}
}

type fakeAI struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeAI) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

func rankedPump(id, model, label string) engine.RankedPump {
	return engine.RankedPump{
		Pump:            catalog.Pump{ID: id, Model: model},
		MatchConfidence: 90,
		MatchLabel:      label,
	}
}

// ==========================
// LLM Phrasing Tests
// ==========================

func TestHandler_Execute_LLMSuccess(t *testing.T) {
	ai := &fakeAI{responses: []string{
		"How many floors does the building have?\n[SUGGESTIONS: 1-2 floors | 3-4 floors | More than 4]",
	}}

	handler := NewHandler(createTestConfig(), ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action:          engine.ActionAsk,
			QuestionContext: "Ask how many floors the building has.",
			Suggestions:     []string{"original suggestion"},
		},
	})

	require.NotNil(t, output)
	assert.True(t, output.LLMUsed)
	assert.Equal(t, "How many floors does the building have?", output.Text)
	// Marker suggestions replace the decision's defaults.
	assert.Equal(t, []string{"1-2 floors", "3-4 floors", "More than 4"}, output.Suggestions)
}

func TestHandler_Execute_LLMWithoutMarkerKeepsDecisionSuggestions(t *testing.T) {
	ai := &fakeAI{responses: []string{"Could you tell me more about the building?"}}

	handler := NewHandler(createTestConfig(), ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action:      engine.ActionAsk,
			Suggestions: []string{"Small house", "Apartment block"},
		},
	})

	assert.True(t, output.LLMUsed)
	assert.Equal(t, "Could you tell me more about the building?", output.Text)
	assert.Equal(t, []string{"Small house", "Apartment block"}, output.Suggestions)
}

func TestHandler_Execute_LLMErrorFallsBack(t *testing.T) {
	ai := &fakeAI{err: errors.New("model unavailable")}

	handler := NewHandler(createTestConfig(), ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action: engine.ActionRecommend,
			Pumps:  []engine.RankedPump{rankedPump("scala2", "SCALA2 3-45", "Excellent")},
		},
	})

	assert.False(t, output.LLMUsed)
	assert.Contains(t, output.Text, "SCALA2 3-45")
}

func TestHandler_Execute_EmptyLLMReplyRetriesThenFallsBack(t *testing.T) {
	ai := &fakeAI{responses: []string{""}}

	config := createTestConfig()
	config.MaxRetries = 1
	handler := NewHandler(config, ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{Action: engine.ActionGreet},
	})

	assert.False(t, output.LLMUsed)
	assert.Equal(t, 2, ai.calls)
	assert.NotEmpty(t, output.Text)
}

func TestHandler_Execute_LLMDisabled(t *testing.T) {
	ai := &fakeAI{responses: []string{"should not be used"}}

	config := createTestConfig()
	config.LLMEnabled = false
	handler := NewHandler(config, ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{Action: engine.ActionGreet},
	})

	assert.False(t, output.LLMUsed)
	assert.Zero(t, ai.calls)
	assert.NotEmpty(t, output.Text)
}

func TestHandler_Execute_DecisionPayloadPassedThrough(t *testing.T) {
	ai := &fakeAI{responses: []string{"Here are my picks."}}

	handler := NewHandler(createTestConfig(), ai, nil, logger.NewTestLogger(t))

	pumps := []engine.RankedPump{rankedPump("cr10", "CR 10-6", "Good")}
	requirements := []engine.Requirement{{Label: "Flow", Value: "10 m³/h"}}

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action:       engine.ActionRecommend,
			Pumps:        pumps,
			Requirements: requirements,
		},
	})

	assert.Equal(t, pumps, output.Pumps)
	assert.Equal(t, requirements, output.Requirements)
}

func TestHandler_Execute_RequirementsMarkerOverridesDecision(t *testing.T) {
	ai := &fakeAI{responses: []string{
		"Got it, here's what I have so far.\n[REQUIREMENTS: Flow=15 m³/h | Head=30 m]",
	}}

	handler := NewHandler(createTestConfig(), ai, nil, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action:       engine.ActionAsk,
			Requirements: []engine.Requirement{{Label: "Flow", Value: "old"}},
		},
	})

	assert.True(t, output.LLMUsed)
	assert.Equal(t, "Got it, here's what I have so far.", output.Text)
	assert.Equal(t, []engine.Requirement{
		{Label: "Flow", Value: "15 m³/h"},
		{Label: "Head", Value: "30 m"},
	}, output.Requirements)
}

func TestHandler_Execute_MentionedPumpsAttached(t *testing.T) {
	cat := &catalog.Catalog{Pumps: []catalog.Pump{
		{ID: "scala2", Model: "SCALA2 3-45"},
		{ID: "cr10", Model: "CR 10-6"},
	}}
	ai := &fakeAI{responses: []string{
		"The CR 10-6 would handle that; the SCALA2 3-45 stays my main pick.",
	}}

	handler := NewHandler(createTestConfig(), ai, cat, logger.NewTestLogger(t))

	output := handler.Execute(context.Background(), &Input{
		Decision: engine.Result{
			Action: engine.ActionRecommend,
			Pumps:  []engine.RankedPump{rankedPump("scala2", "SCALA2 3-45", "Excellent")},
		},
	})

	// Only the pump outside the recommendation list becomes a card.
	require.Len(t, output.MentionedPumps, 1)
	assert.Equal(t, "cr10", output.MentionedPumps[0].ID)
}

// ==========================
// Marker Parsing Tests
// ==========================

func TestParseSuggestionsMarker(t *testing.T) {
	tests := []struct {
		name            string
		text            string
		wantText        string
		wantSuggestions []string
	}{
		{
			name:            "no marker",
			text:            "Just a plain reply.",
			wantText:        "Just a plain reply.",
			wantSuggestions: nil,
		},
		{
			name:            "trailing marker",
			text:            "Which floor?\n[SUGGESTIONS: Ground | Second | Third]",
			wantText:        "Which floor?",
			wantSuggestions: []string{"Ground", "Second", "Third"},
		},
		{
			name:            "single suggestion",
			text:            "Anything else?\n[SUGGESTIONS: No, that's all]",
			wantText:        "Anything else?",
			wantSuggestions: []string{"No, that's all"},
		},
		{
			name:            "empty entries dropped",
			text:            "Pick one.\n[SUGGESTIONS: A ||  | B]",
			wantText:        "Pick one.",
			wantSuggestions: []string{"A", "B"},
		},
		{
			name:            "marker spanning lines",
			text:            "Pick one.\n[SUGGESTIONS: A |\nB]",
			wantText:        "Pick one.",
			wantSuggestions: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, suggestions := parseSuggestionsMarker(tt.text)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantSuggestions, suggestions)
		})
	}
}

func TestParseRequirementsMarker(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantText string
		wantReqs []engine.Requirement
	}{
		{
			name:     "no marker",
			text:     "Just a plain reply.",
			wantText: "Just a plain reply.",
			wantReqs: nil,
		},
		{
			name:     "two entries",
			text:     "Noted.\n[REQUIREMENTS: Application=Heating | Floors=3]",
			wantText: "Noted.",
			wantReqs: []engine.Requirement{
				{Label: "Application", Value: "Heating"},
				{Label: "Floors", Value: "3"},
			},
		},
		{
			name:     "entries without equals are dropped",
			text:     "Noted.\n[REQUIREMENTS: Application=Heating | nonsense]",
			wantText: "Noted.",
			wantReqs: []engine.Requirement{{Label: "Application", Value: "Heating"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, reqs := parseRequirementsMarker(tt.text)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantReqs, reqs)
		})
	}
}

// ==========================
// Fallback Text Tests
// ==========================

func TestFallbackText(t *testing.T) {
	tests := []struct {
		name     string
		decision engine.Result
		contains string
	}{
		{
			name:     "greet",
			decision: engine.Result{Action: engine.ActionGreet},
			contains: "help you find the right pump",
		},
		{
			name: "recommend single pump",
			decision: engine.Result{
				Action: engine.ActionRecommend,
				Pumps:  []engine.RankedPump{rankedPump("scala2", "SCALA2 3-45", "Excellent")},
			},
			contains: "SCALA2 3-45",
		},
		{
			name: "recommend multiple pumps lists all models",
			decision: engine.Result{
				Action: engine.ActionRecommend,
				Pumps: []engine.RankedPump{
					rankedPump("scala2", "SCALA2 3-45", "Excellent"),
					rankedPump("cr10", "CR 10-6", "Good"),
				},
			},
			contains: "SCALA2 3-45, CR 10-6",
		},
		{
			name:     "recommend with no pumps apologises",
			decision: engine.Result{Action: engine.ActionRecommend},
			contains: "couldn't find a matching pump",
		},
		{
			name: "ask uses question context",
			decision: engine.Result{
				Action:          engine.ActionAsk,
				QuestionContext: "How many bathrooms does the house have?",
			},
			contains: "bathrooms",
		},
		{
			name:     "ask without context uses generic question",
			decision: engine.Result{Action: engine.ActionAsk},
			contains: "tell me a bit more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, fallbackText(tt.decision), tt.contains)
		})
	}
}
