// internal/workers/conversation/decide-next-action/handler_test.go
package decidenextaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/pkg/catalog"
)

// ==========================
// Test Fixtures
// ==========================

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Version: "test",
		Pumps: []catalog.Pump{
			{
				ID: "scala2", Model: "SCALA2 3-45", Family: "SCALA2",
				Category: "Domestic Booster", Type: "Self-priming compact booster",
				Applications: []string{"Domestic water supply", "Pressure boosting"},
				Specs: map[string]interface{}{
					"max_flow_m3h": 4.5, "max_head_m": 45.0, "power_kw": 0.55, "eei": 0.19,
				},
				PriceRangeUSD: "600-800",
				CompetitorEquivalents: map[string]string{
					"wilo": "HiMulti 3",
				},
			},
			{
				ID: "cr10", Model: "CR 10-6", Family: "CR",
				Category: "Multistage Centrifugal", Type: "Vertical multistage",
				Applications: []string{"Water supply", "Pressure boosting", "Industrial"},
				Specs: map[string]interface{}{
					"max_flow_m3h": 13.0, "max_head_m": 58.0, "rated_flow_m3h": 10.0, "rated_head_m": 48.0,
					"power_kw": 2.2, "eei": 0.4,
				},
				PriceRangeUSD: "2,000-2,800",
			},
			{
				ID: "magna3", Model: "MAGNA3 32-100", Family: "MAGNA3",
				Category: "Circulator", Type: "Wet-rotor circulator",
				Applications: []string{"Heating", "Cooling", "HVAC"},
				Specs: map[string]interface{}{
					"max_flow_m3h": 18.0, "max_head_m": 10.0, "power_kw": 0.35, "eei": 0.18,
				},
				PriceRangeUSD: "1,100-1,500",
			},
		},
	}
}

func newTestHandler(t *testing.T) *Handler {
	config := &Config{Region: "PH"}
	eng := engine.New(testCatalog(), config.Region)
	return NewHandler(config, eng, logger.NewTestLogger(t))
}

func floatPtr(v float64) *float64 { return &v }

// ==========================
// Policy Decision Tests
// ==========================

func TestHandler_Execute_Greeting(t *testing.T) {
	handler := newTestHandler(t)

	output := handler.Execute(&Input{
		State:         engine.ConversationState{},
		LatestMessage: "Hello!",
	})

	require.NotNil(t, output)
	assert.Equal(t, engine.ActionGreet, output.Decision.Action)
	assert.NotEmpty(t, output.Decision.Suggestions)
}

func TestHandler_Execute_AsksBelowThreshold(t *testing.T) {
	handler := newTestHandler(t)

	output := handler.Execute(&Input{
		State: engine.ConversationState{
			Application: engine.AppDomesticWater,
			Problem:     engine.ProblemLowPressure,
		},
		LatestMessage: "low water pressure at home",
	})

	assert.Equal(t, engine.ActionAsk, output.Decision.Action)
	assert.NotEmpty(t, output.Decision.QuestionContext)
	assert.NotEmpty(t, output.Decision.Suggestions)
}

func TestHandler_Execute_RecommendsOnExactSpecs(t *testing.T) {
	handler := newTestHandler(t)

	output := handler.Execute(&Input{
		State: engine.ConversationState{
			Application: engine.AppWaterSupply,
			FlowM3H:     floatPtr(10),
			HeadM:       floatPtr(45),
		},
		LatestMessage: "10 m³/h at 45 m head",
	})

	assert.Equal(t, engine.ActionRecommend, output.Decision.Action)
	require.NotNil(t, output.Decision.DutyPoint)
	assert.Equal(t, engine.ConfidenceCalculated, output.Decision.DutyPoint.Confidence)
	require.NotEmpty(t, output.Decision.Pumps)
	assert.Equal(t, "cr10", output.Decision.Pumps[0].ID)
	assert.NotEmpty(t, output.Decision.Requirements)
}

func TestHandler_Execute_AsksForCompetitorModel(t *testing.T) {
	handler := newTestHandler(t)

	output := handler.Execute(&Input{
		State: engine.ConversationState{
			ExistingPumpBrand: "Wilo",
		},
		LatestMessage: "I have a Wilo pump",
	})

	assert.Equal(t, engine.ActionAsk, output.Decision.Action)
	assert.Contains(t, output.Decision.QuestionContext, "Wilo")
}

func TestHandler_Execute_FeedbackAfterRecommendation(t *testing.T) {
	handler := newTestHandler(t)

	output := handler.Execute(&Input{
		State: engine.ConversationState{
			Application: engine.AppDomesticWater,
			Floors:      3,
			Bathrooms:   2,
			WaterSource: engine.SourceMains,
		},
		LatestMessage: "thanks, looks interesting",
		LastAction:    string(engine.ActionRecommend),
	})

	assert.Equal(t, engine.ActionAsk, output.Decision.Action)
	assert.Contains(t, output.Decision.QuestionContext, "recommendation")
}

func TestHandler_Execute_StateCarriedThrough(t *testing.T) {
	handler := newTestHandler(t)

	state := engine.ConversationState{
		Application: engine.AppHeating,
		Floors:      2,
	}
	output := handler.Execute(&Input{State: state, LatestMessage: "heating for 2 floors"})

	assert.Equal(t, state, output.Decision.State)
}
