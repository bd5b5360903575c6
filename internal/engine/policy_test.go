// internal/engine/policy_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Info Quality Tests
// ==========================

func TestInfoQuality(t *testing.T) {
	tests := []struct {
		name  string
		state ConversationState
		want  int
	}{
		{"empty", ConversationState{}, 0},
		{"exact specs bypass", ConversationState{FlowM3H: floatPtr(10), HeadM: floatPtr(20)}, 10},
		{"motor power only bypass", ConversationState{MotorKW: floatPtr(5.5)}, 10},
		{"app size bathrooms", ConversationState{Application: AppDomesticWater, BuildingSize: SizeSmall, Bathrooms: 2}, 7},
		{"plus floors crosses threshold", ConversationState{Application: AppDomesticWater, BuildingSize: SizeSmall, Bathrooms: 2, Floors: 3}, 10},
		{"app and problem only", ConversationState{Application: AppDomesticWater, Problem: ProblemLowPressure}, 4},
		{"everything", ConversationState{Application: AppHeating, BuildingSize: SizeMedium, Floors: 5, Bathrooms: 2, WaterSource: SourceMains, Problem: ProblemNewInstall}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InfoQuality(tt.state))
		})
	}
}

// ==========================
// Policy Rule Tests
// ==========================

func TestNextActionGreeting(t *testing.T) {
	e := testEngine()
	result := e.NextAction(ConversationState{}, "Hello!", ActionNone)

	assert.Equal(t, ActionGreet, result.Action)
	assert.Equal(t, []string{"Find the right pump", "Replace my old pump", "Save energy on pumping"}, result.Suggestions)
}

func TestNextActionGreetingWithExistingStateFallsThrough(t *testing.T) {
	e := testEngine()
	// greeting text but state already has knowledge: not a fresh greet
	result := e.NextAction(ConversationState{Application: AppHeating}, "hi", ActionNone)
	assert.NotEqual(t, ActionGreet, result.Action)
}

func TestNextActionBelowThresholdAsks(t *testing.T) {
	e := testEngine()

	// quality 7: one short of the threshold
	state := ConversationState{Application: AppDomesticWater, BuildingSize: SizeSmall, Bathrooms: 2}
	result := e.NextAction(state, "small house, 2 bathrooms", ActionNone)
	assert.Equal(t, ActionAsk, result.Action)

	// quality 4: asks for floors/bathrooms since the problem is known
	state = ConversationState{Application: AppDomesticWater, Problem: ProblemLowPressure}
	result = e.NextAction(state, "low water pressure at home", ActionNone)
	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "1-2 floors")
}

func TestNextActionBelowThresholdAsksNonDomestic(t *testing.T) {
	e := testEngine()

	// quality 7: building size known but floors missing must still ask
	state := ConversationState{Application: AppWaterSupply, BuildingSize: SizeMedium, Bathrooms: 2}
	assert.Equal(t, 7, InfoQuality(state))
	result := e.NextAction(state, "a medium office building", ActionNone)
	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "1-3 floors")

	state = ConversationState{Application: AppHeating, BuildingSize: SizeMedium, Bathrooms: 2}
	result = e.NextAction(state, "heating for a medium building", ActionNone)
	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "1-3 floors")
}

func TestNextActionAsksApplicationFirst(t *testing.T) {
	e := testEngine()
	result := e.NextAction(ConversationState{Problem: ProblemLowPressure}, "it's broken", ActionNone)

	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "Heating system")
}

func TestNextActionDomesticAsksProblemBeforeSizing(t *testing.T) {
	e := testEngine()
	result := e.NextAction(ConversationState{Application: AppDomesticWater}, "my house needs a pump", ActionNone)

	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "Low water pressure")
}

func TestNextActionWaterSourceGate(t *testing.T) {
	e := testEngine()
	// quality 11 clears the threshold but the water source gate fires
	state := ConversationState{
		Application:  AppDomesticWater,
		BuildingSize: SizeSmall,
		Floors:       3,
		Bathrooms:    2,
		Problem:      ProblemLowPressure,
	}
	result := e.NextAction(state, "3 floors, 2 bathrooms, weak pressure", ActionNone)

	assert.Equal(t, ActionAsk, result.Action)
	assert.Equal(t, []string{"City mains", "Storage tank", "Deep well"}, result.Suggestions)
}

func TestNextActionFloorsGateForHeating(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		Application:  AppHeating,
		BuildingSize: SizeMedium,
		WaterSource:  SourceMains,
		Problem:      ProblemNewInstall,
		Bathrooms:    2,
	}
	assert.Equal(t, 9, InfoQuality(state))

	result := e.NextAction(state, "new heating install", ActionNone)
	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "1-3 floors")
}

func TestNextActionRecommendsWhenGatesClear(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		Application:  AppDomesticWater,
		BuildingSize: SizeSmall,
		Floors:       3,
		Bathrooms:    2,
		Problem:      ProblemLowPressure,
		WaterSource:  SourceMains,
	}
	result := e.NextAction(state, "city mains", ActionNone)

	assert.Equal(t, ActionRecommend, result.Action)
	if assert.NotNil(t, result.DutyPoint) {
		assert.Equal(t, 2.268, result.DutyPoint.EstimatedFlowM3H)
		assert.Equal(t, 15.35, result.DutyPoint.EstimatedHeadM)
	}
	assert.NotEmpty(t, result.Pumps)
	for _, p := range result.Pumps {
		assert.NotContains(t, []string{"CR", "SP", "SQ"}, p.FamilyKey())
	}
	assert.NotEmpty(t, result.Requirements)
}

func TestNextActionExactSpecsRecommendDirectly(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		Application: AppWaterSupply,
		FlowM3H:     floatPtr(10),
		HeadM:       floatPtr(45),
	}
	result := e.NextAction(state, "10 m³/h at 45 m head", ActionNone)

	assert.Equal(t, ActionRecommend, result.Action)
	assert.Equal(t, ConfidenceCalculated, result.DutyPoint.Confidence)
}

func TestNextActionMotorPowerOnlyRecommends(t *testing.T) {
	e := testEngine()
	state := ConversationState{Application: AppWaterSupply, MotorKW: floatPtr(2.2)}
	result := e.NextAction(state, "2.2 kw motor", ActionNone)

	assert.Equal(t, ActionRecommend, result.Action)
	if assert.NotEmpty(t, result.Pumps) {
		assert.Equal(t, "cr10", result.Pumps[0].ID)
	}
}

// ==========================
// Post-Recommendation Feedback Tests
// ==========================

func TestNextActionFeedbackAfterRecommend(t *testing.T) {
	e := testEngine()
	state := ConversationState{Application: AppDomesticWater, Floors: 3, Bathrooms: 2, WaterSource: SourceMains}

	result := e.NextAction(state, "thanks, looks interesting", ActionRecommend)

	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.QuestionContext, "recommendation")
}

func TestNextActionNewSignalAfterRecommendRevises(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		Application: AppDomesticWater, Floors: 3, Bathrooms: 4,
		WaterSource: SourceMains, Problem: ProblemLowPressure,
	}

	// a new bathroom count is new signal: re-derive instead of asking
	result := e.NextAction(state, "actually we have 4 bathrooms", ActionRecommend)
	assert.Equal(t, ActionRecommend, result.Action)
}

// ==========================
// Competitor Replacement Tests
// ==========================

func TestNextActionCompetitorCrossReference(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		ExistingPumpBrand: "Wilo",
		ExistingPump:      "Stratos 32/1-12",
		Application:       AppHeating,
	}
	result := e.NextAction(state, "replacing a Wilo Stratos 32/1-12", ActionNone)

	assert.Equal(t, ActionRecommend, result.Action)
	assert.True(t, result.CompetitorReplacement)
	if assert.NotEmpty(t, result.Pumps) {
		assert.Equal(t, "magna3", result.Pumps[0].ID)
		assert.Equal(t, 95, result.Pumps[0].MatchConfidence)
		assert.Equal(t, "Excellent Match", result.Pumps[0].MatchLabel)
		assert.Equal(t, "Wilo Stratos 32/1-12", result.Pumps[0].ComparedTo)
	}
}

func TestNextActionCompetitorBrandOnlyAsks(t *testing.T) {
	e := testEngine()
	state := ConversationState{ExistingPumpBrand: "KSB"}
	result := e.NextAction(state, "I have a KSB pump", ActionNone)

	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.QuestionContext, "KSB")
	assert.Contains(t, result.Suggestions, "I know the model number")
}

func TestNextActionCompetitorUnknownModelAsks(t *testing.T) {
	e := testEngine()
	state := ConversationState{ExistingPumpBrand: "Ebara", ExistingPump: "3M 40-125"}
	result := e.NextAction(state, "an Ebara 3M 40-125", ActionNone)

	// no cross-reference entry: fall back to asking
	assert.Equal(t, ActionAsk, result.Action)
}

// ==========================
// No-Match Handling Tests
// ==========================

func TestNextActionNoMatchFallsBackToAsk(t *testing.T) {
	e := testEngine()
	state := ConversationState{
		Application: AppWaterSupply,
		FlowM3H:     floatPtr(500),
		HeadM:       floatPtr(300),
	}
	result := e.NextAction(state, "500 m³/h at 300 m", ActionNone)

	assert.Equal(t, ActionAsk, result.Action)
	assert.True(t, result.NoMatch)
}

// ==========================
// Full Conversation Scenarios
// ==========================

func TestScenarioDomesticBoosterConversation(t *testing.T) {
	e := testEngine()

	history := []Message{
		userMsg("I need a pump for my 3-floor house, 2 bathrooms, water pressure is weak"),
	}
	state := ExtractIntent(history)
	assert.Equal(t, ProblemLowPressure, state.Problem)
	result := e.NextAction(state, history[len(history)-1].Content, ActionNone)

	// the engine must ask about water source before recommending
	assert.Equal(t, ActionAsk, result.Action)
	assert.Contains(t, result.Suggestions, "City mains")

	history = append(history,
		Message{Role: "assistant", Content: "Where does your water come from?"},
		userMsg("city mains"),
	)
	state = ExtractIntent(history)
	result = e.NextAction(state, "city mains", ActionAsk)

	assert.Equal(t, ActionRecommend, result.Action)
	assert.Equal(t, 2.268, result.DutyPoint.EstimatedFlowM3H)
	assert.Equal(t, 15.35, result.DutyPoint.EstimatedHeadM)
	assert.Equal(t, "SCALA", result.Pumps[0].FamilyKey())
	assert.NotEmpty(t, result.Pumps[0].ROI.AnnualSavings)
}

func TestScenarioCompetitorReplacementConversation(t *testing.T) {
	e := testEngine()

	history := []Message{userMsg("I want to replace my Wilo Stratos 32/1-12 heating circulator")}
	state := ExtractIntent(history)

	assert.Equal(t, "Wilo", state.ExistingPumpBrand)
	assert.Equal(t, "Stratos 32/1-12", state.ExistingPump)

	result := e.NextAction(state, history[0].Content, ActionNone)
	assert.Equal(t, ActionRecommend, result.Action)
	assert.True(t, result.CompetitorReplacement)
	assert.Equal(t, "MAGNA3 32-100", result.Pumps[0].Model)
}
