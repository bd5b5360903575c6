// internal/engine/policy.go
//
// Conversation policy. Decides, from the accumulated requirements and the
// latest message, whether to greet, ask one more question, or recommend.
// Asking returns a questionContext instruction plus quick-reply
// suggestions; the final wording is always delegated to the phrasing layer.
package engine

import (
	"fmt"
	"strings"
)

// InfoQuality scores how much of the picture we have. Exact hydraulics or
// a motor rating alone are always enough; otherwise each field contributes
// its weight. At 8 or more the policy moves toward a recommendation.
func InfoQuality(state ConversationState) int {
	if state.FlowM3H != nil && state.HeadM != nil {
		return 10
	}
	if state.MotorKW != nil && state.FlowM3H == nil {
		return 10
	}

	score := 0
	if state.Application != "" {
		score += 3
	}
	if state.BuildingSize != "" {
		score += 2
	}
	if state.Floors > 0 {
		score += 3
	}
	if state.Bathrooms > 0 {
		score += 2
	}
	if state.WaterSource != "" {
		score += 1
	}
	if state.Problem != "" {
		score += 1
	}
	return score
}

const qualityThreshold = 8

// NextAction runs the policy rules in priority order. lastAction is the
// action taken on the previous turn; pass ActionNone on the first turn.
func (e *Engine) NextAction(state ConversationState, latestMessage string, lastAction Action) Result {
	// A reply after a recommendation that carries nothing newly extractable
	// is feedback on the recommendation, not a revision.
	if lastAction == ActionRecommend && latestMessage != "" && !HasNewSignal(latestMessage) {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "They just received a recommendation and replied without new requirements. Ask what they think — does the suggestion fit, do they want alternatives, or more detail on pricing and savings?",
			Suggestions:     []string{"Tell me more about this pump", "Show me alternatives", "What about the price?"},
			State:           state,
		}
	}

	if latestMessage != "" && IsGreeting(latestMessage) && state.Empty() {
		return Result{
			Action:          ActionGreet,
			QuestionContext: "The user just greeted you. Greet them back warmly and ask how you can help — are they looking to find the right pump, replace an existing one, or save energy?",
			Suggestions:     []string{"Find the right pump", "Replace my old pump", "Save energy on pumping"},
			State:           state,
		}
	}

	if state.ExistingPumpBrand != "" {
		if state.ExistingPump != "" {
			if crossRef, ok := e.catalog.FindCompetitorEquivalent(state.ExistingPumpBrand, state.ExistingPump); ok {
				return e.buildCompetitorRecommendation(state, crossRef)
			}
		}
		return Result{
			Action:          ActionAsk,
			QuestionContext: fmt.Sprintf("They mentioned a %s pump but didn't say which model. Ask which model it is, or what it's used for — to find the exact Grundfos equivalent.", state.ExistingPumpBrand),
			Suggestions:     []string{"Heating circulator", "Water pressure booster", "Borehole/well pump", "I know the model number"},
			State:           state,
		}
	}

	quality := InfoQuality(state)

	if quality >= qualityThreshold {
		if gated := e.applyGates(state); gated != nil {
			return *gated
		}
		return e.buildRecommendation(state)
	}

	return e.askNextQuestion(state)
}

// applyGates enforces per-application prerequisites that hold even when
// the quality score clears the threshold. A consultant still needs the
// house dimensions before sizing a booster.
func (e *Engine) applyGates(state ConversationState) *Result {
	exactFlow := state.FlowM3H != nil
	hasMotor := state.MotorKW != nil

	if state.Application == AppDomesticWater && state.Floors == 0 && state.Bathrooms == 0 {
		if state.Problem == ProblemReplacement && state.ExistingPumpBrand == "" {
			return &Result{
				Action:          ActionAsk,
				QuestionContext: "They're replacing a pump but haven't said what it does. Ask what the old pump is used for — boosting pressure, circulating heating water, pumping from a well?",
				Suggestions:     []string{"Water pressure booster", "Heating circulator", "Well/borehole pump", "Not sure"},
				State:           state,
			}
		}
		if state.Problem != "" {
			return &Result{
				Action:          ActionAsk,
				QuestionContext: askFloorsContext(state),
				Suggestions:     []string{"1-2 floors", "3-4 floors", "1-2 bathrooms", "3-4 bathrooms"},
				State:           state,
			}
		}
		return &Result{
			Action:          ActionAsk,
			QuestionContext: "They have a house but haven't described the water situation. Ask what's going on — low pressure, replacing a pump, or new install?",
			Suggestions:     []string{"Low water pressure", "Replacing old pump", "New installation", "High water bills"},
			State:           state,
		}
	}

	if state.Application == AppDomesticWater && state.WaterSource == "" && !exactFlow {
		return &Result{
			Action:          ActionAsk,
			QuestionContext: "Ask where the home's water comes from — city mains, a storage tank, or a well. This decides which pump families are physically suitable.",
			Suggestions:     []string{"City mains", "Storage tank", "Deep well"},
			State:           state,
		}
	}

	if state.Application == AppWaterSupply && state.Floors == 0 && !exactFlow && !hasMotor {
		return &Result{
			Action:          ActionAsk,
			QuestionContext: "Ask how many floors the building has — critical for calculating pump head.",
			Suggestions:     []string{"1-3 floors", "4-6 floors", "7-10 floors", "10+ floors"},
			State:           state,
		}
	}

	if (state.Application == AppHeating || state.Application == AppCooling) && state.Floors == 0 && !exactFlow {
		return &Result{
			Action:          ActionAsk,
			QuestionContext: "Ask how many floors the building has — critical for calculating pump head.",
			Suggestions:     []string{"1-3 floors", "4-6 floors", "7-10 floors", "10+ floors"},
			State:           state,
		}
	}

	return nil
}

// askNextQuestion picks the single most valuable missing field.
func (e *Engine) askNextQuestion(state ConversationState) Result {
	if state.Application == "" {
		context := "Ask what kind of system or problem they're dealing with."
		if state.FlowM3H != nil {
			context = "They gave specs but didn't say what the system is for. Ask what application — heating, cooling, water supply, etc."
		}
		return Result{
			Action:          ActionAsk,
			QuestionContext: context,
			Suggestions:     []string{"Heating system", "Cooling/AC", "Water pressure", "Replace a pump"},
			State:           state,
		}
	}

	if state.Application == AppDomesticWater {
		if state.Problem == "" {
			return Result{
				Action:          ActionAsk,
				QuestionContext: "They have a house/home but haven't said why they need a pump. Ask what their water situation is — low pressure, replacing old pump, new install?",
				Suggestions:     []string{"Low water pressure", "Replacing old pump", "New installation", "High water bills"},
				State:           state,
			}
		}
		if state.Problem == ProblemReplacement && state.ExistingPumpBrand == "" {
			return Result{
				Action:          ActionAsk,
				QuestionContext: "They're replacing an old pump. Ask what brand or model it is, or what it's used for.",
				Suggestions:     []string{"I know the brand/model", "Water pressure booster", "Well pump", "Not sure"},
				State:           state,
			}
		}
		return Result{
			Action:          ActionAsk,
			QuestionContext: askFloorsContext(state),
			Suggestions:     []string{"1-2 floors", "3-4 floors", "1-2 bathrooms", "3-4 bathrooms"},
			State:           state,
		}
	}

	if state.Application == AppHeating || state.Application == AppCooling {
		if state.Floors == 0 && state.FlowM3H == nil {
			return Result{
				Action:          ActionAsk,
				QuestionContext: "Ask how many floors the building has — critical for calculating pump head.",
				Suggestions:     []string{"1-3 floors", "4-6 floors", "7-10 floors", "10+ floors"},
				State:           state,
			}
		}
	}

	// Floors outrank building size for supply sizing; ask for them first.
	if state.Application == AppWaterSupply && state.Floors == 0 && state.FlowM3H == nil && state.MotorKW == nil {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "Ask how many floors the building has — critical for calculating pump head.",
			Suggestions:     []string{"1-3 floors", "4-6 floors", "7-10 floors", "10+ floors"},
			State:           state,
		}
	}

	if state.Application == AppWaterSupply && state.BuildingSize == "" && state.FlowM3H == nil {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "Ask about the scale of the facility — size and how much water they need.",
			Suggestions:     []string{"Small building/shop", "Medium (office/hotel)", "Large (factory/campus)", "I know the flow rate"},
			State:           state,
		}
	}

	if state.Application == AppWastewater && state.BuildingSize == "" {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "Ask about the scale of the wastewater system — domestic basement sump or commercial.",
			Suggestions:     []string{"Home/basement", "Small building", "Commercial/industrial"},
			State:           state,
		}
	}

	if state.Application == AppDosing && state.BuildingSize == "" {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "Ask about the dosing application — what they're dosing and the rough scale.",
			Suggestions:     []string{"Chlorination", "pH adjustment", "Water treatment", "I know the flow rate"},
			State:           state,
		}
	}

	// Application plus some context with nothing more valuable to ask.
	return e.buildRecommendation(state)
}

func askFloorsContext(state ConversationState) string {
	if state.Problem != "" {
		return fmt.Sprintf("They have %s in their home. Ask how many floors and/or bathrooms — needed to size the pump correctly.", strings.ReplaceAll(string(state.Problem), "_", " "))
	}
	return "They have a house but haven't described the water situation. Ask what's going on — low pressure, replacing a pump, or new install?"
}
