// internal/engine/intent.go
package engine

import "strings"

// ExtractIntent runs the pattern rules over a conversation and returns the
// requirements it can read directly from the text. Only user messages are
// considered. When the latest message is a correction, application and
// building size are re-detected from that message first so the revision
// overrides earlier answers.
func ExtractIntent(messages []Message) ConversationState {
	var state ConversationState

	var userTexts []string
	for _, m := range messages {
		if m.Role == "user" {
			userTexts = append(userTexts, m.Content)
		}
	}
	if len(userTexts) == 0 {
		return state
	}

	allText := strings.Join(userTexts, " ")
	latestText := userTexts[len(userTexts)-1]
	correction := IsCorrection(latestText)

	if correction {
		if app := detectApplication(latestText); app != "" {
			state.Application = app
		} else {
			state.Application = detectApplication(allText)
		}
		if size := detectBuildingSize(latestText); size != "" {
			state.BuildingSize = size
		} else {
			state.BuildingSize = detectBuildingSize(allText)
		}
	} else {
		state.Application = detectApplication(allText)
		state.BuildingSize = detectBuildingSize(allText)
	}

	state.FlowM3H = detectFlow(allText)
	state.HeadM = detectHead(allText)

	if floors := detectPositiveInt(allText, floorsPattern); floors > 0 {
		state.Floors = floors
		if state.BuildingSize == "" {
			switch {
			case floors <= 3:
				state.BuildingSize = SizeSmall
			case floors <= 8:
				state.BuildingSize = SizeMedium
			default:
				state.BuildingSize = SizeLarge
			}
		}
	}

	state.Bathrooms = detectPositiveInt(allText, bathroomPattern)
	state.WaterSource = detectWaterSource(allText)
	state.Problem = detectProblem(allText)

	if m := competitorPattern.FindStringSubmatch(allText); m != nil {
		state.ExistingPumpBrand = m[1]
		if mm := pumpModelPattern.FindStringSubmatch(allText); mm != nil {
			state.ExistingPump = mm[1]
		}
	}

	state.ExistingPumpPower = detectNameplatePower(allText)
	state.MotorKW = detectMotorRating(allText)

	// "my house" implies a small domestic installation unless something more
	// specific was said.
	if myHomePattern.MatchString(allText) {
		if state.Application == "" {
			state.Application = AppDomesticWater
		}
		if state.BuildingSize == "" {
			state.BuildingSize = SizeSmall
		}
	}

	return state
}

// MergeStates combines pattern-extracted and LLM-extracted requirements
// field by field. The pattern value wins wherever both are set; the LLM
// value only fills fields the patterns missed.
func MergeStates(pattern, llm ConversationState) ConversationState {
	merged := pattern

	if merged.Application == "" {
		merged.Application = llm.Application
	}
	if merged.BuildingSize == "" {
		merged.BuildingSize = llm.BuildingSize
	}
	if merged.FlowM3H == nil {
		merged.FlowM3H = llm.FlowM3H
	}
	if merged.HeadM == nil {
		merged.HeadM = llm.HeadM
	}
	if merged.Floors == 0 {
		merged.Floors = llm.Floors
	}
	if merged.Bathrooms == 0 {
		merged.Bathrooms = llm.Bathrooms
	}
	if merged.WaterSource == "" {
		merged.WaterSource = llm.WaterSource
	}
	if merged.Problem == "" {
		merged.Problem = llm.Problem
	}
	if merged.ExistingPumpBrand == "" {
		merged.ExistingPumpBrand = llm.ExistingPumpBrand
	}
	if merged.ExistingPump == "" {
		merged.ExistingPump = llm.ExistingPump
	}
	if merged.ExistingPumpPower == nil {
		merged.ExistingPumpPower = llm.ExistingPumpPower
	}
	if merged.MotorKW == nil {
		merged.MotorKW = llm.MotorKW
	}
	if merged.EvalDomain == "" {
		merged.EvalDomain = llm.EvalDomain
	}
	return merged
}
