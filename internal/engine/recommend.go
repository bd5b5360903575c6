// internal/engine/recommend.go
//
// Recommendation assembly. Takes the ranked matches, attaches per-pump ROI
// figures computed against each pump's own implied oversizing, and builds
// the requirements summary shown next to the answer.
package engine

import (
	"fmt"
	"math"
	"strings"

	"pump-advisor-workers/pkg/catalog"
)

func (e *Engine) energyRate() EnergyRate {
	if r, ok := EnergyRates[e.region]; ok {
		return r
	}
	return EnergyRates["global"]
}

func (e *Engine) buildRecommendation(state ConversationState) Result {
	application := state.Application
	if application == "" {
		application = AppWaterSupply
	}
	buildingSize := state.BuildingSize
	if buildingSize == "" {
		buildingSize = SizeMedium
	}

	// Motor-power-only path: hydraulics unknown, nameplate rating given.
	if state.MotorKW != nil && state.FlowM3H == nil && state.HeadM == nil {
		return e.buildMotorPowerRecommendation(state, application, buildingSize)
	}

	rate := e.energyRate()
	operatingHours := OperatingHours(application, buildingSize)
	dutyPoint := EstimateDutyPoint(state)

	matched := e.MatchPumps(dutyPoint, application, state.WaterSource, state.EvalDomain)
	if len(matched) == 0 {
		return Result{
			Action:          ActionAsk,
			QuestionContext: "No catalog pump covers this duty point. Ask them to double-check the flow and head figures, or whether a larger multi-pump system is in scope.",
			Suggestions:     []string{"Let me re-check my numbers", "I need a bigger system", "Talk to an engineer"},
			DutyPoint:       &dutyPoint,
			State:           state,
			NoMatch:         true,
		}
	}

	appFactor := oversizingFactor(application, buildingSize)

	pumps := make([]RankedPump, 0, len(matched))
	for _, m := range matched {
		newPower, ok := m.Pump.Spec(catalog.SpecPowerKW)
		if !ok || newPower == 0 {
			newPower = 0.1
		}
		maxFlow, _ := m.Pump.Spec(catalog.SpecMaxFlowM3H)
		if maxFlow == 0 {
			maxFlow = 1
		}
		maxHead, _ := m.Pump.Spec(catalog.SpecMaxHeadM)
		if maxHead == 0 {
			maxHead = 1
		}
		pumpCostPhp := ParsePrice(m.Pump.PriceRangeUSD) * usdToPhp

		// Savings are judged against this pump's own physically implied
		// oversizing, not a single global assumption.
		pumpOversizeRatio := math.Max(maxFlow/dutyPoint.EstimatedFlowM3H, maxHead/dutyPoint.EstimatedHeadM)
		oversizedPower := newPower * math.Min(appFactor, pumpOversizeRatio)
		loadFraction := 1 / math.Max(pumpOversizeRatio, 1)
		efficientPower := newPower * math.Max(loadFraction, 0.3)

		roi := CalcROISummary(
			PumpCalcInput{PowerKW: oversizedPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
			PumpCalcInput{PowerKW: efficientPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
			pumpCostPhp,
		)

		flowRatio := maxFlow / dutyPoint.EstimatedFlowM3H
		headRatio := maxHead / dutyPoint.EstimatedHeadM

		var oversizingNote string
		switch {
		case flowRatio > 3 || headRatio > 3:
			oversizingNote = "This pump exceeds your requirement by 3x+. Consider consulting a Grundfos engineer."
		case roi.EfficiencyImprovementPct > 30:
			oversizingNote = "Right-sizing saves significant energy vs. a typical oversized installation"
		default:
			oversizingNote = "Well-matched to your requirements with good efficiency"
		}

		pumps = append(pumps, RankedPump{
			Pump:            m.Pump,
			MatchConfidence: m.Confidence,
			MatchLabel:      m.Label,
			ROI:             roi,
			OversizingNote:  oversizingNote,
			PriceRangePHP:   FormatPricePHP(m.Pump.PriceRangeUSD),
		})
	}

	return Result{
		Action:       ActionRecommend,
		DutyPoint:    &dutyPoint,
		Pumps:        pumps,
		Requirements: buildRequirementsSummary(state, dutyPoint),
		State:        state,
	}
}

func (e *Engine) buildMotorPowerRecommendation(state ConversationState, application Application, buildingSize BuildingSize) Result {
	motorKW := *state.MotorKW
	matched := e.MatchByMotorPower(motorKW, application, state.WaterSource, state.EvalDomain)
	if len(matched) == 0 {
		return Result{
			Action:          ActionAsk,
			QuestionContext: fmt.Sprintf("No catalog pump sits near a %.2f kW motor rating. Ask for the flow and head instead, or the old pump's model number.", motorKW),
			Suggestions:     []string{"I know the flow and head", "I have the model number", "Talk to an engineer"},
			State:           state,
			NoMatch:         true,
		}
	}

	rate := e.energyRate()
	operatingHours := OperatingHours(application, buildingSize)

	pumps := make([]RankedPump, 0, len(matched))
	for _, m := range matched {
		newPower, ok := m.Pump.Spec(catalog.SpecPowerKW)
		if !ok || newPower == 0 {
			newPower = 0.1
		}
		pumpCostPhp := ParsePrice(m.Pump.PriceRangeUSD) * usdToPhp

		// Baseline is the stated motor; the replacement runs at its own
		// rated power.
		roi := CalcROISummary(
			PumpCalcInput{PowerKW: motorKW, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
			PumpCalcInput{PowerKW: newPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
			pumpCostPhp,
		)

		pumps = append(pumps, RankedPump{
			Pump:            m.Pump,
			MatchConfidence: m.Confidence,
			MatchLabel:      m.Label,
			ROI:             roi,
			OversizingNote:  fmt.Sprintf("Matched by motor power (%.2f kW stated)", motorKW),
			PriceRangePHP:   FormatPricePHP(m.Pump.PriceRangeUSD),
		})
	}

	requirements := []Requirement{{Label: "Motor Power", Value: fmt.Sprintf("%g kW", motorKW)}}
	if state.Application != "" {
		requirements = append(requirements, Requirement{Label: "Application", Value: titleCase(string(state.Application))})
	}

	return Result{
		Action:       ActionRecommend,
		Pumps:        pumps,
		Requirements: requirements,
		State:        state,
	}
}

func (e *Engine) buildCompetitorRecommendation(state ConversationState, crossRef catalog.Pump) Result {
	application := state.Application
	if application == "" {
		application = AppHeating
	}
	buildingSize := state.BuildingSize
	if buildingSize == "" {
		buildingSize = SizeMedium
	}
	rate := e.energyRate()
	operatingHours := OperatingHours(application, buildingSize)

	newPower, ok := crossRef.Spec(catalog.SpecPowerKW)
	if !ok || newPower == 0 {
		newPower = 0.1
	}
	existingPower := newPower * 1.3
	if state.ExistingPumpPower != nil {
		existingPower = *state.ExistingPumpPower
	}
	pumpCostPhp := ParsePrice(crossRef.PriceRangeUSD) * usdToPhp

	roi := CalcROISummary(
		PumpCalcInput{PowerKW: existingPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
		PumpCalcInput{PowerKW: newPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
		pumpCostPhp,
	)

	comparedTo := fmt.Sprintf("%s pump", state.ExistingPumpBrand)
	if state.ExistingPump != "" {
		comparedTo = fmt.Sprintf("%s %s", state.ExistingPumpBrand, state.ExistingPump)
	}

	pumps := []RankedPump{{
		Pump:            crossRef,
		MatchConfidence: 95,
		MatchLabel:      "Excellent Match",
		ROI:             roi,
		OversizingNote:  fmt.Sprintf("Direct Grundfos equivalent for your %s", comparedTo),
		ComparedTo:      comparedTo,
		PriceRangePHP:   FormatPricePHP(crossRef.PriceRangeUSD),
	}}

	// With exact specs on file, offer up to two sized alternatives.
	if state.FlowM3H != nil && state.HeadM != nil {
		dutyPoint := DutyPoint{
			EstimatedFlowM3H: *state.FlowM3H,
			EstimatedHeadM:   *state.HeadM,
			Confidence:       ConfidenceCalculated,
			Assumptions:      []string{"User provided exact specifications"},
		}
		for _, m := range e.MatchPumps(dutyPoint, application, state.WaterSource, state.EvalDomain) {
			if m.Pump.ID == crossRef.ID {
				continue
			}
			p, ok := m.Pump.Spec(catalog.SpecPowerKW)
			if !ok || p == 0 {
				p = 0.1
			}
			pCost := ParsePrice(m.Pump.PriceRangeUSD) * usdToPhp
			pROI := CalcROISummary(
				PumpCalcInput{PowerKW: existingPower, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
				PumpCalcInput{PowerKW: p, OperatingHours: operatingHours, ElectricityRate: rate.Rate, CO2Factor: rate.CO2},
				pCost,
			)
			pumps = append(pumps, RankedPump{
				Pump:            m.Pump,
				MatchConfidence: m.Confidence,
				MatchLabel:      m.Label,
				ROI:             pROI,
				ComparedTo:      comparedTo,
				PriceRangePHP:   FormatPricePHP(m.Pump.PriceRangeUSD),
			})
			if len(pumps) >= 3 {
				break
			}
		}
	}

	requirements := []Requirement{{Label: "Current Pump", Value: comparedTo}}
	if state.ExistingPumpPower != nil {
		requirements = append(requirements, Requirement{Label: "Current Power", Value: fmt.Sprintf("%g kW", *state.ExistingPumpPower)})
	}
	if state.Application != "" {
		requirements = append(requirements, Requirement{Label: "Application", Value: titleCase(string(state.Application))})
	}

	return Result{
		Action:                ActionRecommend,
		Pumps:                 pumps,
		Requirements:          requirements,
		State:                 state,
		CompetitorReplacement: true,
	}
}

func buildRequirementsSummary(state ConversationState, dutyPoint DutyPoint) []Requirement {
	var requirements []Requirement
	if state.Application != "" {
		requirements = append(requirements, Requirement{Label: "Application", Value: titleCase(string(state.Application))})
	}
	if state.BuildingSize != "" {
		sizeLabels := map[BuildingSize]string{
			SizeSmall:  "Small (1-3 floors)",
			SizeMedium: "Medium (4-8 floors)",
			SizeLarge:  "Large (9+ floors)",
		}
		requirements = append(requirements, Requirement{Label: "Building Size", Value: sizeLabels[state.BuildingSize]})
	}
	if state.Bathrooms > 0 {
		requirements = append(requirements, Requirement{Label: "Bathrooms", Value: fmt.Sprintf("%d", state.Bathrooms)})
	}
	if state.WaterSource != "" {
		requirements = append(requirements, Requirement{Label: "Water Source", Value: titleCase(string(state.WaterSource))})
	}
	requirements = append(requirements,
		Requirement{Label: "Est. Flow", Value: fmt.Sprintf("%g m³/h", dutyPoint.EstimatedFlowM3H)},
		Requirement{Label: "Est. Head", Value: fmt.Sprintf("%g m", dutyPoint.EstimatedHeadM)},
	)
	if state.FlowM3H != nil && state.HeadM != nil {
		requirements = append(requirements, Requirement{Label: "Specs Source", Value: "User-provided"})
	}
	return requirements
}

// titleCase turns "domestic_water" into "Domestic Water".
func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
