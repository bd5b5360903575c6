// internal/engine/match.go
//
// Catalog matching and ranking. Candidates pass hard exclusions (wrong
// pump category, installation incompatibility) and a capability floor, then
// get a distance score against an ideal operating ratio. Score ranks,
// confidence labels: the two are computed separately and deliberately never
// mixed.
package engine

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"pump-advisor-workers/pkg/catalog"
)

// familyPreference maps application to family bonus points. Preferred
// families get a scoring edge; everything else still competes.
var familyPreference = map[Application]map[string]float64{
	AppDomesticWater: {"SCALA": 15, "ALPHA": 10},
	AppHeating:       {"MAGNA": 15, "ALPHA": 12, "NB": 5, "NK": 5, "CR": 3},
	AppCooling:       {"MAGNA": 15, "ALPHA": 12, "NB": 5, "NK": 5, "CR": 3},
	AppWaterSupply:   {"CR": 15, "CRE": 15, "SP": 12, "SCALA": 8, "HYDRO": 10, "NB": 10, "NK": 10},
	AppWastewater:    {"SEG": 15, "SE": 15},
	AppDosing:        {"DDA": 15},
}

// categoryExclusions: categories reserved for one application. A dosing
// pump is never a heating answer and vice versa.
var categoryExclusions = map[string][]Application{
	"dosing":     {AppDosing},
	"wastewater": {AppWastewater},
}

// domesticExcludedFamilies cannot be installed on household mains water:
// three-phase power, drilled borehole, industrial flanged mounting, or
// circulator types that do not boost pressure.
var domesticExcludedFamilies = []string{"CR", "CRE", "NB", "NK", "HYDRO", "SP", "SQ", "MAGNA", "ALPHA"}

var appKeywords = map[Application][]string{
	AppHeating:       {"heating", "circulator", "hvac"},
	AppCooling:       {"cooling", "circulator", "hvac", "air conditioning"},
	AppWaterSupply:   {"water supply", "pressure boosting", "multistage", "booster", "irrigation"},
	AppDomesticWater: {"domestic", "booster", "residential", "self-priming"},
	AppWastewater:    {"wastewater", "sewage", "drainage"},
	AppDosing:        {"dosing", "chemical", "treatment"},
}

var vsdPattern = regexp.MustCompile(`variable[\s-]?speed|autoadapt|auto[\s-]?adapt|integrated[\s-]?(?:inverter|frequency)|constant[\s-]?pressure`)

// Match is one ranked catalog hit.
type Match struct {
	Pump       catalog.Pump
	Confidence int
	Label      string
	FlowRatio  float64
	HeadRatio  float64
}

func isCategoryExcluded(pumpCategory string, application Application) bool {
	lower := strings.ToLower(pumpCategory)
	for category, allowed := range categoryExclusions {
		if !strings.Contains(lower, category) {
			continue
		}
		for _, app := range allowed {
			if app == application {
				return false
			}
		}
		return true
	}
	return false
}

// preferenceBonus resolves the family bonus for a candidate. Eval-domain
// tables take priority over the generic application table for any family
// they mention; a well water source additionally favors borehole families.
func preferenceBonus(familyKey string, application Application, waterSource WaterSource, evalDomain string) float64 {
	bonus := familyPreference[application][familyKey]
	if domainPrefs, ok := evalDomainPreference[evalDomain]; ok {
		if v, mentioned := domainPrefs[familyKey]; mentioned {
			bonus = v
		}
	}
	if waterSource == SourceWell {
		switch familyKey {
		case "SP":
			bonus += 8
		case "SQ":
			bonus += 6
		}
	}
	return bonus
}

// MatchPumps filters and ranks the catalog against a duty point, returning
// up to three candidates, best first.
func (e *Engine) MatchPumps(dutyPoint DutyPoint, application Application, waterSource WaterSource, evalDomain string) []Match {
	requiredFlow := dutyPoint.EstimatedFlowM3H
	requiredHead := dutyPoint.EstimatedHeadM
	if requiredFlow <= 0 || requiredHead <= 0 {
		return nil
	}

	keywords := appKeywords[application]

	type scored struct {
		match Match
		score float64
	}
	var candidates []scored

	for _, pump := range e.catalog.Pumps {
		if isCategoryExcluded(pump.Category, application) {
			continue
		}
		familyKey := pump.FamilyKey()

		if application == AppDomesticWater && waterSource != SourceWell {
			excluded := false
			for _, f := range domesticExcludedFamilies {
				if strings.HasPrefix(familyKey, f) {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}
		}

		maxFlow, okFlow := pump.Spec(catalog.SpecMaxFlowM3H)
		maxHead, okHead := pump.Spec(catalog.SpecMaxHeadM)
		if !okFlow || !okHead || maxFlow == 0 || maxHead == 0 {
			continue
		}
		if maxFlow < requiredFlow*0.7 || maxHead < requiredHead*0.85 {
			continue
		}

		flowRatio := maxFlow / requiredFlow
		headRatio := maxHead / requiredHead

		// Prefer the published efficient operating point when it covers the
		// requirement; otherwise score against maximum capability with 20%
		// headroom as the ideal.
		scoreFlowRatio, scoreHeadRatio, ideal := flowRatio, headRatio, 1.2
		ratedFlow, okRF := pump.Spec(catalog.SpecRatedFlowM3H)
		ratedHead, okRH := pump.Spec(catalog.SpecRatedHeadM)
		if okRF && okRH && ratedFlow >= requiredFlow*0.95 && ratedHead >= requiredHead*0.95 {
			scoreFlowRatio = ratedFlow / requiredFlow
			scoreHeadRatio = ratedHead / requiredHead
			ideal = 1.0
		}
		oversizeScore := math.Abs(scoreFlowRatio-ideal) + math.Abs(scoreHeadRatio-ideal)

		appText := strings.ToLower(strings.Join(append(append([]string{}, pump.Applications...), pump.Type, pump.Category), " "))
		appMatch := false
		for _, kw := range keywords {
			if strings.Contains(appText, kw) {
				appMatch = true
				break
			}
		}
		appPenalty := 8.0
		if appMatch {
			appPenalty = 0
		}

		eei, okEEI := pump.Spec(catalog.SpecEEI)
		if !okEEI {
			eei = 0.5
		}

		prefBonus := preferenceBonus(familyKey, application, waterSource, evalDomain)

		featureText := strings.ToLower(strings.Join(pump.Features, " "))
		isVSD := vsdPattern.MatchString(featureText)

		// Confidence is always judged on maximum-capability ratios.
		confidence, label := calculateConfidence(flowRatio, headRatio, appMatch, eei, prefBonus, isVSD)

		totalScore := oversizeScore + appPenalty + eei*2 - prefBonus*0.5

		candidates = append(candidates, scored{
			match: Match{Pump: pump, Confidence: confidence, Label: label, FlowRatio: flowRatio, HeadRatio: headRatio},
			score: totalScore,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.match)
	}
	return matches
}

// MatchByMotorPower ranks pumps by closeness to a stated motor rating.
// Used when the user gives only a nameplate power, no hydraulics.
func (e *Engine) MatchByMotorPower(motorKW float64, application Application, waterSource WaterSource, evalDomain string) []Match {
	if motorKW <= 0 {
		return nil
	}

	type scored struct {
		match   Match
		absDiff float64
		pref    float64
	}
	var candidates []scored

	for _, pump := range e.catalog.Pumps {
		if isCategoryExcluded(pump.Category, application) {
			continue
		}
		power, ok := pump.Spec(catalog.SpecPowerKW)
		if !ok || power <= 0 {
			continue
		}
		relDiff := math.Abs(power-motorKW) / motorKW
		if relDiff > 0.35 {
			continue
		}

		confidence := int(math.Round(95 - 30*relDiff))
		var label string
		switch {
		case relDiff < 0.1:
			label = "Excellent Match"
		case relDiff < 0.2:
			label = "Good Match"
		default:
			label = "Fair Match"
		}

		candidates = append(candidates, scored{
			match:   Match{Pump: pump, Confidence: confidence, Label: label},
			absDiff: math.Abs(power - motorKW),
			pref:    preferenceBonus(pump.FamilyKey(), application, waterSource, evalDomain),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		// Preference breaks near-ties in power distance.
		di := candidates[i].absDiff - candidates[i].pref*0.01
		dj := candidates[j].absDiff - candidates[j].pref*0.01
		return di < dj
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.match)
	}
	return matches
}

// calculateConfidence turns capability ratios into a displayed confidence
// score and label. A variable-speed pump's flow headroom is capped at 1.8
// only when it can actually reach the required head; a VSD that falls short
// on pressure has no mitigating behavior.
func calculateConfidence(flowRatio, headRatio float64, appMatch bool, eei, prefBonus float64, isVSD bool) (int, string) {
	oversizeFactor := math.Max(flowRatio, headRatio)
	if isVSD && headRatio >= 1.0 {
		oversizeFactor = math.Min(oversizeFactor, 1.8)
	}

	base := 95.0
	if oversizeFactor > 1.5 {
		base -= (oversizeFactor - 1.5) * 10
	}
	if oversizeFactor > 3 {
		base -= (oversizeFactor - 3) * 15
	}
	if oversizeFactor < 0.9 {
		base -= (0.9 - oversizeFactor) * 40
	}
	if headRatio < 0.95 {
		base -= (0.95 - headRatio) * 80
	}
	if !appMatch {
		base -= 10
	}
	if eei < 0.23 {
		base += 3
	}
	base += prefBonus * 0.3

	score := int(math.Round(base))
	if score < 40 {
		score = 40
	}
	if score > 99 {
		score = 99
	}

	var label string
	switch {
	case score >= 90:
		label = "Excellent Match"
	case score >= 75:
		label = "Good Match"
	case score >= 60:
		label = "Fair Match"
	default:
		label = "Partial Match"
	}
	return score, label
}
