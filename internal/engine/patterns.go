// internal/engine/patterns.go
//
// Regex rule tables for intent extraction. Rules are kept as ordered data
// (pattern, tag) so new keywords are additive; within a category the first
// match wins, except application detection which accumulates match counts
// across every rule and picks the highest-scoring application.
package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Non-SI unit conversions. Converted values are rounded to 3 decimals.
const (
	GpmToM3H = 0.2271
	LpmToM3H = 0.06
	LpsToM3H = 3.6
	FtToM    = 0.3048
	HpToKW   = 0.7457
)

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type appRule struct {
	app     Application
	pattern *regexp.Regexp
}

var appPatterns = []appRule{
	// Heating
	{AppHeating, regexp.MustCompile(`(?i)\b(heat(?:ing)?|radiator|boiler|warm(?:th|ing)?|hvac|underfloor|radiant|furnace)\b`)},
	{AppHeating, regexp.MustCompile(`(?i)\b(too\s+cold|freezing|winter|pipe\s*freeze|frost)\b`)},
	// Cooling
	{AppCooling, regexp.MustCompile(`(?i)\b(cool(?:ing)?|chiller|air[\s-]?condition(?:ing|er)?|ac\b|refrigerat|ventilat)`)},
	{AppCooling, regexp.MustCompile(`(?i)\b(too\s+hot|overheat(?:ing)?|summer|swelter|humid)\b`)},
	// Water supply: buildings, commercial, industrial, agriculture
	{AppWaterSupply, regexp.MustCompile(`(?i)\b(water[\s-]?supply|pressure[\s-]?boost(?:ing)?|municipal|irrigat|borehole|well[\s-]?pump|boosting|building[\s-]?water|fire[\s-]?(?:protect|fight|suppress))\b`)},
	{AppWaterSupply, regexp.MustCompile(`(?i)\b(low[\s-]?(?:water\s+)?pressure|no[\s-]?water|weak[\s-]?flow|water[\s-]?tower)\b`)},
	// Domestic water
	{AppDomesticWater, regexp.MustCompile(`(?i)\b(domestic|household|home\b|house\b|residential|tap[\s-]?water|hot[\s-]?water|shower|faucet|bathroom|kitchen|condo\b|flat\b|my[\s-]?(?:house|home|place|apartment|condo|flat))\b`)},
	{AppDomesticWater, regexp.MustCompile(`(?i)\b(washing[\s-]?machine|dishwasher|garden[\s-]?(?:hose|water)|pool\b|rain[\s-]?water|cistern)\b`)},
	// Wastewater
	{AppWastewater, regexp.MustCompile(`(?i)\b(wastewater|sewage|sewer|drainage|septic|effluent|sewerage|basement\s+\w*\s*flood(?:ing)?|flood(?:ing|ed)?\s+(?:my\s+)?basement|sump)\b`)},
	// Dosing
	{AppDosing, regexp.MustCompile(`(?i)\b(dos(?:ing|e)|chlorinat(?:ion|e)|ph[\s-]?(?:adjust|control)|water[\s-]?treatment[\s-]?(?:dos|chemical)|flocculat|disinfect(?:ion|ant)?)\b`)},
}

type sizeRule struct {
	size    BuildingSize
	pattern *regexp.Regexp
}

var sizePatterns = []sizeRule{
	// Large first so "20-floor office" matches large before "office" -> medium
	{SizeLarge, regexp.MustCompile(`(?i)\b(large|big|high[\s-]?rise|tower|skyscraper|hospital|mall|campus|9[\s-]?floor|10[\s-]?floor|\d{2,}[\s-]?floor)\b`)},
	{SizeLarge, regexp.MustCompile(`(?i)\b(?:(?:[5-9]\d|\d{3,})[\s-]?(?:room|unit)s?)\b`)},
	{SizeSmall, regexp.MustCompile(`(?i)\b(small|1[\s-]?(?:to|-)[\s-]?3|one[\s-]?to[\s-]?three|few|tiny|single[\s-]?famil|house\b|villa|bungalow|cottage|1[\s-]?floor|2[\s-]?floor|3[\s-]?floor|duplex|studio)\b`)},
	{SizeSmall, regexp.MustCompile(`(?i)\b(1[\s-]?(?:bed)?room|2[\s-]?(?:bed)?room|3[\s-]?(?:bed)?room)\b`)},
	{SizeSmall, regexp.MustCompile(`(?i)\b(small[\s-]?(?:business|shop|office|farm))\b`)},
	// Medium: most generic words last
	{SizeMedium, regexp.MustCompile(`(?i)\b(medium|4[\s-]?(?:to|-)[\s-]?8|four[\s-]?to[\s-]?eight|mid[\s-]?(?:size|rise)?|apartment|commercial|condominium|4[\s-]?floor|5[\s-]?floor|6[\s-]?floor|7[\s-]?floor|8[\s-]?floor)\b`)},
	{SizeMedium, regexp.MustCompile(`(?i)\b(school|clinic|restaurant|warehouse|gym|church|shop(?:ping)?|hotel|factory|office|resort)\b`)},
	{SizeMedium, regexp.MustCompile(`(?i)\b(?:(?:1\d|2\d|3\d|4\d|50)[\s-]?(?:room|unit)s?)\b`)},
}

type waterSourceRule struct {
	source  WaterSource
	pattern *regexp.Regexp
}

var waterSourcePatterns = []waterSourceRule{
	{SourceWell, regexp.MustCompile(`(?i)\b(well|borehole|ground\s*water|deep\s*well)\b`)},
	{SourceTank, regexp.MustCompile(`(?i)\b(tank|cistern|reservoir|rain\s*water)\b`)},
	{SourceMains, regexp.MustCompile(`(?i)\b(mains|municipal|city\s*water|piped|metro\s*water|water\s*district)\b`)},
}

type problemRule struct {
	problem Problem
	pattern *regexp.Regexp
}

var problemPatterns = []problemRule{
	{ProblemLowPressure, regexp.MustCompile(`(?i)\b(low[\s-]?pressure|weak[\s-]?(?:water[\s-]?)?(?:pressure|flow)|no[\s-]?pressure|poor[\s-]?pressure|(?:water\s+)?pressure\s+is\s+(?:weak|low|poor)|not[\s-]?enough[\s-]?(?:water|pressure)|pressure[\s-]?drop|barely|mababa|kulang|halos\s*wala)\b`)},
	{ProblemNoWater, regexp.MustCompile(`(?i)\b(no[\s-]?water|water[\s-]?(?:stopped|cut|out)|dry[\s-]?tap|can'?t[\s-]?get[\s-]?water|patay\s*tubig|wala\s*tubig)\b`)},
	{ProblemReplacement, regexp.MustCompile(`(?i)\b(replac(?:e|ing|ement)|swap(?:ping)?|upgrade|old[\s-]?pump|broken[\s-]?pump|failing|failed|worn[\s-]?out|palitan|sira|gulong)\b`)},
	{ProblemNewInstall, regexp.MustCompile(`(?i)\b(new[\s-]?(?:install|pump|system)|install(?:ing|ation)?|set[\s-]?up|brand[\s-]?new|building[\s-]?new|bagong)\b`)},
	{ProblemEnergySaving, regexp.MustCompile(`(?i)\b(energy[\s-]?sav(?:ing|e)|reduc(?:e|ing)[\s-]?(?:cost|bill|energy)|electricity[\s-]?bill|save[\s-]?money|too[\s-]?expensive[\s-]?to[\s-]?run|mahal\s*kuryente)\b`)},
}

// Quantity patterns. Flow rules are ordered: an explicit m³/h figure beats a
// non-SI one when both appear.
type flowRule struct {
	pattern *regexp.Regexp
	toM3H   float64
}

var flowPatterns = []flowRule{
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:m[³3]/h|cubic[\s-]?met(?:er|re)s?[\s-]?per[\s-]?hour|cmh)`), 1},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:l/s|lps|lit(?:er|re)s?[\s-]?per[\s-]?second)`), LpsToM3H},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:l/min|lpm|lit(?:er|re)s?[\s-]?per[\s-]?minute)`), LpmToM3H},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:gpm|gallons?[\s-]?per[\s-]?minute)`), GpmToM3H},
}

var (
	headPattern      = regexp.MustCompile(`(?i)(?:at\s+)?(\d+(?:\.\d+)?)\s*(?:met(?:er|re)s?|m)\s*(?:head|of[\s-]?head)`)
	headFtPattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ft|feet|foot)\b(?:\s*(?:head|of[\s-]?head))?`)
	headLoosePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*m\b`)

	floorsPattern   = regexp.MustCompile(`(?i)(\d+)[\s-]*(?:floor|stor(?:e?y|ies))`)
	bathroomPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:bathroom|bath(?:room)?s?|toilet|cr\b|restroom|t&b|comfort\s*room)`)

	competitorPattern = regexp.MustCompile(`(?i)\b(wilo|ksb|xylem|lowara|dab|pedrollo|ebara|flygt|prominent|iwaki)\b`)
	pumpModelPattern  = regexp.MustCompile(`\b([A-Z][A-Za-z]*[\s-]?\d[\w\-./]*)\b`)

	// Nameplate-style power readings ("Power: 0.55 kW", "rated 750 W").
	powerKWPattern = regexp.MustCompile(`(?i)(?:power|rated|watt(?:s|age)?):?\s*(\d+(?:\.\d+)?)\s*kw`)
	powerWPattern  = regexp.MustCompile(`(?i)(?:power|rated|watt(?:s|age)?):?\s*(\d+(?:\.\d+)?)\s*w\b`)

	// Requested motor ratings ("10 hp motor", "5.5 kW motor").
	motorHpPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*hp\b`)
	motorKwPattern = regexp.MustCompile(`(?i)(?:(\d+(?:\.\d+)?)\s*kw\s+motor|motor(?:\s+power)?(?:\s+rating)?[:\s]+(\d+(?:\.\d+)?)\s*kw)`)

	correctionPattern = regexp.MustCompile(`(?i)\b(no[,.]?\s|actually|i\s+meant?\s|not\s+\w+[,.]?\s*(it'?s|for)|change\s+(it\s+)?to|switch\s+to|wrong|correct(?:ion)?)\b`)
	greetingPattern   = regexp.MustCompile(`(?i)^\s*(h(ello|i|ey|owdy)|yo\b|sup\b|good\s*(morning|afternoon|evening|day)|what'?s?\s*up|greetings|salut|hola)\s*[!?.]*\s*$`)

	myHomePattern = regexp.MustCompile(`(?i)\bmy\s+(house|home|place)\b`)
)

// detectApplication is score-based rather than first-match: every rule's
// matches are counted across the whole text and the application with the
// highest total wins. Ties and zero matches return "" so vague text does not
// commit to a guess.
func detectApplication(text string) Application {
	scores := map[Application]int{}
	for _, rule := range appPatterns {
		scores[rule.app] += len(rule.pattern.FindAllStringIndex(text, -1))
	}

	best, bestScore, tied := Application(""), 0, false
	for _, app := range []Application{AppHeating, AppCooling, AppDomesticWater, AppWaterSupply, AppWastewater, AppDosing} {
		switch {
		case scores[app] > bestScore:
			best, bestScore, tied = app, scores[app], false
		case scores[app] == bestScore && bestScore > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return ""
	}
	return best
}

func detectBuildingSize(text string) BuildingSize {
	for _, rule := range sizePatterns {
		if rule.pattern.MatchString(text) {
			return rule.size
		}
	}
	return ""
}

func detectWaterSource(text string) WaterSource {
	for _, rule := range waterSourcePatterns {
		if rule.pattern.MatchString(text) {
			return rule.source
		}
	}
	return ""
}

func detectProblem(text string) Problem {
	for _, rule := range problemPatterns {
		if rule.pattern.MatchString(text) {
			return rule.problem
		}
	}
	return ""
}

func detectFlow(text string) *float64 {
	for _, rule := range flowPatterns {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return floatPtr(round3(v * rule.toM3H))
		}
	}
	return nil
}

// detectHead tries the explicit "N m head" form, then feet, then a loose
// "N m" form. Go's regexp has no lookahead, so the loose form filters out
// flow-unit hits ("25 m³/h", "25 m3/h") by inspecting the character after
// the match.
func detectHead(text string) *float64 {
	if m := headPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return floatPtr(v)
		}
	}
	if m := headFtPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return floatPtr(round3(v * FtToM))
		}
	}
	for _, loc := range headLoosePattern.FindAllStringSubmatchIndex(text, -1) {
		end := loc[1]
		if end < len(text) {
			switch text[end] {
			case '3', '/', '2':
				continue
			}
			if strings.HasPrefix(text[end:], "³") || strings.HasPrefix(text[end:], "²") {
				continue
			}
		}
		if v, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64); err == nil {
			return floatPtr(v)
		}
	}
	return nil
}

func detectPositiveInt(text string, pattern *regexp.Regexp) int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// detectNameplatePower reads an OCR/nameplate-style power figure in kW.
func detectNameplatePower(text string) *float64 {
	if m := powerKWPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return floatPtr(v)
		}
	}
	if m := powerWPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return floatPtr(v / 1000)
		}
	}
	return nil
}

// detectMotorRating reads a requested motor rating ("10 hp motor") in kW.
func detectMotorRating(text string) *float64 {
	if m := motorHpPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return floatPtr(round3(v * HpToKW))
		}
	}
	if m := motorKwPattern.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return floatPtr(v)
		}
	}
	return nil
}

// IsGreeting reports whether the message is a bare greeting.
func IsGreeting(text string) bool {
	return greetingPattern.MatchString(text)
}

// IsCorrection reports whether the message revises an earlier answer
// ("actually", "no, it's", "change it to").
func IsCorrection(text string) bool {
	return correctionPattern.MatchString(text)
}

// HasNewSignal reports whether a message carries any newly extractable
// requirement: a quantity with a unit, an application keyword, or a
// competitor brand. Used to tell post-recommendation feedback apart from a
// revision.
func HasNewSignal(text string) bool {
	if detectApplication(text) != "" || competitorPattern.MatchString(text) {
		return true
	}
	if detectFlow(text) != nil || detectHead(text) != nil {
		return true
	}
	if detectNameplatePower(text) != nil || detectMotorRating(text) != nil {
		return true
	}
	return detectPositiveInt(text, floorsPattern) > 0 || detectPositiveInt(text, bathroomPattern) > 0
}
