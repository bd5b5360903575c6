// internal/engine/evaldomain.go
package engine

import "regexp"

// Eval-domain tags narrow family preference when benchmark queries name a
// specific installation type that the broad application buckets blur
// together (an HVAC circulator and a coolant transfer pump are both
// "cooling"). For any family a domain table mentions, its value replaces
// the generic application bonus.

const (
	DomainHVAC       = "hvac"
	DomainCoolant    = "coolant"
	DomainBooster    = "booster"
	DomainBorehole   = "borehole"
	DomainIrrigation = "irrigation"
	DomainDrainage   = "drainage"
)

type evalDomainRule struct {
	domain  string
	pattern *regexp.Regexp
}

var evalDomainRules = []evalDomainRule{
	{DomainBorehole, regexp.MustCompile(`(?i)\b(borehole|deep[\s-]?well|submersible|groundwater[\s-]?extract)`)},
	{DomainCoolant, regexp.MustCompile(`(?i)\b(coolant|cooling[\s-]?tower|machine[\s-]?tool|chilled[\s-]?water[\s-]?transfer|condenser[\s-]?water)`)},
	{DomainHVAC, regexp.MustCompile(`(?i)\b(hvac|circulat(?:or|ion)|radiator|hydronic|air[\s-]?handling|fan[\s-]?coil)`)},
	{DomainBooster, regexp.MustCompile(`(?i)\b(boost(?:er|ing)?|pressure[\s-]?(?:boost|set)|multistage)`)},
	{DomainIrrigation, regexp.MustCompile(`(?i)\b(irrigat(?:ion|e)|sprinkler|drip[\s-]?(?:line|feed)|farm[\s-]?water)`)},
	{DomainDrainage, regexp.MustCompile(`(?i)\b(drain(?:age)?|dewater(?:ing)?|sump|stormwater)`)},
}

var evalDomainPreference = map[string]map[string]float64{
	DomainHVAC:       {"MAGNA": 18, "NB": 10, "NK": 8, "ALPHA": 6},
	DomainCoolant:    {"CR": 12, "CM": 10, "NB": 8},
	DomainBorehole:   {"SP": 18, "SQ": 14},
	DomainBooster:    {"CR": 14, "CM": 12, "HYDRO": 10, "SCALA": 8},
	DomainIrrigation: {"SP": 12, "NB": 10, "NK": 8},
	DomainDrainage:   {"SEG": 12, "SE": 10},
}

// DetectEvalDomain tags benchmark-style query text with a narrow
// installation domain, or returns "" when nothing matches. First rule wins;
// the order puts the most specific vocabularies first.
func DetectEvalDomain(text string) string {
	for _, rule := range evalDomainRules {
		if rule.pattern.MatchString(text) {
			return rule.domain
		}
	}
	return ""
}
