// internal/engine/types.go
package engine

import (
	"pump-advisor-workers/pkg/catalog"
)

type Application string

const (
	AppHeating       Application = "heating"
	AppCooling       Application = "cooling"
	AppDomesticWater Application = "domestic_water"
	AppWaterSupply   Application = "water_supply"
	AppWastewater    Application = "wastewater"
	AppDosing        Application = "dosing"
)

type BuildingSize string

const (
	SizeSmall  BuildingSize = "small"
	SizeMedium BuildingSize = "medium"
	SizeLarge  BuildingSize = "large"
)

type WaterSource string

const (
	SourceMains WaterSource = "mains"
	SourceWell  WaterSource = "well"
	SourceTank  WaterSource = "tank"
)

type Problem string

const (
	ProblemLowPressure  Problem = "low_pressure"
	ProblemNoWater      Problem = "no_water"
	ProblemReplacement  Problem = "replacement"
	ProblemNewInstall   Problem = "new_install"
	ProblemEnergySaving Problem = "energy_saving"
)

type Action string

const (
	ActionNone      Action = ""
	ActionAsk       Action = "ask"
	ActionRecommend Action = "recommend"
	ActionGreet     Action = "greet"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the structured knowledge accumulated about the user's
// need. Every field is optional; absence means "not yet known". Numeric
// pointers distinguish "unset" from a literal zero.
type ConversationState struct {
	Application  Application  `json:"application,omitempty"`
	BuildingSize BuildingSize `json:"buildingSize,omitempty"`
	Floors       int          `json:"floors,omitempty"`
	Bathrooms    int          `json:"bathrooms,omitempty"`
	WaterSource  WaterSource  `json:"waterSource,omitempty"`
	Problem      Problem      `json:"problem,omitempty"`

	FlowM3H *float64 `json:"flow_m3h,omitempty"`
	HeadM   *float64 `json:"head_m,omitempty"`
	MotorKW *float64 `json:"motor_kw,omitempty"`

	ExistingPumpBrand string   `json:"existingPumpBrand,omitempty"`
	ExistingPump      string   `json:"existingPump,omitempty"`
	ExistingPumpPower *float64 `json:"existingPumpPower,omitempty"`

	// EvalDomain selects benchmark-specific preference tables. It is never
	// set from conversational input.
	EvalDomain string `json:"evalDomain,omitempty"`
}

// Empty reports whether nothing at all is known yet.
func (s ConversationState) Empty() bool {
	return s.Application == "" && s.BuildingSize == "" && s.Floors == 0 &&
		s.Bathrooms == 0 && s.WaterSource == "" && s.Problem == "" &&
		s.FlowM3H == nil && s.HeadM == nil && s.MotorKW == nil &&
		s.ExistingPumpBrand == "" && s.ExistingPumpPower == nil
}

// DutyPoint is the target operating condition a recommended pump must
// satisfy, plus the assumptions used to derive it.
type DutyPoint struct {
	EstimatedFlowM3H float64  `json:"estimated_flow_m3h"`
	EstimatedHeadM   float64  `json:"estimated_head_m"`
	Confidence       string   `json:"confidence"` // "estimated" or "calculated"
	Assumptions      []string `json:"assumptions"`
}

const (
	ConfidenceEstimated  = "estimated"
	ConfidenceCalculated = "calculated"
)

// RankedPump is a catalog entry with match scoring and ROI attached.
type RankedPump struct {
	catalog.Pump
	MatchConfidence int        `json:"matchConfidence"`
	MatchLabel      string     `json:"matchLabel"`
	ROI             ROISummary `json:"roi"`
	OversizingNote  string     `json:"oversizingNote,omitempty"`
	ComparedTo      string     `json:"comparedTo,omitempty"`
	PriceRangePHP   string     `json:"price_range_php,omitempty"`
}

// Requirement is one line of the requirements summary shown alongside a
// recommendation.
type Requirement struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Result is the engine's decision for one turn. Exactly one of the three
// actions is always returned; QuestionContext is an instruction for the
// phrasing layer, never final user-facing prose.
type Result struct {
	Action                Action            `json:"action"`
	QuestionContext       string            `json:"questionContext,omitempty"`
	Suggestions           []string          `json:"suggestions,omitempty"`
	DutyPoint             *DutyPoint        `json:"dutyPoint,omitempty"`
	Pumps                 []RankedPump      `json:"pumps,omitempty"`
	Requirements          []Requirement     `json:"requirements,omitempty"`
	State                 ConversationState `json:"state"`
	CompetitorReplacement bool              `json:"isCompetitorReplacement,omitempty"`
	// NoMatch is set when a recommendation was attempted but no catalog
	// entry survived filtering; callers fall back to a clarifying question.
	NoMatch bool `json:"noMatch,omitempty"`
}

// Engine holds the immutable reference data the decision logic runs against.
// All methods are pure functions of their inputs plus this data; the engine
// is safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	region  string
}

// New builds an engine over a loaded catalog. region selects the energy
// rate/CO₂ table used for ROI figures ("PH", "US", "EU", "global").
func New(cat *catalog.Catalog, region string) *Engine {
	if _, ok := EnergyRates[region]; !ok {
		region = "PH"
	}
	return &Engine{catalog: cat, region: region}
}

func floatPtr(v float64) *float64 { return &v }
