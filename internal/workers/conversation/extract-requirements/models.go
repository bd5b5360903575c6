// internal/workers/conversation/extract-requirements/models.go
package extractrequirements

import "pump-advisor-workers/internal/engine"

type Input struct {
	ConversationID string                   `json:"conversationId,omitempty"`
	Messages       []engine.Message         `json:"messages"`
	PriorState     engine.ConversationState `json:"state,omitempty"`
}

type Output struct {
	State       engine.ConversationState `json:"state"`
	InfoQuality int                      `json:"infoQuality"`
	LLMUsed     bool                     `json:"llmUsed"`
}

// llmIntent mirrors the JSON shape the model is asked to return. All fields
// optional; unknown values stay null.
type llmIntent struct {
	Application  string   `json:"application,omitempty"`
	BuildingSize string   `json:"buildingSize,omitempty"`
	Floors       int      `json:"floors,omitempty"`
	Bathrooms    int      `json:"bathrooms,omitempty"`
	WaterSource  string   `json:"waterSource,omitempty"`
	Problem      string   `json:"problem,omitempty"`
	FlowM3H      *float64 `json:"flow_m3h,omitempty"`
	HeadM        *float64 `json:"head_m,omitempty"`
	MotorKW      *float64 `json:"motor_kw,omitempty"`
	Brand        string   `json:"existingPumpBrand,omitempty"`
	Model        string   `json:"existingPump,omitempty"`
	PowerKW      *float64 `json:"existingPumpPower,omitempty"`
}
