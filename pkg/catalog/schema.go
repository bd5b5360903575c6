// pkg/catalog/schema.go
package catalog

// Catalog is the static pump reference dataset. It is loaded once at startup
// and never mutated afterwards.
type Catalog struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Pumps       []Pump `json:"pumps"`
}

// Pump is one catalog entry. Specs values may arrive as numbers or as
// free-form strings ("2 x 10 m³/h"); read them through SafeNumber.
type Pump struct {
	ID                    string                 `json:"id"`
	Model                 string                 `json:"model"`
	Family                string                 `json:"family"`
	Category              string                 `json:"category"`
	Type                  string                 `json:"type"`
	ImageURL              string                 `json:"image_url,omitempty"`
	Applications          []string               `json:"applications"`
	Features              []string               `json:"features"`
	Specs                 map[string]interface{} `json:"specs"`
	EstimatedAnnualKwh    interface{}            `json:"estimated_annual_kwh,omitempty"`
	PriceRangeUSD         string                 `json:"price_range_usd"`
	PriceRangeEUR         string                 `json:"price_range_eur,omitempty"`
	CompetitorEquivalents map[string]string      `json:"competitor_equivalents,omitempty"`
}

// Well-known spec keys.
const (
	SpecMaxFlowM3H   = "max_flow_m3h"
	SpecMaxHeadM     = "max_head_m"
	SpecRatedFlowM3H = "rated_flow_m3h"
	SpecRatedHeadM   = "rated_head_m"
	SpecPowerKW      = "power_kw"
	SpecEEI          = "eei"
)
