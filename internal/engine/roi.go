// internal/engine/roi.go
//
// Energy and payback model. Annual kWh are derived from pump power and
// operating hours unless an explicit annual figure is given; everything
// downstream (cost, savings, payback, CO2, lifecycle) follows from those.
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EnergyRate holds a region's electricity tariff and grid carbon intensity.
type EnergyRate struct {
	Rate     float64 // per kWh, local currency
	CO2      float64 // kg CO2 per kWh
	Currency string
}

// EnergyRates maps region codes to default tariffs. "global" is the
// fallback for unknown regions.
var EnergyRates = map[string]EnergyRate{
	"PH":     {Rate: 9.5, CO2: 0.52, Currency: "PHP"},
	"US":     {Rate: 0.12, CO2: 0.42, Currency: "USD"},
	"EU":     {Rate: 0.25, CO2: 0.30, Currency: "EUR"},
	"global": {Rate: 0.15, CO2: 0.42, Currency: "USD"},
}

const usdToPhp = 56.0

// PumpCalcInput describes one side of an old-vs-new energy comparison.
// AnnualKWh, when set, overrides the power × hours derivation.
type PumpCalcInput struct {
	PowerKW         float64
	AnnualKWh       *float64
	OperatingHours  float64
	ElectricityRate float64
	CO2Factor       float64
}

func (p PumpCalcInput) annualKWh() float64 {
	if p.AnnualKWh != nil {
		return *p.AnnualKWh
	}
	return p.PowerKW * p.OperatingHours
}

// ROISummary is the investment case for replacing one pump with another.
// PaybackMonths is +Inf when there are no savings; it marshals as null.
type ROISummary struct {
	OldAnnualCost            float64 `json:"old_annual_cost"`
	NewAnnualCost            float64 `json:"new_annual_cost"`
	AnnualSavings            float64 `json:"annual_savings"`
	PaybackMonths            float64 `json:"payback_months"`
	CO2ReductionTonnes       float64 `json:"co2_reduction_tonnes"`
	TenYearSavings           float64 `json:"ten_year_savings"`
	LifecycleCost            float64 `json:"lifecycle_cost"`
	EfficiencyImprovementPct float64 `json:"efficiency_improvement_pct"`
}

// MarshalJSON emits null for a non-finite payback so the JSON stays valid.
func (r ROISummary) MarshalJSON() ([]byte, error) {
	type alias ROISummary
	if !math.IsInf(r.PaybackMonths, 0) && !math.IsNaN(r.PaybackMonths) {
		return json.Marshal(alias(r))
	}
	patched := r
	patched.PaybackMonths = 0
	buf, err := json.Marshal(alias(patched))
	if err != nil {
		return nil, err
	}
	return bytes.Replace(buf, []byte(`"payback_months":0`), []byte(`"payback_months":null`), 1), nil
}

// AnnualEnergyCost is the yearly electricity cost for one pump.
func AnnualEnergyCost(p PumpCalcInput) float64 {
	return p.annualKWh() * p.ElectricityRate
}

// PaybackMonths converts pump cost and yearly savings into a payback
// horizon. Returns +Inf when savings are zero or negative.
func PaybackMonths(pumpCost, annualSavings float64) float64 {
	if annualSavings <= 0 {
		return math.Inf(1)
	}
	return pumpCost / annualSavings * 12
}

// CO2ReductionTonnes is the annual emissions cut in tonnes.
func CO2ReductionTonnes(oldKWh, newKWh, co2Factor float64) float64 {
	return (oldKWh - newKWh) * co2Factor / 1000
}

// LifecycleCost totals purchase, energy and maintenance over the horizon.
// Maintenance is a fixed percentage of purchase price per year.
func LifecycleCost(pumpCost, annualEnergyCost, maintenancePct float64, years float64) float64 {
	annualMaintenance := pumpCost * maintenancePct
	return pumpCost + (annualEnergyCost+annualMaintenance)*years
}

// CalcROISummary builds the full investment case over a 10-year lifecycle
// with 2% annual maintenance.
func CalcROISummary(oldPump, newPump PumpCalcInput, pumpCost float64) ROISummary {
	oldKWh := oldPump.annualKWh()
	newKWh := newPump.annualKWh()

	oldCost := AnnualEnergyCost(oldPump)
	newCost := AnnualEnergyCost(newPump)
	savings := oldCost - newCost

	effPct := 0.0
	if oldKWh > 0 {
		effPct = (oldKWh - newKWh) / oldKWh * 100
	}

	return ROISummary{
		OldAnnualCost:            oldCost,
		NewAnnualCost:            newCost,
		AnnualSavings:            savings,
		PaybackMonths:            PaybackMonths(pumpCost, savings),
		CO2ReductionTonnes:       CO2ReductionTonnes(oldKWh, newKWh, oldPump.CO2Factor),
		TenYearSavings:           savings*10 - pumpCost,
		LifecycleCost:            LifecycleCost(pumpCost, newCost, 0.02, 10),
		EfficiencyImprovementPct: effPct,
	}
}

// ParsePrice reads a USD price range like "1,200-1,800" and returns its
// midpoint, or the single figure, or 500 when unparseable.
func ParsePrice(priceRange string) float64 {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(priceRange)
	parts := strings.Split(cleaned, "-")
	if len(parts) == 2 {
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLo == nil && errHi == nil {
			return (lo + hi) / 2
		}
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err == nil && v > 0 {
		return v
	}
	return 500
}

// FormatPricePHP renders a USD price range as a peso range with thousands
// separators, e.g. "₱67,200-₱100,800".
func FormatPricePHP(priceRange string) string {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(priceRange)
	parts := strings.Split(cleaned, "-")
	if len(parts) == 2 {
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLo == nil && errHi == nil {
			return fmt.Sprintf("₱%s-₱%s", formatThousands(lo*usdToPhp), formatThousands(hi*usdToPhp))
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || v <= 0 {
		v = 500
	}
	return "₱" + formatThousands(v*usdToPhp)
}

func formatThousands(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', -1, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
