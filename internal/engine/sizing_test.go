// internal/engine/sizing_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Duty Point Tests
// ==========================

func TestEstimateDutyPointExactSpecs(t *testing.T) {
	state := ConversationState{
		Application: AppHeating,
		FlowM3H:     floatPtr(12.5),
		HeadM:       floatPtr(8),
	}

	dp := EstimateDutyPoint(state)

	assert.Equal(t, 12.5, dp.EstimatedFlowM3H)
	assert.Equal(t, 8.0, dp.EstimatedHeadM)
	assert.Equal(t, ConfidenceCalculated, dp.Confidence)
	assert.Equal(t, []string{"User provided exact specifications"}, dp.Assumptions)
}

func TestEstimateDutyPointDomesticFromBathrooms(t *testing.T) {
	// 3 floors, 2 bathrooms: 6 fixtures, 0.63 l/s peak, 2.268 m³/h;
	// head 9m static + 15% friction + 5m boost = 15.35m
	state := ConversationState{
		Application: AppDomesticWater,
		Floors:      3,
		Bathrooms:   2,
	}

	dp := EstimateDutyPoint(state)

	assert.Equal(t, 2.268, dp.EstimatedFlowM3H)
	assert.Equal(t, 15.35, dp.EstimatedHeadM)
	assert.Equal(t, ConfidenceEstimated, dp.Confidence)
	assert.NotEmpty(t, dp.Assumptions)
}

func TestEstimateDutyPointDomesticBySize(t *testing.T) {
	tests := []struct {
		size     BuildingSize
		wantFlow float64
	}{
		{SizeSmall, 1.2},
		{SizeMedium, 3.5},
		{SizeLarge, 8.0},
	}
	for _, tt := range tests {
		dp := EstimateDutyPoint(ConversationState{Application: AppDomesticWater, BuildingSize: tt.size})
		assert.Equal(t, tt.wantFlow, dp.EstimatedFlowM3H, "size %s", tt.size)
	}
}

func TestEstimateDutyPointDeterministic(t *testing.T) {
	state := ConversationState{Application: AppDomesticWater, Floors: 3, Bathrooms: 2}
	first := EstimateDutyPoint(state)
	second := EstimateDutyPoint(state)
	assert.Equal(t, first, second)
}

func TestEstimateDutyPointWastewaterTable(t *testing.T) {
	tests := []struct {
		size               BuildingSize
		wantFlow, wantHead float64
	}{
		{SizeSmall, 2, 8},
		{SizeMedium, 8, 15},
		{SizeLarge, 30, 25},
	}
	for _, tt := range tests {
		dp := EstimateDutyPoint(ConversationState{Application: AppWastewater, BuildingSize: tt.size})
		assert.Equal(t, tt.wantFlow, dp.EstimatedFlowM3H)
		assert.Equal(t, tt.wantHead, dp.EstimatedHeadM)
	}
}

func TestEstimateDutyPointDosingFixedPoint(t *testing.T) {
	dp := EstimateDutyPoint(ConversationState{Application: AppDosing, BuildingSize: SizeLarge})
	assert.Equal(t, 0.01, dp.EstimatedFlowM3H)
	assert.Equal(t, 10.0, dp.EstimatedHeadM)
}

func TestEstimateDutyPointHeating(t *testing.T) {
	// medium: 30 units → 1800 m², 36 kW at 20 W/m²,
	// flow = 36×3600/(10×4.18×1000) ≈ 3.1 m³/h
	dp := EstimateDutyPoint(ConversationState{Application: AppHeating, BuildingSize: SizeMedium})

	assert.InDelta(t, 3.1, dp.EstimatedFlowM3H, 0.001)
	// 30m pipe run × 0.02 friction × 1.3 fittings × 2 (supply+return) = 1.56 → 1.6
	assert.InDelta(t, 1.6, dp.EstimatedHeadM, 0.001)
	assert.Equal(t, ConfidenceEstimated, dp.Confidence)
}

func TestEstimateDutyPointCoolingHigherLoad(t *testing.T) {
	heating := EstimateDutyPoint(ConversationState{Application: AppHeating, BuildingSize: SizeMedium})
	cooling := EstimateDutyPoint(ConversationState{Application: AppCooling, BuildingSize: SizeMedium})

	// 80 W/m² at ΔT 5K vs 20 W/m² at 10K: cooling moves far more water
	assert.Greater(t, cooling.EstimatedFlowM3H, heating.EstimatedFlowM3H)
}

func TestEstimateDutyPointWaterSupply(t *testing.T) {
	// medium: 30 units × 3 persons × 200 L/day × 2.5 peak / 86400 s
	// ≈ 0.52 l/s ≈ 1.9 m³/h; head = 15m static × 1.3 + 15m = 34.5m
	dp := EstimateDutyPoint(ConversationState{Application: AppWaterSupply, BuildingSize: SizeMedium})

	assert.InDelta(t, 1.9, dp.EstimatedFlowM3H, 0.001)
	assert.InDelta(t, 34.5, dp.EstimatedHeadM, 0.001)
}

func TestEstimateDutyPointDefaultsForUnknowns(t *testing.T) {
	// no application: treated as water supply, medium
	dp := EstimateDutyPoint(ConversationState{})
	assert.Greater(t, dp.EstimatedFlowM3H, 0.0)
	assert.Greater(t, dp.EstimatedHeadM, 0.0)
}

// ==========================
// Operating Hours & Oversizing Tests
// ==========================

func TestOperatingHours(t *testing.T) {
	assert.Equal(t, 3500.0, OperatingHours(AppHeating, SizeMedium))
	assert.Equal(t, 8760.0, OperatingHours(AppDosing, SizeSmall))
	assert.Equal(t, 7000.0, OperatingHours(AppDomesticWater, SizeLarge))

	// unknown size falls back to application default, then 4380
	assert.Equal(t, 8760.0, OperatingHours(AppDomesticWater, ""))
	assert.Equal(t, 4380.0, OperatingHours(Application("industrial_other"), ""))
}

func TestOversizingFactor(t *testing.T) {
	assert.Equal(t, 2.0, oversizingFactor(AppDomesticWater, SizeSmall))
	assert.Equal(t, 1.2, oversizingFactor(AppWaterSupply, SizeLarge))
	assert.Equal(t, 1.4, oversizingFactor(Application("unknown"), SizeSmall))
}
