package tracking

import (
	"math"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

// Status classifies consumption against a target.
type Status string

const (
	StatusLow      Status = "low"
	StatusAdequate Status = "adequate"
	StatusHigh     Status = "high"
)

// Adequacy band, in percent of the predicted need. Both ends are inclusive.
const (
	AdequateMin = 90.0
	AdequateMax = 110.0
)

// NutrientEvaluation compares one nutrient's consumption with its target.
type NutrientEvaluation struct {
	Consumed        float64 `json:"consumed"`
	PredictedNeeded float64 `json:"predicted_needed"`
	Percentage      float64 `json:"percentage"`
	Status          Status  `json:"status"`
}

// Evaluation covers the four macro-nutrients. Calcium is not evaluated.
type Evaluation struct {
	Calories     NutrientEvaluation `json:"calories"`
	Proteins     NutrientEvaluation `json:"proteins"`
	Fat          NutrientEvaluation `json:"fat"`
	Carbohydrate NutrientEvaluation `json:"carbohydrate"`
}

// Evaluate compares totals with targets. Consumed and predicted values are
// rounded to 2 decimals and the percentage to 1, but the status is
// classified on the unrounded percentage.
func Evaluate(targets nutrition.Targets, totals nutrition.Nutrients) Evaluation {
	return Evaluation{
		Calories:     evaluateOne(totals.Calories, targets.Calories),
		Proteins:     evaluateOne(totals.Proteins, targets.Proteins),
		Fat:          evaluateOne(totals.Fat, targets.Fat),
		Carbohydrate: evaluateOne(totals.Carbohydrate, targets.Carbohydrate),
	}
}

func evaluateOne(consumed, predicted float64) NutrientEvaluation {
	var pct float64
	if predicted > 0 {
		// Scale before dividing so exact boundary ratios stay exact.
		pct = consumed * 100 / predicted
		if math.IsInf(pct, 1) {
			// Overflowed; divide first, and saturate if that overflows too.
			pct = math.Min(consumed/predicted*100, math.MaxFloat64)
		}
	}
	return NutrientEvaluation{
		Consumed:        round(consumed, 2),
		PredictedNeeded: round(predicted, 2),
		Percentage:      round(pct, 1),
		Status:          Classify(pct),
	}
}

// Classify maps a percentage of the predicted need to a Status.
func Classify(pct float64) Status {
	switch {
	case pct < AdequateMin:
		return StatusLow
	case pct > AdequateMax:
		return StatusHigh
	default:
		return StatusAdequate
	}
}

// round rounds half away from zero to the given number of decimals. Values
// too large to scale are returned unchanged.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return v
	}
	return r
}
