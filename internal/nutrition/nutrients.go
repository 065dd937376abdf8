package nutrition

import "math"

// Targets are the predicted daily macro-nutrient needs.
type Targets struct {
	Calories     float64 `json:"calories"`     // kcal
	Proteins     float64 `json:"proteins"`     // g
	Fat          float64 `json:"fat"`          // g
	Carbohydrate float64 `json:"carbohydrate"` // g
}

// Clamp returns t with every negative value floored to zero.
func (t Targets) Clamp() Targets {
	return Targets{
		Calories:     nonNegative(t.Calories),
		Proteins:     nonNegative(t.Proteins),
		Fat:          nonNegative(t.Fat),
		Carbohydrate: nonNegative(t.Carbohydrate),
	}
}

// Nutrients is an amount of the five tracked nutrients, either for a single
// consumed portion or a day's running total. Calcium is tracked but never
// evaluated against targets.
type Nutrients struct {
	Calories     float64 `json:"calories"`     // kcal
	Proteins     float64 `json:"proteins"`     // g
	Fat          float64 `json:"fat"`          // g
	Carbohydrate float64 `json:"carbohydrate"` // g
	Calcium      float64 `json:"calcium"`      // mg
}

// Add returns the pointwise sum of n and o.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories:     n.Calories + o.Calories,
		Proteins:     n.Proteins + o.Proteins,
		Fat:          n.Fat + o.Fat,
		Carbohydrate: n.Carbohydrate + o.Carbohydrate,
		Calcium:      n.Calcium + o.Calcium,
	}
}

// Scale returns n with every value multiplied by factor.
func (n Nutrients) Scale(factor float64) Nutrients {
	return Nutrients{
		Calories:     n.Calories * factor,
		Proteins:     n.Proteins * factor,
		Fat:          n.Fat * factor,
		Carbohydrate: n.Carbohydrate * factor,
		Calcium:      n.Calcium * factor,
	}
}

// Finite reports whether every value of n is a finite number.
func (n Nutrients) Finite() bool {
	for _, v := range []float64{n.Calories, n.Proteins, n.Fat, n.Carbohydrate, n.Calcium} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
