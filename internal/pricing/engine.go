package pricing

// The engine is a pure function over immutable value inputs: identical inputs
// always produce identical quotes, which is what makes the cache safe without
// any invalidation beyond TTL.

const (
	distanceCoeff      = 1.5
	operableAdjustment = 15.0
)

var vehicleBonus = map[string]float64{
	"sedan": 10.0,
	"suv":   20.0,
	"truck": 30.0,
}

type QuoteInput struct {
	BasePrice   float64 `json:"base_price"`
	DistanceKM  float64 `json:"distance_km"`
	VehicleType string  `json:"vehicle_type"`
	SeasonBonus float64 `json:"season_bonus"`
	Operable    bool    `json:"operable"`
}

type Quote struct {
	FinalPrice float64            `json:"final_price"`
	Breakdown  map[string]float64 `json:"price_breakdown"`
}

func Calculate(in QuoteInput) Quote {
	operable := 0.0
	if in.Operable {
		operable = operableAdjustment
	}
	breakdown := map[string]float64{
		"base_price":          in.BasePrice,
		"distance_cost":       in.DistanceKM * distanceCoeff,
		"vehicle_bonus":       vehicleBonus[in.VehicleType],
		"season_bonus":        in.SeasonBonus,
		"operable_adjustment": operable,
	}
	final := 0.0
	for _, amount := range breakdown {
		final += amount
	}
	return Quote{FinalPrice: final, Breakdown: breakdown}
}
