package collector

import "math"

// DefaultRiskFreeRate is the 10-year Treasury yield used for greeks
const DefaultRiskFreeRate = 0.0439

// Greeks of a European call
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	// Theta is per calendar day
	Theta float64 `json:"theta"`
	// Vega and Rho are per one percentage point
	Vega float64 `json:"vega"`
	Rho  float64 `json:"rho"`
}

// BlackScholes computes call greeks for spot s, strike k, years to expiry t,
// risk free rate r and volatility sigma. Greeks are zero when t or sigma is
// not positive.
func BlackScholes(s, k, t, r, sigma float64) Greeks {
	if t <= 0 || sigma <= 0 || s <= 0 || k <= 0 {
		return Greeks{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discount := math.Exp(-r * t)

	return Greeks{
		Delta: normCDF(d1),
		Gamma: normPDF(d1) / (s * sigma * sqrtT),
		Theta: -(s*normPDF(d1)*sigma/(2*sqrtT) + r*k*discount*normCDF(d2)) / DaysPerYear,
		Vega:  s * normPDF(d1) * sqrtT / 100,
		Rho:   k * t * discount * normCDF(d2) / 100,
	}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
