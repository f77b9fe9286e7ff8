package access

import "github.com/rotisserie/eris"

// ErrEmptyCatchment marks a supply point whose catchment holds zero total
// population for the chosen attribute. It is per-supplier, not fatal: the
// engine skips the supplier, logs a warning, and reports it in the result.
var ErrEmptyCatchment = eris.New("access: catchment has zero population")

// Ratio computes the provider-to-population ratio for one supply point:
// capacity divided by the total competing population within its catchment.
// A zero (or negative) total is the degenerate case and never divides.
func Ratio(capacity, totalDemand float64) (float64, error) {
	if totalDemand <= 0 {
		return 0, ErrEmptyCatchment
	}
	return capacity / totalDemand, nil
}
