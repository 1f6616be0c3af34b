package utils

import "math"

// RoundToLotSize floors value down to the nearest multiple of lotSize. A
// non-positive lotSize returns value unchanged.
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// RoundToLotSizeUp ceils value up to the nearest multiple of lotSize.
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Ceil(value/lotSize) * lotSize
}

// RoundToLotSizeNearest rounds value to the nearest multiple of lotSize.
func RoundToLotSizeNearest(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Round(value/lotSize) * lotSize
}

// CalculateSpread returns the percentage spread of priceHigh over
// priceLow: (priceHigh-priceLow)/priceLow*100. Returns 0 if priceLow is
// not positive.
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices returns the percentage spread between two
// prices regardless of which is larger. Returns 0 if either price is not
// positive.
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	if priceA >= priceB {
		return CalculateSpread(priceA, priceB)
	}
	return CalculateSpread(priceB, priceA)
}

// CalculateNetSpread subtracts round-trip taker fees (both legs, both
// directions) from a percentage spread already expressed in the same
// percentage units. feeA and feeB are fractional (0.0004 = 4bps).
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	return spreadPct - 2*(feeA+feeB)*100
}

// CalculateNetSpreadDirect computes the gross spread from raw prices and
// nets out fees in one call.
func CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB float64) float64 {
	return CalculateNetSpread(CalculateSpread(priceHigh, priceLow), feeA, feeB)
}

// CalculateWeightedAverage returns the volume-weighted average of values.
// Negative weights are ignored. Returns 0 for empty, mismatched-length, or
// all-zero-weight inputs.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	var sumWeighted, sumWeights float64
	for i, v := range values {
		w := weights[i]
		if w < 0 {
			continue
		}
		sumWeighted += v * w
		sumWeights += w
	}
	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// IsSpreadSufficient reports whether spread meets or exceeds threshold.
func IsSpreadSufficient(spread, threshold float64) bool {
	return spread >= threshold
}

// Clamp restricts value to the closed range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
