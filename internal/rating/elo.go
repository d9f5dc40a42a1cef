package rating

import (
	"math"
)

// DefaultKFactor is the standard adjustment weight for competitive games
const DefaultKFactor = 32

// Expected returns the expected score of player A against player B
func Expected(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// Update applies a symmetric Elo adjustment with the default K-factor.
// scoreA is the normalized outcome for A: 1 win, 0.5 draw, 0 loss.
func Update(ratingA, ratingB int, scoreA float64) (int, int) {
	return UpdateK(ratingA, ratingB, scoreA, DefaultKFactor)
}

// UpdateK applies a symmetric Elo adjustment with an explicit K-factor.
// Rounding keeps |newA + newB − oldA − oldB| ≤ 1.
func UpdateK(ratingA, ratingB int, scoreA float64, k float64) (int, int) {
	expectedA := Expected(ratingA, ratingB)
	newA := int(math.Round(float64(ratingA) + k*(scoreA-expectedA)))
	newB := int(math.Round(float64(ratingB) + k*((1-scoreA)-(1-expectedA))))
	return newA, newB
}

// Normalize maps raw final scores onto the {1, 0.5, 0} outcome for the
// first player
func Normalize(rawA, rawB int) float64 {
	switch {
	case rawA > rawB:
		return 1
	case rawA < rawB:
		return 0
	default:
		return 0.5
	}
}
