package scoring

import "math"

const (
	// EarthRadiusKm is the sphere radius used for great-circle distances.
	EarthRadiusKm = 6371.0

	// MaxPoints is the score awarded for a guess within PerfectRadiusKm.
	MaxPoints = 5000

	// PerfectRadiusKm is the distance under which a guess scores MaxPoints.
	PerfectRadiusKm = 100.0

	// worldScaleKm approximates a reference world half-diameter so that
	// antipodal guesses approach zero points.
	worldScaleKm = 14916.862

	decayFactor = 4.0
)

// HaversineDistance returns the great-circle distance in kilometers
// between two lat/lng points.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(x float64) float64 { return x * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceToPoints converts a guess distance into a score in [0, 5000].
// Distances within the perfect radius score the maximum; beyond it the
// score decays exponentially towards zero at antipodal range.
func DistanceToPoints(distanceKm float64) int {
	if distanceKm <= PerfectRadiusKm {
		return MaxPoints
	}
	raw := MaxPoints * math.Exp(-decayFactor*distanceKm/worldScaleKm)
	points := int(math.Round(raw))
	if points < 0 {
		return 0
	}
	if points > MaxPoints {
		return MaxPoints
	}
	return points
}

// DamageMultiplier returns the duel damage escalation for a round.
// Rounds 1-3 deal base damage; from round 4 on the multiplier grows by
// 0.5 per round (round 4 -> x1.5, round 5 -> x2.0, ...).
func DamageMultiplier(round int) float64 {
	if round < 4 {
		return 1.0
	}
	return 1.5 + 0.5*float64(round-4)
}

// DuelDamage computes the health loss of the lower-scoring duel player:
// the point difference, scaled by the round's multiplier and rounded.
func DuelDamage(pointsA, pointsB, round int) int {
	diff := pointsA - pointsB
	if diff < 0 {
		diff = -diff
	}
	return int(math.Round(float64(diff) * DamageMultiplier(round)))
}
