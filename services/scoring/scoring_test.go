package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistanceIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{41.65, -0.88},
		{-33.86, 151.20},
		{89.9, 179.9},
	}
	for _, p := range points {
		assert.InDelta(t, 0, HaversineDistance(p[0], p[1], p[0], p[1]), 1e-9)
	}
}

func TestHaversineDistanceSymmetry(t *testing.T) {
	d1 := HaversineDistance(40.41, -3.70, 51.50, -0.12)
	d2 := HaversineDistance(51.50, -0.12, 40.41, -3.70)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestHaversineDistanceKnownValue(t *testing.T) {
	// Madrid -> London is roughly 1260 km
	d := HaversineDistance(40.4168, -3.7038, 51.5074, -0.1278)
	assert.InDelta(t, 1263, d, 15)
}

func TestDistanceToPointsPerfectRadius(t *testing.T) {
	for _, d := range []float64{0, 1, 50, 99.9, 100} {
		assert.Equal(t, 5000, DistanceToPoints(d), "distance %f", d)
	}
}

func TestDistanceToPointsNonIncreasing(t *testing.T) {
	prev := DistanceToPoints(0)
	for d := 50.0; d <= 20015; d += 50 {
		p := DistanceToPoints(d)
		assert.LessOrEqual(t, p, prev, "points increased at %f km", d)
		prev = p
	}
}

func TestDistanceToPointsAntipodal(t *testing.T) {
	// max antipodal distance is ~20015 km; score should be near zero
	p := DistanceToPoints(20015)
	assert.Less(t, p, 30)
	assert.GreaterOrEqual(t, p, 0)
}

func TestDuelDamageBeforeEscalation(t *testing.T) {
	for round := 1; round <= 3; round++ {
		assert.Equal(t, 1200, DuelDamage(5000, 3800, round))
		assert.Equal(t, 1200, DuelDamage(3800, 5000, round))
	}
}

func TestDuelDamageEscalation(t *testing.T) {
	assert.Equal(t, 1800, DuelDamage(5000, 3800, 4)) // x1.5
	assert.Equal(t, 2400, DuelDamage(5000, 3800, 5)) // x2.0
	assert.Equal(t, 3000, DuelDamage(5000, 3800, 6)) // x2.5
}

func TestDuelDamageZeroDifference(t *testing.T) {
	assert.Equal(t, 0, DuelDamage(4200, 4200, 5))
}

func TestDamageMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, DamageMultiplier(1))
	assert.Equal(t, 1.0, DamageMultiplier(3))
	assert.Equal(t, 1.5, DamageMultiplier(4))
	assert.Equal(t, 2.0, DamageMultiplier(5))
	assert.Equal(t, 2.5, DamageMultiplier(6))
}
