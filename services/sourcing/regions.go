package sourcing

// Region is a world area candidates are sampled from. Bbox is
// [minLng, minLat, maxLng, maxLat]. Weights intentionally under-sample
// the continents where the observation source is densest, so rounds do
// not land in North America / Europe / Oceania most of the time.
type Region struct {
	Name   string
	Bbox   [4]float64
	Weight float64
}

var Regions = []Region{
	{Name: "North America", Bbox: [4]float64{-170, 5, -50, 75}, Weight: 0.5},
	{Name: "South America", Bbox: [4]float64{-82, -56, -34, 12}, Weight: 1.0},
	{Name: "Europe", Bbox: [4]float64{-31, 34, 45, 72}, Weight: 0.5},
	{Name: "Africa", Bbox: [4]float64{-20, -35, 52, 37}, Weight: 1.0},
	{Name: "Asia", Bbox: [4]float64{25, -10, 180, 55}, Weight: 1.0},
	{Name: "Oceania", Bbox: [4]float64{110, -50, 180, 0}, Weight: 0.5},
}

// SelectWeightedRegion maps a uniform random value in [0,1) onto the
// weighted region list.
func SelectWeightedRegion(random float64) Region {
	totalWeight := 0.0
	for _, r := range Regions {
		totalWeight += r.Weight
	}
	remaining := random * totalWeight
	for _, r := range Regions {
		remaining -= r.Weight
		if remaining <= 0 {
			return r
		}
	}
	return Regions[len(Regions)-1]
}
