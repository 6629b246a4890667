package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
)

const (
	// RoundSize is the number of observation items every round carries.
	RoundSize = 8

	// ClusterRadiusKm bounds how spread out a round's items may be.
	ClusterRadiusKm = 50

	defaultBaseURL     = "https://api.inaturalist.org/v1"
	defaultMaxAttempts = 15
	pageRange          = 200
	birdsTaxonID       = 3
)

// ErrNoCluster is returned when no valid 8-item cluster could be found
// within the attempt budget. Callers must surface it as a retryable
// error state, never hang waiting for round data.
var ErrNoCluster = errors.New("no valid observation cluster found")

var (
	errRateLimited = errors.New("observation source rate limited")
	errForbidden   = errors.New("observation source forbidden")
)

// Client pulls geotagged, photographed, research-grade bird observations
// from the iNaturalist API.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int

	// Backoffs applied on 429 / 403 / transient failures.
	RateLimitBackoff time.Duration
	ForbiddenBackoff time.Duration
	RetryBackoff     time.Duration
}

// NewClient builds a sourcing client. baseURL may be empty to use the
// real API; tests point it at a local server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		HTTPClient:       &http.Client{Timeout: 15 * time.Second},
		MaxAttempts:      defaultMaxAttempts,
		RateLimitBackoff: 2 * time.Second,
		ForbiddenBackoff: 3 * time.Second,
		RetryBackoff:     2 * time.Second,
	}
}

type apiPhoto struct {
	URL string `json:"url"`
}

type apiGeojson struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type apiTaxon struct {
	Name                string `json:"name"`
	PreferredCommonName string `json:"preferred_common_name"`
}

type apiObservation struct {
	ID      int64       `json:"id"`
	Photos  []apiPhoto  `json:"photos"`
	Geojson *apiGeojson `json:"geojson"`
	Taxon   *apiTaxon   `json:"taxon"`
}

type apiPage struct {
	Results []apiObservation `json:"results"`
}

func (o *apiObservation) valid() bool {
	return len(o.Photos) > 0 && o.Geojson != nil &&
		o.Geojson.Type == "Point" && len(o.Geojson.Coordinates) == 2
}

func (o *apiObservation) species() string {
	if o.Taxon == nil {
		return "Unknown"
	}
	if o.Taxon.PreferredCommonName != "" {
		return o.Taxon.PreferredCommonName
	}
	if o.Taxon.Name != "" {
		return o.Taxon.Name
	}
	return "Unknown"
}

func (o *apiObservation) item() redis_models.ObservationItem {
	return redis_models.ObservationItem{
		ID:       o.ID,
		PhotoURL: strings.Replace(o.Photos[0].URL, "square", "large", 1),
		Lat:      o.Geojson.Coordinates[1],
		Lon:      o.Geojson.Coordinates[0],
		Species:  o.species(),
	}
}

// LoadRound produces exactly 8 observation items clustered within 50 km,
// deduplicated by species where possible. The RandomSource decides the
// sampled region, page, cluster center and shuffle order; pass a
// DeterministicSeed in shared-match modes and RandomSeed in single
// player.
func (c *Client) LoadRound(ctx context.Context, src RandomSource) ([]redis_models.ObservationItem, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		log.Printf("[SOURCING] Attempt %d/%d", attempt, maxAttempts)

		region := SelectWeightedRegion(src.Float("_region"))
		page := boundedIndex(src.Float("_page"), pageRange)

		pageURL := fmt.Sprintf(
			"%s/observations?photos=true&quality_grade=research&order=desc&per_page=100&geo=true&geoprivacy=open&page=%d&swlat=%v&swlng=%v&nelat=%v&nelng=%v&taxon_id=%d",
			c.BaseURL, page, region.Bbox[1], region.Bbox[0], region.Bbox[3], region.Bbox[2], birdsTaxonID)

		candidates, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			if waitErr := c.backoff(ctx, err); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		valid := filterValid(candidates)
		if len(valid) == 0 {
			log.Printf("[SOURCING] No valid observations in %s page %d", region.Name, page)
			continue
		}

		base := valid[boundedIndex(src.Float("_base"), len(valid))]
		centerLat := base.Geojson.Coordinates[1]
		centerLng := base.Geojson.Coordinates[0]

		clusterURL := fmt.Sprintf(
			"%s/observations?photos=true&quality_grade=research&order=desc&per_page=100&geo=true&geoprivacy=open&coordinates_obscured=false&lat=%v&lng=%v&radius=%d&taxon_id=%d",
			c.BaseURL, centerLat, centerLng, ClusterRadiusKm, birdsTaxonID)

		cluster, err := c.fetchPage(ctx, clusterURL)
		if err != nil {
			if waitErr := c.backoff(ctx, err); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		clusterValid := filterValid(cluster)
		if len(clusterValid) < RoundSize {
			log.Printf("[SOURCING] Cluster around (%.3f, %.3f) too small: %d observations",
				centerLat, centerLng, len(clusterValid))
			if waitErr := c.sleep(ctx, c.RetryBackoff); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		selected := selectRoundItems(clusterValid, src)
		log.Printf("[SOURCING-SUCCESS] Found %d items near (%.3f, %.3f) in %s",
			len(selected), centerLat, centerLng, region.Name)
		return selected, nil
	}

	log.Printf("[SOURCING-ERROR] Exhausted %d attempts without a valid cluster", maxAttempts)
	return nil, ErrNoCluster
}

// selectRoundItems deduplicates by species (preferring 8 distinct
// species, falling back to any 8) and shuffles per the round's source.
func selectRoundItems(observations []apiObservation, src RandomSource) []redis_models.ObservationItem {
	bySpecies := make(map[string]apiObservation)
	order := make([]string, 0, len(observations))
	for _, obs := range observations {
		name := obs.species()
		if _, seen := bySpecies[name]; !seen {
			bySpecies[name] = obs
			order = append(order, name)
		}
	}

	var pool []apiObservation
	if len(bySpecies) >= RoundSize {
		for _, name := range order {
			pool = append(pool, bySpecies[name])
		}
	} else {
		pool = append(pool, observations...)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		hi := src.Float(fmt.Sprintf("_shuffle_%d", pool[i].ID))
		hj := src.Float(fmt.Sprintf("_shuffle_%d", pool[j].ID))
		return hi < hj
	})

	items := make([]redis_models.ObservationItem, 0, RoundSize)
	for _, obs := range pool[:RoundSize] {
		items = append(items, obs.item())
	}
	return items
}

func filterValid(observations []apiObservation) []apiObservation {
	var valid []apiObservation
	for _, obs := range observations {
		if obs.valid() {
			valid = append(valid, obs)
		}
	}
	return valid
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]apiObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building observation request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching observations: %v", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errRateLimited
	case http.StatusForbidden:
		return nil, errForbidden
	default:
		return nil, fmt.Errorf("observation source returned status %d", res.StatusCode)
	}

	var page apiPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("error decoding observation page: %v", err)
	}
	return page.Results, nil
}

// backoff sleeps according to the failure class. Rate limits and 403s
// get their dedicated waits, anything else the generic retry delay.
func (c *Client) backoff(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errRateLimited):
		log.Printf("[SOURCING] Rate limited, waiting %v", c.RateLimitBackoff)
		return c.sleep(ctx, c.RateLimitBackoff)
	case errors.Is(err, errForbidden):
		log.Printf("[SOURCING] Forbidden response, waiting %v", c.ForbiddenBackoff)
		return c.sleep(ctx, c.ForbiddenBackoff)
	default:
		log.Printf("[SOURCING] Fetch failed: %v", err)
		return c.sleep(ctx, c.RetryBackoff)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func boundedIndex(f float64, n int) int {
	idx := int(f * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
