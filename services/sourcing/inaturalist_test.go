package sourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeObservation(id int64, lat, lng float64, species string) map[string]interface{} {
	return map[string]interface{}{
		"id":     id,
		"photos": []map[string]interface{}{{"url": fmt.Sprintf("https://static.example/photos/%d/square.jpg", id)}},
		"geojson": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{lng, lat},
		},
		"taxon": map[string]interface{}{
			"name":                  species,
			"preferred_common_name": species,
		},
	}
}

func writePage(w http.ResponseWriter, results []map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
}

func clusterResults(count int, distinctSpecies bool) []map[string]interface{} {
	var results []map[string]interface{}
	for i := 0; i < count; i++ {
		species := fmt.Sprintf("Species %d", i)
		if !distinctSpecies {
			species = "Common Chaffinch"
		}
		results = append(results, fakeObservation(int64(1000+i), 41.6+float64(i)*0.01, -0.9, species))
	}
	return results
}

func newTestClient(url string) *Client {
	c := NewClient(url)
	c.RateLimitBackoff = time.Millisecond
	c.ForbiddenBackoff = time.Millisecond
	c.RetryBackoff = time.Millisecond
	return c
}

func TestLoadRoundReturnsEightDistinctSpecies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "radius=") {
			writePage(w, clusterResults(12, true))
			return
		}
		writePage(w, []map[string]interface{}{fakeObservation(1, 41.65, -0.88, "White Stork")})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	items, err := client.LoadRound(context.Background(), MatchSeed("match123", 1))
	require.NoError(t, err)
	require.Len(t, items, RoundSize)

	seen := map[string]bool{}
	for _, item := range items {
		assert.False(t, seen[item.Species], "duplicate species %s", item.Species)
		seen[item.Species] = true
		assert.Contains(t, item.PhotoURL, "large")
	}
}

func TestLoadRoundFallsBackWhenSpeciesRepeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "radius=") {
			writePage(w, clusterResults(10, false))
			return
		}
		writePage(w, []map[string]interface{}{fakeObservation(1, 41.65, -0.88, "White Stork")})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	items, err := client.LoadRound(context.Background(), MatchSeed("match123", 1))
	require.NoError(t, err)
	assert.Len(t, items, RoundSize)
}

func TestLoadRoundDeterministicAcrossClients(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "radius=") {
			writePage(w, clusterResults(15, true))
			return
		}
		writePage(w, []map[string]interface{}{
			fakeObservation(1, 41.65, -0.88, "White Stork"),
			fakeObservation(2, 40.41, -3.70, "Iberian Magpie"),
		})
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	first, err := newTestClient(srv.URL).LoadRound(context.Background(), MatchSeed("duel42", 3))
	require.NoError(t, err)
	second, err := newTestClient(srv.URL).LoadRound(context.Background(), MatchSeed("duel42", 3))
	require.NoError(t, err)

	assert.Equal(t, first, second, "two clients computing the same seed must agree")
}

func TestLoadRoundRetriesOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if strings.Contains(r.URL.RawQuery, "radius=") {
			writePage(w, clusterResults(9, true))
			return
		}
		writePage(w, []map[string]interface{}{fakeObservation(1, 41.65, -0.88, "White Stork")})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	items, err := client.LoadRound(context.Background(), MatchSeed("m", 1))
	require.NoError(t, err)
	assert.Len(t, items, RoundSize)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestLoadRoundExhaustsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// never enough observations for a cluster
		writePage(w, clusterResults(3, true))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.MaxAttempts = 3
	_, err := client.LoadRound(context.Background(), RandomSeed{})
	assert.ErrorIs(t, err, ErrNoCluster)
}

func TestLoadRoundHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.RateLimitBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.LoadRound(ctx, RandomSeed{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeterministicSeedStable(t *testing.T) {
	a := MatchSeed("abc", 2)
	b := MatchSeed("abc", 2)
	for _, label := range []string{"_region", "_page", "_base", "_shuffle_17"} {
		assert.Equal(t, a.Float(label), b.Float(label))
		v := a.Float(label)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.NotEqual(t, a.Float("_region"), MatchSeed("abc", 3).Float("_region"))
}

func TestSelectWeightedRegionCoversAllRegions(t *testing.T) {
	seen := map[string]bool{}
	for f := 0.0; f < 1.0; f += 0.001 {
		seen[SelectWeightedRegion(f).Name] = true
	}
	assert.Len(t, seen, len(Regions))
	// weighted: South America band is twice as wide as North America's
	assert.Equal(t, "North America", SelectWeightedRegion(0.01).Name)
	assert.Equal(t, "South America", SelectWeightedRegion(0.3).Name)
}
