// Package stages implements the five analysis stages of the site
// recommendation pipeline: traffic, grid, competitor, demographic, and roi.
//
// Every stage follows the same skeleton: validate the shared state, geocode
// the seed location, query the region-data provider, and derive its domain
// score from feature counts using fixed weighting formulas. All failures are
// handled inside the stage: a geocoding miss or upstream failure produces a
// deterministic fallback payload plus one entry in the state's error log,
// never an error to the executor.
package stages

import (
	"context"
	"fmt"
	"math"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/types"
)

// validateState checks the two entry invariants shared by all stages. On
// failure it appends a diagnostic and returns false; the stage then returns
// without touching its payload field.
func validateState(name string, state *types.WorkflowState) bool {
	if state.Location == "" {
		state.AddError(fmt.Sprintf("%s: no location provided", name))
		return false
	}
	if state.RadiusKM <= 0 {
		state.AddError(fmt.Sprintf("%s: invalid radius provided", name))
		return false
	}
	return true
}

// geocodeSeed resolves the seed location with progressively looser query
// variants scoped to the configured region. Returns nil when no variant
// resolves; transport errors are treated the same as a miss (the caller falls
// back either way).
func geocodeSeed(ctx context.Context, lookup external.GeoLookup, region config.RegionConfig, location string) *types.Coordinates {
	queries := []string{
		fmt.Sprintf("%s, %s, %s", location, region.State, region.Country),
		fmt.Sprintf("%s, %s", location, region.State),
		fmt.Sprintf("%s, %s", location, region.Country),
	}
	for _, q := range queries {
		coords, err := lookup.Geocode(ctx, q)
		if err != nil {
			continue
		}
		if coords != nil {
			return coords
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// countTagged counts features whose tag value for key is one of the given
// values.
func countTagged(features []external.Feature, key string, values ...string) int {
	n := 0
	for _, f := range features {
		v, ok := f.Tags[key]
		if !ok {
			continue
		}
		for _, want := range values {
			if v == want {
				n++
				break
			}
		}
	}
	return n
}
