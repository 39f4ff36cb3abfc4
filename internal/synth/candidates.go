// Package synth turns the accumulated stage payloads into ranked, geolocated
// site recommendations. It generates candidate points around the seed
// location, scores each against the stage baselines with bounded variation,
// and attaches narrative reasoning.
package synth

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/geo"
	"voltsite/internal/types"
)

// Candidate is one scoring location: the seed itself or an offset point.
type Candidate struct {
	Info types.LocationInfo

	// DistanceKM is the great-circle distance from the seed point.
	DistanceKM float64

	// DistanceFactor discounts scores with distance from the seed, floored at
	// 0.8 so outer candidates stay competitive.
	DistanceFactor float64
}

// candidateDirections are unit offsets (east, north) applied around the seed.
// Only the first candidateCount-1 are used; the remainder document the full
// compass order should the count ever grow.
var candidateDirections = []struct {
	East, North float64
	Label       string
}{
	{0.7, 0.7, "Northeast"},
	{-0.7, 0.7, "Northwest"},
	{0.7, -0.7, "Southeast"},
	{-0.7, -0.7, "Southwest"},
	{0, 1, "North"},
	{1, 0, "East"},
	{0, -1, "South"},
	{-1, 0, "West"},
}

const (
	candidateCount = 5

	// offsetFraction of the search radius is the ring distance for offset
	// candidates.
	offsetFraction = 0.3

	// labelFanOut bounds concurrent reverse-geocoding calls.
	labelFanOut = 3
)

// CandidateGenerator produces the candidate set for one run.
type CandidateGenerator struct {
	lookup external.GeoLookup
	cfg    config.RegionConfig
}

// NewCandidateGenerator creates a generator resolving area labels via lookup.
func NewCandidateGenerator(lookup external.GeoLookup, cfg config.RegionConfig) *CandidateGenerator {
	return &CandidateGenerator{lookup: lookup, cfg: cfg}
}

// Generate returns the seed candidate plus four offset candidates on a ring
// at offsetFraction of the search radius. Reverse-geocoding failures degrade
// the label, never the candidate set.
func (g *CandidateGenerator) Generate(ctx context.Context, seed types.Coordinates, seedName string, radiusKM int) []Candidate {
	out := make([]Candidate, candidateCount)

	out[0] = Candidate{
		Info: types.LocationInfo{
			Name:        seedName + " Central",
			Coordinates: seed,
			Address:     fmt.Sprintf("%s, %s", seedName, g.cfg.State),
			Region:      g.cfg.State,
		},
		DistanceKM:     0,
		DistanceFactor: 1.0,
	}

	ringKM := offsetFraction * float64(radiusKM)
	for i, dir := range candidateDirections[:candidateCount-1] {
		lat, lon := geo.Offset(seed.Latitude, seed.Longitude, dir.North*ringKM, dir.East*ringKM)
		coords := types.Coordinates{Latitude: lat, Longitude: lon}
		dist := geo.HaversineKM(seed.Latitude, seed.Longitude, lat, lon)

		df := 1 - dist/(2*float64(radiusKM))
		if df < 0.8 {
			df = 0.8
		}

		out[i+1] = Candidate{
			Info: types.LocationInfo{
				Name:        fmt.Sprintf("%s %s", dir.Label, seedName),
				Coordinates: coords,
				Address:     fmt.Sprintf("near %s, %s", seedName, g.cfg.State),
				Region:      g.cfg.State,
			},
			DistanceKM:     dist,
			DistanceFactor: df,
		}
	}

	g.resolveLabels(ctx, out)
	return out
}

// resolveLabels reverse-geocodes candidate points concurrently, upgrading the
// directional placeholder names where a real area label exists. Failures keep
// the placeholder.
func (g *CandidateGenerator) resolveLabels(ctx context.Context, candidates []Candidate) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(labelFanOut)
	for i := range candidates {
		eg.Go(func() error {
			c := &candidates[i]
			area, err := g.lookup.Reverse(ctx, c.Info.Coordinates.Latitude, c.Info.Coordinates.Longitude)
			if err != nil || area == "" {
				return nil
			}
			c.Info.AreaLabel = area
			if area != external.GenericAreaLabel {
				c.Info.Name = area
			}
			return nil
		})
	}
	_ = eg.Wait()
}

