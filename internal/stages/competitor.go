package stages

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/geo"
	"voltsite/internal/types"
)

// CompetitorStage surveys existing charging infrastructure inside the search
// radius and scores the competitive gap: fewer nearby stations means a higher
// score.
type CompetitorStage struct {
	lookup external.GeoLookup
	region external.RegionDataSource
	cfg    config.RegionConfig
	logger *slog.Logger
}

// NewCompetitorStage creates the competitor analysis stage.
func NewCompetitorStage(lookup external.GeoLookup, region external.RegionDataSource, cfg config.RegionConfig, logger *slog.Logger) *CompetitorStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompetitorStage{lookup: lookup, region: region, cfg: cfg, logger: logger}
}

// Name implements pipeline.Stage.
func (s *CompetitorStage) Name() string { return "competitor_analysis" }

// Run implements pipeline.Stage.
func (s *CompetitorStage) Run(ctx context.Context, state *types.WorkflowState) error {
	if !validateState(s.Name(), state) {
		return nil
	}

	coords := geocodeSeed(ctx, s.lookup, s.cfg, state.Location)
	if coords == nil {
		state.AddError(fmt.Sprintf("competitor analysis: could not geocode location: %s", state.Location))
		state.Competitor = competitorFallback(state.RadiusKM)
		return nil
	}

	data, err := s.survey(ctx, coords, state.RadiusKM)
	if err != nil {
		s.logger.WarnContext(ctx, "charging station query failed, using fallback",
			"location", state.Location, "error", err)
		state.AddError(fmt.Sprintf("competitor analysis degraded: %v", err))
		state.Competitor = competitorFallback(state.RadiusKM)
		return nil
	}

	state.Competitor = data
	return nil
}

func chargingStationsQuery(lat, lon float64, radiusKM int) string {
	radiusM := radiusKM * 1000
	return fmt.Sprintf(`[out:json][timeout:15];
(
  node["amenity"="charging_station"](around:%d,%f,%f);
  way["amenity"="charging_station"](around:%d,%f,%f);
);
out center meta;`, radiusM, lat, lon, radiusM, lat, lon)
}

func fuelStationsQuery(lat, lon float64, radiusKM int) string {
	return fmt.Sprintf(`[out:json][timeout:15];
(
  node["amenity"="fuel"](around:%d,%f,%f);
);
out;`, radiusKM*1000, lat, lon)
}

func (s *CompetitorStage) survey(ctx context.Context, coords *types.Coordinates, radiusKM int) (*types.CompetitorData, error) {
	features, err := s.region.Query(ctx, chargingStationsQuery(coords.Latitude, coords.Longitude, radiusKM))
	if err != nil {
		return nil, err
	}

	stations := make([]types.ChargingStation, 0, len(features))
	for _, f := range features {
		name := f.Tags["name"]
		if name == "" {
			name = "Unnamed Charging Station"
		}
		stations = append(stations, types.ChargingStation{
			Name:        name,
			Operator:    f.Tags["operator"],
			Network:     f.Tags["network"],
			DistanceKM:  round2(geo.HaversineKM(coords.Latitude, coords.Longitude, f.Lat, f.Lon)),
			Coordinates: types.Coordinates{Latitude: f.Lat, Longitude: f.Lon},
		})
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].DistanceKM < stations[j].DistanceKM })

	var nearest *float64
	if len(stations) > 0 {
		d := stations[0].DistanceKM
		nearest = &d
	}
	if len(stations) > 5 {
		stations = stations[:5]
	}

	// Fuel stations proxy for fueling-stop demand; a query failure here only
	// zeroes the count.
	fuelCount := 0
	if fuels, err := s.region.Query(ctx, fuelStationsQuery(coords.Latitude, coords.Longitude, radiusKM)); err == nil {
		fuelCount = len(fuels)
		if fuelCount > 10 {
			fuelCount = 10
		}
	}

	count := len(features)
	density := float64(count) / (math.Pi * float64(radiusKM) * float64(radiusKM))

	score := 5.0
	switch {
	case count == 0:
		score = 10.0
	case density < 0.1:
		score = 8.5
	case density < 0.3:
		score = 7.0
	}

	opportunity := "Low"
	switch {
	case count == 0:
		opportunity = "Excellent"
	case count < 3:
		opportunity = "High"
	case count < 8:
		opportunity = "Medium"
	}

	saturation := "High"
	switch {
	case density < 0.2:
		saturation = "Low"
	case density < 0.7:
		saturation = "Medium"
	}

	return &types.CompetitorData{
		Coordinates:        coords,
		RadiusKM:           radiusKM,
		ExistingStations:   count,
		NearestDistanceKM:  nearest,
		CompetitionScore:   score,
		MarketSaturation:   saturation,
		MarketOpportunity:  opportunity,
		FuelStationsNearby: fuelCount,
		Stations:           stations,
		DataSource:         types.DataSourceRealAPIs,
	}, nil
}

// competitorFallback assumes a lightly contested regional market.
func competitorFallback(radiusKM int) *types.CompetitorData {
	nearest := 5.2
	return &types.CompetitorData{
		RadiusKM:          radiusKM,
		ExistingStations:  3,
		NearestDistanceKM: &nearest,
		MarketSaturation:  "Medium",
		CompetitionScore:  6.0,
		MarketOpportunity: "Medium",
		DataSource:        types.DataSourceFallback,
	}
}
