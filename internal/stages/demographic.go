package stages

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/types"
)

// DemographicStage estimates market readiness from population figures,
// development indicators, and economic activity around the seed location.
type DemographicStage struct {
	lookup     external.GeoLookup
	region     external.RegionDataSource
	population external.PopulationSource
	cfg        config.RegionConfig
	fanOut     int
	logger     *slog.Logger
}

// NewDemographicStage creates the demographic analysis stage.
func NewDemographicStage(
	lookup external.GeoLookup,
	region external.RegionDataSource,
	population external.PopulationSource,
	cfg config.RegionConfig,
	fanOut int,
	logger *slog.Logger,
) *DemographicStage {
	if fanOut <= 0 {
		fanOut = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DemographicStage{
		lookup:     lookup,
		region:     region,
		population: population,
		cfg:        cfg,
		fanOut:     fanOut,
		logger:     logger,
	}
}

// Name implements pipeline.Stage.
func (s *DemographicStage) Name() string { return "demographic_analysis" }

// Run implements pipeline.Stage. Each of the three sub-fetches degrades to
// its own default on failure; only a geocoding miss produces the full fixed
// fallback payload.
func (s *DemographicStage) Run(ctx context.Context, state *types.WorkflowState) error {
	if !validateState(s.Name(), state) {
		return nil
	}

	coords := geocodeSeed(ctx, s.lookup, s.cfg, state.Location)
	if coords == nil {
		state.AddError(fmt.Sprintf("demographic analysis: could not geocode location: %s", state.Location))
		state.Demographic = demographicFallback()
		return nil
	}

	var (
		population  int64
		development float64
		econ        economicIndicators
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)

	g.Go(func() error {
		population = s.fetchPopulation(gctx, coords)
		return nil
	})
	g.Go(func() error {
		development = s.fetchDevelopmentIndex(gctx, coords)
		return nil
	})
	g.Go(func() error {
		econ = s.fetchEconomicActivity(gctx, coords)
		return nil
	})
	_ = g.Wait()

	state.Demographic = deriveDemographicData(coords, population, development, econ)
	return nil
}

type economicIndicators struct {
	Score       float64
	EVReadiness float64
}

func (s *DemographicStage) fetchPopulation(ctx context.Context, coords *types.Coordinates) int64 {
	const defaultPopulation = 50000

	places, err := s.population.NearbyPlaces(ctx, coords.Latitude, coords.Longitude, 30, 10)
	if err != nil || len(places) == 0 {
		return defaultPopulation
	}
	var total int64
	for _, p := range places {
		total += p.Population
	}
	if total == 0 {
		return defaultPopulation
	}
	return total
}

func amenitiesQuery(lat, lon float64) string {
	return fmt.Sprintf(`[out:json][timeout:15];
(
  node["amenity"~"bank|atm|hospital|clinic|school|university|restaurant"](around:15000,%f,%f);
  node["shop"~"mall|car|car_parts|fuel"](around:15000,%f,%f);
  way["shop"="mall"](around:15000,%f,%f);
);
out center;`, lat, lon, lat, lon, lat, lon)
}

// fetchDevelopmentIndex scores the area's built-up amenity mix. Banking and
// healthcare presence weigh heaviest; the result is on the same 0-10 scale as
// the other indices.
func (s *DemographicStage) fetchDevelopmentIndex(ctx context.Context, coords *types.Coordinates) float64 {
	const defaultIndex = 5.0

	features, err := s.region.Query(ctx, amenitiesQuery(coords.Latitude, coords.Longitude))
	if err != nil {
		return defaultIndex
	}

	banks := countTagged(features, "amenity", "bank", "atm")
	health := countTagged(features, "amenity", "hospital", "clinic")
	education := countTagged(features, "amenity", "school", "university")
	retail := countTagged(features, "shop", "mall") + countTagged(features, "amenity", "restaurant")
	auto := countTagged(features, "shop", "car", "car_parts", "fuel")

	index := (float64(banks)*2 + float64(health)*2 + float64(education)*1.5 +
		float64(retail) + float64(auto)*1.5) / 10
	return math.Min(index, 10)
}

func economicQuery(lat, lon float64) string {
	return fmt.Sprintf(`[out:json][timeout:15];
(
  way["highway"~"motorway|trunk|primary"](around:10000,%f,%f);
  node["public_transport"~"station|stop_position"](around:10000,%f,%f);
  way["landuse"~"commercial|industrial"](around:15000,%f,%f);
  node["amenity"~"fuel|charging_station"](around:10000,%f,%f);
);
out center;`, lat, lon, lat, lon, lat, lon, lat, lon)
}

func (s *DemographicStage) fetchEconomicActivity(ctx context.Context, coords *types.Coordinates) economicIndicators {
	defaults := economicIndicators{Score: 5.0, EVReadiness: 3.0}

	features, err := s.region.Query(ctx, economicQuery(coords.Latitude, coords.Longitude))
	if err != nil {
		return defaults
	}

	majorRoads := countTagged(features, "highway", "motorway", "trunk", "primary")
	transit := countTagged(features, "public_transport", "station", "stop_position")
	commercial := countTagged(features, "landuse", "commercial")
	industrial := countTagged(features, "landuse", "industrial")
	fuel := countTagged(features, "amenity", "fuel")
	chargers := countTagged(features, "amenity", "charging_station")

	score := (float64(majorRoads)*1.5 + float64(transit)*2 + float64(commercial)*2 +
		float64(industrial)*1.5 + float64(fuel)*1.2) / 10

	return economicIndicators{
		Score:       math.Min(score, 10),
		EVReadiness: math.Min(float64(fuel)*0.3+float64(chargers)*2+float64(majorRoads)*0.2, 10),
	}
}

func deriveDemographicData(coords *types.Coordinates, population int64, development float64, econ economicIndicators) *types.DemographicData {
	density := float64(population) / (math.Pi * 100)

	adoption := clamp(0.02*(development/5)*(econ.Score/5), 0, 0.25)

	incomeLevel, incomeScore := "Lower", 4.0
	switch {
	case development >= 8 && econ.Score >= 7:
		incomeLevel, incomeScore = "Upper Middle", 8.5
	case development >= 6 && econ.Score >= 5:
		incomeLevel, incomeScore = "Middle", 7.0
	case development >= 4:
		incomeLevel, incomeScore = "Lower Middle", 5.5
	}

	marketSize := "Small"
	switch {
	case population > 500000:
		marketSize = "Large"
	case population > 100000:
		marketSize = "Medium"
	}

	score := clamp(
		math.Min(density/1000, 10)*0.3+development*0.3+econ.Score*0.2+adoption*100*0.2,
		0, 10,
	)

	potential := "Low"
	switch {
	case score >= 7:
		potential = "High"
	case score >= 5:
		potential = "Medium"
	}

	return &types.DemographicData{
		Coordinates:       coords,
		Population:        population,
		PopulationDensity: round1(density),
		DevelopmentIndex:  round1(development),
		EconomicScore:     round1(econ.Score),
		EVAdoptionRate:    math.Round(adoption*1000) / 1000,
		EstimatedEVCount:  int64(float64(population) * adoption),
		IncomeLevel:       incomeLevel,
		IncomeScore:       incomeScore,
		MarketSize:        marketSize,
		DemographicScore:  round1(score),
		EVReadiness:       round1(econ.EVReadiness),
		MarketPotential:   potential,
		DataSource:        types.DataSourceRealAPIs,
	}
}

// demographicFallback describes a mid-size regional market.
func demographicFallback() *types.DemographicData {
	return &types.DemographicData{
		Population:        100000,
		PopulationDensity: 500,
		DevelopmentIndex:  5.0,
		EconomicScore:     5.0,
		EVAdoptionRate:    0.05,
		EstimatedEVCount:  5000,
		IncomeLevel:       "Middle",
		IncomeScore:       7.0,
		MarketSize:        "Medium",
		DemographicScore:  6.0,
		EVReadiness:       3.0,
		MarketPotential:   "Medium",
		DataSource:        types.DataSourceFallback,
	}
}
