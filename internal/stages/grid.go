package stages

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/types"
)

// GridStage evaluates electrical infrastructure around the seed location:
// substations, transmission lines, estimated load from population and
// industrial activity, and the resulting capacity headroom.
type GridStage struct {
	lookup     external.GeoLookup
	region     external.RegionDataSource
	population external.PopulationSource
	cfg        config.RegionConfig
	fanOut     int
	logger     *slog.Logger
}

// NewGridStage creates the grid analysis stage. fanOut bounds the number of
// concurrent upstream fetches.
func NewGridStage(
	lookup external.GeoLookup,
	region external.RegionDataSource,
	population external.PopulationSource,
	cfg config.RegionConfig,
	fanOut int,
	logger *slog.Logger,
) *GridStage {
	if fanOut <= 0 {
		fanOut = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GridStage{
		lookup:     lookup,
		region:     region,
		population: population,
		cfg:        cfg,
		fanOut:     fanOut,
		logger:     logger,
	}
}

// Name implements pipeline.Stage.
func (s *GridStage) Name() string { return "grid_analysis" }

// Run implements pipeline.Stage. The power-infrastructure query is the
// primary input: if it fails the whole payload degrades to the fixed
// fallback. Population and industrial fetches degrade individually to
// defaults without losing the real_apis tag.
func (s *GridStage) Run(ctx context.Context, state *types.WorkflowState) error {
	if !validateState(s.Name(), state) {
		return nil
	}

	coords := geocodeSeed(ctx, s.lookup, s.cfg, state.Location)
	if coords == nil {
		state.AddError(fmt.Sprintf("grid analysis: could not geocode location: %s", state.Location))
		state.Grid = gridFallback()
		return nil
	}

	var (
		infra      powerInfra
		population int64
		industrial industrialActivity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)

	g.Go(func() error {
		var err error
		infra, err = s.fetchPowerInfra(gctx, coords)
		return err
	})
	g.Go(func() error {
		population = s.fetchPopulation(gctx, coords)
		return nil
	})
	g.Go(func() error {
		industrial = s.fetchIndustrialActivity(gctx, coords)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "power infrastructure query failed, using fallback",
			"location", state.Location, "error", err)
		state.AddError(fmt.Sprintf("grid analysis degraded: %v", err))
		state.Grid = gridFallback()
		return nil
	}

	state.Grid = deriveGridData(coords, infra, population, industrial)
	return nil
}

type powerInfra struct {
	Substations       int
	HighVoltage       int
	PowerLines        int
	ChargingStations  int
}

type industrialActivity struct {
	Industrial int
	Commercial int
	Fuel       int
	MajorRoads int
}

func powerInfraQuery(lat, lon float64) string {
	return fmt.Sprintf(`[out:json][timeout:15];
(
  node["power"~"substation|generator|plant"](around:20000,%f,%f);
  way["power"~"substation|generator|plant"](around:20000,%f,%f);
  way["power"~"line|cable"](around:20000,%f,%f);
  node["amenity"="charging_station"](around:10000,%f,%f);
);
out center;`, lat, lon, lat, lon, lat, lon, lat, lon)
}

func industrialQuery(lat, lon float64) string {
	return fmt.Sprintf(`[out:json][timeout:15];
(
  way["landuse"~"industrial|commercial"](around:15000,%f,%f);
  node["amenity"~"fuel|restaurant|hospital"](around:10000,%f,%f);
  way["highway"~"motorway|trunk|primary"](around:10000,%f,%f);
);
out center;`, lat, lon, lat, lon, lat, lon)
}

func (s *GridStage) fetchPowerInfra(ctx context.Context, coords *types.Coordinates) (powerInfra, error) {
	features, err := s.region.Query(ctx, powerInfraQuery(coords.Latitude, coords.Longitude))
	if err != nil {
		return powerInfra{}, err
	}

	var infra powerInfra
	for _, f := range features {
		switch f.Tags["power"] {
		case "substation", "generator", "plant":
			infra.Substations++
			if isHighVoltage(f.Tags["voltage"]) {
				infra.HighVoltage++
			}
		case "line", "cable":
			infra.PowerLines++
		}
		if f.Tags["amenity"] == "charging_station" {
			infra.ChargingStations++
		}
	}
	return infra, nil
}

// isHighVoltage parses OSM voltage tags, which show up as volts ("110000"),
// kilovolts ("110"), or lists ("230000;110000"), and reports whether any
// value is at or above 110kV.
func isHighVoltage(tag string) bool {
	if tag == "" {
		return false
	}
	for _, part := range strings.FieldsFunc(tag, func(r rune) bool { return r == ';' || r == ',' }) {
		digits := strings.Builder{}
		for _, r := range part {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		v, err := strconv.ParseFloat(digits.String(), 64)
		if err != nil {
			continue
		}
		if v >= 1000 {
			v /= 1000
		}
		if v >= 110 {
			return true
		}
	}
	return false
}

func (s *GridStage) fetchPopulation(ctx context.Context, coords *types.Coordinates) int64 {
	const defaultPopulation = 100000

	places, err := s.population.NearbyPlaces(ctx, coords.Latitude, coords.Longitude, 50, 5)
	if err != nil || len(places) == 0 {
		return defaultPopulation
	}
	var largest int64
	for _, p := range places {
		if p.Population > largest {
			largest = p.Population
		}
	}
	if largest == 0 {
		return defaultPopulation
	}
	return largest
}

func (s *GridStage) fetchIndustrialActivity(ctx context.Context, coords *types.Coordinates) industrialActivity {
	features, err := s.region.Query(ctx, industrialQuery(coords.Latitude, coords.Longitude))
	if err != nil {
		return industrialActivity{}
	}

	var act industrialActivity
	for _, f := range features {
		switch f.Tags["landuse"] {
		case "industrial":
			act.Industrial++
		case "commercial":
			act.Commercial++
		}
		switch f.Tags["amenity"] {
		case "fuel":
			act.Fuel++
		case "restaurant", "hospital":
			act.Commercial++
		}
		switch f.Tags["highway"] {
		case "motorway", "trunk", "primary":
			act.MajorRoads++
		}
	}
	return act
}

// deriveGridData turns raw feature counts into the scored payload. The
// capacity identity AvailableCapacityMW = CapacityMW * (1 - LoadFactor) holds
// for every produced payload.
func deriveGridData(coords *types.Coordinates, infra powerInfra, population int64, industrial industrialActivity) *types.GridData {
	subs := float64(infra.Substations)
	hv := float64(infra.HighVoltage)
	lines := float64(infra.PowerLines)

	infraDensity := subs + lines*0.1

	connectivity := "Low"
	switch {
	case infra.HighVoltage > 2:
		connectivity = "High"
	case infra.HighVoltage > 0:
		connectivity = "Medium"
	}

	infraScore := math.Min(subs*1.5+hv*3+infraDensity*0.1, 10)
	capacity := math.Max(subs*50+hv*200, 100)

	industrialScore := float64(industrial.Industrial)*2 +
		float64(industrial.Commercial) +
		float64(industrial.Fuel)*0.5

	load := float64(population)*0.001 + industrialScore*50
	loadFactor := math.Min(load/capacity, 0.95)
	available := capacity * (1 - loadFactor)

	reliability := math.Min(subs*0.8+lines*0.1+hv*1.5, 10)
	gridScore := infraScore*0.4 + reliability*0.4 + (10-loadFactor*10)*0.2

	stress := "High"
	switch {
	case loadFactor < 0.7:
		stress = "Low"
	case loadFactor < 0.85:
		stress = "Medium"
	}

	quality := "Poor"
	switch {
	case infraScore >= 8:
		quality = "Excellent"
	case infraScore >= 6:
		quality = "Good"
	case infraScore >= 4:
		quality = "Fair"
	}

	return &types.GridData{
		Coordinates:            coords,
		SubstationCount:        infra.Substations,
		HighVoltageSubstations: infra.HighVoltage,
		PowerLineCount:         infra.PowerLines,
		ExistingChargers:       infra.ChargingStations,
		InfrastructureDensity:  round2(infraDensity),
		GridConnectivity:       connectivity,
		Population:             population,
		GridLoadEstimate:       round1(load),
		IndustrialAreas:        industrial.Industrial,
		CommercialAreas:        industrial.Commercial,
		FuelStations:           industrial.Fuel,
		MajorRoads:             industrial.MajorRoads,
		IndustrialScore:        round1(industrialScore),
		CapacityMW:             round1(capacity),
		AvailableCapacityMW:    round1(available),
		LoadFactor:             round2(loadFactor),
		ReliabilityScore:       round1(reliability),
		InfrastructureScore:    round1(infraScore),
		GridScore:              round1(gridScore),
		CapacitySufficient:     available > 20,
		StressLevel:            stress,
		InfrastructureQuality:  quality,
		DataSource:             types.DataSourceRealAPIs,
	}
}

// gridFallback is the fixed payload used when the primary infrastructure
// query cannot be served. The numbers describe a moderately provisioned
// regional grid.
func gridFallback() *types.GridData {
	return &types.GridData{
		CapacityMW:            500,
		AvailableCapacityMW:   150,
		LoadFactor:            0.70,
		ReliabilityScore:      7.0,
		GridScore:             7.0,
		CapacitySufficient:    true,
		GridConnectivity:      "Medium",
		StressLevel:           "Medium",
		InfrastructureQuality: "Fair",
		DataSource:            types.DataSourceFallback,
	}
}
