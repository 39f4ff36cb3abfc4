package stages

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/geo"
	"voltsite/internal/types"
)

// Road-class weights for the traffic score. Higher classes carry more
// vehicles per segment.
var trafficWeights = map[string]int{
	"motorway":    10,
	"trunk":       9,
	"primary":     8,
	"secondary":   6,
	"tertiary":    4,
	"residential": 2,
	"service":     1,
}

// majorRoadClasses are the road classes considered when identifying
// high-traffic zones near a candidate area.
var majorRoadClasses = map[string]bool{
	"motorway": true, "trunk": true, "primary": true, "secondary": true,
}

// TrafficStage analyzes the road network around the seed location and scores
// traffic flow on a 0-10 scale.
type TrafficStage struct {
	lookup   external.GeoLookup
	region   external.RegionDataSource
	cfg      config.RegionConfig
	profiles Profiles
	logger   *slog.Logger
}

// NewTrafficStage creates the traffic analysis stage.
func NewTrafficStage(
	lookup external.GeoLookup,
	region external.RegionDataSource,
	cfg config.RegionConfig,
	profiles Profiles,
	logger *slog.Logger,
) *TrafficStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrafficStage{
		lookup:   lookup,
		region:   region,
		cfg:      cfg,
		profiles: profiles,
		logger:   logger,
	}
}

// Name implements pipeline.Stage.
func (s *TrafficStage) Name() string { return "traffic_analysis" }

// Run implements pipeline.Stage. A geocoding miss or road-network query
// failure degrades to the location-specific fallback; the stage never returns
// an error for those paths.
func (s *TrafficStage) Run(ctx context.Context, state *types.WorkflowState) error {
	if !validateState(s.Name(), state) {
		return nil
	}

	coords := geocodeSeed(ctx, s.lookup, s.cfg, state.Location)
	if coords == nil {
		s.logger.WarnContext(ctx, "geocoding failed, using location-specific fallback",
			"location", state.Location)
		state.AddError(fmt.Sprintf("could not geocode location: %s", state.Location))
		state.Traffic = s.fallback(state.Location, nil)
		return nil
	}

	data, err := s.analyze(ctx, coords, state.RadiusKM, state.Location)
	if err != nil {
		s.logger.WarnContext(ctx, "road network query failed, using location-specific fallback",
			"location", state.Location, "error", err)
		state.Traffic = s.fallback(state.Location, coords)
		return nil
	}

	state.Traffic = data
	return nil
}

// roadsQuery selects all drivable highway ways around a point. Foot and cycle
// paths are excluded; the radius is capped at 25km to keep the query within
// the interpreter's limits.
func roadsQuery(lat, lon float64, radiusKM int) string {
	radiusM := radiusKM * 1000
	if radiusM > 25000 {
		radiusM = 25000
	}
	return fmt.Sprintf(`[out:json][timeout:10];
(
  way["highway"]["highway"!="footway"]["highway"!="path"]["highway"!="cycleway"](around:%d,%f,%f);
);
out geom;`, radiusM, lat, lon)
}

func (s *TrafficStage) analyze(ctx context.Context, coords *types.Coordinates, radiusKM int, location string) (*types.TrafficData, error) {
	features, err := s.region.Query(ctx, roadsQuery(coords.Latitude, coords.Longitude, radiusKM))
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no road data found around %s", location)
	}

	highwayTypes := make(map[string]int)
	totalLength := 0.0
	for _, f := range features {
		if f.Type != "way" {
			continue
		}
		class := f.Tags["highway"]
		if class == "" {
			class = "unknown"
		}
		highwayTypes[class]++
		// Rough length proxy: ~100m per geometry vertex.
		if len(f.Geometry) > 1 {
			totalLength += float64(len(f.Geometry)) * 0.1
		}
	}
	roadDensity := 0.0
	if totalLength > 0 {
		roadDensity = totalLength / 100
	}

	weighted := 0
	for class, count := range highwayTypes {
		w, ok := trafficWeights[class]
		if !ok {
			w = 1
		}
		weighted += count * w
	}

	baseScore := 3.0
	if weighted > 0 {
		baseScore = math.Min(float64(weighted)/50, 10)
	}

	boost := s.locationBoost(location)
	finalScore := math.Min(baseScore+boost, 10.0)

	return &types.TrafficData{
		Coordinates:           coords,
		RadiusKM:              radiusKM,
		TrafficScore:          round1(finalScore),
		RoadDensityScore:      math.Min(roadDensity, 10),
		EstimatedDailyTraffic: int(finalScore * 5000),
		PeakHours:             []string{"08:00-10:00", "18:00-20:00"},
		FlowRating:            flowRating(finalScore),
		LocationBoost:         boost,
		HighwayTypes:          highwayTypes,
		TotalRoads:            len(features),
		TotalLengthKM:         totalLength,
		RoadDensity:           roadDensity,
		HighTrafficZones:      highTrafficZones(features, coords),
		DataSource:            types.DataSourceRealAPIs,
	}, nil
}

// locationBoost adds a fixed bonus when the seed name contains a known city
// token. The token lists are part of the curated Profiles data set.
func (s *TrafficStage) locationBoost(location string) float64 {
	lower := strings.ToLower(location)
	for _, city := range s.profiles.PrimaryBoost {
		if strings.Contains(lower, city) {
			return 2.0
		}
	}
	for _, city := range s.profiles.SecondaryBoost {
		if strings.Contains(lower, city) {
			return 1.0
		}
	}
	for _, city := range s.profiles.TertiaryBoost {
		if strings.Contains(lower, city) {
			return 0.5
		}
	}
	return 0.0
}

func flowRating(score float64) string {
	switch {
	case score > 7:
		return "High"
	case score > 4:
		return "Medium"
	default:
		return "Low"
	}
}

// highTrafficZones picks up to 10 major-road segments within 20km of the
// center as notable traffic hotspots.
func highTrafficZones(features []external.Feature, center *types.Coordinates) []types.TrafficZone {
	var zones []types.TrafficZone
	limit := len(features)
	if limit > 10 {
		limit = 10
	}
	for _, f := range features[:limit] {
		if f.Type != "way" || !majorRoadClasses[f.Tags["highway"]] {
			continue
		}
		if len(f.Geometry) == 0 {
			continue
		}
		p := f.Geometry[0]
		dist := geo.HaversineKM(center.Latitude, center.Longitude, p.Lat, p.Lon)
		if dist > 20 {
			continue
		}
		name := f.Tags["name"]
		if name == "" {
			class := f.Tags["highway"]
			name = strings.ToUpper(class[:1]) + class[1:] + " Road"
		}
		zones = append(zones, types.TrafficZone{
			Name:        name,
			RoadClass:   f.Tags["highway"],
			DistanceKM:  round1(dist),
			Coordinates: types.Coordinates{Latitude: p.Lat, Longitude: p.Lon},
		})
	}
	return zones
}

// fallback builds the deterministic location-specific payload. Known towns in
// the Profiles data set take precedence; unknown names get a stable
// pseudo-score derived from a hash of the lowercased location string, so
// repeated calls for the same unresolved name return identical numbers.
func (s *TrafficStage) fallback(location string, coords *types.Coordinates) *types.TrafficData {
	lower := strings.ToLower(strings.TrimSpace(location))

	var profile *CityProfile
	for _, entry := range s.profiles.Cities {
		if strings.Contains(lower, entry.Token) {
			cp := entry.Profile
			profile = &cp
			break
		}
	}

	if profile == nil {
		h := nameHash(lower)
		score := 4.0 + float64(h%40)/10
		profile = &CityProfile{
			TrafficScore:    score,
			DailyTraffic:    int(15000 + h%35000),
			RoadDensity:     score * 0.7,
			Lat:             10.0 + float64(h%400)/100,
			Lon:             77.0 + float64(h%300)/100,
			Characteristics: "Regional location with varied traffic patterns",
		}
	}

	final := &types.Coordinates{Latitude: profile.Lat, Longitude: profile.Lon}
	if coords != nil {
		final = coords
	}

	rating := "Low"
	switch {
	case profile.TrafficScore > 7:
		rating = "High"
	case profile.TrafficScore > 5:
		rating = "Medium"
	}

	s.logger.Info("using location-specific traffic profile",
		"location", location,
		"traffic_score", profile.TrafficScore,
	)

	return &types.TrafficData{
		Coordinates:           final,
		RadiusKM:              50,
		TrafficScore:          profile.TrafficScore,
		RoadDensityScore:      profile.RoadDensity,
		EstimatedDailyTraffic: profile.DailyTraffic,
		PeakHours:             []string{"08:00-10:00", "18:00-20:00"},
		FlowRating:            rating,
		HighwayTypes:          syntheticRoadTypes(profile.TrafficScore),
		TotalRoads:            int(profile.RoadDensity * 10),
		TotalLengthKM:         float64(profile.DailyTraffic) / 300,
		RoadDensity:           profile.RoadDensity,
		HighTrafficZones: []types.TrafficZone{{
			Name:        fmt.Sprintf("Major Highway near %s", location),
			RoadClass:   "primary",
			DistanceKM:  1.5,
			Coordinates: *final,
		}},
		DataSource:  types.DataSourceLocationFallback,
		ProfileNote: profile.Characteristics,
	}
}

// nameHash derives a stable 32-bit value from a location string. MD5 keeps
// the distribution flat; stability is the only property that matters here.
func nameHash(lower string) uint64 {
	sum := md5.Sum([]byte(lower))
	v, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	return v
}

// syntheticRoadTypes produces a plausible road-class histogram for a given
// traffic score, used only in fallback payloads.
func syntheticRoadTypes(score float64) map[string]int {
	switch {
	case score >= 8:
		return map[string]int{"motorway": 3, "trunk": 5, "primary": 8, "secondary": 12, "tertiary": 15, "residential": 25}
	case score >= 6:
		return map[string]int{"motorway": 1, "trunk": 3, "primary": 5, "secondary": 8, "tertiary": 12, "residential": 20}
	case score >= 4:
		return map[string]int{"trunk": 1, "primary": 2, "secondary": 5, "tertiary": 8, "residential": 15}
	default:
		return map[string]int{"primary": 1, "secondary": 3, "tertiary": 5, "residential": 10}
	}
}
