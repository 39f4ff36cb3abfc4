package external

import (
	"context"

	"voltsite/internal/types"
)

// GeoLookup resolves free-text place names to coordinates and coordinates
// back to human-readable area labels. Every analysis stage depends on it.
type GeoLookup interface {
	// Geocode resolves a free-text query to coordinates. A nil result with a
	// nil error means the query matched nothing; errors are reserved for
	// transport-level failures.
	Geocode(ctx context.Context, query string) (*types.Coordinates, error)

	// Reverse resolves coordinates to an area label (suburb, village, town).
	// Returns a generic placeholder when no meaningful label is available.
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Feature is one geographic element returned by a region-data query: a road,
// substation, amenity, or land-use polygon with its OSM tags.
type Feature struct {
	Type     string            // "node" or "way"
	ID       int64
	Tags     map[string]string
	Lat, Lon float64   // node position, or way center when resolved
	Geometry []LatLon  // way geometry when requested
}

// LatLon is one vertex of a way geometry.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RegionDataSource queries geographic features within a radius of a point.
// Implementations must tolerate empty results; any non-2xx response or
// malformed body is reported as an error so the calling stage can fall back.
type RegionDataSource interface {
	Query(ctx context.Context, ql string) ([]Feature, error)
}

// Place is a populated place returned by the population-data provider.
type Place struct {
	Name       string
	Population int64
	AdminName  string
}

// PopulationSource looks up populated places near a point.
type PopulationSource interface {
	NearbyPlaces(ctx context.Context, lat, lon float64, radiusKM, maxRows int) ([]Place, error)
}
