package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"voltsite/internal/types"
)

// OverpassClient implements RegionDataSource against the Overpass API.
// Queries are Overpass QL documents built by the calling stage; the client
// only handles transport, decoding, and center resolution for ways.
type OverpassClient struct {
	base     *BaseClient
	endpoint string
	logger   *slog.Logger
}

// NewOverpassClient creates a region-data client for the given interpreter
// endpoint (e.g., https://overpass-api.de/api/interpreter).
func NewOverpassClient(httpClient *http.Client, endpoint, userAgent string, logger *slog.Logger) *OverpassClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverpassClient{
		base:     NewBaseClient(httpClient, "overpass", DefaultRetryPolicy(), userAgent),
		endpoint: endpoint,
		logger:   logger,
	}
}

// overpassElement is one element of the Overpass JSON response.
type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Center   *LatLon           `json:"center"`
	Geometry []LatLon          `json:"geometry"`
	Tags     map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// Query posts the Overpass QL document and returns the decoded features.
// Way elements have their position resolved from the center field when
// present, else from the first geometry vertex. An empty element list is a
// valid result, not an error.
func (c *OverpassClient) Query(ctx context.Context, ql string) ([]Feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(ql))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building overpass request", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamOverpass,
			fmt.Sprintf("overpass returned %d", resp.StatusCode), nil)
	}

	var decoded overpassResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOverpass, "malformed overpass response", err)
	}

	features := make([]Feature, 0, len(decoded.Elements))
	for _, el := range decoded.Elements {
		f := Feature{
			Type:     el.Type,
			ID:       el.ID,
			Tags:     el.Tags,
			Lat:      el.Lat,
			Lon:      el.Lon,
			Geometry: el.Geometry,
		}
		if el.Type == "way" {
			switch {
			case el.Center != nil:
				f.Lat, f.Lon = el.Center.Lat, el.Center.Lon
			case len(el.Geometry) > 0:
				f.Lat, f.Lon = el.Geometry[0].Lat, el.Geometry[0].Lon
			}
		}
		features = append(features, f)
	}

	return features, nil
}
