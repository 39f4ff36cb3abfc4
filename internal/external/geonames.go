package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"voltsite/internal/types"
)

// GeoNamesClient implements PopulationSource against the GeoNames
// findNearbyPlaceName API.
type GeoNamesClient struct {
	base     *BaseClient
	baseURL  string
	username string
	logger   *slog.Logger
}

// NewGeoNamesClient creates a population-data client. The username is the
// GeoNames account the free tier is keyed on.
func NewGeoNamesClient(httpClient *http.Client, baseURL, username, userAgent string, logger *slog.Logger) *GeoNamesClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoNamesClient{
		base:     NewBaseClient(httpClient, "geonames", DefaultRetryPolicy(), userAgent),
		baseURL:  baseURL,
		username: username,
		logger:   logger,
	}
}

type geoNamesPlace struct {
	Name       string `json:"name"`
	Population int64  `json:"population"`
	AdminName1 string `json:"adminName1"`
}

type geoNamesResponse struct {
	Geonames []geoNamesPlace `json:"geonames"`
}

// NearbyPlaces returns populated places within radiusKM of the point, at most
// maxRows of them. An empty list is a valid result.
func (c *GeoNamesClient) NearbyPlaces(ctx context.Context, lat, lon float64, radiusKM, maxRows int) ([]Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lng", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("radius", strconv.Itoa(radiusKM))
	params.Set("maxRows", strconv.Itoa(maxRows))
	params.Set("username", c.username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/findNearbyPlaceNameJSON?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building geonames request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeoNames,
			fmt.Sprintf("geonames returned %d", resp.StatusCode), nil)
	}

	var decoded geoNamesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeoNames, "malformed geonames response", err)
	}

	places := make([]Place, 0, len(decoded.Geonames))
	for _, p := range decoded.Geonames {
		places = append(places, Place{
			Name:       p.Name,
			Population: p.Population,
			AdminName:  p.AdminName1,
		})
	}
	return places, nil
}
