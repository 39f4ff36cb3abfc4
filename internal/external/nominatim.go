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

// GenericAreaLabel is returned by Reverse when the geocoder responds but no
// meaningful address component is available.
const GenericAreaLabel = "Strategic Area"

// NominatimClient implements GeoLookup against the OSM Nominatim API.
type NominatimClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewNominatimClient creates a geocoding client for the given base URL
// (e.g., https://nominatim.openstreetmap.org).
func NewNominatimClient(httpClient *http.Client, baseURL, userAgent string, logger *slog.Logger) *NominatimClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NominatimClient{
		base:    NewBaseClient(httpClient, "nominatim", DefaultRetryPolicy(), userAgent),
		baseURL: baseURL,
		logger:  logger,
	}
}

// nominatimResult is the subset of the Nominatim search response we consume.
type nominatimResult struct {
	Lat     string                 `json:"lat"`
	Lon     string                 `json:"lon"`
	Address map[string]string      `json:"address"`
	Extra   map[string]interface{} `json:"-"`
}

// Geocode resolves a free-text query to coordinates. Returns (nil, nil) when
// the geocoder matches nothing; errors are transport-level only.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (*types.Coordinates, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building geocode request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeGeocodeFailed,
			fmt.Sprintf("geocoder returned %d", resp.StatusCode), nil)
	}

	var results []nominatimResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&results); err != nil {
		return nil, types.NewAppError(types.ErrCodeGeocodeFailed, "malformed geocoder response", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return nil, types.NewAppError(types.ErrCodeGeocodeFailed, "geocoder returned non-numeric coordinates", nil)
	}

	return &types.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// reverseResult is the subset of the Nominatim reverse response we consume.
type reverseResult struct {
	Address map[string]string `json:"address"`
}

// areaLabelPreference is the ordered list of address components tried when
// deriving an area label from a reverse-geocode result.
var areaLabelPreference = []string{
	"suburb", "neighbourhood", "village", "town", "city_district", "city",
}

// Reverse resolves coordinates to an area label, preferring fine-grained
// components (suburb, neighbourhood) over coarse ones. Returns
// GenericAreaLabel when the response carries no usable component.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "building reverse request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(types.ErrCodeGeocodeFailed,
			fmt.Sprintf("reverse geocoder returned %d", resp.StatusCode), nil)
	}

	var result reverseResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", types.NewAppError(types.ErrCodeGeocodeFailed, "malformed reverse response", err)
	}

	for _, key := range areaLabelPreference {
		if v := result.Address[key]; v != "" {
			return v, nil
		}
	}
	return GenericAreaLabel, nil
}
