package external

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"voltsite/internal/types"
)

func TestGeoNamesNearbyPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/findNearbyPlaceNameJSON" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("username"); got != "voltsite" {
			t.Errorf("username = %q, want voltsite", got)
		}
		if got := q.Get("radius"); got != "50" {
			t.Errorf("radius = %q, want 50", got)
		}
		if got := q.Get("maxRows"); got != "10" {
			t.Errorf("maxRows = %q, want 10", got)
		}
		w.Write([]byte(`{"geonames":[
			{"name":"Salem","population":829267,"adminName1":"Tamil Nadu"},
			{"name":"Attur","population":64227,"adminName1":"Tamil Nadu"}
		]}`))
	}))
	defer srv.Close()

	c := NewGeoNamesClient(srv.Client(), srv.URL, "voltsite", "voltsite-test/1.0", slog.New(slog.DiscardHandler))

	places, err := c.NearbyPlaces(context.Background(), 11.6643, 78.1460, 50, 10)
	if err != nil {
		t.Fatalf("NearbyPlaces returned error: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("got %d places, want 2", len(places))
	}
	if places[0].Name != "Salem" || places[0].Population != 829267 {
		t.Errorf("first place = %+v", places[0])
	}
	if places[1].AdminName != "Tamil Nadu" {
		t.Errorf("second place admin = %q", places[1].AdminName)
	}
}

func TestGeoNamesNearbyPlaces_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"geonames":[]}`))
	}))
	defer srv.Close()

	c := NewGeoNamesClient(srv.Client(), srv.URL, "voltsite", "voltsite-test/1.0", slog.New(slog.DiscardHandler))

	places, err := c.NearbyPlaces(context.Background(), 11.6643, 78.1460, 50, 10)
	if err != nil {
		t.Fatalf("empty result must not be an error, got %v", err)
	}
	if len(places) != 0 {
		t.Errorf("got %d places, want 0", len(places))
	}
}

func TestGeoNamesNearbyPlaces_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGeoNamesClient(srv.Client(), srv.URL, "voltsite", "voltsite-test/1.0", slog.New(slog.DiscardHandler))

	_, err := c.NearbyPlaces(context.Background(), 11.6643, 78.1460, 50, 10)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamGeoNames {
		t.Errorf("expected geonames AppError, got %v", err)
	}
}
