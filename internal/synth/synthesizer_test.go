package synth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"voltsite/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeReasoner struct {
	text string
	err  error
}

func (f *fakeReasoner) SiteReasoning(context.Context, types.LocationInfo, types.SiteScores) (string, error) {
	return f.text, f.err
}

func newTestState() *types.WorkflowState {
	return &types.WorkflowState{
		Location:           "Salem",
		RadiusKM:           50,
		Budget:             5000000,
		StationType:        types.StationFast,
		MaxRecommendations: 5,
	}
}

func TestSynthesizer_Name(t *testing.T) {
	s := NewSynthesizer(nil, nil, testRegion(), false, nil)
	if s.Name() != "recommendation_synthesis" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestSynthesizer_MissingLocation(t *testing.T) {
	s := NewSynthesizer(&fakeGeoLookup{}, nil, testRegion(), false, discardLogger())
	state := &types.WorkflowState{RadiusKM: 50}
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %d", len(state.Recommendations))
	}
	if len(state.Errors) != 1 {
		t.Errorf("expected one diagnostic, got %v", state.Errors)
	}
}

func TestSynthesizer_GeocodeMissEmitsFallback(t *testing.T) {
	lookup := &fakeGeoLookup{coords: nil}
	s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())

	state := newTestState()
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(state.Recommendations) != 1 {
		t.Fatalf("recommendations = %d, want the single fallback", len(state.Recommendations))
	}
	rec := state.Recommendations[0]
	if rec.Location.Name != "Strategic Location near Salem" {
		t.Errorf("fallback name = %q", rec.Location.Name)
	}
	if rec.Location.Coordinates.Latitude != 11.1271 || rec.Location.Coordinates.Longitude != 78.6569 {
		t.Errorf("fallback coordinates = %+v, want the regional center", rec.Location.Coordinates)
	}
	if rec.Scores.Overall != 7.7 {
		t.Errorf("fallback overall = %v, want 7.7", rec.Scores.Overall)
	}
	if rec.Confidence != 0.75 {
		t.Errorf("fallback confidence = %v, want 0.75", rec.Confidence)
	}
	if len(state.Errors) != 1 {
		t.Errorf("expected one diagnostic, got %v", state.Errors)
	}
}

func TestSynthesizer_FallbackTrafficCoordinatesAreNotASeed(t *testing.T) {
	lookup := &fakeGeoLookup{coords: nil}
	s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())

	state := newTestState()
	// An unresolvable location still carries a traffic payload: the traffic
	// stage always writes one, with hash-derived pseudo-coordinates.
	state.Traffic = &types.TrafficData{
		Coordinates:           &types.Coordinates{Latitude: 12.34, Longitude: 78.91},
		TrafficScore:          5.6,
		EstimatedDailyTraffic: 27000,
		DataSource:            types.DataSourceLocationFallback,
	}

	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(state.Recommendations) != 1 {
		t.Fatalf("recommendations = %d, want the single fallback", len(state.Recommendations))
	}
	rec := state.Recommendations[0]
	if rec.Confidence != 0.75 {
		t.Errorf("fallback confidence = %v, want 0.75", rec.Confidence)
	}
	if rec.Location.Coordinates.Latitude != 11.1271 || rec.Location.Coordinates.Longitude != 78.6569 {
		t.Errorf("fallback coordinates = %+v, want the regional center, not the pseudo-coordinates",
			rec.Location.Coordinates)
	}
}

func TestSynthesizer_InvalidRadiusEmitsFallback(t *testing.T) {
	s := NewSynthesizer(&fakeGeoLookup{}, nil, testRegion(), false, discardLogger())
	state := newTestState()
	state.RadiusKM = 0
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Recommendations) != 1 || state.Recommendations[0].Confidence != 0.75 {
		t.Errorf("expected the single fallback recommendation, got %+v", state.Recommendations)
	}
}

func TestSynthesizer_RankedRecommendations(t *testing.T) {
	lookup := &fakeGeoLookup{
		coords:     &types.Coordinates{Latitude: 11.6643, Longitude: 78.1460},
		reverseErr: errors.New("nominatim down"),
	}
	s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())

	state := newTestState()
	state.Traffic = &types.TrafficData{
		TrafficScore:          6.2,
		EstimatedDailyTraffic: 38000,
		DataSource:            types.DataSourceLocationFallback,
	}
	state.Grid = &types.GridData{GridScore: 7.0, CapacityMW: 300, AvailableCapacityMW: 150}
	state.Competitor = &types.CompetitorData{CompetitionScore: 8.5}
	state.Demographic = &types.DemographicData{DemographicScore: 6.5, PopulationDensity: 800}
	state.ROI = &types.ROIData{MonthlyRevenue: 200000, PaybackMonths: 20}

	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	recs := state.Recommendations
	if len(recs) != 5 {
		t.Fatalf("recommendations = %d, want 5", len(recs))
	}
	for i, rec := range recs {
		sc := rec.Scores
		for name, v := range map[string]float64{
			"traffic": sc.Traffic, "grid": sc.GridCapacity, "competition": sc.CompetitionGap,
			"demographics": sc.Demographics, "roi": sc.ROIPotential, "overall": sc.Overall,
		} {
			if v < 1 || v > 10 {
				t.Errorf("rec %d %s score %v outside [1, 10]", i, name, v)
			}
		}
		mean := (sc.Traffic + sc.GridCapacity + sc.CompetitionGap + sc.Demographics + sc.ROIPotential) / 5
		if math.Abs(sc.Overall-mean) > 0.3 {
			t.Errorf("rec %d overall %v too far from sub-score mean %v", i, sc.Overall, mean)
		}
		if rec.Confidence <= 0 || rec.Confidence > 0.95 {
			t.Errorf("rec %d confidence %v outside (0, 0.95]", i, rec.Confidence)
		}
		if rec.Insights.DailyTraffic == nil || *rec.Insights.DailyTraffic <= 0 {
			t.Errorf("rec %d missing daily traffic insight", i)
		}
		if rec.Insights.PaybackPeriodMonths == nil || *rec.Insights.PaybackPeriodMonths < 12 {
			t.Errorf("rec %d payback insight below the 12 month floor", i)
		}
		// Scaled from total grid capacity (300 MW) by the distance factor,
		// which never goes below 0.8.
		if rec.Insights.GridCapacityMW == nil || *rec.Insights.GridCapacityMW < 240 || *rec.Insights.GridCapacityMW > 300 {
			t.Errorf("rec %d grid capacity insight = %v, want within [240, 300]", i, rec.Insights.GridCapacityMW)
		}
		if rec.Reasoning == "" {
			t.Errorf("rec %d missing reasoning", i)
		}
		if i > 0 && rec.Scores.Overall > recs[i-1].Scores.Overall {
			t.Errorf("recommendations not sorted by overall score: %v then %v",
				recs[i-1].Scores.Overall, rec.Scores.Overall)
		}
	}
}

func TestSynthesizer_TruncatesToMaxRecommendations(t *testing.T) {
	lookup := &fakeGeoLookup{
		coords:     &types.Coordinates{Latitude: 11.0, Longitude: 78.0},
		reverseErr: errors.New("down"),
	}
	s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())

	state := newTestState()
	state.MaxRecommendations = 2
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Recommendations) != 2 {
		t.Errorf("recommendations = %d, want 2", len(state.Recommendations))
	}
}

func TestSynthesizer_DeterministicForSameLocation(t *testing.T) {
	run := func() []types.Recommendation {
		lookup := &fakeGeoLookup{
			coords:     &types.Coordinates{Latitude: 11.0, Longitude: 78.0},
			reverseErr: errors.New("down"),
		}
		s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())
		state := newTestState()
		if err := s.Run(context.Background(), state); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return state.Recommendations
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("identical requests must yield identical recommendations")
	}
}

func TestSynthesizer_PrefersLiveTrafficCoordinates(t *testing.T) {
	lookup := &fakeGeoLookup{
		coords:     &types.Coordinates{Latitude: 99.0, Longitude: 99.0},
		reverseErr: errors.New("down"),
	}
	s := NewSynthesizer(lookup, nil, testRegion(), false, discardLogger())

	state := newTestState()
	state.Traffic = &types.TrafficData{
		Coordinates: &types.Coordinates{Latitude: 11.6643, Longitude: 78.1460},
		DataSource:  types.DataSourceRealAPIs,
	}
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if lookup.geocodes != 0 {
		t.Errorf("geocode called %d times despite live traffic coordinates", lookup.geocodes)
	}
	if got := state.Recommendations[0].Location.Coordinates.Latitude; math.Abs(got-11.6643) > 0.5 {
		t.Errorf("seed latitude = %v, want near the traffic coordinates", got)
	}
}

func TestSynthesizer_ReasonerTextUsed(t *testing.T) {
	lookup := &fakeGeoLookup{
		coords:     &types.Coordinates{Latitude: 11.0, Longitude: 78.0},
		reverseErr: errors.New("down"),
	}
	s := NewSynthesizer(lookup, &fakeReasoner{text: "Prime corridor site."}, testRegion(), false, discardLogger())

	state := newTestState()
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, rec := range state.Recommendations {
		if rec.Reasoning != "Prime corridor site." {
			t.Errorf("reasoning = %q, want the reasoner text", rec.Reasoning)
		}
	}
}

func TestSynthesizer_ReasonerFailureDegradesToCanned(t *testing.T) {
	lookup := &fakeGeoLookup{
		coords:     &types.Coordinates{Latitude: 11.0, Longitude: 78.0},
		reverseErr: errors.New("down"),
	}
	s := NewSynthesizer(lookup, &fakeReasoner{err: errors.New("llm unavailable")}, testRegion(), false, discardLogger())

	state := newTestState()
	if err := s.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, rec := range state.Recommendations {
		if !strings.Contains(rec.Reasoning, "location near") {
			t.Errorf("reasoning = %q, want a canned phrase", rec.Reasoning)
		}
	}
}

func TestCannedReasoning_Tiers(t *testing.T) {
	if !strings.HasPrefix(CannedReasoning("Salem", 8.5), "Excellent location near Salem") {
		t.Error("high tier phrase wrong")
	}
	if !strings.HasPrefix(CannedReasoning("Salem", 6.5), "Good location near Salem") {
		t.Error("mid tier phrase wrong")
	}
	if !strings.HasPrefix(CannedReasoning("Salem", 4.0), "Moderate location near Salem") {
		t.Error("low tier phrase wrong")
	}
}
