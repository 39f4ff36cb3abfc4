package types

import "time"

// StationType identifies the charging hardware class being planned.
type StationType string

const (
	StationFast      StationType = "fast"
	StationRegular   StationType = "regular"
	StationUltraFast StationType = "ultra_fast"
)

// Valid reports whether the station type is one of the known values.
func (t StationType) Valid() bool {
	switch t {
	case StationFast, StationRegular, StationUltraFast:
		return true
	}
	return false
}

// Coordinates is a geographic point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// LocationInfo describes the placement of a recommended site.
type LocationInfo struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	Address     string      `json:"address"`
	AreaLabel   string      `json:"area_label,omitempty"`
	Region      string      `json:"region"`
}

// SiteScores holds the five per-dimension sub-scores plus their mean.
// Every score is clamped to [0,10]; Overall is the arithmetic mean of the
// other five, rounded to one decimal place.
type SiteScores struct {
	Traffic        float64 `json:"traffic_score"`
	GridCapacity   float64 `json:"grid_capacity"`
	CompetitionGap float64 `json:"competition_gap"`
	Demographics   float64 `json:"demographics"`
	ROIPotential   float64 `json:"roi_potential"`
	Overall        float64 `json:"overall_score"`
}

// LocationInsights carries the per-site derived metrics. All fields are
// optional; each is only present when the corresponding stage produced data.
type LocationInsights struct {
	DailyTraffic            *int     `json:"daily_traffic,omitempty"`
	NearestCompetitorKM     *float64 `json:"nearest_competitor_km,omitempty"`
	EstimatedMonthlyRevenue *int     `json:"estimated_monthly_revenue,omitempty"`
	PaybackPeriodMonths     *int     `json:"payback_period_months,omitempty"`
	GridCapacityMW          *float64 `json:"grid_capacity_mw,omitempty"`
	PopulationDensity       *int     `json:"population_density,omitempty"`
}

// Recommendation is one scored, geolocated candidate site.
type Recommendation struct {
	Location   LocationInfo     `json:"location"`
	Scores     SiteScores       `json:"scores"`
	Insights   LocationInsights `json:"insights"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// OptimizeRequest is the input contract for the optimization endpoint.
type OptimizeRequest struct {
	Location           string      `json:"location" validate:"required,min=1"`
	RadiusKM           int         `json:"radius_km" validate:"omitempty,min=1,max=200"`
	Budget             int         `json:"budget" validate:"omitempty,min=100000"`
	StationType        StationType `json:"station_type" validate:"omitempty,oneof=fast regular ultra_fast"`
	MaxRecommendations int         `json:"max_recommendations" validate:"omitempty,min=1,max=20"`
}

// ApplyDefaults fills unset optional fields with their documented defaults.
func (r *OptimizeRequest) ApplyDefaults() {
	if r.RadiusKM == 0 {
		r.RadiusKM = 50
	}
	if r.Budget == 0 {
		r.Budget = 5000000
	}
	if r.StationType == "" {
		r.StationType = StationFast
	}
	if r.MaxRecommendations == 0 {
		r.MaxRecommendations = 5
	}
}

// OptimizeResponse is the output contract for the optimization endpoint.
type OptimizeResponse struct {
	RequestID             string           `json:"request_id"`
	Recommendations       []Recommendation `json:"recommendations"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
	Timestamp             time.Time        `json:"timestamp"`
	Metadata              ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries diagnostic information about a pipeline run.
type ResponseMetadata struct {
	Errors         []string      `json:"errors"`
	AgentsExecuted []StageResult `json:"agents_executed"`
}

// StageStatus is the outcome classification of one stage execution.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageError   StageStatus = "error"
)

// StageResult is the instrumentation record produced by the stage runner for
// one stage execution. It is ephemeral response metadata, never an input to
// later stages.
type StageResult struct {
	StageName      string      `json:"stage_name"`
	Status         StageStatus `json:"status"`
	ElapsedSeconds float64     `json:"elapsed_seconds"`
	ErrorMessage   string      `json:"error_message,omitempty"`
}
