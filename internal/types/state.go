package types

// DataSource tags how a stage payload was produced. Every payload carries
// exactly one of these so that callers can distinguish live results from
// degraded ones.
type DataSource string

const (
	// DataSourceRealAPIs marks a payload derived from live upstream queries.
	DataSourceRealAPIs DataSource = "real_apis"
	// DataSourceLocationFallback marks a deterministic payload keyed off the
	// seed location name (known-city profile or name-hash synthesis).
	DataSourceLocationFallback DataSource = "location_specific_fallback"
	// DataSourceFallback marks a fixed, location-independent fallback payload.
	DataSourceFallback DataSource = "fallback"
)

// WorkflowState is the shared record threaded through the analysis pipeline
// for a single optimization request. It is exclusively owned by the in-flight
// run: stages execute strictly sequentially and each mutates only its own
// payload field plus the append-only Errors log, so no locking is needed.
type WorkflowState struct {
	Location           string
	RadiusKM           int
	Budget             int
	StationType        StationType
	MaxRecommendations int

	// Stage payloads, nil until the owning stage has run.
	Traffic     *TrafficData
	Grid        *GridData
	Competitor  *CompetitorData
	Demographic *DemographicData
	ROI         *ROIData

	// Recommendations is empty until the synthesis stage runs.
	Recommendations []Recommendation

	// Errors is an append-only diagnostic log. Entries here never abort the
	// pipeline; they are surfaced in the response metadata.
	Errors []string
}

// NewWorkflowState creates the state record for one optimization request.
func NewWorkflowState(req OptimizeRequest) *WorkflowState {
	return &WorkflowState{
		Location:           req.Location,
		RadiusKM:           req.RadiusKM,
		Budget:             req.Budget,
		StationType:        req.StationType,
		MaxRecommendations: req.MaxRecommendations,
	}
}

// AddError appends a diagnostic entry to the error log.
func (s *WorkflowState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// TrafficZone is a notable high-traffic road segment near a candidate area.
type TrafficZone struct {
	Name        string      `json:"name"`
	RoadClass   string      `json:"type"`
	DistanceKM  float64     `json:"distance_km"`
	Coordinates Coordinates `json:"coordinates"`
}

// TrafficData is the traffic stage payload.
type TrafficData struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	RadiusKM    int          `json:"radius_km"`

	TrafficScore          float64 `json:"traffic_score"`
	RoadDensityScore      float64 `json:"road_density_score"`
	EstimatedDailyTraffic int     `json:"estimated_daily_traffic"`
	PeakHours             []string `json:"peak_hours"`
	FlowRating            string  `json:"traffic_flow_rating"`
	LocationBoost         float64 `json:"location_factor"`

	HighwayTypes  map[string]int `json:"highway_types"`
	TotalRoads    int            `json:"total_roads"`
	TotalLengthKM float64        `json:"estimated_total_length_km"`
	RoadDensity   float64        `json:"road_density"`

	HighTrafficZones []TrafficZone `json:"high_traffic_zones,omitempty"`

	DataSource DataSource `json:"data_source"`
	ProfileNote string    `json:"location_profile,omitempty"`
}

// GridData is the grid stage payload. The core identity holds for every
// produced payload: AvailableCapacityMW = CapacityMW * (1 - LoadFactor), and
// CapacitySufficient iff AvailableCapacityMW > 20.
type GridData struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	SubstationCount        int     `json:"substation_count"`
	HighVoltageSubstations int     `json:"high_voltage_substations"`
	PowerLineCount         int     `json:"power_line_count"`
	ExistingChargers       int     `json:"existing_chargers"`
	InfrastructureDensity  float64 `json:"infrastructure_density"`
	GridConnectivity       string  `json:"grid_connectivity"`

	Population       int64   `json:"population"`
	GridLoadEstimate float64 `json:"grid_load_estimate"`

	IndustrialAreas int     `json:"industrial_areas"`
	CommercialAreas int     `json:"commercial_areas"`
	FuelStations    int     `json:"fuel_stations"`
	MajorRoads      int     `json:"major_roads"`
	IndustrialScore float64 `json:"industrial_score"`

	CapacityMW            float64 `json:"grid_capacity_mw"`
	AvailableCapacityMW   float64 `json:"available_capacity_mw"`
	LoadFactor            float64 `json:"load_factor"`
	ReliabilityScore      float64 `json:"reliability_score"`
	InfrastructureScore   float64 `json:"infrastructure_score"`
	GridScore             float64 `json:"grid_score"`
	CapacitySufficient    bool    `json:"capacity_sufficient"`
	StressLevel           string  `json:"grid_stress_level"`
	InfrastructureQuality string  `json:"infrastructure_quality"`

	DataSource DataSource `json:"data_source"`
}

// ChargingStation describes one existing charging installation found nearby.
type ChargingStation struct {
	Name        string      `json:"name"`
	Operator    string      `json:"operator"`
	Network     string      `json:"network"`
	DistanceKM  float64     `json:"distance_km"`
	Coordinates Coordinates `json:"coordinates"`
}

// CompetitorData is the competitor stage payload.
type CompetitorData struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	RadiusKM    int          `json:"radius_km"`

	ExistingStations  int      `json:"existing_stations"`
	NearestDistanceKM *float64 `json:"nearest_distance_km,omitempty"`
	CompetitionScore  float64  `json:"competition_score"`
	MarketSaturation  string   `json:"market_saturation"`
	MarketOpportunity string   `json:"market_opportunity"`
	FuelStationsNearby int     `json:"fuel_stations_nearby"`

	Stations []ChargingStation `json:"stations_list,omitempty"`

	DataSource DataSource `json:"data_source"`
}

// DemographicData is the demographic stage payload.
type DemographicData struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	Population        int64   `json:"population"`
	PopulationDensity float64 `json:"population_density"`
	DevelopmentIndex  float64 `json:"development_index"`
	EconomicScore     float64 `json:"economic_activity_score"`
	EVAdoptionRate    float64 `json:"ev_adoption_rate"`
	EstimatedEVCount  int64   `json:"estimated_ev_vehicles"`
	IncomeLevel       string  `json:"income_level"`
	IncomeScore       float64 `json:"income_score"`
	MarketSize        string  `json:"target_market_size"`
	DemographicScore  float64 `json:"demographic_score"`
	EVReadiness       float64 `json:"ev_readiness"`
	MarketPotential   string  `json:"market_potential"`

	DataSource DataSource `json:"data_source"`
}

// BreakEvenUtilization describes the charging volume needed to cover costs.
type BreakEvenUtilization struct {
	MonthlySessionsNeeded int     `json:"monthly_sessions_needed"`
	DailySessionsNeeded   float64 `json:"daily_sessions_needed"`
	UtilizationHoursDaily float64 `json:"utilization_hours_needed"`
	RevenuePerSession     int     `json:"revenue_per_session"`
}

// ROIData is the financial-return stage payload.
type ROIData struct {
	InstallationCost     int     `json:"installation_cost"`
	CostMultiplier       float64 `json:"cost_multiplier"`
	MonthlyRevenue       int     `json:"monthly_revenue"`
	MonthlyOperatingCost int     `json:"monthly_operating_cost"`
	NetMonthlyIncome     int     `json:"net_monthly_income"`
	RevenueMultiplier    float64 `json:"revenue_multiplier"`
	MarketAttractiveness string  `json:"market_attractiveness"`

	// PaybackMonths is the display value, capped at 99. RawPaybackMonths keeps
	// the uncapped figure and is 999 when net monthly income is non-positive.
	PaybackMonths    int     `json:"payback_period_months"`
	RawPaybackMonths float64 `json:"-"`

	ROIScore         float64 `json:"roi_score"`
	AnnualROIPercent float64 `json:"annual_roi_percentage"`
	Profitability    string  `json:"profitability"`

	RiskLevel   string   `json:"risk_level"`
	RiskFactors []string `json:"risk_factors,omitempty"`

	BreakEven *BreakEvenUtilization `json:"break_even_utilization,omitempty"`

	DataSource DataSource `json:"data_source"`
}
