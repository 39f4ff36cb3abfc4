package stages

import (
	"context"
	"log/slog"
	"math"

	"voltsite/internal/types"
)

// Per-station-type baselines in INR.
var (
	installationCosts = map[types.StationType]int{
		types.StationRegular:   2000000,
		types.StationFast:      4500000,
		types.StationUltraFast: 7000000,
	}
	monthlyRevenueBase = map[types.StationType]int{
		types.StationRegular:   80000,
		types.StationFast:      180000,
		types.StationUltraFast: 320000,
	}
	revenuePerSession = map[types.StationType]int{
		types.StationRegular:   150,
		types.StationFast:      400,
		types.StationUltraFast: 600,
	}
)

// ROIStage is a pure computation over the earlier stage payloads: it never
// calls an upstream. Missing payloads are substituted with neutral defaults
// so the stage produces a figure even when every upstream degraded.
type ROIStage struct {
	logger *slog.Logger
}

// NewROIStage creates the financial-return stage.
func NewROIStage(logger *slog.Logger) *ROIStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ROIStage{logger: logger}
}

// Name implements pipeline.Stage.
func (s *ROIStage) Name() string { return "roi_analysis" }

// Run implements pipeline.Stage.
func (s *ROIStage) Run(ctx context.Context, state *types.WorkflowState) error {
	if !validateState(s.Name(), state) {
		return nil
	}
	if !state.StationType.Valid() {
		state.AddError("roi analysis: unknown station type, using fallback estimate")
		state.ROI = roiFallback(state.Budget)
		return nil
	}

	state.ROI = deriveROI(state)
	return nil
}

func deriveROI(state *types.WorkflowState) *types.ROIData {
	// Neutral defaults cover payloads lost to upstream failures.
	gridScore, availableMW, gridQuality, gridSufficient := 7.0, 100.0, "Fair", true
	if g := state.Grid; g != nil {
		gridScore, availableMW = g.GridScore, g.AvailableCapacityMW
		gridQuality, gridSufficient = g.InfrastructureQuality, g.CapacitySufficient
	}
	dailyTraffic := 10000
	var majorRoads int
	if t := state.Traffic; t != nil {
		dailyTraffic = t.EstimatedDailyTraffic
		majorRoads = t.HighwayTypes["motorway"] + t.HighwayTypes["primary"]
	}
	adoption, incomeScore, population := 0.05, 6.0, int64(50000)
	if d := state.Demographic; d != nil {
		adoption, incomeScore, population = d.EVAdoptionRate, d.IncomeScore, d.Population
	}
	opportunity := "Medium"
	if c := state.Competitor; c != nil {
		opportunity = c.MarketOpportunity
	}

	baseCost := installationCosts[state.StationType]

	costMult := 1.0
	switch {
	case availableMW < 20:
		costMult *= 1.25
	case gridScore < 5:
		costMult *= 1.15
	}
	if gridQuality == "Excellent" {
		costMult *= 0.95
	}
	switch {
	case majorRoads == 0:
		costMult *= 1.20
	case majorRoads >= 2:
		costMult *= 0.98
	}
	cost := int(float64(baseCost) * costMult)

	revMult := 1.0
	switch {
	case dailyTraffic > 50000:
		revMult *= 1.4
	case dailyTraffic > 30000:
		revMult *= 1.2
	case dailyTraffic > 15000:
		revMult *= 1.0
	default:
		revMult *= 0.8
	}
	switch {
	case adoption > 0.15:
		revMult *= 1.3
	case adoption > 0.08:
		revMult *= 1.1
	default:
		revMult *= 0.9
	}
	switch {
	case incomeScore > 8:
		revMult *= 1.2
	case incomeScore > 6:
		revMult *= 1.0
	default:
		revMult *= 0.85
	}
	switch {
	case population > 500000:
		revMult *= 1.15
	case population > 100000:
		revMult *= 1.0
	default:
		revMult *= 0.9
	}
	switch opportunity {
	case "Excellent":
		revMult *= 1.25
	case "High":
		revMult *= 1.1
	case "Medium":
		revMult *= 1.0
	default:
		revMult *= 0.75
	}

	attractiveness := "Low"
	switch {
	case revMult > 1.3:
		attractiveness = "High"
	case revMult > 0.9:
		attractiveness = "Medium"
	}

	revenue := int(float64(monthlyRevenueBase[state.StationType]) * revMult)
	operating := int(float64(revenue)*0.25) + 25000
	net := revenue - operating

	rawPayback := 999.0
	if net > 0 {
		rawPayback = float64(cost) / float64(net)
	}
	displayPayback := int(math.Min(rawPayback, 99))

	score := 2.0
	switch {
	case rawPayback <= 12:
		score = 10
	case rawPayback <= 18:
		score = 8.5
	case rawPayback <= 24:
		score = 7
	case rawPayback <= 36:
		score = 5.5
	case rawPayback <= 48:
		score = 4
	}
	switch attractiveness {
	case "High":
		score += 0.5
	case "Low":
		score -= 1.0
	}
	switch {
	case costMult > 1.2:
		score -= 0.5
	case costMult < 1.0:
		score += 0.3
	}
	score = clamp(score, 0, 10)

	profitability := "Poor"
	switch {
	case score >= 8:
		profitability = "Excellent"
	case score >= 6.5:
		profitability = "Good"
	case score >= 5:
		profitability = "Fair"
	}

	annualROI := 0.0
	if cost > 0 {
		annualROI = float64(net) * 12 / float64(cost) * 100
	}

	var riskFactors []string
	if rawPayback > 36 {
		riskFactors = append(riskFactors, "Long payback period")
	}
	if !gridSufficient {
		riskFactors = append(riskFactors, "Limited grid capacity")
	}
	if adoption < 0.05 {
		riskFactors = append(riskFactors, "Low EV adoption in area")
	}
	if opportunity == "Low" {
		riskFactors = append(riskFactors, "Saturated charging market")
	}
	if costMult > 1.2 {
		riskFactors = append(riskFactors, "Elevated installation costs")
	}

	riskLevel := "Low"
	switch {
	case len(riskFactors) >= 3:
		riskLevel = "High"
	case len(riskFactors) >= 1:
		riskLevel = "Medium"
	}

	perSession := revenuePerSession[state.StationType]
	monthlySessions := 0
	if perSession > 0 {
		monthlySessions = int(math.Ceil(float64(operating) / float64(perSession)))
	}
	dailySessions := float64(monthlySessions) / 30

	return &types.ROIData{
		InstallationCost:     cost,
		CostMultiplier:       round2(costMult),
		MonthlyRevenue:       revenue,
		MonthlyOperatingCost: operating,
		NetMonthlyIncome:     net,
		RevenueMultiplier:    round2(revMult),
		MarketAttractiveness: attractiveness,
		PaybackMonths:        displayPayback,
		RawPaybackMonths:     rawPayback,
		ROIScore:             round1(score),
		AnnualROIPercent:     round1(annualROI),
		Profitability:        profitability,
		RiskLevel:            riskLevel,
		RiskFactors:          riskFactors,
		BreakEven: &types.BreakEvenUtilization{
			MonthlySessionsNeeded: monthlySessions,
			DailySessionsNeeded:   round1(dailySessions),
			UtilizationHoursDaily: round1(dailySessions * 0.5),
			RevenuePerSession:     perSession,
		},
		DataSource: types.DataSourceRealAPIs,
	}
}

// roiFallback gives a conservative estimate scaled off the stated budget.
func roiFallback(budget int) *types.ROIData {
	return &types.ROIData{
		InstallationCost:     int(float64(budget) * 0.8),
		MonthlyRevenue:       120000,
		MonthlyOperatingCost: 40000,
		NetMonthlyIncome:     80000,
		PaybackMonths:        24,
		RawPaybackMonths:     24,
		ROIScore:             6.0,
		Profitability:        "Fair",
		MarketAttractiveness: "Medium",
		RiskLevel:            "Medium",
		DataSource:           types.DataSourceFallback,
	}
}
