package synth

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"voltsite/internal/config"
	"voltsite/internal/external"
	"voltsite/internal/types"
)

// Reasoner produces the narrative justification attached to each
// recommendation. Implementations may call an LLM; errors degrade to a
// canned, score-tiered phrase.
type Reasoner interface {
	SiteReasoning(ctx context.Context, loc types.LocationInfo, scores types.SiteScores) (string, error)
}

// Baseline sub-scores used when a stage payload is missing.
const (
	baseTrafficDefault     = 7.0
	baseGridDefault        = 8.0
	baseCompetitionDefault = 7.5
	baseDemographicDefault = 8.8
)

// Synthesizer is the final pipeline stage: it expands the seed into candidate
// points, scores each against the stage baselines with bounded per-candidate
// variation, and emits the ranked recommendation list.
type Synthesizer struct {
	lookup    external.GeoLookup
	generator *CandidateGenerator
	reasoner  Reasoner
	cfg       config.RegionConfig
	explore   bool
	logger    *slog.Logger
}

// NewSynthesizer creates the synthesis stage. reasoner may be nil; canned
// reasoning is used then. When explore is set, candidate variation is seeded
// from the clock instead of the location name, so repeated runs differ.
func NewSynthesizer(
	lookup external.GeoLookup,
	reasoner Reasoner,
	cfg config.RegionConfig,
	explore bool,
	logger *slog.Logger,
) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		lookup:    lookup,
		generator: NewCandidateGenerator(lookup, cfg),
		reasoner:  reasoner,
		cfg:       cfg,
		explore:   explore,
		logger:    logger,
	}
}

// Name implements pipeline.Stage.
func (s *Synthesizer) Name() string { return "recommendation_synthesis" }

// Run implements pipeline.Stage. A geocoding miss yields exactly one fixed
// fallback recommendation rather than an empty list.
func (s *Synthesizer) Run(ctx context.Context, state *types.WorkflowState) error {
	if state.Location == "" {
		state.AddError("recommendation synthesis: no location provided")
		return nil
	}
	if state.RadiusKM <= 0 {
		state.AddError("recommendation synthesis: invalid radius provided")
		state.Recommendations = []types.Recommendation{fallbackRecommendation(state.Location, s.cfg.State)}
		return nil
	}

	seed := s.seedCoordinates(ctx, state)
	if seed == nil {
		state.AddError(fmt.Sprintf("recommendation synthesis: could not geocode location: %s", state.Location))
		state.Recommendations = []types.Recommendation{fallbackRecommendation(state.Location, s.cfg.State)}
		return nil
	}

	candidates := s.generator.Generate(ctx, *seed, state.Location, state.RadiusKM)
	rng := s.newRand(state.Location)

	recs := make([]types.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, s.score(ctx, state, c, rng))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Scores.Overall > recs[j].Scores.Overall
	})

	max := state.MaxRecommendations
	if max <= 0 {
		max = 5
	}
	if len(recs) > max {
		recs = recs[:max]
	}

	state.Recommendations = recs
	s.logger.InfoContext(ctx, "synthesized recommendations",
		"location", state.Location, "count", len(recs))
	return nil
}

// seedCoordinates prefers coordinates already resolved by an earlier stage
// over a fresh geocoding round trip.
func (s *Synthesizer) seedCoordinates(ctx context.Context, state *types.WorkflowState) *types.Coordinates {
	if t := state.Traffic; t != nil && t.Coordinates != nil && t.DataSource == types.DataSourceRealAPIs {
		return t.Coordinates
	}
	queries := []string{
		fmt.Sprintf("%s, %s, %s", state.Location, s.cfg.State, s.cfg.Country),
		fmt.Sprintf("%s, %s", state.Location, s.cfg.State),
	}
	for _, q := range queries {
		coords, err := s.lookup.Geocode(ctx, q)
		if err == nil && coords != nil {
			return coords
		}
	}
	// Pseudo-coordinates from a fallback traffic payload are not a seed; an
	// unresolvable location gets the single fixed recommendation instead.
	return nil
}

// newRand returns the variation source. By default it is seeded from the
// location name, so identical requests yield identical recommendations.
func (s *Synthesizer) newRand(location string) *rand.Rand {
	if s.explore {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	h := fnv.New64a()
	h.Write([]byte(location))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (s *Synthesizer) score(ctx context.Context, state *types.WorkflowState, c Candidate, rng *rand.Rand) types.Recommendation {
	baseTraffic := baseTrafficDefault
	baseDaily := 30000
	if t := state.Traffic; t != nil {
		baseTraffic = t.TrafficScore
		baseDaily = t.EstimatedDailyTraffic
	}
	baseGrid := baseGridDefault
	baseMW := 150.0
	if g := state.Grid; g != nil {
		baseGrid = g.GridScore
		baseMW = g.CapacityMW
	}
	baseCompetition := baseCompetitionDefault
	baseNearest := 5.0
	if cp := state.Competitor; cp != nil {
		baseCompetition = cp.CompetitionScore
		if cp.NearestDistanceKM != nil {
			baseNearest = *cp.NearestDistanceKM
		}
	}
	baseDemographic := baseDemographicDefault
	baseDensity := 500.0
	if d := state.Demographic; d != nil {
		baseDemographic = d.DemographicScore
		baseDensity = d.PopulationDensity
	}
	baseRevenue := 150000
	basePayback := 24
	if r := state.ROI; r != nil {
		baseRevenue = r.MonthlyRevenue
		basePayback = r.PaybackMonths
	}

	df := c.DistanceFactor

	traffic := clampScore(baseTraffic*df + spread(rng, 1.5))
	grid := clampScore(baseGrid*df + spread(rng, 1.0))
	// Competition is about the surrounding market, not the exact point, so
	// no distance discount applies. Outer candidates skew slightly better.
	competition := clampScore(baseCompetition + (rng.Float64()*3 - 1))
	demographic := clampScore(baseDemographic*df + spread(rng, 0.8))

	roi := clampScore((traffic+grid+competition+demographic)/4 + spread(rng, 0.5))
	overall := math.Round((traffic+grid+competition+demographic+roi)/5*10) / 10

	scores := types.SiteScores{
		Traffic:        round1(traffic),
		GridCapacity:   round1(grid),
		CompetitionGap: round1(competition),
		Demographics:   round1(demographic),
		ROIPotential:   round1(roi),
		Overall:        overall,
	}

	daily := 0
	if baseTraffic > 0 {
		daily = int(float64(baseDaily) * (traffic / baseTraffic))
	}
	revenue := int(float64(baseRevenue) * (overall / 8.0))
	payback := basePayback
	if roi > 0 {
		payback = int(float64(basePayback) * 8.5 / roi)
	}
	if payback < 12 {
		payback = 12
	}
	nearest := math.Max(0.5, baseNearest+(rng.Float64()*4-1))
	gridMW := round1(baseMW * df)
	density := int(baseDensity * df)

	nearest = round1(nearest)
	rec := types.Recommendation{
		Location: c.Info,
		Scores:   scores,
		Insights: types.LocationInsights{
			DailyTraffic:            &daily,
			NearestCompetitorKM:     &nearest,
			EstimatedMonthlyRevenue: &revenue,
			PaybackPeriodMonths:     &payback,
			GridCapacityMW:          &gridMW,
			PopulationDensity:       &density,
		},
		Confidence: round2(math.Min(0.95, 0.7+overall/20+df*0.1)),
	}
	rec.Reasoning = s.reasoning(ctx, rec.Location, scores)
	return rec
}

func (s *Synthesizer) reasoning(ctx context.Context, loc types.LocationInfo, scores types.SiteScores) string {
	if s.reasoner != nil {
		text, err := s.reasoner.SiteReasoning(ctx, loc, scores)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			s.logger.WarnContext(ctx, "reasoning generation failed, using canned phrase",
				"location", loc.Name, "error", err)
		}
	}
	return CannedReasoning(loc.Name, scores.Overall)
}

// CannedReasoning returns the score-tiered narrative used when no reasoner is
// configured or the reasoner fails.
func CannedReasoning(location string, overall float64) string {
	switch {
	case overall >= 8:
		return fmt.Sprintf("Excellent location near %s with high traffic flow, strong grid infrastructure, limited competition, favorable demographics, and strong ROI potential making it ideal for EV charging station deployment.", location)
	case overall >= 6:
		return fmt.Sprintf("Good location near %s with solid fundamentals across traffic, infrastructure, and market conditions providing a viable opportunity for EV charging station installation.", location)
	default:
		return fmt.Sprintf("Moderate location near %s with some challenges but still presenting opportunities for strategic EV charging station placement with proper planning.", location)
	}
}

// fallbackRecommendation is the single fixed recommendation emitted when the
// seed location cannot be placed on the map. The coordinates are the region's
// geographic center.
func fallbackRecommendation(location, region string) types.Recommendation {
	daily := 35000
	nearest := 3.2
	revenue := 130000
	payback := 20
	gridMW := 120.0
	density := 1800
	return types.Recommendation{
		Location: types.LocationInfo{
			Name:        fmt.Sprintf("Strategic Location near %s", location),
			Coordinates: types.Coordinates{Latitude: 11.1271, Longitude: 78.6569},
			Address:     fmt.Sprintf("%s, %s", location, region),
			Region:      region,
		},
		Scores: types.SiteScores{
			Traffic:        7.0,
			GridCapacity:   8.0,
			CompetitionGap: 7.5,
			Demographics:   8.0,
			ROIPotential:   7.8,
			Overall:        7.7,
		},
		Insights: types.LocationInsights{
			DailyTraffic:            &daily,
			NearestCompetitorKM:     &nearest,
			EstimatedMonthlyRevenue: &revenue,
			PaybackPeriodMonths:     &payback,
			GridCapacityMW:          &gridMW,
			PopulationDensity:       &density,
		},
		Confidence: 0.75,
		Reasoning:  "Fallback analysis indicates moderate potential for EV charging station deployment with adequate infrastructure and market conditions.",
	}
}

// spread returns a uniform value in [-w, w].
func spread(rng *rand.Rand, w float64) float64 {
	return rng.Float64()*2*w - w
}

func clampScore(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
