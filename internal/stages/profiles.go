package stages

// CityProfile is a hand-curated traffic characterization for a known town,
// used when the seed location cannot be geocoded or the road-network query
// fails. The numbers are regional estimates, not derived values.
type CityProfile struct {
	TrafficScore    float64
	DailyTraffic    int
	RoadDensity     float64
	Lat, Lon        float64
	Characteristics string
}

// CityEntry pairs a lowercase matching token with its profile.
type CityEntry struct {
	Token   string
	Profile CityProfile
}

// Profiles is the curated data set the traffic stage keys its fallbacks and
// known-city boosts on. It is data, not logic: deployments targeting a
// different region supply their own set.
type Profiles struct {
	// Cities lists city tokens in precedence order. Matching is
	// substring-based against the lowercased seed location, first hit wins,
	// so a name carrying several tokens always resolves the same way.
	Cities []CityEntry

	// Boost tokens, matched the same way. Primary adds +2.0 to the computed
	// traffic score, secondary +1.0, tertiary +0.5.
	PrimaryBoost   []string
	SecondaryBoost []string
	TertiaryBoost  []string
}

// DefaultProfiles returns the curated Tamil Nadu data set.
func DefaultProfiles() Profiles {
	return Profiles{
		Cities: []CityEntry{
			{"chennai", CityProfile{9.2, 85000, 8.5, 13.0827, 80.2707, "Major metropolitan city with heavy traffic"}},
			{"coimbatore", CityProfile{7.8, 55000, 6.2, 11.0168, 76.9558, "Industrial city with moderate to high traffic"}},
			{"madurai", CityProfile{6.8, 42000, 5.1, 9.9252, 78.1198, "Historic city with growing traffic"}},
			{"salem", CityProfile{6.2, 38000, 4.8, 11.6643, 78.1460, "Steel city with industrial traffic"}},
			{"tiruchirappalli", CityProfile{6.5, 40000, 5.0, 10.7905, 78.7047, "Central hub with moderate traffic"}},
			{"erode", CityProfile{5.8, 32000, 4.2, 11.3410, 77.7172, "Textile city with moderate traffic"}},
			{"vellore", CityProfile{6.0, 35000, 4.5, 12.9165, 79.1325, "Educational hub with growing traffic"}},
			{"tirunelveli", CityProfile{5.5, 28000, 3.8, 8.7139, 77.7567, "Southern city with moderate traffic"}},
			{"thanjavur", CityProfile{5.2, 25000, 3.5, 10.7870, 79.1378, "Cultural city with low to moderate traffic"}},
			{"ramanathapuram", CityProfile{4.8, 22000, 3.2, 9.3639, 78.8370, "Coastal town with light traffic"}},
			{"kumbakonam", CityProfile{4.5, 20000, 3.0, 10.9601, 79.3788, "Temple town with light traffic"}},
			{"dindigul", CityProfile{5.5, 30000, 4.0, 10.3673, 77.9803, "Commercial town with moderate traffic"}},
		},
		PrimaryBoost:   []string{"chennai"},
		SecondaryBoost: []string{"coimbatore", "madurai", "salem"},
		TertiaryBoost:  []string{"tiruchirappalli", "erode", "vellore"},
	}
}
