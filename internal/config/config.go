package config

// Config is the root configuration for the VoltSite service, populated from
// environment variables via envconfig and validated with go-playground/validator.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	External ExternalConfig
	Region   RegionConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
	Database DatabaseConfig
	AWS      AWSConfig

	Build BuildInfo `ignored:"true"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ShutdownTimeout int `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"15" validate:"min=1"`
}

// ExternalConfig holds endpoints and limits for the upstream lookup services.
type ExternalConfig struct {
	OverpassURL      string `envconfig:"OVERPASS_API_URL" default:"https://overpass-api.de/api/interpreter" validate:"url"`
	NominatimURL     string `envconfig:"NOMINATIM_BASE_URL" default:"https://nominatim.openstreetmap.org" validate:"url"`
	GeoNamesURL      string `envconfig:"GEONAMES_BASE_URL" default:"http://api.geonames.org" validate:"url"`
	GeoNamesUsername string `envconfig:"GEONAMES_USERNAME" default:"demo"`
	TimeoutSeconds   int    `envconfig:"EXTERNAL_API_TIMEOUT_SECONDS" default:"30" validate:"min=1,max=120"`
	UserAgent        string `envconfig:"EXTERNAL_USER_AGENT" default:"voltsite/1.0"`
}

// RegionConfig scopes geocoding queries to the deployment's target region.
// Geocode lookups are issued as "{location}, {State}, {Country}" with
// progressively looser variants, matching how the upstream geocoder resolves
// ambiguous town names.
type RegionConfig struct {
	State   string `envconfig:"DEFAULT_STATE" default:"Tamil Nadu"`
	Country string `envconfig:"DEFAULT_COUNTRY" default:"India"`
}

// PipelineConfig tunes the analysis pipeline.
type PipelineConfig struct {
	// QueryFanOut caps the number of concurrent region-data queries a single
	// stage may have in flight against the external data provider.
	QueryFanOut int `envconfig:"PIPELINE_QUERY_FANOUT" default:"3" validate:"min=1,max=8"`
	// Exploration enables per-request random perturbation seeds in the
	// synthesizer. When false (the default), the perturbation seed is derived
	// from the request's location string so identical inputs produce identical
	// recommendations.
	Exploration bool `envconfig:"PIPELINE_EXPLORATION" default:"false"`
}

// LLMConfig configures the optional reasoning-text generator. An empty APIKey
// disables the client entirely; the pipeline then uses the deterministic
// fallback phrasing.
type LLMConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY"`
	Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
}

// DatabaseConfig configures the optional recommendation store. An empty URL
// disables persistence; the pipeline is unaffected.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

// AWSConfig holds queue and telemetry settings. Empty values disable the
// corresponding integration.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"ap-south-1"`
	ArchiveQueueURL string `envconfig:"ARCHIVE_QUEUE_URL"`
	MetricsEnabled  bool   `envconfig:"CLOUDWATCH_METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"CLOUDWATCH_NAMESPACE" default:"VoltSite"`
}

// IsLocal reports whether the service is running in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
