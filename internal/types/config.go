package types

import "time"

// Config is the single, closed configuration value threaded through every
// pipeline constructor. The field set is closed; no other configuration
// surface exists.
type Config struct {
	Tone     string `mapstructure:"tone" json:"tone"     validate:"required"`
	Audience string `mapstructure:"audience" json:"audience" validate:"required"`

	MinSteps    int `mapstructure:"min_steps" json:"min_steps"    validate:"gte=3"`
	TargetSteps int `mapstructure:"target_steps" json:"target_steps" validate:"gtefield=MinSteps"`
	MaxSteps    int `mapstructure:"max_steps" json:"max_steps"    validate:"gtefield=TargetSteps,lte=50"`

	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold" json:"min_confidence_threshold" validate:"gte=0,lte=1"`
	ImportanceThreshold    float64 `mapstructure:"importance_threshold" json:"importance_threshold"     validate:"gte=0,lte=1"`
	QADensityThreshold     float64 `mapstructure:"qa_density_threshold" json:"qa_density_threshold"     validate:"gte=0,lte=1"`

	MinActions     int `mapstructure:"min_actions" json:"min_actions"      validate:"gte=1"`
	MaxActions     int `mapstructure:"max_actions" json:"max_actions"      validate:"gtefield=MinActions"`
	MinContentWords int `mapstructure:"min_content_words" json:"min_content_words" validate:"gte=0"`

	MaxContentLengthPerSource int `mapstructure:"max_content_length_per_source" json:"max_content_length_per_source" validate:"gt=0"`

	EmbeddingEnabled    bool    `mapstructure:"embedding_enabled" json:"embedding_enabled"`
	SemanticMatchWeight float64 `mapstructure:"semantic_match_weight" json:"semantic_match_weight" validate:"gte=0,lte=1"`
	WordMatchWeight     float64 `mapstructure:"word_match_weight" json:"word_match_weight"     validate:"gte=0,lte=1"`

	LLMTimeoutSeconds int `mapstructure:"llm_timeout_seconds" json:"llm_timeout_seconds" validate:"gt=0"`
	URLTimeoutSeconds int `mapstructure:"url_timeout_seconds" json:"url_timeout_seconds" validate:"gt=0"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" json:"job_timeout_seconds" validate:"gt=0"`

	MaxConcurrentGenerations int `mapstructure:"max_concurrent_generations" json:"max_concurrent_generations" validate:"gt=0"`
	MaxConcurrentFetches     int `mapstructure:"max_concurrent_fetches" json:"max_concurrent_fetches"     validate:"gt=0"`

	CacheDir         string `mapstructure:"cache_dir" json:"cache_dir"`
	CacheTTLSeconds  int    `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds" validate:"gte=0"`
	CacheEnabled     bool   `mapstructure:"cache_enabled" json:"cache_enabled"`

	// Connection settings for the surrounding services — not consumed by
	// the core pipeline itself, but threaded through the same config value
	// so there is exactly one source of configuration for the process.
	LLMModel          string `mapstructure:"llm_model" json:"llm_model"`
	LLMBaseURL        string `mapstructure:"llm_base_url" json:"llm_base_url"`
	LLMAPIKey         string `mapstructure:"llm_api_key" json:"llm_api_key"`
	EmbeddingModel    string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingBaseURL  string `mapstructure:"embedding_base_url" json:"embedding_base_url"`
	DatabaseDSN       string `mapstructure:"database_dsn" json:"database_dsn"`
	RedisAddr         string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword     string `mapstructure:"redis_password" json:"redis_password"`
	BlobEndpoint      string `mapstructure:"blob_endpoint" json:"blob_endpoint"`
	BlobAccessKey     string `mapstructure:"blob_access_key" json:"blob_access_key"`
	BlobSecretKey     string `mapstructure:"blob_secret_key" json:"blob_secret_key"`
	BlobBucket        string `mapstructure:"blob_bucket" json:"blob_bucket"`
	BlobUseSSL        bool   `mapstructure:"blob_use_ssl" json:"blob_use_ssl"`
	OTLPEndpoint      string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	HTTPAddr          string `mapstructure:"http_addr" json:"http_addr"`
}

// LLMTimeout returns the configured LLM call timeout as a time.Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// URLTimeout returns the configured per-URL fetch timeout as a time.Duration.
func (c *Config) URLTimeout() time.Duration {
	return time.Duration(c.URLTimeoutSeconds) * time.Second
}

// JobTimeout returns the configured whole-job soft timeout as a time.Duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// CacheTTL returns the configured cache entry TTL as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Tone:                      "Professional",
		Audience:                  "Technical Users",
		MinSteps:                  3,
		TargetSteps:               8,
		MaxSteps:                  20,
		MinConfidenceThreshold:    0.40,
		ImportanceThreshold:       0.15,
		QADensityThreshold:        0.50,
		MinActions:                3,
		MaxActions:                6,
		MinContentWords:           50,
		MaxContentLengthPerSource: 100_000,
		EmbeddingEnabled:          true,
		SemanticMatchWeight:       0.5,
		WordMatchWeight:           0.5,
		LLMTimeoutSeconds:         60,
		URLTimeoutSeconds:         30,
		JobTimeoutSeconds:         600,
		MaxConcurrentGenerations:  4,
		MaxConcurrentFetches:      8,
		CacheTTLSeconds:           86_400,
		CacheEnabled:              true,
		HTTPAddr:                  ":8080",
	}
}
