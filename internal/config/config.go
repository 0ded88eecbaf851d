// Package config loads the single, closed types.Config value the whole
// process shares: defaults first, then an optional YAML file, then
// environment variable overrides, validated before use.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/veridocs/trainforge/internal/types"
)

// Load builds a types.Config from defaults, an optional YAML file at path
// (ignored if empty or missing), and environment variables prefixed
// TRAINFORGE_ (e.g. TRAINFORGE_MIN_CONFIDENCE_THRESHOLD). It validates the
// result before returning.
func Load(path string) (*types.Config, error) {
	v := viper.New()
	applyDefaults(v, types.Default())

	v.SetEnvPrefix("TRAINFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := types.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	if sum := cfg.SemanticMatchWeight + cfg.WordMatchWeight; math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("config: semantic_match_weight + word_match_weight must sum to 1.0, got %v", sum)
	}
	return cfg, nil
}

// applyDefaults seeds viper with defaults' zero-derived values so that
// Unmarshal always has a baseline even when no file/env var sets a field.
func applyDefaults(v *viper.Viper, defaults *types.Config) {
	v.SetDefault("tone", defaults.Tone)
	v.SetDefault("audience", defaults.Audience)
	v.SetDefault("min_steps", defaults.MinSteps)
	v.SetDefault("target_steps", defaults.TargetSteps)
	v.SetDefault("max_steps", defaults.MaxSteps)
	v.SetDefault("min_confidence_threshold", defaults.MinConfidenceThreshold)
	v.SetDefault("importance_threshold", defaults.ImportanceThreshold)
	v.SetDefault("qa_density_threshold", defaults.QADensityThreshold)
	v.SetDefault("min_actions", defaults.MinActions)
	v.SetDefault("max_actions", defaults.MaxActions)
	v.SetDefault("min_content_words", defaults.MinContentWords)
	v.SetDefault("max_content_length_per_source", defaults.MaxContentLengthPerSource)
	v.SetDefault("embedding_enabled", defaults.EmbeddingEnabled)
	v.SetDefault("semantic_match_weight", defaults.SemanticMatchWeight)
	v.SetDefault("word_match_weight", defaults.WordMatchWeight)
	v.SetDefault("llm_timeout_seconds", defaults.LLMTimeoutSeconds)
	v.SetDefault("url_timeout_seconds", defaults.URLTimeoutSeconds)
	v.SetDefault("job_timeout_seconds", defaults.JobTimeoutSeconds)
	v.SetDefault("max_concurrent_generations", defaults.MaxConcurrentGenerations)
	v.SetDefault("max_concurrent_fetches", defaults.MaxConcurrentFetches)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("cache_ttl_seconds", defaults.CacheTTLSeconds)
	v.SetDefault("cache_enabled", defaults.CacheEnabled)
	v.SetDefault("http_addr", defaults.HTTPAddr)

	// Viper only overlays environment variables onto keys it knows about,
	// so the connection settings need explicit (empty) defaults too.
	for _, key := range []string{
		"llm_model", "llm_base_url", "llm_api_key",
		"embedding_model", "embedding_base_url",
		"database_dsn", "redis_addr", "redis_password",
		"blob_endpoint", "blob_access_key", "blob_secret_key", "blob_bucket",
		"otlp_endpoint",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("blob_use_ssl", false)
}
