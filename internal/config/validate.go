package config

import (
	"fmt"
	"strings"

	"github.com/okian/nestmatch/internal/domain/hybrid"
	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/internal/domain/numeric"
	"github.com/okian/nestmatch/internal/domain/semantic"
)

// Embedding providers.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// Output formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// Validate reports the first invalid setting. The error matches both
// ErrInvalidConfig and model.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return model.NewConfigurationError("addr", "must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return model.NewConfigurationError("log_level", fmt.Sprintf("unknown level %q", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return model.NewConfigurationError("log_format", "must be text or json")
	}
	if c.WorkerCount <= 0 {
		return model.NewConfigurationError("worker_count", "must be a positive integer")
	}
	if c.TopK <= 0 {
		return model.NewConfigurationError("top_k", "must be a positive integer")
	}
	if c.EmbeddingDimension < 0 {
		return model.NewConfigurationError("embedding_dimension", "must be >= 0")
	}
	if err := c.NumericConfig().Validate(); err != nil {
		return err
	}
	if _, err := hybrid.NewScorer(c.HybridWeights(), c.RenormalizeWeights); err != nil {
		return err
	}
	if _, err := semantic.ParseMapping(c.SemanticMapping); err != nil {
		return err
	}
	if _, err := matching.ParseErrorPolicy(c.ErrorPolicy); err != nil {
		return err
	}
	switch c.Output.Format {
	case FormatCSV, FormatJSON, FormatParquet:
	default:
		return model.NewConfigurationError("output.format", "must be csv, json or parquet")
	}
	if c.Input.Workbook == "" && (c.Input.SeekersCSV == "" || c.Input.ItemsCSV == "") {
		return model.NewConfigurationError("input", "set input.workbook or both input.seekers_csv and input.items_csv")
	}
	switch c.Embedding.Provider {
	case ProviderHash:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return model.NewConfigurationError("embedding.model", "required for the openai provider")
		}
	default:
		return model.NewConfigurationError("embedding.provider", fmt.Sprintf("unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.BatchSize <= 0 {
		return model.NewConfigurationError("embedding.batch_size", "must be a positive integer")
	}
	if c.Embedding.CacheSize < 0 || c.Embedding.MaxRetries < 0 || c.Embedding.Timeout < 0 {
		return model.NewConfigurationError("embedding", "cache_size, max_retries and timeout must be >= 0")
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Embedding.Burst < 0 {
		return model.NewConfigurationError("embedding", "requests_per_second and burst must be >= 0")
	}
	if r := c.Embedding.Redis; r.DB < 0 || r.TTL < 0 {
		return model.NewConfigurationError("embedding.redis", "db and ttl must be >= 0")
	}
	return nil
}

// NumericConfig maps the numeric settings onto numeric.Config.
func (c *Config) NumericConfig() numeric.Config {
	return numeric.Config{
		BudgetTolerance:      c.BudgetTolerance,
		BudgetMaxOverage:     c.BudgetMaxOverage,
		BudgetDecaySlope:     c.BudgetDecaySlope,
		BedroomFlex:          c.BedroomFlex,
		BathroomFlex:         c.BathroomFlex,
		RoomDeviationPenalty: c.RoomDeviationPenalty,
		LivingAreaTolerance:  c.LivingAreaTolerance,
		LivingAreaDecaySlope: c.LivingAreaDecaySlope,
		Weights: numeric.Weights{
			Budget:     c.SubscoreWeights.Budget,
			Bedrooms:   c.SubscoreWeights.Bedrooms,
			Bathrooms:  c.SubscoreWeights.Bathrooms,
			LivingArea: c.SubscoreWeights.LivingArea,
		},
	}
}

// HybridWeights returns the semantic/numerical split.
func (c *Config) HybridWeights() hybrid.Weights {
	return hybrid.Weights{Semantic: c.SemanticWeight, Numerical: c.NumericalWeight}
}
