// Package config defines the process configuration and how it maps onto the
// immutable scorer configurations.
//
// Conventions:
//   - New(ctx) returns defaults; Load(ctx) layers a YAML file and env on top.
//   - A Config is read once at startup and never mutated afterwards.
//   - Invalid values are reported as model.ConfigurationError wrapped with
//     ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address used by serve, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount bounds the number of seekers scored concurrently.
	WorkerCount int `koanf:"worker_count"`

	// TopK is the number of items kept per seeker.
	TopK int `koanf:"top_k"`

	SemanticWeight     float64 `koanf:"semantic_weight"`
	NumericalWeight    float64 `koanf:"numerical_weight"`
	RenormalizeWeights bool    `koanf:"renormalize_weights"`

	// Budget policy: full credit up to budget*(1+BudgetTolerance), linear
	// decay with BudgetDecaySlope, zero from budget*(1+BudgetMaxOverage).
	BudgetTolerance  float64 `koanf:"budget_tolerance"`
	BudgetMaxOverage float64 `koanf:"budget_max_overage"`
	BudgetDecaySlope float64 `koanf:"budget_decay_slope"`

	BedroomFlex          int     `koanf:"bedroom_flex"`
	BathroomFlex         int     `koanf:"bathroom_flex"`
	RoomDeviationPenalty float64 `koanf:"room_deviation_penalty"`

	LivingAreaTolerance  float64 `koanf:"living_area_tolerance"`
	LivingAreaDecaySlope float64 `koanf:"living_area_decay_slope"`

	SubscoreWeights SubscoreWeights `koanf:"subscore_weights"`

	// EmbeddingDimension pins the vector size. Zero infers it from the data.
	EmbeddingDimension int `koanf:"embedding_dimension"`
	// SemanticMapping is clamp or linear.
	SemanticMapping string `koanf:"semantic_mapping"`
	// ErrorPolicy is abort or skip.
	ErrorPolicy string `koanf:"error_policy"`

	Input     InputConfig     `koanf:"input"`
	Output    OutputConfig    `koanf:"output"`
	Embedding EmbeddingConfig `koanf:"embedding"`
}

// SubscoreWeights weight the numeric sub-scores inside the numeric mean.
type SubscoreWeights struct {
	Budget     float64 `koanf:"budget"`
	Bedrooms   float64 `koanf:"bedrooms"`
	Bathrooms  float64 `koanf:"bathrooms"`
	LivingArea float64 `koanf:"living_area"`
}

// InputConfig locates the seeker and item tables. Workbook takes precedence
// over the CSV pair when set.
type InputConfig struct {
	Workbook   string `koanf:"workbook"`
	SeekersCSV string `koanf:"seekers_csv"`
	ItemsCSV   string `koanf:"items_csv"`
}

// OutputConfig controls where the ranked table is written.
type OutputConfig struct {
	Path string `koanf:"path"`
	// Format is csv, json or parquet.
	Format string `koanf:"format"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is hash (offline, deterministic) or openai.
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	// BatchSize caps the number of texts per provider request.
	BatchSize int `koanf:"batch_size"`
	// CacheSize is the number of memoized text embeddings.
	CacheSize  int           `koanf:"cache_size"`
	MaxRetries int           `koanf:"max_retries"`
	Timeout    time.Duration `koanf:"timeout"`
	// RequestsPerSecond paces provider calls; zero disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
	// Redis caches vectors across runs when Addr is set.
	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig locates the persistent embedding store.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// New returns a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		WorkerCount:          runtime.NumCPU(),
		TopK:                 5,
		SemanticWeight:       0.7,
		NumericalWeight:      0.3,
		BudgetTolerance:      0.10,
		BudgetMaxOverage:     0.50,
		BudgetDecaySlope:     2.5,
		BedroomFlex:          1,
		BathroomFlex:         1,
		RoomDeviationPenalty: 0.3,
		LivingAreaTolerance:  0.15,
		LivingAreaDecaySlope: 2.0,
		SubscoreWeights: SubscoreWeights{
			Budget:     1,
			Bedrooms:   1,
			Bathrooms:  1,
			LivingArea: 1,
		},
		EmbeddingDimension: 384,
		SemanticMapping:    "clamp",
		ErrorPolicy:        "abort",
		Input: InputConfig{
			Workbook: "data/raw/Case_Study_2_Data.xlsx",
		},
		Output: OutputConfig{
			Path:   "outputs/top_k_recommendations.csv",
			Format: "csv",
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Model:      "text-embedding-3-small",
			BatchSize:  64,
			CacheSize:  10_000,
			MaxRetries: 3,
			Timeout:    30 * time.Second,
			Redis: RedisConfig{
				TTL: 7 * 24 * time.Hour,
			},
		},
	}
}
