// Package service wires ingestion, embedding, the matching engine, the
// result store and the output sink into one batch pipeline, and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/nestmatch/internal/adapters/embedding"
	"github.com/okian/nestmatch/internal/adapters/ingest"
	"github.com/okian/nestmatch/internal/adapters/repository"
	"github.com/okian/nestmatch/internal/adapters/sink"
	"github.com/okian/nestmatch/internal/adapters/worker"
	"github.com/okian/nestmatch/internal/config"
	"github.com/okian/nestmatch/internal/domain/hybrid"
	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/internal/domain/numeric"
	"github.com/okian/nestmatch/internal/domain/semantic"
	"github.com/okian/nestmatch/pkg/logger"
	"github.com/okian/nestmatch/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for this package.
var (
	ErrNoInput = errors.New("no input tables configured")
)

// Batch status labels.
const (
	statusOK       = "ok"
	statusFailed   = "failed"
	statusCanceled = "canceled"
)

// Service runs matching batches and answers read and scoring requests.
type Service struct {
	mu sync.RWMutex

	cfg      *config.Config
	policy   matching.ErrorPolicy
	engine   *matching.Engine
	embedder embedding.Embedder
	cache    *embedding.CachedEmbedder
	kv       *embedding.RedisStore
	store    repository.Store
	pool     *worker.Pool

	// Last batch outcome.
	last    *matching.Summary
	lastErr error
	lastAt  time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEmbedder replaces the provider selected by configuration. The
// embedder is still wrapped by the configured Redis and LRU tiers.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Service) {
		if e != nil {
			s.embedder = e
		}
	}
}

// WithStore replaces the in-memory result store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// New validates cfg and builds every component. Configuration errors are
// returned before anything is scored. ctx bounds connecting to Redis.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, model.NewConfigurationError("config", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")

	if s.embedder == nil {
		s.embedder = newEmbedder(cfg, s.logger)
	}
	if r := cfg.Embedding.Redis; r.Addr != "" {
		kv, err := embedding.NewRedisStore(ctx, r.Addr, r.Password, r.DB, r.TTL)
		if err != nil {
			return nil, err
		}
		s.kv = kv
		s.embedder = embedding.NewStoreEmbedder(s.embedder, kv, embeddingSpace(cfg), s.logger.Named("embedding_store"))
	}
	if cfg.Embedding.CacheSize > 0 {
		c, err := embedding.NewCachedEmbedder(s.embedder, cfg.Embedding.CacheSize)
		if err != nil {
			s.closeStore()
			return nil, err
		}
		s.cache, s.embedder = c, c
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	// validated above
	s.policy, _ = matching.ParseErrorPolicy(cfg.ErrorPolicy)

	pool, err := worker.NewPool(cfg.WorkerCount, worker.WithLogger(s.logger))
	if err != nil {
		s.closeStore()
		return nil, err
	}
	engine, err := newEngine(cfg, s.policy, pool, s.logger)
	if err != nil {
		pool.Release()
		s.closeStore()
		return nil, err
	}
	s.pool, s.engine = pool, engine
	return s, nil
}

func newEmbedder(cfg *config.Config, log logger.Logger) embedding.Embedder {
	if cfg.Embedding.Provider == config.ProviderOpenAI {
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.EmbeddingDimension,
			BatchSize:  cfg.Embedding.BatchSize,
			MaxRetries: cfg.Embedding.MaxRetries,
			Timeout:    cfg.Embedding.Timeout,

			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Burst:             cfg.Embedding.Burst,
			Logger:            log.Named("openai"),
		})
	}
	return embedding.NewHashEmbedder(cfg.EmbeddingDimension)
}

// embeddingSpace scopes stored vectors to the configured provider. The hash
// provider has no model.
func embeddingSpace(cfg *config.Config) embedding.Space {
	sp := embedding.Space{Provider: cfg.Embedding.Provider, Dimension: cfg.EmbeddingDimension}
	if cfg.Embedding.Provider == config.ProviderOpenAI {
		sp.Model = cfg.Embedding.Model
	}
	return sp
}

func newEngine(cfg *config.Config, policy matching.ErrorPolicy, pool matching.Pool, log logger.Logger) (*matching.Engine, error) {
	nm, err := numeric.NewMatcher(cfg.NumericConfig())
	if err != nil {
		return nil, err
	}
	mapping, err := semantic.ParseMapping(cfg.SemanticMapping)
	if err != nil {
		return nil, err
	}
	sm, err := semantic.NewScorer(mapping)
	if err != nil {
		return nil, err
	}
	hs, err := hybrid.NewScorer(cfg.HybridWeights(), cfg.RenormalizeWeights)
	if err != nil {
		return nil, err
	}
	return matching.New(nm, sm, hs,
		matching.WithTopK(cfg.TopK),
		matching.WithDimension(cfg.EmbeddingDimension),
		matching.WithErrorPolicy(policy),
		matching.WithPool(pool),
		matching.WithLogger(log.Named("engine")),
	)
}

// Store returns the result store the service publishes to.
func (s *Service) Store() repository.Store { return s.store }

// Close releases the worker pool and the Redis connection.
func (s *Service) Close() {
	s.pool.Release()
	s.closeStore()
}

func (s *Service) closeStore() {
	if s.kv == nil {
		return
	}
	if err := s.kv.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing embedding store", logger.Error(err))
	}
	s.kv = nil
}

// Run reads the configured input tables and processes them.
func (s *Service) Run(ctx context.Context) (*matching.Report, error) {
	tables, err := s.readInput(ctx)
	if err != nil {
		s.finish(ctx, nil, time.Now(), err)
		return nil, err
	}
	return s.Process(ctx, tables)
}

func (s *Service) readInput(ctx context.Context) (*ingest.Tables, error) {
	in := s.cfg.Input
	switch {
	case in.Workbook != "":
		s.logger.Info(ctx, "reading workbook", logger.String("path", in.Workbook))
		return ingest.ReadWorkbook(ctx, in.Workbook)
	case in.SeekersCSV != "" && in.ItemsCSV != "":
		s.logger.Info(ctx, "reading csv tables",
			logger.String("seekers", in.SeekersCSV),
			logger.String("items", in.ItemsCSV))
		return ingest.ReadCSV(ctx, in.SeekersCSV, in.ItemsCSV)
	default:
		return nil, ErrNoInput
	}
}

// Process embeds both tables, runs the engine, publishes the table to the
// store and writes it to the configured output path.
func (s *Service) Process(ctx context.Context, tables *ingest.Tables) (*matching.Report, error) {
	start := time.Now()
	rep, err := s.process(ctx, tables)
	s.finish(ctx, rep, start, err)
	return rep, err
}

func (s *Service) process(ctx context.Context, tables *ingest.Tables) (*matching.Report, error) {
	if err := s.applyPolicy(ctx, tables.Rejected); err != nil {
		return nil, err
	}
	metrics.UpdateBatchSize(len(tables.Seekers), len(tables.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return embedding.EmbedSeekers(gctx, s.embedder, tables.Seekers) })
	g.Go(func() error { return embedding.EmbedItems(gctx, s.embedder, tables.Items) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep, err := s.engine.Run(ctx, tables.Seekers, tables.Items)
	if err != nil {
		return nil, err
	}
	for _, rej := range rep.Summary.Rejected {
		recordRejected(rej)
	}
	for _, rej := range tables.Rejected {
		var ve *model.ValidationError
		if errors.As(rej, &ve) && ve.Kind == model.KindItem {
			rep.Summary.SkippedItems++
		} else {
			rep.Summary.SkippedSeekers++
		}
	}
	rep.Summary.Rejected = append(tables.Rejected[:len(tables.Rejected):len(tables.Rejected)], rep.Summary.Rejected...)

	if err := s.store.Publish(ctx, rep); err != nil {
		return nil, fmt.Errorf("publish results: %w", err)
	}
	if out := s.cfg.Output; out.Path != "" {
		if err := sink.WriteFile(ctx, out.Path, out.Format, rep.Table); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "results written",
			logger.String("path", out.Path),
			logger.String("format", out.Format),
			logger.Int("rows", len(rep.Table)))
	}
	return rep, nil
}

// applyPolicy handles rows the ingester could not turn into records.
func (s *Service) applyPolicy(ctx context.Context, rejected []error) error {
	for _, err := range rejected {
		if s.policy == matching.PolicyAbort {
			return err
		}
		recordRejected(err)
		s.logger.Warn(ctx, "skipping unreadable row", logger.Error(err))
	}
	return nil
}

func recordRejected(err error) {
	kind, field := "unknown", "unknown"
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		kind, field = ve.Kind, ve.Field
	}
	metrics.RecordRejectedRecord(kind, field)
}

func (s *Service) finish(ctx context.Context, rep *matching.Report, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAt = time.Now()
	s.lastErr = err
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.RecordBatch(statusCanceled, elapsed)
		s.logger.Warn(ctx, "batch canceled", logger.Error(err))
		return
	}
	if err != nil {
		metrics.RecordBatch(statusFailed, elapsed)
		s.logger.Error(ctx, "batch failed", logger.Error(err))
		return
	}
	sum := rep.Summary
	s.last = &sum
	metrics.RecordBatch(statusOK, elapsed)
	metrics.AddPairsScored(sum.Pairs)
	metrics.UpdateResultRows(sum.Rows)
	for n := 0; n < sum.DegenerateSeekers; n++ {
		metrics.RecordDegenerateEmbedding(model.KindSeeker)
	}
	for n := 0; n < sum.DegenerateItems; n++ {
		metrics.RecordDegenerateEmbedding(model.KindItem)
	}
}

// ScorePair embeds the two descriptions and scores the pair with the batch
// configuration. Inputs are not modified.
func (s *Service) ScorePair(ctx context.Context, seeker *model.Seeker, item *model.Item) (model.MatchResult, error) {
	if seeker == nil || item == nil {
		return model.MatchResult{}, fmt.Errorf("%w: seeker and item are required", model.ErrValidation)
	}
	sc, it := *seeker, *item
	vecs, err := s.embedder.EmbedTexts(ctx, []string{embedding.SeekerText(&sc), embedding.ItemText(&it)})
	if err != nil {
		return model.MatchResult{}, err
	}
	if len(vecs) != 2 {
		return model.MatchResult{}, fmt.Errorf("%w: expected 2 vectors, got %d", embedding.ErrProvider, len(vecs))
	}
	sc.Embedding, it.Embedding = vecs[0], vecs[1]
	return s.engine.ScorePair(&sc, &it)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"state":       s.engine.State().String(),
		"topK":        s.engine.TopK(),
		"workerCount": s.pool.Cap(),
		"provider":    s.cfg.Embedding.Provider,
	}
	if s.cache != nil {
		stats["embeddingCacheSize"] = s.cache.Len()
	}
	if !s.lastAt.IsZero() {
		stats["lastRunAt"] = s.lastAt.UTC().Format(time.RFC3339)
	}
	if s.lastErr != nil {
		stats["lastError"] = s.lastErr.Error()
	}
	if sum := s.last; sum != nil {
		stats["runId"] = sum.RunID
		stats["seekers"] = sum.Seekers
		stats["items"] = sum.Items
		stats["skippedSeekers"] = sum.SkippedSeekers
		stats["skippedItems"] = sum.SkippedItems
		stats["rejected"] = len(sum.Rejected)
		stats["degenerateSeekers"] = sum.DegenerateSeekers
		stats["degenerateItems"] = sum.DegenerateItems
		stats["pairs"] = sum.Pairs
		stats["rows"] = sum.Rows
		stats["dimension"] = sum.Dimension
		stats["durationMs"] = sum.Duration.Milliseconds()
	}
	return stats
}
