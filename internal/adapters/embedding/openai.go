package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/nestmatch/pkg/logger"
	"github.com/okian/nestmatch/pkg/metrics"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const providerOpenAI = "openai"

// OpenAIConfig holds the settings of an OpenAI-compatible embeddings API.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is requested from the API when > 0 and enforced on the
	// response.
	Dimensions int
	BatchSize  int
	MaxRetries int
	// Timeout bounds one request attempt. Zero means no per-attempt limit.
	Timeout time.Duration
	// InitialBackoff is the first retry delay. Zero uses 500ms.
	InitialBackoff time.Duration
	// RequestsPerSecond paces attempts when > 0. Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures consecutive failed batches open the circuit for
	// BreakerCooldown. Zero uses 5 and 30s.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Logger          logger.Logger
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint in batches,
// retrying transient failures with exponential backoff.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
	maxRetries int
	timeout    time.Duration
	initial    time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     logger.Logger
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	e := &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		initial:    cfg.InitialBackoff,
		logger:     cfg.Logger,
	}
	if e.batchSize <= 0 {
		e.batchSize = 64
	}
	if e.initial <= 0 {
		e.initial = 500 * time.Millisecond
	}
	if e.logger == nil {
		e.logger = logger.Nop()
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	e.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerCooldown, e.logger)
	return e
}

func newBreaker(failures uint32, cooldown time.Duration, log logger.Logger) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerOpenAI,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// caller mistakes (4xx, cancellation) say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "embedding circuit state changed",
				logger.String("provider", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

// EmbedTexts embeds texts in batches of at most BatchSize.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		res, err := e.breaker.Execute(func() (any, error) {
			return e.embedBatch(ctx, texts[start:end])
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordEmbeddingRequest(providerOpenAI, "rejected")
			return nil, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res.([][]float32)...)
	}
	if err := checkDimension(out, e.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initial
	policy := backoff.WithMaxRetries(b, uint64(max(e.maxRetries, 0)))

	var resp openai.EmbeddingResponse
	op := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attemptCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		r, err := e.client.CreateEmbeddings(attemptCtx, req)
		if err != nil {
			metrics.RecordEmbeddingRequest(providerOpenAI, "error")
			err = parseAPIError(err)
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		metrics.RecordEmbeddingRequest(providerOpenAI, "success")
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn(ctx, "embedding request failed, retrying",
			logger.Int("texts", len(texts)),
			logger.Duration("wait", wait),
			logger.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProvider, len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// apiError carries the HTTP status of a failed provider call.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("embedding API error %d: %s", e.status, e.msg)
}

func (e *apiError) Unwrap() error { return ErrProvider }

func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apiError{status: apiErr.HTTPStatusCode, msg: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apiError{status: reqErr.HTTPStatusCode, msg: string(reqErr.Body)}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

// retryable treats throttling, server errors and transport failures as
// transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= http.StatusInternalServerError || ae.status == 0
	}
	return true
}
