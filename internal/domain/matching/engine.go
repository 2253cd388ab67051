// Package matching ranks every item for every seeker and produces the Top-K
// table.
//
// A batch moves through Loading (validation and vector preparation), Scoring
// (per seeker, in parallel on a Pool, each seeker keeping a bounded heap of
// its K best items) and Ranking (heaps drained into blocks ordered by
// seeker id). Output is a pure function of the inputs and configuration.
package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nestmatch/internal/domain/dedupe"
	"github.com/okian/nestmatch/internal/domain/hybrid"
	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/internal/domain/numeric"
	"github.com/okian/nestmatch/internal/domain/semantic"
	"github.com/okian/nestmatch/pkg/logger"
)

// ErrorPolicy decides what happens to an invalid record.
type ErrorPolicy string

const (
	// PolicyAbort fails the batch on the first invalid record.
	PolicyAbort ErrorPolicy = "abort"
	// PolicySkip drops invalid records, reports them in the Summary and
	// keeps going.
	PolicySkip ErrorPolicy = "skip"
)

// ParseErrorPolicy accepts "abort" or "skip" (case-insensitive, empty = abort).
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", model.NewConfigurationError("error_policy", fmt.Sprintf("unknown policy %q", s))
	}
}

// cancelEvery is how many items a seeker scores between context checks.
const cancelEvery = 1024

// Engine produces ranked match tables. Configuration is fixed at
// construction; one batch runs at a time.
type Engine struct {
	numeric  *numeric.Matcher
	semantic *semantic.Scorer
	hybrid   *hybrid.Scorer

	topK      int
	dimension int
	policy    ErrorPolicy
	pool      Pool
	log       logger.Logger

	state atomic.Int32
}

// New builds an Engine from the three scorers.
func New(n *numeric.Matcher, s *semantic.Scorer, h *hybrid.Scorer, opts ...Option) (*Engine, error) {
	if n == nil || s == nil || h == nil {
		return nil, model.NewConfigurationError("scorers", "numeric, semantic and hybrid scorers are required")
	}
	e := &Engine{
		numeric:  n,
		semantic: s,
		hybrid:   h,
		topK:     DefaultTopK,
		policy:   PolicyAbort,
		pool:     Sequential{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.topK <= 0 {
		return nil, model.NewConfigurationError("top_k", "must be a positive integer")
	}
	if e.dimension < 0 {
		return nil, model.NewConfigurationError("embedding_dimension", "must be >= 0")
	}
	p, err := ParseErrorPolicy(string(e.policy))
	if err != nil {
		return nil, err
	}
	e.policy = p
	return e, nil
}

// State returns the current lifecycle phase.
func (e *Engine) State() State { return State(e.state.Load()) }

// TopK returns K.
func (e *Engine) TopK() int { return e.topK }

type seekerEntry struct {
	rec *model.Seeker
	vec semantic.Vector
}

type itemEntry struct {
	rec *model.Item
	vec semantic.Vector
}

type batch struct {
	seekers []seekerEntry
	items   []itemEntry
}

// Run scores seekers against items and returns the Top-K table. Inputs are
// read but never modified. On cancellation in-flight work is discarded and
// the context error is returned.
func (e *Engine) Run(ctx context.Context, seekers []model.Seeker, items []model.Item) (*Report, error) {
	if !e.begin() {
		return nil, ErrEngineBusy
	}
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), TopK: e.topK, Policy: e.policy}
	log := e.log.With(logger.String("run_id", sum.RunID))
	log.Info(ctx, "batch started", logger.Int("seekers", len(seekers)), logger.Int("items", len(items)))

	b, err := e.load(ctx, log, seekers, items, &sum)
	if err != nil {
		return nil, e.fail(ctx, log, err)
	}

	e.state.Store(int32(StateScoring))
	sels, pairs, err := e.score(ctx, b)
	if err != nil {
		return nil, e.fail(ctx, log, err)
	}
	sum.Pairs = pairs

	e.state.Store(int32(StateRanking))
	table := rank(b, sels)

	sum.Rows = len(table)
	sum.Duration = time.Since(start)
	e.state.Store(int32(StateDone))
	log.Info(ctx, "batch finished",
		logger.Int("rows", sum.Rows),
		logger.Int64("pairs", sum.Pairs),
		logger.Int("skipped_seekers", sum.SkippedSeekers),
		logger.Int("skipped_items", sum.SkippedItems),
		logger.Duration("duration", sum.Duration))
	return &Report{Table: table, Summary: sum}, nil
}

// ScorePair scores a single seeker against a single item with the engine's
// configuration. Both records are validated first.
func (e *Engine) ScorePair(s *model.Seeker, it *model.Item) (model.MatchResult, error) {
	if err := numeric.ValidateSeeker(s); err != nil {
		return model.MatchResult{}, err
	}
	if err := numeric.ValidateItem(it); err != nil {
		return model.MatchResult{}, err
	}
	dim := e.dimension
	if dim == 0 {
		dim = len(s.Embedding)
	}
	if err := checkEmbedding(model.KindSeeker, s.ID, s.Embedding, dim); err != nil {
		return model.MatchResult{}, err
	}
	if err := checkEmbedding(model.KindItem, it.ID, it.Embedding, dim); err != nil {
		return model.MatchResult{}, err
	}
	return e.scorePair(s, semantic.NewVector(s.Embedding), it, semantic.NewVector(it.Embedding))
}

func (e *Engine) begin() bool {
	for {
		cur := State(e.state.Load())
		if cur.running() {
			return false
		}
		if e.state.CompareAndSwap(int32(cur), int32(StateLoading)) {
			return true
		}
	}
}

func (e *Engine) fail(ctx context.Context, log logger.Logger, err error) error {
	e.state.Store(int32(StateFailed))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn(ctx, "batch cancelled", logger.Error(err))
	} else {
		log.Error(ctx, "batch failed", logger.Error(err))
	}
	return err
}

// load validates records in input order (seekers, then items) and prepares
// their vectors.
func (e *Engine) load(ctx context.Context, log logger.Logger, seekers []model.Seeker, items []model.Item, sum *Summary) (*batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim := e.dimension
	if dim == 0 {
		dim = inferDimension(seekers, items)
	}
	sum.Dimension = dim

	b := &batch{
		seekers: make([]seekerEntry, 0, len(seekers)),
		items:   make([]itemEntry, 0, len(items)),
	}

	seenSeekers := dedupe.NewInMemoryDeduper[int64](dedupe.WithExpectedSize(len(seekers)))
	for i := range seekers {
		s := &seekers[i]
		err := numeric.ValidateSeeker(s)
		if err == nil {
			err = checkEmbedding(model.KindSeeker, s.ID, s.Embedding, dim)
		}
		if err == nil && seenSeekers.SeenAndRecord(s.ID) {
			err = model.NewValidationError(model.KindSeeker, s.ID, "id", "duplicate id")
		}
		if err != nil {
			if err := e.reject(ctx, log, err, sum); err != nil {
				return nil, err
			}
			sum.SkippedSeekers++
			continue
		}
		vec := semantic.NewVector(s.Embedding)
		if vec.Degenerate() {
			sum.DegenerateSeekers++
			log.Warn(ctx, "degenerate embedding", logger.String("kind", model.KindSeeker), logger.Int64("id", s.ID))
		}
		b.seekers = append(b.seekers, seekerEntry{rec: s, vec: vec})
	}

	seenItems := dedupe.NewInMemoryDeduper[int64](dedupe.WithExpectedSize(len(items)))
	for i := range items {
		it := &items[i]
		err := numeric.ValidateItem(it)
		if err == nil {
			err = checkEmbedding(model.KindItem, it.ID, it.Embedding, dim)
		}
		if err == nil && seenItems.SeenAndRecord(it.ID) {
			err = model.NewValidationError(model.KindItem, it.ID, "id", "duplicate id")
		}
		if err != nil {
			if err := e.reject(ctx, log, err, sum); err != nil {
				return nil, err
			}
			sum.SkippedItems++
			continue
		}
		vec := semantic.NewVector(it.Embedding)
		if vec.Degenerate() {
			sum.DegenerateItems++
			log.Warn(ctx, "degenerate embedding", logger.String("kind", model.KindItem), logger.Int64("id", it.ID))
		}
		b.items = append(b.items, itemEntry{rec: it, vec: vec})
	}

	sum.Seekers = len(b.seekers)
	sum.Items = len(b.items)
	return b, ctx.Err()
}

// reject applies the error policy. It returns err under PolicyAbort and nil
// once the record has been recorded under PolicySkip.
func (e *Engine) reject(ctx context.Context, log logger.Logger, err error, sum *Summary) error {
	if e.policy == PolicyAbort {
		return err
	}
	sum.Rejected = append(sum.Rejected, err)
	log.Warn(ctx, "skipping invalid record", logger.Error(err))
	return nil
}

func (e *Engine) score(ctx context.Context, b *batch) ([]*Selector, int64, error) {
	sels := make([]*Selector, len(b.seekers))
	var pairs atomic.Int64

	err := e.pool.Run(ctx, len(b.seekers), func(ctx context.Context, i int) error {
		s := b.seekers[i]
		sel := NewSelector(e.topK)
		for j := range b.items {
			if j%cancelEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			it := b.items[j]
			r, err := e.scorePair(s.rec, s.vec, it.rec, it.vec)
			if err != nil {
				return err
			}
			sel.Offer(r)
		}
		pairs.Add(int64(len(b.items)))
		sels[i] = sel
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return sels, pairs.Load(), nil
}

func (e *Engine) scorePair(s *model.Seeker, sv semantic.Vector, it *model.Item, iv semantic.Vector) (model.MatchResult, error) {
	nb, err := e.numeric.Score(s, it)
	if err != nil {
		return model.MatchResult{}, err
	}
	sem, err := e.semantic.ScoreVectors(sv, iv)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("seeker %d, item %d: %w", s.ID, it.ID, err)
	}
	return model.MatchResult{
		SeekerID: s.ID,
		ItemID:   it.ID,
		Score:    e.hybrid.Combine(sem, nb.Score),
		Breakdown: model.Breakdown{
			Semantic: hybrid.Round2(sem),
			Numeric:  nb,
		},
	}, nil
}

// rank drains each seeker's selector and lays the blocks out by ascending
// seeker id.
func rank(b *batch, sels []*Selector) []model.MatchResult {
	order := make([]int, len(b.seekers))
	rows := 0
	for i := range order {
		order[i] = i
		rows += sels[i].Len()
	}
	slices.SortFunc(order, func(x, y int) int {
		return cmp.Compare(b.seekers[x].rec.ID, b.seekers[y].rec.ID)
	})

	table := make([]model.MatchResult, 0, rows)
	for _, i := range order {
		table = append(table, sels[i].Drain()...)
	}
	return table
}

// inferDimension returns the most common non-zero embedding length across
// both tables, the smaller length winning a tie. Record order does not
// affect the result.
func inferDimension(seekers []model.Seeker, items []model.Item) int {
	counts := make(map[int]int)
	for i := range seekers {
		if n := len(seekers[i].Embedding); n > 0 {
			counts[n]++
		}
	}
	for i := range items {
		if n := len(items[i].Embedding); n > 0 {
			counts[n]++
		}
	}
	dim, best := 0, 0
	for n, c := range counts {
		if c > best || (c == best && n < dim) {
			dim, best = n, c
		}
	}
	return dim
}

func checkEmbedding(kind string, id int64, v []float32, dim int) error {
	if len(v) == 0 {
		return model.NewValidationError(kind, id, "embedding", "missing")
	}
	if len(v) != dim {
		return model.NewValidationError(kind, id, "embedding", fmt.Sprintf("dimension %d, expected %d", len(v), dim))
	}
	for _, x := range v {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return model.NewValidationError(kind, id, "embedding", "contains non-finite values")
		}
	}
	return nil
}
