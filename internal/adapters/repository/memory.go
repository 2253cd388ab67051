package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
)

const defaultMaxLimit = 1000

// Snapshot is an immutable published batch.
type Snapshot struct {
	Summary     matching.Summary
	Table       []model.MatchResult
	PublishedAt time.Time

	// blocks maps seeker id to its [start, end) range in Table.
	blocks map[int64][2]int
}

// Seekers returns the number of seekers with at least one row.
func (s *Snapshot) Seekers() int { return len(s.blocks) }

// MemoryStore keeps the latest snapshot behind an atomic pointer, so readers
// never block a publish and never see a half-written table.
type MemoryStore struct {
	cur      atomic.Pointer[Snapshot]
	maxLimit int
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{maxLimit: defaultMaxLimit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxLimit returns the largest page size Page accepts.
func (s *MemoryStore) MaxLimit() int { return s.maxLimit }

func (s *MemoryStore) Publish(ctx context.Context, rep *matching.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("%w: nil report", ErrNoResults)
	}
	snap := &Snapshot{
		Summary:     rep.Summary,
		Table:       rep.Table,
		PublishedAt: s.now(),
		blocks:      make(map[int64][2]int),
	}
	for start := 0; start < len(rep.Table); {
		id := rep.Table[start].SeekerID
		end := start + 1
		for end < len(rep.Table) && rep.Table[end].SeekerID == id {
			end++
		}
		snap.blocks[id] = [2]int{start, end}
		start = end
	}
	s.cur.Store(snap)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context) (*Snapshot, error) {
	snap := s.cur.Load()
	if snap == nil {
		return nil, ErrNoResults
	}
	return snap, nil
}

func (s *MemoryStore) Matches(ctx context.Context, seekerID int64) ([]model.MatchResult, error) {
	snap, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := snap.blocks[seekerID]
	if !ok {
		return nil, fmt.Errorf("%w: seeker %d", ErrNotFound, seekerID)
	}
	return snap.Table[b[0]:b[1]:b[1]], nil
}

func (s *MemoryStore) Page(ctx context.Context, offset, limit int) ([]model.MatchResult, int, error) {
	if limit <= 0 || limit > s.maxLimit {
		return nil, 0, fmt.Errorf("%w: limit must be in [1, %d]", ErrInvalidLimit, s.maxLimit)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must be >= 0", ErrInvalidLimit)
	}
	snap, err := s.Latest(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(snap.Table)
	if offset >= total {
		return []model.MatchResult{}, total, nil
	}
	end := min(offset+limit, total)
	return snap.Table[offset:end:end], total, nil
}
