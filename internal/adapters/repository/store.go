// Package repository holds the most recent ranked match table for readers.
package repository

import (
	"context"

	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
)

// Store provides read access to the latest published batch and the single
// write path that replaces it.
type Store interface {
	// Publish atomically replaces the current table with rep.
	Publish(ctx context.Context, rep *matching.Report) error

	// Latest returns the current snapshot, or ErrNoResults before the first
	// Publish.
	Latest(ctx context.Context) (*Snapshot, error)

	// Matches returns the ranked block of one seeker.
	// Returns ErrNotFound if the seeker has no rows.
	Matches(ctx context.Context, seekerID int64) ([]model.MatchResult, error)

	// Page returns limit rows of the full table starting at offset, and the
	// total row count.
	Page(ctx context.Context, offset, limit int) ([]model.MatchResult, int, error)

	// MaxLimit returns the largest page size Page accepts.
	MaxLimit() int
}
