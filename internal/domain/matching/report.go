package matching

import (
	"time"

	"github.com/okian/nestmatch/internal/domain/model"
)

// Report is the outcome of one batch.
type Report struct {
	// Table is grouped by ascending seeker id; each group holds at most K
	// rows, best first, ties broken by ascending item id.
	Table   []model.MatchResult
	Summary Summary
}

// Summary describes a finished batch.
type Summary struct {
	RunID     string
	TopK      int
	Dimension int
	Policy    ErrorPolicy

	Seekers int // admitted seekers
	Items   int // admitted items

	SkippedSeekers int
	SkippedItems   int
	// Rejected holds every validation error skipped under PolicySkip, in
	// input order (seekers first).
	Rejected []error

	DegenerateSeekers int
	DegenerateItems   int

	Pairs    int64
	Rows     int
	Duration time.Duration
}

// Block returns the rows of seekerID, or nil when the seeker has none.
func (r *Report) Block(seekerID int64) []model.MatchResult {
	lo, hi := 0, len(r.Table)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if r.Table[mid].SeekerID < seekerID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	end := lo
	for end < len(r.Table) && r.Table[end].SeekerID == seekerID {
		end++
	}
	if end == lo {
		return nil
	}
	return r.Table[lo:end]
}
