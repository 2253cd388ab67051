// Package sink writes the ranked match table.
//
// Rows are (user_id, property_id, match_score) with the score rendered to
// two decimals. Files are written to a temporary sibling and renamed into
// place, so a reader never observes a partial table.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/parquet-go/parquet-go"
)

// Formats understood by Write and WriteFile.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Row is one output record.
type Row struct {
	UserID     int64   `json:"user_id" parquet:"user_id"`
	PropertyID int64   `json:"property_id" parquet:"property_id"`
	MatchScore float64 `json:"match_score" parquet:"match_score"`
}

// Rows converts match results to output rows, keeping their order.
func Rows(results []model.MatchResult) []Row {
	out := make([]Row, len(results))
	for i, r := range results {
		out[i] = Row{UserID: r.SeekerID, PropertyID: r.ItemID, MatchScore: r.Score}
	}
	return out
}

// Write encodes results to w in format.
func Write(w io.Writer, format string, results []model.MatchResult) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatJSON:
		return WriteJSON(w, results)
	case FormatParquet:
		return WriteParquet(w, results)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteCSV writes a header and one line per result.
func WriteCSV(w io.Writer, results []model.MatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"user_id", "property_id", "match_score"}); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			strconv.FormatInt(r.SeekerID, 10),
			strconv.FormatInt(r.ItemID, 10),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as a JSON array.
func WriteJSON(w io.Writer, results []model.MatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Rows(results))
}

// WriteParquet writes the rows as a parquet file.
func WriteParquet(w io.Writer, results []model.MatchResult) error {
	return parquet.Write(w, Rows(results))
}

// WriteFile writes results to path, creating parent directories.
func WriteFile(ctx context.Context, path, format string, results []model.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, format, results); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}
