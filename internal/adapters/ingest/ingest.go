// Package ingest reads the seeker and item tables from a two-sheet workbook
// or a pair of CSV files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/nestmatch/internal/domain/model"
)

// ErrFormat reports a structurally unusable input (missing sheet or column).
var ErrFormat = errors.New("unreadable input table")

// Column headers, matched case-insensitively.
const (
	colUserID      = "user id"
	colPropertyID  = "property id"
	colBudget      = "budget"
	colPrice       = "price"
	colBedrooms    = "bedrooms"
	colBathrooms   = "bathrooms"
	colLivingArea  = "living area (sq ft)"
	colDescription = "qualitative description"
)

// Tables is the parsed input. Rejected lists rows that could not be turned
// into records, in row order (seekers first); the caller applies its error
// policy to them.
type Tables struct {
	Seekers  []model.Seeker
	Items    []model.Item
	Rejected []error
}

// ParseSeekers converts a header row plus data rows into seekers.
func ParseSeekers(rows [][]string) ([]model.Seeker, []error, error) {
	idx, err := header(rows, colUserID, []string{colBudget, colBedrooms, colBathrooms, colDescription}, colLivingArea)
	if err != nil {
		return nil, nil, fmt.Errorf("seekers: %w", err)
	}
	var (
		out      []model.Seeker
		rejected []error
	)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		c := cells{row: row, idx: idx, kind: model.KindSeeker, line: n + 2}
		s := model.Seeker{ID: c.id(colUserID)}
		c.recID = s.ID
		s.Budget = c.amount(colBudget)
		s.Bedrooms = c.count(colBedrooms)
		s.Bathrooms = c.count(colBathrooms)
		s.DesiredLivingArea = c.optAmount(colLivingArea)
		s.Description = c.text(colDescription)
		if c.err != nil {
			rejected = append(rejected, c.err)
			continue
		}
		out = append(out, s)
	}
	return out, rejected, nil
}

// ParseItems converts a header row plus data rows into items.
func ParseItems(rows [][]string) ([]model.Item, []error, error) {
	idx, err := header(rows, colPropertyID, []string{colPrice, colBedrooms, colBathrooms, colLivingArea, colDescription}, "")
	if err != nil {
		return nil, nil, fmt.Errorf("items: %w", err)
	}
	var (
		out      []model.Item
		rejected []error
	)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		c := cells{row: row, idx: idx, kind: model.KindItem, line: n + 2}
		it := model.Item{ID: c.id(colPropertyID)}
		c.recID = it.ID
		it.Price = c.amount(colPrice)
		it.Bedrooms = c.count(colBedrooms)
		it.Bathrooms = c.count(colBathrooms)
		it.LivingArea = c.amount(colLivingArea)
		it.Description = c.text(colDescription)
		if c.err != nil {
			rejected = append(rejected, c.err)
			continue
		}
		out = append(out, it)
	}
	return out, rejected, nil
}

func parse(ctx context.Context, seekerRows, itemRows [][]string) (*Tables, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seekers, rejS, err := ParseSeekers(seekerRows)
	if err != nil {
		return nil, err
	}
	items, rejI, err := ParseItems(itemRows)
	if err != nil {
		return nil, err
	}
	return &Tables{Seekers: seekers, Items: items, Rejected: append(rejS, rejI...)}, nil
}

func header(rows [][]string, id string, required []string, optional string) (map[string]int, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrFormat)
	}
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range append([]string{id}, required...) {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrFormat, col)
		}
	}
	if optional != "" {
		if _, ok := idx[optional]; !ok {
			idx[optional] = -1
		}
	}
	return idx, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cells reads typed values from one row and keeps the first error.
type cells struct {
	row   []string
	idx   map[string]int
	kind  string
	line  int
	recID int64
	err   error
}

func (c *cells) raw(col string) (string, bool) {
	i := c.idx[col]
	if i < 0 || i >= len(c.row) {
		return "", false
	}
	v := strings.TrimSpace(c.row[i])
	if v == "" || strings.EqualFold(v, "nan") {
		return "", false
	}
	return v, true
}

func (c *cells) fail(field, reason string) {
	if c.err == nil {
		c.err = model.NewValidationError(c.kind, c.recID, field, reason)
	}
}

// maxFloatID bounds ids read through float64; from 2^53 on distinct
// integers share a float.
const maxFloatID = 1 << 53

func (c *cells) id(col string) int64 {
	v, ok := c.raw(col)
	if !ok {
		c.fail("id", fmt.Sprintf("row %d: missing", c.line))
		return 0
	}
	if n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64); err == nil {
		return n
	}
	// spreadsheet cells render whole numbers as "12.0"
	f, err := number(v)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= maxFloatID {
		c.fail("id", fmt.Sprintf("row %d: %q is not an integer", c.line, v))
		return 0
	}
	return int64(f)
}

func (c *cells) amount(col string) float64 {
	v, ok := c.raw(col)
	if !ok {
		c.fail(field(col), "missing")
		return 0
	}
	f, err := number(v)
	if err != nil {
		c.fail(field(col), fmt.Sprintf("%q is not a number", v))
	}
	return f
}

func (c *cells) optAmount(col string) *float64 {
	if _, ok := c.raw(col); !ok {
		return nil
	}
	f := c.amount(col)
	return &f
}

func (c *cells) count(col string) int {
	f := c.amount(col)
	if f != math.Trunc(f) {
		c.fail(field(col), fmt.Sprintf("%g is not a whole number", f))
	}
	return int(f)
}

func (c *cells) text(col string) string {
	v, _ := c.raw(col)
	return v
}

// number parses spreadsheet-formatted numbers such as "500,000" or "$1,200".
func number(v string) (float64, error) {
	v = strings.NewReplacer(",", "", "$", "").Replace(v)
	return strconv.ParseFloat(v, 64)
}

func field(col string) string {
	switch col {
	case colLivingArea:
		return "living_area"
	default:
		return col
	}
}
