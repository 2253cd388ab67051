package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV reads seekers and items from two CSV files with the workbook
// headers.
func ReadCSV(ctx context.Context, seekersPath, itemsPath string) (*Tables, error) {
	seekerRows, err := readCSVFile(seekersPath)
	if err != nil {
		return nil, err
	}
	itemRows, err := readCSVFile(itemsPath)
	if err != nil {
		return nil, err
	}
	return parse(ctx, seekerRows, itemRows)
}

// ReadCSVFrom is ReadCSV over readers.
func ReadCSVFrom(ctx context.Context, seekers, items io.Reader) (*Tables, error) {
	seekerRows, err := readCSV(seekers)
	if err != nil {
		return nil, fmt.Errorf("seekers: %w", err)
	}
	itemRows, err := readCSV(items)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	return parse(ctx, seekerRows, itemRows)
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return rows, nil
}
