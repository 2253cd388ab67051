package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook reads seekers from the first sheet and items from the second.
func ReadWorkbook(ctx context.Context, path string) (*Tables, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(ctx, f)
}

// ReadWorkbookFrom is ReadWorkbook over an in-memory or streamed file.
func ReadWorkbookFrom(ctx context.Context, r io.Reader) (*Tables, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(ctx, f)
}

func readWorkbook(ctx context.Context, f *excelize.File) (*Tables, error) {
	sheets := f.GetSheetList()
	if len(sheets) < 2 {
		return nil, fmt.Errorf("%w: workbook has %d sheets, need seekers and items", ErrFormat, len(sheets))
	}
	seekerRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	itemRows, err := f.GetRows(sheets[1])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[1], err)
	}
	return parse(ctx, seekerRows, itemRows)
}
