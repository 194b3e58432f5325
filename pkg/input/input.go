// Package input reads the identifier list a run processes.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
)

var (
	// ErrColumnNotFound is returned when the header lacks the requested column.
	ErrColumnNotFound = errors.New("column not found")

	// ErrMissingHeader is returned for an empty input.
	ErrMissingHeader = errors.New("missing header row")
)

// ReadIdentifiers reads the identifiers in column of the CSV file at path,
// in file order. Blank cells are skipped; duplicates are kept.
func ReadIdentifiers(path, column string) ([]catalog.Identifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier list: %w", err)
	}
	defer f.Close()

	ids, err := Parse(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// Parse reads identifiers from CSV data with a header row.
func Parse(r io.Reader, column string) ([]catalog.Identifier, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}

	var ids []catalog.Identifier
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if idx >= len(row) {
			continue
		}
		if cell := strings.TrimSpace(row[idx]); cell != "" {
			ids = append(ids, catalog.Identifier(cell))
		}
	}
	return ids, nil
}
