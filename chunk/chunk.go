// Package chunk prepares upload artifacts for the portal. The portal
// accepts one workbook per submission with a bounded row count, so the
// full address list is partitioned into chunk workbooks carrying the
// column layout the geocoder expects: a sequential addr_idx and the
// REFADDR address column it maps during upload.
package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSize is the portal's per-submission row capacity.
const DefaultSize = 50_000

// HeaderAddress is the column name the upload form's column picker
// selects.
const HeaderAddress = "REFADDR"

// HeaderIndex keys results back to source rows after the round trip.
const HeaderIndex = "addr_idx"

// Record is one address row.
type Record struct {
	Index   int
	Address string
}

// ReadColumn extracts the named column from the first sheet of a
// workbook. The header row is located by name within the sheet, not
// assumed to be row one. Blank cells are skipped.
func ReadColumn(path, column string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("chunk: %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("chunk: read %s: %w", path, err)
	}

	headerRow, col := -1, -1
	for r, row := range rows {
		for c, cell := range row {
			if strings.EqualFold(strings.TrimSpace(cell), column) {
				headerRow, col = r, c
				break
			}
		}
		if headerRow >= 0 {
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("chunk: column %q not found in %s", column, path)
	}

	var out []Record
	for _, row := range rows[headerRow+1:] {
		if col >= len(row) {
			continue
		}
		addr := strings.TrimSpace(row[col])
		if addr == "" {
			continue
		}
		out = append(out, Record{Index: len(out), Address: addr})
	}
	return out, nil
}

// Split partitions records into chunks of at most size rows. A size of
// zero or less falls back to DefaultSize.
func Split(records []Record, size int) [][]Record {
	if size <= 0 {
		size = DefaultSize
	}
	var chunks [][]Record
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Write materialises each chunk as <base>_chunk_<n>.xlsx under dir and
// returns the paths in submission order.
func Write(dir, base string, chunks [][]Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk: create dir: %w", err)
	}

	paths := make([]string, 0, len(chunks))
	for i, records := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("%s_chunk_%d.xlsx", base, i))
		if err := writeOne(path, records); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeOne(path string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{HeaderIndex, HeaderAddress}); err != nil {
		return fmt.Errorf("chunk: header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("chunk: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{rec.Index, rec.Address}); err != nil {
			return fmt.Errorf("chunk: row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("chunk: save %s: %w", path, err)
	}
	return nil
}
