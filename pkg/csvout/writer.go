// Package csvout writes export rows into size-capped, sequentially numbered
// CSV part files, and merges part files back into one.
package csvout

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// utf8BOM makes spreadsheet tools recognize the files as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PartWriter writes rows to a sequence of part files with at most
// MaxRowsPerFile data rows each. The first part keeps the base filename;
// rotated parts get a zero-padded suffix before the extension
// (export.csv, export_part002.csv, ...). Every part starts with a header.
//
// Files open lazily on the first write, so an export that produces no rows
// leaves no empty file behind. Close is idempotent and must be called on
// every exit path: the last open part is only complete once flushed.
type PartWriter struct {
	filename       string
	maxRowsPerFile int
	columns        []string

	file       *os.File
	writer     *csv.Writer
	rowsInPart int
	partIndex  int

	// TotalRows counts data rows written across all parts.
	TotalRows int

	// FilesCreated lists every part opened, in order.
	FilesCreated []string
}

// NewPartWriter creates a rotating writer for the given base filename.
func NewPartWriter(filename string, maxRowsPerFile int, columns []string) (*PartWriter, error) {
	if maxRowsPerFile <= 0 {
		return nil, fmt.Errorf("max rows per file must be positive (got %d)", maxRowsPerFile)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("columns are required")
	}
	return &PartWriter{
		filename:       filename,
		maxRowsPerFile: maxRowsPerFile,
		columns:        columns,
	}, nil
}

// partName computes the filename of a 1-based part index.
func (w *PartWriter) partName(partIndex int) string {
	if partIndex == 1 {
		return w.filename
	}

	base := w.filename
	ext := ".csv"
	if dot := strings.LastIndex(w.filename, "."); dot >= 0 {
		base = w.filename[:dot]
		ext = w.filename[dot:]
	}
	return fmt.Sprintf("%s_part%03d%s", base, partIndex, ext)
}

// openNextPart rotates to the next part file and writes its header.
func (w *PartWriter) openNextPart() error {
	if err := w.closeCurrent(); err != nil {
		return err
	}

	w.partIndex++
	path := w.partName(w.partIndex)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open output part: %w", err)
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return fmt.Errorf("write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if err := writer.Write(w.columns); err != nil {
		file.Close()
		return fmt.Errorf("write header: %w", err)
	}

	w.file = file
	w.writer = writer
	w.rowsInPart = 0
	w.FilesCreated = append(w.FilesCreated, path)

	log.Info().Str("path", path).Int("part", w.partIndex).Msg("Opened output part")
	return nil
}

// closeCurrent flushes and closes the open part, if any.
func (w *PartWriter) closeCurrent() error {
	if w.file == nil {
		return nil
	}

	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()

	w.file = nil
	w.writer = nil

	if flushErr != nil {
		return fmt.Errorf("flush output part: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close output part: %w", closeErr)
	}
	return nil
}

// WriteRow writes one row, values ordered by the configured columns.
// Missing fields become empty cells. Rotation happens transparently when
// the current part is full.
func (w *PartWriter) WriteRow(row map[string]string) error {
	if w.writer == nil {
		if err := w.openNextPart(); err != nil {
			return err
		}
	}
	if w.rowsInPart >= w.maxRowsPerFile {
		if err := w.openNextPart(); err != nil {
			return err
		}
	}

	record := make([]string, len(w.columns))
	for i, column := range w.columns {
		record[i] = row[column]
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	w.rowsInPart++
	w.TotalRows++
	return nil
}

// WriteRows writes a batch of rows.
func (w *PartWriter) WriteRows(rows []map[string]string) error {
	for _, row := range rows {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the open part. Safe to call multiple times.
func (w *PartWriter) Close() error {
	return w.closeCurrent()
}
