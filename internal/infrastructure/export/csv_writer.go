package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"immosync/internal/domain"
	"immosync/internal/ports"
)

// CSVWriter writes the surviving record set to a flat CSV file with the
// fixed store column set, one row per record.
type CSVWriter struct {
	path string
}

var _ ports.Exporter = (*CSVWriter)(nil)

// NewCSVWriter remembers the target path; intermediate directories are
// created on write.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write truncates and rewrites the whole export file.
func (c *CSVWriter) Write(records []domain.PropertyRecord) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.ExportColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, rec := range records {
		price := ""
		if rec.Price > 0 {
			price = strconv.FormatFloat(rec.Price, 'f', -1, 64)
		}
		row := []string{
			rec.Title,
			string(rec.Category),
			string(rec.Subcategory),
			rec.SourceURL,
			rec.ObjectKey,
			rec.Description,
			rec.Summary,
			rec.ImageURL,
			price,
			rec.Location,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
