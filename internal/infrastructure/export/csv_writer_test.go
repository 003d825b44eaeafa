package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"immosync/internal/domain"
)

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.csv")
	w := NewCSVWriter(path)

	records := []domain.PropertyRecord{
		{
			ObjectKey:   "OBJ-1",
			Title:       "Einfamilienhaus am See",
			Category:    domain.CategoryKaufen,
			Subcategory: domain.SubcategoryHaus,
			Price:       450000,
			Location:    "23558 Lübeck",
			SourceURL:   "https://example.org/haus-am-see/",
		},
		{
			ObjectKey: "OBJ-2",
			Title:     "Ladenfläche ohne Preisangabe",
			SourceURL: "https://example.org/laden/",
		},
	}

	if err := w.Write(records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if !reflect.DeepEqual(rows[0], domain.ExportColumns) {
		t.Errorf("header = %v", rows[0])
	}

	first := rows[1]
	if first[0] != "Einfamilienhaus am See" || first[4] != "OBJ-1" {
		t.Errorf("first row = %v", first)
	}
	if first[8] != "450000" {
		t.Errorf("price column = %q, want 450000", first[8])
	}

	// Unknown price stays empty, never zero.
	if rows[2][8] != "" {
		t.Errorf("empty price column = %q", rows[2][8])
	}
}

func TestWriteEmptySetStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	if err := NewCSVWriter(path).Write(nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected header row in empty export")
	}
}
