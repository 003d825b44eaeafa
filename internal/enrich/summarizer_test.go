package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immosync/internal/domain"
)

func sampleRecord() domain.PropertyRecord {
	return domain.PropertyRecord{
		ObjectKey:   "OBJ-9",
		Title:       "Charmantes Einfamilienhaus",
		Description: "Freistehendes Haus mit Garten.",
		Category:    domain.CategoryKaufen,
		Subcategory: domain.SubcategoryHaus,
		Price:       450000,
		Location:    "23558 Lübeck",
		Rooms:       5,
		LivingArea:  142.5,
		PlotArea:    850,
		Year:        1978,
		SourceURL:   "https://example.org/haus-am-see/",
	}
}

func TestSummarizeCacheHitSkipsModel(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Populate([]domain.RemoteRecord{
		{ID: "rec1", Fields: map[string]any{
			domain.FieldObjektnummer:     "OBJ-9",
			domain.FieldKurzbeschreibung: "Objekttyp: Einfamilienhaus\nPreis: 450.000 €",
		}},
	})
	model := &fakeCompleter{reply: "Objekttyp: Villa"}
	s := NewSummarizer(cache, model, nil)

	got := s.Summarize(context.Background(), sampleRecord())
	assert.Equal(t, "Objekttyp: Einfamilienhaus\nPreis: 450.000 €", got)
	assert.Zero(t, model.calls, "cache hit must not spend a model call")

	// Idempotent: a second call with the same cache state is identical.
	assert.Equal(t, got, s.Summarize(context.Background(), sampleRecord()))
}

func TestSummarizeGapFillsFromScrapedData(t *testing.T) {
	t.Parallel()

	// No model configured: the summary is built from scraped data alone.
	s := NewSummarizer(NewCache(), nil, nil)
	got := s.Summarize(context.Background(), sampleRecord())

	want := strings.Join([]string{
		"Zimmer: 5",
		"Wohnfläche: 142.5 m²",
		"Grundstück: 850 m²",
		"Baujahr: 1978",
		"Kategorie: Kaufen",
		"Preis: 450.000 €",
		"Standort: 23558 Lübeck",
	}, "\n")
	require.Equal(t, want, got)
}

func TestSummarizeOmitsUnknownFields(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(NewCache(), nil, nil)
	got := s.Summarize(context.Background(), domain.PropertyRecord{
		ObjectKey: "OBJ-10",
		Title:     "Objekt",
		Category:  domain.CategoryMieten,
	})

	assert.Equal(t, "Kategorie: Mieten", got)
	assert.NotContains(t, got, "-")
	assert.NotContains(t, got, "\n\n")
}

func TestSummarizeMergesModelOutput(t *testing.T) {
	t.Parallel()

	// Energieeffizienz and Baujahr carry placeholder values and
	// Schlafzimmer is off the whitelist; all three lines are dropped.
	model := &fakeCompleter{reply: strings.Join([]string{
		"Objekttyp: Einfamilienhaus",
		"Energieeffizienz: -",
		"Schlafzimmer: 3",
		"Baujahr: unbekannt",
		"Standort: 23558 Lübeck",
	}, "\n")}
	s := NewSummarizer(NewCache(), model, nil)

	rec := sampleRecord()
	got := s.Summarize(context.Background(), rec)

	lines := strings.Split(got, "\n")
	require.Equal(t, []string{
		"Objekttyp: Einfamilienhaus",
		"Zimmer: 5",
		"Wohnfläche: 142.5 m²",
		"Grundstück: 850 m²",
		"Baujahr: 1978", // gap-filled from scrape after placeholder discard
		"Kategorie: Kaufen",
		"Preis: 450.000 €",
		"Standort: 23558 Lübeck",
	}, lines)
	assert.NotContains(t, got, "Schlafzimmer")
}

func TestSummarizeModelFailureFallsBack(t *testing.T) {
	t.Parallel()

	model := &fakeCompleter{err: assert.AnError}
	s := NewSummarizer(NewCache(), model, nil)

	got := s.Summarize(context.Background(), sampleRecord())
	assert.Contains(t, got, "Preis: 450.000 €")
	assert.Contains(t, got, "Zimmer: 5")
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{450000, "450.000 €"},
		{1250, "1.250 €"},
		{999, "999 €"},
		{1234567, "1.234.567 €"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatPrice(tt.in))
	}
}
