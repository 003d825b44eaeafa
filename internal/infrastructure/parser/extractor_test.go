package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"immosync/internal/domain"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func TestExtractPriceIgnoresRoomCounts(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><p>Kaufpreis 450.000 € bei 3 Zimmern</p></body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.Price != 450000 {
		t.Fatalf("expected price 450000, got %v", ext.Price)
	}
	if ext.Rooms != 3 {
		t.Fatalf("expected 3 rooms, got %d", ext.Rooms)
	}
}

func TestExtractPriceKeepsLargestFigure(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<p>Nebenkosten 250 €</p>
		<p>Kaufpreis 389.500 €</p>
	</body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.Price != 389500 {
		t.Fatalf("expected price 389500, got %v", ext.Price)
	}
}

func TestExtractRentOverride(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<p>Der Verkehrswert liegt bei 450.000 €.</p>
		<p>Warmmiete: 1.250 €</p>
	</body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.RentPrice != 1250 {
		t.Fatalf("expected rent 1250, got %v", ext.RentPrice)
	}
	if ext.Price != 450000 {
		t.Fatalf("expected generic price 450000, got %v", ext.Price)
	}
}

func TestExtractTitleFallsBackThroughHeadings(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><head><title>Exposee Nr. 12</title></head><body>
		<h1>Top!</h1>
		<h2>  Charmantes   Einfamilienhaus in Seenähe </h2>
	</body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.Title != "Charmantes Einfamilienhaus in Seenähe" {
		t.Fatalf("unexpected title: %q", ext.Title)
	}
}

func TestExtractLocationFromBodyText(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><p>Das Objekt liegt in 23558 Lübeck und wartet auf Sie.</p></body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if !strings.HasPrefix(ext.Location, "23558 Lübeck") {
		t.Fatalf("unexpected location: %q", ext.Location)
	}
}

func TestExtractLocationFromMetaTags(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><head>
		<meta name="description" content="Haus kaufen: 21073 Hamburg">
	</head><body><p>Keine Adresse im Text.</p></body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.Location != "21073 Hamburg" {
		t.Fatalf("unexpected location: %q", ext.Location)
	}
}

func TestExtractNumericAttributes(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><p>
		5 Zimmer, ca. 142,5 m² Wohnfläche, 850 m² Grundstück, Baujahr: 1978
	</p></body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if ext.Rooms != 5 {
		t.Fatalf("expected 5 rooms, got %d", ext.Rooms)
	}
	if ext.LivingArea != 142.5 {
		t.Fatalf("expected living area 142.5, got %v", ext.LivingArea)
	}
	if ext.PlotArea != 850 {
		t.Fatalf("expected plot area 850, got %v", ext.PlotArea)
	}
	if ext.Year != 1978 {
		t.Fatalf("expected year 1978, got %d", ext.Year)
	}
}

func TestExtractDescriptionSkipsBoilerplate(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<p>Diese Webseite verwendet Cookie Banner und Tracker, bitte stimmen Sie der Nutzung zu.</p>
		<p>Das freistehende Einfamilienhaus überzeugt durch seine ruhige Lage am Ortsrand und den gepflegten Garten.</p>
	</body></html>`)
	ext := Extract(doc, "https://example.org/listing")

	if strings.Contains(strings.ToLower(ext.Description), "cookie") {
		t.Fatalf("description contains boilerplate: %q", ext.Description)
	}
	if !strings.Contains(ext.Description, "Einfamilienhaus") {
		t.Fatalf("description misses real content: %q", ext.Description)
	}
}

func TestExtractImagePrefersCoverBackground(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<img src="https://example.org/assets/brand-logo-banner.png">
		<div title="Titelbild" style="background-image: url('/uploads/cover.jpg')"></div>
		<img src="https://example.org/uploads/gallery/photo-2.jpg">
	</body></html>`)
	ext := Extract(doc, "https://viewer.example.org/public/exposee/abc")

	if ext.ImageURL != "https://viewer.example.org/uploads/cover.jpg" {
		t.Fatalf("unexpected image url: %q", ext.ImageURL)
	}
}

func TestExtractImageSrcsetLargestCandidate(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<img srcset="https://cdn.example.org/small.jpg 400w, https://cdn.example.org/large.jpg 1600w">
	</body></html>`)
	ext := Extract(doc, "https://viewer.example.org/public/exposee/abc")

	if ext.ImageURL != "https://cdn.example.org/large.jpg" {
		t.Fatalf("unexpected image url: %q", ext.ImageURL)
	}
}

func TestExtractImageSkipsDecorative(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<img src="https://example.org/static/favicon-and-logo-sprite.png">
	</body></html>`)
	ext := Extract(doc, "https://viewer.example.org/public/exposee/abc")

	if ext.ImageURL != "" {
		t.Fatalf("expected no image, got %q", ext.ImageURL)
	}
}

func TestSeedSubcategoryPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  domain.Subcategory
	}{
		{"Baugrundstück in ruhiger Lage", domain.SubcategoryGrundstück},
		{"Haus auf großem Grundstück", domain.SubcategoryGrundstück},
		{"Bürofläche mit Lagerhalle", domain.SubcategoryGewerbe},
		{"Helle Eigentumswohnung", domain.SubcategoryWohnung},
		{"Reihenhaus am Stadtrand", domain.SubcategoryHaus},
		{"Objekt Nr. 42", domain.SubcategoryHaus},
	}

	for _, tt := range tests {
		if got := seedSubcategory(tt.title, ""); got != tt.want {
			t.Errorf("seedSubcategory(%q) = %s; want %s", tt.title, got, tt.want)
		}
	}
}

func TestTruncateAtRuneKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// "Grüße" is 7 bytes; byte 5 sits inside the two-byte ß.
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Grüße", 7, "Grüße"},
		{"Grüße", 5, "Grü"},
		{"Grüße", 4, "Grü"},
		{"Grüße", 3, "Gr"},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		got := truncateAtRune(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncateAtRune(%q, %d) = %q; want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateAtRune(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}

func TestParseGermanNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"450.000", 450000},
		{"1.250", 1250},
		{"389.500,50", 389500.50},
		{"99", 99},
	}

	for _, tt := range tests {
		if got := parseGermanNumber(tt.in); got != tt.want {
			t.Errorf("parseGermanNumber(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
