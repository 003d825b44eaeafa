package domain

import "strings"

// Category says whether a listing is offered for sale or for rent.
type Category string

const (
	CategoryKaufen Category = "Kaufen"
	CategoryMieten Category = "Mieten"
)

// Subcategory is the closed set of property types the pipeline recognizes.
type Subcategory string

const (
	SubcategoryWohnung    Subcategory = "Wohnung"
	SubcategoryHaus       Subcategory = "Haus"
	SubcategoryGewerbe    Subcategory = "Gewerbe"
	SubcategoryGrundstück Subcategory = "Grundstück"
)

// Subcategories lists all valid subcategory values.
var Subcategories = []Subcategory{
	SubcategoryWohnung,
	SubcategoryHaus,
	SubcategoryGewerbe,
	SubcategoryGrundstück,
}

// ParseSubcategory matches a raw string against the closed subcategory set.
// Surrounding whitespace and punctuation are stripped; the match itself is
// case-sensitive so that a model answering "wohnung" is rejected.
func ParseSubcategory(raw string) (Subcategory, bool) {
	cleaned := strings.TrimFunc(raw, func(r rune) bool {
		return r == '.' || r == ',' || r == ':' || r == '"' || r == '\'' || r == ' ' || r == '\n' || r == '\t'
	})
	for _, sc := range Subcategories {
		if cleaned == string(sc) {
			return sc, true
		}
	}
	return "", false
}

// SubcategoryKeywords drive both the extractor's subcategory seed and the
// classifier's scoring heuristic. Matching is case-insensitive substring
// presence over title and body text.
var SubcategoryKeywords = map[Subcategory][]string{
	SubcategoryGrundstück: {"grundstück", "baugrundstück", "bauland"},
	SubcategoryGewerbe:    {"gewerbe", "halle", "büro", "laden", "praxis"},
	SubcategoryWohnung:    {"wohnung", "etw", "eigentumswohnung"},
	SubcategoryHaus: {
		"haus", "einfamilienhaus", "efh", "zweifamilienhaus", "2fh",
		"mehrfamilienhaus", "mfh", "doppelhaushälfte", "dhh",
		"reihenhaus", "villa", "bungalow",
	},
}

// Store field names shared by the record mapper, the reconciler and the
// CSV export. The remote table uses the German column names of the source.
const (
	FieldTitel            = "Titel"
	FieldKategorie        = "Kategorie"
	FieldUnterkategorie   = "Unterkategorie"
	FieldWebseite         = "Webseite"
	FieldObjektnummer     = "Objektnummer"
	FieldBeschreibung     = "Beschreibung"
	FieldKurzbeschreibung = "Kurzbeschreibung"
	FieldBild             = "Bild"
	FieldPreis            = "Preis"
	FieldStandort         = "Standort"
)

// ExportColumns is the fixed CSV column order.
var ExportColumns = []string{
	FieldTitel, FieldKategorie, FieldUnterkategorie, FieldWebseite,
	FieldObjektnummer, FieldBeschreibung, FieldKurzbeschreibung,
	FieldBild, FieldPreis, FieldStandort,
}

// Extraction is the best-effort output of the document extractor. Every
// field is optional; the zero value means the signal was not found.
type Extraction struct {
	Title       string
	Description string
	Price       float64 // largest currency figure on the page
	RentPrice   float64 // explicit Warm-/Kaltmiete figure, outranks Price
	Location    string  // "PLZ Ort"
	Rooms       int
	LivingArea  float64 // m²
	PlotArea    float64 // m²
	Year        int     // construction year
	ImageURL    string
	Subcategory Subcategory // keyword seed, refined later by the classifier
}

// PropertyRecord is the canonical, immutable unit of the domain, built once
// per scrape pass and compared field-by-field during reconciliation.
type PropertyRecord struct {
	ObjectKey   string
	Title       string
	Description string
	Category    Category
	Subcategory Subcategory
	Price       float64
	Location    string
	Rooms       int
	LivingArea  float64
	PlotArea    float64
	Year        int
	ImageURL    string
	Summary     string
	SourceURL   string
}

// Fields maps the record onto the remote store schema. Preis is omitted
// entirely when unknown so that a numeric column never receives a zero.
func (r PropertyRecord) Fields() map[string]any {
	fields := map[string]any{
		FieldTitel:            r.Title,
		FieldKategorie:        string(r.Category),
		FieldUnterkategorie:   string(r.Subcategory),
		FieldWebseite:         r.SourceURL,
		FieldObjektnummer:     r.ObjectKey,
		FieldBeschreibung:     r.Description,
		FieldKurzbeschreibung: r.Summary,
		FieldBild:             r.ImageURL,
		FieldStandort:         r.Location,
	}
	if r.Price > 0 {
		fields[FieldPreis] = r.Price
	}
	return fields
}

// RemoteRecord is a row as currently held by the remote store.
type RemoteRecord struct {
	ID     string
	Fields map[string]any
}

// RecordUpdate carries the field-level diff for one existing record.
type RecordUpdate struct {
	ID     string
	Fields map[string]any
}

// DetailLink is one overview-page entry: a detail-page URL plus the
// category hints derived from its section heading. Empty hint values mean
// the heading gave no signal for that dimension.
type DetailLink struct {
	URL         string
	Category    Category
	Subcategory Subcategory
}
