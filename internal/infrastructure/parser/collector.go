package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"immosync/internal/domain"
)

// sectionHint maps an overview-page section heading onto category hints.
// Empty values mean the heading carries no signal for that dimension
// (commercial sections derive the category from the price later, rental
// sections derive the subcategory from the title).
type sectionHint struct {
	marker      string
	category    domain.Category
	subcategory domain.Subcategory
}

var sectionHints = []sectionHint{
	{"einfamilienhaus", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"einfamilienhäuser", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"doppelhaushälfte", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"doppelhaushälften", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"zweifamilienhaus", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"zweifamilienhäuser", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"mehrfamilienhaus", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"mehrfamilienhäuser", domain.CategoryKaufen, domain.SubcategoryHaus},
	{"eigentumswohnung", domain.CategoryKaufen, domain.SubcategoryWohnung},
	{"eigentumswohnungen", domain.CategoryKaufen, domain.SubcategoryWohnung},
	{"gewerbeimmobilie", "", domain.SubcategoryGewerbe},
	{"gewerbeimmobilien", "", domain.SubcategoryGewerbe},
	{"mietobjekt", domain.CategoryMieten, ""},
	{"mietobjekte", domain.CategoryMieten, ""},
	{"grundstück", domain.CategoryKaufen, domain.SubcategoryGrundstück},
	{"grundstücke", domain.CategoryKaufen, domain.SubcategoryGrundstück},
	{"neubau", domain.CategoryKaufen, domain.SubcategoryHaus},
}

// navigationPaths are overview links that are site chrome, not listings.
var navigationPaths = []string{
	"/startseite", "/warum-wir", "/immobilien-ankauf", "/immobilienbewertung",
	"/aktuelle-angebote", "/kontakt", "/impressum", "/datenschutz",
	"/agb", "/cookie",
}

// CollectDetailLinks walks the overview page in document order, keeping
// internal non-navigation links and tagging each with the category hints of
// its nearest preceding section heading.
func CollectDetailLinks(doc *goquery.Document, baseURL string) []domain.DetailLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	listURL := strings.TrimSuffix(baseURL, "/")

	var (
		links       []domain.DetailLink
		seen        = map[string]struct{}{}
		currentHint = ""
	)

	doc.Find("h2, h3, h4, a[href]").Each(func(_ int, s *goquery.Selection) {
		if s.Is("h2") || s.Is("h3") || s.Is("h4") {
			currentHint = strings.ToLower(normalize(s.Text()))
			return
		}

		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, "/") && !strings.Contains(href, base.Host) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		abs.RawQuery = ""
		full := abs.String()

		if full == listURL || full == listURL+"/" || strings.TrimSuffix(full, "/") == listURL {
			return
		}
		if _, dup := seen[full]; dup {
			return
		}
		if isNavigationLink(full) {
			return
		}

		seen[full] = struct{}{}
		links = append(links, applyHint(full, currentHint))
	})

	return links
}

func isNavigationLink(full string) bool {
	lower := strings.ToLower(full)
	for _, skip := range navigationPaths {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	parsed, err := url.Parse(full)
	if err != nil {
		return true
	}
	return parsed.Path == "" || parsed.Path == "/"
}

func applyHint(full, heading string) domain.DetailLink {
	// Defaults when headings give no signal: sale listings dominate.
	link := domain.DetailLink{
		URL:         full,
		Category:    domain.CategoryKaufen,
		Subcategory: domain.SubcategoryHaus,
	}
	if heading == "" {
		return link
	}
	for _, hint := range sectionHints {
		if strings.Contains(heading, hint.marker) {
			link.Category = hint.category
			link.Subcategory = hint.subcategory
			return link
		}
	}
	return link
}
