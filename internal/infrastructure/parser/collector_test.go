package parser

import (
	"testing"

	"immosync/internal/domain"
)

const overviewHTML = `<html><body>
	<a href="/impressum/">Impressum</a>
	<h2>Eigentumswohnungen</h2>
	<a href="/schoene-wohnung-am-park/">Wohnung am Park</a>
	<a href="/schoene-wohnung-am-park/?utm=x#gallery">Wohnung am Park (Duplikat)</a>
	<h3>Mietobjekte</h3>
	<a href="https://example.org/buero-zur-miete/">Büro zur Miete</a>
	<h2>Gewerbeimmobilien</h2>
	<a href="/lagerhalle-gewerbegebiet/">Lagerhalle</a>
	<a href="https://other-site.example.com/extern/">Externer Link</a>
	<a href="/datenschutz/">Datenschutz</a>
</body></html>`

func TestCollectDetailLinks(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, overviewHTML)
	links := CollectDetailLinks(doc, "https://example.org")

	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d: %+v", len(links), links)
	}

	wohnung := links[0]
	if wohnung.URL != "https://example.org/schoene-wohnung-am-park/" {
		t.Fatalf("unexpected first url: %s", wohnung.URL)
	}
	if wohnung.Category != domain.CategoryKaufen || wohnung.Subcategory != domain.SubcategoryWohnung {
		t.Fatalf("unexpected hints for wohnung: %s/%s", wohnung.Category, wohnung.Subcategory)
	}

	miete := links[1]
	if miete.Category != domain.CategoryMieten {
		t.Fatalf("expected Mieten hint, got %s", miete.Category)
	}
	if miete.Subcategory != "" {
		t.Fatalf("rental section must not hint a subcategory, got %s", miete.Subcategory)
	}

	gewerbe := links[2]
	if gewerbe.Subcategory != domain.SubcategoryGewerbe {
		t.Fatalf("expected Gewerbe hint, got %s", gewerbe.Subcategory)
	}
	if gewerbe.Category != "" {
		t.Fatalf("commercial section must not hint a category, got %s", gewerbe.Category)
	}
}

func TestCollectDetailLinksDefaultsWithoutHeading(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><a href="/irgendein-objekt/">Objekt</a></body></html>`)
	links := CollectDetailLinks(doc, "https://example.org")

	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].Category != domain.CategoryKaufen || links[0].Subcategory != domain.SubcategoryHaus {
		t.Fatalf("unexpected defaults: %s/%s", links[0].Category, links[0].Subcategory)
	}
}
