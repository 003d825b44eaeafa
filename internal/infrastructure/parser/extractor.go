package parser

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"immosync/internal/domain"
)

const (
	minTitleLen       = 5
	priceNoiseFloor   = 100
	descriptionMinLen = 50
	descriptionMaxLen = 500
	descriptionBlocks = 5
	descriptionCap    = 5000
	minImageSourceLen = 20
	viewerImageMarker = "propstack"
)

var (
	priceExpr    = regexp.MustCompile(`([\d.,]+)\s*€`)
	rentExpr     = regexp.MustCompile(`(?i)(?:Warmmiete|Kaltmiete|Miete)\s*[:.]?\s*([\d.,]+)\s*€`)
	plzOrtExpr   = regexp.MustCompile(`\b(\d{5})\s+([A-ZÄÖÜ][a-zäöüß\-\s/]+)`)
	inPlzExpr    = regexp.MustCompile(`\bin\s+(\d{5})\s+([A-ZÄÖÜ][a-zäöüß\-]+)`)
	roomsExpr    = regexp.MustCompile(`(?i)(\d+)\s*Zimmer`)
	livingExpr   = regexp.MustCompile(`(?i)(?:ca\.\s*)?(\d+(?:[.,]\d+)?)\s*m²\s*(?:Wohnfläche|Wohnfl)`)
	plotExpr     = regexp.MustCompile(`(?i)(?:ca\.\s*)?(\d+(?:[.,]\d+)?)\s*m²\s*(?:Grundstück|Grundst)`)
	yearExpr     = regexp.MustCompile(`(?i)Baujahr[:\s]+(\d{4})`)
	bgImageExpr  = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var descriptionSkipMarkers = []string{"cookie", "datenschutz", "impressum", "javascript"}

// Extract recovers a best-effort structured record from a listing-viewer
// document. Every field is optional: a signal that every strategy misses
// simply stays at its zero value, never an error.
func Extract(doc *goquery.Document, pageURL string) domain.Extraction {
	fullText := doc.Text()

	ext := domain.Extraction{
		Title:       extractTitle(doc),
		Price:       extractPrice(fullText),
		RentPrice:   extractRent(fullText),
		Location:    extractLocation(doc, fullText),
		Description: extractDescription(doc),
		ImageURL:    extractImage(doc, pageURL),
	}

	if m := roomsExpr.FindStringSubmatch(fullText); m != nil {
		ext.Rooms, _ = strconv.Atoi(m[1])
	}
	if m := livingExpr.FindStringSubmatch(fullText); m != nil {
		ext.LivingArea = parseGermanDecimal(m[1])
	}
	if m := plotExpr.FindStringSubmatch(fullText); m != nil {
		ext.PlotArea = parseGermanDecimal(m[1])
	}
	if m := yearExpr.FindStringSubmatch(fullText); m != nil {
		ext.Year, _ = strconv.Atoi(m[1])
	}

	ext.Subcategory = seedSubcategory(ext.Title, fullText)
	return ext
}

// extractTitle walks heading levels before falling back to the title tag and
// keeps the first non-trivial text.
func extractTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "h2", "title"} {
		title := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalize(s.Text())
			if len(text) > minTitleLen {
				title = text
				return false
			}
			return true
		})
		if title != "" {
			return title
		}
	}
	return ""
}

// extractPrice collects every currency-tagged number, discards values at or
// below the noise floor (room counts, areas) and keeps the maximum: the
// largest currency figure on a listing page is the headline price.
func extractPrice(text string) float64 {
	var best float64
	for _, m := range priceExpr.FindAllStringSubmatch(text, -1) {
		val := parseGermanNumber(m[1])
		if val > priceNoiseFloor && val > best {
			best = val
		}
	}
	return best
}

// extractRent looks for an explicitly rent-labeled figure. An explicit
// Warmmiete/Kaltmiete label is unambiguous evidence that outranks both the
// generic price scan and any overview-page category hint.
func extractRent(text string) float64 {
	for _, m := range rentExpr.FindAllStringSubmatch(text, -1) {
		val := parseGermanNumber(m[1])
		if val > priceNoiseFloor {
			return val
		}
	}
	return 0
}

// locationStrategy is one pure attempt to recover "PLZ Ort" from the page.
type locationStrategy func(doc *goquery.Document, fullText string) string

// locationStrategies are ordered by reliability; the first hit wins.
var locationStrategies = []locationStrategy{
	func(_ *goquery.Document, fullText string) string {
		return formatPlzOrt(plzOrtExpr.FindStringSubmatch(fullText))
	},
	func(doc *goquery.Document, _ string) string {
		loc := ""
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			content, _ := s.Attr("content")
			if m := plzOrtExpr.FindStringSubmatch(content); m != nil {
				loc = formatPlzOrt(m)
				return false
			}
			return true
		})
		return loc
	},
	func(_ *goquery.Document, fullText string) string {
		return formatPlzOrt(inPlzExpr.FindStringSubmatch(fullText))
	},
}

func extractLocation(doc *goquery.Document, fullText string) string {
	for _, strategy := range locationStrategies {
		if loc := strategy(doc, fullText); loc != "" {
			return loc
		}
	}
	return ""
}

func formatPlzOrt(m []string) string {
	if m == nil {
		return ""
	}
	return m[1] + " " + strings.TrimSpace(m[2])
}

// extractDescription joins up to five mid-length text blocks, skipping
// boilerplate (cookie banners, legal pages, inline scripts).
func extractDescription(doc *goquery.Document) string {
	var blocks []string
	doc.Find("p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalize(s.Text())
		if len(text) <= descriptionMinLen || len(text) >= descriptionMaxLen {
			return true
		}
		lower := strings.ToLower(text)
		for _, marker := range descriptionSkipMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
		blocks = append(blocks, text)
		return len(blocks) < descriptionBlocks
	})

	return truncateAtRune(strings.Join(blocks, "\n\n"), descriptionCap)
}

// truncateAtRune caps a string at max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// imageStrategy is one pure attempt to recover the cover image URL.
type imageStrategy func(doc *goquery.Document) string

// imageStrategies are ordered by reliability, from the explicitly marked
// cover image down to "any plausible-looking img tag".
var imageStrategies = []imageStrategy{
	coverBackgroundImage,
	vendorBackgroundImage,
	genericBackgroundImage,
	galleryClassImage,
	srcsetImage,
	firstLongImage,
}

func extractImage(doc *goquery.Document, pageURL string) string {
	for _, strategy := range imageStrategies {
		if src := strategy(doc); src != "" {
			return resolveURL(pageURL, src)
		}
	}
	return ""
}

// coverBackgroundImage reads the background-image of an element whose
// accessible title marks it as the cover image.
func coverBackgroundImage(doc *goquery.Document) string {
	found := ""
	doc.Find("[style*='background-image']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title, _ := s.Attr("title")
		label, _ := s.Attr("aria-label")
		marker := strings.ToLower(title + " " + label)
		if !strings.Contains(marker, "titelbild") && !strings.Contains(marker, "cover") {
			return true
		}
		if src := backgroundURL(s); src != "" {
			found = src
			return false
		}
		return true
	})
	return found
}

// vendorBackgroundImage accepts any background-image served from the
// listing viewer's image host.
func vendorBackgroundImage(doc *goquery.Document) string {
	found := ""
	doc.Find("[style*='background-image']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src := backgroundURL(s); src != "" && strings.Contains(strings.ToLower(src), viewerImageMarker) {
			found = src
			return false
		}
		return true
	})
	return found
}

// genericBackgroundImage accepts any background-image that looks like a
// photo and not site chrome.
func genericBackgroundImage(doc *goquery.Document) string {
	found := ""
	doc.Find("[style*='background-image']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := backgroundURL(s)
		if src == "" || isDecorative(src) {
			return true
		}
		lower := strings.ToLower(src)
		if hasImageExtension(lower) || strings.Contains(lower, "image") || strings.Contains(lower, "photo") || strings.Contains(lower, "bild") {
			found = src
			return false
		}
		return true
	})
	return found
}

var galleryClasses = []string{"property-image", "object-image", "main-image", "gallery-image", "slider-image"}

func galleryClassImage(doc *goquery.Document) string {
	for _, class := range galleryClasses {
		found := ""
		doc.Find("img[class*='" + class + "']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if src, ok := s.Attr("src"); ok && src != "" && !isDecorative(src) {
				found = src
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// srcsetImage takes the largest candidate of the first usable responsive
// source set; srcset entries are ordered smallest to largest.
func srcsetImage(doc *goquery.Document) string {
	found := ""
	doc.Find("img[srcset]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		srcset, _ := s.Attr("srcset")
		var last string
		for _, part := range strings.Split(srcset, ",") {
			fields := strings.Fields(strings.TrimSpace(part))
			if len(fields) > 0 {
				last = fields[0]
			}
		}
		if last != "" && !isDecorative(last) {
			found = last
			return false
		}
		return true
	})
	return found
}

func firstLongImage(doc *goquery.Document) string {
	found := ""
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if len(src) > minImageSourceLen && !isDecorative(src) {
			found = src
			return false
		}
		return true
	})
	return found
}

func backgroundURL(s *goquery.Selection) string {
	style, _ := s.Attr("style")
	if m := bgImageExpr.FindStringSubmatch(style); m != nil {
		return m[1]
	}
	return ""
}

func isDecorative(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range []string{"logo", "icon", "avatar", "favicon", "placeholder"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func hasImageExtension(lower string) bool {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ".gif"} {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// seedSubcategory checks keyword presence in title and body text as an
// immediate default before the classifier runs. Grundstück and Gewerbe are
// checked first so a "Haus auf großem Grundstück" does not land under Haus.
func seedSubcategory(title, fullText string) domain.Subcategory {
	haystack := strings.ToLower(title + " " + fullText)
	for _, sc := range []domain.Subcategory{
		domain.SubcategoryGrundstück,
		domain.SubcategoryGewerbe,
		domain.SubcategoryWohnung,
		domain.SubcategoryHaus,
	} {
		for _, kw := range domain.SubcategoryKeywords[sc] {
			if strings.Contains(haystack, kw) {
				return sc
			}
		}
	}
	return domain.SubcategoryHaus
}

// parseGermanNumber reads a figure using the German convention: "." as
// thousands separator, "," as decimal separator.
func parseGermanNumber(s string) float64 {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return val
}

// parseGermanDecimal normalizes a decimal comma only ("120,5" → 120.5).
func parseGermanDecimal(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return val
}

// normalize collapses all whitespace runs to single spaces and trims.
func normalize(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func resolveURL(pageURL, src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
