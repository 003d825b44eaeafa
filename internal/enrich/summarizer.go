package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"immosync/internal/domain"
	"immosync/internal/ports"
)

const summarizerSystemPrompt = "Du bist ein Experte für Immobilienanalyse. " +
	"Erstelle präzise, strukturierte Kurzbeschreibungen. Halte dich EXAKT an das vorgegebene Format."

// summaryFields is the fixed whitelist and canonical emission order of the
// short-form summary. Off-whitelist model output is discarded.
var summaryFields = []string{
	"Objekttyp",
	"Zimmer",
	"Wohnfläche",
	"Grundstück",
	"Baujahr",
	"Kategorie",
	"Preis",
	"Standort",
	"Energieeffizienz",
}

// placeholderValues are tokens a model emits for "unknown"; lines carrying
// them are dropped so the summary never contains filler.
var placeholderValues = map[string]struct{}{
	"-": {}, "unknown": {}, "unbekannt": {}, "n/a": {}, "k.a.": {},
}

// Summarizer produces the fixed-schema short summary: one `Field: value`
// line per known fact, cache-first, model-assisted, gap-filled from scraped
// data. It never fails.
type Summarizer struct {
	cache  *Cache
	model  ports.Completer
	logger *slog.Logger
}

// NewSummarizer wires the cache and an optional model capability.
func NewSummarizer(cache *Cache, model ports.Completer, logger *slog.Logger) *Summarizer {
	return &Summarizer{cache: cache, model: model, logger: logger}
}

// Summarize returns the summary block for a record. A cache hit is returned
// unconditionally so already-published summaries stay stable across runs.
func (s *Summarizer) Summarize(ctx context.Context, record domain.PropertyRecord) string {
	if record.ObjectKey != "" && s.cache != nil {
		if cached, ok := s.cache.Summary(record.ObjectKey); ok {
			return cached
		}
	}

	values := map[string]string{}
	if s.model != nil {
		output, err := s.model.Complete(ctx, summarizerSystemPrompt, summaryPrompt(record), 500, 0.1)
		if err != nil {
			s.warn("summary model call failed, falling back to scraped data", "error", err)
		} else {
			values = parseModelSummary(output)
		}
	}

	gapFill(values, record)

	var lines []string
	for _, field := range summaryFields {
		if v := values[field]; v != "" {
			lines = append(lines, field+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func summaryPrompt(record domain.PropertyRecord) string {
	var extra []string
	if record.Rooms > 0 {
		extra = append(extra, fmt.Sprintf("Zimmer: %d", record.Rooms))
	}
	if record.LivingArea > 0 {
		extra = append(extra, fmt.Sprintf("Wohnfläche: %s m²", formatArea(record.LivingArea)))
	}
	if record.PlotArea > 0 {
		extra = append(extra, fmt.Sprintf("Grundstück: %s m²", formatArea(record.PlotArea)))
	}
	if record.Year > 0 {
		extra = append(extra, fmt.Sprintf("Baujahr: %d", record.Year))
	}
	extraText := "Keine zusätzlichen Daten"
	if len(extra) > 0 {
		extraText = strings.Join(extra, "\n")
	}

	price := "Nicht angegeben"
	if record.Price > 0 {
		price = formatPrice(record.Price)
	}
	location := record.Location
	if location == "" {
		location = "Nicht angegeben"
	}

	return fmt.Sprintf(`Analysiere diese Immobilienanzeige und erstelle eine strukturierte Kurzbeschreibung für eine Suchfunktion.

TITEL: %s
KATEGORIE: %s
PREIS: %s
STANDORT: %s

ZUSÄTZLICHE DATEN (aus Scraping):
%s

BESCHREIBUNG:
%s

Erstelle eine Kurzbeschreibung EXAKT in diesem Format mit genau diesen Feldern:

Objekttyp: [Einfamilienhaus/Mehrfamilienhaus/Eigentumswohnung/Baugrundstück/Reihenhaus/Doppelhaushälfte/Wohnung/etc.]
Zimmer: [Anzahl]
Wohnfläche: [X m²]
Grundstück: [X m²]
Baujahr: [Jahr]
Kategorie: [Kaufen/Mieten]
Preis: [Preis in €]
Standort: [PLZ Ort]
Energieeffizienz: [Klasse A+ bis H]

WICHTIG:
- Lasse eine Zeile KOMPLETT weg wenn der Fakt nicht explizit vorliegt
- Erfinde NIEMALS Werte
- Zahlen ohne "ca." (z.B. "180 m²" statt "ca. 180 m²")
- Preis im Format "XXX.XXX €"`,
		record.Title, record.Category, price, location, extraText, clip(record.Description, 3000))
}

// parseModelSummary reads `Field: value` lines, keeping only whitelisted
// fields with non-placeholder values.
func parseModelSummary(output string) map[string]string {
	allowed := map[string]struct{}{}
	for _, f := range summaryFields {
		allowed[f] = struct{}{}
	}

	values := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if _, ok := allowed[key]; !ok {
			continue
		}
		if _, placeholder := placeholderValues[strings.ToLower(value)]; placeholder || value == "" {
			continue
		}
		values[key] = value
	}
	return values
}

// gapFill substitutes scraped values for fields the model left open,
// applying unit formatting.
func gapFill(values map[string]string, record domain.PropertyRecord) {
	fill := func(field, value string) {
		if values[field] == "" && value != "" {
			values[field] = value
		}
	}

	if record.Rooms > 0 {
		fill("Zimmer", strconv.Itoa(record.Rooms))
	}
	if record.LivingArea > 0 {
		fill("Wohnfläche", withUnit(formatArea(record.LivingArea)))
	}
	if record.PlotArea > 0 {
		fill("Grundstück", withUnit(formatArea(record.PlotArea)))
	}
	if record.Year > 0 {
		fill("Baujahr", strconv.Itoa(record.Year))
	}
	if record.Price > 0 {
		fill("Preis", formatPrice(record.Price))
	}
	fill("Standort", record.Location)
	fill("Kategorie", string(record.Category))
}

func withUnit(v string) string {
	if strings.Contains(v, "m²") {
		return v
	}
	return v + " m²"
}

func formatArea(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatPrice renders an integer euro amount with German thousands
// separators: 450000 → "450.000 €".
func formatPrice(v float64) string {
	digits := strconv.FormatInt(int64(v), 10)
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	return strings.Join(parts, ".") + " €"
}

func (s *Summarizer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
