package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"immosync/internal/domain"
	"immosync/internal/ports"
)

const classifierSystemPrompt = "Du bist ein Experte für Immobilienklassifizierung. " +
	"Antworte mit exakt einem Wort und ohne weitere Erklärung."

// Classifier assigns the subcategory label: cache first, then a single
// constrained model call, then a deterministic keyword heuristic. It never
// fails; the heuristic is always available as a last resort.
type Classifier struct {
	cache  *Cache
	model  ports.Completer
	logger *slog.Logger
}

// NewClassifier wires the cache and an optional model capability.
func NewClassifier(cache *Cache, model ports.Completer, logger *slog.Logger) *Classifier {
	return &Classifier{cache: cache, model: model, logger: logger}
}

// Classify returns the subcategory for a listing. A cache hit is
// authoritative: it guarantees idempotence across runs without re-spending
// model calls. The seed is the extractor's full-page keyword match and
// serves as the last-resort default when title and description carry no
// signal of their own.
func (c *Classifier) Classify(ctx context.Context, objectKey, title, description string, seed domain.Subcategory) domain.Subcategory {
	if objectKey != "" && c.cache != nil {
		if sc, ok := c.cache.Subcategory(objectKey); ok {
			return sc
		}
	}

	if c.model != nil {
		if sc, ok := c.classifyWithModel(ctx, title, description); ok {
			return sc
		}
	}

	return scoreSubcategory(title, description, seed)
}

func (c *Classifier) classifyWithModel(ctx context.Context, title, description string) (domain.Subcategory, bool) {
	prompt := fmt.Sprintf(
		"Ordne diese Immobilienanzeige einer Kategorie zu.\n\nTITEL: %s\n\nBESCHREIBUNG:\n%s\n\n"+
			"Antworte mit exakt einem der folgenden Wörter: Wohnung, Haus, Gewerbe, Grundstück",
		title, clip(description, 2000),
	)

	answer, err := c.model.Complete(ctx, classifierSystemPrompt, prompt, 10, 0.0)
	if err != nil {
		c.warn("classification model call failed", "error", err)
		return "", false
	}

	sc, ok := domain.ParseSubcategory(answer)
	if !ok {
		c.warn("classification model returned invalid label", "answer", answer)
		return "", false
	}
	return sc, true
}

// scoreSubcategory counts keyword hits per subcategory in title plus
// description. Grundstück wins on any hit: land listings are unambiguous
// and must not be miscategorized as houses. Gewerbe needs two hits because
// commercial keywords overlap with generic business vocabulary. With no
// hits at all the extraction seed decides; it has seen the full page text,
// not just the clipped description.
func scoreSubcategory(title, description string, seed domain.Subcategory) domain.Subcategory {
	haystack := strings.ToLower(title + " " + description)

	scores := map[domain.Subcategory]int{}
	for sc, keywords := range domain.SubcategoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				scores[sc]++
			}
		}
	}

	if scores[domain.SubcategoryGrundstück] >= 1 {
		return domain.SubcategoryGrundstück
	}
	if scores[domain.SubcategoryGewerbe] >= 2 {
		return domain.SubcategoryGewerbe
	}
	if scores[domain.SubcategoryWohnung] > scores[domain.SubcategoryHaus] {
		return domain.SubcategoryWohnung
	}
	if scores[domain.SubcategoryHaus] >= 1 {
		return domain.SubcategoryHaus
	}
	if seed != "" {
		return seed
	}
	return domain.SubcategoryHaus
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// clip truncates to at most max bytes, backing up to a rune boundary so
// umlauts at the cut never become invalid UTF-8.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
