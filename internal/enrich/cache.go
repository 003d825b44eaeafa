package enrich

import (
	"strings"

	"immosync/internal/domain"
)

// Cache holds enrichment values already published to the remote store,
// keyed by object key. It is populated once per run before any listing is
// processed and read-only afterwards, which makes repeated runs idempotent
// and keeps already-paid model output stable.
type Cache struct {
	summaries     map[string]string
	subcategories map[string]domain.Subcategory
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{
		summaries:     map[string]string{},
		subcategories: map[string]domain.Subcategory{},
	}
}

// Populate ingests the remote store's current contents. Rows without an
// object key cannot be joined and are skipped.
func (c *Cache) Populate(records []domain.RemoteRecord) {
	for _, rec := range records {
		key := strings.TrimSpace(fieldString(rec.Fields, domain.FieldObjektnummer))
		if key == "" {
			continue
		}
		if summary := strings.TrimSpace(fieldString(rec.Fields, domain.FieldKurzbeschreibung)); summary != "" {
			c.summaries[key] = summary
		}
		if sc, ok := domain.ParseSubcategory(fieldString(rec.Fields, domain.FieldUnterkategorie)); ok {
			c.subcategories[key] = sc
		}
	}
}

// Summary returns the cached summary for an object key.
func (c *Cache) Summary(key string) (string, bool) {
	s, ok := c.summaries[key]
	return s, ok
}

// Subcategory returns the cached subcategory for an object key.
func (c *Cache) Subcategory(key string) (domain.Subcategory, bool) {
	sc, ok := c.subcategories[key]
	return sc, ok
}

// Len reports how many object keys carry at least one cached value.
func (c *Cache) Len() int {
	keys := map[string]struct{}{}
	for k := range c.summaries {
		keys[k] = struct{}{}
	}
	for k := range c.subcategories {
		keys[k] = struct{}{}
	}
	return len(keys)
}

func fieldString(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
