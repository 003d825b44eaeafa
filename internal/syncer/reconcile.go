package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"strings"

	"immosync/internal/domain"
)

// Mode selects the consistency strategy of a sync run.
type Mode int

const (
	// ModeFullReplace deletes every existing record and recreates the
	// desired set. Exact mirror, but not crash-safe: a failure between the
	// delete and create phases leaves the store empty.
	ModeFullReplace Mode = iota
	// ModeIncremental computes the minimal create/update/delete set and is
	// safe under partial failure (stale rather than missing data).
	ModeIncremental
)

// Plan is the mutation set reconcile computed for the remote store.
type Plan struct {
	Create    []map[string]any
	Update    []domain.RecordUpdate
	DeleteIDs []string
}

// alwaysAllowed fields bypass allow-list filtering. The generated summary
// may be the only populated column on an otherwise-sparse remote schema.
var alwaysAllowed = map[string]struct{}{
	domain.FieldKurzbeschreibung: {},
}

// UniqueKey derives the reconciliation join key: object key, then source
// URL, then a content hash. The fallback chain guarantees every record gets
// a deterministic key, stable across runs as long as either the object key
// or the URL is stable.
func UniqueKey(fields map[string]any) string {
	if obj := strings.TrimSpace(stringField(fields, domain.FieldObjektnummer)); obj != "" {
		return "obj:" + obj
	}
	if url := strings.TrimSpace(stringField(fields, domain.FieldWebseite)); url != "" {
		return "url:" + url
	}
	return "hash:" + contentHash(fields)
}

// Reconcile diffs the desired record set against the store's existing set
// and returns the mutation plan for the selected mode. The allowed set
// restricts which fields are sent to the store; an empty set means no
// filtering.
func Reconcile(desired []map[string]any, existing []domain.RemoteRecord, mode Mode, allowed map[string]struct{}) Plan {
	deduped, order := dedupeDesired(desired, allowed)

	if mode == ModeFullReplace {
		plan := Plan{}
		for _, rec := range existing {
			plan.DeleteIDs = append(plan.DeleteIDs, rec.ID)
		}
		for _, key := range order {
			plan.Create = append(plan.Create, deduped[key])
		}
		return plan
	}

	existingByKey := map[string]domain.RemoteRecord{}
	for _, rec := range existing {
		existingByKey[UniqueKey(rec.Fields)] = rec
	}

	plan := Plan{}
	keep := map[string]struct{}{}
	for _, key := range order {
		fields := deduped[key]
		old, ok := existingByKey[key]
		if !ok {
			plan.Create = append(plan.Create, fields)
			continue
		}
		keep[key] = struct{}{}
		if diff := fieldDiff(old.Fields, fields); len(diff) > 0 {
			plan.Update = append(plan.Update, domain.RecordUpdate{ID: old.ID, Fields: diff})
		}
	}

	for _, rec := range existing {
		if _, kept := keep[UniqueKey(rec.Fields)]; !kept {
			plan.DeleteIDs = append(plan.DeleteIDs, rec.ID)
		}
	}

	return plan
}

// dedupeDesired collapses desired records sharing a key, keeping the one
// with the longer description as a proxy for the more completely scraped
// copy. Ties keep the first-seen record; first-seen order is preserved.
func dedupeDesired(desired []map[string]any, allowed map[string]struct{}) (map[string]map[string]any, []string) {
	deduped := map[string]map[string]any{}
	var order []string

	for _, fields := range desired {
		sanitized := sanitize(fields, allowed)
		key := UniqueKey(fields)
		prev, seen := deduped[key]
		if !seen {
			deduped[key] = sanitized
			order = append(order, key)
			continue
		}
		if len(stringField(sanitized, domain.FieldBeschreibung)) > len(stringField(prev, domain.FieldBeschreibung)) {
			deduped[key] = sanitized
		}
	}

	return deduped, order
}

// fieldDiff returns only the fields whose value differs from the existing
// record. An empty diff means a true no-op: no update gets scheduled.
func fieldDiff(old, fresh map[string]any) map[string]any {
	diff := map[string]any{}
	for field, value := range fresh {
		if !reflect.DeepEqual(old[field], value) {
			diff[field] = value
		}
	}
	return diff
}

func sanitize(fields map[string]any, allowed map[string]struct{}) map[string]any {
	if len(allowed) == 0 {
		return fields
	}
	out := map[string]any{}
	for field, value := range fields {
		if _, ok := allowed[field]; ok {
			out[field] = value
			continue
		}
		if _, ok := alwaysAllowed[field]; ok {
			out[field] = value
		}
	}
	return out
}

// IsInvalid flags a partially-extracted record: missing both title and
// source URL, or fewer than three populated fields overall.
func IsInvalid(fields map[string]any) bool {
	title := strings.TrimSpace(stringField(fields, domain.FieldTitel))
	url := strings.TrimSpace(stringField(fields, domain.FieldWebseite))
	return (title == "" && url == "") || populatedFieldCount(fields) < 3
}

// SweepInvalid returns the store ids of invalid records that slipped
// through earlier runs.
func SweepInvalid(existing []domain.RemoteRecord) []string {
	var ids []string
	for _, rec := range existing {
		if IsInvalid(rec.Fields) {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func populatedFieldCount(fields map[string]any) int {
	count := 0
	for _, value := range fields {
		if isPopulated(value) {
			count++
		}
	}
	return count
}

func isPopulated(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case bool:
		return v
	default:
		return true
	}
}

func contentHash(fields map[string]any) string {
	// json.Marshal sorts map keys, so the hash is order-independent.
	raw, err := json.Marshal(fields)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
