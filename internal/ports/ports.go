package ports

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"immosync/internal/domain"
)

// Fetcher retrieves pages as parsed documents, retrying with backoff.
type Fetcher interface {
	Get(ctx context.Context, url string) (*goquery.Document, error)
	// Probe checks upfront reachability of the source site.
	Probe(ctx context.Context, url string) error
}

// RecordStore is the remote tabular store the reconciler mutates.
type RecordStore interface {
	ListAll(ctx context.Context) ([]domain.RemoteRecord, error)
	BatchCreate(ctx context.Context, records []map[string]any) error
	BatchUpdate(ctx context.Context, updates []domain.RecordUpdate) error
	BatchDelete(ctx context.Context, ids []string) error
}

// Completer issues a single synchronous model call. Failure propagates to
// the caller's fallback; there is no internal retry.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Archive keeps an append-only history of assembled records per run.
type Archive interface {
	SaveRun(ctx context.Context, runID string, records []domain.PropertyRecord) error
}

// Exporter writes the surviving record set to a flat tabular file.
type Exporter interface {
	Write(records []domain.PropertyRecord) error
}
