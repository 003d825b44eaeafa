package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"immosync/internal/domain"
	"immosync/internal/enrich"
	"immosync/internal/infrastructure/parser"
	"immosync/internal/ports"
	"immosync/internal/syncer"
)

// Below this price a commercial listing is assumed to be a rental offer;
// commercial sale prices start well above it.
const commercialRentCeiling = 30000

// PipelineDeps wires all driven adapters into the scrape-and-sync run.
// Store, Model and Archive are optional: absent credentials degrade the run
// gracefully instead of failing it.
type PipelineDeps struct {
	Fetcher    ports.Fetcher
	Store      ports.RecordStore
	Archive    ports.Archive
	Exporter   ports.Exporter
	Cache      *enrich.Cache
	Classifier *enrich.Classifier
	Summarizer *enrich.Summarizer
	Logger     *slog.Logger

	BaseURL     string
	ListURL     string
	ViewerHost  string
	FullReplace bool
}

// Pipeline implements one full extraction-normalization-reconciliation run.
type Pipeline struct {
	fetcher    ports.Fetcher
	store      ports.RecordStore
	archive    ports.Archive
	exporter   ports.Exporter
	cache      *enrich.Cache
	classifier *enrich.Classifier
	summarizer *enrich.Summarizer
	logger     *slog.Logger

	baseURL     string
	listURL     string
	viewerHost  string
	fullReplace bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		fetcher:     deps.Fetcher,
		store:       deps.Store,
		archive:     deps.Archive,
		exporter:    deps.Exporter,
		cache:       deps.Cache,
		classifier:  deps.Classifier,
		summarizer:  deps.Summarizer,
		logger:      deps.Logger,
		baseURL:     deps.BaseURL,
		listURL:     deps.ListURL,
		viewerHost:  deps.ViewerHost,
		fullReplace: deps.FullReplace,
	}
}

// Run executes one scrape pass. Listings are processed sequentially and
// best-effort: a failed fetch or enrichment skips the listing, never the
// run. Only total site unreachability ends the run early, and that is a
// clean exit with an empty export, not a failure.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)
	log.Info("starting run", "list_url", p.listURL, "full_replace", p.fullReplace)

	if err := p.fetcher.Probe(ctx, p.listURL); err != nil {
		log.Warn("source site unreachable, writing empty export", "error", err)
		return p.export(nil, log)
	}

	p.populateCache(ctx, log)

	overview, err := p.fetcher.Get(ctx, p.listURL)
	if err != nil {
		log.Warn("overview page not retrievable, writing empty export", "error", err)
		return p.export(nil, log)
	}

	links := parser.CollectDetailLinks(overview, p.baseURL)
	log.Info("collected detail links", "count", len(links))

	var records []domain.PropertyRecord
	for i, link := range links {
		record, ok := p.scrapeListing(ctx, link, log)
		if !ok {
			continue
		}
		log.Info("assembled record",
			"progress", fmt.Sprintf("%d/%d", i+1, len(links)),
			"key", record.ObjectKey,
			"category", record.Category,
			"subcategory", record.Subcategory)
		records = append(records, record)
	}

	// Partially-extracted records never reach the export or the store.
	valid := records[:0:0]
	for _, rec := range records {
		if syncer.IsInvalid(rec.Fields()) {
			log.Warn("dropping invalid record", "key", rec.ObjectKey, "url", rec.SourceURL)
			continue
		}
		valid = append(valid, rec)
	}

	if err := p.export(valid, log); err != nil {
		return err
	}

	if p.archive != nil {
		if err := p.archive.SaveRun(ctx, runID, valid); err != nil {
			log.Error("archive write failed", "error", err)
		}
	}

	if p.store == nil {
		log.Info("store not configured, sync skipped")
		return nil
	}
	return p.sync(ctx, valid, log)
}

func (p *Pipeline) populateCache(ctx context.Context, log *slog.Logger) {
	if p.store == nil || p.cache == nil {
		return
	}
	// Nothing survives a full replace, so there is nothing worth caching.
	if p.fullReplace {
		log.Info("full-replace mode, enrichment cache skipped")
		return
	}
	existing, err := p.store.ListAll(ctx)
	if err != nil {
		log.Warn("cache populate failed, enrichment runs uncached", "error", err)
		return
	}
	p.cache.Populate(existing)
	log.Info("enrichment cache populated", "entries", p.cache.Len())
}

// scrapeListing walks one detail page down to its listing viewer and
// assembles the canonical record.
func (p *Pipeline) scrapeListing(ctx context.Context, link domain.DetailLink, log *slog.Logger) (domain.PropertyRecord, bool) {
	detail, err := p.fetcher.Get(ctx, link.URL)
	if err != nil {
		log.Warn("detail page fetch failed, skipping listing", "url", link.URL, "error", err)
		return domain.PropertyRecord{}, false
	}

	viewerURL, ok := parser.FindViewerURL(detail, p.viewerHost)
	if !ok {
		log.Warn("no listing viewer found, skipping", "url", link.URL)
		return domain.PropertyRecord{}, false
	}

	viewer, err := p.fetcher.Get(ctx, viewerURL)
	if err != nil {
		log.Warn("listing viewer fetch failed, skipping listing", "url", link.URL, "error", err)
		return domain.PropertyRecord{}, false
	}

	ext := parser.Extract(viewer, viewerURL)
	record := p.assemble(ctx, link, viewerURL, ext)
	return record, true
}

// assemble merges the extraction with the overview hints and runs the
// enrichment steps. An explicit rent figure always wins the category; the
// overview heading wins otherwise.
func (p *Pipeline) assemble(ctx context.Context, link domain.DetailLink, viewerURL string, ext domain.Extraction) domain.PropertyRecord {
	record := domain.PropertyRecord{
		ObjectKey:   parser.ObjectKey(viewerURL, link.URL),
		Title:       ext.Title,
		Description: ext.Description,
		Location:    ext.Location,
		Rooms:       ext.Rooms,
		LivingArea:  ext.LivingArea,
		PlotArea:    ext.PlotArea,
		Year:        ext.Year,
		ImageURL:    ext.ImageURL,
		SourceURL:   link.URL,
		Price:       ext.Price,
	}

	rentFound := ext.RentPrice > 0
	if rentFound {
		record.Price = ext.RentPrice
	}

	record.Subcategory = link.Subcategory
	if record.Subcategory == "" {
		record.Subcategory = p.classifier.Classify(ctx, record.ObjectKey, record.Title, record.Description, ext.Subcategory)
	}

	switch {
	case rentFound:
		record.Category = domain.CategoryMieten
	case link.Category != "":
		record.Category = link.Category
	case record.Subcategory == domain.SubcategoryGewerbe && record.Price > 0 && record.Price < commercialRentCeiling:
		record.Category = domain.CategoryMieten
	default:
		record.Category = domain.CategoryKaufen
	}

	record.Summary = p.summarizer.Summarize(ctx, record)
	return record
}

func (p *Pipeline) export(records []domain.PropertyRecord, log *slog.Logger) error {
	if p.exporter == nil {
		return nil
	}
	if err := p.exporter.Write(records); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Info("export written", "rows", len(records))
	return nil
}

// sync applies the reconciliation plan and runs the validity sweep.
func (p *Pipeline) sync(ctx context.Context, records []domain.PropertyRecord, log *slog.Logger) error {
	desired := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		desired = append(desired, rec.Fields())
	}

	existing, err := p.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list existing records: %w", err)
	}

	mode := syncer.ModeIncremental
	if p.fullReplace {
		mode = syncer.ModeFullReplace
	}

	plan := syncer.Reconcile(desired, existing, mode, nil)
	log.Info("reconciliation plan",
		"mode", modeName(mode),
		"create", len(plan.Create),
		"update", len(plan.Update),
		"delete", len(plan.DeleteIDs))

	// Full replace deletes before creating; the crash window between the
	// phases is an accepted limitation of that mode.
	if p.fullReplace {
		if err := p.store.BatchDelete(ctx, plan.DeleteIDs); err != nil {
			return fmt.Errorf("delete existing records: %w", err)
		}
		if err := p.store.BatchCreate(ctx, plan.Create); err != nil {
			return fmt.Errorf("create records: %w", err)
		}
	} else {
		if err := p.store.BatchCreate(ctx, plan.Create); err != nil {
			return fmt.Errorf("create records: %w", err)
		}
		if err := p.store.BatchUpdate(ctx, plan.Update); err != nil {
			return fmt.Errorf("update records: %w", err)
		}
		if err := p.store.BatchDelete(ctx, plan.DeleteIDs); err != nil {
			return fmt.Errorf("delete stale records: %w", err)
		}
	}

	return p.sweep(ctx, log)
}

func (p *Pipeline) sweep(ctx context.Context, log *slog.Logger) error {
	existing, err := p.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list records for sweep: %w", err)
	}
	invalid := syncer.SweepInvalid(existing)
	if len(invalid) == 0 {
		log.Info("sync complete, no invalid records")
		return nil
	}

	log.Warn("sweeping invalid records", "count", len(invalid), "ids", strings.Join(invalid, ","))
	if err := p.store.BatchDelete(ctx, invalid); err != nil {
		return fmt.Errorf("delete invalid records: %w", err)
	}
	return nil
}

func modeName(mode syncer.Mode) string {
	if mode == syncer.ModeFullReplace {
		return "full-replace"
	}
	return "incremental"
}
