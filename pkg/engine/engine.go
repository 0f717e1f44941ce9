// Package engine orchestrates a batch run: one browser session,
// serialized row processing, and the enrichment merge. It is the only
// package that wires browser, scraper, and dataset together.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coverscope/harvest/pkg/browser"
	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/dataset"
	"github.com/coverscope/harvest/pkg/logging"
	"github.com/coverscope/harvest/pkg/scraper"
)

// searcher and extractor are the per-row scrape surfaces. Satisfied by
// scraper.SearchExecutor and scraper.DetailExtractor; replaced by
// fakes in tests.
type searcher interface {
	Search(ctx context.Context, query scraper.SearchQuery) ([]scraper.ResultRecord, error)
}

type extractor interface {
	Extract(ctx context.Context, recordID string) scraper.Detail
}

// Engine runs whole input datasets through the portal.
type Engine struct {
	cfg    config.Config
	log    *logging.Logger
	events chan Event
}

// New builds an engine for the given configuration.
func New(cfg config.Config) *Engine {
	log, _ := logging.NewLogger("engine")
	return &Engine{
		cfg:    cfg,
		log:    log,
		events: make(chan Event, eventBuffer),
	}
}

// Run processes every input row against the portal and returns the
// enriched dataset: the original columns verbatim plus the scraped
// detail columns, one output row per input row.
//
// Failures before any row is processed (credential validation, missing
// identifier columns, browser startup, login) are batch-fatal and
// return an error with no dataset. Once row processing starts, per-row
// failures become error rows and the merged dataset is always
// returned; cancellation marks the remaining rows as errors and
// returns the dataset alongside ctx.Err().
func (e *Engine) Run(ctx context.Context, creds config.Credentials, input dataset.Dataset) (dataset.Dataset, error) {
	if err := creds.Validate(); err != nil {
		return dataset.Dataset{}, err
	}

	cols, err := dataset.DetectIdentifierColumns(input.Headers, e.cfg.PolicyColumnPatterns, e.cfg.NameColumnPatterns)
	if err != nil {
		return dataset.Dataset{}, err
	}
	if !cols.HasAny() {
		return dataset.Dataset{}, fmt.Errorf("input has no policy number or company name column")
	}

	table := scraper.DefaultTable()
	if e.cfg.LocatorFile != "" {
		if table, err = scraper.LoadTable(e.cfg.LocatorFile); err != nil {
			return dataset.Dataset{}, fmt.Errorf("failed to load locator overrides: %w", err)
		}
	}

	mgr := browser.NewManager(e.cfg)
	if err := mgr.Initialize(); err != nil {
		return dataset.Dataset{}, err
	}
	defer mgr.Shutdown()

	session, err := mgr.NewSession()
	if err != nil {
		return dataset.Dataset{}, err
	}

	if err := session.Authenticate(ctx, creds); err != nil {
		return dataset.Dataset{}, fmt.Errorf("authentication failed: %w", err)
	}

	var hybrid *scraper.HybridFetcher
	if e.cfg.Hybrid {
		if cookies, err := session.Cookies(); err == nil {
			hybrid = scraper.NewHybridFetcher(e.cfg, cookies)
			e.log.Infof("hybrid HTTP path enabled with %d session cookies", len(cookies))
		} else {
			e.log.Warnf("cookie export failed, hybrid path disabled: %v", err)
		}
	}

	batchID := uuid.New().String()
	retry := scraper.NewRetrier(scraper.PolicyFromConfig(e.cfg.Retry), session)
	retry.OnReauth = func() {
		e.emit(Event{Type: EventReauthenticated, BatchID: batchID})
	}

	search := scraper.NewSearchExecutor(e.cfg, session, retry, hybrid)
	details := scraper.NewDetailExtractor(e.cfg, session, table, retry, hybrid)

	e.log.Infof("batch %s: %d rows", batchID, len(input.Rows))
	return e.processBatch(ctx, batchID, input, cols, search, details)
}

// processBatch walks the input rows in order against one session.
func (e *Engine) processBatch(ctx context.Context, batchID string, input dataset.Dataset, cols dataset.IdentifierColumns, search searcher, details extractor) (dataset.Dataset, error) {
	total := len(input.Rows)
	e.emit(Event{Type: EventBatchStart, BatchID: batchID, Total: total})

	outcomes := make([]dataset.Outcome, total)
	matched, failed, processed := 0, 0, 0
	var runErr error

	for i := range input.Rows {
		// Cancellation is honored between rows, never mid-row.
		if err := ctx.Err(); err != nil {
			for j := i; j < total; j++ {
				outcomes[j] = dataset.Outcome{Status: dataset.StatusError, Error: "canceled before processing"}
			}
			runErr = err
			e.log.Warnf("batch %s canceled at row %d/%d", batchID, i, total)
			break
		}

		term, kind := rowQuery(input, cols, i)
		e.emit(Event{Type: EventRowStart, BatchID: batchID, RowIndex: i, Total: total, Term: term})

		outcomes[i] = e.processRow(ctx, search, details, term, kind)
		processed++
		switch outcomes[i].Status {
		case dataset.StatusMatched:
			matched++
		case dataset.StatusError:
			failed++
		}

		e.emit(Event{
			Type:      EventRowDone,
			BatchID:   batchID,
			RowIndex:  i,
			Total:     total,
			Term:      term,
			Status:    outcomes[i].Status,
			Error:     outcomes[i].Error,
			Processed: processed,
			Matched:   matched,
			Failed:    failed,
		})
	}

	merged := dataset.Merge(input, scraper.DetailFieldOrder, outcomes)
	e.emit(Event{
		Type:      EventBatchDone,
		BatchID:   batchID,
		Total:     total,
		Processed: processed,
		Matched:   matched,
		Failed:    failed,
	})
	e.log.Infof("batch %s done: %d processed, %d matched, %d failed", batchID, processed, matched, failed)

	return merged, runErr
}

// processRow runs one search-plus-extract cycle and classifies the
// result. It never returns an error; failures become error outcomes so
// the batch keeps moving.
func (e *Engine) processRow(ctx context.Context, search searcher, details extractor, term string, kind scraper.QueryKind) dataset.Outcome {
	if term == "" {
		// Nothing to search on; a valid outcome, not a failure.
		return dataset.Outcome{Status: dataset.StatusNoMatch}
	}

	records, err := search.Search(ctx, scraper.SearchQuery{Term: term, Kind: kind})
	if err != nil {
		return dataset.Outcome{Status: dataset.StatusError, Error: err.Error()}
	}
	if len(records) == 0 {
		return dataset.Outcome{Status: dataset.StatusNoMatch}
	}

	// First candidate wins; the rest are recorded so a reviewer can
	// audit ambiguous matches.
	first := records[0]
	var alts []string
	for _, r := range records[1:] {
		alts = append(alts, r.RecordID)
	}
	if len(alts) > 0 {
		e.log.Warnf("query %q matched %d records, using %s", term, len(records), first.RecordID)
	}

	detail := details.Extract(ctx, first.RecordID)
	fields := detail.Fields
	if fields == nil {
		fields = make(map[string]string)
	}
	fillFromPreview(fields, first)

	out := dataset.Outcome{
		RecordID:     first.RecordID,
		Fields:       fields,
		AltRecordIDs: alts,
		Status:       dataset.StatusMatched,
	}
	if detail.Err != "" {
		out.Status = dataset.StatusError
		out.Error = detail.Err
	}
	return out
}

// rowQuery picks the query term for a row. A policy number is exact
// and preferred; the company name is the fallback.
func rowQuery(input dataset.Dataset, cols dataset.IdentifierColumns, row int) (string, scraper.QueryKind) {
	if cols.PolicyNumber >= 0 {
		if term := trimCell(input, row, cols.PolicyNumber); term != "" {
			return term, scraper.KindPolicyNumber
		}
	}
	if cols.CompanyName >= 0 {
		if term := trimCell(input, row, cols.CompanyName); term != "" {
			return term, scraper.KindCompanyName
		}
	}
	return "", ""
}

func trimCell(input dataset.Dataset, row, col int) string {
	return strings.TrimSpace(input.Cell(row, col))
}

// fillFromPreview backfills detail fields the extraction missed from
// the search listing's preview columns.
func fillFromPreview(fields map[string]string, rec scraper.ResultRecord) {
	backfill := map[string]string{
		scraper.FieldStatus:      rec.Status,
		scraper.FieldInsuredName: rec.Company,
		scraper.FieldState:       rec.State,
		scraper.FieldProgram:     rec.Program,
		scraper.FieldTotalCost:   rec.Cost,
	}
	for field, preview := range backfill {
		if fields[field] == "" && preview != "" {
			fields[field] = preview
		}
	}
}
