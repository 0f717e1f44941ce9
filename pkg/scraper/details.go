package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// Date extraction patterns for the detail view. The portal renders the
// policy term as "MM/DD/YYYY - MM/DD/YYYY" in a dt/dd pair; older
// markup variants bury it in free text, so there are fallbacks.
var (
	policyTermPattern   = regexp.MustCompile(`(?s)Policy Term:.*?(\d{2}/\d{2}/\d{4})\s*-\s*(\d{2}/\d{2}/\d{4})`)
	cancellationPattern = regexp.MustCompile(`(?s)Cancellation Date:\s*(?:</dt>\s*<dd[^>]*>\s*)?(\d{2}/\d{2}/\d{4})`)
	dateRangePattern    = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*-\s*(\d{2}/\d{2}/\d{4})`)
	singleDatePattern   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
)

const dateLayout = "01/02/2006"

// DetailExtractor navigates to record detail views and extracts the
// fixed field schema through the locator table.
type DetailExtractor struct {
	nav    Navigator
	cfg    config.Config
	table  Table
	retry  *Retrier
	hybrid *HybridFetcher
	log    *logging.Logger

	// now is replaceable in tests that validate date plausibility.
	now func() time.Time
}

// NewDetailExtractor builds a detail extractor. hybrid may be nil; when
// present it is tried before the browser path.
func NewDetailExtractor(cfg config.Config, nav Navigator, table Table, retry *Retrier, hybrid *HybridFetcher) *DetailExtractor {
	log, _ := logging.NewLogger("details")
	return &DetailExtractor{
		nav:    nav,
		cfg:    cfg,
		table:  table,
		retry:  retry,
		hybrid: hybrid,
		log:    log,
		now:    time.Now,
	}
}

// Extract fetches the detail view for recordID and extracts every
// mapped field. It always returns a Detail: per-field misses degrade to
// absent fields, and page-level failures populate only RecordID and
// Err.
func (e *DetailExtractor) Extract(ctx context.Context, recordID string) Detail {
	if e.hybrid != nil {
		if content, err := e.hybrid.FetchDetail(ctx, recordID); err == nil {
			if detail, ok := e.parse(recordID, content); ok {
				return detail
			}
			// Structurally wrong page over HTTP; fall through to the
			// browser path before giving up.
			e.log.Warnf("hybrid fetch for %s returned unexpected layout, falling back to browser", recordID)
		} else {
			e.log.Warnf("hybrid fetch for %s failed: %v", recordID, err)
		}
	}

	var content string
	op := func() error {
		if err := e.nav.Navigate(e.cfg.DetailURL(recordID)); err != nil {
			return err
		}

		// The portal bounces structurally absent records back to the
		// dashboard instead of returning an error page.
		if !strings.Contains(e.nav.URL(), "detail") {
			return Permanent(fmt.Errorf("detail view absent for record %s (landed on %s)", recordID, e.nav.URL()))
		}

		var err error
		content, err = e.nav.Content()
		return err
	}

	if err := e.retry.Do(ctx, op); err != nil {
		e.log.Errorf("detail extraction for %s failed: %v", recordID, err)
		return Detail{RecordID: recordID, Err: err.Error()}
	}

	detail, ok := e.parse(recordID, content)
	if !ok {
		return Detail{RecordID: recordID, Err: "detail view had no recognizable fields"}
	}
	return detail
}

// parse extracts fields from detail page HTML. ok is false when the
// page contains none of the mapped fields at all (wrong page).
func (e *DetailExtractor) parse(recordID, content string) (Detail, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Detail{RecordID: recordID, Err: fmt.Sprintf("failed to parse detail page: %v", err)}, false
	}

	fields := e.table.ExtractAll(doc)
	e.extractDates(content, doc, fields)

	if len(fields) == 0 {
		return Detail{RecordID: recordID}, false
	}
	return Detail{RecordID: recordID, Fields: fields}, true
}

// extractDates populates effective/expiration/cancellation dates using
// the label pair first, then the raw-content fallbacks.
func (e *DetailExtractor) extractDates(content string, doc *goquery.Document, fields map[string]string) {
	// Cancellation date only appears on cancelled policies.
	if text, ok := extractByLabel(doc, "Cancellation Date:"); ok {
		if d := singleDatePattern.FindString(text); d != "" {
			fields[FieldCancellationDate] = d
		}
	} else if m := cancellationPattern.FindStringSubmatch(content); m != nil {
		fields[FieldCancellationDate] = m[1]
	}

	// Primary: the Policy Term label pair.
	if text, ok := extractByLabel(doc, "Policy Term:"); ok {
		if from, to, ok := splitDateRange(text); ok {
			fields[FieldEffectiveDate] = from
			fields[FieldExpirationDate] = to
			return
		}
	}

	// Fallback: Policy Term text anywhere in the raw content.
	if m := policyTermPattern.FindStringSubmatch(content); m != nil {
		fields[FieldEffectiveDate] = m[1]
		fields[FieldExpirationDate] = m[2]
		return
	}

	// Last resort: any plausible date range on the page.
	for _, m := range dateRangePattern.FindAllStringSubmatch(content, -1) {
		if e.plausibleTerm(m[1], m[2]) {
			fields[FieldEffectiveDate] = m[1]
			fields[FieldExpirationDate] = m[2]
			return
		}
	}
}

// splitDateRange splits "MM/DD/YYYY - MM/DD/YYYY" text.
func splitDateRange(text string) (from, to string, ok bool) {
	m := dateRangePattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// plausibleTerm filters the last-resort date ranges: the term must
// start no earlier than last year, end within two years, and run
// forward. Keeps footer copyright dates and birthdates out.
func (e *DetailExtractor) plausibleTerm(fromStr, toStr string) bool {
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return false
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return false
	}

	year := e.now().Year()
	return from.Year() >= year-1 && to.Year() <= year+2 && to.After(from)
}
