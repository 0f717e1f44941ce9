package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// Search surface selectors. The listing renders result rows under
// several alternative classes depending on result type; all are valid.
const (
	policyNumberSelector = `input[name="policy_number"]`
	companyNameSelector  = `input[name="company_name"]`
	searchSubmitSelector = `button.submitAdvancedSearch`

	resultRowSelector = `tr.itemRow, tr.searchResultRow, tr.resultRow`
	nextPageSelector  = `a[rel="next"], ul.pagination li.next:not(.disabled) a, a.nextPage`

	// recordIDAttr carries the opaque record identifier on each row.
	recordIDAttr = "data-id"

	// maxResultPages bounds pagination in case the portal renders a
	// next control that never disables.
	maxResultPages = 50
)

// SearchExecutor issues queries against the portal's search surface and
// parses the result listing.
type SearchExecutor struct {
	nav    Navigator
	cfg    config.Config
	retry  *Retrier
	hybrid *HybridFetcher
	log    *logging.Logger
}

// NewSearchExecutor builds a search executor over an authenticated
// session's navigator. hybrid may be nil; when present, policy-number
// queries are tried over HTTP before driving the browser.
func NewSearchExecutor(cfg config.Config, nav Navigator, retry *Retrier, hybrid *HybridFetcher) *SearchExecutor {
	log, _ := logging.NewLogger("search")
	return &SearchExecutor{
		nav:    nav,
		cfg:    cfg,
		retry:  retry,
		hybrid: hybrid,
		log:    log,
	}
}

// fieldSelector maps the query kind to its mutually exclusive form
// field.
func fieldSelector(kind QueryKind) (string, error) {
	switch kind {
	case KindPolicyNumber:
		return policyNumberSelector, nil
	case KindCompanyName:
		return companyNameSelector, nil
	}
	return "", fmt.Errorf("unknown query kind %q", kind)
}

// Search runs one query and returns every matching result record across
// all listing pages. Zero results is a valid empty slice; a missing
// search form is a SearchError. The whole operation runs under the
// retry policy as a unit.
func (s *SearchExecutor) Search(ctx context.Context, query SearchQuery) ([]ResultRecord, error) {
	if s.hybrid != nil && query.Kind == KindPolicyNumber {
		if records, ok := s.hybridSearch(ctx, query.Term); ok {
			return records, nil
		}
	}

	var records []ResultRecord

	op := func() error {
		var err error
		records, err = s.searchOnce(query)
		return err
	}

	if err := s.retry.Do(ctx, op); err != nil {
		return nil, err
	}
	return records, nil
}

// hybridSearch tries the HTTP fast path for an exact policy-number
// query. Only a non-empty listing is trusted; empty or malformed
// responses are confirmed through the browser path instead.
func (s *SearchExecutor) hybridSearch(ctx context.Context, term string) ([]ResultRecord, bool) {
	content, err := s.hybrid.FetchSearch(ctx, term)
	if err != nil {
		s.log.Warnf("hybrid search for %s failed, using browser: %v", term, err)
		return nil, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, false
	}

	records := parseResultRows(doc)
	if len(records) == 0 {
		return nil, false
	}
	s.log.Debugf("hybrid search for %s returned %d records", term, len(records))
	return records, true
}

// searchOnce performs a single attempt: navigate, fill, submit, scan.
func (s *SearchExecutor) searchOnce(query SearchQuery) ([]ResultRecord, error) {
	selector, err := fieldSelector(query.Kind)
	if err != nil {
		return nil, Permanent(err)
	}

	if err := s.nav.Navigate(s.cfg.SearchURL()); err != nil {
		return nil, err
	}

	// Confirm the form exists before filling; a missing form is
	// structural, not transient, and must not burn the retry budget.
	content, err := s.nav.Content()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}
	if doc.Find(selector).Length() == 0 || doc.Find(searchSubmitSelector).Length() == 0 {
		return nil, Permanent(&SearchError{
			Reason: ReasonFormNotFound,
			Err:    fmt.Errorf("no %s field on search surface", query.Kind),
		})
	}

	if err := s.nav.Fill(selector, query.Term); err != nil {
		return nil, err
	}
	if err := s.nav.Click(searchSubmitSelector); err != nil {
		return nil, err
	}
	if err := s.nav.WaitForQuiescence(); err != nil {
		return nil, err
	}

	return s.collectResults()
}

// collectResults scans the current listing page and follows next-page
// controls until the listing is exhausted.
func (s *SearchExecutor) collectResults() ([]ResultRecord, error) {
	var records []ResultRecord

	for page := 1; page <= maxResultPages; page++ {
		content, err := s.nav.Content()
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse result listing: %w", err)
		}

		records = append(records, parseResultRows(doc)...)

		if doc.Find(nextPageSelector).Length() == 0 {
			break
		}
		if err := s.nav.Click(nextPageSelector); err != nil {
			return nil, err
		}
		if err := s.nav.WaitForQuiescence(); err != nil {
			return nil, err
		}
	}

	s.log.Debugf("search returned %d records", len(records))
	return records, nil
}

// parseResultRows extracts records from every known row marker. Rows
// without a record identifier are placeholder/summary rows and are
// skipped.
func parseResultRows(doc *goquery.Document) []ResultRecord {
	var records []ResultRecord

	doc.Find(resultRowSelector).Each(func(_ int, row *goquery.Selection) {
		id, ok := row.Attr(recordIDAttr)
		if !ok || strings.TrimSpace(id) == "" {
			return
		}

		records = append(records, ResultRecord{
			RecordID: strings.TrimSpace(id),
			Status:   cellText(row, 4),
			Company:  cellText(row, 5),
			State:    cellText(row, 6),
			Program:  cellText(row, 7),
			Cost:     cellText(row, 8),
		})
	})

	return records
}

// cellText reads the trimmed text of the nth table cell (1-based).
func cellText(row *goquery.Selection, n int) string {
	return strings.TrimSpace(row.Find(fmt.Sprintf("td:nth-child(%d)", n)).First().Text())
}
