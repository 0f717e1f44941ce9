// Package scraper implements search execution, detail-page field
// extraction, and the retry policy for the Harvest engine. It drives
// the portal through a Navigator (normally a browser.Session) and
// parses page HTML with goquery, so every extraction path is testable
// against static fixtures.
package scraper

import "fmt"

// QueryKind selects which search form field a query populates.
type QueryKind string

const (
	KindPolicyNumber QueryKind = "policy_number"
	KindCompanyName  QueryKind = "company_name"
)

// SearchQuery is an immutable search request, one per input row.
type SearchQuery struct {
	Term string
	Kind QueryKind
}

// ResultRecord is one row of the search result listing: the opaque
// record identifier plus whatever preview columns the listing showed.
type ResultRecord struct {
	RecordID string

	// Preview fields from the listing columns; best-effort.
	Status  string
	Company string
	State   string
	Program string
	Cost    string
}

// Canonical detail field names, in output column order.
const (
	FieldStatus           = "status"
	FieldProductID        = "product_id"
	FieldInsuredName      = "insured_name"
	FieldPolicyNumber     = "policy_number"
	FieldCarrier          = "carrier"
	FieldState            = "state"
	FieldProgram          = "program"
	FieldTotalCost        = "total_cost"
	FieldEffectiveDate    = "effective_date"
	FieldExpirationDate   = "expiration_date"
	FieldCancellationDate = "cancellation_date"
)

// DetailFieldOrder is the fixed column order for detail fields in the
// enriched output.
var DetailFieldOrder = []string{
	FieldStatus,
	FieldProductID,
	FieldInsuredName,
	FieldPolicyNumber,
	FieldCarrier,
	FieldState,
	FieldProgram,
	FieldTotalCost,
	FieldEffectiveDate,
	FieldExpirationDate,
	FieldCancellationDate,
}

// Detail is the extracted record for one recordID. Extraction is
// best-effort per field: missing locators leave fields absent, never
// fail the whole record. Err is set only on page-level failure.
type Detail struct {
	RecordID string
	Fields   map[string]string
	Err      string
}

// Field returns a field value, or "" when absent.
func (d Detail) Field(name string) string {
	if d.Fields == nil {
		return ""
	}
	return d.Fields[name]
}

// SearchReason classifies structural search failures.
type SearchReason string

const (
	ReasonFormNotFound     SearchReason = "form_not_found"
	ReasonNavigationFailed SearchReason = "navigation_failed"
)

// SearchError is a structural failure of the search surface, distinct
// from zero results (a valid empty slice).
type SearchError struct {
	Reason SearchReason
	Err    error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("search failed (%s)", e.Reason)
}

func (e *SearchError) Unwrap() error { return e.Err }

// RetryExhausted is returned when the transient-failure budget for one
// operation is spent. Callers convert it into a row-level outcome.
type RetryExhausted struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhausted) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhausted) Unwrap() error { return e.LastErr }

// Navigator is the navigation surface the scraper drives. Implemented
// by browser.Session; replaced by fakes in tests.
type Navigator interface {
	Navigate(url string) error
	Fill(selector, value string) error
	Click(selector string) error
	WaitForQuiescence() error
	Content() (string, error)
	URL() string
}
