package dataset

import "strings"

// RowStatus is the per-row disposition recorded in the output.
type RowStatus string

const (
	StatusMatched RowStatus = "matched"
	StatusNoMatch RowStatus = "no_match"
	StatusError   RowStatus = "error"
)

// Appended column names. They are suffixed when the input already uses
// the name, so caller columns are never shadowed.
const (
	ColRecordID     = "record_id"
	ColStatus       = "scrape_status"
	ColError        = "scrape_error"
	ColAltRecordIDs = "alt_record_ids"
)

// Outcome is the scrape result for one input row.
type Outcome struct {
	RecordID     string
	Fields       map[string]string
	AltRecordIDs []string
	Status       RowStatus
	Error        string
}

// Merge combines the original dataset with per-row outcomes into a new
// dataset. The original columns are preserved verbatim and in order;
// appended columns are record_id, the detail fields in fieldOrder, and
// the status/error/alternate columns. Exactly one output row is
// produced per input row, and the inputs are never mutated. Merging
// the same inputs twice yields identical output.
func Merge(original Dataset, fieldOrder []string, outcomes []Outcome) Dataset {
	headers := append([]string(nil), original.Headers...)
	headers = append(headers, uniqueHeader(original.Headers, ColRecordID))
	for _, f := range fieldOrder {
		headers = append(headers, uniqueHeader(original.Headers, f))
	}
	headers = append(headers,
		uniqueHeader(original.Headers, ColStatus),
		uniqueHeader(original.Headers, ColError),
		uniqueHeader(original.Headers, ColAltRecordIDs),
	)

	width := len(original.Headers)
	rows := make([][]string, len(original.Rows))
	for i, src := range original.Rows {
		row := make([]string, 0, len(headers))
		row = append(row, src...)
		for len(row) < width {
			row = append(row, "") // pad ragged input rows
		}

		var out Outcome
		if i < len(outcomes) {
			out = outcomes[i]
		} else {
			out = Outcome{Status: StatusError, Error: "no outcome recorded"}
		}

		row = append(row, out.RecordID)
		for _, f := range fieldOrder {
			row = append(row, out.Fields[f])
		}
		row = append(row, string(out.Status), out.Error, strings.Join(out.AltRecordIDs, ";"))
		rows[i] = row
	}

	return Dataset{Headers: headers, Rows: rows}
}

// uniqueHeader suffixes name until it collides with nothing in base.
func uniqueHeader(base []string, name string) string {
	candidate := name
	for containsFold(base, candidate) {
		candidate += "_scraped"
	}
	return candidate
}

func containsFold(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return true
		}
	}
	return false
}
