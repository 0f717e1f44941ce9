package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFieldOrder = []string{"status", "insured_name", "effective_date"}

func testOriginal() Dataset {
	return Dataset{
		Headers: []string{"policy_number", "owner"},
		Rows: [][]string{
			{"POL1", "alice"},
			{"POL2", "bob"},
			{"POL3", "carol"},
		},
	}
}

func testOutcomes() []Outcome {
	return []Outcome{
		{
			RecordID: "1001",
			Status:   StatusMatched,
			Fields: map[string]string{
				"status":         "Active",
				"insured_name":   "Company ABC LLC",
				"effective_date": "01/15/2026",
			},
			AltRecordIDs: []string{"1002", "1003"},
		},
		{Status: StatusNoMatch},
		{Status: StatusError, Error: "search retries exhausted"},
	}
}

func TestMergeOneOutputRowPerInputRow(t *testing.T) {
	out := Merge(testOriginal(), testFieldOrder, testOutcomes())
	assert.Len(t, out.Rows, 3)
	for _, row := range out.Rows {
		assert.Len(t, row, len(out.Headers), "every row is as wide as the header")
	}
}

func TestMergePreservesOriginalColumns(t *testing.T) {
	original := testOriginal()
	out := Merge(original, testFieldOrder, testOutcomes())

	assert.Equal(t, original.Headers, out.Headers[:2], "original headers lead, in order")
	for i, row := range original.Rows {
		assert.Equal(t, row, out.Rows[i][:2], "original cells verbatim")
	}
}

func TestMergeAppendsOutcomeColumns(t *testing.T) {
	out := Merge(testOriginal(), testFieldOrder, testOutcomes())

	assert.Equal(t, []string{
		"policy_number", "owner",
		"record_id", "status", "insured_name", "effective_date",
		"scrape_status", "scrape_error", "alt_record_ids",
	}, out.Headers)

	matched := out.Rows[0]
	assert.Equal(t, "1001", matched[2])
	assert.Equal(t, "Active", matched[3])
	assert.Equal(t, "Company ABC LLC", matched[4])
	assert.Equal(t, "matched", matched[6])
	assert.Empty(t, matched[7])
	assert.Equal(t, "1002;1003", matched[8])

	noMatch := out.Rows[1]
	assert.Empty(t, noMatch[2])
	assert.Equal(t, "no_match", noMatch[6])

	failed := out.Rows[2]
	assert.Equal(t, "error", failed[6])
	assert.Equal(t, "search retries exhausted", failed[7])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	original := testOriginal()
	outcomes := testOutcomes()

	before := original.Clone()
	_ = Merge(original, testFieldOrder, outcomes)

	assert.Equal(t, before.Headers, original.Headers)
	assert.Equal(t, before.Rows, original.Rows)
}

func TestMergeIsIdempotent(t *testing.T) {
	first := Merge(testOriginal(), testFieldOrder, testOutcomes())
	second := Merge(testOriginal(), testFieldOrder, testOutcomes())

	var a, b bytes.Buffer
	require.NoError(t, first.WriteCSV(&a))
	require.NoError(t, second.WriteCSV(&b))
	assert.Equal(t, a.Bytes(), b.Bytes(), "byte-identical on identical inputs")
}

func TestMergeSuffixesCollidingHeaders(t *testing.T) {
	original := Dataset{
		Headers: []string{"policy_number", "status", "record_id"},
		Rows:    [][]string{{"POL1", "open", "x1"}},
	}

	out := Merge(original, testFieldOrder, []Outcome{{Status: StatusMatched, RecordID: "1001"}})

	assert.Equal(t, "record_id_scraped", out.Headers[3])
	assert.Equal(t, "status_scraped", out.Headers[4])
	assert.Equal(t, "record_id", out.Headers[2], "caller's column untouched")
}

func TestMergePadsRaggedRowsAndMissingOutcomes(t *testing.T) {
	original := Dataset{
		Headers: []string{"a", "b", "c"},
		Rows:    [][]string{{"only-a"}, {"x", "y", "z"}},
	}

	out := Merge(original, testFieldOrder, []Outcome{{Status: StatusMatched, RecordID: "1"}})

	require.Len(t, out.Rows, 2)
	assert.Equal(t, []string{"only-a", "", ""}, out.Rows[0][:3], "ragged row padded to header width")
	assert.Equal(t, "error", out.Rows[1][len(out.Rows[1])-3])
	assert.Equal(t, "no outcome recorded", out.Rows[1][len(out.Rows[1])-2])
}
