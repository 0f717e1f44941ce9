package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coverscope/harvest/pkg/browser"
)

func newDetailFixture(html string) (*DetailExtractor, *fakeNav) {
	nav := newFakeNav()
	nav.navigateFn = func(url string) error {
		nav.url = url
		nav.content = html
		return nil
	}

	retry, _ := newTestRetrier(3, &fakeValidator{})
	e := NewDetailExtractor(testSearchConfig(), nav, DefaultTable(), retry, nil)
	e.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return e, nav
}

func TestExtractDetailsFullPage(t *testing.T) {
	e, nav := newDetailFixture(detailFixture)

	detail := e.Extract(context.Background(), "58472")

	assert.Empty(t, detail.Err)
	assert.Equal(t, "58472", detail.RecordID)
	assert.Contains(t, nav.navigations[0], "/amp/detail/view/58472")

	assert.Equal(t, "Active", detail.Field(FieldStatus))
	assert.Equal(t, "Company ABC LLC", detail.Field(FieldInsuredName))
	assert.Equal(t, "01/15/2026", detail.Field(FieldEffectiveDate))
	assert.Equal(t, "01/15/2027", detail.Field(FieldExpirationDate))
	assert.Empty(t, detail.Field(FieldCancellationDate))
}

func TestExtractDetailsPartialFieldsNoError(t *testing.T) {
	// Three of seven mapped labels missing; the rest still populate and
	// there is no top-level error.
	partial := `
<html><body><dl>
  <dt>Status:</dt><dd>Active</dd>
  <dt>Insured:</dt><dd>Partial Co</dd>
  <dt>Policy Number:</dt><dd>POL777</dd>
  <dt>Policy Term:</dt><dd>03/01/2026 - 03/01/2027</dd>
</dl></body></html>`
	e, _ := newDetailFixture(partial)

	detail := e.Extract(context.Background(), "777")

	assert.Empty(t, detail.Err)
	assert.Equal(t, "Active", detail.Field(FieldStatus))
	assert.Equal(t, "Partial Co", detail.Field(FieldInsuredName))
	assert.Equal(t, "POL777", detail.Field(FieldPolicyNumber))
	assert.Equal(t, "03/01/2026", detail.Field(FieldEffectiveDate))
	assert.Empty(t, detail.Field(FieldCarrier))
	assert.Empty(t, detail.Field(FieldProductID))
}

func TestExtractDetailsCancellationDate(t *testing.T) {
	cancelled := `
<html><body><dl>
  <dt>Status:</dt><dd>Cancelled</dd>
  <dt>Cancellation Date:</dt><dd> 04/10/2026 </dd>
  <dt>Policy Term:</dt><dd>01/01/2026 - 01/01/2027</dd>
</dl></body></html>`
	e, _ := newDetailFixture(cancelled)

	detail := e.Extract(context.Background(), "900")

	assert.Equal(t, "04/10/2026", detail.Field(FieldCancellationDate))
	assert.Equal(t, "01/01/2026", detail.Field(FieldEffectiveDate))
	assert.Equal(t, "01/01/2027", detail.Field(FieldExpirationDate))
}

func TestExtractDetailsRawContentDateFallback(t *testing.T) {
	// No dt/dd pair; term only appears in a free-text blob.
	blob := `
<html><body>
<dl><dt>Status:</dt><dd>Active</dd></dl>
<div class="summary">Policy Term: effective 02/01/2026 - 02/01/2027 (12 months)</div>
</body></html>`
	e, _ := newDetailFixture(blob)

	detail := e.Extract(context.Background(), "901")

	assert.Equal(t, "02/01/2026", detail.Field(FieldEffectiveDate))
	assert.Equal(t, "02/01/2027", detail.Field(FieldExpirationDate))
}

func TestExtractDetailsGeneralDateRangeFallback(t *testing.T) {
	// No Policy Term text anywhere; a plausible range is picked while
	// an ancient one (archive footer) is rejected.
	blob := `
<html><body>
<dl><dt>Status:</dt><dd>Active</dd></dl>
<footer>archived 01/01/1999 - 01/01/2000</footer>
<div>05/01/2026 - 05/01/2027</div>
</body></html>`
	e, _ := newDetailFixture(blob)

	detail := e.Extract(context.Background(), "902")

	assert.Equal(t, "05/01/2026", detail.Field(FieldEffectiveDate))
	assert.Equal(t, "05/01/2027", detail.Field(FieldExpirationDate))
}

func TestExtractDetailsNavigationFailure(t *testing.T) {
	nav := newFakeNav()
	nav.navigateFn = func(url string) error {
		return fmt.Errorf("navigation failed: net::ERR_CONNECTION_REFUSED")
	}
	retry, _ := newTestRetrier(2, &fakeValidator{})
	e := NewDetailExtractor(testSearchConfig(), nav, DefaultTable(), retry, nil)

	detail := e.Extract(context.Background(), "903")

	assert.Equal(t, "903", detail.RecordID)
	assert.NotEmpty(t, detail.Err, "page-level failure populates Err")
	assert.Empty(t, detail.Fields)
	assert.Len(t, nav.navigations, 2, "transient failure used the retry budget")
}

func TestExtractDetailsRedirectedOffDetailView(t *testing.T) {
	nav := newFakeNav()
	nav.navigateFn = func(url string) error {
		nav.url = "https://portal.example.com/amp/dashboard"
		return nil
	}
	retry, _ := newTestRetrier(3, &fakeValidator{})
	e := NewDetailExtractor(testSearchConfig(), nav, DefaultTable(), retry, nil)

	detail := e.Extract(context.Background(), "904")

	assert.NotEmpty(t, detail.Err)
	assert.Len(t, nav.navigations, 1, "structurally absent detail view does not retry")
}

func TestExtractDetailsSessionExpiryRecovers(t *testing.T) {
	attempts := 0
	nav := newFakeNav()
	nav.navigateFn = func(url string) error {
		attempts++
		if attempts == 1 {
			return browser.ErrSessionExpired
		}
		nav.url = url
		nav.content = detailFixture
		return nil
	}

	v := &fakeValidator{}
	retry, _ := newTestRetrier(3, v)
	reauths := 0
	retry.OnReauth = func() { reauths++ }

	e := NewDetailExtractor(testSearchConfig(), nav, DefaultTable(), retry, nil)

	detail := e.Extract(context.Background(), "905")

	assert.Empty(t, detail.Err)
	assert.Equal(t, "Active", detail.Field(FieldStatus))
	assert.Equal(t, 1, reauths, "exactly one re-authentication")
	assert.Equal(t, 2, attempts)
}

func TestExtractDetailsUnrecognizablePage(t *testing.T) {
	e, _ := newDetailFixture(`<html><body><h1>Something else entirely</h1></body></html>`)

	detail := e.Extract(context.Background(), "906")

	assert.Equal(t, "906", detail.RecordID)
	assert.NotEmpty(t, detail.Err)
}

func TestPlausibleTerm(t *testing.T) {
	e, _ := newDetailFixture(detailFixture)

	tests := []struct {
		from, to string
		want     bool
	}{
		{"01/01/2026", "01/01/2027", true},
		{"01/01/2025", "01/01/2026", true},   // started last year
		{"01/01/1999", "01/01/2000", false},  // far past
		{"01/01/2026", "01/01/2031", false},  // ends too far out
		{"06/01/2026", "01/01/2026", false},  // runs backwards
		{"13/45/2026", "01/01/2027", false},  // unparseable
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.plausibleTerm(tt.from, tt.to), "%s - %s", tt.from, tt.to)
	}
}
