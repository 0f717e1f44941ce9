package scraper

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// Strategy names the two locator kinds the portal needs.
type Strategy string

const (
	// StrategyDirect reads the text of the first element matching a CSS
	// selector.
	StrategyDirect Strategy = "direct"

	// StrategyLabel finds a label element (dt, th, label) whose text
	// contains Label, then reads its adjacent value element.
	StrategyLabel Strategy = "label"
)

// Locator is one field extraction rule.
type Locator struct {
	Strategy Strategy `yaml:"strategy"`
	Selector string   `yaml:"selector,omitempty"`
	Label    string   `yaml:"label,omitempty"`
}

// Table maps detail field names to locators. The table is data, not
// code, so markup drift on the portal only touches configuration.
type Table map[string]Locator

// DefaultTable returns the locator table for the portal's detail view.
// Dates come from the Policy Term line and are split by the extractor.
func DefaultTable() Table {
	return Table{
		FieldStatus:       {Strategy: StrategyLabel, Label: "Status:"},
		FieldProductID:    {Strategy: StrategyLabel, Label: "Product:"},
		FieldInsuredName:  {Strategy: StrategyLabel, Label: "Insured:"},
		FieldPolicyNumber: {Strategy: StrategyLabel, Label: "Policy Number:"},
		FieldCarrier:      {Strategy: StrategyLabel, Label: "Carrier:"},
		FieldState:        {Strategy: StrategyLabel, Label: "State:"},
		FieldProgram:      {Strategy: StrategyLabel, Label: "Program:"},
		FieldTotalCost:    {Strategy: StrategyLabel, Label: "Total Cost:"},
	}
}

// LoadTable reads a YAML locator table. Entries override the defaults
// field by field, so a partial file only redefines what changed.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locator file: %w", err)
	}

	loaded := Table{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse locator file %s: %w", path, err)
	}

	table := DefaultTable()
	for field, loc := range loaded {
		if err := loc.validate(); err != nil {
			return nil, fmt.Errorf("locator for %q: %w", field, err)
		}
		table[field] = loc
	}
	return table, nil
}

func (l Locator) validate() error {
	switch l.Strategy {
	case StrategyDirect:
		if l.Selector == "" {
			return fmt.Errorf("direct locator requires a selector")
		}
	case StrategyLabel:
		if l.Label == "" {
			return fmt.Errorf("label locator requires label text")
		}
	default:
		return fmt.Errorf("unknown strategy %q", l.Strategy)
	}
	return nil
}

// Extract applies one locator against a parsed document. The second
// return value is false when the locator found nothing; that is a
// per-field miss, not an error.
func (l Locator) Extract(doc *goquery.Document) (string, bool) {
	switch l.Strategy {
	case StrategyDirect:
		sel := doc.Find(l.Selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true

	case StrategyLabel:
		return extractByLabel(doc, l.Label)
	}
	return "", false
}

// extractByLabel finds a label element containing the given text and
// reads the adjacent value: the next dd for a dt, the next td for a th
// or labelling td, the next sibling otherwise.
func extractByLabel(doc *goquery.Document, label string) (string, bool) {
	var value string
	var found bool

	doc.Find("dt, th, label, td.label, span.label").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.TrimSpace(sel.Text()), label) {
			return true
		}

		next := sel.Next()
		if next.Length() == 0 {
			// Label and value may share a parent (label inside a cell)
			next = sel.Parent().Next()
		}
		if next.Length() == 0 {
			return true
		}

		value = strings.TrimSpace(next.Text())
		found = true
		return false
	})

	return value, found
}

// ExtractAll runs every locator in the table, degrading field by field.
// Fields whose locator found nothing are absent from the result.
func (t Table) ExtractAll(doc *goquery.Document) map[string]string {
	fields := make(map[string]string, len(t))
	for name, loc := range t {
		if value, ok := loc.Extract(doc); ok {
			fields[name] = value
		}
	}
	return fields
}
