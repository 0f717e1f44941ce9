package dataset

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// IdentifierColumns is the result of header inspection: the index of
// the policy-number column and the company-name column, or -1 when a
// column is absent.
type IdentifierColumns struct {
	PolicyNumber int
	CompanyName  int
}

// HasAny reports whether at least one identifier column was found.
func (c IdentifierColumns) HasAny() bool {
	return c.PolicyNumber >= 0 || c.CompanyName >= 0
}

// DetectIdentifierColumns scans headers against the two pattern sets.
// Matching is case-insensitive on trimmed header text; the first
// matching column wins for each role. Patterns use glob syntax
// ("policy*number*", "*insured*").
func DetectIdentifierColumns(headers []string, policyPatterns, namePatterns []string) (IdentifierColumns, error) {
	policyGlobs, err := compilePatterns(policyPatterns)
	if err != nil {
		return IdentifierColumns{}, fmt.Errorf("invalid policy column pattern: %w", err)
	}
	nameGlobs, err := compilePatterns(namePatterns)
	if err != nil {
		return IdentifierColumns{}, fmt.Errorf("invalid name column pattern: %w", err)
	}

	cols := IdentifierColumns{PolicyNumber: -1, CompanyName: -1}
	for i, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if cols.PolicyNumber < 0 && matchesAny(policyGlobs, normalized) {
			cols.PolicyNumber = i
			continue
		}
		if cols.CompanyName < 0 && matchesAny(nameGlobs, normalized) {
			cols.CompanyName = i
		}
	}
	return cols, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
