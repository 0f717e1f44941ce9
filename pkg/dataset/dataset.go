// Package dataset provides the tabular input/output layer for the
// Harvest engine: CSV and XLSX reading and writing, identifier-column
// detection, and the enrichment merge that folds scraped details back
// into the caller's rows.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Dataset is an ordered table: a header row and data rows. Cells are
// kept verbatim; the engine never rewrites caller-supplied values.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Clone returns a deep copy. Merging never mutates its inputs.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Headers: append([]string(nil), d.Headers...),
		Rows:    make([][]string, len(d.Rows)),
	}
	for i, row := range d.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Cell returns the value at (row, col), or "" when the row is ragged.
func (d Dataset) Cell(row, col int) string {
	if row < 0 || row >= len(d.Rows) || col < 0 || col >= len(d.Rows[row]) {
		return ""
	}
	return d.Rows[row][col]
}

// ReadCSV parses a CSV stream. Ragged rows are tolerated; the header
// row is required.
func ReadCSV(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // input exports are frequently ragged
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("input has no header row")
	}

	return Dataset{Headers: records[0], Rows: records[1:]}, nil
}

// WriteCSV writes the dataset as CSV.
func (d Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range d.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadXLSX parses the first sheet of a spreadsheet.
func ReadXLSX(r io.Reader) (Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("input has no header row")
	}

	return Dataset{Headers: rows[0], Rows: rows[1:]}, nil
}

// WriteXLSX writes the dataset as a single-sheet spreadsheet.
func (d Dataset) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	writeRow := func(n int, cells []string) error {
		addr, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		return f.SetSheetRow(sheet, addr, &row)
	}

	if err := writeRow(1, d.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range d.Rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

// ReadFile loads a dataset, dispatching on the file extension.
func ReadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(f)
	case ".csv", "":
		return ReadCSV(f)
	default:
		return Dataset{}, fmt.Errorf("unsupported input format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// WriteFile saves the dataset, dispatching on the file extension.
func (d Dataset) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return d.WriteXLSX(f)
	default:
		return d.WriteCSV(f)
	}
}

// Template returns the downloadable input template: the one required
// column with example values.
func Template() Dataset {
	return Dataset{
		Headers: []string{"policy_number"},
		Rows: [][]string{
			{"ISCPC04000058472"},
			{"ISCPC04000058215"},
			{"ISCPC04000058337"},
		},
	}
}
