package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/chemaudit/chemaudit/internal/jobs"
)

// rowSource yields the raw rows of a table, header first.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

var structureHeaders = []string{"smiles", "structure", "molecule", "inchi", "mol"}
var nameHeaders = []string{"name", "id"}

func buildColumnMap(headers []string) map[string]int {
	colMap := make(map[string]int)
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		if _, exists := colMap[key]; !exists {
			colMap[key] = i
		}
	}
	return colMap
}

func getColumnValue(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// findColumn returns the nominated column, or the first header containing one of candidates.
func findColumn(headers []string, colMap map[string]int, nominated string, candidates []string, skip int) int {
	if nominated != "" {
		if idx, ok := colMap[strings.ToLower(strings.TrimSpace(nominated))]; ok {
			return idx
		}
		return -1
	}
	for _, c := range candidates {
		if idx, ok := colMap[c]; ok && idx != skip {
			return idx
		}
	}
	for _, c := range candidates {
		for i, h := range headers {
			if i != skip && strings.Contains(strings.ToLower(h), c) {
				return i
			}
		}
	}
	return -1
}

func newTableReader(kind Kind, rows rowSource, opts Options) (*Reader, error) {
	headers, err := rows.Next()
	if errors.Is(err, io.EOF) {
		return nil, &FileError{Reason: "File has no header row"}
	}
	if err != nil {
		return nil, &FileError{Reason: fmt.Sprintf("Unreadable header row: %s", err)}
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}
	colMap := buildColumnMap(headers)

	structIdx := findColumn(headers, colMap, opts.StructureColumn, structureHeaders, -1)
	if structIdx < 0 {
		reason := fmt.Sprintf("No SMILES column found. Available columns: %s", strings.Join(headers, ", "))
		if opts.StructureColumn != "" {
			reason = fmt.Sprintf("Column '%s' not found. Available columns: %s", opts.StructureColumn, strings.Join(headers, ", "))
		}
		_ = rows.Close()
		return nil, &FileError{Reason: reason}
	}
	nameIdx := findColumn(headers, colMap, opts.NameColumn, nameHeaders, structIdx)
	if opts.NameColumn != "" && nameIdx < 0 {
		_ = rows.Close()
		return nil, &FileError{Reason: fmt.Sprintf("Column '%s' not found. Available columns: %s", opts.NameColumn, strings.Join(headers, ", "))}
	}

	r := &Reader{kind: kind, Columns: headers, StructureColumn: headers[structIdx]}
	if nameIdx >= 0 {
		r.NameColumn = headers[nameIdx]
	}
	index := 0
	r.next = func() (jobs.Item, error) {
		for {
			row, err := rows.Next()
			if errors.Is(err, io.EOF) {
				_ = rows.Close()
				return jobs.Item{}, io.EOF
			}
			if err != nil {
				_ = rows.Close()
				return jobs.Item{}, &FileError{Reason: fmt.Sprintf("Unreadable row %d: %s", index+2, err)}
			}
			if blank(row) {
				continue
			}
			item := jobs.Item{Index: index, Input: getColumnValue(row, structIdx), Name: getColumnValue(row, nameIdx)}
			if item.Name == "" {
				item.Name = defaultName(index)
			}
			if item.Input == "" {
				item.PreError = EmptyStructure
			}
			index++
			return item, nil
		}
	}
	return r, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type delimitedRows struct {
	r *csv.Reader
}

// newDelimitedRows splits on commas, or on tabs when the header row has none.
func newDelimitedRows(data []byte) *delimitedRows {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	delimiter := ','
	if !bytes.ContainsRune(header, ',') && bytes.ContainsRune(header, '\t') {
		delimiter = '\t'
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &delimitedRows{r: r}
}

func (d *delimitedRows) Next() ([]string, error) {
	return d.r.Read()
}

func (d *delimitedRows) Close() error {
	return nil
}

type sheetRows struct {
	file *excelize.File
	rows *excelize.Rows
}

// newSheetRows reads the first worksheet of a workbook.
func newSheetRows(data []byte) (*sheetRows, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FileError{Reason: fmt.Sprintf("Unreadable spreadsheet: %s", err)}
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, &FileError{Reason: "Spreadsheet has no sheets"}
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, &FileError{Reason: fmt.Sprintf("Unreadable sheet %s: %s", sheets[0], err)}
	}
	return &sheetRows{file: f, rows: rows}, nil
}

func (s *sheetRows) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *sheetRows) Close() error {
	_ = s.rows.Close()
	return s.file.Close()
}
