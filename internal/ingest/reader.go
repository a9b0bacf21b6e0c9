package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// PreferredSheet is read first when present in an uploaded workbook.
const PreferredSheet = "DATOS"

// ReadWorkbook parses an xlsx/xls stream into rows keyed by normalized
// headers. Sheet selection: DATOS, then the first sheet, then the active
// sheet. Rows whose cells are all empty are dropped. Row numbers are the
// spreadsheet's own (header is row 1).
func ReadWorkbook(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet, err := pickSheet(f)
	if err != nil {
		return nil, err
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		row := Row{Number: i + 2, Cells: make(map[string]string, len(headers))}
		empty := true
		for j, header := range headers {
			if header == "" {
				continue
			}
			var value string
			if j < len(cells) {
				value = strings.TrimSpace(cells[j])
			}
			if value != "" {
				empty = false
			}
			row.Cells[header] = value
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	for _, s := range sheets {
		if strings.EqualFold(s, PreferredSheet) {
			return s, nil
		}
	}
	if sheets[0] != "" {
		return sheets[0], nil
	}
	if active := f.GetSheetName(f.GetActiveSheetIndex()); active != "" {
		return active, nil
	}
	return "", fmt.Errorf("workbook has no readable sheet")
}
