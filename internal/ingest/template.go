package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateField documents one column of an upload template.
type TemplateField struct {
	Column      string
	Required    bool
	Description string
	Example     string
}

// Template describes a downloadable upload workbook for one entity kind.
type Template struct {
	Title        string
	Instructions []string
	Fields       []TemplateField
}

const (
	sheetInstructions = "INSTRUCCIONES"
	sheetFields       = "CAMPOS"
)

// Render builds the template workbook. The first sheet is a blank DATOS
// sheet with the header row already in place, so a filled-in template can be
// uploaded back without edits.
func (t Template) Render() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", PreferredSheet); err != nil {
		return nil, fmt.Errorf("rename template sheet: %w", err)
	}
	for i, field := range t.Fields {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(PreferredSheet, cell, field.Column)
	}

	if _, err := f.NewSheet(sheetInstructions); err != nil {
		return nil, fmt.Errorf("create instructions sheet: %w", err)
	}
	_ = f.SetCellValue(sheetInstructions, "A1", t.Title)
	for i, line := range t.Instructions {
		cell := fmt.Sprintf("A%d", i+3)
		_ = f.SetCellValue(sheetInstructions, cell, line)
	}

	if _, err := f.NewSheet(sheetFields); err != nil {
		return nil, fmt.Errorf("create fields sheet: %w", err)
	}
	fieldHeaders := []string{"COLUMNA", "OBLIGATORIO", "DESCRIPCION", "EJEMPLO"}
	for i, h := range fieldHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetFields, cell, h)
	}
	for i, field := range t.Fields {
		required := "NO"
		if field.Required {
			required = "SI"
		}
		values := []string{field.Column, required, field.Description, field.Example}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheetFields, cell, v)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write template workbook: %w", err)
	}
	return buf.Bytes(), nil
}
