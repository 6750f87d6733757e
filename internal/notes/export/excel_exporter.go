package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures workbook output.
type ExcelOptions struct {
	FreezeHeader    bool
	AutoFilter      bool
	AutoWidth       bool
	HeaderFill      string
	HeaderFontColor string
	MinColumnWidth  float64
	MaxColumnWidth  float64
}

func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader:    true,
		AutoFilter:      true,
		AutoWidth:       true,
		HeaderFill:      "4472C4",
		HeaderFontColor: "FFFFFF",
		MinColumnWidth:  10,
		MaxColumnWidth:  50,
	}
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table, options ExcelOptions) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: options.HeaderFontColor},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := file.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(t.Columns))
	for i, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		widths[i] = estimateWidth(col)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err := file.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for r, row := range t.Rows {
		for c := range t.Columns {
			if c >= len(row) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			val := row[c]
			if tags, ok := val.([]string); ok {
				val = strings.Join(tags, ", ")
			}
			if ts, ok := val.(time.Time); ok {
				if ts.IsZero() {
					continue
				}
				if err := file.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return fmt.Errorf("failed to style cell %s: %w", cell, err)
				}
			}
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
			if w := estimateWidth(val); w > widths[c] {
				widths[c] = w
			}
		}
	}

	if options.FreezeHeader {
		if err := file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	if options.AutoFilter && len(t.Rows) > 0 {
		if err := file.AutoFilter(sheet, first+":"+last, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}
	if options.AutoWidth {
		for i, width := range widths {
			width = min(max(width, options.MinColumnWidth), options.MaxColumnWidth)
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := file.SetColWidth(sheet, col, col, width); err != nil {
				return fmt.Errorf("failed to size column %s: %w", col, err)
			}
		}
	}

	return file.Write(w)
}

// estimateWidth approximates display width; one character is about 1.2 units.
func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}
