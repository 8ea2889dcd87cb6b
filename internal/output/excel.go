// internal/output/excel.go
package output

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/valpere/PriceScrapexter/internal/utils"
)

// Excel-specific default limits (can be overridden via ExcelConfig)
const (
	// DefaultExcelMaxCellLength is the maximum characters in a single Excel cell
	DefaultExcelMaxCellLength = 32767
	// DefaultExcelMaxSheetRows is the maximum rows per sheet in Excel
	DefaultExcelMaxSheetRows = 1048576
)

// ExcelConfig configuration for Excel output
type ExcelConfig struct {
	FilePath      string         `json:"file"`
	SheetName     string         `json:"sheet_name"`
	AutoFilter    bool           `json:"auto_filter"`
	FreezePane    bool           `json:"freeze_pane"`
	ColumnWidths  map[string]int `json:"column_widths"`
	MaxSheetRows  int            `json:"max_sheet_rows"`
	MaxCellLength int            `json:"max_cell_length"`
	Logger        utils.Logger   `json:"-"`
}

// ExcelWriter writes product rows to an XLSX workbook. Rows that do not
// fit on one sheet continue on "<SheetName>_2" and so on.
type ExcelWriter struct {
	file      *excelize.File
	out       io.Writer
	config    ExcelConfig
	sheetName string
	sheets    int
	row       int
	styles    excelStyles
	closed    bool
}

type excelStyles struct {
	header int
	money  int
	date   int
}

// defaultColumnWidths sizes the wide text columns.
var defaultColumnWidths = map[string]int{
	"name":        40,
	"product_url": 50,
	"image_url":   40,
	"description": 60,
}

// NewExcelWriter creates a writer that saves to config.FilePath on Close.
func NewExcelWriter(config ExcelConfig) (*ExcelWriter, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}
	return newExcelWriter(config, nil)
}

// NewExcelStreamWriter creates a writer that writes the workbook to w on Close.
func NewExcelStreamWriter(w io.Writer, config ExcelConfig) (*ExcelWriter, error) {
	if w == nil {
		return nil, fmt.Errorf("writer cannot be nil")
	}
	return newExcelWriter(config, w)
}

func newExcelWriter(config ExcelConfig, out io.Writer) (*ExcelWriter, error) {
	if config.SheetName == "" {
		config.SheetName = "Products"
	}
	if config.MaxSheetRows <= 1 || config.MaxSheetRows > DefaultExcelMaxSheetRows {
		config.MaxSheetRows = DefaultExcelMaxSheetRows
	}
	if config.MaxCellLength <= 0 {
		config.MaxCellLength = DefaultExcelMaxCellLength
	}
	if config.Logger == nil {
		config.Logger = utils.NewNopLogger()
	}

	file := excelize.NewFile()
	if defaultSheet := file.GetSheetName(0); defaultSheet != config.SheetName {
		if err := file.SetSheetName(defaultSheet, config.SheetName); err != nil {
			return nil, err
		}
	}

	w := &ExcelWriter{
		file:      file,
		out:       out,
		config:    config,
		sheetName: config.SheetName,
		sheets:    1,
		row:       1,
	}
	if err := w.createStyles(); err != nil {
		return nil, err
	}
	if err := w.writeHeaders(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ExcelWriter) createStyles() error {
	var err error
	w.styles.header, err = w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	// 2 is "0.00", 22 is "m/d/yy h:mm"
	if w.styles.money, err = w.file.NewStyle(&excelize.Style{NumFmt: 2}); err != nil {
		return err
	}
	w.styles.date, err = w.file.NewStyle(&excelize.Style{NumFmt: 22})
	return err
}

// Write appends rows to the current sheet.
func (w *ExcelWriter) Write(rows []Record) error {
	if w.closed {
		return fmt.Errorf("excel writer is closed")
	}
	for _, row := range rows {
		if err := w.writeRecord(row); err != nil {
			return err
		}
	}
	return nil
}

// Close applies final formatting and saves the workbook.
func (w *ExcelWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if err := w.applyFinalFormatting(); err != nil {
		return err
	}
	if w.out != nil {
		_, err := w.file.WriteTo(w.out)
		return err
	}
	return w.file.SaveAs(w.config.FilePath)
}

// GetType returns the output type
func (w *ExcelWriter) GetType() string {
	return string(FormatExcel)
}

// writeHeaders writes the header row
func (w *ExcelWriter) writeHeaders() error {
	for col, header := range Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheetName, cell, header); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), w.row)
	if err := w.file.SetCellStyle(w.sheetName, "A1", last, w.styles.header); err != nil {
		return err
	}
	w.row++
	return nil
}

// writeRecord writes a single record to the worksheet
func (w *ExcelWriter) writeRecord(r Record) error {
	if w.row > w.config.MaxSheetRows {
		if err := w.applyFinalFormatting(); err != nil {
			return err
		}
		if err := w.createNewSheet(); err != nil {
			return err
		}
	}

	values := []interface{}{
		r.ID,
		w.truncate(r.Name),
		money(r.Price),
		money(r.OriginalPrice),
		r.Currency,
		r.Available,
		w.truncate(r.ProductURL),
		w.truncate(r.ImageURL),
		w.truncate(r.Description),
		excelTime(r.FirstSeenAt),
		excelTime(r.LastUpdatedAt),
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheetName, cell, value); err != nil {
			return err
		}
		if err := w.applyDataStyle(cell, col, value); err != nil {
			return err
		}
	}

	w.row++
	return nil
}

// applyDataStyle applies number formats to money and time cells
func (w *ExcelWriter) applyDataStyle(cell string, col int, value interface{}) error {
	if value == nil {
		return nil
	}
	switch {
	case priceColumns[col]:
		return w.file.SetCellStyle(w.sheetName, cell, cell, w.styles.money)
	case Headers[col] == "first_seen_at" || Headers[col] == "last_updated_at":
		return w.file.SetCellStyle(w.sheetName, cell, cell, w.styles.date)
	}
	return nil
}

func (w *ExcelWriter) truncate(s string) string {
	if utf8.RuneCountInString(s) <= w.config.MaxCellLength {
		return s
	}
	w.config.Logger.Warnf("excel: truncating cell from %d characters to %d", utf8.RuneCountInString(s), w.config.MaxCellLength)
	return utils.TruncateRunes(s, w.config.MaxCellLength)
}

// applyFinalFormatting sizes columns, freezes the header and adds a filter
func (w *ExcelWriter) applyFinalFormatting() error {
	for col, header := range Headers {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := 15
		if custom, ok := defaultColumnWidths[header]; ok {
			width = custom
		}
		if custom, ok := w.config.ColumnWidths[header]; ok {
			width = custom
		}
		if err := w.file.SetColWidth(w.sheetName, name, name, float64(width)); err != nil {
			return err
		}
	}

	if w.config.AutoFilter && w.row > 2 {
		last, err := excelize.CoordinatesToCellName(len(Headers), w.row-1)
		if err != nil {
			return err
		}
		if err := w.file.AutoFilter(w.sheetName, "A1:"+last, nil); err != nil {
			return err
		}
	}

	if w.config.FreezePane {
		if err := w.file.SetPanes(w.sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	return nil
}

// createNewSheet creates a new sheet when row limit is reached
func (w *ExcelWriter) createNewSheet() error {
	w.sheets++
	name := fmt.Sprintf("%s_%d", w.config.SheetName, w.sheets)
	if _, err := w.file.NewSheet(name); err != nil {
		return err
	}
	w.sheetName = name
	w.row = 1
	return w.writeHeaders()
}

func money(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func excelTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
