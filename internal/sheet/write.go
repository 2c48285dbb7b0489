package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

const outputColumnWidth = 18

// Write renders t as an .xlsx workbook with one sheet named sheetName.
// Row 1 is the fixed header; number cells stay numeric.
func Write(t *merge.OutputTable, sheetName string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, merge.OutputColumns, outputColumnWidth); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, row := range t.Table() {
		values := make([]interface{}, len(row))
		for j, c := range row {
			values[j] = c.Value()
		}
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(ref, values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
