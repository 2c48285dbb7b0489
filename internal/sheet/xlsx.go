package sheet

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

func parseXLSX(data []byte) (merge.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	name := sheets[0]

	rows, err := f.Rows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	defer rows.Close()

	var table merge.Table
	rowNum := 0
	for rows.Next() {
		rowNum++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}

		row := make(merge.Row, len(cols))
		for i, v := range cols {
			row[i] = xlsxCell(f, name, i+1, rowNum, v)
		}
		table = append(table, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return table, nil
}

// xlsxCell types a raw value. Text that merely looks numeric stays text
// unless the cell itself is stored as a number or date.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) merge.Cell {
	if raw == "" {
		return merge.Empty()
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return merge.Text(raw)
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return merge.Text(raw)
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return merge.Text(raw)
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return merge.Number(n)
	default:
		return merge.Text(raw)
	}
}
