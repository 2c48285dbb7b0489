package sheet

import (
	"bytes"
	"fmt"

	"github.com/shakinm/xlsReader/xls"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

func parseXLS(data []byte) (table merge.Table, err error) {
	// The BIFF reader indexes into record buffers without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("corrupt xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if len(wb.GetSheets()) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	ws, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("read first sheet: %w", err)
	}

	for _, r := range ws.GetRows() {
		cols := r.GetCols()
		row := make(merge.Row, len(cols))
		for i, c := range cols {
			row[i] = xlsCell(c)
		}
		table = append(table, row)
	}
	return table, nil
}

// xlsCellData is the part of a BIFF cell record the parser reads.
type xlsCellData interface {
	GetString() string
	GetFloat64() float64
	GetType() string
}

// BIFF records that hold numbers. Everything else is read as text.
var xlsNumberRecords = map[string]bool{
	"*record.Number": true,
	"*record.Rk":     true,
	"*record.MulRk":  true,
}

// xlsCell types a cell by its record, so a label such as "45000" stays text.
func xlsCell(c xlsCellData) merge.Cell {
	if xlsNumberRecords[c.GetType()] {
		return merge.Number(c.GetFloat64())
	}
	s := c.GetString()
	if s == "" {
		return merge.Empty()
	}
	return merge.Text(s)
}
