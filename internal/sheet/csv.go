package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

// parseCSV reads every record as text. CSV carries no cell types, so date
// columns arrive already formatted and pass through the date formatter as-is.
func parseCSV(data []byte) (merge.Table, error) {
	r := csv.NewReader(newUTF8Sanitizer(skipBOM(bytes.NewReader(data))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var table merge.Table
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		row := make(merge.Row, len(rec))
		for i, v := range rec {
			if v = cleanCell(v); v != "" {
				row[i] = merge.Text(v)
			}
		}
		table = append(table, row)
	}
	return table, nil
}

// cleanCell trims whitespace and unwraps the ="..." form Excel uses to keep
// long digit strings such as CNICs from turning into numbers.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		return s[2 : len(s)-1]
	}
	return s
}
