package merge

// LookupEntry is the best-known loan row for one normalized CNIC.
type LookupEntry struct {
	RowIndex int
	Cycle    int
	Loan     LoanRecord
}

// Index maps a normalized CNIC to its highest-cycle loan row.
type Index map[string]LookupEntry

// Lookup returns the entry for a raw or normalized CNIC.
func (idx Index) Lookup(cnic string) (LookupEntry, bool) {
	e, ok := idx[NormalizeIDString(cnic)]
	return e, ok
}

// BuildIndex runs the index pass to completion without yielding.
func BuildIndex(table Table, sheet SheetLayout[GuarantorColumns]) Index {
	idx, _ := buildIndex(table, sheet, nil)
	return idx
}

// buildIndex scans the loan sheet from StartRow. Rows whose key is shorter
// than MinKeyLength or whose guarantor name is empty are skipped. On a
// repeated key only a strictly greater cycle replaces the stored entry.
func buildIndex(table Table, sheet SheetLayout[GuarantorColumns], p *pacer) (Index, error) {
	start := clampStart(sheet.StartRow, len(table))
	n := len(table) - start
	idx := make(Index, n)

	p.begin(StateIndexBuilding, StatusScanning, n)
	for i := start; i < len(table); i++ {
		row := table[i]
		loan := LoanRecordFrom(row, sheet.Columns)

		key := NormalizeID(loan.CNIC)
		if len(key) >= MinKeyLength && !loan.GuarantorName.IsEmpty() {
			cycle := ParseCycle(loan.LoanCycle)
			if cur, ok := idx[key]; !ok || cycle > cur.Cycle {
				idx[key] = LookupEntry{RowIndex: i, Cycle: cycle, Loan: loan}
			}
		}

		if err := p.step(StateIndexBuilding, StatusScanning, i-start+1, n); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func clampStart(start, n int) int {
	if start < 0 {
		return 0
	}
	if start > n {
		return n
	}
	return start
}

// dataRows is the number of rows at or after start.
func dataRows(t Table, start int) int {
	return len(t) - clampStart(start, len(t))
}
