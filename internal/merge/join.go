package merge

// Join runs the join pass to completion without yielding.
func Join(table Table, sheet SheetLayout[ClientColumns], idx Index) *OutputTable {
	out, _ := join(table, sheet, idx, nil)
	return out
}

// join walks the client sheet from StartRow and emits one OutputRow per
// client whose CNIC is in idx. Unmatched clients are dropped.
func join(table Table, sheet SheetLayout[ClientColumns], idx Index, p *pacer) (*OutputTable, error) {
	start := clampStart(sheet.StartRow, len(table))
	n := len(table) - start
	out := &OutputTable{}

	p.begin(StateJoining, StatusMatching, n)
	for i := start; i < len(table); i++ {
		client := ClientRecordFrom(table[i], sheet.Columns)

		if entry, ok := idx[NormalizeID(client.CNIC)]; ok {
			out.Rows = append(out.Rows, NewOutputRow(client, entry.Loan))
		}

		if err := p.step(StateJoining, StatusMatching, i-start+1, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
