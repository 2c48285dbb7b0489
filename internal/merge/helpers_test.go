package merge

import "fmt"

// loanRow builds a Report 24 row for the default layout.
func loanRow(cnic, address, amount, cycle, name, cell string) Row {
	row := make(Row, 17)
	set := func(i int, v string) {
		if v != "" {
			row[i] = Text(v)
		}
	}
	set(3, cnic)
	set(6, address)
	set(8, amount)
	set(10, cycle)
	set(14, name)
	set(16, cell)
	return row
}

// clientRow builds a Report 12 row for the default layout.
func clientRow(id, name, cnic string) Row {
	row := make(Row, 21)
	row[1] = Text(id)
	row[2] = Text(name)
	row[3] = Text("Spouse of " + name)
	row[5] = Text("Enterprise Loan")
	row[6] = Text("Officer A")
	row[9] = Text("0300-2222222")
	row[13] = Text(cnic)
	row[15] = Text("North")
	row[16] = Number(45000)
	row[18] = Text("Main Branch")
	row[20] = Number(1500)
	return row
}

func headerRows() Table {
	return Table{
		TextRow("Report"),
		TextRow("", "Col B", "Col C", "Col D"),
	}
}

func withHeader(rows ...Row) Table {
	return append(headerRows(), rows...)
}

// cnic returns a distinct 13 digit CNIC.
func cnic(n int) string {
	return fmt.Sprintf("35202-%07d-1", n)
}
