package merge

// OutputHeader is row 1 of every generated workbook.
var OutputHeader = [...]string{
	"Client ID",
	"Name",
	"Spouse",
	"Product",
	"CO Name",
	"Cell No",
	"Area",
	"Maturity Date",
	"Branch",
	"Last Amount Paid",
	"Address",
	"Loan Amount",
	"Loan Cycle",
	"Guarantor Name",
	"Guarantor Cell",
}

// OutputColumns is the fixed width of an output row.
const OutputColumns = len(OutputHeader)

// LoanRecord is the typed view of one Guarantor Info row.
type LoanRecord struct {
	CNIC          Cell
	Address       Cell
	LoanAmount    Cell
	LoanCycle     Cell
	GuarantorName Cell
	GuarantorCell Cell
}

// LoanRecordFrom extracts a LoanRecord from a raw row.
func LoanRecordFrom(row Row, cols GuarantorColumns) LoanRecord {
	return LoanRecord{
		CNIC:          row.At(cols.CNIC),
		Address:       row.At(cols.Address),
		LoanAmount:    row.At(cols.LoanAmount),
		LoanCycle:     row.At(cols.LoanCycle),
		GuarantorName: row.At(cols.Name),
		GuarantorCell: row.At(cols.Cell),
	}
}

// ClientRecord is the typed view of one Active Client row.
type ClientRecord struct {
	ClientID     Cell
	Name         Cell
	Spouse       Cell
	Product      Cell
	COName       Cell
	CellNo       Cell
	Area         Cell
	MaturityDate Cell
	Branch       Cell
	LastPaid     Cell
	CNIC         Cell
}

// ClientRecordFrom extracts a ClientRecord from a raw row.
func ClientRecordFrom(row Row, cols ClientColumns) ClientRecord {
	return ClientRecord{
		ClientID:     row.At(cols.ClientID),
		Name:         row.At(cols.Name),
		Spouse:       row.At(cols.Spouse),
		Product:      row.At(cols.Product),
		COName:       row.At(cols.COName),
		CellNo:       row.At(cols.CellNo),
		Area:         row.At(cols.Area),
		MaturityDate: row.At(cols.MaturityDate),
		Branch:       row.At(cols.Branch),
		LastPaid:     row.At(cols.LastPaid),
		CNIC:         row.At(cols.CNIC),
	}
}

// OutputRow is one consolidated record. It is built once and never mutated.
type OutputRow struct {
	ClientID       Cell
	Name           Cell
	Spouse         Cell
	Product        Cell
	COName         Cell
	CellNo         Cell
	Area           Cell
	MaturityDate   string
	Branch         Cell
	LastAmountPaid Cell
	Address        Cell
	LoanAmount     Cell
	LoanCycle      Cell
	GuarantorName  Cell
	GuarantorCell  Cell
}

// NewOutputRow combines a client with the winning loan record.
func NewOutputRow(client ClientRecord, loan LoanRecord) OutputRow {
	return OutputRow{
		ClientID:       client.ClientID,
		Name:           client.Name,
		Spouse:         client.Spouse,
		Product:        client.Product,
		COName:         client.COName,
		CellNo:         client.CellNo,
		Area:           client.Area,
		MaturityDate:   FormatSerialDate(client.MaturityDate),
		Branch:         client.Branch,
		LastAmountPaid: client.LastPaid,
		Address:        loan.Address,
		LoanAmount:     loan.LoanAmount,
		LoanCycle:      loan.LoanCycle,
		GuarantorName:  loan.GuarantorName,
		GuarantorCell:  loan.GuarantorCell,
	}
}

// Cells returns the row in OutputHeader order.
func (r OutputRow) Cells() Row {
	maturity := Empty()
	if r.MaturityDate != "" {
		maturity = Text(r.MaturityDate)
	}
	return Row{
		r.ClientID,
		r.Name,
		r.Spouse,
		r.Product,
		r.COName,
		r.CellNo,
		r.Area,
		maturity,
		r.Branch,
		r.LastAmountPaid,
		r.Address,
		r.LoanAmount,
		r.LoanCycle,
		r.GuarantorName,
		r.GuarantorCell,
	}
}

// Strings returns the row coerced to text in OutputHeader order.
func (r OutputRow) Strings() []string {
	cells := r.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

// OutputTable is the consolidated result: a fixed header plus matched rows.
type OutputTable struct {
	Rows []OutputRow
}

// Header returns a copy of the fixed header row.
func (t *OutputTable) Header() []string {
	h := make([]string, OutputColumns)
	copy(h, OutputHeader[:])
	return h
}

// Len returns the number of data rows (the header is not counted).
func (t *OutputTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Table renders the output, header first, as a raw table.
func (t *OutputTable) Table() Table {
	out := make(Table, 0, t.Len()+1)
	header := make(Row, OutputColumns)
	for i, h := range OutputHeader {
		header[i] = Text(h)
	}
	out = append(out, header)
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		out = append(out, r.Cells())
	}
	return out
}
