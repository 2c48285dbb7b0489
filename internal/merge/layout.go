package merge

import (
	"fmt"
	"strings"
)

// Column indexes are 0-based and agreed with the report producers out of band.
// Nothing checks them against header text; a shifted sheet yields shifted data.

// GuarantorColumns locates fields in the Guarantor Info sheet (Report 24).
type GuarantorColumns struct {
	CNIC       int
	Address    int
	LoanAmount int
	LoanCycle  int
	Name       int
	Cell       int
}

// ClientColumns locates fields in the Active Client sheet (Report 12).
type ClientColumns struct {
	ClientID     int
	Name         int
	Spouse       int
	Product      int
	COName       int
	CellNo       int
	Area         int
	MaturityDate int
	Branch       int
	LastPaid     int
	CNIC         int
}

// SheetLayout pairs a column map with the number of leading rows to skip.
type SheetLayout[C any] struct {
	StartRow int
	Columns  C
}

// Layout is the full spreadsheet contract consumed by the engine.
type Layout struct {
	Guarantor  SheetLayout[GuarantorColumns]
	Clients    SheetLayout[ClientColumns]
	YieldEvery int // rows between progress reports and scheduler yields
}

// DefaultYieldEvery is the row cadence used when Layout.YieldEvery is unset.
const DefaultYieldEvery = 500

// DefaultLayout returns the column positions used by the branch reports.
func DefaultLayout() Layout {
	return Layout{
		Guarantor: SheetLayout[GuarantorColumns]{
			StartRow: 2,
			Columns: GuarantorColumns{
				CNIC:       3,  // D
				Address:    6,  // G
				LoanAmount: 8,  // I
				LoanCycle:  10, // K
				Name:       14, // O
				Cell:       16, // Q
			},
		},
		Clients: SheetLayout[ClientColumns]{
			StartRow: 2,
			Columns: ClientColumns{
				ClientID:     1,  // B
				Name:         2,  // C
				Spouse:       3,  // D
				Product:      5,  // F
				COName:       6,  // G
				CellNo:       9,  // J
				Area:         15, // P
				MaturityDate: 16, // Q
				Branch:       18, // S
				LastPaid:     20, // U
				CNIC:         13, // N
			},
		},
		YieldEvery: DefaultYieldEvery,
	}
}

// Validate reports negative indexes or offsets.
func (l Layout) Validate() error {
	var errs []string

	check := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s (%d) must be non-negative", name, v))
		}
	}

	check("guarantor.start_row", l.Guarantor.StartRow)
	g := l.Guarantor.Columns
	check("guarantor.cnic", g.CNIC)
	check("guarantor.address", g.Address)
	check("guarantor.loan_amount", g.LoanAmount)
	check("guarantor.loan_cycle", g.LoanCycle)
	check("guarantor.name", g.Name)
	check("guarantor.cell", g.Cell)

	check("clients.start_row", l.Clients.StartRow)
	c := l.Clients.Columns
	check("clients.client_id", c.ClientID)
	check("clients.name", c.Name)
	check("clients.spouse", c.Spouse)
	check("clients.product", c.Product)
	check("clients.co_name", c.COName)
	check("clients.cell_no", c.CellNo)
	check("clients.area", c.Area)
	check("clients.maturity_date", c.MaturityDate)
	check("clients.branch", c.Branch)
	check("clients.last_paid", c.LastPaid)
	check("clients.cnic", c.CNIC)

	check("yield_every", l.YieldEvery)

	if len(errs) > 0 {
		return fmt.Errorf("invalid layout:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (l Layout) yieldEvery() int {
	if l.YieldEvery <= 0 {
		return DefaultYieldEvery
	}
	return l.YieldEvery
}
