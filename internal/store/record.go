// Package store keeps the consolidated guarantor records that the viewer
// searches. Two implementations share one method set: Postgres for a
// deployed service and Memory for offline use and tests.
package store

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

// Record is one consolidated row. JSON names match the workbook headers so
// feed exports and downloads use the same vocabulary.
type Record struct {
	ID             int64  `json:"id,omitempty" db:"id"`
	ClientID       string `json:"Client ID" db:"client_id"`
	Name           string `json:"Name" db:"name"`
	Spouse         string `json:"Spouse" db:"spouse"`
	Product        string `json:"Product" db:"product"`
	COName         string `json:"CO Name" db:"co_name"`
	CellNo         string `json:"Cell No" db:"cell_no"`
	Area           string `json:"Area" db:"area"`
	MaturityDate   string `json:"Maturity Date" db:"maturity_date"`
	Branch         string `json:"Branch" db:"branch"`
	LastAmountPaid string `json:"Last Amount Paid" db:"last_amount_paid"`
	Address        string `json:"Address" db:"address"`
	LoanAmount     string `json:"Loan Amount" db:"loan_amount"`
	LoanCycle      string `json:"Loan Cycle" db:"loan_cycle"`
	GuarantorName  string `json:"Guarantor Name" db:"guarantor_name"`
	GuarantorCell  string `json:"Guarantor Cell" db:"guarantor_cell"`
}

// RecordFromRow converts a merged output row.
func RecordFromRow(r merge.OutputRow) Record {
	return Record{
		ClientID:       r.ClientID.String(),
		Name:           r.Name.String(),
		Spouse:         r.Spouse.String(),
		Product:        r.Product.String(),
		COName:         r.COName.String(),
		CellNo:         r.CellNo.String(),
		Area:           r.Area.String(),
		MaturityDate:   r.MaturityDate,
		Branch:         r.Branch.String(),
		LastAmountPaid: r.LastAmountPaid.String(),
		Address:        r.Address.String(),
		LoanAmount:     r.LoanAmount.String(),
		LoanCycle:      r.LoanCycle.String(),
		GuarantorName:  r.GuarantorName.String(),
		GuarantorCell:  r.GuarantorCell.String(),
	}
}

// RecordsFromTable converts every row of a merge result.
func RecordsFromTable(t *merge.OutputTable) []Record {
	if t == nil {
		return nil
	}
	out := make([]Record, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = RecordFromRow(r)
	}
	return out
}

// values returns the data columns in copyColumns order.
func (r Record) values() []any {
	return []any{
		r.ClientID, r.Name, r.Spouse, r.Product, r.COName, r.CellNo, r.Area,
		r.MaturityDate, r.Branch, r.LastAmountPaid, r.Address, r.LoanAmount,
		r.LoanCycle, r.GuarantorName, r.GuarantorCell,
	}
}

// Matches reports whether Client ID, Name, CO Name or Branch contains q,
// ignoring case. An empty query matches nothing.
func (r Record) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return false
	}
	for _, f := range []string{r.ClientID, r.Name, r.COName, r.Branch} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts strings, numbers or null for every field. Feeds
// exported from spreadsheets send numeric columns as JSON numbers.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := map[string]*string{
		"Client ID":        &r.ClientID,
		"Name":             &r.Name,
		"Spouse":           &r.Spouse,
		"Product":          &r.Product,
		"CO Name":          &r.COName,
		"Cell No":          &r.CellNo,
		"Area":             &r.Area,
		"Maturity Date":    &r.MaturityDate,
		"Branch":           &r.Branch,
		"Last Amount Paid": &r.LastAmountPaid,
		"Address":          &r.Address,
		"Loan Amount":      &r.LoanAmount,
		"Loan Cycle":       &r.LoanCycle,
		"Guarantor Name":   &r.GuarantorName,
		"Guarantor Cell":   &r.GuarantorCell,
	}

	for key, msg := range raw {
		if key == "id" {
			// Feed ids are ignored; the store assigns its own.
			continue
		}
		dst, ok := fields[key]
		if !ok {
			continue
		}
		s, err := scalarString(msg)
		if err != nil {
			return errors.New("field " + strconv.Quote(key) + ": " + err.Error())
		}
		*dst = s
	}
	return nil
}

func scalarString(msg json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return merge.Number(t).String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errors.New("expected a scalar value")
	}
}
