package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

// Column is a 0-based column index. In YAML it may be written as an
// integer (3) or as a spreadsheet column letter ("D").
type Column int

// UnmarshalYAML accepts integers, numeric strings and column letters.
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column must be a number or a letter", node.Line)
	}
	v := strings.TrimSpace(node.Value)

	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return fmt.Errorf("line %d: column %d must be non-negative", node.Line, n)
		}
		*c = Column(n)
		return nil
	}

	n, err := excelize.ColumnNameToNumber(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = Column(n - 1)
	return nil
}

// MarshalYAML writes the column as its letter.
func (c Column) MarshalYAML() (any, error) {
	name, err := excelize.ColumnNumberToName(int(c) + 1)
	if err != nil {
		return nil, err
	}
	return name, nil
}

type guarantorColumnsFile struct {
	CNIC       Column `yaml:"cnic"`
	Address    Column `yaml:"address"`
	LoanAmount Column `yaml:"loan_amount"`
	LoanCycle  Column `yaml:"loan_cycle"`
	Name       Column `yaml:"name"`
	Cell       Column `yaml:"cell"`
}

type clientColumnsFile struct {
	ClientID     Column `yaml:"client_id"`
	Name         Column `yaml:"name"`
	Spouse       Column `yaml:"spouse"`
	Product      Column `yaml:"product"`
	COName       Column `yaml:"co_name"`
	CellNo       Column `yaml:"cell_no"`
	Area         Column `yaml:"area"`
	MaturityDate Column `yaml:"maturity_date"`
	Branch       Column `yaml:"branch"`
	LastPaid     Column `yaml:"last_paid"`
	CNIC         Column `yaml:"cnic"`
}

type layoutFile struct {
	YieldEvery int `yaml:"yield_every"`
	Guarantor  struct {
		StartRow int                  `yaml:"start_row"`
		Columns  guarantorColumnsFile `yaml:"columns"`
	} `yaml:"guarantor"`
	Clients struct {
		StartRow int               `yaml:"start_row"`
		Columns  clientColumnsFile `yaml:"columns"`
	} `yaml:"clients"`
}

func toFile(l merge.Layout) layoutFile {
	var f layoutFile
	f.YieldEvery = l.YieldEvery

	g := l.Guarantor.Columns
	f.Guarantor.StartRow = l.Guarantor.StartRow
	f.Guarantor.Columns = guarantorColumnsFile{
		CNIC:       Column(g.CNIC),
		Address:    Column(g.Address),
		LoanAmount: Column(g.LoanAmount),
		LoanCycle:  Column(g.LoanCycle),
		Name:       Column(g.Name),
		Cell:       Column(g.Cell),
	}

	c := l.Clients.Columns
	f.Clients.StartRow = l.Clients.StartRow
	f.Clients.Columns = clientColumnsFile{
		ClientID:     Column(c.ClientID),
		Name:         Column(c.Name),
		Spouse:       Column(c.Spouse),
		Product:      Column(c.Product),
		COName:       Column(c.COName),
		CellNo:       Column(c.CellNo),
		Area:         Column(c.Area),
		MaturityDate: Column(c.MaturityDate),
		Branch:       Column(c.Branch),
		LastPaid:     Column(c.LastPaid),
		CNIC:         Column(c.CNIC),
	}
	return f
}

func (f layoutFile) layout() merge.Layout {
	g := f.Guarantor.Columns
	c := f.Clients.Columns
	return merge.Layout{
		YieldEvery: f.YieldEvery,
		Guarantor: merge.SheetLayout[merge.GuarantorColumns]{
			StartRow: f.Guarantor.StartRow,
			Columns: merge.GuarantorColumns{
				CNIC:       int(g.CNIC),
				Address:    int(g.Address),
				LoanAmount: int(g.LoanAmount),
				LoanCycle:  int(g.LoanCycle),
				Name:       int(g.Name),
				Cell:       int(g.Cell),
			},
		},
		Clients: merge.SheetLayout[merge.ClientColumns]{
			StartRow: f.Clients.StartRow,
			Columns: merge.ClientColumns{
				ClientID:     int(c.ClientID),
				Name:         int(c.Name),
				Spouse:       int(c.Spouse),
				Product:      int(c.Product),
				COName:       int(c.COName),
				CellNo:       int(c.CellNo),
				Area:         int(c.Area),
				MaturityDate: int(c.MaturityDate),
				Branch:       int(c.Branch),
				LastPaid:     int(c.LastPaid),
				CNIC:         int(c.CNIC),
			},
		},
	}
}

// ParseLayout decodes a YAML layout. Fields the document omits keep their
// built-in defaults; unknown keys are rejected.
func ParseLayout(data []byte) (merge.Layout, error) {
	f := toFile(merge.DefaultLayout())

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return merge.Layout{}, fmt.Errorf("decode layout: %w", err)
	}

	l := f.layout()
	if err := l.Validate(); err != nil {
		return merge.Layout{}, err
	}
	return l, nil
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (merge.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return merge.Layout{}, fmt.Errorf("read layout: %w", err)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return merge.Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// MarshalLayout renders l as YAML with column letters.
func MarshalLayout(l merge.Layout) ([]byte, error) {
	return yaml.Marshal(toFile(l))
}

// Layout resolves the effective column layout: the layout file (or the
// built-in default) with any start-row and cadence overrides applied.
func (c MergeConfig) Layout() (merge.Layout, error) {
	l := merge.DefaultLayout()
	if c.LayoutFile != "" {
		var err error
		if l, err = LoadLayout(c.LayoutFile); err != nil {
			return merge.Layout{}, err
		}
	}

	if c.GuarantorStartRow >= 0 {
		l.Guarantor.StartRow = c.GuarantorStartRow
	}
	if c.ClientStartRow >= 0 {
		l.Clients.StartRow = c.ClientStartRow
	}
	if c.YieldEvery > 0 {
		l.YieldEvery = c.YieldEvery
	}
	return l, l.Validate()
}
