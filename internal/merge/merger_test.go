package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParser returns fixed tables keyed by file name.
type fakeParser map[string]Table

func (f fakeParser) Parse(name string, _ []byte) (Table, error) {
	t, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("not a spreadsheet")
	}
	return t, nil
}

func csvWriter(t *OutputTable) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range t.Table() {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = c.String()
		}
		buf.WriteString(strings.Join(cells, ",") + "\n")
	}
	return buf.Bytes(), nil
}

type progressLog struct {
	mu     sync.Mutex
	events []Progress
}

func (l *progressLog) record(p Progress) {
	l.mu.Lock()
	l.events = append(l.events, p)
	l.mu.Unlock()
}

func (l *progressLog) statuses() []string {
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Status
	}
	return out
}

func sampleTables() fakeParser {
	loans := withHeader(Row{
		Text(""), Text(""), Text(""), Text("1234567890123"), Text(""), Text(""),
		Text("123 Main St"), Text(""), Text("50000"), Text(""), Text("3"), Text(""),
		Text(""), Text(""), Text("John Guarantor"), Text(""), Text("0300-1111111"),
	})
	clients := withHeader(clientRow("CL001", "Jane Client", "12345-6789012-3"))
	return fakeParser{"loans.xlsx": loans, "clients.xlsx": clients}
}

func inputs() (Input, Input) {
	return BytesInput("loans.xlsx", []byte("x")), BytesInput("clients.xlsx", []byte("y"))
}

func TestMerger_EndToEnd(t *testing.T) {
	m := New(DefaultLayout(), sampleTables(), WriterFunc(csvWriter))
	g, c := inputs()

	var log progressLog
	res, err := m.Run(context.Background(), g, c, log.record)
	require.NoError(t, err)

	require.Equal(t, 1, res.Table.Len())
	row := res.Table.Rows[0]
	assert.Equal(t, "CL001", row.ClientID.String())
	assert.Equal(t, "123 Main St", row.Address.String())
	assert.Equal(t, "John Guarantor", row.GuarantorName.String())
	assert.Equal(t, "0300-1111111", row.GuarantorCell.String())
	assert.Equal(t, "3", row.LoanCycle.String())

	assert.Equal(t, 1, res.GuarantorRows)
	assert.Equal(t, 1, res.ClientRows)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 1, res.Matched)
	assert.True(t, strings.HasPrefix(string(res.File), "Client ID,Name,"))
	assert.Equal(t, StateDone, m.State())

	statuses := log.statuses()
	assert.Equal(t, "Loading files...", statuses[0])
	assert.Contains(t, statuses, "Parsing workbooks...")
	assert.Contains(t, statuses, "Scanning Guarantor Loans... (1/1)")
	assert.Contains(t, statuses, "Matching Active Clients... (1/1)")
	assert.Contains(t, statuses, "Writing workbook with 1 matched records...")
	assert.Equal(t, "Export complete", statuses[len(statuses)-1])

	last := log.events[len(log.events)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, StateDone, last.State)
}

func TestMerger_NoMatch(t *testing.T) {
	tables := sampleTables()
	tables["clients.xlsx"] = withHeader(clientRow("CL002", "Other", "9999999999999"))

	m := New(DefaultLayout(), tables, WriterFunc(csvWriter))
	g, c := inputs()

	res, err := m.Run(context.Background(), g, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())
	assert.Len(t, res.Table.Table(), 1)
	assert.Equal(t, 1, strings.Count(string(res.File), "\n"))
}

func TestMerger_ProgressMonotonic(t *testing.T) {
	var loans, clients Table
	loans = headerRows()
	clients = headerRows()
	for i := range 2000 {
		loans = append(loans, loanRow(cnic(i), "addr", "1", "1", "G", ""))
	}
	for i := range 700 {
		clients = append(clients, clientRow(fmt.Sprintf("C%d", i), "n", cnic(i*3)))
	}

	layout := DefaultLayout()
	layout.YieldEvery = 100
	m := New(layout, fakeParser{"loans.xlsx": loans, "clients.xlsx": clients}, nil)
	g, c := inputs()

	var log progressLog
	res, err := m.Run(context.Background(), g, c, log.record)
	require.NoError(t, err)
	assert.Nil(t, res.File)

	prev := 0
	for _, e := range log.events {
		assert.GreaterOrEqual(t, e.Percent, prev, "status %q", e.Status)
		assert.LessOrEqual(t, e.Percent, 100)
		prev = e.Percent
	}

	var sawScanEnd bool
	for _, e := range log.events {
		if e.Status == "Matching Active Clients... (700/700)" {
			sawScanEnd = true
			assert.Equal(t, PercentScanEnd, e.Percent)
		}
	}
	assert.True(t, sawScanEnd)

	// Index pass covers 2000 of 2700 rows: 8 + round(2000/2700 * 87) = 72.
	var sawIndexEnd bool
	for _, e := range log.events {
		if e.Status == "Scanning Guarantor Loans... (2000/2000)" {
			sawIndexEnd = true
			assert.Equal(t, 72, e.Percent)
		}
	}
	assert.True(t, sawIndexEnd)
	assert.Equal(t, 667, res.Matched)
}

func TestMerger_MissingInput(t *testing.T) {
	m := New(DefaultLayout(), sampleTables(), nil)
	g, _ := inputs()

	var log progressLog
	_, err := m.Run(context.Background(), g, Input{Name: "clients.xlsx"}, log.record)

	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"clients"}, missing.Inputs)
	assert.Equal(t, KindMissingInput, KindOf(err))
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, log.events)
}

func TestMerger_ParseError(t *testing.T) {
	tables := sampleTables()
	delete(tables, "clients.xlsx")

	m := New(DefaultLayout(), tables, WriterFunc(csvWriter))
	g, c := inputs()

	var log progressLog
	res, err := m.Run(context.Background(), g, c, log.record)
	assert.Nil(t, res)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "clients.xlsx", parseErr.File)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Equal(t, StateFailed, m.State())

	last := log.events[len(log.events)-1]
	assert.Equal(t, "Export failed", last.Status)
	assert.Equal(t, StateFailed, last.State)
}

func TestMerger_WriteError(t *testing.T) {
	boom := errors.New("disk full")
	m := New(DefaultLayout(), sampleTables(), WriterFunc(func(*OutputTable) ([]byte, error) {
		return nil, boom
	}))
	g, c := inputs()

	res, err := m.Run(context.Background(), g, c, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindWrite, KindOf(err))
	assert.Equal(t, StateFailed, m.State())

	// A failed Merger can run again.
	m.writer = WriterFunc(csvWriter)
	g, c = inputs()
	_, err = m.Run(context.Background(), g, c, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, m.State())
}

func TestMerger_RetryAfterFailureStartsIdle(t *testing.T) {
	m := New(DefaultLayout(), sampleTables(), WriterFunc(func(*OutputTable) ([]byte, error) {
		return nil, errors.New("disk full")
	}))
	g, c := inputs()
	_, err := m.Run(context.Background(), g, c, nil)
	require.Error(t, err)
	require.Equal(t, StateFailed, m.State())

	_, err = m.Run(context.Background(), g, Input{Name: "clients.xlsx"}, nil)
	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, StateIdle, m.State())
}

func TestMerger_CancelReturnsToIdle(t *testing.T) {
	loans := headerRows()
	for i := range 50 {
		loans = append(loans, loanRow(cnic(i), "addr", "1", "1", "G", ""))
	}
	tables := fakeParser{"loans.xlsx": loans, "clients.xlsx": headerRows()}

	layout := DefaultLayout()
	layout.YieldEvery = 1

	writes := 0
	m := New(layout, tables, WriterFunc(func(t *OutputTable) ([]byte, error) {
		writes++
		return nil, nil
	}))
	g, c := inputs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var log progressLog
	res, err := m.Run(ctx, g, c, func(p Progress) {
		log.record(p)
		if p.State == StateIndexBuilding {
			cancel()
		}
	})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, writes)
	for _, e := range log.events {
		assert.NotEqual(t, StateFailed, e.State)
	}
}

func TestMerger_RejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tables := sampleTables()

	parser := ParserFunc(func(name string, data []byte) (Table, error) {
		if name == "loans.xlsx" {
			close(entered)
			<-release
		}
		return tables.Parse(name, data)
	})
	m := New(DefaultLayout(), parser, nil)

	done := make(chan error, 1)
	go func() {
		g, c := inputs()
		_, err := m.Run(context.Background(), g, c, nil)
		done <- err
	}()

	<-entered
	assert.Equal(t, StateReading, m.State())

	g, c := inputs()
	_, err := m.Run(context.Background(), g, c, nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateDone, m.State())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("x")))
	assert.Equal(t, KindParse, KindOf(fmt.Errorf("wrap: %w", &ParseError{File: "a", Err: errors.New("bad")})))
	assert.Equal(t, KindCancelled, KindOf(context.DeadlineExceeded))
}
