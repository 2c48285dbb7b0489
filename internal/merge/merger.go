package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Parser turns the bytes of one spreadsheet file into its first sheet.
type Parser interface {
	Parse(name string, data []byte) (Table, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(name string, data []byte) (Table, error)

func (f ParserFunc) Parse(name string, data []byte) (Table, error) { return f(name, data) }

// Writer serializes an output table into a single-sheet workbook.
type Writer interface {
	Write(t *OutputTable) ([]byte, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(t *OutputTable) ([]byte, error)

func (f WriterFunc) Write(t *OutputTable) ([]byte, error) { return f(t) }

// Input is one source file. Data is read fully before parsing.
type Input struct {
	Name string
	Data io.Reader
}

// BytesInput wraps an in-memory file.
func BytesInput(name string, data []byte) Input {
	return Input{Name: name, Data: bytes.NewReader(data)}
}

// Result is the outcome of a successful run.
type Result struct {
	Table         *OutputTable
	File          []byte
	GuarantorRows int // data rows scanned in the loan sheet
	ClientRows    int // data rows scanned in the client sheet
	Indexed       int // distinct CNICs in the index
	Matched       int
	Duration      time.Duration
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for phase and summary logging.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// Merger runs the guarantor/client merge. A Merger runs one merge at a time;
// use separate Mergers for concurrent runs.
type Merger struct {
	layout  Layout
	parser  Parser
	writer  Writer
	logger  *slog.Logger
	running atomic.Bool
	state   atomic.Int32
}

// New creates a Merger. A nil writer skips serialization and leaves Result.File empty.
func New(layout Layout, parser Parser, writer Writer, opts ...Option) *Merger {
	m := &Merger{
		layout: layout,
		parser: parser,
		writer: writer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Layout returns the layout the Merger was built with.
func (m *Merger) Layout() Layout { return m.layout }

// State returns the current phase.
func (m *Merger) State() State { return State(m.state.Load()) }

func (m *Merger) setState(s State) {
	m.state.Store(int32(s))
	m.logger.Debug("merge state", "state", s.String())
}

// Run reads both inputs, builds the loan index, joins the client sheet
// against it and serializes the result.
//
// Cancelling ctx is honored between phases and at every yield point inside
// the scan passes; the Merger then returns to StateIdle and the error wraps
// ctx.Err(). Any other failure leaves it in StateFailed. No partial output
// is ever returned.
func (m *Merger) Run(ctx context.Context, guarantor, clients Input, onProgress ProgressFunc) (*Result, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer m.running.Store(false)

	// A new attempt starts from Idle, including after a failure.
	m.setState(StateIdle)

	var missing []string
	if guarantor.Data == nil {
		missing = append(missing, "guarantor")
	}
	if clients.Data == nil {
		missing = append(missing, "clients")
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Inputs: missing}
	}

	t := newTracker(onProgress)
	start := time.Now()

	res, err := m.run(ctx, guarantor, clients, t)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			m.setState(StateIdle)
			m.logger.Info("merge cancelled", "error", err)
			return nil, fmt.Errorf("merge cancelled: %w", err)
		}
		m.setState(StateFailed)
		t.report(StateFailed, PercentDone, StatusFailed)
		m.logger.Warn("merge failed", "kind", string(KindOf(err)), "error", err)
		return nil, err
	}

	res.Duration = time.Since(start)
	m.setState(StateDone)
	t.report(StateDone, PercentDone, StatusDone)
	m.logger.Info("merge complete",
		"guarantor_rows", res.GuarantorRows,
		"client_rows", res.ClientRows,
		"indexed", res.Indexed,
		"matched", res.Matched,
		"duration", res.Duration,
	)
	return res, nil
}

func (m *Merger) run(ctx context.Context, guarantor, clients Input, t *tracker) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("merge panic: %v", r)
		}
	}()

	m.setState(StateReading)
	t.report(StateReading, PercentReading, StatusReading)

	loanTable, clientTable, err := m.readInputs(ctx, guarantor, clients, t)
	if err != nil {
		return nil, err
	}

	gl, cl := m.layout.Guarantor, m.layout.Clients
	res = &Result{
		GuarantorRows: dataRows(loanTable, gl.StartRow),
		ClientRows:    dataRows(clientTable, cl.StartRow),
	}
	p := newPacer(ctx, m.layout.yieldEvery(), res.GuarantorRows+res.ClientRows, t)

	m.setState(StateIndexBuilding)
	idx, err := buildIndex(loanTable, gl, p)
	if err != nil {
		return nil, err
	}
	res.Indexed = len(idx)

	m.setState(StateJoining)
	out, err := join(clientTable, cl, idx, p)
	if err != nil {
		return nil, err
	}
	res.Table = out
	res.Matched = out.Len()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.setState(StateWriting)
	t.report(StateWriting, PercentWriting, fmt.Sprintf("Writing workbook with %d matched records...", out.Len()))
	if m.writer != nil {
		file, err := m.writer.Write(out)
		if err != nil {
			return nil, &WriteError{Err: err}
		}
		res.File = file
	}
	return res, nil
}

// readInputs loads both files concurrently, then parses them.
func (m *Merger) readInputs(ctx context.Context, guarantor, clients Input, t *tracker) (Table, Table, error) {
	var loanData, clientData []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := readAll(gctx, guarantor)
		loanData = b
		return err
	})
	g.Go(func() error {
		b, err := readAll(gctx, clients)
		clientData = b
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	t.report(StateReading, PercentParsing, StatusParsing)

	loanTable, err := m.parser.Parse(guarantor.Name, loanData)
	if err != nil {
		return nil, nil, &ParseError{File: guarantor.Name, Err: err}
	}
	clientTable, err := m.parser.Parse(clients.Name, clientData)
	if err != nil {
		return nil, nil, &ParseError{File: clients.Name, Err: err}
	}
	return loanTable, clientTable, nil
}

func readAll(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(in.Data)
	if err != nil {
		return nil, &ParseError{File: in.Name, Err: fmt.Errorf("read: %w", err)}
	}
	return b, nil
}
