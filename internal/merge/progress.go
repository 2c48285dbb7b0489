package merge

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// State is a phase of a merge run.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateIndexBuilding
	StateJoining
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateIndexBuilding:
		return "index_building"
	case StateJoining:
		return "joining"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether a run in this state has finished.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Percent milestones of a run. The index and join passes share the band
// between PercentParsing and PercentScanEnd, split by row count.
const (
	PercentReading = 2
	PercentParsing = 8
	PercentScanEnd = 95
	PercentWriting = 96
	PercentDone    = 100
)

// Status texts shown to users.
const (
	StatusReading  = "Loading files..."
	StatusParsing  = "Parsing workbooks..."
	StatusScanning = "Scanning Guarantor Loans..."
	StatusMatching = "Matching Active Clients..."
	StatusDone     = "Export complete"
	StatusFailed   = "Export failed"
)

// Progress is one observation of a running merge.
type Progress struct {
	State   State  `json:"state"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// ProgressFunc receives progress updates. It is called from the goroutine
// running the merge and should return quickly.
type ProgressFunc func(Progress)

// tracker forwards progress while keeping the percent non-decreasing.
type tracker struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newTracker(fn ProgressFunc) *tracker {
	return &tracker{fn: fn}
}

func (t *tracker) report(state State, percent int, status string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if percent < t.last {
		percent = t.last
	}
	if percent > PercentDone {
		percent = PercentDone
	}
	t.last = percent
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(Progress{State: state, Percent: percent, Status: status})
	}
}

// pacer counts rows across both scan passes. Every `every` rows it checks
// for cancellation, reports progress, and yields the processor.
type pacer struct {
	ctx   context.Context
	every int
	total int
	done  int
	t     *tracker
}

func newPacer(ctx context.Context, every, total int, t *tracker) *pacer {
	if every <= 0 {
		every = DefaultYieldEvery
	}
	if total < 1 {
		total = 1
	}
	return &pacer{ctx: ctx, every: every, total: total, t: t}
}

// percent maps rows processed so far onto the shared scan band.
func (p *pacer) percent() int {
	span := float64(PercentScanEnd - PercentParsing)
	return PercentParsing + int(math.Round(float64(p.done)/float64(p.total)*span))
}

// begin announces a pass without counting a row.
func (p *pacer) begin(state State, label string, n int) {
	if p == nil {
		return
	}
	p.t.report(state, p.percent(), fmt.Sprintf("%s (0/%d)", label, n))
}

// step records one processed row; i is the row's position within its pass.
func (p *pacer) step(state State, label string, i, n int) error {
	if p == nil {
		return nil
	}
	p.done++
	if i%p.every != 0 && i != n {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.t.report(state, p.percent(), fmt.Sprintf("%s (%d/%d)", label, i, n))
	runtime.Gosched()
	return nil
}
