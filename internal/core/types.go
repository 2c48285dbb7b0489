package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/store"
)

// RecordStore is the storage handle the service needs. store.Postgres and
// store.Memory both satisfy it.
type RecordStore interface {
	ReplaceAll(ctx context.Context, records []store.Record, onProgress store.ProgressFunc) error
	All(ctx context.Context) ([]store.Record, error)
	Search(ctx context.Context, query string) ([]store.Record, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// FileInput is one uploaded spreadsheet.
type FileInput struct {
	Name string
	Data io.Reader
	Size int64 // bytes, 0 if unknown
}

// RunPhase is the externally visible stage of a merge run. It extends the
// engine's states with the service-level outcomes.
type RunPhase string

const (
	PhaseQueued    RunPhase = "queued"
	PhaseRunning   RunPhase = "running"
	PhaseComplete  RunPhase = "complete"
	PhaseFailed    RunPhase = "failed"
	PhaseCancelled RunPhase = "cancelled"
)

// Terminal reports whether the run has finished.
func (p RunPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// RunProgress is a snapshot of a merge run, suitable for SSE payloads.
type RunProgress struct {
	RunID   string      `json:"run_id"`
	Phase   RunPhase    `json:"phase"`
	State   merge.State `json:"-"`
	Step    string      `json:"step"`
	Percent int         `json:"percent"`
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID         string        `json:"run_id"`
	Phase         RunPhase      `json:"phase"`
	GuarantorFile string        `json:"guarantor_file"`
	ClientFile    string        `json:"client_file"`
	GuarantorRows int           `json:"guarantor_rows"`
	ClientRows    int           `json:"client_rows"`
	Indexed       int           `json:"indexed"`
	Matched       int           `json:"matched"`
	OutputName    string        `json:"output_name,omitempty"`
	OutputBytes   int           `json:"output_bytes"`
	Duration      time.Duration `json:"duration_ns"`
	Error         string        `json:"error,omitempty"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Code          string        `json:"code,omitempty"`
	Published     bool          `json:"published"`
}

// SyncProgress reports feed import progress.
type SyncProgress struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// SyncFunc receives sync progress.
type SyncFunc func(SyncProgress)

// SyncResult summarizes a completed feed import.
type SyncResult struct {
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
	SyncedAt time.Time     `json:"synced_at"`
}
