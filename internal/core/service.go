package core

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/sheet"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultMergeTimeout = 5 * time.Minute
	DefaultResultTTL    = 15 * time.Minute
	DefaultMaxFileSize  = 50 << 20
	DefaultOutputName   = "Updated Guarantor Info.xlsx"
	DefaultSyncTimeout  = 30 * time.Second
)

var (
	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotComplete is returned when a run's output is requested early.
	ErrRunNotComplete = errors.New("run not complete")

	// ErrNothingToPublish is returned when publishing a failed or empty run.
	ErrNothingToPublish = errors.New("run has no records to publish")

	// ErrFileTooLarge is returned when an input exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// Options configures a Service.
type Options struct {
	Layout     merge.Layout
	SheetName  string // output sheet, default sheet.DefaultSheetName
	OutputName string // download file name

	Timeout     time.Duration // per-run
	ResultTTL   time.Duration // how long finished runs stay downloadable
	MaxFileSize int64         // per input, bytes

	MaxConcurrent int
	MaxWait       time.Duration

	SyncURL     string
	SyncTimeout time.Duration
	HTTPClient  *http.Client

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Layout == (merge.Layout{}) {
		o.Layout = merge.DefaultLayout()
	}
	if o.OutputName == "" {
		o.OutputName = DefaultOutputName
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultMergeTimeout
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = DefaultResultTTL
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = DefaultSyncTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.SyncTimeout}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Service runs merges and serves the record store.
type Service struct {
	store   RecordStore
	opts    Options
	codec   sheet.Codec
	limiter *MergeLimiter
	logger  *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun

	syncing atomic.Bool
	lastMu  sync.RWMutex
	last    *SyncResult
}

// NewService creates a Service backed by st.
func NewService(st RecordStore, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		store:   st,
		opts:    opts,
		codec:   sheet.Codec{SheetName: opts.SheetName},
		limiter: NewMergeLimiter(opts.MaxConcurrent, opts.MaxWait),
		logger:  opts.Logger,
		runs:    make(map[string]*activeRun),
	}
}

// Limiter exposes the merge limiter for health checks and shutdown.
func (s *Service) Limiter() *MergeLimiter { return s.limiter }

// Layout returns the column layout new runs use.
func (s *Service) Layout() merge.Layout { return s.opts.Layout }

// OutputName returns the download file name for merged workbooks.
func (s *Service) OutputName() string { return s.opts.OutputName }

// MaxFileSize returns the per-input size limit in bytes.
func (s *Service) MaxFileSize() int64 { return s.opts.MaxFileSize }

type activeRun struct {
	ID     string
	Cancel func()
	Done   chan struct{}

	mu        sync.Mutex
	progress  RunProgress
	result    *RunResult
	table     *merge.OutputTable
	output    []byte
	listeners []chan RunProgress
}

// update applies fn to the progress snapshot and fans it out.
func (r *activeRun) update(fn func(p *RunProgress)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.progress)
	for _, ch := range r.listeners {
		select {
		case ch <- r.progress:
		default:
			// slow listener, it will catch up on the next update
		}
	}
}

func (r *activeRun) snapshot() RunProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// finish records the outcome, closes listeners and releases Done waiters.
func (r *activeRun) finish(res *RunResult, table *merge.OutputTable, output []byte) {
	r.mu.Lock()
	r.result = res
	r.table = table
	r.output = output
	for _, ch := range r.listeners {
		deliverFinal(ch, r.progress)
		close(ch)
	}
	r.listeners = nil
	r.mu.Unlock()

	close(r.Done)
}

// deliverFinal makes the terminal snapshot the last value on ch, discarding
// the oldest buffered snapshots when the listener has fallen behind. Only
// the run sends on ch, so once space is freed the send cannot block.
func deliverFinal(ch chan RunProgress, p RunProgress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// cleanup forgets the run after delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
