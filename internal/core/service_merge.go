package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/sheet"
	"github.com/JonMunkholm/guarantor/internal/store"
)

// StartMerge validates and buffers both inputs, then merges them in the
// background. It returns the run ID immediately; use SubscribeProgress to
// follow the run and RunResult to wait for it.
//
// Returns *merge.MissingInputError when an input has no data,
// ErrFileTooLarge or sheet.ErrUnsupportedFormat for rejected files, and
// ErrTooManyMerges when no slot frees up in time.
func (s *Service) StartMerge(ctx context.Context, guarantor, clients FileInput) (string, error) {
	var missing []string
	if guarantor.Data == nil {
		missing = append(missing, "guarantor")
	}
	if clients.Data == nil {
		missing = append(missing, "clients")
	}
	if len(missing) > 0 {
		return "", &merge.MissingInputError{Inputs: missing}
	}

	loanData, err := s.readInput(guarantor)
	if err != nil {
		return "", err
	}
	clientData, err := s.readInput(clients)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)

	run := &activeRun{
		ID:     runID,
		Cancel: cancel,
		Done:   make(chan struct{}),
		progress: RunProgress{
			RunID:  runID,
			Phase:  PhaseQueued,
			State:  merge.StateIdle,
			Step:   merge.StateIdle.String(),
			Status: "Queued",
		},
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	log := s.logger.With("run_id", runID, "guarantor_file", guarantor.Name, "client_file", clients.Name)
	runCtx = logging.WithLogger(runCtx, log)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in merge run", "panic", r)
				err := fmt.Errorf("internal error: %v", r)
				run.update(func(p *RunProgress) {
					p.Phase = PhaseFailed
					p.Error = err.Error()
					p.Code = MapError(err).Code
				})
				run.finish(&RunResult{
					RunID:     runID,
					Phase:     PhaseFailed,
					Error:     err.Error(),
					ErrorKind: string(merge.KindInternal),
					Code:      MapError(err).Code,
				}, nil, nil)
			}
		}()
		s.processRun(runCtx, run,
			merge.BytesInput(guarantor.Name, loanData),
			merge.BytesInput(clients.Name, clientData),
		)
	}()

	return runID, nil
}

// readInput buffers an upload so the run outlives the request that sent it.
func (s *Service) readInput(in FileInput) ([]byte, error) {
	if !sheet.AllowedExtension(in.Name) {
		return nil, fmt.Errorf("%s: %w", in.Name, sheet.ErrUnsupportedFormat)
	}
	if in.Size > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", in.Name, ErrFileTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(in.Data, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, &merge.ParseError{File: in.Name, Err: fmt.Errorf("read: %w", err)}
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", in.Name, ErrFileTooLarge)
	}
	return data, nil
}

func (s *Service) processRun(ctx context.Context, run *activeRun, guarantor, clients merge.Input) {
	log := logging.FromContext(ctx)
	defer s.cleanup(run.ID, s.opts.ResultTTL)

	run.update(func(p *RunProgress) { p.Phase = PhaseRunning })

	m := merge.New(s.opts.Layout, s.codec, s.codec, merge.WithLogger(log))
	res, err := m.Run(ctx, guarantor, clients, func(mp merge.Progress) {
		run.update(func(p *RunProgress) {
			p.State = mp.State
			p.Step = mp.State.String()
			p.Percent = mp.Percent
			p.Status = mp.Status
		})
	})

	result := &RunResult{
		RunID:         run.ID,
		GuarantorFile: guarantor.Name,
		ClientFile:    clients.Name,
	}

	if err != nil {
		kind := merge.KindOf(err)
		msg := MapError(err)
		result.Phase = PhaseFailed
		if kind == merge.KindCancelled && errors.Is(err, context.Canceled) {
			result.Phase = PhaseCancelled
		}
		result.Error = err.Error()
		result.ErrorKind = string(kind)
		result.Code = msg.Code

		run.update(func(p *RunProgress) {
			p.Phase = result.Phase
			p.State = m.State()
			p.Step = m.State().String()
			p.Error = msg.Message
			p.Code = msg.Code
			if result.Phase == PhaseCancelled {
				p.Status = "Merge cancelled"
			}
		})
		log.Warn("merge run ended", "phase", result.Phase, "kind", kind, "error", err)
		run.finish(result, nil, nil)
		return
	}

	result.Phase = PhaseComplete
	result.GuarantorRows = res.GuarantorRows
	result.ClientRows = res.ClientRows
	result.Indexed = res.Indexed
	result.Matched = res.Matched
	result.OutputName = s.opts.OutputName
	result.OutputBytes = len(res.File)
	result.Duration = res.Duration

	run.update(func(p *RunProgress) { p.Phase = PhaseComplete })
	log.Info("merge run complete",
		"matched", res.Matched,
		"output_bytes", len(res.File),
		"duration_ms", res.Duration.Milliseconds(),
	)
	run.finish(result, res.Table, res.File)
}

// SubscribeProgress returns a channel of progress snapshots. The current
// snapshot is delivered first. The channel closes when the run finishes;
// for a finished run it holds only the final snapshot.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 10)

	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	if run.result != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// CancelRun cancels an in-flight run. Cancelling a finished run is a no-op.
func (s *Service) CancelRun(runID string) error {
	run, err := s.lookup(runID)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// RunResult blocks until the run finishes or ctx is done.
func (s *Service) RunResult(ctx context.Context, runID string) (*RunResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	res := *run.result
	return &res, nil
}

// RunProgress returns the current snapshot without blocking.
func (s *Service) RunProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	return run.snapshot(), nil
}

// RunOutput returns the merged workbook of a completed run.
func (s *Service) RunOutput(runID string) (name string, data []byte, err error) {
	run, err := s.lookup(runID)
	if err != nil {
		return "", nil, err
	}

	select {
	case <-run.Done:
	default:
		return "", nil, ErrRunNotComplete
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.result.Phase != PhaseComplete {
		return "", nil, fmt.Errorf("run %s %s: %w", runID, run.result.Phase, ErrNothingToPublish)
	}
	return s.opts.OutputName, run.output, nil
}

// PublishRun replaces the record store contents with a completed run's
// matched rows. onProgress may be nil.
func (s *Service) PublishRun(ctx context.Context, runID string, onProgress store.ProgressFunc) (int, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return 0, err
	}

	select {
	case <-run.Done:
	default:
		return 0, ErrRunNotComplete
	}

	run.mu.Lock()
	table := run.table
	run.mu.Unlock()

	if table.Len() == 0 {
		return 0, ErrNothingToPublish
	}

	records := store.RecordsFromTable(table)
	start := time.Now()
	if err := s.store.ReplaceAll(ctx, records, onProgress); err != nil {
		return 0, fmt.Errorf("publish run %s: %w", runID, err)
	}

	run.mu.Lock()
	run.result.Published = true
	run.mu.Unlock()

	logging.WithFields(ctx,
		"run_id", runID,
		"records", len(records),
		"client_ip", ClientIP(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	).Info("published merge run")
	return len(records), nil
}

// Merge runs the engine synchronously on in-memory inputs without touching
// the run registry or limiter. The CLI uses it.
func (s *Service) Merge(ctx context.Context, guarantor, clients merge.Input, onProgress merge.ProgressFunc) (*merge.Result, error) {
	m := merge.New(s.opts.Layout, s.codec, s.codec, merge.WithLogger(logging.FromContext(ctx)))
	return m.Run(ctx, guarantor, clients, onProgress)
}
