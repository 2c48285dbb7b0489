package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/store"
)

var (
	// ErrSyncNotConfigured is returned when no feed URL is set.
	ErrSyncNotConfigured = errors.New("sync feed not configured")

	// ErrSyncInProgress is returned when a sync is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// maxFeedBytes caps the feed body read into memory.
const maxFeedBytes = 256 << 20

// FeedError reports a feed that answered but could not be used.
type FeedError struct {
	Status int // HTTP status, 0 for body errors
	Err    error
}

func (e *FeedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed returned status %d", e.Status)
	}
	return fmt.Sprintf("feed body: %v", e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// Sync status texts.
const (
	syncConnecting = "Connecting to server..."
	syncFetching   = "Fetching data..."
	syncProcessing = "Processing received data..."
	syncFinalizing = "Finalizing sync..."
	syncDone       = "Sync completed successfully!"
	syncFailed     = "Sync failed!"
)

// SyncRecords downloads the configured feed and replaces the record store
// with it. On any failure the existing records are kept.
func (s *Service) SyncRecords(ctx context.Context, onProgress SyncFunc) (*SyncResult, error) {
	if s.opts.SyncURL == "" {
		return nil, ErrSyncNotConfigured
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	report := func(percent int, status string) {
		if onProgress != nil {
			onProgress(SyncProgress{Percent: percent, Status: status})
		}
	}

	log := logging.WithFields(ctx, "feed", s.opts.SyncURL)
	start := time.Now()

	res, err := s.syncRecords(ctx, report)
	if err != nil {
		report(0, syncFailed)
		log.Warn("record sync failed", "error", err)
		return nil, err
	}
	res.Duration = time.Since(start)

	s.lastMu.Lock()
	s.last = res
	s.lastMu.Unlock()

	report(100, syncDone)
	log.Info("record sync complete", "records", res.Records, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (s *Service) syncRecords(ctx context.Context, report func(int, string)) (*SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SyncTimeout)
	defer cancel()

	report(0, syncConnecting)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.SyncURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	report(10, syncFetching)
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	report(25, syncFetching)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FeedError{Status: resp.StatusCode}
	}

	report(40, syncProcessing)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	records, err := DecodeFeed(body)
	if err != nil {
		return nil, &FeedError{Err: err}
	}

	report(50, fmt.Sprintf("Saving %d records...", len(records)))
	err = s.store.ReplaceAll(ctx, records, func(saved, total int) {
		pct := 100
		if total > 0 {
			pct = saved * 100 / total
		}
		report(50+int(math.Round(float64(pct)*0.4)), fmt.Sprintf("Saving records... %d%%", pct))
	})
	if err != nil {
		return nil, fmt.Errorf("save synced records: %w", err)
	}

	report(95, syncFinalizing)
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count synced records: %w", err)
	}

	return &SyncResult{Records: int(n), SyncedAt: time.Now()}, nil
}

// DecodeFeed parses a feed body: either a JSON array of records or an
// object whose "data" field is one.
func DecodeFeed(body []byte) ([]store.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	var records []store.Record
	if body[0] == '[' {
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(wrapped.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, errors.New("invalid data format received - not an array")
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LastSync returns the most recent successful sync, or nil.
func (s *Service) LastSync() *SyncResult {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return nil
	}
	res := *s.last
	return &res
}

// StartSyncScheduler syncs the feed every interval until ctx is done. It
// runs once immediately. Failures are logged and retried on the next tick.
func (s *Service) StartSyncScheduler(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx)
	log.Info("sync scheduler started", "interval", interval, "feed", s.opts.SyncURL)

	s.runSyncJob(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runSyncJob(ctx)
		}
	}
}

func (s *Service) runSyncJob(ctx context.Context) {
	if _, err := s.SyncRecords(ctx, nil); err != nil && !errors.Is(err, ErrSyncInProgress) {
		logging.FromContext(ctx).Error("scheduled sync failed", "error", err)
	}
}
