package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/guarantor/internal/store"
)

func TestDecodeFeed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"array", `[{"Client ID":"C-1","Name":"A"},{"Client ID":2}]`, 2, false},
		{"wrapped", `{"data":[{"Client ID":"C-1"}]}`, 1, false},
		{"empty array", `[]`, 0, false},
		{"leading whitespace", "\n  [{\"Name\":\"A\"}]", 1, false},
		{"wrapped non-array", `{"data":{"Name":"A"}}`, 0, true},
		{"missing data", `{"rows":[]}`, 0, true},
		{"empty body", ``, 0, true},
		{"not json", `<html>`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFeed([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFeed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("DecodeFeed() returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func feedServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSyncRecords(t *testing.T) {
	srv, _ := feedServer(t, http.StatusOK,
		`{"data":[{"Client ID":"C-1","Name":"Ayesha","Guarantor Cell":"0300-1111111"},{"Client ID":"C-2","Name":"Bilal"}]}`)
	svc, st := newTestService(t, Options{SyncURL: srv.URL})
	ctx := context.Background()

	var statuses []SyncProgress
	res, err := svc.SyncRecords(ctx, func(p SyncProgress) { statuses = append(statuses, p) })
	if err != nil {
		t.Fatalf("SyncRecords: %v", err)
	}
	if res.Records != 2 {
		t.Errorf("records = %d, want 2", res.Records)
	}
	if n, _ := st.Count(ctx); n != 2 {
		t.Errorf("store count = %d, want 2", n)
	}

	if len(statuses) == 0 {
		t.Fatal("no progress reported")
	}
	first, last := statuses[0], statuses[len(statuses)-1]
	if first.Status != syncConnecting || first.Percent != 0 {
		t.Errorf("first status = %+v", first)
	}
	if last.Status != syncDone || last.Percent != 100 {
		t.Errorf("last status = %+v", last)
	}
	for i := 1; i < len(statuses); i++ {
		if statuses[i].Percent < statuses[i-1].Percent {
			t.Errorf("progress went backwards at %d: %+v", i, statuses)
		}
	}

	if svc.LastSync() == nil || svc.LastSync().Records != 2 {
		t.Errorf("LastSync = %+v", svc.LastSync())
	}
}

func TestSyncRecords_FailureKeepsRecords(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			check: func(err error) bool {
				var fe *FeedError
				return errors.As(err, &fe) && fe.Status == http.StatusBadGateway
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"data":"nope"}`,
			check: func(err error) bool {
				var fe *FeedError
				return errors.As(err, &fe) && fe.Status == 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := feedServer(t, tt.status, tt.body)
			svc, st := newTestService(t, Options{SyncURL: srv.URL})
			ctx := context.Background()
			if err := st.ReplaceAll(ctx, []store.Record{{ClientID: "keep"}}, nil); err != nil {
				t.Fatalf("ReplaceAll: %v", err)
			}

			var lastStatus string
			_, err := svc.SyncRecords(ctx, func(p SyncProgress) { lastStatus = p.Status })
			if err == nil || !tt.check(err) {
				t.Fatalf("SyncRecords() error = %v", err)
			}
			if lastStatus != syncFailed {
				t.Errorf("last status = %q, want %q", lastStatus, syncFailed)
			}
			if n, _ := st.Count(ctx); n != 1 {
				t.Errorf("store count = %d, want existing record kept", n)
			}
			if svc.LastSync() != nil {
				t.Error("LastSync set after a failed sync")
			}
		})
	}
}

func TestSyncRecords_NotConfigured(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	if _, err := svc.SyncRecords(context.Background(), nil); !errors.Is(err, ErrSyncNotConfigured) {
		t.Errorf("SyncRecords() error = %v, want ErrSyncNotConfigured", err)
	}
}

func TestStartSyncScheduler(t *testing.T) {
	srv, hits := feedServer(t, http.StatusOK, `[{"Client ID":"C-1"}]`)
	svc, _ := newTestService(t, Options{SyncURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.StartSyncScheduler(ctx, 20*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if hits.Load() < 2 {
		t.Errorf("feed fetched %d times, want at least 2", hits.Load())
	}
}
