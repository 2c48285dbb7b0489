package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/guarantor/internal/core"
)

// recordsResponse is the body of GET /api/records.
type recordsResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Records []core.RecordView `json:"records"`
}

// handleRecords searches the record store by ?q=. Without a query it
// returns nothing unless ?all=true.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var (
		records []core.RecordView
		err     error
	)
	switch {
	case q != "":
		records, err = s.service.SearchRecords(r.Context(), q)
	case isTrue(r.URL.Query().Get("all")):
		records, err = s.service.AllRecords(r.Context())
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []core.RecordView{}
	}

	writeJSON(w, r, http.StatusOK, recordsResponse{Query: q, Count: len(records), Records: records})
}

func isTrue(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// handleRecordCount returns the number of stored records.
func (s *Server) handleRecordCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.CountRecords(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"count": n})
}

// handleDeleteRecords clears the record store.
func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecords(withRequestMetadata(r.Context(), r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleSyncRecords pulls the configured feed into the record store.
func (s *Server) handleSyncRecords(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.SyncRecords(withRequestMetadata(r.Context(), r), nil)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

type healthResponse struct {
	Status   string             `json:"status"`
	Records  int64              `json:"records"`
	Merges   core.LimiterStatus `json:"merges"`
	LastSync *core.SyncResult   `json:"last_sync,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleHealth reports store reachability and merge capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Merges:   s.service.Limiter().Status(),
		LastSync: s.service.LastSync(),
	}

	if err := s.service.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Error = core.MapError(err).Message
		writeJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	if n, err := s.service.CountRecords(ctx); err == nil {
		resp.Records = n
	}
	writeJSON(w, r, http.StatusOK, resp)
}
