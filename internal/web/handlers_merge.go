package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/guarantor/internal/core"
	"github.com/JonMunkholm/guarantor/internal/logging"
)

// Form fields of POST /api/merge.
const (
	fieldGuarantor = "guarantor" // Report 24
	fieldClients   = "clients"   // Report 12
)

// multipartMemory is how much of a form is buffered in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// handleStartMerge accepts the two reports and starts a run.
func (s *Server) handleStartMerge(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+(1<<20))

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("request body: %w", core.ErrFileTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("no file provided: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	guarantor, closeG, err := formFile(r, fieldGuarantor)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer closeG()

	clients, closeC, err := formFile(r, fieldClients)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer closeC()

	ctx := withRequestMetadata(r.Context(), r)
	runID, err := s.service.StartMerge(ctx, guarantor, clients)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{"run_id": runID})
}

// formFile opens an uploaded file. An absent field yields an input with nil
// Data so the service reports it as missing.
func formFile(r *http.Request, field string) (core.FileInput, func(), error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return core.FileInput{Name: field}, func() {}, nil
	}
	if err != nil {
		return core.FileInput{}, nil, fmt.Errorf("read %s upload: %w", field, err)
	}
	return fileInput(f, header), func() { f.Close() }, nil
}

func fileInput(f multipart.File, h *multipart.FileHeader) core.FileInput {
	return core.FileInput{Name: h.Filename, Data: f, Size: h.Size}
}

// handleMergeProgress streams run progress as Server-Sent Events. The event
// ID is the percentage, so a reconnecting client passing Last-Event-ID (or
// ?lastEventId=) skips what it has already seen.
func (s *Server) handleMergeProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventIDStr := r.Header.Get("Last-Event-ID")
	if lastEventIDStr == "" {
		lastEventIDStr = r.URL.Query().Get("lastEventId")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.RunProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// The registry holds the terminal snapshot even if this
				// listener fell behind.
				if final, err := s.service.RunProgress(runID); err == nil {
					last = final
				}
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Terminal snapshots repeat percent 100, so they are never skipped.
			if progress.Percent <= lastEventID && !progress.Phase.Terminal() {
				continue
			}
			lastEventID = progress.Percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleMergeResult waits for the run to finish and returns its summary.
func (s *Server) handleMergeResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RunResult(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleMergeDownload serves the merged workbook.
func (s *Server) handleMergeDownload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.service.RunOutput(chi.URLParam(r, "runID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "error", err)
	}
}

// handleCancelMerge cancels a running merge.
func (s *Server) handleCancelMerge(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelRun(chi.URLParam(r, "runID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handlePublishMerge replaces the record store with the run's rows.
func (s *Server) handlePublishMerge(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	ctx := withRequestMetadata(r.Context(), r)

	n, err := s.service.PublishRun(ctx, runID, nil)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"run_id": runID, "records": n})
}
