package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/condoreg/internal/core"
	"github.com/JonMunkholm/condoreg/internal/logging"
	"github.com/JonMunkholm/condoreg/internal/web/templates"
)

const (
	// multipartMemory is how much of a form is buffered before spilling to disk.
	multipartMemory = 8 << 20

	// formOverhead allows for multipart boundaries and other fields on top
	// of the file itself.
	formOverhead = 1 << 20

	maxHistoryLimit = 100
)

var errNoFile = errors.New("no file provided")

// parseUpload reads the multipart form of an import request. The caller
// must close the returned file.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, core.Options, error) {
	var opts core.Options

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", opts, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize)
		}
		return nil, "", opts, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", opts, errNoFile
	}

	if v := r.FormValue("update_existing"); v != "" {
		update, err := strconv.ParseBool(v)
		if err != nil {
			file.Close()
			return nil, "", opts, fmt.Errorf("invalid update_existing value %q", v)
		}
		opts.UpdateExisting = update
	}

	return file, header.Filename, opts, nil
}

// uploadStatus maps parseUpload errors to a status code.
func uploadStatus(err error) int {
	if errors.Is(err, core.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// handleStartImport accepts a file and starts an asynchronous import.
// The file is read into memory since it outlives the request.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	registryID := chi.URLParam(r, "registryID")

	file, fileName, opts, err := s.parseUpload(w, r)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Import.MaxFileSize+1))
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.cfg.Import.MaxFileSize {
		respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	importID, err := s.service.StartImport(ctx, registryID, fileName, data, opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.ForImport(r.Context(), importID, registryID).Info("import accepted",
		"file", fileName,
		"bytes", len(data),
		"update_existing", opts.UpdateExisting,
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"import_id":    importID,
		"progress_url": "/api/imports/" + importID + "/progress",
		"result_url":   "/api/imports/" + importID + "/result",
	})
}

// handleValidateImport runs a dry run and returns the report synchronously.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	registryID := chi.URLParam(r, "registryID")

	file, fileName, opts, err := s.parseUpload(w, r)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}
	defer file.Close()

	report, err := s.service.Validate(r.Context(), registryID, fileName, file, opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	s.renderReport(w, r, report)
}

// handleImportProgress streams import progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter or the
// Last-Event-ID header.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	// The event ID is the number of rows processed, so a reconnecting client
	// can skip what it already saw.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
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

	var last core.ImportProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: import finished
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Phase changes always go out; repeated batch counts are skipped
			// after a reconnect.
			if !progress.Phase.Terminal() && progress.Processed > 0 && progress.Processed <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Processed, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the report of an import. While the import is
// still running it answers 202 with the current progress, unless wait=true
// is given, in which case it blocks until the import finishes.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if r.URL.Query().Get("wait") != "true" {
		progress, err := s.service.GetImportProgress(importID)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		if !progress.Phase.Terminal() {
			writeJSON(w, http.StatusAccepted, progress)
			return
		}
	}

	report, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	s.renderReport(w, r, report)
}

// handleCancelImport cancels an in-progress import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.CancelImport(importID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleImportRun returns the history entry of a finished import.
func (s *Server) handleImportRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetImportRun(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleImportHistory lists recorded imports of a registry, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	registryID := chi.URLParam(r, "registryID")
	limit := min(parseIntParam(r, "limit", core.DefaultHistoryLimit), maxHistoryLimit)

	runs, err := s.service.ListImportHistory(r.Context(), registryID, limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportHistory(runs).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render import history", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// renderReport writes a report as an HTML fragment or JSON.
func (s *Server) renderReport(w http.ResponseWriter, r *http.Request, report *core.Report) {
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportReport(report).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render import report", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
