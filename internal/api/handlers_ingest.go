package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/clausegest/internal/parser"
	"github.com/dgallion1/clausegest/internal/pipeline"
)

const formOverhead = 1 << 20

// ingestForm holds the multipart fields shared by single and batch uploads.
type ingestForm struct {
	userID   string
	metadata map[string]any
	form     *multipart.Form
}

// readIngestForm parses the multipart body. It writes a 400 and returns
// false when the form or its metadata field is malformed.
func (s *Server) readIngestForm(w http.ResponseWriter, r *http.Request, bodyLimit int64) (ingestForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return ingestForm{}, false
	}
	md, err := parseMetadata(r.FormValue("metadata"))
	if err != nil {
		r.MultipartForm.RemoveAll()
		jsonError(w, err.Error(), http.StatusBadRequest)
		return ingestForm{}, false
	}
	return ingestForm{userID: r.FormValue("user_id"), metadata: md, form: r.MultipartForm}, true
}

// handleIngest queues one contract for parsing, chunking and indexing.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	f, ok := s.readIngestForm(w, r, s.cfg.MaxUploadBytes+formOverhead)
	if !ok {
		return
	}
	defer f.form.RemoveAll()

	files := f.form.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename := sanitizeFilename(files[0].Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	data, err := s.readFile(files[0])
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	job := pipeline.NewJob(f.userID, r.FormValue("doc_id"), filename, r.FormValue("title"), data, f.metadata)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleBatchIngest queues every "files" part as its own job. A rejected
// file is reported in place and does not fail the batch.
func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	f, ok := s.readIngestForm(w, r, s.cfg.MaxUploadBytes*10+10*formOverhead)
	if !ok {
		return
	}
	defer f.form.RemoveAll()

	files := f.form.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		job, err := s.submitFile(fh, filename, f)
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		res := jobAccepted(job)
		res["filename"] = filename
		results = append(results, res)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) submitFile(fh *multipart.FileHeader, filename string, f ingestForm) (*pipeline.Job, error) {
	if !parser.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := s.readFile(fh)
	if err != nil {
		return nil, err
	}
	job := pipeline.NewJob(f.userID, "", filename, "", data, f.metadata)
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, err
	}
	return job, nil
}

// readFile reads an uploaded part, refusing anything over MaxUploadBytes.
func (s *Server) readFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"poll_url": "/api/ingest/" + snap.ID + "/status",
	}
}

// parseMetadata decodes the optional "metadata" form field, a JSON object
// copied into every chunk.
func parseMetadata(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %v", err)
	}
	return md, nil
}

// sanitizeFilename keeps the base name of an uploaded file, whichever path
// separator the client used.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		return "unnamed"
	}
	return name
}
