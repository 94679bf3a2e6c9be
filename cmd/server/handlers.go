package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdrago97/kudwa"
)

type handler struct {
	engine kudwa.Engine
}

func newHandler(e kudwa.Engine) *handler {
	return &handler{engine: e}
}

// POST /upload
// Accepts a multipart file upload and runs it through the pipeline.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		writeError(w, http.StatusBadRequest, "expected multipart form with 'file'")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)

	tmpPath := filepath.Join(os.TempDir(), safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()
	defer os.Remove(tmpPath)

	var opts []kudwa.ProcessOption
	if r.FormValue("force") != "" {
		opts = append(opts, kudwa.WithForceReprocess())
	}

	result, err := h.engine.ProcessFile(ctx, tmpPath, opts...)
	if err != nil {
		if errors.Is(err, kudwa.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported file format")
			return
		}
		writeError(w, http.StatusInternalServerError, "processing failed")
		slog.Error("upload error", "file", safeName, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /files
func (h *handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.engine.ListFiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		slog.Error("list files error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
	})
}

// DELETE /files/{id}
func (h *handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	if err := h.engine.DeleteFile(r.Context(), id); err != nil {
		if errors.Is(err, kudwa.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete file error", "file_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /proposals?status=pending|approved|rejected
func (h *handler) handleListProposals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", "pending", "approved", "rejected":
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	proposals, err := h.engine.Proposals(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		slog.Error("list proposals error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
	})
}

// GET /proposals/pending
func (h *handler) handlePendingProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.engine.PendingProposals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		slog.Error("pending proposals error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
	})
}

// POST /proposals/{id}/approve
func (h *handler) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	h.reviewProposal(w, r, true)
}

// POST /proposals/{id}/reject
func (h *handler) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	h.reviewProposal(w, r, false)
}

func (h *handler) reviewProposal(w http.ResponseWriter, r *http.Request, approve bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	var req struct {
		Reviewer string `json:"reviewer,omitempty"`
	}
	// Body is optional; a bare POST reviews as the default user.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reviewer == "" {
		req.Reviewer = "admin"
	}

	result, err := h.engine.Review(r.Context(), id, approve, req.Reviewer)
	if err != nil {
		switch {
		case errors.Is(err, kudwa.ErrProposalNotFound):
			writeError(w, http.StatusNotFound, "proposal not found")
		case errors.Is(err, kudwa.ErrProposalReviewed):
			writeError(w, http.StatusConflict, "proposal already reviewed")
		default:
			writeError(w, http.StatusInternalServerError, "review failed")
			slog.Error("review error", "proposal_id", id, "approve", approve, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /ontology
func (h *handler) handleOntology(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Ontology(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load ontology")
		slog.Error("ontology error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// POST /chat
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.engine.Answer(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chat failed")
		slog.Error("chat error", "question", req.Question, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
