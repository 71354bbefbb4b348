package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/web/templates"
)

// multipartOverhead is the slack allowed on top of the file size cap for
// multipart boundaries and form fields.
const multipartOverhead = 1 << 20

// maxFormMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const maxFormMemory = 32 << 20

// maxJSONBody bounds operation request bodies.
const maxJSONBody = 1 << 20

// handleLoad parses an uploaded file into the caller's session.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		err := fmt.Errorf("%w: %d bytes exceeds the %d byte limit", core.ErrFileTooLarge, header.Size, maxSize)
		s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	res, err := s.service.Load(r.Context(), sessionOf(r), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handlePreview returns the session's current preview. An empty session
// answers 200 with an empty preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(r.Context(), sessionOf(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, core.Result{Preview: p})
}

// handleClear forgets the session's table.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Clear(r.Context(), sessionOf(r)); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, core.Result{Preview: core.EmptyPreview("Session data cleared.")})
}

// handleDownload exports the session's table as csv or xlsx.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := core.Format(strings.ToLower(chi.URLParam(r, "format")))

	dl, err := s.service.Export(r.Context(), sessionOf(r), format)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, core.ErrNoActiveSession) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == dl.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dl.Filename))
	w.Header().Set("ETag", dl.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(dl.Data); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "error", err)
	}
}

// handleDropColumn removes one column. Whether an unknown column is an
// error or a 200 with an explanatory message is configurable.
func (s *Server) handleDropColumn(w http.ResponseWriter, r *http.Request) {
	var req dropColumnRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.DropColumn(r.Context(), sessionOf(r), req.ColumnName)
	if err != nil {
		if errors.Is(err, core.ErrColumnNotFound) && !strings.EqualFold(s.cfg.Engine.DropColumnMissing, "error") {
			s.respondResult(w, r, res)
			return
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handleDropMissingRows removes rows with missing cells. The policy comes
// from the body's "how" field and defaults to any.
func (s *Server) handleDropMissingRows(w http.ResponseWriter, r *http.Request) {
	var req dropMissingRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	policy, err := core.ParseRowPolicy(req.How)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.dropMissing(w, r, policy)
}

// handleDropMissingRowsAll removes rows where every cell is missing.
func (s *Server) handleDropMissingRowsAll(w http.ResponseWriter, r *http.Request) {
	s.dropMissing(w, r, core.DropAll)
}

func (s *Server) dropMissing(w http.ResponseWriter, r *http.Request, policy core.RowPolicy) {
	res, err := s.service.DropMissingRows(r.Context(), sessionOf(r), policy)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handleFillMissing replaces missing cells in the requested columns.
func (s *Server) handleFillMissing(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.FillMissing(r.Context(), sessionOf(r), core.FillOptions{
		Strategy: core.FillStrategy(strings.ToLower(strings.TrimSpace(req.FillStrategy))),
		Columns:  req.ColumnsToFill,
		Value:    req.FillValue.text(),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handleFilterRows keeps the rows matching one predicate.
func (s *Server) handleFilterRows(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.FilterRows(r.Context(), sessionOf(r), core.FilterSpec{
		Column:   req.ColumnName,
		Operator: core.Operator(strings.TrimSpace(req.Operator)),
		Value:    string(req.Value),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handleEncode label- or one-hot-encodes the requested columns.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	strategy, err := core.ParseEncodeStrategy(req.EncodingStrategy)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.EncodeColumns(r.Context(), sessionOf(r), strategy, req.ColumnsToEncode)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondResult(w, r, res)
}

// handleHealth reports liveness plus the parse limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "ok",
		"uploads": s.service.UploadStatus(),
	})
}

// decode bounds and validates a JSON request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return s.validator.decode(r, dst)
}

// respondResult writes an operation result: the preview fragment for HTMX
// clients, JSON for everyone else.
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, res core.Result) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.PreviewTable(res.Preview).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render preview", "error", err)
		}
		return
	}
	render.JSON(w, r, res)
}

func sessionOf(r *http.Request) string {
	return core.SessionIDFromContext(r.Context())
}
