package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/metrics"
	"github.com/JonMunkholm/datacleaner/internal/store"
)

// Operation names used in logs and metrics.
const (
	OpLoad            = "load"
	OpPreview         = "preview"
	OpExport          = "export"
	OpDropColumn      = "drop_column"
	OpDropMissingRows = "drop_missing_rows"
	OpFillMissing     = "fill_missing"
	OpFilterRows      = "filter_rows"
	OpEncodeColumns   = "encode_columns"
	OpClear           = "clear"
)

// Messages carried by previews.
const (
	MsgFileProcessed = "File processed successfully."
	MsgPreview       = "Current data preview retrieved."
	MsgNoSession     = "No active data session found."
	MsgSessionReset  = "Stored data could not be read and was cleared. Please upload the file again."
)

// Result is a preview plus whatever the operation has to report about
// itself. It flattens to one JSON object.
type Result struct {
	Preview
	RowsDropped      int          `json:"rows_dropped,omitempty"`
	RowsRemoved      int          `json:"rows_removed,omitempty"`
	FillReport       []FillReport `json:"fill_report,omitempty"`
	UsedTextFallback bool         `json:"used_text_fallback,omitempty"`
}

// Download is an exported table ready to send.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
	ETag        string
}

// Content types for exports.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Service is the session-scoped operation surface. Every operation loads
// the session's table, applies one transformation, and stores the result,
// all while holding the session's lock. A failed operation never stores
// anything.
type Service struct {
	store   store.Store
	locks   *SessionLocks
	limiter *UploadLimiter
	metrics *metrics.Metrics

	previewLimit int
	maxFileSize  int64
	fallback     EqualityFallback
}

// NewService creates a Service over st. m may be nil.
func NewService(st store.Store, cfg *config.Config, m *metrics.Metrics) *Service {
	return &Service{
		store:        st,
		locks:        NewSessionLocks(),
		limiter:      NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		metrics:      m,
		previewLimit: cfg.Engine.PreviewLimit,
		maxFileSize:  cfg.Upload.MaxFileSize,
		fallback:     ParseEqualityFallback(cfg.Engine.EqualityFallback),
	}
}

// mutation transforms a loaded table. It may fill in the extra fields of
// res and returns the new table plus the preview message. Returning the
// input table together with an error means "nothing changed, and here is
// why"; the caller then gets the unchanged preview alongside the error.
type mutation func(t *Table, res *Result) (*Table, string, error)

// Load parses an uploaded file and makes it the session's table. A failed
// load clears whatever the session held before.
func (s *Service) Load(ctx context.Context, sessionID, filename string, data []byte) (Result, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "session", sessionID, "op", OpLoad, "filename", filename)

	res, err := s.load(ctx, sessionID, filename, data, log)
	s.observe(OpLoad, err, start)
	if err != nil {
		log.Warn("load failed", "error", err, "bytes", len(data))
		return Result{}, err
	}
	s.metrics.ObserveRows(OpLoad, res.TotalRows)
	log.Info("file loaded",
		"bytes", len(data),
		"rows", res.TotalRows,
		"columns", len(res.Headers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) load(ctx context.Context, sessionID, filename string, data []byte, log *slog.Logger) (Result, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(data), s.maxFileSize)
	}
	if _, err := ParseFormat(filepath.Ext(filename)); err != nil {
		return Result{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Result{}, err
	}
	s.metrics.ParseStarted()
	t, parseErr := Parse(data, filepath.Ext(filename))
	s.metrics.ParseFinished()
	s.limiter.Release()

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if parseErr != nil {
		s.clear(ctx, sessionID, "load_failed", log)
		return Result{}, parseErr
	}

	payload, err := s.save(ctx, sessionID, t, filename, log)
	if err != nil {
		return Result{}, err
	}
	return Result{Preview: s.project(t, filename, payload, MsgFileProcessed)}, nil
}

// Preview returns the projection of the session's table. An empty session
// is a normal result, not an error.
func (s *Service) Preview(ctx context.Context, sessionID string) (Preview, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "session", sessionID, "op", OpPreview)

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		s.observe(OpPreview, err, start)
		return Preview{}, err
	}
	defer unlock()

	t, rec, err := s.get(ctx, sessionID, log)
	switch {
	case errors.Is(err, ErrNoActiveSession):
		s.observe(OpPreview, nil, start)
		return EmptyPreview(MsgNoSession), nil
	case errors.Is(err, ErrSerialization):
		s.observe(OpPreview, nil, start)
		return EmptyPreview(MsgSessionReset), nil
	case err != nil:
		s.observe(OpPreview, err, start)
		return Preview{}, err
	}

	s.observe(OpPreview, nil, start)
	log.Debug("preview served", "rows", t.RowCount())
	return s.project(t, rec.Filename, rec.Payload, MsgPreview), nil
}

// Export renders the session's table as a file named after the upload.
func (s *Service) Export(ctx context.Context, sessionID string, format Format) (Download, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "session", sessionID, "op", OpExport, "format", format)

	dl, err := s.export(ctx, sessionID, format, log)
	s.observe(OpExport, err, start)
	if err != nil {
		log.Warn("export failed", "error", err)
		return Download{}, err
	}
	log.Info("table exported", "filename", dl.Filename, "bytes", len(dl.Data))
	return dl, nil
}

func (s *Service) export(ctx context.Context, sessionID string, format Format, log *slog.Logger) (Download, error) {
	if format != FormatCSV && format != FormatXLSX {
		return Download{}, fmt.Errorf("%w: export format %q", ErrUnsupportedFormat, format)
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return Download{}, err
	}
	defer unlock()

	t, rec, err := s.get(ctx, sessionID, log)
	if err != nil {
		return Download{}, err
	}

	data, err := Export(t, format)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	ct := ContentTypeCSV
	if format == FormatXLSX {
		ct = ContentTypeXLSX
	}
	return Download{
		Filename:    ExportFilename(rec.Filename, format),
		ContentType: ct,
		Data:        data,
		ETag:        `"` + Fingerprint(rec.Payload) + "-" + string(format) + `"`,
	}, nil
}

// DropColumn removes one column. When the column does not exist the result
// carries the unchanged preview together with ErrColumnNotFound, and the
// session is left as it was.
func (s *Service) DropColumn(ctx context.Context, sessionID, column string) (Result, error) {
	return s.apply(ctx, sessionID, OpDropColumn, func(t *Table, _ *Result) (*Table, string, error) {
		out, err := DropColumn(t, column)
		if errors.Is(err, ErrColumnNotFound) {
			return t, fmt.Sprintf("Column '%s' not found in the current data.", column), err
		}
		if err != nil {
			return nil, "", err
		}
		return out, fmt.Sprintf("Column '%s' dropped successfully.", column), nil
	})
}

// DropMissingRows removes rows with missing cells under policy.
func (s *Service) DropMissingRows(ctx context.Context, sessionID string, policy RowPolicy) (Result, error) {
	return s.apply(ctx, sessionID, OpDropMissingRows, func(t *Table, res *Result) (*Table, string, error) {
		out, dropped, err := DropMissingRows(t, policy)
		if err != nil {
			return nil, "", err
		}
		res.RowsDropped = dropped
		return out, fmt.Sprintf("Dropped %d rows with missing values (policy: %s).", dropped, policy), nil
	})
}

// FillMissing replaces missing cells in the chosen columns.
func (s *Service) FillMissing(ctx context.Context, sessionID string, opts FillOptions) (Result, error) {
	return s.apply(ctx, sessionID, OpFillMissing, func(t *Table, res *Result) (*Table, string, error) {
		out, reports, err := FillMissing(t, opts)
		if err != nil {
			return nil, "", err
		}
		res.FillReport = reports

		filled, skipped := 0, 0
		for _, r := range reports {
			if r.Skipped {
				skipped++
				continue
			}
			filled += r.Filled
		}
		msg := fmt.Sprintf("Filled %d missing values using %s.", filled, opts.Strategy)
		if skipped > 0 {
			msg += fmt.Sprintf(" %d column(s) skipped.", skipped)
		}
		return out, msg, nil
	})
}

// FilterRows keeps the rows matching spec.
func (s *Service) FilterRows(ctx context.Context, sessionID string, spec FilterSpec) (Result, error) {
	return s.apply(ctx, sessionID, OpFilterRows, func(t *Table, res *Result) (*Table, string, error) {
		out, fr, err := Filter(t, spec, s.fallback)
		if err != nil {
			return nil, "", err
		}
		res.RowsRemoved = fr.RowsRemoved
		res.UsedTextFallback = fr.UsedTextFallback
		return out, fmt.Sprintf("Filtered on '%s' %s %s: %d rows removed.", spec.Column, spec.Operator, spec.Value, fr.RowsRemoved), nil
	})
}

// EncodeColumns label- or one-hot-encodes the chosen columns.
func (s *Service) EncodeColumns(ctx context.Context, sessionID string, strategy EncodeStrategy, columns []string) (Result, error) {
	return s.apply(ctx, sessionID, OpEncodeColumns, func(t *Table, _ *Result) (*Table, string, error) {
		out, err := Encode(t, strategy, columns)
		if err != nil {
			return nil, "", err
		}
		return out, fmt.Sprintf("Encoded %d column(s) using %s encoding.", len(columns), strategy), nil
	})
}

// Clear drops the session's table. Clearing an empty session is a no-op.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	start := time.Now()
	log := logging.WithFields(ctx, "session", sessionID, "op", OpClear)

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		s.observe(OpClear, err, start)
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.observe(OpClear, err, start)
		log.Error("clear failed", "error", err)
		return err
	}
	s.metrics.SessionCleared("explicit")
	s.observe(OpClear, nil, start)
	log.Info("session cleared")
	return nil
}

// UploadStatus reports the parse limiter state.
func (s *Service) UploadStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight parses finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// apply runs one load-mutate-store cycle under the session lock.
func (s *Service) apply(ctx context.Context, sessionID, op string, fn mutation) (Result, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "session", sessionID, "op", op)

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		s.observe(op, err, start)
		return Result{}, err
	}
	defer unlock()

	t, rec, err := s.get(ctx, sessionID, log)
	if err != nil {
		s.observe(op, err, start)
		log.Warn("operation rejected", "error", err)
		return Result{}, err
	}

	var res Result
	out, msg, err := fn(t, &res)
	if err != nil {
		s.observe(op, err, start)
		log.Warn("operation rejected", "error", err)
		if out == t {
			res.Preview = s.project(t, rec.Filename, rec.Payload, msg)
			return res, err
		}
		return Result{}, err
	}

	payload, err := s.save(ctx, sessionID, out, rec.Filename, log)
	if err != nil {
		s.observe(op, err, start)
		return Result{}, err
	}

	s.observe(op, nil, start)
	s.metrics.ObserveRows(op, out.RowCount())
	log.Info("operation applied",
		"rows_before", t.RowCount(),
		"rows_after", out.RowCount(),
		"columns", len(out.Columns),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	res.Preview = s.project(out, rec.Filename, payload, msg)
	return res, nil
}

// get reads and decodes the session's table. A record that does not
// decode is deleted and reported as ErrSerialization.
func (s *Service) get(ctx context.Context, sessionID string, log *slog.Logger) (*Table, store.Record, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.Record{}, ErrNoActiveSession
	}
	if err != nil {
		return nil, store.Record{}, fmt.Errorf("read session: %w", err)
	}

	t, err := Deserialize(rec.Payload)
	if err != nil {
		log.Error("stored table is corrupt, clearing session", "error", err)
		s.clear(ctx, sessionID, "corrupt", log)
		return nil, store.Record{}, err
	}
	return t, rec, nil
}

// save serializes t and stores it with filename. A table that cannot be
// serialized is an internal fault; the session is cleared.
func (s *Service) save(ctx context.Context, sessionID string, t *Table, filename string, log *slog.Logger) (string, error) {
	payload, err := Serialize(t)
	if err != nil {
		log.Error("table could not be serialized, clearing session", "error", err)
		s.clear(ctx, sessionID, "corrupt", log)
		return "", err
	}
	if err := s.store.Put(ctx, sessionID, store.Record{Payload: payload, Filename: filename}); err != nil {
		return "", fmt.Errorf("write session: %w", err)
	}
	return payload, nil
}

func (s *Service) clear(ctx context.Context, sessionID, reason string, log *slog.Logger) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		log.Error("failed to clear session", "reason", reason, "error", err)
		return
	}
	s.metrics.SessionCleared(reason)
}

func (s *Service) project(t *Table, filename, payload, message string) Preview {
	p := Project(t, s.previewLimit)
	p.Filename = filename
	p.Message = message
	p.Version = Fingerprint(payload)
	return p
}

func (s *Service) observe(op string, err error, start time.Time) {
	s.metrics.ObserveOperation(op, outcomeOf(err), time.Since(start))
}

// outcomeOf classifies an operation error for metrics: request errors are
// the caller's doing, everything else is ours.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsRequestError(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// IsRequestError reports whether err is a request-scoped failure the caller
// can fix, as opposed to a fault in the service or its store.
func IsRequestError(err error) bool {
	for _, target := range []error{
		ErrUnsupportedFormat, ErrEmptyFile, ErrParse, ErrNoActiveSession,
		ErrColumnNotFound, ErrInvalidColumns, ErrInvalidStrategy,
		ErrInvalidOperator, ErrUnsupportedOperatorForType, ErrTypeCoercion,
		ErrFileTooLarge, ErrInvalidRequest, ErrTooManyUploads, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
