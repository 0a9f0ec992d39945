// Package server exposes the urgency pipeline as an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ccollicutt/chaturgency/internal/pipeline"
	"github.com/ccollicutt/chaturgency/pkg/analyzer"
	"github.com/ccollicutt/chaturgency/pkg/output"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// requestSource names request bodies in reports and diagnostics.
const requestSource = "request"

// Server serves the HTTP API.
type Server struct {
	pipeline   *pipeline.Pipeline
	logger     *slog.Logger
	version    string
	httpServer *http.Server
}

// New creates a server around p. A nil logger uses slog.Default().
func New(p *pipeline.Pipeline, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, logger: logger, version: version}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.pipeline.Config().Server.MaxBodyBytes))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/assess", s.handleAssess)
	})

	return r
}

// Start listens on the configured address until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.pipeline.Config().Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http api shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    s.version,
		"classifier": s.pipeline.Scorer().ClassifierName(),
	})
}

// handleAnalyze scores a whole export. The body is a text export, or a
// tabular one when Content-Type is text/csv. Query parameters: author
// (repeatable), since and until (RFC 3339), verbose.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts, err := analyzeOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *parser.ParseResult
	if isCSV(r.Header.Get("Content-Type")) {
		result, err = s.pipeline.ParseTable(ctx, r.Body, requestSource)
	} else {
		result, err = s.pipeline.ParseText(ctx, r.Body, requestSource)
	}

	var missing *parser.MissingColumnsError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":           err.Error(),
			"missing_columns": missing.Missing,
		})
		return
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.pipeline.Analyzer(opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := a.Analyze(ctx, parser.NewSliceSource(result))
	if err != nil {
		s.logger.Error("analysis failed", "error", err, "request_id", requestIDFrom(ctx))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	report := output.NewReport(analysis, "")
	verbose := r.URL.Query().Get("verbose") == "true"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := output.NewJSONFormatter(output.FormatOptions{Verbose: verbose}).Format(ctx, report, w); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}

func analyzeOptions(r *http.Request) ([]analyzer.AnalyzerOption, error) {
	q := r.URL.Query()
	var opts []analyzer.AnalyzerOption

	if authors := q["author"]; len(authors) > 0 {
		opts = append(opts, analyzer.WithAuthorFilter(authors))
	}

	since, until := q.Get("since"), q.Get("until")
	if since == "" && until == "" {
		return opts, nil
	}

	start, end, err := pipeline.Window(since, until, time.Now())
	if err != nil {
		return nil, err
	}
	return append(opts, analyzer.WithTimeRange(start, end)), nil
}

// assessRequest is the body of POST /api/v1/assess.
type assessRequest struct {
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// assessResponse wraps an assessment with the verdict at the configured
// threshold.
type assessResponse struct {
	scorer.Assessment
	Urgent          bool `json:"urgent"`
	UrgentThreshold int  `json:"urgent_threshold"`
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ts := pipeline.WallClock(time.Now())
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid timestamp: %v", err))
			return
		}
		// The late-night window reads the wall clock the sender saw.
		ts = pipeline.WallClock(parsed)
	}

	msg := &parser.ChatMessage{
		Timestamp:      ts,
		Author:         req.Author,
		RawText:        req.Message,
		NormalizedText: textproc.Normalize(req.Message),
		Source:         requestSource,
	}

	threshold := s.pipeline.Config().Scoring.UrgentThreshold
	a := s.pipeline.Scorer().Assess(r.Context(), msg)
	writeJSON(w, http.StatusOK, assessResponse{
		Assessment:      a,
		Urgent:          a.Urgent(threshold),
		UrgentThreshold: threshold,
	})
}

func isCSV(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
