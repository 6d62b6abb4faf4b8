// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes search, parse jobs and chat over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/chat"
	"github.com/pdiddy/papermap/pkg/types"
)

const (
	// maxResultsLimit bounds max_results on a search request.
	maxResultsLimit = 1000
	// maxBodyBytes bounds request bodies; chat history can be long.
	maxBodyBytes = 4 << 20

	shutdownTimeout = 10 * time.Second
)

// Searcher runs the search pipeline.
type Searcher interface {
	Run(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error)
}

// Parser submits and reports parse jobs.
type Parser interface {
	Submit(ctx context.Context, documentID, sourceURL string) (types.SubmitResult, error)
	Status(ctx context.Context, jobID string) (types.JobSnapshot, error)
}

// Chatter answers chat requests.
type Chatter interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// Server holds the handlers' collaborators.
type Server struct {
	search Searcher
	parser Parser
	chat   Chatter
	logger *zap.Logger
}

// New returns a Server. logger may be nil.
func New(search Searcher, parser Parser, chatter Chatter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, parser: parser, chat: chatter, logger: logger}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(allowAnyOrigin)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/parse-paper", s.handleParseSubmit)
		r.Get("/parse-paper/{jobID}", s.handleParseStatus)
		r.Post("/chat", s.handleChat)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, fmt.Errorf("%w: query cannot be empty", types.ErrValidation))
		return
	}
	if req.MaxResults < 0 || req.MaxResults > maxResultsLimit {
		s.writeError(w, fmt.Errorf("%w: max_results must be between 0 and %d (0 = default)", types.ErrValidation, maxResultsLimit))
		return
	}

	resp, err := s.search.Run(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type parseRequest struct {
	DocumentID string `json:"arxiv_id"`
	PDFURL     string `json:"pdf_url"`
}

func (s *Server) handleParseSubmit(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.parser.Submit(r.Context(), req.DocumentID, req.PDFURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if res.Cached {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) handleParseStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.parser.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// chatRequest leaves the flags nil when absent so both default to true.
type chatRequest struct {
	Message      string               `json:"message"`
	Papers       []types.PaperContext `json:"papers"`
	History      []types.ChatMessage  `json:"history"`
	ParsePDFs    *bool                `json:"parse_pdfs"`
	UseWebSearch *bool                `json:"use_web_search"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.chat.Chat(r.Context(), chat.Request{
		Message:      req.Message,
		Papers:       req.Papers,
		History:      req.History,
		ParsePDFs:    boolOr(req.ParsePDFs, true),
		UseWebSearch: boolOr(req.UseWebSearch, true),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// --- helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", types.ErrValidation, err))
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// allowAnyOrigin answers CORS preflights and tags every response as
// readable from any origin.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
