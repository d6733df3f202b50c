// Package api serves placements over HTTP.
//
// Routes:
//
//	POST   /placements                 start a run (TOML body, or JSON options)
//	GET    /placements                 list runs, newest first (?limit=n)
//	GET    /placements/{id}            run record with status and progress
//	GET    /placements/{id}/positions  result of a finished run (?format=json|xyz)
//	DELETE /placements/{id}            stop a running run
//	GET    /healthz                    liveness check
//
// Runs execute in the background; clients poll the run record until its
// status is final. Results are served from the runner's cache.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/molplace/pkg/buildinfo"
	"github.com/matzehuels/molplace/pkg/errors"
	molio "github.com/matzehuels/molplace/pkg/io"
	"github.com/matzehuels/molplace/pkg/observability"
	"github.com/matzehuels/molplace/pkg/pipeline"
	"github.com/matzehuels/molplace/pkg/store"
)

// MaxBodySize bounds request bodies.
const MaxBodySize = 4 << 20

// Server is the HTTP front end of a pipeline runner.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*pipeline.Job // active jobs by run ID
}

// New creates a server. The runner must have a Store.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = runner.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*pipeline.Job),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			buildinfo.Info
		}{"ok", buildinfo.Get()})
	})
	r.Route("/placements", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/positions", s.handlePositions)
		r.Delete("/{id}", s.handleStop)
	})
	return r
}

// Shutdown stops every active run and waits for them to finish.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every active run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// observe reports requests to the observability hooks and the logger.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		observability.HTTP().OnRequest(req.Context(), req.Method, req.URL.Path)
		next.ServeHTTP(ww, req)
		observability.HTTP().OnResponse(req.Context(), req.Method, req.URL.Path, ww.Status(), time.Since(start))
		s.logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}

// =============================================================================
// Handlers
// =============================================================================

type createResponse struct {
	ID     string       `json:"id"`
	Status store.Status `json:"status"`
	URL    string       `json:"url"`
}

func (s *Server) handleCreate(w http.ResponseWriter, req *http.Request) {
	opts, err := decodeOptions(req)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := s.runner.Prepare(req.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	id := job.ID()
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.jobs, id)
			s.mu.Unlock()
		}()
		if _, err := job.Run(s.ctx); err != nil {
			s.logger.Warn("placement run ended", "id", id, "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, createResponse{ID: id, Status: store.StatusRunning, URL: "/placements/" + id})
}

// decodeOptions reads pipeline options from a JSON body, or treats any
// other body as a TOML composition with options in the query string.
func decodeOptions(req *http.Request) (pipeline.Options, error) {
	var opts pipeline.Options
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxBodySize+1))
	if err != nil {
		return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
	}
	if len(body) > MaxBodySize {
		return opts, errors.New(errors.ErrCodeInvalidInput, "body exceeds %d bytes", MaxBodySize)
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return opts, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode options")
		}
	} else {
		opts.Composition = string(body)
		opts.Encoding = pipeline.EncodingTOML
	}

	q := req.URL.Query()
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid seed %q", v)
		}
		opts.Seed = seed
	}
	if q.Get("skip_unplaceable") == "true" {
		opts.SkipUnplaceable = true
	}
	if q.Get("refresh") == "true" {
		opts.Refresh = true
	}
	opts.Formats = []string{pipeline.FormatJSON}
	return opts, nil
}

func (s *Server) handleList(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.runner.Store.List(req.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGet(w http.ResponseWriter, req *http.Request) {
	run, err := s.lookup(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handlePositions(w http.ResponseWriter, req *http.Request) {
	run, err := s.lookup(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if run.Status != store.StatusSucceeded {
		writeJSON(w, http.StatusConflict, errorBody{Error: "run is " + string(run.Status), Code: "NOT_READY"})
		return
	}

	format := req.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatJSON
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, err)
		return
	}

	data, hit, err := s.runner.Cache.Get(req.Context(), run.CacheKey)
	if err != nil {
		writeError(w, err)
		return
	}
	if !hit {
		writeError(w, errors.New(errors.ErrCodeNotFound, "result of run %s has expired", run.ID))
		return
	}

	if format == pipeline.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	res, err := molio.ReadJSON(bytes.NewReader(data))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "chemical/x-xyz")
	w.WriteHeader(http.StatusOK)
	_ = molio.WriteXYZ(res, w)
}

func (s *Server) handleStop(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		job.Stop()
		writeJSON(w, http.StatusAccepted, createResponse{ID: id, Status: store.StatusCancelled, URL: "/placements/" + id})
		return
	}

	run, err := s.lookup(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusConflict, errorBody{Error: "run already " + string(run.Status), Code: "NOT_RUNNING"})
}

func (s *Server) lookup(req *http.Request) (*store.Run, error) {
	id := chi.URLParam(req, "id")
	if !store.ValidID(id) {
		return nil, errors.New(errors.ErrCodeNotFound, "no run %q", id)
	}
	run, err := s.runner.Store.Get(req.Context(), id)
	if err == store.ErrNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "no run %q", id)
	}
	return run, err
}
