package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/pipeline"
	"github.com/matzehuels/keyforge/pkg/runstore"
	"github.com/matzehuels/keyforge/pkg/stats"
	"github.com/matzehuels/keyforge/pkg/writer"
)

// Response is the envelope of every API response.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// LayoutRequest selects a layout: a built-in by name or an inline TOML
// definition.
type LayoutRequest struct {
	Keyboard   string `json:"keyboard,omitempty"`
	Layout     string `json:"layout,omitempty"`
	LayoutTOML string `json:"layout_toml,omitempty"`
}

// CorpusRequest gives the triads to evaluate: a text typed on the layout,
// or a triad file.
type CorpusRequest struct {
	Text   string      `json:"text,omitempty"`
	Triads *stats.File `json:"triads,omitempty"`
}

// EffortRequest is the body of POST /api/v1/effort.
type EffortRequest struct {
	LayoutRequest
	CorpusRequest
	Model string `json:"model,omitempty"`
}

// EffortResponse is the result of POST /api/v1/effort.
type EffortResponse struct {
	Layout  string  `json:"layout"`
	Model   string  `json:"model"`
	Effort  float64 `json:"effort"`
	Triads  int     `json:"triads"`
	Presses int     `json:"presses"`
}

// OptimizeRequest is the body of POST /api/v1/optimize.
type OptimizeRequest struct {
	LayoutRequest
	CorpusRequest
	Options pipeline.Options `json:"options"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, carpalx.Models())
}

func (s *Server) handleLayouts(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string][]string{
		"layouts":   layout.Builtin(),
		"keyboards": keyboard.Builtin(),
	})
}

func (s *Server) handleEffort(w http.ResponseWriter, r *http.Request) {
	var req EffortRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = pipeline.DefaultModel
	}
	if err := builtin("model", req.Model, carpalx.Models()); err != nil {
		s.fail(w, err)
		return
	}
	l, err := resolveLayout(req.LayoutRequest)
	if err != nil {
		s.fail(w, err)
		return
	}
	c, err := s.counts(r, l, req.CorpusRequest)
	if err != nil {
		s.fail(w, err)
		return
	}
	effort, err := pipeline.Effort(l.Keyboard, req.Model, c.Triads)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, EffortResponse{
		Layout:  l.Name,
		Model:   req.Model,
		Effort:  effort,
		Triads:  len(c.Triads),
		Presses: c.Presses,
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	// a seed given in the body, zero included, replaces the default
	req := OptimizeRequest{Options: pipeline.Options{Seed: pipeline.DefaultSeed}}
	if !s.decode(w, r, &req) {
		return
	}
	opts := req.Options
	if opts.Model == "" {
		opts.Model = pipeline.DefaultModel
	}
	if err := builtin("model", opts.Model, carpalx.Models()); err != nil {
		s.fail(w, err)
		return
	}
	if opts.Steps > s.maxSteps {
		s.fail(w, errors.New(errors.ErrCodeInvalidInput, "steps %d exceed the limit of %d", opts.Steps, s.maxSteps))
		return
	}
	if opts.Restarts > MaxRestarts {
		s.fail(w, errors.New(errors.ErrCodeInvalidInput, "restarts %d exceed the limit of %d", opts.Restarts, MaxRestarts))
		return
	}
	l, err := resolveLayout(req.LayoutRequest)
	if err != nil {
		s.fail(w, err)
		return
	}
	c, err := s.counts(r, l, req.CorpusRequest)
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.runner.Optimize(r.Context(), l, c.Triads, opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	if res.Interrupted {
		s.fail(w, errors.New(errors.ErrCodeTimeout, "optimization interrupted after %d steps", res.Steps))
		return
	}

	rec, err := res.Record()
	if err != nil {
		s.fail(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.Save(r.Context(), rec); err != nil {
			s.logger.Error("save run", "id", rec.ID, "err", err)
			s.fail(w, err)
			return
		}
	}
	s.respond(w, http.StatusOK, rec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.fail(w, errors.New(errors.ErrCodeUnsupported, "no run store configured"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if records == nil {
		records = []*runstore.Record{}
	}
	s.respond(w, http.StatusOK, records)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.fail(w, errors.New(errors.ErrCodeUnsupported, "no run store configured"))
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, rec)
}

// counts returns the triads of the corpus part of a request.
func (s *Server) counts(r *http.Request, l *layout.Layout, req CorpusRequest) (*stats.Counter, error) {
	switch {
	case req.Triads != nil && req.Text != "":
		return nil, errors.New(errors.ErrCodeInvalidInput, "give either text or triads, not both")
	case req.Triads != nil:
		return req.Triads.Counter(l.Keyboard)
	case req.Text != "":
		c := stats.NewCounter(l.Keyboard)
		if err := c.Count(r.Context(), writer.New(l), strings.NewReader(req.Text)); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "text or triads required")
}

func resolveLayout(req LayoutRequest) (*layout.Layout, error) {
	if req.Keyboard == "" {
		req.Keyboard = pipeline.DefaultKeyboard
	}
	if err := builtin("keyboard", req.Keyboard, keyboard.Builtin()); err != nil {
		return nil, err
	}
	kb, err := keyboard.Load(keyboard.NewRegistry(), req.Keyboard)
	if err != nil {
		return nil, err
	}

	var def layout.Definition
	switch {
	case req.LayoutTOML != "" && req.Layout != "":
		return nil, errors.New(errors.ErrCodeInvalidInput, "give either layout or layout_toml, not both")
	case req.LayoutTOML != "":
		def, err = layout.Decode(strings.NewReader(req.LayoutTOML))
	case req.Layout != "":
		if err := builtin("layout", req.Layout, layout.Builtin()); err != nil {
			return nil, err
		}
		def, err = layout.Load(req.Layout)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "layout or layout_toml required")
	}
	if err != nil {
		return nil, err
	}
	return def.Specialize(kb)
}

// builtin checks that name is one of the embedded definitions, so requests
// never read from the server's file system.
func builtin(kind, name string, names []string) error {
	if err := errors.ValidateName(kind, name); err != nil {
		return err
	}
	if !slices.Contains(names, name) {
		return errors.New(errors.ErrCodeNotFound, "unknown %s %q", kind, name)
	}
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.fail(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	s.write(w, status, Response{Status: "success", Data: data})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.write(w, status, Response{
		Status: "error",
		Error:  errors.UserMessage(err),
		Code:   string(errors.GetCode(err)),
	})
}

func (s *Server) write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

// statusOf maps error codes to HTTP status codes.
func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidKeyboard, errors.ErrCodeInvalidLayout,
		errors.ErrCodeInvalidModel, errors.ErrCodeInvalidPin, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
