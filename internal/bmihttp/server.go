package bmihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/bmiview/internal/bmi"
)

// Server exposes a handle over HTTP. Calls into the handle are serialised;
// the handle is not assumed to be safe for concurrent use.
type Server struct {
	model      bmi.BMI
	addr       string
	logger     *zap.Logger
	configRoot string

	mu sync.Mutex
}

type ServerOption func(*Server)

func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfigRoot confines POST /initialize to config files under dir. The
// requested path is taken relative to dir and may not leave it.
func WithConfigRoot(dir string) ServerOption {
	return func(s *Server) {
		s.configRoot = dir
	}
}

func NewServer(model bmi.BMI, addr string, opts ...ServerOption) *Server {
	s := &Server{model: model, addr: addr, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.logRequests,
		middleware.Recoverer,
	)

	r.Get("/component", s.handleComponent)
	r.Get("/time", s.handleTime)
	r.Get("/vars", s.handleVarNames)
	r.Route("/vars/{name}", func(r chi.Router) {
		r.Get("/grid", s.handleVarGrid)
		r.Get("/units", s.handleVarUnits)
		r.Get("/value", s.handleGetValue)
		r.Put("/value", s.handleSetValue)
	})
	r.Route("/grids/{id}", func(r chi.Router) {
		r.Get("/type", s.gridQuery(func(id bmi.GridID) (any, error) {
			t, err := s.model.GetGridType(id)
			return gridTypeResponse{Type: t}, err
		}))
		r.Get("/rank", s.gridCount(s.model.GetGridRank))
		r.Get("/size", s.gridCount(s.model.GetGridSize))
		r.Get("/face_count", s.gridCount(s.model.GetGridFaceCount))
		r.Get("/faces", s.handleFaces)
		r.Get("/x", s.handleCoords('x'))
		r.Get("/y", s.handleCoords('y'))
	})
	r.Post("/initialize", s.handleInitialize)
	r.Post("/update_until", s.handleUpdateUntil)
	r.Post("/finalize", s.handleFinalize)

	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting bmi server", zap.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down bmi server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, KindModel
	switch {
	case errors.Is(err, bmi.ErrUnknownVariable):
		status, kind = http.StatusNotFound, KindUnknownVariable
	case errors.Is(err, bmi.ErrUnsupportedModel):
		status, kind = http.StatusNotImplemented, KindUnsupported
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: KindBadRequest})
}

func varName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if un, err := url.PathUnescape(name); err == nil {
		return un
	}
	return name
}

func gridID(r *http.Request) (bmi.GridID, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("invalid grid id %q", chi.URLParam(r, "id"))
	}
	return bmi.GridID(id), nil
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.model.GetComponentName()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, componentResponse{Name: name})
}

func (s *Server) handleVarNames(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	var err error
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "output":
		names, err = s.model.GetOutputVarNames()
	case "input":
		names, err = s.model.GetInputVarNames()
	default:
		badRequest(w, fmt.Errorf("unknown variable kind %q", kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, namesResponse{Names: names})
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp timeResponse
	var err error
	if resp.Start, err = s.model.GetStartTime(); err != nil {
		writeError(w, err)
		return
	}
	if resp.End, err = s.model.GetEndTime(); err != nil {
		writeError(w, err)
		return
	}
	if resp.Current, err = s.model.GetCurrentTime(); err != nil {
		writeError(w, err)
		return
	}
	if resp.Step, err = s.model.GetTimeStep(); err != nil {
		writeError(w, err)
		return
	}
	if resp.Units, err = s.model.GetTimeUnits(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVarGrid(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.model.GetVarGrid(varName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gridIDResponse{Grid: int(id)})
}

func (s *Server) handleVarUnits(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	units, err := s.model.GetVarUnits(varName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unitsResponse{Units: units})
}

func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := varName(r)
	id, err := s.model.GetVarGrid(name)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := s.model.GetGridSize(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if size < 0 {
		writeError(w, &bmi.GridMismatchError{Want: size})
		return
	}
	values := make([]float64, size)
	if err := s.model.GetValue(name, values); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valuesBody{Values: values})
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	var body valuesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.SetValue(varName(r), body.Values); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// gridQuery answers one per-grid query with exactly one handle call.
func (s *Server) gridQuery(query func(bmi.GridID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gridID(r)
		if err != nil {
			badRequest(w, err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		resp, err := query(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) gridCount(query func(bmi.GridID) (int, error)) http.HandlerFunc {
	return s.gridQuery(func(id bmi.GridID) (any, error) {
		n, err := query(id)
		return countResponse{Count: n}, err
	})
}

func (s *Server) handleFaces(w http.ResponseWriter, r *http.Request) {
	id, err := gridID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.model.GetGridFaceCount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if count < 0 {
		writeError(w, &bmi.MalformedConnectivityError{
			Length: 3 * count,
			Reason: fmt.Sprintf("negative face count %d", count),
		})
		return
	}
	nodes := make([]int, 3*count)
	if err := s.model.GetGridFaceNodes(id, nodes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facesResponse{Nodes: nodes})
}

func (s *Server) handleCoords(axis byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gridID(r)
		if err != nil {
			badRequest(w, err)
			return
		}
		nc, ok := s.model.(bmi.NodeCoordinates)
		if !ok {
			writeError(w, &bmi.UnsupportedModelError{Missing: []string{"NodeCoordinates"}})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		size, err := s.model.GetGridSize(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if size < 0 {
			writeError(w, &bmi.GridMismatchError{Want: size})
			return
		}
		values := make([]float64, size)
		if axis == 'x' {
			err = nc.GetGridX(id, values)
		} else {
			err = nc.GetGridY(id, values)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, valuesBody{Values: values})
	}
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err)
		return
	}

	path, err := s.configPath(req.Config)
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Kind: KindForbidden})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.Initialize(path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// configPath resolves a requested config file against the config root, if
// one is set.
func (s *Server) configPath(requested string) (string, error) {
	if s.configRoot == "" {
		return requested, nil
	}
	if filepath.IsAbs(requested) {
		return "", fmt.Errorf("config path %q must be relative to the server config root", requested)
	}
	root, err := filepath.Abs(s.configRoot)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, requested)
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("config path %q leaves the server config root", requested)
	}
	return path, nil
}

func (s *Server) handleUpdateUntil(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.UpdateUntil(req.Time); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.Finalize(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
