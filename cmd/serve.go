package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/maps-cli/internal/config"
	"github.com/sells-group/maps-cli/internal/model"
	"github.com/sells-group/maps-cli/internal/pipeline"
	"github.com/sells-group/maps-cli/internal/store"
)

var servePort int

// queueSize bounds runs waiting for the worker.
const queueSize = 64

var (
	errQueueFull    = errors.New("queue full")
	errShuttingDown = errors.New("server shutting down")
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the HTTP API for scrape runs",
	Annotations: map[string]string{configModeKey: "serve"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := initPipeline()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		api := newAPIServer(st, p)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			api.work(gctx)
			return nil
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// queuedRun is a stored run waiting for the worker.
type queuedRun struct {
	run *model.Run
}

// apiServer exposes runs over HTTP. Runs execute one at a time on a single
// worker so only one browser session is ever open.
type apiServer struct {
	store   store.Store
	scraper scraper
	queue   chan queuedRun

	mu     sync.Mutex
	closed bool // set once the worker stops; guards sends on queue
}

func newAPIServer(st store.Store, s scraper) *apiServer {
	return &apiServer{
		store:   st,
		scraper: s,
		queue:   make(chan queuedRun, queueSize),
	}
}

// work executes queued runs until ctx is done. Runs still waiting when it
// stops are marked failed.
func (a *apiServer) work(ctx context.Context) {
	defer a.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-a.queue:
			if ctx.Err() != nil {
				a.fail(ctx, q.run.ID, errShuttingDown)
				return
			}
			progress := pipeline.LogProgress{Fields: []zap.Field{zap.String("run_id", q.run.ID)}}
			if _, err := executeRun(ctx, a.store, a.scraper, q.run, progress); err != nil {
				zap.L().Warn("queued run failed", zap.String("run_id", q.run.ID), zap.Error(err))
			}
		}
	}
}

// enqueue hands a run to the worker without blocking.
func (a *apiServer) enqueue(run *model.Run) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errShuttingDown
	}
	select {
	case a.queue <- queuedRun{run: run}:
		return nil
	default:
		return errQueueFull
	}
}

// drain closes the queue to new runs and fails the ones left in it.
func (a *apiServer) drain(ctx context.Context) {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	for {
		select {
		case q := <-a.queue:
			a.fail(ctx, q.run.ID, errShuttingDown)
		default:
			return
		}
	}
}

// fail records a run that will never execute.
func (a *apiServer) fail(ctx context.Context, runID string, reason error) {
	err := a.store.CompleteRun(context.WithoutCancel(ctx), runID, model.RunResult{
		Status: model.RunStatusFailed,
		Error:  reason.Error(),
	})
	if err != nil {
		zap.L().Error("mark run failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	zap.L().Warn("run not started", zap.String("run_id", runID), zap.String("reason", reason.Error()))
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", a.createRun)
		r.Get("/", a.listRuns)
		r.Get("/{id}", a.getRun)
		r.Get("/{id}/places", a.listPlaces)
	})
	return r
}

type createRunRequest struct {
	Query string `json:"query"`
	Total int    `json:"total"`
}

func (a *apiServer) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	run, err := a.store.CreateRun(r.Context(), req.Query, config.ClampTotal(req.Total))
	if err != nil {
		zap.L().Error("create run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	if err := a.enqueue(run); err != nil {
		a.fail(r.Context(), run.ID, err)
		msg := "too many queued runs"
		if errors.Is(err, errShuttingDown) {
			msg = "server is shutting down"
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (a *apiServer) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Query:  r.URL.Query().Get("query"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *apiServer) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) listPlaces(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	places, err := a.store.ListPlaces(r.Context(), run.ID)
	if err != nil {
		zap.L().Error("list places failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list places")
		return
	}
	writeJSON(w, http.StatusOK, places)
}

func (a *apiServer) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := a.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load run")
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
