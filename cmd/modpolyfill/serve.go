package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

// shutdownGrace bounds the drain of in-flight requests.
const shutdownGrace = 10 * time.Second

// defaultRequestFilename is used when a rewrite request names no file.
const defaultRequestFilename = "input.js"

// RewriteRequest holds the request body for POST /api/rewrite.
type RewriteRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename,omitempty"`
}

// RewriteResponse holds the response body for POST /api/rewrite.
type RewriteResponse struct {
	Code       string                `json:"code,omitempty"`
	Diagnostic *transform.Diagnostic `json:"diagnostic,omitempty"`
	Error      string                `json:"error,omitempty"`
	Rewrites   []rewrite.Rewritten   `json:"rewrites,omitempty"`
	Changed    bool                  `json:"changed"`
	Injected   bool                  `json:"injected"`
}

// apiServer serves the HTTP rewrite API.
type apiServer struct {
	transformer *transform.Transformer
	logger      *slog.Logger
	maxBody     int64
}

// newServerMux creates the HTTP mux with the API routes wrapped in tracing
// and RED middleware. metrics serves /metrics when not nil.
func newServerMux(
	srv *apiServer, tracer trace.Tracer, red *observability.REDMetrics, metrics http.Handler,
) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/rewrite", srv.handleRewrite)
	api.HandleFunc("GET /api/mappings", srv.handleMappings)
	api.Handle("GET /healthz", observability.HealthHandler())
	api.Handle("GET /readyz", observability.ReadyHandler(observability.ReadyCheck{
		Name:  "mappings",
		Check: srv.mappingsLoaded,
	}))

	mux := http.NewServeMux()
	mux.Handle("/", observability.HTTPMiddleware(tracer, red, api))

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}

// errNoMappings fails readiness when the engine has nothing to rewrite.
var errNoMappings = errors.New("mapping table is empty")

func (srv *apiServer) mappingsLoaded(context.Context) error {
	if srv.transformer.Engine().Reverse().Len() == 0 {
		return errNoMappings
	}

	return nil
}

func (srv *apiServer) handleRewrite(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if srv.maxBody > 0 {
		req.Body = http.MaxBytesReader(rw, req.Body, srv.maxBody)
	}

	var body RewriteRequest

	err := json.NewDecoder(req.Body).Decode(&body)
	if err != nil {
		status := http.StatusBadRequest

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}

		srv.writeJSON(ctx, rw, status, RewriteResponse{Error: "invalid request body: " + err.Error()})

		return
	}

	if body.Code == "" {
		srv.writeJSON(ctx, rw, http.StatusBadRequest, RewriteResponse{Error: "code is required"})

		return
	}

	filename := body.Filename
	if filename == "" {
		filename = defaultRequestFilename
	}

	out, err := srv.transformer.File(ctx, filename, []byte(body.Code))
	if err != nil {
		srv.writeJSON(ctx, rw, errorStatus(err), errorResponse(err))

		return
	}

	srv.writeJSON(ctx, rw, http.StatusOK, RewriteResponse{
		Code:     string(out.Code),
		Rewrites: out.Rewrites,
		Changed:  out.Changed,
		Injected: out.Injected,
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, transform.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jsparse.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	if _, ok := transform.AsDiagnostic(err); ok {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func errorResponse(err error) RewriteResponse {
	resp := RewriteResponse{Error: err.Error()}
	resp.Diagnostic, _ = transform.AsDiagnostic(err)

	return resp
}

// handleMappings lists entries; module+export looks one up, global reverses.
func (srv *apiServer) handleMappings(rw http.ResponseWriter, req *http.Request) {
	engine := srv.transformer.Engine()
	query := req.URL.Query()

	var entries []mapping.Entry

	switch {
	case query.Get("global") != "":
		entries = engine.Reverse().Find(query.Get("global"))
	case query.Get("module") != "" && query.Get("export") != "":
		entries = []mapping.Entry{{Module: query.Get("module"), Export: query.Get("export")}}
	case query.Get("module") != "":
		for _, export := range engine.Reverse().Exports(query.Get("module")) {
			entries = append(entries, mapping.Entry{Module: query.Get("module"), Export: export})
		}
	default:
		entries = engine.Reverse().Entries(query.Get("prefix"))
	}

	out := make([]mapping.Entry, 0, len(entries))

	for _, entry := range entries {
		if global, ok := engine.Lookup(entry.Module, entry.Export); ok {
			entry.Global = global
			out = append(out, entry)
		}
	}

	status := http.StatusOK
	if len(out) == 0 && (query.Get("global") != "" || query.Get("module") != "") {
		status = http.StatusNotFound
	}

	srv.writeJSON(req.Context(), rw, status, out)
}

// writeJSON encodes value as the JSON response body.
func (srv *apiServer) writeJSON(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	err := json.NewEncoder(rw).Encode(value)
	if err != nil {
		srv.logger.WarnContext(ctx, "failed to encode response", "error", err)
	}
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP rewrite API",
		Long: `Start an HTTP server exposing the rewrite engine:

  POST /api/rewrite    {"code": "...", "filename": "app.js"}
  GET  /api/mappings   ?prefix=, ?module=&export=, ?global=
  GET  /metrics        Prometheus metrics
  GET  /healthz        liveness
  GET  /readyz         readiness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prom, err := observability.NewPrometheus()
			if err != nil {
				return err
			}

			instance, err := newApp(opts, appOptions{
				mode:          observability.ModeServe,
				logWriter:     cmd.ErrOrStderr(),
				meterProvider: prom.Provider,
				cache:         true,
			})
			if err != nil {
				return err
			}
			defer instance.close()

			defer func() {
				shutdownErr := prom.Provider.Shutdown(context.Background())
				if shutdownErr != nil {
					instance.logger.Warn("metrics shutdown failed", "error", shutdownErr)
				}
			}()

			serverCfg := instance.cfg.Server
			if cmd.Flags().Changed("host") {
				serverCfg.Host = host
			}

			if cmd.Flags().Changed("port") {
				serverCfg.Port = port
			}

			api := &apiServer{
				transformer: instance.transformer,
				logger:      instance.logger,
				maxBody:     instance.cfg.MaxBodySize(),
			}

			server := &http.Server{
				Addr:         net.JoinHostPort(serverCfg.Host, strconv.Itoa(serverCfg.Port)),
				Handler:      newServerMux(api, instance.providers.Tracer, instance.red, prom.Handler),
				ReadTimeout:  serverCfg.ReadTimeout,
				WriteTimeout: serverCfg.WriteTimeout,
				IdleTimeout:  serverCfg.IdleTimeout,
			}

			return listenAndServe(cmd.Context(), server, instance.logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")

	return cmd
}

// listenAndServe runs server until ctx is cancelled, then drains it.
func listenAndServe(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info("modpolyfill server starting", "addr", "http://"+server.Addr)

		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	logger.Info("modpolyfill server stopping")

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
