package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-converter/internal/fileserver"
	"video-converter/internal/filesystem"
	"video-converter/internal/handlers"
	"video-converter/internal/logging"
	"video-converter/internal/memory"
	"video-converter/internal/metrics"
	"video-converter/internal/middleware"
	"video-converter/internal/pipeline"
	"video-converter/internal/session"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout    = 30 * time.Second
	collectionInterval = time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// runServer starts the HTTP service and blocks until it has shut down.
func runServer(configFile, envFile string) error {
	startTime := time.Now()

	config, err := startup.LoadConfig(configFile, envFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	memory.ConfigureFromEnv()

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"storage": config.StorageRoot,
		"staging": config.StagingDir,
	}))

	trans := transcoder.New(transcoder.Config{
		Binary:  config.FFmpegPath,
		Timeout: config.TranscodeTimeout,
	})
	config.FFmpegAvailable = startup.LogTranscoderInit(trans)
	startup.LogFeatureSummary(config)

	store := session.NewStore(config.StorageRoot)
	pipe := pipeline.New(pipeline.Config{
		StagingDir:     config.StagingDir,
		MaxUploadBytes: config.MaxUploadBytes,
	}, store, trans)

	h := handlers.New(pipe, fileserver.New(config.StorageRoot), trans, store, handlers.Config{
		PublicBaseURL: config.PublicBaseURL,
	})

	collector := metrics.NewCollector(store, collectionInterval)
	collector.Start()

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogDownloads, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              config.BindAddress,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads of up to MAX_UPLOAD_BYTES and synchronous transcodes
		// make whole-request deadlines unsuitable.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", config.BindAddress)
	if err != nil {
		collector.Stop()
		return fmt.Errorf("failed to listen on %s: %w", config.BindAddress, err)
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, collector, trans, done)

	startup.LogServerStarted(startup.ServerConfig{
		BindAddress:     config.BindAddress,
		PublicBaseURL:   config.PublicBaseURL,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-done
	return nil
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Upload
	r.HandleFunc("/process-video", h.ProcessVideo).Methods(http.MethodPost)

	// Converted files. The legacy prefix is registered first so it is not
	// taken for a session id.
	r.HandleFunc("/Uploads/{path:.*}", h.ServeUploads).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/{sessionId}/{filename}", h.ServeConverted).Methods(http.MethodGet, http.MethodHead)

	return r
}

// buildHandler wraps the router in the middleware chain. Logging and metrics
// are outermost so they see the 500 produced for a recovered panic.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = config.CORSAllowedOrigins

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogDownloads = config.LogDownloads
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.CORS(corsConfig)(router)
	handler = middleware.Recover()(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	return middleware.Logger(loggingConfig)(handler)
}

func startMetricsServer(port string) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, trans *transcoder.Transcoder, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cleaning up transcoder")
	if n := trans.ActiveJobs(); n > 0 {
		logging.Warn("  Killing %d transcode(s) still running", n)
	}
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
