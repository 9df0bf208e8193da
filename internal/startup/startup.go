package startup

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"video-converter/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LoadConfig loads configuration from an optional env file, an optional YAML
// file and the environment, then prepares the storage and staging directories.
func LoadConfig(configFile, envFile string) (*Config, error) {
	printBanner()
	logSystemInfo()

	loadedEnv, err := loadEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	cfg, err := readConfig(configFile)
	if err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
			logging.SetLevel(level)
		}
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if configFile != "" {
		logging.Info("  Config file:          %s", configFile)
	}
	if loadedEnv != "" {
		logging.Info("  Env file:             %s", loadedEnv)
	}
	logging.Info("  STORAGE_ROOT:         %s", cfg.StorageRoot)
	logging.Info("  BIND_ADDRESS:         %s", cfg.BindAddress)
	logging.Info("  MAX_UPLOAD_BYTES:     %d", cfg.MaxUploadBytes)
	logging.Info("  PUBLIC_BASE_URL:      %s", valueOr(cfg.PublicBaseURL, "(derived from request)"))
	logging.Info("  STAGING_DIR:          %s", cfg.StagingDir)
	logging.Info("  FFMPEG_PATH:          %s", cfg.FFmpegPath)
	logging.Info("  TRANSCODE_TIMEOUT:    %s", timeoutString(cfg.TranscodeTimeout))
	logging.Info("  CORS_ALLOWED_ORIGINS: %s", strings.Join(cfg.CORSAllowedOrigins, ","))
	logging.Info("  METRICS_PORT:         %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:      %v", cfg.MetricsEnabled)
	logging.Info("  LOG_DOWNLOADS:        %v", cfg.LogDownloads)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := prepareDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// prepareDirectories makes both directories absolute, creates them and
// verifies write access. Neither is optional.
func prepareDirectories(cfg *Config) error {
	storageRoot, err := filepath.Abs(cfg.StorageRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve storage root path: %w", err)
	}
	cfg.StorageRoot = storageRoot
	logging.Info("  Storage root (absolute): %s", storageRoot)

	stagingDir, err := filepath.Abs(cfg.StagingDir)
	if err != nil {
		return fmt.Errorf("failed to resolve staging directory path: %w", err)
	}
	cfg.StagingDir = stagingDir
	logging.Info("  Staging directory (absolute): %s", stagingDir)

	if err := ensureDirectory(storageRoot, "storage"); err != nil {
		return fmt.Errorf("storage directory error: %w", err)
	}
	logging.Debug("  Testing storage directory write access...")
	if err := testWriteAccess(storageRoot); err != nil {
		return fmt.Errorf("storage directory is not writable: %w", err)
	}
	logging.Info("  [OK] Storage directory is writable")

	if err := ensureDirectory(stagingDir, "staging"); err != nil {
		return fmt.Errorf("staging directory error: %w", err)
	}
	if err := testWriteAccess(stagingDir); err != nil {
		return fmt.Errorf("staging directory is not writable: %w", err)
	}
	logging.Info("  [OK] Staging directory is writable")

	return nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func timeoutString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// FFmpegProber is the part of the transcoder used by the startup probe.
type FFmpegProber interface {
	Available() (string, error)
	Version(ctx context.Context) (string, error)
}

// LogTranscoderInit probes the converter tool and reports whether it was found.
// A missing tool does not stop startup; uploads then fail with an install hint.
func LogTranscoderInit(prober FFmpegProber) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	path, err := prober.Available()
	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Uploads will fail until FFmpeg is installed")
		return false
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := prober.Version(ctx)
	if err != nil {
		logging.Warn("  Failed to get FFmpeg version: %v", err)
	} else {
		logging.Debug("  FFmpeg version: %s", version)
	}

	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogFeatureSummary logs which optional features are active.
func LogFeatureSummary(cfg *Config) {
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Transcoding: %s", enabledString(cfg.FFmpegAvailable))
	logging.Info("    Metrics:     %s", enabledString(cfg.MetricsEnabled))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logDownloads, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logDownloads {
		logging.Info("    Download logging: ON")
	} else {
		logging.Info("    Download logging: OFF (set LOG_DOWNLOADS=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	BindAddress     string
	PublicBaseURL   string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	host, port, err := net.SplitHostPort(config.BindAddress)
	if err != nil {
		host, port = config.BindAddress, ""
	}
	if host == "" {
		host = "0.0.0.0"
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Upload:        POST http://%s/process-video", net.JoinHostPort(host, port))
	if config.PublicBaseURL != "" {
		logging.Info("    Public URL:    %s", config.PublicBaseURL)
	}
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://%s/metrics", net.JoinHostPort(host, config.MetricsPort))
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
 _   ___     __            _____                          __
| | / (_)___/ /__ ___     / ___/__  ___ _  _____ ________/ /_
| |/ / / _  / -_) _ \   / /__/ _ \/ _ \ |/ / -_) __/ __/ __/
|___/_/\_,_/\__/\___/   \___/\___/_//_/___/\__/_/  \__/\__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "storage" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				}
			}
			logging.Debug("    Contents: %d session directories", dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}
