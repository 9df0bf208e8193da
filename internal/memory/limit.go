package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"video-converter/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. Transcodes run as child processes outside the Go heap, so the
// server keeps a smaller share than a pure Go service would.
const DefaultMemoryRatio = 0.5

// Source identifies where a configured limit came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceGoMemLimit  Source = "GOMEMLIMIT"
	SourceMemoryLimit Source = "MEMORY_LIMIT"
)

// ConfigResult reports what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         Source
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv applies a soft memory limit derived from the process
// environment. Call it before any large allocations.
func ConfigureFromEnv() ConfigResult {
	return configure(os.Getenv, debug.SetMemoryLimit)
}

func configure(getenv func(string) string, setLimit func(int64) int64) ConfigResult {
	if v := getenv("GOMEMLIMIT"); v != "" {
		result := ConfigResult{Source: SourceGoMemLimit}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return result
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unset")
		return ConfigResult{Source: SourceNone}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	limit := int64(float64(containerLimit) * ratio)
	setLimit(limit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
