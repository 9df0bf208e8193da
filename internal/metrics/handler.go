package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video-converter/internal/logging"
)

// Handler serves the default registry for the metrics listener. A collector
// that fails during a scrape is logged and the remaining metrics are still
// served.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      scrapeLogger{},
			ErrorHandling: promhttp.ContinueOnError,
		}))
}

// scrapeLogger routes promhttp errors into the application log.
type scrapeLogger struct{}

func (scrapeLogger) Println(v ...interface{}) {
	logging.Warn("metrics scrape: %s", fmt.Sprint(v...))
}
