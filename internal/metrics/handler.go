package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler serves the default registry, skipping collectors that fail to
// gather instead of failing the scrape
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// HealthHandler reports liveness and the number of searches in progress
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          "healthy",
			"time":            time.Now().UTC().Format(time.RFC3339),
			"active_searches": activeSearches(),
		})
	}
}

// RegisterHandlers mounts /metrics and /health on mux
func RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", Handler())
	mux.Handle("/health", HealthHandler())
}

// activeSearches sums paramsearch_searches_active across modes
func activeSearches() int {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Debug().Err(err).Msg("Partial metrics gather")
	}

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "paramsearch_searches_active" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetGauge().GetValue()
		}
	}
	return int(total)
}
