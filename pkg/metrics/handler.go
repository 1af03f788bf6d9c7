package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the standard net/http handler for the scrape endpoint,
// mountable directly on a chi router (chi.Mux embeds http.Handler
// registration), unlike the example pack's echo-specific wrapper.
func Handler() http.Handler {
	return promhttp.Handler()
}
