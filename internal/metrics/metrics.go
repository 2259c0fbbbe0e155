package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CodesDispatched counts verification codes handed to the SMS gateway,
	// labeled by flow purpose.
	CodesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_codes_dispatched_total",
		Help: "Verification codes dispatched via SMS.",
	}, []string{"purpose"})

	// TokenPairsIssued counts issued access/refresh pairs by origin.
	TokenPairsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_pairs_issued_total",
		Help: "Access/refresh token pairs issued.",
	}, []string{"flow"})

	// SessionsStarted counts created auth sessions by type.
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sessions_started_total",
		Help: "Auth sessions created.",
	}, []string{"type"})
)

// Handler returns the Prometheus scrape handler, served on a side listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
