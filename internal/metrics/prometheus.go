package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal   prometheus.Counter
	LoginFailureTotal   prometheus.Counter
	UserRegisteredTotal prometheus.Counter
	TokenVerifiedTotal  prometheus.Counter
	TokenRejectedTotal  prometheus.Counter
	ActiveSessionsGauge prometheus.Gauge
)

func init() {
	// Metrics exist as soon as the package loads so that code paths hit
	// before Register is called do not nil-deref.
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_logins_success_total",
		Help: "Total number of completed provider handshakes.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_logins_failure_total",
		Help: "Total number of failed provider handshakes.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_users_registered_total",
		Help: "Total number of auto-registered first-seen subjects.",
	})
	TokenVerifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_tokens_verified_total",
		Help: "Total number of bearer tokens accepted by the verifier.",
	})
	TokenRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_tokens_rejected_total",
		Help: "Total number of bearer tokens that fell back to the session check.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_active_sessions_gauge",
		Help: "Current number of authenticated sessions.",
	})
}

// Register attaches the portal metrics to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	collectors := []prometheus.Collector{
		LoginSuccessTotal,
		LoginFailureTotal,
		UserRegisteredTotal,
		TokenVerifiedTotal,
		TokenRejectedTotal,
		ActiveSessionsGauge,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}
