package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuthRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of tokens issued or refreshed.",
		},
		[]string{"flow", "result"},
	)

	DeviceResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_resolutions_total",
			Help: "Device resolutions at login, by whether a record was created or reused.",
		},
		[]string{"outcome"},
	)

	DeviceAuthorizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_authorizations_total",
			Help: "Authorization gate decisions by required capability.",
		},
		[]string{"capability", "result"},
	)

	LedgerWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_ledger_writes_total",
			Help: "Whole-document writes of the device ledger.",
		},
		[]string{"op", "result"},
	)

	StaleDevicesPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "device_stale_purged_total",
			Help: "Device records deactivated for inactivity.",
		},
	)
)

// MustRegister registers every collector on the default registry with a
// constant service label. Collectors work unregistered too, so tests never
// need to call this.
func MustRegister(serviceName string) {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthRegistrationsTotal,
		AuthLoginsTotal,
		TokensIssuedTotal,
		DeviceResolutionsTotal,
		DeviceAuthorizationsTotal,
		LedgerWritesTotal,
		StaleDevicesPurgedTotal,
	)
}
