package monitoring

import (
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace configures the Prometheus namespace. Defaults to "adpulse".
	Namespace string
	// ProbeDeadline bounds one health evaluation. Defaults to five seconds.
	ProbeDeadline time.Duration
}

// Module coordinates the operational collectors, health probes and summary state.
// Request-path metrics live in pkg/metrics on the default registry; the module
// serves both from one handler.
type Module struct {
	registry *prometheus.Registry
	metrics  *collectors
	stats    *statStore
	health   *HealthManager
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "adpulse"
	}
	if !namespacePattern.MatchString(namespace) {
		return nil, fmt.Errorf("monitoring: invalid metric namespace %q", namespace)
	}

	registry := prometheus.NewRegistry()
	return &Module{
		registry: registry,
		metrics:  newCollectors(registry, namespace),
		stats:    newStatStore(),
		health:   NewHealthManager(WithProbeDeadline(opts.ProbeDeadline)),
	}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler serving the default registry together with the module collectors.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, m.registry}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// Health exposes the health manager responsible for liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var globalModule atomic.Pointer[Module]

// SetModule configures the process-wide monitoring module used by instrumentation helpers.
func SetModule(module *Module) {
	if module == nil {
		return
	}
	globalModule.Store(module)
}

// CurrentModule returns the process-wide monitoring module, or nil when unset.
func CurrentModule() *Module {
	return globalModule.Load()
}
