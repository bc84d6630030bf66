// Package metrics exposes Prometheus collectors for custody and login
// activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/garderoba/internal/model"
)

const namespace = "garderoba"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CheckIns       *prometheus.CounterVec
	CheckOuts      *prometheus.CounterVec
	CheckInRejects *prometheus.CounterVec
	LoginAttempts  *prometheus.CounterVec
	ActiveItems    *prometheus.GaugeVec
	DepartmentCap  *prometheus.GaugeVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Items checked in, by department.",
		}, []string{"department"}),
		CheckOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Items released, by department.",
		}, []string{"department"}),
		CheckInRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkin_rejections_total",
			Help:      "Check-ins refused, by reason.",
		}, []string{"reason"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		ActiveItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_items",
			Help:      "Items currently in custody, by department.",
		}, []string{"department"}),
		DepartmentCap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "department_capacity",
			Help:      "Configured capacity, by department.",
		}, []string{"department"}),
	}
	m.registry.MustRegister(
		m.CheckIns, m.CheckOuts, m.CheckInRejects, m.LoginAttempts,
		m.ActiveItems, m.DepartmentCap,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLogin counts a login outcome.
func (m *Metrics) ObserveLogin(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// ObserveCheckIn counts a check-in and updates the department gauge.
func (m *Metrics) ObserveCheckIn(dept model.Department, active int) {
	m.CheckIns.WithLabelValues(string(dept)).Inc()
	m.ActiveItems.WithLabelValues(string(dept)).Set(float64(active))
}

// ObserveCheckOut counts a release and updates the department gauge.
func (m *Metrics) ObserveCheckOut(dept model.Department, active int) {
	m.CheckOuts.WithLabelValues(string(dept)).Inc()
	m.ActiveItems.WithLabelValues(string(dept)).Set(float64(active))
}

// ObserveRejection counts a refused check-in.
func (m *Metrics) ObserveRejection(reason string) {
	m.CheckInRejects.WithLabelValues(reason).Inc()
}

// SetOccupancy overwrites the department gauges.
func (m *Metrics) SetOccupancy(occ []model.Occupancy) {
	for _, o := range occ {
		m.ActiveItems.WithLabelValues(string(o.Department)).Set(float64(o.Active))
		m.DepartmentCap.WithLabelValues(string(o.Department)).Set(float64(o.Limit))
	}
}
