package simulator

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks         prometheus.Counter
	tickErrors    prometheus.Counter
	timesOpened   prometheus.Gauge
	battery       prometheus.Gauge
	contactClosed prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them on reg.
// A nil reg creates unregistered collectors.
//
// Returns:
//   - *Metrics: Collectors ready for WithMetrics
//   - error: If any collector is already registered on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evedoor_ticks_total",
			Help: "Total number of simulation ticks run.",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evedoor_tick_errors_total",
			Help: "Total number of simulation ticks that failed.",
		}),
		timesOpened: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evedoor_times_opened",
			Help: "Number of times the door has been opened.",
		}),
		battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evedoor_battery_percent_remaining",
			Help: "Battery remaining in half-percent units (0-200).",
		}),
		contactClosed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evedoor_contact_closed",
			Help: "Contact state (1=closed, 0=open).",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.ticks, m.tickErrors, m.timesOpened, m.battery, m.contactClosed} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering simulator metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeTick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

func (m *Metrics) observeContact(closed bool) {
	if m == nil {
		return
	}
	if closed {
		m.contactClosed.Set(1)
	} else {
		m.contactClosed.Set(0)
	}
}

func (m *Metrics) observeOpened(total int, known bool) {
	if m == nil {
		return
	}
	if known {
		m.timesOpened.Set(float64(total))
		return
	}
	m.timesOpened.Inc()
}

func (m *Metrics) observeBattery(halfPercent int) {
	if m == nil {
		return
	}
	m.battery.Set(float64(halfPercent))
}
