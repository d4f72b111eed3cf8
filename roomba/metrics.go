package roomba

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roombabridge_requests_total",
		Help: "Requests sent to vacuums, by operation and result",
	}, []string{"roomba", "op", "result"})
	batteryLevel = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roombabridge_battery_level_percent",
		Help: "Last reported battery level (percent)",
	}, []string{"roomba"})
	charging = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roombabridge_charging",
		Help: "1 if the vacuum last reported it was charging",
	}, []string{"roomba"})
	running = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roombabridge_running",
		Help: "1 if the vacuum last reported status run",
	}, []string{"roomba"})
	lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roombabridge_last_success_timestamp_seconds",
		Help: "Last successful status request (epoch seconds)",
	}, []string{"roomba"})
)

// Collectors returns the collectors to register with a prometheus registry
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, batteryLevel, charging, running, lastSuccess}
}

func observeRequest(name, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	requestsTotal.WithLabelValues(name, op, result).Inc()
}

func observeStatus(name string, s Status) {
	batteryLevel.WithLabelValues(name).Set(s.BatteryLevel)
	charging.WithLabelValues(name).Set(boolGauge(s.IsCharging))
	running.WithLabelValues(name).Set(boolGauge(s.Running()))
	lastSuccess.WithLabelValues(name).Set(float64(time.Now().Unix()))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
