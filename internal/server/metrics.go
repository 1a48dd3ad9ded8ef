package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/salusconnect/internal/salus"
)

// scrapeTimeout bounds a single /metrics collection
const scrapeTimeout = 20 * time.Second

// MetricsCollector scrapes the account on each Prometheus collect.
type MetricsCollector struct {
	client interface {
		ListDevices(ctx context.Context) ([]salus.DeviceSummary, error)
	}
	now func() time.Time

	temp        *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	heating     *prometheus.GaugeVec
	devices     prometheus.Gauge
	lastSuccess prometheus.Gauge
	success     prometheus.Gauge
}

func NewMetricsCollector(client Thermostat) *MetricsCollector {
	labels := []string{"dsn", "name"}
	return &MetricsCollector{
		client: client,
		now:    time.Now,
		temp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_temperature_celsius",
			Help: "Current room temperature per thermostat",
		}, labels),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_setpoint_celsius",
			Help: "Heating setpoint per thermostat",
		}, labels),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_humidity_percent",
			Help: "Relative humidity per thermostat",
		}, labels),
		heating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_heating_active_bool",
			Help: "Heating active per thermostat (1=on, 0=off)",
		}, labels),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "salus_devices",
			Help: "Number of accepted thermostats on the account",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "salus_last_success_timestamp_seconds",
			Help: "Last successful Salus Connect scrape timestamp (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "salus_scrape_success",
			Help: "Last scrape success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.temp.Describe(ch)
	c.setpoint.Describe(ch)
	c.humidity.Describe(ch)
	c.heating.Describe(ch)
	c.devices.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	summaries, err := c.client.ListDevices(ctx)
	if err != nil {
		// Keep the last readings so a blip does not blank dashboards
		c.success.Set(0)
		c.collectAll(ch)
		return
	}

	c.temp.Reset()
	c.setpoint.Reset()
	c.humidity.Reset()
	c.heating.Reset()

	for _, s := range summaries {
		labels := prometheus.Labels{"dsn": s.ID, "name": s.Name}
		c.temp.With(labels).Set(salus.CelsiusFromSetpoint(s.Current))
		c.setpoint.With(labels).Set(salus.CelsiusFromSetpoint(s.Target))
		c.humidity.With(labels).Set(s.Humidity)
		c.heating.With(labels).Set(boolToFloat(s.Heating))
	}

	c.devices.Set(float64(len(summaries)))
	c.success.Set(1)
	c.lastSuccess.Set(float64(c.now().Unix()))
	c.collectAll(ch)
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.temp.Collect(ch)
	c.setpoint.Collect(ch)
	c.humidity.Collect(ch)
	c.heating.Collect(ch)
	c.devices.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
