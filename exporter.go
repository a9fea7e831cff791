package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/log"

	"github.com/blesswinsamuel/dht11_exporter/config"
	"github.com/blesswinsamuel/dht11_exporter/dht"
)

type metrics struct {
	temperature        prometheus.Gauge
	humidity           prometheus.Gauge
	temperatureEncoded prometheus.Gauge
	humidityEncoded    prometheus.Gauge
	lastRead           prometheus.Gauge
	retries            prometheus.Counter
	failures           *prometheus.CounterVec
	readings           prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_dht_temperature",
			Help: "Temperature from DHT sensor",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_dht_humidity",
			Help: "Humidity from DHT sensor",
		}),
		temperatureEncoded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_dht_temperature_encoded",
			Help: "Temperature from DHT sensor as sent, Q8.8 fixed point",
		}),
		humidityEncoded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_dht_humidity_encoded",
			Help: "Humidity from DHT sensor as sent, Q8.8 fixed point",
		}),
		lastRead: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_dht_last_reading_timestamp_seconds",
			Help: "Time of the last successful reading from DHT sensor",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pi_dht_retries",
			Help: "Retries from DHT sensor",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pi_dht_failed",
			Help: "Failures from DHT sensor by status",
		}, []string{"status"}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pi_dht_readings",
			Help: "Successful readings from DHT sensor",
		}),
	}
	reg.MustRegister(
		m.temperature,
		m.humidity,
		m.temperatureEncoded,
		m.humidityEncoded,
		m.lastRead,
		m.retries,
		m.failures,
		m.readings,
	)
	for _, status := range []dht.Status{dht.ChecksumError, dht.Timeout, dht.AllLow} {
		m.failures.WithLabelValues(statusLabel(status))
	}
	return m
}

func statusLabel(status dht.Status) string {
	return strings.ReplaceAll(status.String(), " ", "_")
}

// server reads the sensor when scraped. Reads are serialised and the next
// read starts at least cfg.MinInterval after the previous one ended; scrapes
// in between see the previous values.
type server struct {
	promHandler http.Handler
	dht         *dht.DHT
	cfg         *config.Config
	metrics     *metrics
	now         func() time.Time

	mu       sync.Mutex
	lastRead time.Time
}

func newServer(d *dht.DHT, cfg *config.Config) *server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return &server{
		promHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		dht:         d,
		cfg:         cfg,
		metrics:     newMetrics(reg),
		now:         time.Now,
	}
}

func (s *server) readSensor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastRead.IsZero() && s.now().Sub(s.lastRead) < s.cfg.MinInterval {
		return
	}

	var humidity, temperature int16
	var status dht.Status
	if s.cfg.SamplesLog2 > 0 {
		status = s.dht.ReadAveragedBlocking(s.cfg.SamplesLog2, &humidity, &temperature)
	} else {
		var retries int
		retries, status = s.dht.ReadRetry(s.cfg.MaxRetries, &humidity, &temperature)
		s.metrics.retries.Add(float64(retries))
	}
	// the interval runs from the end of the read
	s.lastRead = s.now()
	if status != dht.Success {
		s.metrics.failures.WithLabelValues(statusLabel(status)).Inc()
		log.Errorf("failed to read sensor: %v", status)
		return
	}

	s.metrics.readings.Inc()
	s.metrics.temperature.Set(dht.DecodeFixed(temperature))
	s.metrics.humidity.Set(dht.DecodeFixed(humidity))
	s.metrics.temperatureEncoded.Set(float64(temperature))
	s.metrics.humidityEncoded.Set(float64(humidity))
	s.metrics.lastRead.Set(float64(s.lastRead.Unix()))
	log.Debugf("humidity %v temperature %v", dht.DecodeFixed(humidity), dht.DecodeFixed(temperature))
}

func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	s.readSensor()
	s.promHandler.ServeHTTP(w, r)
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.MetricsPath, s.metricsHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
			<head><title>DHT11 Exporter</title></head>
			<body>
			<h1>DHT11 Exporter</h1>
			<p><a href="` + s.cfg.MetricsPath + `">Metrics</a></p>
			</body></html>`))
	})
	return mux
}
