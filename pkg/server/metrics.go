package server

import (
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
type Metrics struct {
	game      *Game
	startTime time.Time

	playersConnected prometheus.Gauge
	objectsTotal     prometheus.Gauge
	channelsTotal    prometheus.Gauge
	commandsTotal    prometheus.Counter
	messagesTotal    prometheus.Counter
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_players_connected",
			Help: "Number of currently connected players.",
		}),
		objectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_objects_total",
			Help: "Total number of objects in the database.",
		}),
		channelsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_channels_total",
			Help: "Total number of comsys channels.",
		}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goember_commands_processed_total",
			Help: "Total commands processed since server start.",
		}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goember_channel_messages_total",
			Help: "Total channel messages posted since server start.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goember_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.playersConnected,
		m.objectsTotal,
		m.channelsTotal,
		m.commandsTotal,
		m.messagesTotal,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// CommandProcessed increments the processed-commands counter.
func (m *Metrics) CommandProcessed() {
	m.commandsTotal.Inc()
}

// MessagePosted increments the channel-messages counter.
func (m *Metrics) MessagePosted() {
	m.messagesTotal.Inc()
}

// SetChannels records the current channel count.
func (m *Metrics) SetChannels(n int) {
	m.channelsTotal.Set(float64(n))
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	m.playersConnected.Set(float64(len(m.game.Conns.ConnectedPlayers())))
	m.objectsTotal.Set(float64(len(m.game.DB.Objects)))
	if m.game.Comsys != nil {
		m.channelsTotal.Set(float64(len(m.game.Comsys.AllChannels())))
	}

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}

// StartMetrics registers the game's metrics and serves them on port.
func StartMetrics(game *Game, port int) *Metrics {
	m := NewMetrics(game, time.Now())
	m.ServeMetrics(port)
	return m
}

// ServeMetrics starts the metrics HTTP endpoint on its own goroutine.
func (m *Metrics) ServeMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	addr := fmt.Sprintf(":%d", port)
	go func() {
		log.Printf("metrics: listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics: server stopped: %v", err)
		}
	}()
}
