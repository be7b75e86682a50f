package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/pilight-gateway/internal/gateway"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Catalog       CatalogMetric  `json:"catalog"`
	Gateway       *gateway.Stats `json:"gateway,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// CatalogMetric describes the active catalog.
type CatalogMetric struct {
	Loaded    bool `json:"loaded"`
	Protocols int  `json:"protocols"`
}

// handleMetrics returns runtime, broker, catalog and gateway metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	if reg := s.holder.Registry(); reg != nil {
		metrics.Catalog = CatalogMetric{Loaded: true, Protocols: reg.Len()}
	}

	if s.gateway != nil {
		stats := s.gateway.Stats()
		metrics.Gateway = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
