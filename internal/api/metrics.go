package api

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/database"
	"github.com/lmaertin/pooldose-go/internal/monitor"
)

// StatsProvider exposes the history store's pool statistics and schema.
// Satisfied by *database.DB.
type StatsProvider interface {
	Stats() sql.DBStats
	SchemaStatus(ctx context.Context) (database.SchemaStatus, error)
}

// ConnectionStatus reports a broker connection. Satisfied by *mqtt.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Device        DeviceMetrics    `json:"device"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Sinks         []string         `json:"sinks"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DeviceMetrics summarises the monitored controller.
type DeviceMetrics struct {
	Health monitor.Health `json:"health"`
	Values int            `json:"values"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DatabaseMetrics contains database connection pool statistics and the
// applied schema. Schema is omitted when it cannot be read.
type DatabaseMetrics struct {
	OpenConnections int                    `json:"open_connections"`
	InUse           int                    `json:"in_use"`
	Idle            int                    `json:"idle"`
	WaitCount       int64                  `json:"wait_count"`
	Schema          *database.SchemaStatus `json:"schema,omitempty"`
}

// handleSystemMetrics returns a JSON summary of the service.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
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
		Device: DeviceMetrics{
			Health: s.values.Health(),
		},
		Sinks: s.sinks,
	}
	if metrics.Sinks == nil {
		metrics.Sinks = []string{}
	}

	if snapshot, ok := s.values.Snapshot(); ok {
		metrics.Device.Values = snapshot.Len()
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if schema, err := s.db.SchemaStatus(r.Context()); err != nil {
			s.logger.Warn("reading schema status failed", "error", err)
		} else {
			metrics.Database.Schema = &schema
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
