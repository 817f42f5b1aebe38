package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	MessageReceived  prometheus.Counter
	MessageSent      prometheus.Counter

	// RPC method metrics
	RPCRequests *prometheus.CounterVec

	// Signing and verification metrics
	SignRequests       prometheus.Counter
	VerificationsTotal *prometheus.CounterVec

	// Audit store metrics
	StoredRecords prometheus.Gauge
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	metrics := &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signet_connected_clients",
			Help: "The current number of connected clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_connections_total",
			Help: "The total number of WebSocket connections made since server start",
		}),
		MessageReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_ws_messages_received_total",
			Help: "The total number of WebSocket messages received",
		}),
		MessageSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_ws_messages_sent_total",
			Help: "The total number of WebSocket messages sent",
		}),
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signet_rpc_requests_total",
				Help: "The total number of RPC requests by method",
			},
			[]string{"method", "status"},
		),
		SignRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_sign_requests_total",
			Help: "The total number of message signing requests",
		}),
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signet_verifications_total",
				Help: "The total number of signature verifications by outcome",
			},
			[]string{"outcome"},
		),
		StoredRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signet_stored_records",
			Help: "The number of verification records in the audit store",
		}),
	}

	return metrics
}

// RecordMetricsPeriodically refreshes the database-derived gauges until the
// process exits.
func (m *Metrics) RecordMetricsPeriodically(db *gorm.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.UpdateRecordMetrics(db)
	}
}

// UpdateRecordMetrics updates the audit store gauges from the database
func (m *Metrics) UpdateRecordMetrics(db *gorm.DB) {
	var count int64
	if err := db.Model(&VerificationRecord{}).Count(&count).Error; err != nil {
		return
	}
	m.StoredRecords.Set(float64(count))
}
