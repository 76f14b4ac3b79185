package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// MÉTRICAS PROMETHEUS DEL SISTEMA DE TICKETS
// ============================================================================
// Expuestas en GET /api/stats/metrics vía promhttp.

var (
	// TicketsPurchased cuenta tickets emitidos, separados por canal
	// (online | offline).
	TicketsPurchased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrogate_tickets_purchased_total",
		Help: "Total de tickets emitidos",
	}, []string{"channel"})

	// FareRevenue acumula el monto total cobrado en tarifas.
	FareRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrogate_fare_revenue_total",
		Help: "Monto total cobrado en tarifas (unidades de moneda)",
	})

	// ScanAttempts cuenta intentos de scan por tipo y resultado.
	ScanAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrogate_scan_attempts_total",
		Help: "Intentos de scan de tickets",
	}, []string{"kind", "outcome"})

	// GraphRebuilds cuenta reconstrucciones del snapshot del grafo.
	GraphRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrogate_graph_rebuilds_total",
		Help: "Reconstrucciones del snapshot del grafo de estaciones",
	})

	// HTTPRequestDuration mide la latencia de cada endpoint.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrogate_http_request_duration_seconds",
		Help:    "Duración de requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// ScanOutcome convierte el flag de éxito a label de prometheus.
func ScanOutcome(success bool) string {
	if success {
		return "accepted"
	}
	return "rejected"
}
