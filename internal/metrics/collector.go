// internal/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uponly"

// Collector владеет метриками движка и собственным реестром, чтобы несколько
// экземпляров (например, в тестах) не конфликтовали в глобальном реестре.
type Collector struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	reserve           prometheus.Gauge
	supply            prometheus.Gauge
	price             prometheus.Gauge
	feesPaid          *prometheus.CounterVec
	locksSettled      *prometheus.CounterVec
	crankRuns         *prometheus.CounterVec
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Engine operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency including storage commit",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"operation"},
		),
		reserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve_base_units",
			Help:      "Payment-asset base units held by the pool",
		}),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supply_base_units",
			Help:      "Sale-asset base units in circulation",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_price_base_units",
			Help:      "Payment-asset base units per whole sale unit",
		}),
		feesPaid: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fees_base_units_total",
				Help:      "Fee legs paid out, in payment-asset base units",
			},
			[]string{"leg"},
		),
		locksSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "locks_settled_total",
				Help:      "Locks closed by path",
			},
			[]string{"path"},
		),
		crankRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crank_settlements_total",
				Help:      "Settlement attempts made by the cranker",
			},
			[]string{"status"},
		),
	}

	c.registry.MustRegister(
		c.operations,
		c.operationDuration,
		c.reserve,
		c.supply,
		c.price,
		c.feesPaid,
		c.locksSettled,
		c.crankRuns,
	)
	return c
}

// Registry exposes the collector's registry for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.operations.Reset()
	c.operationDuration.Reset()
	c.feesPaid.Reset()
	c.locksSettled.Reset()
	c.crankRuns.Reset()
	c.reserve.Set(0)
	c.supply.Set(0)
	c.price.Set(0)
}

// RecordOperation записывает результат операции с учетом контекста
func (c *Collector) RecordOperation(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	default:
		status = "rejected"
	}
	c.operations.WithLabelValues(op, status).Inc()
	c.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}
