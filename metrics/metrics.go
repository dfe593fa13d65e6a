// Package metrics exposes accelerator link activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/moffa90/go-asconlink/accelerator"
	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultTimeout  = "timeout"
	ResultIO       = "io_error"
	ResultProtocol = "protocol_error"
	ResultError    = "error"
)

// Collector holds all Prometheus metrics for the accelerator link.
type Collector struct {
	// Exchange metrics
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	ReplyBytes       *prometheus.HistogramVec

	// Session metrics
	StagesTotal   *prometheus.CounterVec
	SessionsTotal *prometheus.CounterVec
	SessionTime   prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asconlink_exchanges_total",
				Help: "Command/response exchanges with the accelerator",
			},
			[]string{"command", "result"}, // result: ok, io_error, timeout, error
		),

		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asconlink_exchange_duration_seconds",
				Help:    "Time from writing a frame to the end of its reply",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"command"},
		),

		ReplyBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asconlink_reply_bytes",
				Help:    "Size of accelerator replies",
				Buckets: []float64{0, 2, 3, 8, 18, 64, 186, 256},
			},
			[]string{"command"},
		),

		StagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asconlink_stages_total",
				Help: "Encryption session steps by outcome",
			},
			[]string{"stage", "result"}, // result: ok, protocol_error, io_error, timeout, error
		),

		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asconlink_sessions_total",
				Help: "Encryption sessions by outcome",
			},
			[]string{"result"},
		),

		SessionTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asconlink_session_duration_seconds",
				Help:    "Duration of a complete encryption session",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

var _ accelerator.Observer = (*Collector)(nil)

// ObserveExchange records one link exchange.
func (c *Collector) ObserveExchange(command byte, elapsed time.Duration, replyLen int, err error) {
	cmd := string(command)
	c.ExchangesTotal.WithLabelValues(cmd, result(err)).Inc()
	c.ExchangeDuration.WithLabelValues(cmd).Observe(elapsed.Seconds())
	if err == nil {
		c.ReplyBytes.WithLabelValues(cmd).Observe(float64(replyLen))
	}
}

// ObserveStage records one session step.
func (c *Collector) ObserveStage(stage accelerator.State, _ time.Duration, err error) {
	c.StagesTotal.WithLabelValues(stage.String(), result(err)).Inc()
}

// ObserveSession records a finished session.
func (c *Collector) ObserveSession(elapsed time.Duration, err error) {
	c.SessionsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.SessionTime.Observe(elapsed.Seconds())
	}
}

// result maps an error to its label value.
func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, channel.ErrReplyTimeout):
		return ResultTimeout
	case protocol.IsProtocolError(err):
		return ResultProtocol
	case channel.IsIOError(err), channel.IsConnectionError(err):
		return ResultIO
	default:
		return ResultError
	}
}
