package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fishmarket"

// Lifecycle counts offer and order transitions, sent messages and failed event publishes.
// A nil *Lifecycle or one built without a registerer records nothing.
type Lifecycle struct {
	offerTransitions *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	messagesSent     prometheus.Counter
	publishFailures  *prometheus.CounterVec
}

// NewLifecycle registers the lifecycle metrics on the provided registerer.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	if reg == nil {
		return &Lifecycle{}
	}
	offerTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offer_transitions_total",
		Help:      "Committed offer status transitions.",
	}, []string{"from", "to"})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Committed order status transitions.",
	}, []string{"from", "to"})
	messagesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages stored in listing conversations.",
	})
	publishFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Lifecycle events that could not be published.",
	}, []string{"type"})
	reg.MustRegister(offerTransitions, orderTransitions, messagesSent, publishFailures)
	return &Lifecycle{
		offerTransitions: offerTransitions,
		orderTransitions: orderTransitions,
		messagesSent:     messagesSent,
		publishFailures:  publishFailures,
	}
}

// OfferTransition records an offer moving between statuses. Creation uses an empty from.
func (l *Lifecycle) OfferTransition(from, to string) {
	if l == nil || l.offerTransitions == nil {
		return
	}
	l.offerTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// OrderTransition records an order moving between statuses. Placement uses an empty from.
func (l *Lifecycle) OrderTransition(from, to string) {
	if l == nil || l.orderTransitions == nil {
		return
	}
	l.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (l *Lifecycle) MessageSent() {
	if l == nil || l.messagesSent == nil {
		return
	}
	l.messagesSent.Inc()
}

func (l *Lifecycle) PublishFailure(eventType string) {
	if l == nil || l.publishFailures == nil {
		return
	}
	l.publishFailures.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// HTTP observes request latency per route pattern.
type HTTP struct {
	duration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		return &HTTP{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(duration)
	return &HTTP{duration: duration}
}

func (h *HTTP) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if h == nil || h.duration == nil {
		return
	}
	h.duration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Analytics counts what the ledger worker did with consumed messages.
type Analytics struct {
	rowsWritten    prometheus.Counter
	skipped        prometheus.Counter
	insertFailures prometheus.Counter
}

func NewAnalytics(reg prometheus.Registerer) *Analytics {
	if reg == nil {
		return &Analytics{}
	}
	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "rows_written_total",
		Help:      "Transaction rows written to the ledger.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "messages_skipped_total",
		Help:      "Consumed messages that could not be decoded.",
	})
	insertFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "insert_failures_total",
		Help:      "Batches the ledger rejected.",
	})
	reg.MustRegister(rowsWritten, skipped, insertFailures)
	return &Analytics{rowsWritten: rowsWritten, skipped: skipped, insertFailures: insertFailures}
}

func (a *Analytics) RowsWritten(n int) {
	if a == nil || a.rowsWritten == nil {
		return
	}
	a.rowsWritten.Add(float64(n))
}

func (a *Analytics) Skipped() {
	if a == nil || a.skipped == nil {
		return
	}
	a.skipped.Inc()
}

func (a *Analytics) InsertFailed() {
	if a == nil || a.insertFailures == nil {
		return
	}
	a.insertFailures.Inc()
}

// Handler exposes everything registered on reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func normalizeLabel(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
