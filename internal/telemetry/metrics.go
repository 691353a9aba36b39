// Package telemetry exposes quiz activity as Prometheus metrics and logs
// Redis traffic.
package telemetry

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/event"
)

const namespace = "lingoquiz"

// Metrics counts domain events published on the bus.
type Metrics struct {
	registry *prometheus.Registry

	quizzesCompleted *prometheus.CounterVec
	accuracy         prometheus.Histogram
	answers          *prometheus.CounterVec
	badgesAwarded    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quizzesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_completed_total",
			Help:      "Completed quiz attempts that were saved.",
		}, []string{"theme"}),
		accuracy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quiz_accuracy_percent",
			Help:      "Accuracy of completed quiz attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Accepted answers by correctness.",
		}, []string{"correct"}),
		badgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_awarded_total",
			Help:      "Badges newly awarded.",
		}, []string{"badge"}),
	}
	m.registry.MustRegister(
		m.quizzesCompleted,
		m.accuracy,
		m.answers,
		m.badgesAwarded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Subscribe registers the metric handlers on b.
func (m *Metrics) Subscribe(b *event.Bus) {
	b.Subscribe(domain.EventNameQuizCompleted, m.onQuizCompleted)
	b.Subscribe(domain.EventNameAnswerSubmitted, m.onAnswerSubmitted)
	b.Subscribe(domain.EventNameBadgesEarned, m.onBadgesEarned)
}

func (m *Metrics) onQuizCompleted(_ context.Context, e event.Event) error {
	ev := e.(domain.EventQuizCompleted)
	m.quizzesCompleted.WithLabelValues(strconv.Itoa(ev.Result.ThemeID)).Inc()
	m.accuracy.Observe(float64(ev.Result.Accuracy))
	return nil
}

func (m *Metrics) onAnswerSubmitted(_ context.Context, e event.Event) error {
	ev := e.(domain.EventAnswerSubmitted)
	m.answers.WithLabelValues(strconv.FormatBool(ev.Correct)).Inc()
	return nil
}

func (m *Metrics) onBadgesEarned(_ context.Context, e event.Event) error {
	ev := e.(domain.EventBadgesEarned)
	for _, b := range ev.Badges {
		m.badgesAwarded.WithLabelValues(b.ID).Inc()
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
