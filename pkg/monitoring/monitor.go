package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// result is "rendered", "cached" or "failed"
	AudioRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_renders_total",
			Help: "Interval instance audio renders by result",
		},
		[]string{"result"},
	)

	AudioRenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_render_duration_seconds",
			Help:    "Time spent rendering one interval instance to mp3",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QuestionsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interval_questions_generated_total",
			Help: "Interval questions generated",
		},
	)

	// result is "correct" or "incorrect"
	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interval_answers_submitted_total",
			Help: "Interval answers submitted by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AudioRenders,
			AudioRenderDuration,
			QuestionsGenerated,
			AnswersSubmitted,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
