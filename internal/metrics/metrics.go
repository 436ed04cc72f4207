// Package metrics exposes prometheus counters for the quiz gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"}, // ok, invalid_credentials, role_mismatch, error
	)

	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	enrollments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_enrollments_total",
			Help: "Total number of enrollments recorded",
		},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answer_submissions_total",
			Help: "Total number of answer submissions",
		},
		[]string{"result"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func LoginAttempt(result string)     { loginAttempts.WithLabelValues(result).Inc() }
func Registration(result string)     { registrations.WithLabelValues(result).Inc() }
func Enrolled()                      { enrollments.Inc() }
func AnswersSubmitted(result string) { submissions.WithLabelValues(result).Inc() }

// Instrument records request latency by chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }
