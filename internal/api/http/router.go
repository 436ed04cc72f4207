package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/mindengage-quiz/internal/auth"
	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/metrics"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type Deps struct {
	Log       *logger.Logger
	Auth      *auth.Service
	Accounts  *identity.Store
	Courses   *catalog.Store
	Authoring *authoring.Store
	Ledger    *enrollment.Ledger
	Engine    *quiz.Engine

	CORSOrigins   []string
	EnableMetrics bool
	// Ready reports whether dependencies (database, redis) are reachable.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if d.EnableMetrics {
		r.Use(metrics.Instrument)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", RegisterHandler(d.Accounts, log))
	r.Post("/auth/login", LoginHandler(d.Accounts, d.Auth, log))

	// Protected API: JWT, then actor in context, then RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Post("/auth/logout", LogoutHandler(d.Auth, log))
		pr.With(rbac.Require(rbac.CourseList)).
			Get("/courses", ListCoursesHandler(d.Courses, log))

		pr.Route("/teacher", func(tr chi.Router) {
			tr.With(rbac.Require(rbac.CourseListOwn)).
				Get("/dashboard", TeacherDashboardHandler(d.Courses, log))
			tr.With(rbac.Require(rbac.CourseCreate)).
				Post("/courses", CreateCourseHandler(d.Courses, log))
			tr.With(rbac.Require(rbac.QuizList)).
				Get("/courses/{courseID}/quizzes", ListQuizzesHandler(d.Authoring, log))
			tr.With(rbac.Require(rbac.QuizCreate)).
				Post("/quizzes", CreateQuizHandler(d.Authoring, log))
			tr.With(rbac.Require(rbac.QuestionAdd)).
				Get("/quizzes/{quizID}/questions", ListQuestionsHandler(d.Authoring, log))
			tr.With(rbac.Require(rbac.QuestionAdd)).
				Post("/quizzes/{quizID}/questions", AddQuestionHandler(d.Authoring, log))
			tr.With(rbac.Require(rbac.QuestionAdd)).
				Post("/quizzes/{quizID}/finish", FinishQuizHandler(d.Authoring, log))
		})

		pr.Route("/student", func(sr chi.Router) {
			sr.With(rbac.Require(rbac.EnrollmentList)).
				Get("/dashboard", StudentDashboardHandler(d.Ledger, log))
			sr.With(rbac.Require(rbac.EnrollmentCreate)).
				Post("/courses/{courseID}/enroll", EnrollHandler(d.Ledger, log))
			sr.With(rbac.Require(rbac.QuizTake)).
				Get("/courses/{courseID}/quizzes/{quizID}", BeginQuizHandler(d.Engine, log))
			sr.With(rbac.Require(rbac.QuizTake)).
				Post("/quizzes/{quizID}/answers", SubmitAnswersHandler(d.Engine, log))
			sr.With(rbac.Require(rbac.QuizResult)).
				Get("/quizzes/{quizID}/result", ResultHandler(d.Engine, log))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				log.Warn("not ready", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
	})
	if d.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
