package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/metrics"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// GET /courses
func ListCoursesHandler(courses *catalog.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := courses.ListAll(r.Context(), actorFrom(r))
		if err != nil {
			writeError(w, log, err, "/")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"courses": cs})
	}
}

// GET /student/dashboard
func StudentDashboardHandler(ledger *enrollment.Ledger, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor := r.Context(), actorFrom(r)
		enrolled, err := ledger.ListEnrollments(ctx, actor)
		if err != nil {
			writeError(w, log, err, "/")
			return
		}
		quizzes, err := ledger.EnrolledQuizzes(ctx, actor)
		if err != nil {
			writeError(w, log, err, "/")
			return
		}
		available, err := ledger.AvailableCourses(ctx, actor)
		if err != nil {
			writeError(w, log, err, "/")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enrollments":       enrolled,
			"quizzes":           quizzes,
			"available_courses": available,
		})
	}
}

// POST /student/courses/{courseID}/enroll
func EnrollHandler(ledger *enrollment.Ledger, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := idParam(r, "courseID", catalog.ErrCourseNotFound)
		if err != nil {
			writeError(w, log, err, "/courses")
			return
		}
		e, created, err := ledger.Enroll(r.Context(), actorFrom(r), courseID)
		if err != nil {
			writeError(w, log, err, "/courses")
			return
		}
		if !created {
			writeJSON(w, http.StatusOK, map[string]any{
				"enrollment": e,
				"notice":     fmt.Sprintf("You are already enrolled in %s.", e.CourseTitle),
				"redirect":   "/courses",
			})
			return
		}
		metrics.Enrolled()
		writeJSON(w, http.StatusCreated, map[string]any{
			"enrollment": e,
			"notice":     fmt.Sprintf("You have successfully enrolled in %s.", e.CourseTitle),
			"redirect":   "/courses",
		})
	}
}

// GET /student/courses/{courseID}/quizzes/{quizID}
func BeginQuizHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := idParam(r, "courseID", catalog.ErrCourseNotFound)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		a, err := engine.Begin(r.Context(), actorFrom(r), courseID, quizID)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /student/quizzes/{quizID}/answers  {"<question_id>": <1..4>, ...}
func SubmitAnswersHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		var raw map[string]int
		if err := decode(r, &raw); err != nil {
			metrics.AnswersSubmitted("invalid")
			writeError(w, log, err, "/student/dashboard")
			return
		}
		selections, err := parseSelections(raw)
		if err != nil {
			metrics.AnswersSubmitted("invalid")
			writeError(w, log, err, "/student/dashboard")
			return
		}
		score, err := engine.Submit(r.Context(), actorFrom(r), quizID, selections)
		if err != nil {
			metrics.AnswersSubmitted(resultLabel(err))
			writeError(w, log, err, "/student/dashboard")
			return
		}
		metrics.AnswersSubmitted("ok")
		writeJSON(w, http.StatusOK, map[string]any{
			"score":    score,
			"notice":   "Quiz submitted successfully!",
			"redirect": fmt.Sprintf("/student/quizzes/%d/result", quizID),
		})
	}
}

// GET /student/quizzes/{quizID}/result
func ResultHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		score, err := engine.Result(r.Context(), actorFrom(r), quizID)
		if err != nil {
			writeError(w, log, err, "/student/dashboard")
			return
		}
		writeJSON(w, http.StatusOK, score)
	}
}

func parseSelections(raw map[string]int) (map[int64]authoring.Option, error) {
	out := make(map[int64]authoring.Option, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || id <= 0 {
			e := apperr.Invalid("Please correct the errors below.")
			e.Fields = map[string]string{k: "Unknown question."}
			return nil, e
		}
		out[id] = authoring.Option(v)
	}
	return out, nil
}
