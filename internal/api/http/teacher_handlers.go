package http

import (
	"fmt"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
)

// GET /teacher/dashboard
func TeacherDashboardHandler(courses *catalog.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := courses.ListOwned(r.Context(), actorFrom(r))
		if err != nil {
			writeError(w, log, err, "/")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"courses": cs})
	}
}

// POST /teacher/courses  {title,description}
func CreateCourseHandler(courses *catalog.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.NewCourse
		if err := decode(r, &in); err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		c, err := courses.Create(r.Context(), actorFrom(r), in)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"course":   c,
			"notice":   "Course created successfully.",
			"redirect": "/teacher/dashboard",
		})
	}
}

// GET /teacher/courses/{courseID}/quizzes
func ListQuizzesHandler(quizzes *authoring.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := idParam(r, "courseID", catalog.ErrCourseNotFound)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		c, qs, err := quizzes.ListQuizzes(r.Context(), actorFrom(r), courseID)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"course": c, "quizzes": qs})
	}
}

// POST /teacher/quizzes  {course_id,title}
func CreateQuizHandler(quizzes *authoring.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in authoring.NewQuiz
		if err := decode(r, &in); err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		q, err := quizzes.CreateQuiz(r.Context(), actorFrom(r), in)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"quiz":     q,
			"notice":   "Quiz added successfully.",
			"redirect": fmt.Sprintf("/teacher/quizzes/%d/questions", q.ID),
		})
	}
}

// POST /teacher/quizzes/{quizID}/questions  {question_text,option1..option4,correct_option}
func AddQuestionHandler(quizzes *authoring.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		back := fmt.Sprintf("/teacher/quizzes/%d/questions", quizID)
		var in authoring.NewQuestion
		if err := decode(r, &in); err != nil {
			writeError(w, log, err, back)
			return
		}
		q, err := quizzes.AddQuestion(r.Context(), actorFrom(r), quizID, in)
		if err != nil {
			writeError(w, log, err, back)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"question": q,
			"notice":   "Question added successfully.",
			"redirect": back,
		})
	}
}

// GET /teacher/quizzes/{quizID}/questions
func ListQuestionsHandler(quizzes *authoring.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		q, qs, err := quizzes.ListQuestions(r.Context(), actorFrom(r), quizID)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": q, "questions": qs})
	}
}

// POST /teacher/quizzes/{quizID}/finish  optional trailing {question_text,option1..option4,correct_option}
func FinishQuizHandler(quizzes *authoring.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID", authoring.ErrQuizNotFound)
		if err != nil {
			writeError(w, log, err, "/teacher/dashboard")
			return
		}
		back := fmt.Sprintf("/teacher/quizzes/%d/questions", quizID)
		var in authoring.NewQuestion
		var trailing *authoring.NewQuestion
		present, err := decodeOptional(r, &in)
		if err != nil {
			writeError(w, log, err, back)
			return
		}
		if present {
			trailing = &in
		}
		q, n, err := quizzes.Finish(r.Context(), actorFrom(r), quizID, trailing)
		if err != nil {
			writeError(w, log, err, back)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"quiz":      q,
			"questions": n,
			"notice":    "All questions have been submitted.",
			"redirect":  fmt.Sprintf("/teacher/courses/%d/quizzes", q.CourseID),
		})
	}
}
