// Package quiz runs quiz attempts: it serves questions to enrolled
// students, stores their selections and scores them.
//
// There is no attempt entity. A student holds at most one answer per
// question; resubmitting overwrites it, and questions left out of a
// submission keep whatever answer an earlier submission stored.
package quiz

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// Attempt is what a student sees when opening a quiz. Correct options are
// never included.
type Attempt struct {
	Quiz      authoring.Quiz       `json:"quiz"`
	Questions []authoring.Question `json:"questions"`
}

type Score struct {
	QuizID   int64 `json:"quiz_id"`
	Correct  int   `json:"correct"`
	Total    int   `json:"total"`
	Answered int   `json:"answered"`
}

var ErrNotEnrolled = apperr.Denied("You are not enrolled in this course.").WithCode("not_enrolled")

type Engine struct {
	db     *sql.DB
	log    *logger.Logger
	ledger *enrollment.Ledger
	now    func() time.Time
}

type EngineOption func(*Engine)

// WithClock sets the clock that stamps stored answers.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(dbh *sql.DB, baseLog *logger.Logger, ledger *enrollment.Ledger, opts ...EngineOption) *Engine {
	e := &Engine{db: dbh, log: baseLog.With("store", "quiz"), ledger: ledger, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Begin opens quizID of courseID for the calling student.
func (e *Engine) Begin(ctx context.Context, actor rbac.Actor, courseID, quizID int64) (Attempt, error) {
	if err := rbac.Authorize(actor, rbac.QuizTake); err != nil {
		return Attempt{}, err
	}
	qs, err := authoring.QuizzesWhere(ctx, e.db, `WHERE id=$1 AND course_id=$2`, quizID, courseID)
	if err != nil {
		return Attempt{}, err
	}
	if len(qs) == 0 {
		return Attempt{}, authoring.ErrQuizNotFound
	}
	if err := e.requireEnrollment(ctx, actor.ID, courseID); err != nil {
		return Attempt{}, err
	}

	questions, err := authoring.QuestionsForQuiz(ctx, e.db, quizID)
	if err != nil {
		return Attempt{}, err
	}
	for i := range questions {
		questions[i].CorrectOption = 0
	}
	return Attempt{Quiz: qs[0], Questions: questions}, nil
}

// Submit stores the student's selections for quizID and returns the fresh
// score. Selections for questions outside the quiz are ignored. Every
// selection is checked before anything is written, and all writes share one
// transaction.
func (e *Engine) Submit(ctx context.Context, actor rbac.Actor, quizID int64, selections map[int64]authoring.Option) (Score, error) {
	if err := rbac.Authorize(actor, rbac.QuizTake); err != nil {
		return Score{}, err
	}
	if err := checkSelections(selections); err != nil {
		return Score{}, err
	}
	q, err := e.quiz(ctx, quizID)
	if err != nil {
		return Score{}, err
	}
	if err := e.requireEnrollment(ctx, actor.ID, q.CourseID); err != nil {
		return Score{}, err
	}

	var score Score
	err = db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		questions, err := authoring.QuestionsForQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		now := e.now().Unix()
		stored := 0
		for _, qu := range questions {
			opt, ok := selections[qu.ID]
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO answers (student_id, question_id, selected_option, submitted_at)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (student_id, question_id)
				DO UPDATE SET selected_option = EXCLUDED.selected_option, submitted_at = EXCLUDED.submitted_at`,
				actor.ID, qu.ID, int(opt), now); err != nil {
				return err
			}
			stored++
		}
		if err := eventlog.Append(ctx, tx, eventlog.AnswersSubmitted, authoring.Key(quizID),
			map[string]any{"student_id": actor.ID, "answers": stored}); err != nil {
			return err
		}
		answers, err := loadAnswers(ctx, tx, actor.ID, quizID)
		if err != nil {
			return err
		}
		score = Tally(quizID, questions, answers)
		return nil
	})
	if err != nil {
		e.log.Error("submit answers failed", "student_id", actor.ID, "quiz_id", quizID, "error", err)
		return Score{}, fmt.Errorf("quiz: submit: %w", err)
	}
	e.log.Info("answers submitted", "student_id", actor.ID, "quiz_id", quizID,
		"correct", score.Correct, "total", score.Total)
	return score, nil
}

// Result scores the calling student's stored answers for quizID.
func (e *Engine) Result(ctx context.Context, actor rbac.Actor, quizID int64) (Score, error) {
	if err := rbac.Authorize(actor, rbac.QuizResult); err != nil {
		return Score{}, err
	}
	if _, err := e.quiz(ctx, quizID); err != nil {
		return Score{}, err
	}
	questions, err := authoring.QuestionsForQuiz(ctx, e.db, quizID)
	if err != nil {
		return Score{}, err
	}
	answers, err := loadAnswers(ctx, e.db, actor.ID, quizID)
	if err != nil {
		return Score{}, err
	}
	return Tally(quizID, questions, answers), nil
}

// Tally counts the questions whose stored answer matches the correct
// option. Unanswered questions count toward the total only.
func Tally(quizID int64, questions []authoring.Question, answers map[int64]authoring.Option) Score {
	s := Score{QuizID: quizID, Total: len(questions)}
	for _, q := range questions {
		sel, ok := answers[q.ID]
		if !ok {
			continue
		}
		s.Answered++
		if sel == q.CorrectOption {
			s.Correct++
		}
	}
	return s
}

func (e *Engine) quiz(ctx context.Context, quizID int64) (authoring.Quiz, error) {
	qs, err := authoring.QuizzesWhere(ctx, e.db, `WHERE id=$1`, quizID)
	if err != nil {
		return authoring.Quiz{}, err
	}
	if len(qs) == 0 {
		return authoring.Quiz{}, authoring.ErrQuizNotFound
	}
	return qs[0], nil
}

func (e *Engine) requireEnrollment(ctx context.Context, studentID, courseID int64) error {
	ok, err := e.ledger.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

func checkSelections(selections map[int64]authoring.Option) error {
	fields := map[string]string{}
	for id, opt := range selections {
		if !opt.Valid() {
			fields[strconv.FormatInt(id, 10)] = "Select one of the four options."
		}
	}
	if len(fields) == 0 {
		return nil
	}
	err := apperr.Invalid("Please correct the errors below.")
	err.Fields = fields
	return err
}

func loadAnswers(ctx context.Context, x authoring.Querier, studentID, quizID int64) (map[int64]authoring.Option, error) {
	rows, err := x.QueryContext(ctx, `
		SELECT a.question_id, a.selected_option
		  FROM answers a
		  JOIN questions q ON q.id = a.question_id
		 WHERE a.student_id=$1 AND q.quiz_id=$2`, studentID, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz: load answers: %w", err)
	}
	defer rows.Close()

	out := map[int64]authoring.Option{}
	for rows.Next() {
		var id int64
		var sel int
		if err := rows.Scan(&id, &sel); err != nil {
			return nil, err
		}
		out[id] = authoring.Option(sel)
	}
	return out, rows.Err()
}
