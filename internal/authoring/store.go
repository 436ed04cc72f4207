// Package authoring lets teachers build quizzes and their multiple-choice
// questions inside courses they own.
package authoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/validate"
)

// Option is a 1-based index into a question's four options.
type Option int

func (o Option) Valid() bool { return o >= 1 && o <= 4 }

type Quiz struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Question struct {
	ID            int64     `json:"id"`
	QuizID        int64     `json:"quiz_id"`
	Text          string    `json:"question_text"`
	Options       [4]string `json:"options"`
	CorrectOption Option    `json:"correct_option,omitempty"`
}

type NewQuiz struct {
	CourseID int64  `json:"course_id" validate:"required"`
	Title    string `json:"title" validate:"notblank,max=200"`
}

type NewQuestion struct {
	Text          string `json:"question_text" validate:"notblank"`
	Option1       string `json:"option1" validate:"notblank,max=100"`
	Option2       string `json:"option2" validate:"notblank,max=100"`
	Option3       string `json:"option3" validate:"notblank,max=100"`
	Option4       string `json:"option4" validate:"notblank,max=100"`
	CorrectOption int    `json:"correct_option" validate:"oneof=1 2 3 4"`
}

var (
	ErrQuizNotFound = apperr.Missing("Quiz not found.")
	ErrNoQuestions  = apperr.Invalid("You must add at least one question before submitting.").WithCode("no_questions")
)

type Store struct {
	db      *sql.DB
	log     *logger.Logger
	courses *catalog.Store
}

func NewStore(dbh *sql.DB, baseLog *logger.Logger, courses *catalog.Store) *Store {
	return &Store{db: dbh, log: baseLog.With("store", "authoring"), courses: courses}
}

// CreateQuiz adds a quiz to a course the calling teacher owns.
func (s *Store) CreateQuiz(ctx context.Context, actor rbac.Actor, in NewQuiz) (Quiz, error) {
	if err := rbac.Authorize(actor, rbac.QuizCreate); err != nil {
		return Quiz{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return Quiz{}, err
	}

	q := Quiz{CourseID: in.CourseID, Title: in.Title, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT teacher_id FROM courses WHERE id=$1`, in.CourseID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != actor.ID) {
			return catalog.ErrCourseNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO quizzes (course_id, title, created_at) VALUES ($1,$2,$3) RETURNING id`,
			q.CourseID, q.Title, q.CreatedAt.Unix(),
		).Scan(&q.ID); err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.QuizCreated, Key(q.ID),
			map[string]any{"course_id": q.CourseID, "title": q.Title})
	})
	if err != nil {
		if apperr.KindOf(err) != "" {
			return Quiz{}, err
		}
		s.log.Error("create quiz failed", "course_id", in.CourseID, "error", err)
		return Quiz{}, fmt.Errorf("authoring: create quiz: %w", err)
	}
	s.log.Info("quiz created", "quiz_id", q.ID, "course_id", q.CourseID)
	return q, nil
}

// AddQuestion appends a question to a quiz whose course the calling teacher owns.
func (s *Store) AddQuestion(ctx context.Context, actor rbac.Actor, quizID int64, in NewQuestion) (Question, error) {
	if err := rbac.Authorize(actor, rbac.QuestionAdd); err != nil {
		return Question{}, err
	}
	if err := validate.Struct(in); err != nil {
		return Question{}, err
	}
	if _, err := s.ownedQuiz(ctx, actor.ID, quizID); err != nil {
		return Question{}, err
	}

	var q Question
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		q, err = insertQuestion(ctx, tx, quizID, in)
		return err
	})
	if err != nil {
		s.log.Error("add question failed", "quiz_id", quizID, "error", err)
		return Question{}, fmt.Errorf("authoring: add question: %w", err)
	}
	return q, nil
}

// Finish closes an authoring session. A non-blank trailing question from the
// same form is stored first; a quiz that still has no questions is refused.
func (s *Store) Finish(ctx context.Context, actor rbac.Actor, quizID int64, trailing *NewQuestion) (Quiz, int, error) {
	if err := rbac.Authorize(actor, rbac.QuestionAdd); err != nil {
		return Quiz{}, 0, err
	}
	if trailing != nil && trailing.blank() {
		trailing = nil
	}
	if trailing != nil {
		if err := validate.Struct(*trailing); err != nil {
			return Quiz{}, 0, err
		}
	}
	q, err := s.ownedQuiz(ctx, actor.ID, quizID)
	if err != nil {
		return Quiz{}, 0, err
	}

	var n int
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if trailing != nil {
			if _, err := insertQuestion(ctx, tx, quizID, *trailing); err != nil {
				return err
			}
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, quizID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNoQuestions
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != "" {
			return Quiz{}, 0, err
		}
		s.log.Error("finish quiz failed", "quiz_id", quizID, "error", err)
		return Quiz{}, 0, fmt.Errorf("authoring: finish: %w", err)
	}
	return q, n, nil
}

func (in NewQuestion) blank() bool {
	for _, f := range []string{in.Text, in.Option1, in.Option2, in.Option3, in.Option4} {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return in.CorrectOption == 0
}

func insertQuestion(ctx context.Context, tx *sql.Tx, quizID int64, in NewQuestion) (Question, error) {
	q := Question{
		QuizID:        quizID,
		Text:          strings.TrimSpace(in.Text),
		Options:       [4]string{in.Option1, in.Option2, in.Option3, in.Option4},
		CorrectOption: Option(in.CorrectOption),
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO questions (quiz_id, question_text, option1, option2, option3, option4, correct_option)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		q.QuizID, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], int(q.CorrectOption),
	).Scan(&q.ID); err != nil {
		return Question{}, err
	}
	if err := eventlog.Append(ctx, tx, eventlog.QuestionAdded, Key(quizID),
		map[string]any{"question_id": q.ID}); err != nil {
		return Question{}, err
	}
	return q, nil
}

// ListQuizzes returns the quizzes of a course owned by the calling teacher.
func (s *Store) ListQuizzes(ctx context.Context, actor rbac.Actor, courseID int64) (catalog.Course, []Quiz, error) {
	if err := rbac.Authorize(actor, rbac.QuizList); err != nil {
		return catalog.Course{}, nil, err
	}
	c, err := s.courses.GetOwned(ctx, actor.ID, courseID)
	if err != nil {
		return catalog.Course{}, nil, err
	}
	quizzes, err := QuizzesWhere(ctx, s.db, `WHERE course_id=$1 ORDER BY id ASC`, courseID)
	if err != nil {
		return catalog.Course{}, nil, err
	}
	return c, quizzes, nil
}

// ListQuestions returns a quiz owned by the calling teacher with every
// question, correct options included, in creation order.
func (s *Store) ListQuestions(ctx context.Context, actor rbac.Actor, quizID int64) (Quiz, []Question, error) {
	if err := rbac.Authorize(actor, rbac.QuestionAdd); err != nil {
		return Quiz{}, nil, err
	}
	q, err := s.ownedQuiz(ctx, actor.ID, quizID)
	if err != nil {
		return Quiz{}, nil, err
	}
	qs, err := QuestionsForQuiz(ctx, s.db, quizID)
	if err != nil {
		return Quiz{}, nil, err
	}
	return q, qs, nil
}

func (s *Store) ownedQuiz(ctx context.Context, teacherID, quizID int64) (Quiz, error) {
	var q Quiz
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT q.id, q.course_id, q.title, q.created_at
		  FROM quizzes q
		  JOIN courses c ON c.id = q.course_id
		 WHERE q.id=$1 AND c.teacher_id=$2`, quizID, teacherID,
	).Scan(&q.ID, &q.CourseID, &q.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrQuizNotFound
	}
	if err != nil {
		return Quiz{}, err
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QuizzesWhere selects quizzes with the given WHERE/ORDER tail.
func QuizzesWhere(ctx context.Context, x Querier, tail string, args ...any) ([]Quiz, error) {
	rows, err := x.QueryContext(ctx, `SELECT id, course_id, title, created_at FROM quizzes `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("authoring: query quizzes: %w", err)
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		var q Quiz
		var created int64
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Title, &created); err != nil {
			return nil, err
		}
		q.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, q)
	}
	return out, rows.Err()
}

// QuestionsForQuiz loads a quiz's questions ordered by ascending id, which
// is the order students take them in.
func QuestionsForQuiz(ctx context.Context, x Querier, quizID int64) ([]Question, error) {
	rows, err := x.QueryContext(ctx, `
		SELECT id, quiz_id, question_text, option1, option2, option3, option4, correct_option
		  FROM questions WHERE quiz_id=$1 ORDER BY id ASC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("authoring: query questions: %w", err)
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		var q Question
		var correct int
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &correct); err != nil {
			return nil, err
		}
		q.CorrectOption = Option(correct)
		out = append(out, q)
	}
	return out, rows.Err()
}

func Key(id int64) string { return fmt.Sprintf("quiz:%d", id) }
