// Package eventlog records an append-only audit trail of domain events.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	AccountRegistered = "account.registered"
	CourseCreated     = "course.created"
	QuizCreated       = "quiz.created"
	QuestionAdded     = "question.added"
	EnrollmentCreated = "enrollment.created"
	AnswersSubmitted  = "answers.submitted"
)

// Execer is satisfied by *sql.DB and *sql.Tx so events can join the caller's transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append writes one event through x.
func Append(ctx context.Context, x Execer, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventlog: marshal %s: %w", typ, err)
	}
	_, err = x.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("eventlog: append %s: %w", typ, err)
	}
	return nil
}
