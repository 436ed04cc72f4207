// Package enrollment records which students may access which courses.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type Enrollment struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"student_id"`
	CourseID    int64     `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

type Ledger struct {
	db              *sql.DB
	log             *logger.Logger
	allowDuplicates bool
}

// NewLedger returns a ledger. With allowDuplicates false, enrolling twice in
// the same course returns the existing row instead of adding another.
func NewLedger(dbh *sql.DB, baseLog *logger.Logger, allowDuplicates bool) *Ledger {
	return &Ledger{db: dbh, log: baseLog.With("store", "enrollment"), allowDuplicates: allowDuplicates}
}

// Enroll records that the calling student takes courseID. The bool reports
// whether a new row was written; it is false only when duplicates are
// collapsed onto an existing enrollment.
func (l *Ledger) Enroll(ctx context.Context, actor rbac.Actor, courseID int64) (Enrollment, bool, error) {
	if err := rbac.Authorize(actor, rbac.EnrollmentCreate); err != nil {
		return Enrollment{}, false, err
	}

	e := Enrollment{StudentID: actor.ID, CourseID: courseID}
	created := false
	err := db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT title FROM courses WHERE id=$1`, courseID).Scan(&e.CourseTitle)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrCourseNotFound
		}
		if err != nil {
			return err
		}

		if !l.allowDuplicates {
			var at int64
			err := tx.QueryRowContext(ctx,
				`SELECT id, enrolled_at FROM enrollments WHERE student_id=$1 AND course_id=$2 ORDER BY id ASC LIMIT 1`,
				actor.ID, courseID,
			).Scan(&e.ID, &at)
			if err == nil {
				e.EnrolledAt = time.Unix(at, 0).UTC()
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		e.EnrolledAt = time.Now().UTC().Truncate(time.Second)
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO enrollments (student_id, course_id, enrolled_at) VALUES ($1,$2,$3) RETURNING id`,
			e.StudentID, e.CourseID, e.EnrolledAt.Unix(),
		).Scan(&e.ID); err != nil {
			return err
		}
		created = true
		return eventlog.Append(ctx, tx, eventlog.EnrollmentCreated, catalog.Key(courseID),
			map[string]any{"student_id": actor.ID, "enrollment_id": e.ID})
	})
	if err != nil {
		if errors.Is(err, catalog.ErrCourseNotFound) {
			return Enrollment{}, false, err
		}
		l.log.Error("enroll failed", "student_id", actor.ID, "course_id", courseID, "error", err)
		return Enrollment{}, false, fmt.Errorf("enrollment: enroll: %w", err)
	}
	if created {
		l.log.Info("student enrolled", "student_id", actor.ID, "course_id", courseID)
	}
	return e, created, nil
}

// ListEnrollments returns every enrollment row of the calling student,
// duplicates included, oldest first.
func (l *Ledger) ListEnrollments(ctx context.Context, actor rbac.Actor) ([]Enrollment, error) {
	if err := rbac.Authorize(actor, rbac.EnrollmentList); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.course_id, c.title, e.enrolled_at
		  FROM enrollments e
		  JOIN courses c ON c.id = e.course_id
		 WHERE e.student_id=$1
		 ORDER BY e.id ASC`, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("enrollment: list: %w", err)
	}
	defer rows.Close()

	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		var at int64
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CourseTitle, &at); err != nil {
			return nil, err
		}
		e.EnrolledAt = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// AvailableCourses returns the courses the calling student is not enrolled in.
func (l *Ledger) AvailableCourses(ctx context.Context, actor rbac.Actor) ([]catalog.Course, error) {
	if err := rbac.Authorize(actor, rbac.EnrollmentList); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, title, description, teacher_id, created_at
		  FROM courses
		 WHERE id NOT IN (SELECT course_id FROM enrollments WHERE student_id=$1)
		 ORDER BY id ASC`, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("enrollment: available courses: %w", err)
	}
	defer rows.Close()
	return catalog.ScanCourses(rows)
}

// EnrolledQuizzes returns the quizzes of every course the calling student is
// enrolled in, each quiz once.
func (l *Ledger) EnrolledQuizzes(ctx context.Context, actor rbac.Actor) ([]authoring.Quiz, error) {
	if err := rbac.Authorize(actor, rbac.EnrollmentList); err != nil {
		return nil, err
	}
	return authoring.QuizzesWhere(ctx, l.db,
		`WHERE course_id IN (SELECT course_id FROM enrollments WHERE student_id=$1) ORDER BY id ASC`, actor.ID)
}

func (l *Ledger) IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE student_id=$1 AND course_id=$2 LIMIT 1`, studentID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
