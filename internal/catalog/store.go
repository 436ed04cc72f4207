// Package catalog owns courses. A course belongs to exactly one teacher and
// is never reassigned.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/validate"
)

type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeacherID   int64     `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewCourse struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"notblank"`
}

var ErrCourseNotFound = apperr.Missing("Course not found.")

type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func NewStore(dbh *sql.DB, baseLog *logger.Logger) *Store {
	return &Store{db: dbh, log: baseLog.With("store", "catalog")}
}

// Create adds a course owned by the calling teacher.
func (s *Store) Create(ctx context.Context, actor rbac.Actor, in NewCourse) (Course, error) {
	if err := rbac.Authorize(actor, rbac.CourseCreate); err != nil {
		return Course{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return Course{}, err
	}

	c := Course{
		Title:       in.Title,
		Description: in.Description,
		TeacherID:   actor.ID,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO courses (title, description, teacher_id, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
			c.Title, c.Description, c.TeacherID, c.CreatedAt.Unix(),
		).Scan(&c.ID); err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.CourseCreated, Key(c.ID),
			map[string]any{"title": c.Title, "teacher_id": c.TeacherID})
	})
	if err != nil {
		s.log.Error("create course failed", "teacher_id", actor.ID, "error", err)
		return Course{}, fmt.Errorf("catalog: create course: %w", err)
	}
	s.log.Info("course created", "course_id", c.ID, "teacher_id", c.TeacherID)
	return c, nil
}

// ListOwned returns the calling teacher's courses in creation order.
func (s *Store) ListOwned(ctx context.Context, actor rbac.Actor) ([]Course, error) {
	if err := rbac.Authorize(actor, rbac.CourseListOwn); err != nil {
		return nil, err
	}
	return s.query(ctx, `WHERE teacher_id=$1 ORDER BY id ASC`, actor.ID)
}

// ListAll returns every course in creation order.
func (s *Store) ListAll(ctx context.Context, actor rbac.Actor) ([]Course, error) {
	if err := rbac.Authorize(actor, rbac.CourseList); err != nil {
		return nil, err
	}
	return s.query(ctx, `ORDER BY id ASC`)
}

func (s *Store) Get(ctx context.Context, id int64) (Course, error) {
	cs, err := s.query(ctx, `WHERE id=$1`, id)
	if err != nil {
		return Course{}, err
	}
	if len(cs) == 0 {
		return Course{}, ErrCourseNotFound
	}
	return cs[0], nil
}

// GetOwned returns the course only if teacherID owns it. A course owned by
// someone else is reported as not found.
func (s *Store) GetOwned(ctx context.Context, teacherID, courseID int64) (Course, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if c.TeacherID != teacherID {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (s *Store) query(ctx context.Context, tail string, args ...any) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, teacher_id, created_at FROM courses `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query: %w", err)
	}
	defer rows.Close()
	return ScanCourses(rows)
}

// ScanCourses reads rows of (id, title, description, teacher_id, created_at).
func ScanCourses(rows *sql.Rows) ([]Course, error) {
	out := []Course{}
	for rows.Next() {
		var c Course
		var created int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func Key(id int64) string { return fmt.Sprintf("course:%d", id) }
