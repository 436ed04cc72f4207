package catalog_test

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

func TestCreateAndListOwned(t *testing.T) {
	dbh := dbtest.Open(t)
	s := catalog.NewStore(dbh, logger.Nop())
	ctx := context.Background()

	t1 := rbac.Actor{ID: dbtest.Account(t, dbh, "t1", "teacher"), Role: rbac.RoleTeacher}
	t2 := rbac.Actor{ID: dbtest.Account(t, dbh, "t2", "teacher"), Role: rbac.RoleTeacher}

	a, err := s.Create(ctx, t1, catalog.NewCourse{Title: " Algebra ", Description: "Linear equations"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "Algebra" || a.TeacherID != t1.ID {
		t.Fatalf("course = %+v", a)
	}
	b, err := s.Create(ctx, t1, catalog.NewCourse{Title: "Geometry", Description: "Triangles"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, t2, catalog.NewCourse{Title: "Biology", Description: "Cells"}); err != nil {
		t.Fatal(err)
	}

	own, err := s.ListOwned(ctx, t1)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 2 || own[0].ID != a.ID || own[1].ID != b.ID {
		t.Fatalf("ListOwned = %+v", own)
	}

	all, err := s.ListAll(ctx, t2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll len = %d, want 3", len(all))
	}

	if _, err := s.GetOwned(ctx, t2.ID, a.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("GetOwned foreign course: err = %v", err)
	}
	if n := dbtest.Count(t, dbh, `SELECT COUNT(*) FROM event_log WHERE typ='course.created'`); n != 3 {
		t.Fatalf("course.created events = %d, want 3", n)
	}
}

func TestCreateRequiresTeacher(t *testing.T) {
	dbh := dbtest.Open(t)
	s := catalog.NewStore(dbh, logger.Nop())
	student := rbac.Actor{ID: dbtest.Account(t, dbh, "s1", "student"), Role: rbac.RoleStudent}

	_, err := s.Create(context.Background(), student, catalog.NewCourse{Title: "Hack", Description: "nope"})
	if !apperr.Is(err, apperr.AccessDenied) {
		t.Fatalf("err = %v, want AccessDenied", err)
	}
	if n := dbtest.Count(t, dbh, `SELECT COUNT(*) FROM courses`); n != 0 {
		t.Fatalf("courses = %d, want 0", n)
	}
	if _, err := s.ListOwned(context.Background(), student); !apperr.Is(err, apperr.AccessDenied) {
		t.Fatalf("ListOwned by student: err = %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	dbh := dbtest.Open(t)
	s := catalog.NewStore(dbh, logger.Nop())
	teacher := rbac.Actor{ID: dbtest.Account(t, dbh, "t", "teacher"), Role: rbac.RoleTeacher}

	_, err := s.Create(context.Background(), teacher, catalog.NewCourse{Title: "  ", Description: ""})
	if !apperr.Is(err, apperr.ValidationFailed) {
		t.Fatalf("err = %v, want ValidationFailed", err)
	}
}
