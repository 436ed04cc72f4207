package authoring_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/authoring"
	"github.com/mind-engage/mindengage-quiz/internal/catalog"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type fixture struct {
	db       *sql.DB
	courses  *catalog.Store
	store    *authoring.Store
	owner    rbac.Actor
	other    rbac.Actor
	student  rbac.Actor
	courseID int64
}

func setup(t *testing.T) fixture {
	t.Helper()
	dbh := dbtest.Open(t)
	courses := catalog.NewStore(dbh, logger.Nop())
	f := fixture{
		db:      dbh,
		courses: courses,
		store:   authoring.NewStore(dbh, logger.Nop(), courses),
		owner:   rbac.Actor{ID: dbtest.Account(t, dbh, "owner", "teacher"), Role: rbac.RoleTeacher},
		other:   rbac.Actor{ID: dbtest.Account(t, dbh, "other", "teacher"), Role: rbac.RoleTeacher},
		student: rbac.Actor{ID: dbtest.Account(t, dbh, "pupil", "student"), Role: rbac.RoleStudent},
	}
	c, err := courses.Create(context.Background(), f.owner, catalog.NewCourse{Title: "Go", Description: "Go basics"})
	if err != nil {
		t.Fatal(err)
	}
	f.courseID = c.ID
	return f
}

func question(text string, correct int) authoring.NewQuestion {
	return authoring.NewQuestion{
		Text:          text,
		Option1:       "a",
		Option2:       "b",
		Option3:       "c",
		Option4:       "d",
		CorrectOption: correct,
	}
}

func TestCreateQuizChecksOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	q, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: f.courseID, Title: "Week 1"})
	if err != nil {
		t.Fatal(err)
	}
	if q.ID == 0 || q.CourseID != f.courseID {
		t.Fatalf("quiz = %+v", q)
	}

	if _, err := f.store.CreateQuiz(ctx, f.other, authoring.NewQuiz{CourseID: f.courseID, Title: "Sneaky"}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("foreign course: err = %v, want NotFound", err)
	}
	if _, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: 9999, Title: "Nowhere"}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing course: err = %v, want NotFound", err)
	}
	if _, err := f.store.CreateQuiz(ctx, f.student, authoring.NewQuiz{CourseID: f.courseID, Title: "Mine"}); !apperr.Is(err, apperr.AccessDenied) {
		t.Fatalf("student: err = %v, want AccessDenied", err)
	}
	if n := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM quizzes`); n != 1 {
		t.Fatalf("quizzes = %d, want 1", n)
	}
}

func TestAddQuestionAndListInOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	q, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: f.courseID, Title: "Week 1"})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.store.Finish(ctx, f.owner, q.ID, nil); err != authoring.ErrNoQuestions {
		t.Fatalf("Finish on empty quiz: err = %v", err)
	}

	for i, text := range []string{"first", "second", "third"} {
		if _, err := f.store.AddQuestion(ctx, f.owner, q.ID, question(text, i+1)); err != nil {
			t.Fatal(err)
		}
	}

	got, qs, err := f.store.ListQuestions(ctx, f.owner, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != q.ID {
		t.Fatalf("ListQuestions quiz = %+v", got)
	}
	if len(qs) != 3 {
		t.Fatalf("len = %d, want 3", len(qs))
	}
	for i := 1; i < len(qs); i++ {
		if qs[i].ID <= qs[i-1].ID {
			t.Fatalf("questions not in ascending id order: %+v", qs)
		}
	}
	if qs[0].Text != "first" || qs[2].CorrectOption != 3 || qs[1].Options[1] != "b" {
		t.Fatalf("unexpected question data: %+v", qs)
	}

	_, n, err := f.store.Finish(ctx, f.owner, q.ID, nil)
	if err != nil || n != 3 {
		t.Fatalf("Finish = %d, %v", n, err)
	}
}

func TestAddQuestionGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	q, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: f.courseID, Title: "Week 1"})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		actor rbac.Actor
		quiz  int64
		in    authoring.NewQuestion
		want  apperr.Kind
	}{
		{"student", f.student, q.ID, question("x", 1), apperr.AccessDenied},
		{"other teacher", f.other, q.ID, question("x", 1), apperr.NotFound},
		{"missing quiz", f.owner, 4242, question("x", 1), apperr.NotFound},
		{"tag out of range", f.owner, q.ID, question("x", 5), apperr.ValidationFailed},
		{"blank option", f.owner, q.ID, authoring.NewQuestion{Text: "x", Option1: "a", Option2: " ", Option3: "c", Option4: "d", CorrectOption: 1}, apperr.ValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.store.AddQuestion(ctx, tc.actor, tc.quiz, tc.in)
			if !apperr.Is(err, tc.want) {
				t.Fatalf("err = %v, want %s", err, tc.want)
			}
		})
	}
	if n := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM questions`); n != 0 {
		t.Fatalf("questions = %d, want 0", n)
	}
}

func TestListQuizzes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, title := range []string{"A", "B"} {
		if _, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: f.courseID, Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	c, qs, err := f.store.ListQuizzes(ctx, f.owner, f.courseID)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != f.courseID || len(qs) != 2 || qs[0].Title != "A" || qs[1].Title != "B" {
		t.Fatalf("ListQuizzes = %+v %+v", c, qs)
	}
	if _, _, err := f.store.ListQuizzes(ctx, f.other, f.courseID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("other teacher: err = %v", err)
	}

	if _, _, err := f.store.ListQuestions(ctx, f.other, qs[1].ID); err != authoring.ErrQuizNotFound {
		t.Fatalf("ListQuestions other teacher: err = %v", err)
	}
	if _, _, err := f.store.ListQuestions(ctx, f.owner, 777); err != authoring.ErrQuizNotFound {
		t.Fatalf("ListQuestions missing: err = %v", err)
	}
}

func TestFinishStoresTrailingQuestion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	q, err := f.store.CreateQuiz(ctx, f.owner, authoring.NewQuiz{CourseID: f.courseID, Title: "Week 1"})
	if err != nil {
		t.Fatal(err)
	}

	// an empty form on an empty quiz is still refused
	if _, _, err := f.store.Finish(ctx, f.owner, q.ID, &authoring.NewQuestion{}); err != authoring.ErrNoQuestions {
		t.Fatalf("blank trailing: err = %v", err)
	}
	bad := question("half done", 0)
	if _, _, err := f.store.Finish(ctx, f.owner, q.ID, &bad); !apperr.Is(err, apperr.ValidationFailed) {
		t.Fatalf("invalid trailing: err = %v", err)
	}
	if n := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM questions`); n != 0 {
		t.Fatalf("questions = %d, want 0", n)
	}

	last := question("only one", 2)
	got, n, err := f.store.Finish(ctx, f.owner, q.ID, &last)
	if err != nil || n != 1 || got.ID != q.ID {
		t.Fatalf("Finish = %+v, %d, %v", got, n, err)
	}
	if n := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM event_log WHERE typ='question.added'`); n != 1 {
		t.Fatalf("question events = %d, want 1", n)
	}
	other := question("sneaky", 1)
	if _, _, err := f.store.Finish(ctx, f.other, q.ID, &other); err != authoring.ErrQuizNotFound {
		t.Fatalf("other teacher: err = %v", err)
	}
	if n := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM questions`); n != 1 {
		t.Fatalf("questions = %d, want 1", n)
	}
}
