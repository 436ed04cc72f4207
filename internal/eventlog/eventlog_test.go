package eventlog_test

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
)

func TestAppend(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	if err := eventlog.Append(ctx, dbh, eventlog.CourseCreated, "course:1", map[string]any{"title": "Go"}); err != nil {
		t.Fatal(err)
	}
	if err := eventlog.Append(ctx, dbh, eventlog.EnrollmentCreated, "course:1", map[string]any{"student_id": 2}); err != nil {
		t.Fatal(err)
	}

	rows, err := dbh.QueryContext(ctx, `SELECT typ, key, data FROM event_log ORDER BY seq ASC`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var got [][3]string
	for rows.Next() {
		var r [3]string
		if err := rows.Scan(&r[0], &r[1], &r[2]); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	want := [][3]string{
		{eventlog.CourseCreated, "course:1", `{"title":"Go"}`},
		{eventlog.EnrollmentCreated, "course:1", `{"student_id":2}`},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAppendRejectsUnmarshalableData(t *testing.T) {
	dbh := dbtest.Open(t)
	if err := eventlog.Append(context.Background(), dbh, eventlog.CourseCreated, "course:1", func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
	if n := dbtest.Count(t, dbh, `SELECT COUNT(*) FROM event_log`); n != 0 {
		t.Fatalf("events = %d, want 0", n)
	}
}
