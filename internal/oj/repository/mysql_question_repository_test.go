package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"codejudge/internal/common/db"
	appErr "codejudge/pkg/errors"
)

type fakeRow struct {
	values []interface{}
	err    error
}

func (r *fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: got %d dest for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		default:
			return fmt.Errorf("unsupported dest %T", d)
		}
	}
	return nil
}

type fakeRows struct {
	rows []*fakeRow
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error { return r.rows[r.pos-1].Scan(dest...) }
func (r *fakeRows) Err() error                     { return r.err }
func (r *fakeRows) Close() error                   { return nil }

type fakeQuerier struct {
	lastQuery string
	lastArgs  []interface{}
	row       *fakeRow
	rows      *fakeRows
	queryErr  error
}

func (q *fakeQuerier) Query(_ context.Context, query string, args ...interface{}) (db.Rows, error) {
	q.lastQuery, q.lastArgs = query, args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, query string, args ...interface{}) db.Row {
	q.lastQuery, q.lastArgs = query, args
	return q.row
}

func questionRow(number string) *fakeRow {
	return &fakeRow{values: []interface{}{number, "Title" + number, "easy", "desc", "header", "", "tail", 1, 30000}}
}

func TestMySQLGetOneQuestion(t *testing.T) {
	q := &fakeQuerier{row: questionRow("7")}
	repo := NewMySQLQuestionRepository(q, "")

	p, err := repo.GetOneQuestion(context.Background(), "7")
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if p.Number != "7" || p.Harness != "tail" || p.MemLimit != 30000 {
		t.Fatalf("unexpected problem %+v", p)
	}
	if !strings.Contains(q.lastQuery, "FROM questions WHERE number = ?") || len(q.lastArgs) != 1 || q.lastArgs[0] != "7" {
		t.Fatalf("query not parameterised: %q %v", q.lastQuery, q.lastArgs)
	}
}

func TestMySQLGetOneQuestionErrors(t *testing.T) {
	repo := NewMySQLQuestionRepository(&fakeQuerier{row: &fakeRow{err: sql.ErrNoRows}}, "oj_questions")
	if _, err := repo.GetOneQuestion(context.Background(), "1"); !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("err = %v, want ProblemNotFound", err)
	}
	repo = NewMySQLQuestionRepository(&fakeQuerier{row: &fakeRow{err: errors.New("connection refused")}}, "oj_questions")
	if _, err := repo.GetOneQuestion(context.Background(), "1"); !appErr.Is(err, appErr.ProblemStoreUnavailable) {
		t.Fatalf("err = %v, want ProblemStoreUnavailable", err)
	}
}

func TestMySQLGetAllQuestions(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: []*fakeRow{questionRow("1"), questionRow("2")}}}
	repo := NewMySQLQuestionRepository(q, "oj_questions")
	all, err := repo.GetAllQuestions(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all[1].Number != "2" {
		t.Fatalf("unexpected questions %+v", all)
	}
	if !strings.Contains(q.lastQuery, "FROM oj_questions") {
		t.Fatalf("unexpected query %q", q.lastQuery)
	}

	repo = NewMySQLQuestionRepository(&fakeQuerier{queryErr: errors.New("down")}, "")
	if _, err := repo.GetAllQuestions(context.Background()); !appErr.Is(err, appErr.ProblemStoreUnavailable) {
		t.Fatalf("err = %v, want ProblemStoreUnavailable", err)
	}
	repo = NewMySQLQuestionRepository(&fakeQuerier{rows: &fakeRows{err: errors.New("broken pipe")}}, "")
	if _, err := repo.GetAllQuestions(context.Background()); !appErr.Is(err, appErr.ProblemStoreUnavailable) {
		t.Fatalf("iteration err = %v, want ProblemStoreUnavailable", err)
	}
}

func TestMySQLRejectsInvalidLimits(t *testing.T) {
	cases := map[string][]interface{}{
		"zero cpu":     {"3", "T", "easy", "d", "h", "", "t", 0, 30000},
		"negative mem": {"3", "T", "easy", "d", "h", "", "t", 1, -1},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			repo := NewMySQLQuestionRepository(&fakeQuerier{row: &fakeRow{values: values}}, "")
			if _, err := repo.GetOneQuestion(context.Background(), "3"); !appErr.Is(err, appErr.ProblemStoreUnavailable) {
				t.Fatalf("get one err = %v, want ProblemStoreUnavailable", err)
			}
			repo = NewMySQLQuestionRepository(&fakeQuerier{rows: &fakeRows{rows: []*fakeRow{questionRow("1"), {values: values}}}}, "")
			if _, err := repo.GetAllQuestions(context.Background()); !appErr.Is(err, appErr.ProblemStoreUnavailable) {
				t.Fatalf("get all err = %v, want ProblemStoreUnavailable", err)
			}
		})
	}
}
