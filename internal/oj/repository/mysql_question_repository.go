package repository

import (
	"context"
	"fmt"

	"codejudge/internal/common/db"
	"codejudge/internal/oj/model"
	appErr "codejudge/pkg/errors"
)

const questionColumns = "number, title, star, description, header, preamble, tail, cpu_limit, mem_limit"

// MySQLQuestionRepository reads questions from the questions table.
type MySQLQuestionRepository struct {
	db    db.Querier
	table string
}

// NewMySQLQuestionRepository creates a repository over table.
func NewMySQLQuestionRepository(database db.Querier, table string) *MySQLQuestionRepository {
	if table == "" {
		table = "questions"
	}
	return &MySQLQuestionRepository{db: database, table: table}
}

func (r *MySQLQuestionRepository) GetOneQuestion(ctx context.Context, number string) (*model.Problem, error) {
	query := "SELECT " + questionColumns + " FROM " + r.table + " WHERE number = ?"
	p, err := scanProblem(r.db.QueryRow(ctx, query, number))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.ProblemNotFound).WithDetail("number", number)
		}
		return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "query question %s failed", number)
	}
	return p, nil
}

func (r *MySQLQuestionRepository) GetAllQuestions(ctx context.Context) ([]*model.Problem, error) {
	query := "SELECT " + questionColumns + " FROM " + r.table
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "query questions failed")
	}
	defer rows.Close()

	var out []*model.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "scan question failed")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "iterate questions failed")
	}
	return out, nil
}

func scanProblem(row db.Row) (*model.Problem, error) {
	var p model.Problem
	if err := row.Scan(&p.Number, &p.Title, &p.Star, &p.Desc, &p.Header, &p.Preamble, &p.Harness, &p.CPULimit, &p.MemLimit); err != nil {
		return nil, err
	}
	if p.CPULimit <= 0 || p.MemLimit <= 0 {
		return nil, fmt.Errorf("question %s has invalid limits cpu=%d mem=%d", p.Number, p.CPULimit, p.MemLimit)
	}
	return &p, nil
}
