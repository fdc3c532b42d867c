package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codejudge/internal/oj/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	questionListFile = "questions.list"
	descFile         = "desc.txt"
	headerFile       = "header.cpp"
	preambleFile     = "preamble.cpp"
	harnessFile      = "tail.cpp"
)

// QuestionRepository reads the question catalogue.
type QuestionRepository interface {
	GetOneQuestion(ctx context.Context, number string) (*model.Problem, error)
	GetAllQuestions(ctx context.Context) ([]*model.Problem, error)
}

// FileQuestionRepository serves a catalogue loaded once from a directory.
type FileQuestionRepository struct {
	questions map[string]*model.Problem
}

// NewFileQuestionRepository loads dir/questions.list and every listed
// question directory. An unreadable list is an error; malformed entries
// are skipped with a warning.
func NewFileQuestionRepository(dir string) (*FileQuestionRepository, error) {
	file, err := os.Open(filepath.Join(dir, questionListFile))
	if err != nil {
		return nil, fmt.Errorf("open question list: %w", err)
	}
	defer file.Close()

	ctx := context.Background()
	questions := make(map[string]*model.Problem)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := loadQuestion(dir, strings.Fields(line))
		if err != nil {
			logger.Warn(ctx, "skip malformed question entry", zap.String("entry", line), zap.Error(err))
			continue
		}
		questions[p.Number] = p
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read question list: %w", err)
	}
	logger.Info(ctx, "question catalogue loaded", zap.Int("questions", len(questions)))
	return &FileQuestionRepository{questions: questions}, nil
}

func loadQuestion(dir string, tokens []string) (*model.Problem, error) {
	if len(tokens) < 5 {
		return nil, fmt.Errorf("expected 5 fields, got %d", len(tokens))
	}
	cpuLimit, err := strconv.Atoi(tokens[3])
	if err != nil || cpuLimit <= 0 {
		return nil, fmt.Errorf("invalid cpu limit %q", tokens[3])
	}
	memLimit, err := strconv.Atoi(tokens[4])
	if err != nil || memLimit <= 0 {
		return nil, fmt.Errorf("invalid memory limit %q", tokens[4])
	}
	p := &model.Problem{
		Number:   tokens[0],
		Title:    tokens[1],
		Star:     tokens[2],
		CPULimit: cpuLimit,
		MemLimit: memLimit,
	}
	qdir := filepath.Join(dir, p.Number)
	if p.Desc, err = readText(filepath.Join(qdir, descFile), false); err != nil {
		return nil, err
	}
	if p.Header, err = readText(filepath.Join(qdir, headerFile), false); err != nil {
		return nil, err
	}
	if p.Preamble, err = readText(filepath.Join(qdir, preambleFile), true); err != nil {
		return nil, err
	}
	if p.Harness, err = readText(filepath.Join(qdir, harnessFile), false); err != nil {
		return nil, err
	}
	return p, nil
}

func readText(path string, optional bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

func (r *FileQuestionRepository) GetOneQuestion(ctx context.Context, number string) (*model.Problem, error) {
	p, ok := r.questions[number]
	if !ok {
		return nil, appErr.New(appErr.ProblemNotFound).WithDetail("number", number)
	}
	cp := *p
	return &cp, nil
}

func (r *FileQuestionRepository) GetAllQuestions(ctx context.Context) ([]*model.Problem, error) {
	out := make([]*model.Problem, 0, len(r.questions))
	for _, p := range r.questions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}
