package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	appErr "codejudge/pkg/errors"
)

func writeQuestion(t *testing.T, dir, number string, withPreamble bool) {
	t.Helper()
	qdir := filepath.Join(dir, number)
	if err := os.MkdirAll(qdir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		descFile:    "desc " + number,
		headerFile:  "class Solution {};\n",
		harnessFile: "int main() { return 0; }\n",
	}
	if withPreamble {
		files[preambleFile] = "#include <vector>\n"
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(qdir, name), []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newCatalogue(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeQuestion(t, dir, "1", true)
	writeQuestion(t, dir, "2", false)
	list := "1 TwoSum easy 1 30000\n" +
		"\n" +
		"2   Palindrome  medium 2 50000\n" +
		"3 Broken hard\n" +
		"4 Missing hard 1 100\n" +
		"5 BadLimit easy x 100\n"
	if err := os.WriteFile(filepath.Join(dir, questionListFile), []byte(list), 0644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	return dir
}

func TestFileQuestionRepositoryLoad(t *testing.T) {
	repo, err := NewFileQuestionRepository(newCatalogue(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	all, err := repo.GetAllQuestions(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("loaded %d questions, want 2", len(all))
	}

	p, err := repo.GetOneQuestion(context.Background(), "1")
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if p.Title != "TwoSum" || p.Star != "easy" || p.CPULimit != 1 || p.MemLimit != 30000 {
		t.Fatalf("unexpected problem %+v", p)
	}
	if p.Preamble != "#include <vector>\n" || p.Harness != "int main() { return 0; }\n" || p.Desc != "desc 1" {
		t.Fatalf("question files not loaded: %+v", p)
	}

	p2, err := repo.GetOneQuestion(context.Background(), "2")
	if err != nil || p2.Preamble != "" || p2.Title != "Palindrome" || p2.CPULimit != 2 {
		t.Fatalf("unexpected problem 2: %+v, %v", p2, err)
	}
}

func TestFileQuestionRepositoryNotFound(t *testing.T) {
	repo, err := NewFileQuestionRepository(newCatalogue(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := repo.GetOneQuestion(context.Background(), "3"); !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("err = %v, want ProblemNotFound", err)
	}
}

func TestFileQuestionRepositoryReturnsCopies(t *testing.T) {
	repo, err := NewFileQuestionRepository(newCatalogue(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, _ := repo.GetOneQuestion(context.Background(), "1")
	p.Title = "mutated"
	again, _ := repo.GetOneQuestion(context.Background(), "1")
	if again.Title != "TwoSum" {
		t.Fatal("catalogue mutated through returned pointer")
	}
}

func TestFileQuestionRepositoryMissingList(t *testing.T) {
	if _, err := NewFileQuestionRepository(t.TempDir()); err == nil {
		t.Fatal("expected error for missing question list")
	}
}
