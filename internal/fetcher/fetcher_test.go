package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

func TestIsCodeFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/main.go", true},
		{"README.md", true},
		{"config.toml", true},
		{"image.png", false},
		{"binary", false},
		{"archive.tar.gz", false},
	}

	for _, tt := range tests {
		if got := isCodeFile(tt.path); got != tt.want {
			t.Errorf("isCodeFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsExcludedDir(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"node_modules/lib/index.js", true},
		{"src/node_modules/x.js", true},
		{".git/config", true},
		{"vendor/pkg/a.go", true},
		{"src/main.go", false},
		{"internal/build/doc.go", true}, // build/ is excluded wherever it appears
	}

	for _, tt := range tests {
		if got := isExcludedDir(tt.path); got != tt.want {
			t.Errorf("isExcludedDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSortByPriority(t *testing.T) {
	paths := []string{"zz.go", "src/lib.rs", "a.go", "README.md", "cmd/main.go"}
	sortByPriority(paths)

	// Priority files (README, main.*, src lib) come before plain files
	prioLen := 3
	for i := 0; i < prioLen; i++ {
		if !isPriorityFile(paths[i]) {
			t.Errorf("paths[%d] = %q is not a priority file; order %v", i, paths[i], paths)
		}
	}
	if paths[3] != "a.go" || paths[4] != "zz.go" {
		t.Errorf("non-priority tail not lexical: %v", paths)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}

	long := strings.Repeat("x", 50)
	got := Truncate(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("x", 10)) || !strings.Contains(got, "truncated") {
		t.Errorf("Truncate() = %q", got)
	}

	// Multi-byte content must not be cut mid-rune
	got = Truncate(strings.Repeat("日", 20), 5)
	if !strings.HasPrefix(got, strings.Repeat("日", 5)) {
		t.Errorf("Truncate(multibyte) = %q", got)
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "hello")
	writeFile(t, dir, "src/main.go", "package main")
	writeFile(t, dir, "src/util.go", "package main // util")
	writeFile(t, dir, "node_modules/x.js", "junk")
	writeFile(t, dir, "logo.png", "binary")

	g := NewGitFetcher("", dir, 1000)
	files, err := g.collect(dir, 10)
	if err != nil {
		t.Fatalf("collect() error: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("collect() = %d files, want 3: %+v", len(files), files)
	}
	// Priority files first
	if files[0].Path != "README.md" {
		t.Errorf("first file = %q, want README.md", files[0].Path)
	}

	// Cap respected
	capped, err := g.collect(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 2 {
		t.Errorf("collect(max 2) = %d files", len(capped))
	}
}

func TestCollect_TruncatesLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.go", strings.Repeat("a", 500))

	g := NewGitFetcher("", dir, 100)
	files, err := g.collect(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("collect() = %d files", len(files))
	}
	if !strings.Contains(files[0].Content, "truncated") {
		t.Errorf("large file not truncated: %d bytes", len(files[0].Content))
	}
}

func TestClassifyGitError(t *testing.T) {
	base := errors.New("exit status 128")

	if err := classifyGitError("fatal: repository 'x' not found", base); !errors.Is(err, domain.ErrRepoNotFound) {
		t.Errorf("not-found output classified as %v", err)
	}
	if err := classifyGitError("fatal: Authentication failed for 'x'", base); !errors.Is(err, domain.ErrRepoAccessDenied) {
		t.Errorf("auth output classified as %v", err)
	}
	if err := classifyGitError("fatal: unable to access: timeout", base); errors.Is(err, domain.ErrRepoNotFound) || errors.Is(err, domain.ErrRepoAccessDenied) {
		t.Errorf("generic output over-classified as %v", err)
	}
}

func TestStaticFetcher(t *testing.T) {
	sf := &StaticFetcher{
		Files: map[string][]FileInfo{
			"a/b": {{Path: "1.go"}, {Path: "2.go"}, {Path: "3.go"}},
		},
		Errs: map[string]error{
			"c/d": domain.ErrRepoNotFound,
		},
	}

	files, err := sf.Fetch(context.Background(), domain.Repository{Owner: "a", Name: "b", MaxFiles: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("Fetch() = %d files, want max_files cap of 2", len(files))
	}

	_, err = sf.Fetch(context.Background(), domain.Repository{Owner: "c", Name: "d", MaxFiles: 5})
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Errorf("Fetch(c/d) error = %v, want FetchError", err)
	}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
