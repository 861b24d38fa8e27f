// Package fetcher pulls bounded file sets out of git repositories for
// prompt construction.
package fetcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// FileInfo is one collected repository file
type FileInfo struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Fetcher supplies file contents for a repository
type Fetcher interface {
	Fetch(ctx context.Context, repo domain.Repository) ([]FileInfo, error)
}

// GitFetcher clones repositories shallowly and collects code files
type GitFetcher struct {
	token       string
	cacheDir    string
	maxFileSize int
}

// NewGitFetcher creates a fetcher that clones into cacheDir. Files larger
// than maxFileSize are truncated.
func NewGitFetcher(token, cacheDir string, maxFileSize int) *GitFetcher {
	return &GitFetcher{token: token, cacheDir: cacheDir, maxFileSize: maxFileSize}
}

// Fetch clones the repository (reusing a prior clone when present) and
// returns up to repo.MaxFiles code files, priority files first.
func (g *GitFetcher) Fetch(ctx context.Context, repo domain.Repository) ([]FileInfo, error) {
	dir, err := g.clone(ctx, repo)
	if err != nil {
		return nil, &domain.FetchError{Repo: repo.FullName(), Err: err}
	}

	files, err := g.collect(dir, repo.MaxFiles)
	if err != nil {
		return nil, &domain.FetchError{Repo: repo.FullName(), Err: err}
	}
	if len(files) == 0 {
		return nil, &domain.FetchError{Repo: repo.FullName(), Err: fmt.Errorf("no code files collected")}
	}

	return files, nil
}

// clone performs a shallow clone, or reuses an existing one
func (g *GitFetcher) clone(ctx context.Context, repo domain.Repository) (string, error) {
	dir := filepath.Join(g.cacheDir, repo.Owner+"_"+repo.Name)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}

	if err := os.MkdirAll(g.cacheDir, 0755); err != nil {
		return "", err
	}

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", repo.Owner, repo.Name)
	if g.token != "" {
		cloneURL = fmt.Sprintf("https://%s@github.com/%s/%s.git", g.token, repo.Owner, repo.Name)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", cloneURL, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// A failed clone can leave a partial directory behind
		os.RemoveAll(dir)
		return "", classifyGitError(string(out), err)
	}

	return dir, nil
}

// classifyGitError maps git clone output to the fetch error taxonomy
func classifyGitError(output string, err error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return domain.ErrRepoNotFound
	case strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "403"):
		return domain.ErrRepoAccessDenied
	}
	return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(output))
}

// collect walks the clone and reads up to maxFiles code files
func (g *GitFetcher) collect(dir string, maxFiles int) ([]FileInfo, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if isCodeFile(rel) && !isExcludedDir(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByPriority(paths)

	if len(paths) > maxFiles {
		paths = paths[:maxFiles]
	}

	var files []FileInfo
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Path: rel, Content: Truncate(string(data), g.maxFileSize)})
	}

	return files, nil
}

// Truncate cuts content at limit runes, appending a marker when cut
func Truncate(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "...\n(content truncated)..."
}

// sortByPriority orders priority files first, then lexically
func sortByPriority(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		pi, pj := isPriorityFile(paths[i]), isPriorityFile(paths[j])
		if pi != pj {
			return pi
		}
		return paths[i] < paths[j]
	})
}

// isPriorityFile marks files that anchor the analysis prompt
func isPriorityFile(path string) bool {
	return strings.HasSuffix(path, "README.md") ||
		strings.Contains(path, "main.") ||
		strings.Contains(path, "core.") ||
		(strings.Contains(path, "src/") &&
			(strings.Contains(path, "mod.rs") || strings.Contains(path, "lib.rs") || strings.Contains(path, "index.")))
}

var codeExtensions = []string{
	".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".go", ".rs", ".rb", ".php",
	".md", ".cs", ".jsx", ".tsx", ".css", ".scss", ".less", ".html", ".xml", ".json",
	".yaml", ".yml", ".toml", ".sh", ".bash", ".ps1", ".sql", ".graphql", ".proto", ".kt",
	".swift",
}

func isCodeFile(path string) bool {
	for _, ext := range codeExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

var excludedDirs = []string{
	".git/", "node_modules/", "target/", "build/", "dist/", "bin/", "obj/",
	".idea/", ".vscode/", "vendor/", "deps/", "_build/", "venv/", "__pycache__/",
}

func isExcludedDir(path string) bool {
	for _, dir := range excludedDirs {
		if strings.HasPrefix(path, dir) || strings.Contains(path, "/"+dir) {
			return true
		}
	}
	return false
}

// StaticFetcher serves canned file sets. Used by tests and by plan mode,
// which must not touch the network.
type StaticFetcher struct {
	Files map[string][]FileInfo // keyed by "owner/name"
	Errs  map[string]error
}

// Fetch returns the canned files or error for the repository
func (s *StaticFetcher) Fetch(_ context.Context, repo domain.Repository) ([]FileInfo, error) {
	if err, ok := s.Errs[repo.FullName()]; ok {
		return nil, &domain.FetchError{Repo: repo.FullName(), Err: err}
	}
	files := s.Files[repo.FullName()]
	if len(files) > repo.MaxFiles {
		files = files[:repo.MaxFiles]
	}
	return files, nil
}
