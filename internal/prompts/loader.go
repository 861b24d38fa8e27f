package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Categories lists the analysis categories shipped with the binary,
// in rotation order.
var Categories = []string{
	"architecture",
	"performance",
	"security",
	"testing",
	"domain",
	"distributed",
	"maintainability",
}

// Question is one deep-dive question within a category
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CategoryQuestions holds the question bank for one analysis category
type CategoryQuestions struct {
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// TemplateMeta holds frontmatter metadata for prompt templates.
type TemplateMeta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader manages prompt templates and question banks with override support.
type Loader struct {
	overrideDirs []string // Directories to check for overrides (in priority order)
	cache        map[string]*template.Template
	metaCache    map[string]*TemplateMeta
	catCache     map[string]*CategoryQuestions
	mu           sync.RWMutex
}

// NewLoader creates a loader with the given override directories.
// Directories are checked in order; first match wins.
func NewLoader(overrideDirs ...string) *Loader {
	return &Loader{
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		metaCache:    make(map[string]*TemplateMeta),
		catCache:     make(map[string]*CategoryQuestions),
	}
}

// DefaultLoader creates a loader with standard override paths:
// 1. Working-directory local: .credit-burner/prompts/
// 2. User config: ~/.config/credit-burner/prompts/
func DefaultLoader() *Loader {
	home, _ := os.UserHomeDir()
	return NewLoader(
		filepath.Join(".credit-burner", "prompts"),
		filepath.Join(home, ".config", "credit-burner", "prompts"),
	)
}

// loadContent loads raw content from override dirs or embedded FS.
func (l *Loader) loadContent(path string) ([]byte, error) {
	for _, dir := range l.overrideDirs {
		fullPath := filepath.Join(dir, path)
		if data, err := os.ReadFile(fullPath); err == nil {
			return data, nil
		}
	}

	return fs.ReadFile(embeddedFS, path)
}

// parseFrontmatter splits content into frontmatter and body.
func parseFrontmatter(content []byte) (*TemplateMeta, string, error) {
	str := string(content)

	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil // No frontmatter
	}

	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil // Malformed, treat as no frontmatter
	}

	frontmatter := str[4 : 4+end]
	body := str[4+end+5:] // Skip closing "---\n"

	var meta TemplateMeta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, body, nil
}

// LoadTemplate loads and parses a template by path (e.g., "templates/repo_analysis.md").
func (l *Loader) LoadTemplate(path string) (*template.Template, *TemplateMeta, error) {
	l.mu.RLock()
	if tmpl, ok := l.cache[path]; ok {
		meta := l.metaCache[path]
		l.mu.RUnlock()
		return tmpl, meta, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tmpl, err := template.New(path).Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("compile template %s: %w", path, err)
	}

	l.mu.Lock()
	l.cache[path] = tmpl
	l.metaCache[path] = meta
	l.mu.Unlock()

	return tmpl, meta, nil
}

// Execute loads and executes a template with the given data.
func (l *Loader) Execute(path string, data interface{}) (string, error) {
	tmpl, _, err := l.LoadTemplate(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", path, err)
	}

	return buf.String(), nil
}

// LoadCategory loads the question bank for a category.
func (l *Loader) LoadCategory(name string) (*CategoryQuestions, error) {
	l.mu.RLock()
	if cat, ok := l.catCache[name]; ok {
		l.mu.RUnlock()
		return cat, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(filepath.Join("categories", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load category %s: %w", name, err)
	}

	var cat CategoryQuestions
	if err := json.Unmarshal(content, &cat); err != nil {
		return nil, fmt.Errorf("parse category %s: %w", name, err)
	}
	if len(cat.Questions) == 0 {
		return nil, fmt.Errorf("category %s has no questions", name)
	}

	l.mu.Lock()
	l.catCache[name] = &cat
	l.mu.Unlock()

	return &cat, nil
}

// fallbackQuestion is used when a category bank is missing or broken
const fallbackQuestion = "Continue the analysis of this repository in greater depth. " +
	"What stands out most about the quality and design of the code?"

// Question returns the deep-dive question for a category at the given
// rotation index. Indexes beyond the bank wrap around. Unknown categories
// fall back to a generic question rather than failing the task.
func (l *Loader) Question(category string, index int) string {
	cat, err := l.LoadCategory(category)
	if err != nil {
		return fallbackQuestion
	}
	return cat.Questions[index%len(cat.Questions)].Text
}

// OpeningQuestion returns the first user turn of a chain
func OpeningQuestion(repo, category string) string {
	return fmt.Sprintf("Let's analyze the %s repository from the %s perspective. "+
		"Start by identifying the project's purpose and its main components.", repo, category)
}

// RepoAnalysisData holds template variables for the system prompt.
type RepoAnalysisData struct {
	Owner       string
	Repo        string
	Category    string
	FileCount   int
	FileSummary string
	Readme      string
	FileSamples string
}

// BuildSystemPrompt loads and executes the repository analysis template.
func (l *Loader) BuildSystemPrompt(data RepoAnalysisData) (string, error) {
	return l.Execute("templates/repo_analysis.md", data)
}

// ClearCache clears all caches (useful for development/testing).
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*template.Template)
	l.metaCache = make(map[string]*TemplateMeta)
	l.catCache = make(map[string]*CategoryQuestions)
	l.mu.Unlock()
}
