package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCategory_AllEmbedded(t *testing.T) {
	l := NewLoader()

	for _, name := range Categories {
		t.Run(name, func(t *testing.T) {
			cat, err := l.LoadCategory(name)
			if err != nil {
				t.Fatalf("LoadCategory(%s) error: %v", name, err)
			}
			if cat.Category != name {
				t.Errorf("Category = %q, want %q", cat.Category, name)
			}
			if len(cat.Questions) == 0 {
				t.Error("category has no questions")
			}
		})
	}
}

func TestQuestion_Rotation(t *testing.T) {
	l := NewLoader()

	cat, err := l.LoadCategory("security")
	if err != nil {
		t.Fatal(err)
	}
	n := len(cat.Questions)

	first := l.Question("security", 0)
	if first != cat.Questions[0].Text {
		t.Errorf("Question(security, 0) = %q, want first bank entry", first)
	}

	// Index past the end wraps around
	if got := l.Question("security", n); got != first {
		t.Errorf("Question(security, %d) = %q, want wrap to first", n, got)
	}
}

func TestQuestion_UnknownCategoryFallsBack(t *testing.T) {
	l := NewLoader()
	got := l.Question("astrology", 0)
	if got != fallbackQuestion {
		t.Errorf("Question(astrology, 0) = %q, want fallback", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	l := NewLoader()

	prompt, err := l.BuildSystemPrompt(RepoAnalysisData{
		Owner:       "rust-lang",
		Repo:        "rust",
		Category:    "security",
		FileCount:   3,
		FileSummary: "- src/main.rs",
		Readme:      "The Rust compiler.",
		FileSamples: "--- src/main.rs ---\nfn main() {}",
	})
	if err != nil {
		t.Fatalf("BuildSystemPrompt() error: %v", err)
	}

	for _, want := range []string{"rust-lang/rust", "security", "src/main.rs", "The Rust compiler."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLoader_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "categories"), 0755); err != nil {
		t.Fatal(err)
	}
	override := `{"category":"security","description":"","questions":[{"id":"q1","text":"custom question"}]}`
	if err := os.WriteFile(filepath.Join(dir, "categories", "security.json"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir)
	if got := l.Question("security", 0); got != "custom question" {
		t.Errorf("Question() = %q, want override", got)
	}

	// Categories without overrides still come from the embedded bank
	if got := l.Question("testing", 0); got == fallbackQuestion {
		t.Error("embedded testing bank not reachable with override dir set")
	}
}

func TestParseFrontmatter(t *testing.T) {
	meta, body, err := parseFrontmatter([]byte("---\nid: x\nname: X\n---\nbody here"))
	if err != nil {
		t.Fatal(err)
	}
	if meta == nil || meta.ID != "x" {
		t.Errorf("meta = %+v, want id x", meta)
	}
	if body != "body here" {
		t.Errorf("body = %q", body)
	}

	meta, body, err = parseFrontmatter([]byte("plain content"))
	if err != nil {
		t.Fatal(err)
	}
	if meta != nil {
		t.Errorf("meta = %+v, want nil for no frontmatter", meta)
	}
	if body != "plain content" {
		t.Errorf("body = %q", body)
	}
}
