// Package generator expands the configured repositories and categories
// into the full task set for a run.
package generator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
	"github.com/music-brain88/Azure-Credit-Burner/internal/fetcher"
	"github.com/music-brain88/Azure-Credit-Burner/internal/prompts"
)

const (
	readmeLimit     = 1000
	sampleLimit     = 2000
	maxSampleFiles  = 5
	defaultMaxFiles = 50
)

// Generator turns repositories into per-turn analysis tasks
type Generator struct {
	fetcher fetcher.Fetcher
	loader  *prompts.Loader
}

// New creates a generator over the given content fetcher and prompt loader
func New(f fetcher.Fetcher, l *prompts.Loader) *Generator {
	return &Generator{fetcher: f, loader: l}
}

// Generate produces tasks for every repository, category, and turn, in
// deterministic order: repositories as configured, categories as
// configured, turns ascending. Each repository is fetched once; when a
// fetch fails, its tasks are still emitted carrying the fetch error so
// the dispatcher can account for them.
func (g *Generator) Generate(ctx context.Context, repos []domain.Repository, categories []string, turns int) ([]*domain.Task, error) {
	if len(repos) == 0 {
		return nil, domain.NewConfigError("no repositories configured")
	}
	if len(categories) == 0 {
		return nil, domain.NewConfigError("no analysis categories configured")
	}
	if turns < 1 {
		return nil, domain.NewConfigError("turns must be >= 1, got %d", turns)
	}

	seen := make(map[domain.TaskID]bool)
	var tasks []*domain.Task

	for _, repo := range repos {
		if repo.MaxFiles == 0 {
			repo.MaxFiles = defaultMaxFiles
		}
		if err := repo.Validate(); err != nil {
			return nil, err
		}

		files, fetchErr := g.fetcher.Fetch(ctx, repo)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("fetch %s failed: %v", repo.FullName(), fetchErr)
		}

		var sysCtx codeContext
		if fetchErr == nil {
			sysCtx = buildCodeContext(files)
		}

		for _, category := range categories {
			var systemPrompt string
			if fetchErr == nil {
				var err error
				systemPrompt, err = g.loader.BuildSystemPrompt(prompts.RepoAnalysisData{
					Owner:       repo.Owner,
					Repo:        repo.Name,
					Category:    category,
					FileCount:   sysCtx.fileCount,
					FileSummary: sysCtx.summary,
					Readme:      sysCtx.readme,
					FileSamples: sysCtx.samples,
				})
				if err != nil {
					return nil, fmt.Errorf("build system prompt for %s: %w", repo.FullName(), err)
				}
			}

			for turn := 1; turn <= turns; turn++ {
				id := domain.TaskID{Repo: repo.FullName(), Category: category, Turn: turn}
				if seen[id] {
					return nil, domain.NewConfigError("duplicate task %s: repository %s listed twice?", id, repo.FullName())
				}
				seen[id] = true

				task := &domain.Task{
					ID:           id,
					Repo:         repo,
					SystemPrompt: systemPrompt,
					FetchErr:     fetchErr,
				}
				if turn == 1 {
					task.Question = prompts.OpeningQuestion(repo.FullName(), category)
				} else {
					task.Question = g.loader.Question(category, turn-2)
				}
				tasks = append(tasks, task)
			}
		}
	}

	return tasks, nil
}

type codeContext struct {
	fileCount int
	summary   string
	readme    string
	samples   string
}

// buildCodeContext condenses fetched files into the pieces the system
// prompt template needs: a file listing, the README head, and the first
// few file bodies.
func buildCodeContext(files []fetcher.FileInfo) codeContext {
	var cc codeContext
	cc.fileCount = len(files)

	var summary strings.Builder
	for _, f := range files {
		fmt.Fprintf(&summary, "- %s\n", f.Path)
		if cc.readme == "" && strings.HasSuffix(f.Path, "README.md") {
			cc.readme = fetcher.Truncate(f.Content, readmeLimit)
		}
	}
	cc.summary = strings.TrimRight(summary.String(), "\n")

	var samples strings.Builder
	for i, f := range files {
		if i >= maxSampleFiles {
			break
		}
		fmt.Fprintf(&samples, "--- %s ---\n%s\n\n", f.Path, fetcher.Truncate(f.Content, sampleLimit))
	}
	cc.samples = strings.TrimRight(samples.String(), "\n")

	return cc
}
