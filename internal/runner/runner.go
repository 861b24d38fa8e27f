// Package runner wires configuration, fetching, generation, dispatch,
// and persistence into whole analysis runs.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/music-brain88/Azure-Credit-Burner/internal/batch"
	"github.com/music-brain88/Azure-Credit-Burner/internal/config"
	"github.com/music-brain88/Azure-Credit-Burner/internal/dispatcher"
	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
	"github.com/music-brain88/Azure-Credit-Burner/internal/endpoint"
	"github.com/music-brain88/Azure-Credit-Burner/internal/fetcher"
	"github.com/music-brain88/Azure-Credit-Burner/internal/generator"
	"github.com/music-brain88/Azure-Credit-Burner/internal/notify"
	"github.com/music-brain88/Azure-Credit-Burner/internal/prompts"
	"github.com/music-brain88/Azure-Credit-Burner/internal/resultstore"
	"github.com/music-brain88/Azure-Credit-Burner/internal/sink"
)

// Coordinator runs analysis end to end for one configuration
type Coordinator struct {
	cfg      *config.Config
	loader   *prompts.Loader
	notifier notify.Notifier

	// Fetcher overrides the git fetcher; used by tests and plan mode
	Fetcher fetcher.Fetcher
}

// New creates a coordinator. notifier may be nil.
func New(cfg *config.Config, notifier notify.Notifier) *Coordinator {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Coordinator{
		cfg:      cfg,
		loader:   prompts.DefaultLoader(),
		notifier: notifier,
	}
}

// Plan generates the task set without touching any endpoint or cloning
// anything. Returned tasks carry no repository content.
func (c *Coordinator) Plan(ctx context.Context) ([]*domain.Task, error) {
	gen := generator.New(&fetcher.StaticFetcher{}, c.loader)
	return gen.Generate(ctx, c.cfg.DomainRepositories(), c.cfg.Analysis.Categories, c.cfg.Analysis.Turns)
}

// Run executes a full analysis run and returns its summary. Individual
// task failures are reported in the summary; the returned error is
// reserved for configuration problems and cancellation.
func (c *Coordinator) Run(ctx context.Context) (*domain.RunSummary, error) {
	return c.run(ctx, c.cfg.DomainRepositories(), c.cfg.Analysis.Categories, c.cfg.Analysis.Turns, true)
}

// RunBatch executes one scheduled batch, narrowing the run to the
// batch's repository and category selection
func (c *Coordinator) RunBatch(ctx context.Context, bcfg batch.BatchConfig) (*domain.RunSummary, error) {
	repos := c.cfg.DomainRepositories()
	if len(bcfg.Repositories) > 0 {
		selected := make(map[string]bool, len(bcfg.Repositories))
		for _, name := range bcfg.Repositories {
			selected[name] = true
		}
		var filtered []domain.Repository
		for _, repo := range repos {
			if selected[repo.FullName()] {
				filtered = append(filtered, repo)
			}
		}
		repos = filtered
	}

	categories := c.cfg.Analysis.Categories
	if len(bcfg.Categories) > 0 {
		categories = bcfg.Categories
	}

	turns := c.cfg.Analysis.Turns
	if bcfg.Turns > 0 {
		turns = bcfg.Turns
	}

	return c.run(ctx, repos, categories, turns, bcfg.NotifyOnComplete)
}

func (c *Coordinator) run(ctx context.Context, repos []domain.Repository, categories []string, turns int, notifyDone bool) (*domain.RunSummary, error) {
	endpoints := c.cfg.DomainEndpoints()
	if len(endpoints) == 0 {
		return nil, domain.NewConfigError("no endpoints with resolvable credentials; set base_url/key or AZURE_OPENAI_* env vars")
	}

	pool, err := endpoint.NewClientPool(endpoints, endpoint.CallConfig{
		Model:               c.cfg.API.Model,
		APIVersion:          c.cfg.API.APIVersion,
		MaxCompletionTokens: c.cfg.API.MaxCompletionTokens,
		Timeout:             c.cfg.API.RequestTimeout,
	})
	if err != nil {
		return nil, domain.NewConfigError("endpoint pool: %v", err)
	}

	f := c.Fetcher
	if f == nil {
		f = fetcher.NewGitFetcher(c.cfg.General.GitHubToken, c.cfg.Fetch.CacheDir, c.cfg.Fetch.MaxFileSize)
	}

	tasks, err := generator.New(f, c.loader).Generate(ctx, repos, categories, turns)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, domain.NewConfigError("nothing to do: no tasks generated")
	}

	runID := uuid.New().String()
	log.Printf("run %s: %d tasks over %d endpoints, concurrency %d",
		runID, len(tasks), pool.Size(), c.cfg.General.Concurrency)

	var resultSink sink.Sink = sink.NewFileSink(c.cfg.General.OutputDir)

	// The SQLite index is best effort: a broken index never blocks the
	// run, the JSON records on disk stay authoritative
	store, storeErr := resultstore.New(c.cfg.General.DatabasePath)
	if storeErr != nil {
		log.Printf("result index unavailable: %v", storeErr)
	} else {
		defer store.Close()
		if err := store.CreateRun(runID, time.Now(), len(tasks)); err != nil {
			log.Printf("record run %s: %v", runID, err)
		}
		resultSink = &sink.MultiSink{
			Primary:   resultSink,
			Secondary: []sink.Sink{&resultstore.IndexSink{Store: store, RunID: runID}},
			OnError: func(_ sink.Sink, err error) {
				log.Printf("index result: %v", err)
			},
		}
	}

	d, err := dispatcher.New(pool, resultSink, dispatcher.Options{
		Concurrency: c.cfg.General.Concurrency,
		Retry: dispatcher.RetryPolicy{
			MaxAttempts:    c.cfg.Retry.MaxAttempts,
			InitialBackoff: c.cfg.Retry.InitialBackoff,
			MaxBackoff:     c.cfg.Retry.MaxBackoff,
			Jitter:         c.cfg.Retry.Jitter,
		},
	})
	if err != nil {
		return nil, err
	}

	summary, runErr := d.Run(ctx, tasks)
	summary.RunID = runID

	if store != nil && storeErr == nil {
		if err := store.FinishRun(summary); err != nil {
			log.Printf("record run %s summary: %v", runID, err)
		}
	}

	if notifyDone {
		if err := c.notifier.Send(notify.Summary(summary)); err != nil {
			log.Printf("notify: %v", err)
		}
	}

	return summary, runErr
}
