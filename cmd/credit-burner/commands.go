package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/music-brain88/Azure-Credit-Burner/internal/batch"
	"github.com/music-brain88/Azure-Credit-Burner/internal/config"
	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
	"github.com/music-brain88/Azure-Credit-Burner/internal/notify"
	"github.com/music-brain88/Azure-Credit-Burner/internal/resultstore"
	"github.com/music-brain88/Azure-Credit-Burner/internal/runner"
)

var (
	runOutput      string
	runConcurrency int
	runMaxFiles    int
	runGitHubToken string
	resultsRun     string
	resultsRepo    string
	resultsCat     string
	runsLimit      int
	schedulePath   string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full analysis once",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runOutput, "output", "", "output directory for JSON records")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max tasks in flight")
	runCmd.Flags().IntVar(&runMaxFiles, "max-files", 0, "max files collected per repository")
	runCmd.Flags().StringVar(&runGitHubToken, "github-token", "", "token for cloning private repositories")
	rootCmd.AddCommand(runCmd)

	// plan command
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the tasks a run would execute, without calling anything",
		RunE:  runPlan,
	}
	rootCmd.AddCommand(planCmd)

	// runs command
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List past runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to show")
	rootCmd.AddCommand(runsCmd)

	// results command
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "List indexed analysis results",
		RunE:  runResults,
	}
	resultsCmd.Flags().StringVar(&resultsRun, "run", "", "filter by run ID")
	resultsCmd.Flags().StringVar(&resultsRepo, "repo", "", "filter by repository (owner/name)")
	resultsCmd.Flags().StringVar(&resultsCat, "category", "", "filter by category")
	rootCmd.AddCommand(resultsCmd)

	// schedule command
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run batches on their cron schedules until interrupted",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&schedulePath, "schedule-config", "", "batch schedule file (TOML)")
	rootCmd.AddCommand(scheduleCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if runOutput != "" {
		cfg.General.OutputDir = config.ExpandPath(runOutput)
	}
	if runConcurrency > 0 {
		cfg.General.Concurrency = runConcurrency
	}
	if runMaxFiles > 0 {
		cfg.Fetch.MaxFiles = runMaxFiles
	}
	if runGitHubToken != "" {
		cfg.General.GitHubToken = runGitHubToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCoordinator(cfg *config.Config) *runner.Coordinator {
	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifications.SlackWebhook != "" {
		notifier = notify.NewSlackNotifier(cfg.Notifications.SlackWebhook)
	}
	return runner.New(cfg, notifier)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	summary, err := newCoordinator(cfg).Run(ctx)
	if err != nil && summary == nil {
		return err
	}

	printSummary(summary)
	if err != nil {
		// Canceled mid-run: the partial summary above is still valid
		fmt.Fprintf(os.Stderr, "run interrupted: %v\n", err)
	}
	return nil
}

func printSummary(s *domain.RunSummary) {
	fmt.Printf("Run %s finished in %s\n", s.RunID, s.Duration().Round(time.Second))
	fmt.Printf("  %d generated | %d succeeded | %d failed | %d skipped | %d attempts\n",
		s.Generated, s.Succeeded, s.Failed, s.Skipped, s.Attempts)
	for name, counts := range s.Endpoints {
		fmt.Printf("  %-20s %d ok / %d failed\n", name, counts.Succeeded, counts.Failed)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tasks, err := newCoordinator(cfg).Plan(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tQUESTION")
	for _, task := range tasks {
		question := task.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\n", task.ID, question)
	}
	w.Flush()

	fmt.Printf("\n%d tasks over %d endpoints\n", len(tasks), len(cfg.DomainEndpoints()))
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := resultstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tGENERATED\tOK\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Generated, r.Succeeded, r.Failed, r.Skipped)
	}
	return w.Flush()
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := resultstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.ListResults(resultstore.ListOptions{
		RunID:    resultsRun,
		Repo:     resultsRepo,
		Category: resultsCat,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results indexed")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPO\tCATEGORY\tTURN\tENDPOINT\tTOKENS\tRECORD")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
			r.Repo, r.Category, r.Turn, r.Endpoint, r.Tokens, r.FilePath)
	}
	return w.Flush()
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := schedulePath
	if path == "" {
		path = config.ExpandPath("~/.config/credit-burner/schedule.toml")
	}
	scheduleCfg, err := batch.LoadScheduleConfig(path)
	if err != nil {
		return err
	}
	if len(scheduleCfg.Batches) == 0 {
		return fmt.Errorf("no batches configured in %s", path)
	}

	sched, err := batch.NewScheduler(scheduleCfg.Batches)
	if err != nil {
		return err
	}

	coordinator := newCoordinator(cfg)

	ctx, stop := signalContext()
	defer stop()

	for _, name := range sched.ListBatches() {
		fmt.Printf("batch %s next run: %s\n", name, sched.NextRun(name).Format(time.RFC3339))
	}

	sched.Start(ctx, func(runCtx context.Context, bcfg batch.BatchConfig) error {
		summary, err := coordinator.RunBatch(runCtx, bcfg)
		if summary != nil {
			printSummary(summary)
		}
		return err
	})
	return nil
}
