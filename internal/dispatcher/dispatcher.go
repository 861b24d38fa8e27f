// Package dispatcher runs generated tasks against the endpoint pool with
// bounded concurrency, ordered conversation chains, and retry.
package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
	"github.com/music-brain88/Azure-Credit-Burner/internal/endpoint"
	"github.com/music-brain88/Azure-Credit-Burner/internal/sink"
)

// SleepFunc waits for d or until the context is canceled. Injectable so
// retry tests run without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures a Dispatcher
type Options struct {
	Concurrency int
	Retry       RetryPolicy
	Sleep       SleepFunc // nil means real sleeping
}

// Dispatcher executes tasks. Within a chain (one repo/category
// conversation) turns run strictly in order, each seeing the transcript
// of its predecessors; across chains tasks run concurrently up to the
// concurrency limit, spread round-robin over the endpoint pool.
type Dispatcher struct {
	pool  *endpoint.Pool
	sink  sink.Sink
	opts  Options
	sleep SleepFunc

	mu      sync.Mutex
	chains  map[string]*chain
	queue   chan *domain.Task
	pending int // tasks not yet in a terminal state
	summary *domain.RunSummary
}

// chain is one repo/category conversation in admission order
type chain struct {
	remaining  []*domain.Task
	transcript []domain.Message // system prompt plus completed turns
}

// New creates a dispatcher over the given pool and sink
func New(pool *endpoint.Pool, s sink.Sink, opts Options) (*Dispatcher, error) {
	if opts.Concurrency < 1 {
		return nil, domain.NewConfigError("dispatcher concurrency must be >= 1, got %d", opts.Concurrency)
	}
	if opts.Retry.MaxAttempts < 1 {
		return nil, domain.NewConfigError("retry max attempts must be >= 1, got %d", opts.Retry.MaxAttempts)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}
	return &Dispatcher{pool: pool, sink: s, opts: opts, sleep: sleep}, nil
}

// Run executes all tasks and blocks until every task is terminal or the
// context is canceled. Task failures are reflected in the summary, not
// in the returned error; the error reports cancellation only.
func (d *Dispatcher) Run(ctx context.Context, tasks []*domain.Task) (*domain.RunSummary, error) {
	d.mu.Lock()
	d.summary = &domain.RunSummary{
		StartedAt: time.Now(),
		Generated: len(tasks),
		Endpoints: make(map[string]domain.EndpointCounts),
	}
	d.chains = make(map[string]*chain)
	d.pending = len(tasks)
	d.queue = make(chan *domain.Task, len(tasks))

	// Group into chains preserving generation order; the head of every
	// chain is immediately runnable.
	var order []string
	for _, task := range tasks {
		key := task.ID.ChainKey()
		c, ok := d.chains[key]
		if !ok {
			c = &chain{}
			d.chains[key] = c
			order = append(order, key)
		}
		c.remaining = append(c.remaining, task)
	}
	for _, key := range order {
		d.admitHeadLocked(d.chains[key])
	}
	if len(tasks) == 0 {
		close(d.queue)
	}
	d.mu.Unlock()

	workers := d.opts.Concurrency
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error { return d.worker(gctx) })
	}
	runErr := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Anything still pending after the workers exit was never finished;
	// that only happens on cancellation.
	if d.pending > 0 {
		d.summary.Skipped += d.pending
		d.pending = 0
	}
	d.summary.FinishedAt = time.Now()

	if runErr != nil && ctx.Err() != nil {
		return d.summary, ctx.Err()
	}
	return d.summary, runErr
}

// worker consumes admitted tasks until the queue closes or the context
// is canceled
func (d *Dispatcher) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task, ok := <-d.queue:
			if !ok {
				return nil
			}
			d.execute(ctx, task)
		}
	}
}

// execute runs one task to a terminal state and advances its chain
func (d *Dispatcher) execute(ctx context.Context, task *domain.Task) {
	if task.FetchErr != nil {
		// The repository never produced content; fail without an attempt
		log.Printf("task %s failed: %v", task.ID, task.FetchErr)
		d.finish(task, domain.StatusFailed, "", nil, 0)
		return
	}

	messages := d.chainMessages(task)
	caller := d.pool.Next()
	name := caller.Name()

	var attempts int
	for attempt := 1; attempt <= d.opts.Retry.MaxAttempts; attempt++ {
		attempts = attempt
		started := time.Now()
		completion, err := caller.Complete(ctx, messages)
		if err == nil {
			d.pool.RecordSuccess(name)
			d.persist(task, name, messages, completion, attempts, time.Since(started))
			return
		}

		d.pool.RecordFailure(name)
		if ctx.Err() != nil {
			// Canceled mid-call: the task never reached a real outcome
			d.finish(task, domain.StatusSkipped, name, nil, attempts)
			return
		}
		if !domain.IsTransient(err) {
			log.Printf("task %s failed on %s: %v", task.ID, name, err)
			d.finish(task, domain.StatusFailed, name, nil, attempts)
			return
		}
		if attempt == d.opts.Retry.MaxAttempts {
			log.Printf("task %s exhausted %d attempts on %s: %v", task.ID, attempts, name, err)
			d.finish(task, domain.StatusFailed, name, nil, attempts)
			return
		}

		delay := d.opts.Retry.WithJitter(d.opts.Retry.Backoff(attempt))
		log.Printf("task %s attempt %d on %s: %v (retrying in %s)", task.ID, attempt, name, err, delay)
		if d.sleep(ctx, delay) != nil {
			d.finish(task, domain.StatusSkipped, name, nil, attempts)
			return
		}
	}
}

// persist writes the result durably; only then does the task count as
// succeeded
func (d *Dispatcher) persist(task *domain.Task, endpointName string, messages []domain.Message, completion *endpoint.Completion, attempts int, latency time.Duration) {
	transcript := make([]domain.Message, len(messages), len(messages)+1)
	copy(transcript, messages)
	transcript = append(transcript, domain.Message{Role: "assistant", Content: completion.Text})

	result := &domain.Result{
		TaskID:     task.ID,
		Endpoint:   endpointName,
		Timestamp:  time.Now(),
		Messages:   transcript,
		Response:   completion.Text,
		TokensUsed: completion.TotalTokens,
		Latency:    latency,
		Attempts:   attempts,
	}

	if err := d.sink.Write(result); err != nil {
		log.Printf("task %s result lost: %v", task.ID, err)
		d.finish(task, domain.StatusFailed, endpointName, nil, attempts)
		return
	}

	d.finish(task, domain.StatusSucceeded, endpointName, transcript, attempts)
}

// chainMessages builds the conversation for a task: the chain transcript
// so far plus this turn's question
func (d *Dispatcher) chainMessages(task *domain.Task) []domain.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.chains[task.ID.ChainKey()]
	if len(c.transcript) == 0 {
		c.transcript = append(c.transcript, domain.Message{Role: "system", Content: task.SystemPrompt})
	}

	messages := make([]domain.Message, len(c.transcript), len(c.transcript)+1)
	copy(messages, c.transcript)
	return append(messages, domain.Message{Role: "user", Content: task.Question})
}

// finish moves a task to a terminal state, updates counters, and either
// admits the chain's next turn or skips the rest of the chain
func (d *Dispatcher) finish(task *domain.Task, status domain.TaskStatus, endpointName string, transcript []domain.Message, attempts int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.summary.Attempts += attempts
	d.settleLocked(task, status, endpointName)

	c := d.chains[task.ID.ChainKey()]
	c.remaining = c.remaining[1:]

	if status == domain.StatusSucceeded {
		c.transcript = transcript
		d.admitHeadLocked(c)
	} else {
		// A broken chain cannot continue; later turns would see a
		// transcript with a hole in it
		for _, rest := range c.remaining {
			d.settleLocked(rest, domain.StatusSkipped, "")
		}
		c.remaining = nil
	}

	if d.pending == 0 {
		close(d.queue)
	}
}

// settleLocked records one task's terminal outcome. Caller holds mu.
func (d *Dispatcher) settleLocked(task *domain.Task, status domain.TaskStatus, endpointName string) {
	switch status {
	case domain.StatusSucceeded:
		d.summary.Succeeded++
	case domain.StatusFailed:
		d.summary.Failed++
	case domain.StatusSkipped:
		d.summary.Skipped++
	}
	if endpointName != "" {
		counts := d.summary.Endpoints[endpointName]
		switch status {
		case domain.StatusSucceeded:
			counts.Succeeded++
		case domain.StatusFailed:
			counts.Failed++
		}
		d.summary.Endpoints[endpointName] = counts
	}
	d.pending--
}

// admitHeadLocked queues the chain's next task if it has one. Caller
// holds mu.
func (d *Dispatcher) admitHeadLocked(c *chain) {
	if len(c.remaining) > 0 {
		d.queue <- c.remaining[0]
	}
}
