package endpoint

import (
	"sync"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// Stats are the per-endpoint call counters for the run summary
type Stats struct {
	Calls     int
	Successes int
	Failures  int
}

// Pool hands out endpoints round-robin so load spreads evenly across
// regions regardless of task count.
type Pool struct {
	mu      sync.Mutex
	callers []Caller
	next    int
	stats   map[string]*Stats
}

// NewPool builds a pool over the given callers in order
func NewPool(callers []Caller) (*Pool, error) {
	if len(callers) == 0 {
		return nil, errEmptyPool
	}
	stats := make(map[string]*Stats, len(callers))
	for _, c := range callers {
		stats[c.Name()] = &Stats{}
	}
	return &Pool{callers: callers, stats: stats}, nil
}

// NewClientPool builds a pool of HTTP clients, one per endpoint
func NewClientPool(endpoints []domain.Endpoint, cfg CallConfig) (*Pool, error) {
	callers := make([]Caller, 0, len(endpoints))
	for _, ep := range endpoints {
		callers = append(callers, NewClient(ep, cfg))
	}
	return NewPool(callers)
}

// Next returns the next endpoint in rotation
func (p *Pool) Next() Caller {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.callers[p.next%len(p.callers)]
	p.next++
	return c
}

// Size returns the number of endpoints in rotation
func (p *Pool) Size() int {
	return len(p.callers)
}

// RecordSuccess counts a completed call against the named endpoint
func (p *Pool) RecordSuccess(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stats[name]; ok {
		s.Calls++
		s.Successes++
	}
}

// RecordFailure counts a failed attempt against the named endpoint
func (p *Pool) RecordFailure(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stats[name]; ok {
		s.Calls++
		s.Failures++
	}
}

// Stats returns a copy of the per-endpoint counters
func (p *Pool) Stats() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Stats, len(p.stats))
	for name, s := range p.stats {
		out[name] = *s
	}
	return out
}
