package metrics

import (
	"sort"
	"sync"
)

// Counters tallies counter metrics by name while registered.
type Counters struct {
	id     MetricHandlerID
	mu     sync.Mutex
	counts map[string]int64
}

func NewCounters() *Counters {
	c := &Counters{counts: make(map[string]int64)}
	c.id = RegisterMetricHandler(c.observe)
	return c
}

func (c *Counters) observe(m Metric) {
	if m.Type != "counter" {
		return
	}
	v, ok := toFloat64(m.Value)
	if !ok {
		return
	}
	c.mu.Lock()
	c.counts[m.Name] += int64(v)
	c.mu.Unlock()
}

// Get returns the running total for name.
func (c *Counters) Get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Snapshot copies the totals.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Names lists the counters seen so far in lexical order.
func (c *Counters) Names() []string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Close stops counting.
func (c *Counters) Close() { UnregisterMetricHandler(c.id) }
