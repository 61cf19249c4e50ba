// Package rpc chooses among a network's configured endpoints.
package rpc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no endpoint qualifies.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm names an endpoint selection strategy.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"
)

const (
	defaultStaleBlocks = 3
	defaultCacheTTL    = 5 * time.Minute
)

// ParseAlgorithm validates a configured algorithm name. Empty means fastest.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	}
	return "", fmt.Errorf("unknown rpc algorithm %q (want fastest, round-robin or failover)", s)
}

// Endpoint is one RPC URL with its last measurement.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Healthy     bool // meaningful only when Checked
	Checked     bool
}

// Picker selects endpoints. It is safe for concurrent use; round-robin
// position and the fastest winner persist across calls.
type Picker struct {
	algo        Algorithm
	staleBlocks uint64
	cacheTTL    time.Duration
	now         func() time.Time

	mu          sync.Mutex
	rrIndex     int
	cachedURL   string
	cacheExpiry time.Time
}

// PickerOption configures a Picker.
type PickerOption func(*Picker)

// WithStaleBlocks sets how far behind the best block an endpoint may be.
func WithStaleBlocks(n uint64) PickerOption {
	return func(p *Picker) { p.staleBlocks = n }
}

// WithCacheTTL sets how long the fastest winner is reused. Zero disables
// the cache.
func WithCacheTTL(d time.Duration) PickerOption {
	return func(p *Picker) { p.cacheTTL = d }
}

// NewPicker returns a picker for algo.
func NewPicker(algo Algorithm, opts ...PickerOption) *Picker {
	p := &Picker{algo: algo, staleBlocks: defaultStaleBlocks, cacheTTL: defaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Algorithm returns the picker's strategy.
func (p *Picker) Algorithm() Algorithm { return p.algo }

// Pick selects one of endpoints.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyRPC
	}
	switch p.algo {
	case AlgorithmRoundRobin:
		return p.pickRoundRobin(endpoints)
	case AlgorithmFailover:
		return pickFailover(endpoints)
	default:
		return p.pickFastest(endpoints)
	}
}

// pickFastest scores healthy, non-stale endpoints and remembers the winner
// for cacheTTL.
func (p *Picker) pickFastest(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedURL != "" && p.now().Before(p.cacheExpiry) {
		for i := range endpoints {
			e := &endpoints[i]
			if e.URL == p.cachedURL && (!e.Checked || e.Healthy) {
				return e, nil
			}
		}
	}

	var best uint64
	for _, e := range endpoints {
		if (!e.Checked || e.Healthy) && e.BlockNumber > best {
			best = e.BlockNumber
		}
	}

	var (
		winner    *Endpoint
		bestScore float64
	)
	for _, e := range eligible(endpoints) {
		behind := best - e.BlockNumber
		if best > 0 && behind > p.staleBlocks {
			continue
		}
		s := score(e, behind)
		if winner == nil || s > bestScore {
			winner, bestScore = e, s
		}
	}
	if winner == nil {
		return nil, ErrNoHealthyRPC
	}

	if p.cacheTTL > 0 {
		p.cachedURL = winner.URL
		p.cacheExpiry = p.now().Add(p.cacheTTL)
	}
	return winner, nil
}

func (p *Picker) pickRoundRobin(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := eligible(endpoints)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyRPC
	}
	idx := p.rrIndex % len(healthy)
	p.rrIndex = idx + 1
	return healthy[idx], nil
}

// pickFailover returns the first endpoint not known to be down.
func pickFailover(endpoints []Endpoint) (*Endpoint, error) {
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			return e, nil
		}
	}
	return nil, ErrNoHealthyRPC
}

// score favours low latency, losing a point per block behind the best.
func score(e *Endpoint, behind uint64) float64 {
	var s float64
	if e.Latency > 0 {
		s += 1.0 / e.Latency.Seconds()
	}
	return s - float64(behind)
}

// eligible drops endpoints that were checked and found unhealthy.
func eligible(endpoints []Endpoint) []*Endpoint {
	var out []*Endpoint
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			out = append(out, e)
		}
	}
	return out
}
