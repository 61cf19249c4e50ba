package rpc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
)

// benchmarkParallelism bounds concurrent probes.
const benchmarkParallelism = 8

// Prober measures one endpoint.
type Prober func(ctx context.Context, url string) (latency time.Duration, block uint64, err error)

// EVMProber dials url with opts and pings it with eth_blockNumber.
func EVMProber(opts client.Options) Prober {
	return func(ctx context.Context, url string) (time.Duration, uint64, error) {
		c, err := client.Dial(ctx, url, opts)
		if err != nil {
			return 0, 0, err
		}
		defer c.Close()
		return chain.NewEVMClient(client.NewBlocking(c)).Ping(ctx)
	}
}

// BenchmarkResult is the outcome of probing one URL.
type BenchmarkResult struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Err         error
}

// Benchmark probes every URL concurrently, each bounded by timeout, and
// returns the results in input order. A failed probe is recorded in its
// result rather than aborting the others.
func Benchmark(ctx context.Context, urls []string, probe Prober, timeout time.Duration) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))
	var g errgroup.Group
	g.SetLimit(benchmarkParallelism)
	for i, u := range urls {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			latency, block, err := probe(pctx, u)
			results[i] = BenchmarkResult{URL: u, Latency: latency, BlockNumber: block, Err: err}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return results
}

// ResultsToEndpoints marks every benchmarked endpoint as checked.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		endpoints = append(endpoints, Endpoint{
			URL:         r.URL,
			Latency:     r.Latency,
			BlockNumber: r.BlockNumber,
			Healthy:     r.Err == nil,
			Checked:     true,
		})
	}
	return endpoints
}

// Select returns the URL picker chooses among urls. Only the fastest
// strategy benchmarks; round-robin and failover use the configured order.
// A single URL is returned without probing.
func Select(ctx context.Context, picker *Picker, urls []string, probe Prober, timeout time.Duration) (string, error) {
	switch len(urls) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return urls[0], nil
	}

	var endpoints []Endpoint
	if picker.Algorithm() == AlgorithmFastest {
		endpoints = ResultsToEndpoints(Benchmark(ctx, urls, probe, timeout))
	} else {
		endpoints = make([]Endpoint, len(urls))
		for i, u := range urls {
			endpoints[i] = Endpoint{URL: u}
		}
	}
	winner, err := picker.Pick(endpoints)
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
