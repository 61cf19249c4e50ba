package rpc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/rpc"
)

// checked builds an endpoint that has been health-checked.
func checked(url string, latency time.Duration, block uint64, healthy bool) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block, Healthy: healthy, Checked: true}
}

// unchecked builds an endpoint with measurements but no health status.
func unchecked(url string, latency time.Duration, block uint64) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    rpc.Algorithm
		wantErr bool
	}{
		{"", rpc.AlgorithmFastest, false},
		{"fastest", rpc.AlgorithmFastest, false},
		{"round-robin", rpc.AlgorithmRoundRobin, false},
		{"failover", rpc.AlgorithmFailover, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := rpc.ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickerSelectsFastest(t *testing.T) {
	endpoints := []rpc.Endpoint{
		unchecked("http://slow.rpc", 200*time.Millisecond, 100),
		unchecked("http://fast.rpc", 30*time.Millisecond, 100),
		unchecked("http://medium.rpc", 80*time.Millisecond, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerSubMillisecondLatency(t *testing.T) {
	endpoints := []rpc.Endpoint{
		unchecked("http://local", 300*time.Microsecond, 100),
		unchecked("http://remote", 40*time.Millisecond, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://local", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://fresh.rpc", 50*time.Millisecond, 1000, true),
		checked("http://stale.rpc", 10*time.Millisecond, 990, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fresh.rpc", winner.URL)

	winner, err = rpc.NewPicker(rpc.AlgorithmFastest, rpc.WithStaleBlocks(20)).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://stale.rpc", winner.URL)
}

func TestPickerIgnoresUnhealthyBestBlock(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://ok.rpc", 50*time.Millisecond, 100, true),
		checked("http://down.rpc", 0, 5000, false),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://ok.rpc", winner.URL)
}

func TestPickerRoundRobinCycles(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://rpc1", 0, 100, true),
		checked("http://down", 0, 100, false),
		checked("http://rpc2", 0, 100, true),
	}

	picker := rpc.NewPicker(rpc.AlgorithmRoundRobin)
	var urls []string
	for range 4 {
		e, err := picker.Pick(endpoints)
		require.NoError(t, err)
		urls = append(urls, e.URL)
	}
	assert.Equal(t, []string{"http://rpc1", "http://rpc2", "http://rpc1", "http://rpc2"}, urls)
}

func TestPickerFailover(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://primary", 0, 100, false),
		checked("http://secondary", 0, 100, true),
		checked("http://tertiary", 0, 100, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFailover).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://secondary", winner.URL)
}

func TestPickerErrorsWhenAllUnhealthy(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://rpc1", 100*time.Millisecond, 0, false),
		checked("http://rpc2", 200*time.Millisecond, 0, false),
	}

	for _, algo := range []rpc.Algorithm{rpc.AlgorithmFastest, rpc.AlgorithmRoundRobin, rpc.AlgorithmFailover} {
		_, err := rpc.NewPicker(algo).Pick(endpoints)
		assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC, algo)
	}
	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(nil)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}

func TestPickerCachesWinner(t *testing.T) {
	picker := rpc.NewPicker(rpc.AlgorithmFastest)

	first, err := picker.Pick([]rpc.Endpoint{
		checked("http://a", 30*time.Millisecond, 100, true),
		checked("http://b", 60*time.Millisecond, 100, true),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://a", first.URL)

	again, err := picker.Pick([]rpc.Endpoint{
		checked("http://a", 90*time.Millisecond, 100, true),
		checked("http://b", 10*time.Millisecond, 100, true),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://a", again.URL, "cached winner is reused within the TTL")

	moved, err := picker.Pick([]rpc.Endpoint{
		checked("http://a", 0, 0, false),
		checked("http://b", 10*time.Millisecond, 100, true),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://b", moved.URL, "an unhealthy cached winner is replaced")
}

func TestPickerNoCache(t *testing.T) {
	picker := rpc.NewPicker(rpc.AlgorithmFastest, rpc.WithCacheTTL(0))
	_, err := picker.Pick([]rpc.Endpoint{unchecked("http://a", 30*time.Millisecond, 1), unchecked("http://b", 60*time.Millisecond, 1)})
	require.NoError(t, err)

	winner, err := picker.Pick([]rpc.Endpoint{unchecked("http://a", 90*time.Millisecond, 1), unchecked("http://b", 10*time.Millisecond, 1)})
	require.NoError(t, err)
	assert.Equal(t, "http://b", winner.URL)
}
