package middleware

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// JSON-RPC error codes with a default retry classification.
const (
	CodeExecutionReverted = 3
	CodeServerError       = -32000
	CodeResourceNotFound  = -32001
	CodeLimitExceeded     = -32005
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeTooManyRequests   = 429
)

// CodeTable classifies RPC error codes as retryable or fatal. Codes not in
// the table are fatal. It is safe for concurrent use.
type CodeTable struct {
	mu        sync.RWMutex
	retryable map[int]bool
}

// DefaultCodeTable marks rate limiting, internal errors and the
// indexing-in-progress code as retryable.
func DefaultCodeTable() *CodeTable {
	return NewCodeTable(
		[]int{CodeLimitExceeded, CodeInternalError, CodeResourceNotFound, CodeTooManyRequests},
		[]int{CodeExecutionReverted, CodeServerError, CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams},
	)
}

// NewCodeTable builds a table from explicit retryable and fatal codes. A
// code listed in both is fatal.
func NewCodeTable(retryable, fatal []int) *CodeTable {
	t := &CodeTable{retryable: make(map[int]bool, len(retryable)+len(fatal))}
	for _, c := range retryable {
		t.retryable[c] = true
	}
	for _, c := range fatal {
		t.retryable[c] = false
	}
	return t
}

// Set classifies code.
func (t *CodeTable) Set(code int, retryable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryable[code] = retryable
}

// Retryable reports whether code may succeed on a later attempt.
func (t *CodeTable) Retryable(code int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.retryable[code]
}

// RetryError is returned once every attempt has failed with a retryable
// error. Err is the last error, unmodified.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Retry re-sends requests that failed for transient reasons.
type Retry struct {
	codes       *CodeTable
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	log         logger.FieldLogger
}

// RetryOption configures NewRetry.
type RetryOption func(*Retry)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the first delay and the cap of the exponential backoff.
func WithBackoff(base, limit time.Duration) RetryOption {
	return func(r *Retry) {
		r.baseDelay = base
		r.maxDelay = limit
	}
}

// WithCodeTable replaces DefaultCodeTable.
func WithCodeTable(t *CodeTable) RetryOption {
	return func(r *Retry) { r.codes = t }
}

// WithRetryLogger sets where retries are reported.
func WithRetryLogger(l logger.FieldLogger) RetryOption {
	return func(r *Retry) { r.log = l }
}

// NewRetry creates a retry stage with 3 attempts and a 250ms..5s backoff.
func NewRetry(opts ...RetryOption) *Retry {
	r := &Retry{
		codes:       DefaultCodeTable(),
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
		log:         logger.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retry) Name() string { return NameRetry }

// Codes returns the live classification table.
func (r *Retry) Codes() *CodeTable { return r.codes }

func (r *Retry) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := next(ctx, req)
		failure := err
		if failure == nil && resp != nil && resp.Error != nil {
			failure = resp.Error
		}
		if failure == nil || !r.Retryable(failure) {
			return resp, err
		}
		if attempt >= r.maxAttempts {
			return nil, &RetryError{Attempts: attempt, Err: failure}
		}

		delay := r.backoff(attempt)
		r.log.WithFields(logger.Fields{
			"method":  req.Method,
			"id":      req.ID,
			"attempt": attempt,
			"delay":   delay,
		}).Warnf("retrying after error: %v", failure)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Retryable reports whether err is worth another attempt.
func (r *Retry) Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, transport.ErrClosed) {
		return false
	}
	if errors.Is(err, transport.ErrConnection) || errors.Is(err, transport.ErrTimeout) {
		return true
	}
	var rpcErr *transport.RPCError
	if errors.As(err, &rpcErr) {
		return r.codes.Retryable(rpcErr.Code)
	}
	return false
}

// backoff doubles the base delay per attempt up to the cap, then picks a
// point in its upper half.
func (r *Retry) backoff(attempt int) time.Duration {
	d := r.baseDelay
	for i := 1; i < attempt && d < r.maxDelay; i++ {
		d *= 2
	}
	if r.maxDelay > 0 && d > r.maxDelay {
		d = r.maxDelay
	}
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half)
}
