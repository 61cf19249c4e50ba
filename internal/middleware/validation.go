package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ErrValidation matches every request rejected before it reaches the node.
var ErrValidation = errors.New("invalid request")

// ValidationError describes why a request was rejected.
type ValidationError struct {
	Method string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s request: %v", e.Method, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

type validation struct{}

// NewValidation rejects malformed addresses, quantities, block tags and
// transactions that mix fee models. It leaves params untouched.
func NewValidation() Middleware { return validation{} }

func (validation) Name() string { return NameValidation }

func (validation) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	if req.Method == "" {
		return nil, &ValidationError{Method: "(empty)", Err: errors.New("missing method")}
	}
	if _, err := formatParams(req.Method, req.Params); err != nil {
		return nil, &ValidationError{Method: req.Method, Err: err}
	}
	return next(ctx, req)
}
