package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
)

var (
	// ErrAmbiguousFunction matches *AmbiguousFunctionError.
	ErrAmbiguousFunction = errors.New("ambiguous function")
	// ErrNoMatchingFunction matches *NoMatchingFunctionError.
	ErrNoMatchingFunction = errors.New("no matching function")
)

// AmbiguousFunctionError reports a call whose arguments fit more than one
// overload. Passing the full signature as the name picks one.
type AmbiguousFunctionError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousFunctionError) Error() string {
	return fmt.Sprintf("ambiguous function %s: candidates %s", e.Name, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousFunctionError) Unwrap() error { return ErrAmbiguousFunction }

// NoMatchingFunctionError reports a name no overload accepts the arguments
// for. Candidates lists the overloads that exist under the name. Cause is
// the coercion failure when exactly one overload had the right arity.
type NoMatchingFunctionError struct {
	Name       string
	Args       int
	Candidates []string
	Cause      error
}

func (e *NoMatchingFunctionError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no function %s in ABI", e.Name)
	}
	msg := fmt.Sprintf("no overload of %s accepts %d argument(s): have %s",
		e.Name, e.Args, strings.Join(e.Candidates, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NoMatchingFunctionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrNoMatchingFunction}
	}
	return []error{ErrNoMatchingFunction, e.Cause}
}

// Resolve picks the function name refers to for args. A full signature
// such as "a(uint256)" selects exactly. A bare name narrows the overloads
// by arity, then keeps those whose every input accepts its argument.
func (r *Registry) Resolve(name string, args []any) (*Function, error) {
	if strings.Contains(name, "(") {
		fn, ok := r.bySig[canonical(name)]
		if !ok {
			return nil, &NoMatchingFunctionError{Name: name, Args: len(args)}
		}
		return fn, nil
	}

	overloads := r.byName[name]
	var sameArity []*Function
	for _, fn := range overloads {
		if len(fn.Inputs) == len(args) {
			sameArity = append(sameArity, fn)
		}
	}

	var (
		matches []*Function
		cause   error
	)
	for _, fn := range sameArity {
		if err := accepts(fn, args); err != nil {
			cause = err
			continue
		}
		matches = append(matches, fn)
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		nm := &NoMatchingFunctionError{Name: name, Args: len(args), Candidates: signatures(overloads)}
		if len(sameArity) == 1 {
			nm.Cause = fmt.Errorf("%s: %w", sameArity[0].Signature, cause)
		}
		return nil, nm
	}
	return nil, &AmbiguousFunctionError{Name: name, Candidates: signatures(matches)}
}

// accepts returns the first argument fn cannot take, or nil.
func accepts(fn *Function, args []any) error {
	for i, in := range fn.Inputs {
		if _, err := abi.Coerce(in.Type, args[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
