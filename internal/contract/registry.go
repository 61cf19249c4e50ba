package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
)

var (
	// ErrNotInABI is returned by registry lookups that find nothing.
	ErrNotInABI = errors.New("not in ABI")
	// ErrDuplicateSignature matches *DuplicateSignatureError.
	ErrDuplicateSignature = errors.New("duplicate signature")
)

// DuplicateSignatureError reports two ABI entries of the same kind with
// the same canonical signature.
type DuplicateSignatureError struct {
	Kind      string
	Signature string
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("duplicate %s signature %s", e.Kind, e.Signature)
}

func (e *DuplicateSignatureError) Unwrap() error { return ErrDuplicateSignature }

// Arg is a named, typed parameter. Indexed only applies to event inputs.
type Arg struct {
	Name    string
	Type    abi.Type
	Indexed bool
}

func argTypes(args []Arg) []abi.Type {
	out := make([]abi.Type, len(args))
	for i, a := range args {
		out[i] = a.Type
	}
	return out
}

// Function is a callable contract function.
type Function struct {
	Name       string
	Signature  string
	Selector   [4]byte
	Inputs     []Arg
	Outputs    []Arg
	Mutability string
}

// InputTypes returns the input types in order.
func (f *Function) InputTypes() []abi.Type { return argTypes(f.Inputs) }

// OutputTypes returns the output types in order.
func (f *Function) OutputTypes() []abi.Type { return argTypes(f.Outputs) }

// IsRead reports whether the function is view or pure.
func (f *Function) IsRead() bool { return f.Mutability == "view" || f.Mutability == "pure" }

// Event is a contract event.
type Event struct {
	Name      string
	Signature string
	Topic     common.Hash
	Inputs    []Arg
	Anonymous bool
}

// Indexed returns the inputs carried in topics.
func (e *Event) Indexed() []Arg {
	var out []Arg
	for _, in := range e.Inputs {
		if in.Indexed {
			out = append(out, in)
		}
	}
	return out
}

// CustomError is an error declared in the ABI.
type CustomError struct {
	Name      string
	Signature string
	Selector  [4]byte
	Inputs    []Arg
}

// Entrypoint describes the constructor, fallback or receive function.
type Entrypoint struct {
	Inputs     []Arg
	Mutability string
}

// Registry indexes a contract's functions, events and errors by canonical
// signature. It is built once and read-only afterwards.
type Registry struct {
	functions  []*Function
	bySig      map[string]*Function
	byName     map[string][]*Function
	bySelector map[[4]byte][]*Function

	events       []*Event
	eventBySig   map[string]*Event
	eventByTopic map[common.Hash]*Event

	errors     []*CustomError
	errorBySig map[string]*CustomError
	errorBySel map[[4]byte]*CustomError

	constructor *Entrypoint
	fallback    *Entrypoint
	receive     *Entrypoint
}

// NewRegistry resolves every entry's types and indexes it. Two functions,
// events or errors with the same canonical signature are rejected with a
// *DuplicateSignatureError; distinct signatures sharing a selector are
// allowed.
func NewRegistry(entries []ABIEntry) (*Registry, error) {
	r := &Registry{
		bySig:        make(map[string]*Function),
		byName:       make(map[string][]*Function),
		bySelector:   make(map[[4]byte][]*Function),
		eventBySig:   make(map[string]*Event),
		eventByTopic: make(map[common.Hash]*Event),
		errorBySig:   make(map[string]*CustomError),
		errorBySel:   make(map[[4]byte]*CustomError),
	}
	for i, e := range entries {
		if err := r.add(e); err != nil {
			return nil, fmt.Errorf("ABI entry %d (%s %s): %w", i, e.Type, e.Name, err)
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for ABIs known to be valid, such as built-ins.
func MustRegistry(entries []ABIEntry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(e ABIEntry) error {
	inputs, err := resolveArgs(e.Inputs)
	if err != nil {
		return err
	}
	switch e.Type {
	case "function":
		outputs, err := resolveArgs(e.Outputs)
		if err != nil {
			return err
		}
		sig := abi.Signature(e.Name, argTypes(inputs))
		if _, dup := r.bySig[sig]; dup {
			return &DuplicateSignatureError{Kind: "function", Signature: sig}
		}
		fn := &Function{
			Name:       e.Name,
			Signature:  sig,
			Selector:   abi.Selector(sig),
			Inputs:     inputs,
			Outputs:    outputs,
			Mutability: e.Mutability(),
		}
		r.functions = append(r.functions, fn)
		r.bySig[sig] = fn
		r.byName[fn.Name] = append(r.byName[fn.Name], fn)
		r.bySelector[fn.Selector] = append(r.bySelector[fn.Selector], fn)

	case "event":
		sig := abi.Signature(e.Name, argTypes(inputs))
		if _, dup := r.eventBySig[sig]; dup {
			return &DuplicateSignatureError{Kind: "event", Signature: sig}
		}
		ev := &Event{Name: e.Name, Signature: sig, Topic: abi.Topic(sig), Inputs: inputs, Anonymous: e.Anonymous}
		r.events = append(r.events, ev)
		r.eventBySig[sig] = ev
		if !ev.Anonymous {
			r.eventByTopic[ev.Topic] = ev
		}

	case "error":
		sig := abi.Signature(e.Name, argTypes(inputs))
		if _, dup := r.errorBySig[sig]; dup {
			return &DuplicateSignatureError{Kind: "error", Signature: sig}
		}
		ce := &CustomError{Name: e.Name, Signature: sig, Selector: abi.Selector(sig), Inputs: inputs}
		r.errors = append(r.errors, ce)
		r.errorBySig[sig] = ce
		if _, taken := r.errorBySel[ce.Selector]; !taken {
			r.errorBySel[ce.Selector] = ce
		}

	case "constructor":
		r.constructor = &Entrypoint{Inputs: inputs, Mutability: e.Mutability()}
	case "fallback":
		r.fallback = &Entrypoint{Mutability: e.Mutability()}
	case "receive":
		r.receive = &Entrypoint{Mutability: "payable"}
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	return nil
}

func resolveArgs(params []ABIParam) ([]Arg, error) {
	out := make([]Arg, len(params))
	for i, p := range params {
		t, err := p.ABIType()
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, p.Name, err)
		}
		out[i] = Arg{Name: p.Name, Type: t, Indexed: p.Indexed}
	}
	return out, nil
}

// canonical rewrites a human-written signature ("f(uint, address to)") to
// its canonical form, or returns it unchanged when it does not parse.
func canonical(sig string) string {
	name, types, err := abi.ParseSignature(sig)
	if err != nil {
		return strings.TrimSpace(sig)
	}
	return abi.Signature(name, types)
}

// Functions returns every function in ABI order.
func (r *Registry) Functions() []*Function { return r.functions }

// Function looks up a function by signature.
func (r *Registry) Function(signature string) (*Function, error) {
	fn, ok := r.bySig[canonical(signature)]
	if !ok {
		return nil, fmt.Errorf("function %s: %w", signature, ErrNotInABI)
	}
	return fn, nil
}

// FunctionsByName returns every overload of name in ABI order.
func (r *Registry) FunctionsByName(name string) []*Function { return r.byName[name] }

// FunctionBySelector looks up the function a calldata selector targets.
// Several signatures hashing to one selector are reported as ambiguous.
func (r *Registry) FunctionBySelector(sel [4]byte) (*Function, error) {
	fns := r.bySelector[sel]
	switch len(fns) {
	case 0:
		return nil, fmt.Errorf("selector 0x%x: %w", sel, ErrNotInABI)
	case 1:
		return fns[0], nil
	}
	return nil, &AmbiguousFunctionError{Name: fmt.Sprintf("0x%x", sel), Candidates: signatures(fns)}
}

// Events returns every event in ABI order.
func (r *Registry) Events() []*Event { return r.events }

// Event looks up an event by signature.
func (r *Registry) Event(signature string) (*Event, error) {
	ev, ok := r.eventBySig[canonical(signature)]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", signature, ErrNotInABI)
	}
	return ev, nil
}

// EventByTopic looks up a non-anonymous event by its topic hash.
func (r *Registry) EventByTopic(topic common.Hash) (*Event, error) {
	ev, ok := r.eventByTopic[topic]
	if !ok {
		return nil, fmt.Errorf("event topic %s: %w", topic.Hex(), ErrNotInABI)
	}
	return ev, nil
}

// Errors returns the custom errors in ABI order.
func (r *Registry) Errors() []*CustomError { return r.errors }

// ErrorBySelector looks up a custom error by its selector.
func (r *Registry) ErrorBySelector(sel [4]byte) (*CustomError, error) {
	ce, ok := r.errorBySel[sel]
	if !ok {
		return nil, fmt.Errorf("error selector 0x%x: %w", sel, ErrNotInABI)
	}
	return ce, nil
}

// Constructor returns the constructor, or nil when the ABI declares none.
func (r *Registry) Constructor() *Entrypoint { return r.constructor }

// Fallback returns the fallback function, or nil.
func (r *Registry) Fallback() *Entrypoint { return r.fallback }

// Receive returns the receive function, or nil.
func (r *Registry) Receive() *Entrypoint { return r.receive }

func signatures(fns []*Function) []string {
	out := make([]string, len(fns))
	for i, fn := range fns {
		out[i] = fn.Signature
	}
	return out
}
