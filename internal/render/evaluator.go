// Package render evaluates parsed smol documents against a parameter
// environment and the built-in function library.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/smol/internal/cache"
	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/lang"
	"github.com/conneroisu/smol/internal/logging"
)

// Evaluator walks document trees. It holds the built-in table and the
// cache that file-system built-ins read through.
type Evaluator struct {
	cache    *cache.Cache
	root     string
	builtins map[string]*lang.Function
	logger   logging.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRoot confines list_files to directories inside root.
func WithRoot(root string) Option {
	return func(e *Evaluator) { e.root = root }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Evaluator) { e.logger = logger.WithComponent("render") }
}

// NewEvaluator creates an evaluator whose built-ins read through c.
func NewEvaluator(c *cache.Cache, opts ...Option) *Evaluator {
	e := &Evaluator{
		cache:  c,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.builtins = e.newBuiltins()
	return e
}

// Builtins returns the names of the built-in functions in lexical order.
func (e *Evaluator) Builtins() []string {
	names := make([]string, 0, len(e.builtins))
	for name := range e.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render evaluates a document and requires the result to be text.
func (e *Evaluator) Render(doc lang.Node, source string, env lang.Env) (string, error) {
	v, err := e.Eval(doc, source, env)
	if err != nil {
		return "", err
	}
	s, ok := v.(*lang.String)
	if !ok {
		return "", errors.NewTypeError(errors.ErrCodeNotText,
			fmt.Sprintf("document rendered to %s instead of text", lang.Describe(v)))
	}
	return s.Value, nil
}

// Eval evaluates node in env for the document at source.
func (e *Evaluator) Eval(node lang.Node, source string, env lang.Env) (lang.Node, error) {
	switch n := node.(type) {
	case *lang.Literal:
		return e.substitute(n.Text, source, env)

	case *lang.String, *lang.Function:
		return n, nil

	case *lang.List:
		elems := make([]lang.Node, len(n.Elements))
		for i, elem := range n.Elements {
			v, err := e.Eval(elem, source, env)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &lang.List{Elements: elems}, nil

	case *lang.Object:
		fields := make(map[string]lang.Node, len(n.Fields))
		for k, field := range n.Fields {
			v, err := e.Eval(field, source, env)
			if err != nil {
				return nil, err
			}
			fields[k] = v
		}
		return &lang.Object{Fields: fields}, nil

	case *lang.Sequence:
		return e.evalSequence(n, source, env)

	case *lang.Var:
		if fn, ok := e.builtins[n.Name]; ok {
			return fn, nil
		}
		if v, ok := env[n.Name]; ok {
			return v, nil
		}
		return nil, errors.NewLookupError(errors.ErrCodeUndefinedVar,
			fmt.Sprintf("undefined variable %q", n.Name))

	case *lang.FieldAccess:
		return e.evalField(n, source, env)

	case *lang.IndexAccess:
		return e.evalIndex(n, source, env)

	case *lang.Call:
		return e.evalCall(n, source, env)

	case *lang.For:
		return e.evalFor(n, source, env)

	default:
		return nil, errors.NewInternalError(errors.ErrCodeInternal,
			fmt.Sprintf("cannot evaluate %s", lang.Describe(node)), nil)
	}
}

func (e *Evaluator) substitute(text, source string, env lang.Env) (lang.Node, error) {
	spans := substitutions(text)
	if len(spans) == 0 {
		return lang.Str(text), nil
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span.start])

		expr, err := lang.ParseExpr(span.expr)
		if err != nil {
			return nil, err
		}
		v, err := e.Eval(expr, source, env)
		if err != nil {
			return nil, err
		}
		s, err := lang.Stringify(v)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		last = span.end
	}
	b.WriteString(text[last:])

	return lang.Str(b.String()), nil
}

type substitution struct {
	start, end int
	expr       string
}

// substitutions finds the {{ expr }} markers in text. A marker closes at the
// first "}}" outside quoted text, and its expression does not cross a line
// break. Text that never closes stays literal.
func substitutions(text string) []substitution {
	var spans []substitution
	for i := 0; i < len(text); {
		open := strings.Index(text[i:], "{{")
		if open < 0 {
			break
		}
		start := i + open
		closing := closingBraces(text, start+2)
		if closing < 0 {
			i = start + 1
			continue
		}
		expr := strings.TrimSpace(text[start+2 : closing])
		if strings.Contains(expr, "\n") {
			i = start + 1
			continue
		}
		spans = append(spans, substitution{start: start, end: closing + 2, expr: expr})
		i = closing + 2
	}
	return spans
}

// closingBraces returns the index of the "}}" ending a marker whose body
// starts at from, or -1. The body holds at least one character.
func closingBraces(text string, from int) int {
	var quote byte
	for j := from; j < len(text)-1; j++ {
		c := text[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '}' && text[j+1] == '}' && j > from:
			return j
		}
	}
	return -1
}

func (e *Evaluator) evalSequence(n *lang.Sequence, source string, env lang.Env) (lang.Node, error) {
	first, err := e.Eval(n.First, source, env)
	if err != nil {
		return nil, err
	}
	rest, err := e.Eval(n.Rest, source, env)
	if err != nil {
		return nil, err
	}

	a, okA := first.(*lang.String)
	b, okB := rest.(*lang.String)
	if !okA || !okB {
		return nil, errors.NewTypeError(errors.ErrCodeConcat,
			fmt.Sprintf("cannot concatenate non-text values %s and %s",
				lang.Describe(first), lang.Describe(rest)))
	}
	return lang.Str(a.Value + b.Value), nil
}

func (e *Evaluator) evalField(n *lang.FieldAccess, source string, env lang.Env) (lang.Node, error) {
	target, err := e.Eval(n.Target, source, env)
	if err != nil {
		return nil, err
	}
	obj, ok := target.(*lang.Object)
	if !ok {
		return nil, errors.NewTypeError(errors.ErrCodeNotObject,
			fmt.Sprintf("cannot read field %q of %s", n.Field, lang.Describe(target)))
	}
	v, ok := obj.Fields[n.Field]
	if !ok {
		return nil, errors.NewLookupError(errors.ErrCodeMissingField,
			fmt.Sprintf("field %q does not exist", n.Field)).
			WithContext("fields", lang.SortedKeys(obj))
	}
	return v, nil
}

func (e *Evaluator) evalIndex(n *lang.IndexAccess, source string, env lang.Env) (lang.Node, error) {
	target, err := e.Eval(n.Target, source, env)
	if err != nil {
		return nil, err
	}
	list, ok := target.(*lang.List)
	if !ok {
		return nil, errors.NewTypeError(errors.ErrCodeNotList,
			fmt.Sprintf("cannot index %s with [%d]", lang.Describe(target), n.Index))
	}
	if n.Index < 0 || n.Index >= len(list.Elements) {
		return nil, errors.NewLookupError(errors.ErrCodeIndexRange,
			fmt.Sprintf("index %d out of range for list of length %d", n.Index, len(list.Elements)))
	}
	return list.Elements[n.Index], nil
}

func (e *Evaluator) evalCall(n *lang.Call, source string, env lang.Env) (lang.Node, error) {
	callee, err := e.Eval(n.Callee, source, env)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*lang.Function)
	if !ok {
		return nil, errors.NewTypeError(errors.ErrCodeNotFunction,
			fmt.Sprintf("%s is not a function and cannot be called", lang.Describe(callee)))
	}

	args := make([]lang.Node, len(n.Args))
	for i, arg := range n.Args {
		v, err := e.Eval(arg, source, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	e.logger.Debug(context.Background(), "Calling function", "function", fn.Name, "source", source, "args", len(args))
	return fn.Fn(source, env, args)
}

func (e *Evaluator) evalFor(n *lang.For, source string, env lang.Env) (lang.Node, error) {
	if n.Body == nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal,
			fmt.Sprintf("for loop over %s has no body", n.Binding), nil)
	}

	iterable, err := e.Eval(n.Iterable, source, env)
	if err != nil {
		return nil, err
	}
	list, ok := iterable.(*lang.List)
	if !ok {
		return nil, errors.NewTypeError(errors.ErrCodeNotIterable,
			fmt.Sprintf("cannot iterate over %s", lang.Describe(iterable)))
	}

	var b strings.Builder
	for _, elem := range list.Elements {
		scope := env.Clone()
		scope[n.Binding] = elem

		v, err := e.Eval(n.Body, source, scope)
		if err != nil {
			return nil, err
		}
		s, ok := v.(*lang.String)
		if !ok {
			return nil, errors.NewTypeError(errors.ErrCodeNotText,
				fmt.Sprintf("loop body rendered to %s instead of text", lang.Describe(v)))
		}
		b.WriteString(s.Value)
	}
	return lang.Str(b.String()), nil
}
