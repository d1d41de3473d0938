// Package lang implements the smol template language: the node union used
// both as syntax and as runtime values, the expression parser, the
// document parser and value stringification.
//
// # Syntax
//
// A document is literal text mixed with two kinds of markers:
//
//	{{ expression }}                 substitution
//	{% for name in expression %}     iteration, closed by {% endfor %}
//
// Expressions are a variable (posts), a quoted string ("a" or 'a'), a field
// access (post.title), an index access (posts[0]) or a call
// (split(tags, ",")). There is no arithmetic, no conditionals and no way to
// define functions; callables come from the host.
//
// # Nodes
//
// Node is a sealed interface. Every consumer switches over the concrete
// types in this file and treats anything else as an internal error.
package lang

// Node is one member of the closed set of syntax and value kinds.
type Node interface {
	// Kind names the variant for error messages.
	Kind() string
	node()
}

// Env is the parameter environment a document renders against.
type Env map[string]Node

// Clone returns a shallow copy of the environment. Loop scopes bind into a
// clone so bindings never reach the caller's environment.
func (e Env) Clone() Env {
	c := make(Env, len(e)+1)
	for k, v := range e {
		c[k] = v
	}
	return c
}

// Func is the host callable behind a Function value. It receives the path of
// the document being rendered, the current environment and the already
// evaluated arguments.
type Func func(source string, env Env, args []Node) (Node, error)

// Literal is passthrough document text that may contain {{ }} markers.
type Literal struct {
	Text string
}

// String is a string literal or string value.
type String struct {
	Value string
}

// Sequence concatenates two rendered fragments.
type Sequence struct {
	First Node
	Rest  Node
}

// List is an ordered list value.
type List struct {
	Elements []Node
}

// Object is a record value. Field order is not significant.
type Object struct {
	Fields map[string]Node
}

// Function is a host function value.
type Function struct {
	Name string
	Fn   Func
}

// Var is an identifier resolved at evaluation time.
type Var struct {
	Name string
}

// FieldAccess reads a member of an object.
type FieldAccess struct {
	Target Node
	Field  string
}

// IndexAccess reads an element of a list.
type IndexAccess struct {
	Target Node
	Index  int
}

// Call invokes a function with arguments evaluated left to right.
type Call struct {
	Callee Node
	Args   []Node
}

// For iterates Body once per element of Iterable with Binding bound to the
// element. Body is nil until the parser sees the matching endfor.
type For struct {
	Binding  string
	Iterable Node
	Body     Node
}

func (*Literal) Kind() string     { return "text" }
func (*String) Kind() string      { return "string" }
func (*Sequence) Kind() string    { return "sequence" }
func (*List) Kind() string        { return "list" }
func (*Object) Kind() string      { return "object" }
func (*Function) Kind() string    { return "function" }
func (*Var) Kind() string         { return "variable" }
func (*FieldAccess) Kind() string { return "field access" }
func (*IndexAccess) Kind() string { return "index access" }
func (*Call) Kind() string        { return "call" }
func (*For) Kind() string         { return "for loop" }

func (*Literal) node()     {}
func (*String) node()      {}
func (*Sequence) node()    {}
func (*List) node()        {}
func (*Object) node()      {}
func (*Function) node()    {}
func (*Var) node()         {}
func (*FieldAccess) node() {}
func (*IndexAccess) node() {}
func (*Call) node()        {}
func (*For) node()         {}

// Str is shorthand for a String value.
func Str(s string) *String { return &String{Value: s} }

// Strings builds a List of String values.
func Strings(values ...string) *List {
	elems := make([]Node, len(values))
	for i, v := range values {
		elems[i] = Str(v)
	}
	return &List{Elements: elems}
}
