// Package expr builds the expression graphs sent to the remote imagery
// platform. A graph is a tree of Nodes; Encode flattens it into the
// platform's wire format, a table of values plus the id of the result.
package expr

import "sort"

type kind int

const (
	kindConstant kind = iota
	kindInvocation
	kindArray
	kindDictionary
	kindFunction
	kindArgument
)

// Node is one value in an expression graph. Nodes are immutable once built.
type Node struct {
	kind     kind
	constant any
	name     string
	args     map[string]*Node
	items    []*Node
	params   []string
	body     *Node
}

// Args names the arguments of a function invocation.
type Args map[string]*Node

// Constant wraps a JSON-encodable value.
func Constant(v any) *Node {
	return &Node{kind: kindConstant, constant: v}
}

// Invoke calls a platform algorithm by name.
func Invoke(function string, args Args) *Node {
	copied := make(map[string]*Node, len(args))
	for k, v := range args {
		if v != nil {
			copied[k] = v
		}
	}
	return &Node{kind: kindInvocation, name: function, args: copied}
}

func Array(items ...*Node) *Node {
	return &Node{kind: kindArray, items: append([]*Node(nil), items...)}
}

func Strings(values []string) *Node {
	items := make([]*Node, len(values))
	for i, v := range values {
		items[i] = Constant(v)
	}
	return Array(items...)
}

func Dictionary(values Args) *Node {
	copied := make(map[string]*Node, len(values))
	for k, v := range values {
		if v != nil {
			copied[k] = v
		}
	}
	return &Node{kind: kindDictionary, args: copied}
}

// Function defines an anonymous function of the named parameters. Use
// Argument inside body to refer to a parameter.
func Function(params []string, body *Node) *Node {
	return &Node{kind: kindFunction, params: append([]string(nil), params...), body: body}
}

func Argument(name string) *Node {
	return &Node{kind: kindArgument, name: name}
}

// FunctionName returns the invoked algorithm, or "" for other node kinds.
func (n *Node) FunctionName() string {
	if n == nil || n.kind != kindInvocation {
		return ""
	}
	return n.name
}

// Arg returns the named invocation argument or dictionary entry.
func (n *Node) Arg(name string) *Node {
	if n == nil {
		return nil
	}
	return n.args[name]
}

// ArgNames lists invocation arguments in sorted order.
func (n *Node) ArgNames() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.args))
	for k := range n.args {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Value returns the wrapped value of a constant node.
func (n *Node) Value() (any, bool) {
	if n == nil || n.kind != kindConstant {
		return nil, false
	}
	return n.constant, true
}

func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

func (n *Node) Body() *Node {
	if n == nil {
		return nil
	}
	return n.body
}

// StringItems returns the values of an array of string constants.
func (n *Node) StringItems() ([]string, bool) {
	if n == nil || n.kind != kindArray {
		return nil, false
	}
	out := make([]string, 0, len(n.items))
	for _, item := range n.items {
		v, ok := item.Value()
		if !ok {
			return nil, false
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Find walks the graph depth first and returns the first invocation of
// function, or nil.
func (n *Node) Find(function string) *Node {
	if n == nil {
		return nil
	}
	if n.FunctionName() == function {
		return n
	}
	for _, name := range n.ArgNames() {
		if found := n.args[name].Find(function); found != nil {
			return found
		}
	}
	for _, item := range n.items {
		if found := item.Find(function); found != nil {
			return found
		}
	}
	return n.body.Find(function)
}
