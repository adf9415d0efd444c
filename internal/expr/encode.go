package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Expression is the serialized form of a graph. Every function invocation
// and function definition is hoisted into Values and referenced by id;
// identical subgraphs share one id.
type Expression struct {
	Values map[string]ValueNode `json:"values"`
	Result string               `json:"result"`
}

type ValueNode struct {
	ConstantValue           json.RawMessage     `json:"constantValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	DictionaryValue         *DictionaryValue    `json:"dictionaryValue,omitempty"`
	FunctionDefinitionValue *FunctionDefinition `json:"functionDefinitionValue,omitempty"`
	ArgumentReference       string              `json:"argumentReference,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
}

type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments,omitempty"`
}

type ArrayValue struct {
	Values []ValueNode `json:"values"`
}

type DictionaryValue struct {
	Values map[string]ValueNode `json:"values"`
}

type FunctionDefinition struct {
	ArgumentNames []string `json:"argumentNames"`
	Body          string   `json:"body"`
}

type encoder struct {
	values map[string]ValueNode
	ids    map[string]string
}

// Encode flattens n into its wire form. Ids are assigned in post-order, so
// encoding the same graph twice yields identical output.
func Encode(n *Node) (*Expression, error) {
	if n == nil {
		return nil, fmt.Errorf("encode: nil node")
	}
	e := &encoder{values: map[string]ValueNode{}, ids: map[string]string{}}
	root, err := e.encode(n)
	if err != nil {
		return nil, err
	}
	if root.ValueReference != "" {
		return &Expression{Values: e.values, Result: root.ValueReference}, nil
	}
	id, err := e.hoist(root)
	if err != nil {
		return nil, err
	}
	return &Expression{Values: e.values, Result: id}, nil
}

// Marshal encodes n and returns the JSON bytes.
func Marshal(n *Node) ([]byte, error) {
	ex, err := Encode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ex)
}

func (e *encoder) encode(n *Node) (ValueNode, error) {
	switch n.kind {
	case kindConstant:
		raw, err := json.Marshal(n.constant)
		if err != nil {
			return ValueNode{}, fmt.Errorf("encode constant %v: %w", n.constant, err)
		}
		return ValueNode{ConstantValue: raw}, nil
	case kindArgument:
		return ValueNode{ArgumentReference: n.name}, nil
	case kindArray:
		values := make([]ValueNode, 0, len(n.items))
		for _, item := range n.items {
			v, err := e.encode(item)
			if err != nil {
				return ValueNode{}, err
			}
			values = append(values, v)
		}
		return ValueNode{ArrayValue: &ArrayValue{Values: values}}, nil
	case kindDictionary:
		values, err := e.encodeArgs(n)
		if err != nil {
			return ValueNode{}, err
		}
		return ValueNode{DictionaryValue: &DictionaryValue{Values: values}}, nil
	case kindInvocation:
		args, err := e.encodeArgs(n)
		if err != nil {
			return ValueNode{}, err
		}
		if len(args) == 0 {
			args = nil
		}
		return e.reference(ValueNode{FunctionInvocationValue: &FunctionInvocation{
			FunctionName: n.name,
			Arguments:    args,
		}})
	case kindFunction:
		if n.body == nil {
			return ValueNode{}, fmt.Errorf("encode: function without body")
		}
		body, err := e.encode(n.body)
		if err != nil {
			return ValueNode{}, err
		}
		bodyID := body.ValueReference
		if bodyID == "" {
			if bodyID, err = e.hoist(body); err != nil {
				return ValueNode{}, err
			}
		}
		return e.reference(ValueNode{FunctionDefinitionValue: &FunctionDefinition{
			ArgumentNames: n.params,
			Body:          bodyID,
		}})
	default:
		return ValueNode{}, fmt.Errorf("encode: unknown node kind %d", n.kind)
	}
}

func (e *encoder) encodeArgs(n *Node) (map[string]ValueNode, error) {
	out := make(map[string]ValueNode, len(n.args))
	for _, name := range n.ArgNames() {
		v, err := e.encode(n.args[name])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (e *encoder) reference(v ValueNode) (ValueNode, error) {
	id, err := e.hoist(v)
	if err != nil {
		return ValueNode{}, err
	}
	return ValueNode{ValueReference: id}, nil
}

func (e *encoder) hoist(v ValueNode) (string, error) {
	key, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if id, ok := e.ids[string(key)]; ok {
		return id, nil
	}
	id := strconv.Itoa(len(e.values))
	e.values[id] = v
	e.ids[string(key)] = id
	return id, nil
}
