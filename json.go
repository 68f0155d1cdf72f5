package symcanon

import (
	"math"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// ============================================================
// JSON Serialization
// ============================================================

// MarshalTree converts n into the generic JSON tree form. Shared subtrees are
// written out once per occurrence.
func MarshalTree(n *Node) map[string]interface{} {
	switch n.kind {
	case KindConst:
		return map[string]interface{}{"type": "const", "value": n.Value()}
	case KindVariable:
		m := map[string]interface{}{"type": "var", "name": n.name}
		if v := n.Value(); !math.IsNaN(v) {
			m["value"] = v
		}
		return m
	case KindNegate, KindLog:
		return map[string]interface{}{"type": n.kind.String(), "arg": MarshalTree(n.ops[0])}
	case KindPower:
		return map[string]interface{}{"type": "pow", "base": MarshalTree(n.ops[0]), "exp": MarshalTree(n.ops[1])}
	}
	args := make([]map[string]interface{}, len(n.ops))
	for i, o := range n.ops {
		args[i] = MarshalTree(o)
	}
	return map[string]interface{}{"type": n.kind.String(), "args": args}
}

func ToJSON(n *Node) (string, error) {
	b, err := sonic.Marshal(MarshalTree(n))
	return string(b), err
}

// ParseJSON decodes a JSON tree. Variables are interned through scope; a nil
// scope gets a fresh one.
func ParseJSON(data []byte, scope *Scope) (*Node, error) {
	var m map[string]interface{}
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "invalid expression JSON")
	}
	return FromJSON(m, scope)
}

// FromJSON builds the raw (non-canonical) node described by data. Invalid
// nodes, such as a log of a non-positive constant, are reported as errors.
func FromJSON(data map[string]interface{}, scope *Scope) (*Node, error) {
	if scope == nil {
		scope = NewScope()
	}
	var n *Node
	var derr error
	if err := Catch(func() { n, derr = decodeTree(data, scope) }); err != nil {
		return nil, err
	}
	return n, derr
}

func decodeTree(data map[string]interface{}, scope *Scope) (*Node, error) {
	if data == nil {
		return nil, errors.New("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, errors.New("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, errors.New("field 'type' must be a non-empty string")
	}

	subTree := func(field string) (*Node, error) {
		v, ok := data[field]
		if !ok {
			return nil, errors.Errorf("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("%s: %q must be an object", typ, field)
		}
		n, err := decodeTree(m, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", typ, field)
		}
		return n, nil
	}

	subTrees := func(field string) ([]*Node, error) {
		v, ok := data[field]
		if !ok {
			return nil, errors.Errorf("%s: missing %q", typ, field)
		}
		raw, ok := v.([]interface{})
		if !ok {
			return nil, errors.Errorf("%s: %q must be an array", typ, field)
		}
		out := make([]*Node, len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("%s: %q[%d] must be an object", typ, field, i)
			}
			n, err := decodeTree(m, scope)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: %s[%d]", typ, field, i)
			}
			out[i] = n
		}
		return out, nil
	}

	number := func(field string) (float64, bool, error) {
		v, ok := data[field]
		if !ok {
			return 0, false, nil
		}
		f, ok := v.(float64)
		if !ok {
			return 0, false, errors.Errorf("%s: %q must be a number", typ, field)
		}
		return f, true, nil
	}

	switch typ {
	case "const":
		v, ok, err := number("value")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("const: missing 'value'")
		}
		return Const(v), nil

	case "var":
		name, ok := data["name"].(string)
		if !ok || name == "" {
			return nil, errors.New("var: 'name' must be a non-empty string")
		}
		n := scope.Var(name)
		v, ok, err := number("value")
		if err != nil {
			return nil, err
		}
		if ok {
			n.Assign(v)
		}
		return n, nil

	case "neg", "log":
		arg, err := subTree("arg")
		if err != nil {
			return nil, err
		}
		if typ == "neg" {
			return NewNegate(arg), nil
		}
		return NewLog(arg), nil

	case "add", "mul":
		args, err := subTrees("args")
		if err != nil {
			return nil, err
		}
		if typ == "add" {
			return Build(KindAdd, args...), nil
		}
		return Build(KindMultiply, args...), nil

	case "pow":
		base, err := subTree("base")
		if err != nil {
			return nil, err
		}
		exp, err := subTree("exp")
		if err != nil {
			return nil, err
		}
		return NewPower(base, exp), nil
	}
	return nil, errors.Errorf("unknown expression type: %s", typ)
}
