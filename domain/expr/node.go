package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Context is the evaluation substrate of an expression: a flattened view
// over an instance's properties plus the ambient clock and the resolver
// for non-builtin calls.
type Context interface {
	Value(path string) (interface{}, bool)
	Now() time.Time
	ResolveComplex(name string, args []Node) (interface{}, error)
}

type Node interface {
	Eval(ctx Context) (interface{}, error)
	// Properties returns the property paths this node depends on, deduped.
	// A call to a non-builtin function contributes itself as one opaque
	// complex dependency instead of its argument paths.
	Properties() []string
	String() string
}

const IdentNow = "now"

type Ident struct {
	Path string
}

func (n *Ident) Eval(ctx Context) (interface{}, error) {
	if n.Path == IdentNow {
		return ctx.Now(), nil
	}
	v, _ := ctx.Value(n.Path)
	return v, nil
}

func (n *Ident) Properties() []string {
	if n.Path == IdentNow {
		return nil
	}
	return []string{n.Path}
}

func (n *Ident) String() string {
	return n.Path
}

type Number struct {
	Value float64
}

func (n *Number) Eval(ctx Context) (interface{}, error) {
	return n.Value, nil
}
func (n *Number) Properties() []string {
	return nil
}
func (n *Number) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

type Bool struct {
	Value bool
}

func (n *Bool) Eval(ctx Context) (interface{}, error) {
	return n.Value, nil
}
func (n *Bool) Properties() []string {
	return nil
}
func (n *Bool) String() string {
	return strconv.FormatBool(n.Value)
}

type Text struct {
	Value string
}

func (n *Text) Eval(ctx Context) (interface{}, error) {
	return n.Value, nil
}
func (n *Text) Properties() []string {
	return nil
}
func (n *Text) String() string {
	return "'" + n.Value + "'"
}

type Call struct {
	Name string
	Args []Node
}

func (n *Call) Eval(ctx Context) (interface{}, error) {
	if fn, found := builtinFuncs[n.Name]; found {
		return fn(ctx, n.Args)
	}
	return ctx.ResolveComplex(n.Name, n.Args)
}

func (n *Call) Properties() []string {
	if _, found := builtinFuncs[n.Name]; !found {
		return []string{n.String()}
	}
	var all []string
	for _, arg := range n.Args {
		all = append(all, arg.Properties()...)
	}
	return dedup(all)
}

func (n *Call) String() string {
	args := make([]string, 0, len(n.Args))
	for _, arg := range n.Args {
		args = append(args, arg.String())
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

const (
	OpEqual          = "=="
	OpLessOrEqual    = "<="
	OpGreaterOrEqual = ">="
)

type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (n *Binary) Eval(ctx Context) (interface{}, error) {
	left, err := n.Left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpEqual:
		return ValuesEqual(left, right), nil
	case OpLessOrEqual:
		c, ok := CompareValues(left, right)
		return ok && c <= 0, nil
	case OpGreaterOrEqual:
		c, ok := CompareValues(left, right)
		return ok && c >= 0, nil
	}
	return nil, fmt.Errorf("unsupported operator '%s'", n.Op)
}

func (n *Binary) Properties() []string {
	return dedup(append(n.Left.Properties(), n.Right.Properties()...))
}

func (n *Binary) String() string {
	return n.Left.String() + " " + n.Op + " " + n.Right.String()
}

type Index struct {
	Target Node
	Key    Node
}

func (n *Index) Eval(ctx Context) (interface{}, error) {
	target, err := n.Target.Eval(ctx)
	if err != nil {
		return nil, err
	}
	key, err := n.Key.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch t := target.(type) {
	case []interface{}:
		i, ok := AsNumber(key)
		if !ok || int(i) < 0 || int(i) >= len(t) {
			return nil, nil
		}
		return t[int(i)], nil
	case map[string]interface{}:
		k, ok := AsText(key)
		if !ok {
			return nil, nil
		}
		return t[k], nil
	}
	return nil, nil
}

func (n *Index) Properties() []string {
	return dedup(append(n.Target.Properties(), n.Key.Properties()...))
}

func (n *Index) String() string {
	return n.Target.String() + "[" + n.Key.String() + "]"
}

func dedup(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	seen := map[string]bool{}
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}
