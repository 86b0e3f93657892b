package expr

import (
	"fmt"
	"strings"
)

type builtinFunc func(ctx Context, args []Node) (interface{}, error)

// The fixed builtin table. A call to any other name is a complex lookup
// resolved by the context's external resolver.
var builtinFuncs = map[string]builtinFunc{
	"addDays":  builtinAddDays,
	"if":       builtinIf,
	"contains": builtinContains,
	"and":      builtinAnd,
	"or":       builtinOr,
	"not":      builtinNot,
	"concat":   builtinConcat,
	"lower":    builtinLower,
	"upper":    builtinUpper,
}

func IsBuiltin(name string) bool {
	_, found := builtinFuncs[name]
	return found
}

func evalAll(ctx Context, args []Node) ([]interface{}, error) {
	values := make([]interface{}, 0, len(args))
	for _, arg := range args {
		v, err := arg.Eval(ctx)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := AsNumber(v); ok {
		return n != 0
	}
	return true
}

func builtinAddDays(ctx Context, args []Node) (interface{}, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("addDays expects 2 arguments, got %d", len(values))
	}
	t, ok := AsTime(values[0])
	if !ok {
		return nil, nil
	}
	days, ok := AsNumber(values[1])
	if !ok {
		return nil, fmt.Errorf("addDays: second argument is not a number")
	}
	return t.AddDate(0, 0, int(days)), nil
}

func builtinIf(ctx Context, args []Node) (interface{}, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("if expects 3 arguments, got %d", len(args))
	}
	cond, err := args[0].Eval(ctx)
	if err != nil {
		return nil, err
	}
	if isTruthy(cond) {
		return args[1].Eval(ctx)
	}
	return args[2].Eval(ctx)
}

func builtinContains(ctx Context, args []Node) (interface{}, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(values))
	}
	switch coll := values[0].(type) {
	case []interface{}:
		for _, item := range coll {
			if ValuesEqual(item, values[1]) {
				return true, nil
			}
		}
		return false, nil
	case string:
		needle, _ := AsText(values[1])
		return strings.Contains(coll, needle), nil
	}
	return false, nil
}

func builtinAnd(ctx Context, args []Node) (interface{}, error) {
	for _, arg := range args {
		v, err := arg.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func builtinOr(ctx Context, args []Node) (interface{}, error) {
	for _, arg := range args {
		v, err := arg.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if isTruthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func builtinNot(ctx Context, args []Node) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("not expects 1 argument, got %d", len(args))
	}
	v, err := args[0].Eval(ctx)
	if err != nil {
		return nil, err
	}
	return !isTruthy(v), nil
}

func builtinConcat(ctx Context, args []Node) (interface{}, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteString(Stringify(v))
	}
	return b.String(), nil
}

func builtinLower(ctx Context, args []Node) (interface{}, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("lower expects 1 argument, got %d", len(values))
	}
	return strings.ToLower(Stringify(values[0])), nil
}

func builtinUpper(ctx Context, args []Node) (interface{}, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("upper expects 1 argument, got %d", len(values))
	}
	return strings.ToUpper(Stringify(values[0])), nil
}
