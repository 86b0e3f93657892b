package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
)

// AsNumber coerces numeric storage representations into float64.
func AsNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func AsText(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func AsTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case types.Timestamp:
		return t.Time(), true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func ValuesEqual(left, right interface{}) bool {
	if left == nil || right == nil {
		return left == right
	}
	if ln, ok := AsNumber(left); ok {
		if rn, ok := AsNumber(right); ok {
			return ln == rn
		}
	}
	if lt, ok := AsTime(left); ok {
		if rt, ok := AsTime(right); ok {
			return lt.Equal(rt)
		}
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

// CompareValues returns -1/0/1 and whether the operands are ordered at all.
// Only numbers, timestamps and strings carry an ordering.
func CompareValues(left, right interface{}) (int, bool) {
	if ln, ok := AsNumber(left); ok {
		if rn, ok := AsNumber(right); ok {
			switch {
			case ln < rn:
				return -1, true
			case ln > rn:
				return 1, true
			}
			return 0, true
		}
	}
	if lt, ok := AsTime(left); ok {
		if rt, ok := AsTime(right); ok {
			switch {
			case lt.Before(rt):
				return -1, true
			case lt.After(rt):
				return 1, true
			}
			return 0, true
		}
	}
	ls, lok := AsText(left)
	rs, rok := AsText(right)
	if lok && rok {
		switch {
		case ls < rs:
			return -1, true
		case ls > rs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Stringify renders an evaluated value for template output.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	case types.Timestamp:
		return t.Time().Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}
