package instance

import (
	"fmt"
	"strings"
	"time"

	"caseflow/domain/definition"
	"caseflow/domain/expr"

	"github.com/fundwit/go-commons/types"
)

// ComplexResolver resolves non-builtin function calls in expressions;
// the implementation is external and pluggable.
type ComplexResolver interface {
	Resolve(name string, args []expr.Node, ctx *Context) (interface{}, error)
}

// Context is the flattened, typed snapshot of one instance: converted
// property values, synthetic event-occurrence entries and the computed
// standard fields. It is built once per evaluation pass and satisfies
// the condition engine's evaluation contract.
type Context struct {
	Def      *definition.Definition
	Events   EventMap
	Resolver ComplexResolver
	// Clock overrides the ambient clock, for tests
	Clock func() time.Time

	values map[string]interface{}
}

// BuildContext converts an instance's stored raw values into a typed
// snapshot: every stored property matching a known property definition
// is converted by its declared type; every dated event contributes a
// synthetic <EventId>Event entry; Id, CurrentStep and CreateDate are
// always present.
func BuildContext(inst *WorkflowInstance, d *definition.Definition) *Context {
	c := &Context{
		Def:    d,
		Events: inst.Events,
		values: map[string]interface{}{},
	}

	for name, raw := range inst.Properties {
		p := d.Property(rootSegment(name))
		if p == nil {
			continue
		}
		c.values[name] = convertValue(p, raw)
	}

	for id, e := range inst.Events {
		if e != nil && e.Time != nil {
			c.values[id+"Event"] = e.Time.Time()
		}
	}

	c.values["Id"] = inst.ID.String()
	c.values["CurrentStep"] = inst.CurrentStep
	c.values["CreateDate"] = inst.CreateTime.Time()

	return c
}

// Value looks a dotted path up: an exact match first, then a nested walk
// segment by segment, vectorizing transparently over arrays.
func (c *Context) Value(path string) (interface{}, bool) {
	if v, found := c.values[path]; found {
		return v, true
	}

	segments := strings.Split(path, ".")
	current, found := c.values[segments[0]]
	if !found {
		return nil, false
	}
	for _, segment := range segments[1:] {
		current, found = lookupSegment(current, segment)
		if !found {
			return nil, false
		}
	}
	return current, true
}

func (c *Context) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Context) ResolveComplex(name string, args []expr.Node) (interface{}, error) {
	if c.Resolver == nil {
		return nil, fmt.Errorf("no resolver for complex lookup '%s'", name)
	}
	return c.Resolver.Resolve(name, args, c)
}

func (c *Context) IsEventActive(eventId string) bool {
	return IsEventActive(c.Def, c.Events, eventId)
}

func (c *Context) EventTime(eventId string) (time.Time, bool) {
	e := c.Events[eventId]
	if e == nil || e.Time == nil {
		return time.Time{}, false
	}
	return e.Time.Time(), true
}

func rootSegment(path string) string {
	if i := strings.Index(path, "."); i > 0 {
		return path[:i]
	}
	return path
}

func lookupSegment(v interface{}, segment string) (interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		value, found := t[segment]
		return value, found
	case PropertyBag:
		value, found := t[segment]
		return value, found
	case []interface{}:
		// a path applied to an array of objects yields the array of
		// per-element values
		results := make([]interface{}, 0, len(t))
		any := false
		for _, item := range t {
			value, found := lookupSegment(item, segment)
			if found {
				any = true
			}
			results = append(results, value)
		}
		return results, any
	case UserRef:
		switch segment {
		case "Id":
			return t.ID.String(), true
		case "Name":
			return t.Name, true
		}
	case CurrencyAmount:
		switch segment {
		case "Amount":
			return t.Amount, true
		case "Currency":
			return t.Currency, true
		}
	case FileRef:
		switch segment {
		case "Id":
			return t.ID, true
		case "Name":
			return t.Name, true
		}
	}
	return nil, false
}

func convertValue(p *definition.PropertyDefinition, raw interface{}) interface{} {
	if raw == nil {
		return nil
	}
	if p.IsArray {
		if arr, ok := raw.([]interface{}); ok {
			converted := make([]interface{}, 0, len(arr))
			for _, item := range arr {
				converted = append(converted, convertScalar(p, item))
			}
			return converted
		}
		// tolerate single-vs-array storage ambiguity
		return []interface{}{convertScalar(p, raw)}
	}
	return convertScalar(p, raw)
}

func convertScalar(p *definition.PropertyDefinition, raw interface{}) interface{} {
	switch p.DataType {
	case definition.TypeText, definition.TypeSelect:
		if s, ok := raw.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", raw)
	case definition.TypeNumber:
		if n, ok := expr.AsNumber(raw); ok {
			return n
		}
		return raw
	case definition.TypeBool:
		if b, ok := raw.(bool); ok {
			return b
		}
		return raw
	case definition.TypeTime:
		if t, ok := expr.AsTime(raw); ok {
			return t
		}
		return raw
	case definition.TypeUser:
		if m, ok := raw.(map[string]interface{}); ok {
			ref := UserRef{Name: asString(m["name"])}
			if id, err := types.ParseID(asString(m["id"])); err == nil {
				ref.ID = id
			}
			return ref
		}
		return raw
	case definition.TypeCurrency:
		if m, ok := raw.(map[string]interface{}); ok {
			amount, _ := expr.AsNumber(m["amount"])
			return CurrencyAmount{Amount: amount, Currency: asString(m["currency"])}
		}
		return raw
	case definition.TypeFile:
		if m, ok := raw.(map[string]interface{}); ok {
			return FileRef{ID: asString(m["id"]), Name: asString(m["name"])}
		}
		return raw
	case definition.TypeObject:
		if m, ok := raw.(map[string]interface{}); ok && p.Ref != nil {
			converted := map[string]interface{}{}
			for name, value := range m {
				if nested := p.Ref.Property(name); nested != nil {
					converted[name] = convertValue(nested, value)
				} else {
					converted[name] = value
				}
			}
			return converted
		}
		return raw
	case definition.TypeReference:
		return asString(raw)
	}
	return raw
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
