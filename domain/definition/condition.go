package definition

import (
	"fmt"
	"time"

	"caseflow/domain/expr"
)

// EvalContext is what a condition needs from an instance snapshot: the
// expression context plus event activity and occurrence times.
type EvalContext interface {
	expr.Context
	IsEventActive(eventId string) bool
	EventTime(eventId string) (time.Time, bool)
}

type CompareOp string

const (
	CompareEqual          CompareOp = "equal"
	CompareLessThan       CompareOp = "lessThan"
	CompareGreaterThan    CompareOp = "greaterThan"
	CompareGreaterOrEqual CompareOp = "greaterOrEqual"
)

type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// Condition is a predicate over an instance snapshot. Exactly one variant
// is set, enforced by the constructors; Not is applied after evaluating
// the resolved part.
type Condition struct {
	Not  bool
	part conditionPart
}

type conditionPart interface {
	isMet(ctx EvalContext) (bool, error)
	eventIds(into []string) []string
	properties(into []string) []string
}

func NewValueCondition(property string, op CompareOp, operand expr.Node, not bool) *Condition {
	return &Condition{Not: not, part: &ValueCondition{Property: property, Op: op, Operand: operand}}
}

func NewLogicalCondition(op LogicalOp, children []*Condition, not bool) *Condition {
	return &Condition{Not: not, part: &LogicalCondition{Op: op, Children: children}}
}

func NewDateCondition(property string, not bool) *Condition {
	return &Condition{Not: not, part: &DateCondition{Property: property}}
}

func NewEventCondition(eventId, notBefore string, not bool) *Condition {
	return &Condition{Not: not, part: &EventCondition{EventId: eventId, NotBefore: notBefore}}
}

func NewNamedCondition(name string, not bool) *Condition {
	return &Condition{Not: not, part: &NamedCondition{Name: name}}
}

// IsMet evaluates the condition. A nil condition is always met.
func (c *Condition) IsMet(ctx EvalContext) (bool, error) {
	if c == nil {
		return true, nil
	}
	met, err := c.part.isMet(ctx)
	if err != nil {
		return false, err
	}
	if c.Not {
		return !met, nil
	}
	return met, nil
}

// GetAllEventIds returns the deduped set of event ids reachable via event
// leaves. Date leaves are ignored.
func (c *Condition) GetAllEventIds() []string {
	if c == nil {
		return nil
	}
	return dedupStrings(c.part.eventIds(nil))
}

// Properties returns the property paths the condition depends on; it
// drives the reverse dependency edges computed at load time.
func (c *Condition) Properties() []string {
	if c == nil {
		return nil
	}
	return dedupStrings(c.part.properties(nil))
}

type ValueCondition struct {
	Property string
	Op       CompareOp
	Operand  expr.Node
}

func (v *ValueCondition) isMet(ctx EvalContext) (bool, error) {
	actual, _ := ctx.Value(v.Property)
	expected, err := v.Operand.Eval(ctx)
	if err != nil {
		return false, err
	}

	if v.Op == CompareEqual {
		// tolerate single-vs-array storage ambiguity
		if arr, ok := actual.([]interface{}); ok && len(arr) == 1 {
			actual = arr[0]
		}
		return expr.ValuesEqual(actual, expected), nil
	}

	c, ordered := expr.CompareValues(actual, expected)
	if !ordered {
		return false, nil
	}
	switch v.Op {
	case CompareLessThan:
		return c < 0, nil
	case CompareGreaterThan:
		return c > 0, nil
	case CompareGreaterOrEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported compare op '%s'", v.Op)
}

func (v *ValueCondition) eventIds(into []string) []string {
	return into
}

func (v *ValueCondition) properties(into []string) []string {
	return append(append(into, v.Property), v.Operand.Properties()...)
}

type LogicalCondition struct {
	Op       LogicalOp
	Children []*Condition
}

func (l *LogicalCondition) isMet(ctx EvalContext) (bool, error) {
	for _, child := range l.Children {
		met, err := child.IsMet(ctx)
		if err != nil {
			return false, err
		}
		if l.Op == LogicalAnd && !met {
			return false, nil
		}
		if l.Op == LogicalOr && met {
			return true, nil
		}
	}
	return l.Op == LogicalAnd, nil
}

func (l *LogicalCondition) eventIds(into []string) []string {
	for _, child := range l.Children {
		if child != nil {
			into = child.part.eventIds(into)
		}
	}
	return into
}

func (l *LogicalCondition) properties(into []string) []string {
	for _, child := range l.Children {
		if child != nil {
			into = child.part.properties(into)
		}
	}
	return into
}

// DateCondition is met when the referenced property holds a timestamp
// that has passed.
type DateCondition struct {
	Property string
}

func (d *DateCondition) isMet(ctx EvalContext) (bool, error) {
	v, found := ctx.Value(d.Property)
	if !found {
		return false, nil
	}
	t, ok := expr.AsTime(v)
	if !ok {
		return false, nil
	}
	return !t.After(ctx.Now()), nil
}

func (d *DateCondition) eventIds(into []string) []string {
	return into
}

func (d *DateCondition) properties(into []string) []string {
	return append(into, d.Property)
}

// EventCondition is met when the named event is currently active, i.e.
// recorded and not suppressed by a later mutually-exclusive event. The
// optional NotBefore constraint additionally requires the event not to
// predate another event's occurrence.
type EventCondition struct {
	EventId   string
	NotBefore string
}

func (e *EventCondition) isMet(ctx EvalContext) (bool, error) {
	if !ctx.IsEventActive(e.EventId) {
		return false, nil
	}
	if e.NotBefore != "" {
		other, otherFound := ctx.EventTime(e.NotBefore)
		own, ownFound := ctx.EventTime(e.EventId)
		if otherFound && ownFound && own.Before(other) {
			return false, nil
		}
	}
	return true, nil
}

func (e *EventCondition) eventIds(into []string) []string {
	into = append(into, e.EventId)
	if e.NotBefore != "" {
		into = append(into, e.NotBefore)
	}
	return into
}

func (e *EventCondition) properties(into []string) []string {
	return into
}

// NamedCondition references a shared condition document; Resolved is wired
// during the load phase and never changes afterwards.
type NamedCondition struct {
	Name     string
	Resolved *Condition
}

func (n *NamedCondition) isMet(ctx EvalContext) (bool, error) {
	if n.Resolved == nil {
		return false, fmt.Errorf("named condition '%s' is not resolved", n.Name)
	}
	return n.Resolved.IsMet(ctx)
}

func (n *NamedCondition) eventIds(into []string) []string {
	if n.Resolved != nil {
		into = n.Resolved.part.eventIds(into)
	}
	return into
}

func (n *NamedCondition) properties(into []string) []string {
	if n.Resolved != nil {
		into = n.Resolved.part.properties(into)
	}
	return into
}

// Part exposes the resolved variant for load-time wiring.
func (c *Condition) Part() interface{} {
	if c == nil {
		return nil
	}
	return c.part
}

func dedupStrings(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := map[string]bool{}
	result := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}
