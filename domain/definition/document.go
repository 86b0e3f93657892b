package definition

import (
	"fmt"
	"time"

	"caseflow/domain/expr"
)

// Document structs mirror the YAML shape of definition and shared
// documents. They are short-lived: the loader builds the immutable
// definition graph from them and throws them away.

type definitionDoc struct {
	Name   string `yaml:"name"`
	Title  string `yaml:"title"`
	Parent string `yaml:"parent"`

	Properties []*propertyDoc   `yaml:"properties"`
	Events     []*eventDoc      `yaml:"events"`
	Steps      []*stepDoc       `yaml:"steps"`
	Forms      []*formDoc       `yaml:"forms"`
	Actions    []*roleActionDoc `yaml:"actions"`
	Triggers   []*triggerDoc    `yaml:"triggers"`
	Screens    []string         `yaml:"screens"`
}

type propertyDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Visibility string `yaml:"visibility"`

	Choices    []string `yaml:"choices"`
	ChoicesRef string   `yaml:"choicesRef"`

	Start      *conditionDoc `yaml:"start"`
	Validation *conditionDoc `yaml:"validation"`
	Filter     *conditionDoc `yaml:"filter"`
}

type eventDoc struct {
	Id         string   `yaml:"id"`
	Suppresses []string `yaml:"suppresses"`
}

type stepDoc struct {
	Name     string        `yaml:"name"`
	Mode     string        `yaml:"mode"`
	Children []*stepDoc    `yaml:"children"`
	Start    *conditionDoc `yaml:"start"`
	End      *conditionDoc `yaml:"end"`
	Actions  []string      `yaml:"actions"`
}

type formDoc struct {
	Name      string         `yaml:"name"`
	Title     string         `yaml:"title"`
	Questions []*questionDoc `yaml:"questions"`
}

type questionDoc struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Required bool   `yaml:"required"`
}

type roleActionDoc struct {
	Role      string        `yaml:"role"`
	Action    string        `yaml:"action"`
	Condition *conditionDoc `yaml:"condition"`
}

type triggerDoc struct {
	Name              string        `yaml:"name"`
	On                string        `yaml:"on"`
	Condition         *conditionDoc `yaml:"condition"`
	SendAutomatically bool          `yaml:"sendAutomatically"`
	DelayMinutes      int           `yaml:"delayMinutes"`
	Effects           []*effectDoc  `yaml:"effects"`
}

type effectDoc struct {
	RecordEvent string          `yaml:"recordEvent"`
	UndoEvent   string          `yaml:"undoEvent"`
	SetProperty *setPropertyDoc `yaml:"setProperty"`
	SendMessage *sendMessageDoc `yaml:"sendMessage"`
}

type setPropertyDoc struct {
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
}

type sendMessageDoc struct {
	Recipient string `yaml:"recipient"`
	Subject   string `yaml:"subject"`
	Body      string `yaml:"body"`
	Message   string `yaml:"message"`
}

type conditionDoc struct {
	Not bool `yaml:"not"`

	Value   *valueConditionDoc   `yaml:"value"`
	Logical *logicalConditionDoc `yaml:"logical"`
	Date    *dateConditionDoc    `yaml:"date"`
	Event   *eventConditionDoc   `yaml:"event"`
	Name    string               `yaml:"name"`
}

type valueConditionDoc struct {
	Property string `yaml:"property"`
	Op       string `yaml:"op"`
	Operand  string `yaml:"operand"`
}

type logicalConditionDoc struct {
	Op         string          `yaml:"op"`
	Conditions []*conditionDoc `yaml:"conditions"`
}

type dateConditionDoc struct {
	Property string `yaml:"property"`
}

type eventConditionDoc struct {
	Id        string `yaml:"id"`
	NotBefore string `yaml:"notBefore"`
}

type sharedDoc struct {
	Conditions map[string]*conditionDoc `yaml:"conditions"`
	ValueSets  map[string][]string      `yaml:"valueSets"`
	Roles      map[string]string        `yaml:"roles"`
	Messages   map[string]*messageDoc   `yaml:"messages"`
}

type messageDoc struct {
	Recipient string `yaml:"recipient"`
	Subject   string `yaml:"subject"`
	Body      string `yaml:"body"`
}

// builder converts documents into the domain model, parsing embedded
// expression sources through the loader's shared cache.
type builder struct {
	cache *expr.Cache
}

func (b *builder) buildDefinition(doc *definitionDoc) (*Definition, error) {
	d := &Definition{
		Name:    doc.Name,
		Title:   doc.Title,
		Parent:  doc.Parent,
		Screens: append([]string{}, doc.Screens...),
	}
	for _, p := range doc.Properties {
		property, err := b.buildProperty(p)
		if err != nil {
			return nil, fmt.Errorf("property '%s': %w", p.Name, err)
		}
		d.Properties = append(d.Properties, property)
	}
	for _, e := range doc.Events {
		d.Events = append(d.Events, &EventDefinition{Id: e.Id, Suppresses: append([]string{}, e.Suppresses...)})
	}
	for _, s := range doc.Steps {
		step, err := b.buildStep(s)
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", s.Name, err)
		}
		d.Steps = append(d.Steps, step)
	}
	for _, f := range doc.Forms {
		d.Forms = append(d.Forms, buildForm(f))
	}
	for _, a := range doc.Actions {
		condition, err := b.buildCondition(a.Condition)
		if err != nil {
			return nil, fmt.Errorf("action '%s': %w", a.Action, err)
		}
		d.Actions = append(d.Actions, &RoleAction{Role: a.Role, Action: a.Action, Condition: condition})
	}
	for _, t := range doc.Triggers {
		trigger, err := b.buildTrigger(t)
		if err != nil {
			return nil, fmt.Errorf("trigger '%s': %w", t.Name, err)
		}
		d.Triggers = append(d.Triggers, trigger)
	}
	return d, nil
}

func (b *builder) buildProperty(doc *propertyDoc) (*PropertyDefinition, error) {
	start, err := b.buildCondition(doc.Start)
	if err != nil {
		return nil, err
	}
	validation, err := b.buildCondition(doc.Validation)
	if err != nil {
		return nil, err
	}
	filter, err := b.buildCondition(doc.Filter)
	if err != nil {
		return nil, err
	}
	return &PropertyDefinition{
		Name:                doc.Name,
		Type:                doc.Type,
		Visibility:          doc.Visibility,
		Choices:             append([]string{}, doc.Choices...),
		ChoicesRef:          doc.ChoicesRef,
		StartCondition:      start,
		ValidationCondition: validation,
		FilterCondition:     filter,
	}, nil
}

func (b *builder) buildStep(doc *stepDoc) (*Step, error) {
	start, err := b.buildCondition(doc.Start)
	if err != nil {
		return nil, err
	}
	end, err := b.buildCondition(doc.End)
	if err != nil {
		return nil, err
	}
	mode := HierarchyMode(doc.Mode)
	if mode == "" {
		mode = HierarchySequential
	}
	if mode != HierarchySequential && mode != HierarchyParallel {
		return nil, fmt.Errorf("unknown hierarchy mode '%s'", doc.Mode)
	}
	step := &Step{
		Name:           doc.Name,
		Mode:           mode,
		StartCondition: start,
		EndCondition:   end,
		Actions:        append([]string{}, doc.Actions...),
	}
	for _, c := range doc.Children {
		child, err := b.buildStep(c)
		if err != nil {
			return nil, err
		}
		step.Children = append(step.Children, child)
	}
	return step, nil
}

func buildForm(doc *formDoc) *Form {
	form := &Form{Name: doc.Name, Title: doc.Title}
	for _, q := range doc.Questions {
		form.Questions = append(form.Questions, &Question{Name: q.Name, Title: q.Title, Required: q.Required})
	}
	return form
}

func (b *builder) buildTrigger(doc *triggerDoc) (*Trigger, error) {
	condition, err := b.buildCondition(doc.Condition)
	if err != nil {
		return nil, err
	}
	trigger := &Trigger{
		Name:              doc.Name,
		On:                doc.On,
		Condition:         condition,
		SendAutomatically: doc.SendAutomatically,
		Delay:             time.Duration(doc.DelayMinutes) * time.Minute,
	}
	for i, e := range doc.Effects {
		effect, err := b.buildEffect(e)
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		trigger.Effects = append(trigger.Effects, effect)
	}
	return trigger, nil
}

func (b *builder) buildEffect(doc *effectDoc) (*Effect, error) {
	kinds := 0
	if doc.RecordEvent != "" {
		kinds++
	}
	if doc.UndoEvent != "" {
		kinds++
	}
	if doc.SetProperty != nil {
		kinds++
	}
	if doc.SendMessage != nil {
		kinds++
	}
	if kinds != 1 {
		return nil, fmt.Errorf("an effect must declare exactly one of recordEvent, undoEvent, setProperty, sendMessage")
	}

	switch {
	case doc.RecordEvent != "":
		return &Effect{Kind: EffectRecordEvent, Event: doc.RecordEvent}, nil
	case doc.UndoEvent != "":
		return &Effect{Kind: EffectUndoEvent, Event: doc.UndoEvent}, nil
	case doc.SetProperty != nil:
		value, err := b.cache.Parse(doc.SetProperty.Value)
		if err != nil {
			return nil, err
		}
		return &Effect{Kind: EffectSetProperty, Property: doc.SetProperty.Property, Value: value}, nil
	}

	effect := &Effect{Kind: EffectSendMessage, MessageRef: doc.SendMessage.Message}
	if doc.SendMessage.Recipient != "" {
		t, err := b.cache.ParseTemplate(doc.SendMessage.Recipient)
		if err != nil {
			return nil, err
		}
		effect.Recipient = t
	}
	if doc.SendMessage.Subject != "" {
		t, err := b.cache.ParseTemplate(doc.SendMessage.Subject)
		if err != nil {
			return nil, err
		}
		effect.Subject = t
	}
	if doc.SendMessage.Body != "" {
		t, err := b.cache.ParseTemplate(doc.SendMessage.Body)
		if err != nil {
			return nil, err
		}
		effect.Body = t
	}
	return effect, nil
}

func (b *builder) buildCondition(doc *conditionDoc) (*Condition, error) {
	if doc == nil {
		return nil, nil
	}

	variants := 0
	if doc.Value != nil {
		variants++
	}
	if doc.Logical != nil {
		variants++
	}
	if doc.Date != nil {
		variants++
	}
	if doc.Event != nil {
		variants++
	}
	if doc.Name != "" {
		variants++
	}
	if variants != 1 {
		return nil, fmt.Errorf("a condition must declare exactly one of value, logical, date, event, name")
	}

	switch {
	case doc.Value != nil:
		op := CompareOp(doc.Value.Op)
		if op == "" {
			op = CompareEqual
		}
		switch op {
		case CompareEqual, CompareLessThan, CompareGreaterThan, CompareGreaterOrEqual:
		default:
			return nil, fmt.Errorf("unknown compare op '%s'", doc.Value.Op)
		}
		operand, err := b.cache.Parse(doc.Value.Operand)
		if err != nil {
			return nil, err
		}
		return NewValueCondition(doc.Value.Property, op, operand, doc.Not), nil
	case doc.Logical != nil:
		op := LogicalOp(doc.Logical.Op)
		if op != LogicalAnd && op != LogicalOr {
			return nil, fmt.Errorf("unknown logical op '%s'", doc.Logical.Op)
		}
		var children []*Condition
		for _, c := range doc.Logical.Conditions {
			child, err := b.buildCondition(c)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return NewLogicalCondition(op, children, doc.Not), nil
	case doc.Date != nil:
		return NewDateCondition(doc.Date.Property, doc.Not), nil
	case doc.Event != nil:
		return NewEventCondition(doc.Event.Id, doc.Event.NotBefore, doc.Not), nil
	}
	return NewNamedCondition(doc.Name, doc.Not), nil
}

func (b *builder) buildMessage(name string, doc *messageDoc) (*MessageTemplate, error) {
	message := &MessageTemplate{Name: name}
	var err error
	if message.Recipient, err = b.cache.ParseTemplate(doc.Recipient); err != nil {
		return nil, err
	}
	if message.Subject, err = b.cache.ParseTemplate(doc.Subject); err != nil {
		return nil, err
	}
	if message.Body, err = b.cache.ParseTemplate(doc.Body); err != nil {
		return nil, err
	}
	return message, nil
}
