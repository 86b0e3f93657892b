package definition

// Definition describes one workflow/entity type: its properties, events,
// steps, forms and role actions. Immutable once loaded; shared read-only
// across all instances of that type.
type Definition struct {
	Name   string
	Title  string
	Parent string

	Properties []*PropertyDefinition
	Events     []*EventDefinition
	Steps      []*Step
	Forms      []*Form
	Actions    []*RoleAction
	Triggers   []*Trigger
	Screens    []string
}

func (d *Definition) Property(name string) *PropertyDefinition {
	for _, p := range d.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (d *Definition) Event(id string) *EventDefinition {
	for _, e := range d.Events {
		if e.Id == id {
			return e
		}
	}
	return nil
}

func (d *Definition) Step(name string) *Step {
	for _, s := range d.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (d *Definition) Form(name string) *Form {
	for _, f := range d.Forms {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type DataType string

const (
	TypeText     DataType = "text"
	TypeNumber   DataType = "number"
	TypeBool     DataType = "bool"
	TypeTime     DataType = "time"
	TypeSelect   DataType = "select"
	TypeUser     DataType = "user"
	TypeCurrency DataType = "currency"
	TypeFile     DataType = "file"

	// TypeReference points at another definition by id; TypeObject embeds
	// another definition's property set inline.
	TypeReference DataType = "reference"
	TypeObject    DataType = "object"
)

type PropertyDefinition struct {
	Name string
	// Type is the declared type string: a base type optionally suffixed
	// with "[]" (array) and/or "!" (required), or another definition's name.
	Type       string
	Visibility string

	// resolved at load time
	DataType DataType
	Ref      *Definition
	IsArray  bool
	Required bool

	Choices    []string
	ChoicesRef string

	StartCondition      *Condition
	ValidationCondition *Condition
	FilterCondition     *Condition

	// Dependents lists the properties whose conditions mention this one.
	// Derived at load time by scanning all conditions, never authored.
	Dependents []string
}

type EventDefinition struct {
	Id string
	// Suppresses lists event ids a later occurrence of this event
	// invalidates.
	Suppresses []string
}

func (e *EventDefinition) DoesSuppress(eventId string) bool {
	for _, s := range e.Suppresses {
		if s == eventId {
			return true
		}
	}
	return false
}

type HierarchyMode string

const (
	HierarchySequential HierarchyMode = "sequential"
	HierarchyParallel   HierarchyMode = "parallel"
)

type Step struct {
	Name string
	Mode HierarchyMode

	Children []*Step

	StartCondition *Condition
	EndCondition   *Condition

	Actions []string
}

type Form struct {
	Name  string
	Title string

	Questions []*Question
}

func (f *Form) Question(name string) *Question {
	for _, q := range f.Questions {
		if q.Name == name {
			return q
		}
	}
	return nil
}

type Question struct {
	Name     string
	Title    string
	Required bool
}

type RoleAction struct {
	Role      string
	Action    string
	Condition *Condition
}
