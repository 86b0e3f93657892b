package definition

import (
	"sort"

	"caseflow/bizerror"
	"caseflow/session"
)

// Projections returned by the REST surface. The loaded graph itself
// carries parsed conditions and resolved references that are not
// meaningful to serialize.
type DefinitionBrief struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Parent string `json:"parent,omitempty"`
}

type PropertyBrief struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	DataType string `json:"dataType"`
	Required bool   `json:"required"`
	IsArray  bool   `json:"isArray"`
}

type EventBrief struct {
	Id         string   `json:"id"`
	Suppresses []string `json:"suppresses,omitempty"`
}

type StepBrief struct {
	Name     string      `json:"name"`
	Mode     string      `json:"mode,omitempty"`
	Actions  []string    `json:"actions,omitempty"`
	Children []StepBrief `json:"children,omitempty"`
}

type QuestionBrief struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Required bool   `json:"required"`
}

type FormBrief struct {
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Questions []QuestionBrief `json:"questions"`
}

type DefinitionDetail struct {
	DefinitionBrief

	Properties []PropertyBrief `json:"properties"`
	Events     []EventBrief    `json:"events"`
	Steps      []StepBrief     `json:"steps"`
	Forms      []FormBrief     `json:"forms"`
	Screens    []string        `json:"screens,omitempty"`
}

var (
	ListDefinitionsFunc  = ListDefinitions
	DetailDefinitionFunc = DetailDefinition
)

// ListDefinitions returns the definitions the session may see, ordered
// by name.
func ListDefinitions(s *session.Session) []DefinitionBrief {
	briefs := []DefinitionBrief{}
	if ActiveLoader == nil {
		return briefs
	}
	for name, d := range ActiveLoader.Definitions {
		if !s.Perms.HasDefinitionViewPerm(name) {
			continue
		}
		briefs = append(briefs, DefinitionBrief{Name: d.Name, Title: d.Title, Parent: d.Parent})
	}
	sort.Slice(briefs, func(i, j int) bool { return briefs[i].Name < briefs[j].Name })
	return briefs
}

func DetailDefinition(name string, s *session.Session) (*DefinitionDetail, error) {
	if !s.Perms.HasDefinitionViewPerm(name) {
		return nil, bizerror.ErrForbidden
	}
	d, err := FindDefinitionFunc(name)
	if err != nil {
		return nil, err
	}

	detail := DefinitionDetail{
		DefinitionBrief: DefinitionBrief{Name: d.Name, Title: d.Title, Parent: d.Parent},
		Properties:      []PropertyBrief{},
		Events:          []EventBrief{},
		Steps:           []StepBrief{},
		Forms:           []FormBrief{},
		Screens:         d.Screens,
	}
	for _, p := range d.Properties {
		detail.Properties = append(detail.Properties, PropertyBrief{
			Name: p.Name, Type: p.Type, DataType: string(p.DataType),
			Required: p.Required, IsArray: p.IsArray})
	}
	for _, e := range d.Events {
		detail.Events = append(detail.Events, EventBrief{Id: e.Id, Suppresses: e.Suppresses})
	}
	for _, step := range d.Steps {
		detail.Steps = append(detail.Steps, stepBrief(step))
	}
	for _, f := range d.Forms {
		form := FormBrief{Name: f.Name, Title: f.Title, Questions: []QuestionBrief{}}
		for _, q := range f.Questions {
			form.Questions = append(form.Questions, QuestionBrief{Name: q.Name, Title: q.Title, Required: q.Required})
		}
		detail.Forms = append(detail.Forms, form)
	}
	return &detail, nil
}

func stepBrief(s *Step) StepBrief {
	b := StepBrief{Name: s.Name, Mode: string(s.Mode), Actions: s.Actions}
	for _, child := range s.Children {
		b.Children = append(b.Children, stepBrief(child))
	}
	return b
}
