package definition

// Inheritance and fragment merging. Both happen exclusively during the
// load phase and produce fresh structures: a child definition never
// aliases its parent's mutable parts, because the wiring pass mutates
// properties (resolved types, dependent edges) per definition.

// mergeDocs overlays a fragment document over a base document; the
// fragment wins field by field, lists merge by name.
func mergeDocs(fragment, base *definitionDoc) *definitionDoc {
	merged := &definitionDoc{
		Name:   fallback(fragment.Name, base.Name),
		Title:  fallback(fragment.Title, base.Title),
		Parent: fallback(fragment.Parent, base.Parent),
	}

	merged.Properties = fragment.Properties
	for _, p := range base.Properties {
		if findPropertyDoc(merged.Properties, p.Name) == nil {
			merged.Properties = append(merged.Properties, p)
		}
	}

	merged.Events = fragment.Events
	for _, e := range base.Events {
		if findEventDoc(merged.Events, e.Id) == nil {
			merged.Events = append(merged.Events, e)
		}
	}

	merged.Steps = mergeStepDocs(fragment.Steps, base.Steps)
	merged.Forms = mergeFormDocs(fragment.Forms, base.Forms)

	merged.Actions = fragment.Actions
	for _, a := range base.Actions {
		if findActionDoc(merged.Actions, a.Role, a.Action) == nil {
			merged.Actions = append(merged.Actions, a)
		}
	}

	merged.Triggers = fragment.Triggers
	for _, t := range base.Triggers {
		if findTriggerDoc(merged.Triggers, t.Name) == nil {
			merged.Triggers = append(merged.Triggers, t)
		}
	}

	merged.Screens = unionStrings(fragment.Screens, base.Screens)
	return merged
}

func mergeStepDocs(primary, secondary []*stepDoc) []*stepDoc {
	merged := make([]*stepDoc, 0, len(primary))
	for _, s := range primary {
		if other := findStepDoc(secondary, s.Name); other != nil {
			merged = append(merged, &stepDoc{
				Name:     s.Name,
				Mode:     fallback(s.Mode, other.Mode),
				Children: mergeStepDocs(s.Children, other.Children),
				Start:    fallbackCondition(s.Start, other.Start),
				End:      fallbackCondition(s.End, other.End),
				Actions:  unionStrings(s.Actions, other.Actions),
			})
		} else {
			merged = append(merged, s)
		}
	}
	for _, s := range secondary {
		if findStepDoc(primary, s.Name) == nil {
			merged = append(merged, s)
		}
	}
	return merged
}

func mergeFormDocs(primary, secondary []*formDoc) []*formDoc {
	merged := make([]*formDoc, 0, len(primary))
	for _, f := range primary {
		if other := findFormDoc(secondary, f.Name); other != nil {
			questions := f.Questions
			for _, q := range other.Questions {
				if findQuestionDoc(questions, q.Name) == nil {
					questions = append(questions, q)
				}
			}
			merged = append(merged, &formDoc{Name: f.Name, Title: fallback(f.Title, other.Title), Questions: questions})
		} else {
			merged = append(merged, f)
		}
	}
	for _, f := range secondary {
		if findFormDoc(primary, f.Name) == nil {
			merged = append(merged, f)
		}
	}
	return merged
}

// mergeDefinitions merges a built child definition with its already
// loaded parent: forms and steps merge by name recursively, the property
// list is additive (child overrides win by omission), events, screens and
// actions are unioned, scalar metadata falls back to the parent.
func mergeDefinitions(child, parent *Definition) *Definition {
	merged := &Definition{
		Name:   child.Name,
		Title:  fallback(child.Title, parent.Title),
		Parent: child.Parent,
	}

	merged.Properties = child.Properties
	for _, p := range parent.Properties {
		if findProperty(merged.Properties, p.Name) == nil {
			merged.Properties = append(merged.Properties, copyProperty(p))
		}
	}

	merged.Events = child.Events
	for _, e := range parent.Events {
		if findEvent(merged.Events, e.Id) == nil {
			merged.Events = append(merged.Events, &EventDefinition{Id: e.Id, Suppresses: append([]string{}, e.Suppresses...)})
		}
	}

	merged.Steps = mergeSteps(child.Steps, parent.Steps)
	merged.Forms = mergeForms(child.Forms, parent.Forms)

	merged.Actions = child.Actions
	for _, a := range parent.Actions {
		if findAction(merged.Actions, a.Role, a.Action) == nil {
			merged.Actions = append(merged.Actions, &RoleAction{Role: a.Role, Action: a.Action, Condition: a.Condition})
		}
	}

	merged.Triggers = child.Triggers
	for _, t := range parent.Triggers {
		if findTrigger(merged.Triggers, t.Name) == nil {
			merged.Triggers = append(merged.Triggers, t)
		}
	}

	merged.Screens = unionStrings(child.Screens, parent.Screens)
	return merged
}

func mergeSteps(primary, secondary []*Step) []*Step {
	merged := make([]*Step, 0, len(primary))
	for _, s := range primary {
		if other := findStep(secondary, s.Name); other != nil {
			mode := s.Mode
			if mode == "" {
				mode = other.Mode
			}
			start := s.StartCondition
			if start == nil {
				start = other.StartCondition
			}
			end := s.EndCondition
			if end == nil {
				end = other.EndCondition
			}
			merged = append(merged, &Step{
				Name:           s.Name,
				Mode:           mode,
				Children:       mergeSteps(s.Children, other.Children),
				StartCondition: start,
				EndCondition:   end,
				Actions:        unionStrings(s.Actions, other.Actions),
			})
		} else {
			merged = append(merged, s)
		}
	}
	for _, s := range secondary {
		if findStep(primary, s.Name) == nil {
			merged = append(merged, copyStep(s))
		}
	}
	return merged
}

func mergeForms(primary, secondary []*Form) []*Form {
	merged := make([]*Form, 0, len(primary))
	for _, f := range primary {
		if other := findForm(secondary, f.Name); other != nil {
			questions := f.Questions
			for _, q := range other.Questions {
				if findQuestion(questions, q.Name) == nil {
					questions = append(questions, &Question{Name: q.Name, Title: q.Title, Required: q.Required})
				}
			}
			merged = append(merged, &Form{Name: f.Name, Title: fallback(f.Title, other.Title), Questions: questions})
		} else {
			merged = append(merged, f)
		}
	}
	for _, f := range secondary {
		if findForm(primary, f.Name) == nil {
			merged = append(merged, copyForm(f))
		}
	}
	return merged
}

// copyProperty detaches a parent property so per-definition wiring never
// leaks into the parent graph. Conditions are shared: they are immutable
// after shared-name resolution, which is identical for every definition.
func copyProperty(p *PropertyDefinition) *PropertyDefinition {
	c := *p
	c.Choices = append([]string{}, p.Choices...)
	c.Dependents = nil
	c.Ref = nil
	c.DataType = ""
	c.IsArray = false
	c.Required = false
	return &c
}

func copyStep(s *Step) *Step {
	c := &Step{
		Name:           s.Name,
		Mode:           s.Mode,
		StartCondition: s.StartCondition,
		EndCondition:   s.EndCondition,
		Actions:        append([]string{}, s.Actions...),
	}
	for _, child := range s.Children {
		c.Children = append(c.Children, copyStep(child))
	}
	return c
}

func copyForm(f *Form) *Form {
	c := &Form{Name: f.Name, Title: f.Title}
	for _, q := range f.Questions {
		c.Questions = append(c.Questions, &Question{Name: q.Name, Title: q.Title, Required: q.Required})
	}
	return c
}

func fallback(primary, secondary string) string {
	if primary != "" {
		return primary
	}
	return secondary
}

func fallbackCondition(primary, secondary *conditionDoc) *conditionDoc {
	if primary != nil {
		return primary
	}
	return secondary
}

func unionStrings(primary, secondary []string) []string {
	result := append([]string{}, primary...)
	for _, v := range secondary {
		result = appendUnique(result, v)
	}
	return result
}

func findProperty(list []*PropertyDefinition, name string) *PropertyDefinition {
	for _, p := range list {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func findEvent(list []*EventDefinition, id string) *EventDefinition {
	for _, e := range list {
		if e.Id == id {
			return e
		}
	}
	return nil
}

func findStep(list []*Step, name string) *Step {
	for _, s := range list {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func findForm(list []*Form, name string) *Form {
	for _, f := range list {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func findQuestion(list []*Question, name string) *Question {
	for _, q := range list {
		if q.Name == name {
			return q
		}
	}
	return nil
}

func findAction(list []*RoleAction, role, action string) *RoleAction {
	for _, a := range list {
		if a.Role == role && a.Action == action {
			return a
		}
	}
	return nil
}

func findTrigger(list []*Trigger, name string) *Trigger {
	for _, t := range list {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func findPropertyDoc(list []*propertyDoc, name string) *propertyDoc {
	for _, p := range list {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func findEventDoc(list []*eventDoc, id string) *eventDoc {
	for _, e := range list {
		if e.Id == id {
			return e
		}
	}
	return nil
}

func findStepDoc(list []*stepDoc, name string) *stepDoc {
	for _, s := range list {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func findFormDoc(list []*formDoc, name string) *formDoc {
	for _, f := range list {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func findQuestionDoc(list []*questionDoc, name string) *questionDoc {
	for _, q := range list {
		if q.Name == name {
			return q
		}
	}
	return nil
}

func findActionDoc(list []*roleActionDoc, role, action string) *roleActionDoc {
	for _, a := range list {
		if a.Role == role && a.Action == action {
			return a
		}
	}
	return nil
}

func findTriggerDoc(list []*triggerDoc, name string) *triggerDoc {
	for _, t := range list {
		if t.Name == name {
			return t
		}
	}
	return nil
}
