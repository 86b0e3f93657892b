package instance

import (
	"caseflow/domain/definition"
)

// ComputeCurrentStep walks the definition's top-level steps in declared
// order and returns the name of the first step whose start condition is
// met and which has not ended. An empty result means the instance is
// before its first step or past its last one.
func ComputeCurrentStep(d *definition.Definition, evalCtx definition.EvalContext) (string, error) {
	for _, s := range d.Steps {
		started, err := s.StartCondition.IsMet(evalCtx)
		if err != nil {
			return "", err
		}
		if !started {
			continue
		}
		ended, err := StepHasEnded(s, evalCtx)
		if err != nil {
			return "", err
		}
		if !ended {
			return s.Name, nil
		}
	}
	return "", nil
}

// StepHasEnded reports whether a step has run to completion: by its own
// end condition when it declares one, otherwise when all of its children
// have ended. Hierarchy mode does not matter here, it only governs how
// submission versions are grouped. A leaf step without an end condition
// never ends.
func StepHasEnded(s *definition.Step, evalCtx definition.EvalContext) (bool, error) {
	if s.EndCondition != nil {
		return s.EndCondition.IsMet(evalCtx)
	}
	if len(s.Children) == 0 {
		return false, nil
	}
	for _, child := range s.Children {
		ended, err := StepHasEnded(child, evalCtx)
		if err != nil {
			return false, err
		}
		if !ended {
			return false, nil
		}
	}
	return true, nil
}

// ActiveSteps returns the step names an actor may currently act in: the
// current step plus, recursively, every descendant whose own start
// condition is met and which has not individually ended.
func ActiveSteps(d *definition.Definition, evalCtx definition.EvalContext) ([]string, error) {
	current, err := ComputeCurrentStep(d, evalCtx)
	if err != nil {
		return nil, err
	}
	if current == "" {
		return nil, nil
	}
	s := d.Step(current)
	if s == nil {
		return []string{current}, nil
	}
	var names []string
	if err := collectActive(s, evalCtx, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func collectActive(s *definition.Step, evalCtx definition.EvalContext, names *[]string) error {
	*names = append(*names, s.Name)
	for _, child := range s.Children {
		started, err := child.StartCondition.IsMet(evalCtx)
		if err != nil {
			return err
		}
		if !started {
			continue
		}
		ended, err := StepHasEnded(child, evalCtx)
		if err != nil {
			return err
		}
		if !ended {
			if err := collectActive(child, evalCtx, names); err != nil {
				return err
			}
		}
	}
	return nil
}
