package flow

import (
	"fmt"

	"caseflow/bizerror"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/domain/journal"
	"caseflow/domain/trigger"
	"caseflow/event"
	"caseflow/notify"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type FormSubmission struct {
	InstanceID types.ID               `json:"instanceId"`
	Form       string                 `json:"form" binding:"required"`
	Answers    map[string]interface{} `json:"answers"`

	// Message carries a user-composed message for sendMessage triggers
	// that are not marked send-automatically.
	Message *notify.Message `json:"message,omitempty"`
}

// ValidationFailure is returned as data, not as an error, so callers can
// render per-question messages.
type ValidationFailure struct {
	Question string `json:"question"`
	Message  string `json:"message"`
}

type SubmitResult struct {
	Instance *instance.WorkflowInstance `json:"instance,omitempty"`
	Failures []ValidationFailure        `json:"failures,omitempty"`
	Version  int                        `json:"version"`
}

var SubmitFormFunc = SubmitForm

// SubmitForm runs the whole submission path for one form: authorization
// against the current role and active steps, answer validation, property
// writes, journaling, triggers, step recomputation and the version bump.
// A validation failure rolls everything back and reports the failures in
// the result.
func SubmitForm(sub *FormSubmission, s *session.Session) (*SubmitResult, error) {
	result := &SubmitResult{}
	var rec *event.ChangeRecord
	now := types.CurrentTimestamp()

	err1 := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		inst := instance.WorkflowInstance{}
		if err := tx.Where(&instance.WorkflowInstance{ID: sub.InstanceID}).First(&inst).Error; err == gorm.ErrRecordNotFound {
			return &bizerror.ErrEntityNotFound{EntityType: "workflow_instance", Key: sub.InstanceID.String()}
		} else if err != nil {
			return err
		}
		if !s.Perms.HasDefinitionViewPerm(inst.Definition) {
			return bizerror.ErrForbidden
		}
		d, err := definition.FindDefinitionFunc(inst.Definition)
		if err != nil {
			return err
		}
		f := d.Form(sub.Form)
		if f == nil {
			return &bizerror.ErrEntityNotFound{EntityType: "form", Key: sub.Form}
		}

		evalCtx := instance.BuildContext(&inst, d)
		if err := checkActionPermitted(d, &inst, sub.Form, evalCtx, s); err != nil {
			return err
		}

		failures, changes, err := applyAnswers(d, f, &inst, sub.Answers)
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			result.Failures = failures
			return nil
		}

		if len(changes) > 0 {
			if err := journal.LogPropertyChangesFunc(inst.ID, changes, &s.Identity, now, tx); err != nil {
				return err
			}
		}

		exec, err := trigger.ExecuteTriggersFunc(d, &inst, sub.Form, sub.Message, now)
		if err != nil {
			return err
		}
		if len(exec.PropertyWrites) > 0 {
			triggerChanges := make([]journal.PropertyChange, 0, len(exec.PropertyWrites))
			for _, w := range exec.PropertyWrites {
				triggerChanges = append(triggerChanges, journal.PropertyChange{
					Path: w.Path, PreviousValue: w.Previous, NewValue: w.Value})
			}
			if err := journal.LogPropertyChangesFunc(inst.ID, triggerChanges, &s.Identity, now, tx); err != nil {
				return err
			}
		}
		if len(exec.Deferred) > 0 {
			if err := trigger.EnqueueDeferredTriggersFunc(d, &inst, exec.Deferred, now, tx); err != nil {
				return err
			}
		}

		step, err := instance.ComputeCurrentStep(d, instance.BuildContext(&inst, d))
		if err != nil {
			return err
		}
		inst.CurrentStep = step
		if err := instance.SaveInstanceState(&inst, tx); err != nil {
			return err
		}

		version, err := journal.IncrementVersionFunc(inst.ID, tx)
		if err != nil {
			return err
		}
		result.Version = version
		inst.Version = version

		updatedProperties := event.UpdatedProperties{}
		for _, c := range changes {
			updatedProperties = append(updatedProperties, event.UpdatedProperty{
				PropertyName: c.Path,
				OldValue:     stringify(c.PreviousValue), NewValue: stringify(c.NewValue)})
		}
		for _, w := range exec.PropertyWrites {
			updatedProperties = append(updatedProperties, event.UpdatedProperty{
				PropertyName: w.Path,
				OldValue:     stringify(w.Previous), NewValue: stringify(w.Value)})
		}
		updatedEvents := event.UpdatedEvents{}
		for _, w := range exec.EventWrites {
			updatedEvents = append(updatedEvents, event.UpdatedEvent{
				EventId: w.EventId, OldTime: w.OldTime, NewTime: w.NewTime})
		}
		rec, err = event.CreateChange("workflow_instance", inst.ID, d.Title+" "+inst.ID.String(),
			event.ChangeCategoryPropertyUpdated, updatedProperties, updatedEvents, &s.Identity, now, tx)
		if err != nil {
			return err
		}

		result.Instance = &inst
		return nil
	})
	if err1 != nil {
		return nil, err1
	}

	if rec != nil && event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(rec)
	}
	return result, nil
}

// checkActionPermitted enforces the step and role gates for a form or
// action name. A step gate applies only when some step declares the
// action; a role gate applies only when some role action declares it.
func checkActionPermitted(d *definition.Definition, inst *instance.WorkflowInstance,
	action string, evalCtx definition.EvalContext, s *session.Session) error {

	forbidden := &bizerror.ErrActionForbidden{Instance: inst.ID.String(), Action: action, Form: action}

	if stepsDeclaring(d.Steps, action) {
		actives, err := instance.ActiveSteps(d, evalCtx)
		if err != nil {
			return err
		}
		if !activeStepDeclares(d, actives, action) {
			return forbidden
		}
	}

	candidates := []*definition.RoleAction{}
	for _, ra := range d.Actions {
		if ra.Action == action {
			candidates = append(candidates, ra)
		}
	}
	if len(candidates) == 0 || s.Perms.HasGlobalAdminRole() {
		return nil
	}
	for _, ra := range candidates {
		if !s.Perms.HasRole(ra.Role + "_" + d.Name) {
			continue
		}
		met, err := ra.Condition.IsMet(evalCtx)
		if err != nil {
			return err
		}
		if met {
			return nil
		}
	}
	return forbidden
}

func stepsDeclaring(steps []*definition.Step, action string) bool {
	for _, step := range steps {
		for _, a := range step.Actions {
			if a == action {
				return true
			}
		}
		if stepsDeclaring(step.Children, action) {
			return true
		}
	}
	return false
}

func activeStepDeclares(d *definition.Definition, actives []string, action string) bool {
	for _, name := range actives {
		step := findStep(d.Steps, name)
		if step == nil {
			continue
		}
		for _, a := range step.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

func findStep(steps []*definition.Step, name string) *definition.Step {
	for _, step := range steps {
		if step.Name == name {
			return step
		}
		if found := findStep(step.Children, name); found != nil {
			return found
		}
	}
	return nil
}

// answerMissing reports whether a required question is still unanswered.
// Array-typed properties arrive as []interface{} from both the JSON body
// and the property bag scanner; an empty array counts as missing.
func answerMissing(answer interface{}) bool {
	if answer == nil || answer == "" {
		return true
	}
	if arr, ok := answer.([]interface{}); ok {
		return len(arr) == 0
	}
	return false
}

// applyAnswers validates the answers against the form and writes them
// onto the instance's property bag. Required and validation-condition
// failures are reported per question; an unknown question is a not-found
// error, not a validation failure.
func applyAnswers(d *definition.Definition, f *definition.Form,
	inst *instance.WorkflowInstance, answers map[string]interface{}) ([]ValidationFailure, []journal.PropertyChange, error) {

	for name := range answers {
		if f.Question(name) == nil {
			return nil, nil, &bizerror.ErrEntityNotFound{EntityType: "question", Key: name}
		}
	}

	failures := []ValidationFailure{}
	for _, q := range f.Questions {
		if !q.Required {
			continue
		}
		answer, given := answers[q.Name]
		if !given {
			answer = inst.Properties[q.Name]
		}
		if answerMissing(answer) {
			failures = append(failures, ValidationFailure{Question: q.Name, Message: q.Title + " is required"})
		}
	}
	if len(failures) > 0 {
		return failures, nil, nil
	}

	changes := make([]journal.PropertyChange, 0, len(answers))
	for name, value := range answers {
		previous := inst.Properties[name]
		if value == nil {
			delete(inst.Properties, name)
		} else {
			inst.Properties[name] = value
		}
		changes = append(changes, journal.PropertyChange{Path: name, PreviousValue: previous, NewValue: value})
	}

	// validation conditions see the answers already applied
	evalCtx := instance.BuildContext(inst, d)
	for _, q := range f.Questions {
		p := d.Property(q.Name)
		if p == nil || p.ValidationCondition == nil {
			continue
		}
		met, err := p.ValidationCondition.IsMet(evalCtx)
		if err != nil {
			return nil, nil, err
		}
		if !met {
			failures = append(failures, ValidationFailure{Question: q.Name, Message: q.Title + " is invalid"})
		}
	}
	if len(failures) > 0 {
		return failures, nil, nil
	}
	return nil, changes, nil
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
