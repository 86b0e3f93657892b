package trigger

import (
	"caseflow/bizerror"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/notify"

	"github.com/fundwit/go-commons/types"
)

// PropertyWrite is one property assignment performed by an effect,
// with the value that was in place before it.
type PropertyWrite struct {
	Path     string
	Previous interface{}
	Value    interface{}
}

// EventWrite is one event timestamp transition performed by an effect.
type EventWrite struct {
	EventId string
	OldTime *types.Timestamp
	NewTime *types.Timestamp
}

// ExecutionResult summarizes what a trigger pass did to the instance,
// so the caller can journal the deltas and emit change records.
type ExecutionResult struct {
	PropertyWrites []PropertyWrite
	EventWrites    []EventWrite
	SentMessages   []notify.Message
	Deferred       []string
}

var ExecuteTriggersFunc = ExecuteTriggers

// ExecuteTriggers runs the definition's triggers bound to the named form
// or action, in declared order, against the instance's in-memory state.
// The evaluation context is rebuilt after every mutating effect, so a
// later condition or value expression sees earlier effects' writes.
// Mutations are applied to inst only; persisting them is the caller's
// concern. provided carries a user-supplied message for triggers that
// are not marked send-automatically.
func ExecuteTriggers(d *definition.Definition, inst *instance.WorkflowInstance, on string,
	provided *notify.Message, now types.Timestamp) (*ExecutionResult, error) {

	result := &ExecutionResult{}
	evalCtx := instance.BuildContext(inst, d)

	for _, tr := range d.Triggers {
		if tr.On != "" && tr.On != on {
			continue
		}
		if tr.Delay > 0 {
			// queued as an independent work item; its condition is
			// evaluated against fresh state at execution time
			result.Deferred = append(result.Deferred, tr.Name)
			continue
		}
		met, err := tr.Condition.IsMet(evalCtx)
		if err != nil {
			return nil, err
		}
		if !met {
			continue
		}
		evalCtx, err = applyEffects(d, inst, tr, evalCtx, provided, now, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func applyEffects(d *definition.Definition, inst *instance.WorkflowInstance, tr *definition.Trigger,
	evalCtx *instance.Context, provided *notify.Message, now types.Timestamp,
	result *ExecutionResult) (*instance.Context, error) {

	for _, effect := range tr.Effects {
		switch effect.Kind {
		case definition.EffectRecordEvent:
			old := eventTimeOf(inst, effect.Event)
			ts := now
			inst.Events[effect.Event] = &instance.InstanceEvent{Id: effect.Event, Time: &ts}
			result.EventWrites = append(result.EventWrites, EventWrite{EventId: effect.Event, OldTime: old, NewTime: &ts})
			evalCtx = instance.BuildContext(inst, d)

		case definition.EffectUndoEvent:
			e := inst.Events[effect.Event]
			if e == nil || e.Time == nil {
				continue
			}
			old := e.Time
			e.Time = nil
			result.EventWrites = append(result.EventWrites, EventWrite{EventId: effect.Event, OldTime: old})
			evalCtx = instance.BuildContext(inst, d)

		case definition.EffectSetProperty:
			value, err := effect.Value.Eval(evalCtx)
			if err != nil {
				return nil, err
			}
			previous := inst.Properties[effect.Property]
			inst.Properties[effect.Property] = value
			result.PropertyWrites = append(result.PropertyWrites, PropertyWrite{
				Path: effect.Property, Previous: previous, Value: value})
			evalCtx = instance.BuildContext(inst, d)

		case definition.EffectSendMessage:
			message, err := resolveMessage(tr, effect, evalCtx, provided)
			if err != nil {
				return nil, err
			}
			if err := notify.SendFunc(message); err != nil {
				return nil, err
			}
			result.SentMessages = append(result.SentMessages, *message)

		default:
			return nil, &bizerror.ErrEffectConfig{Trigger: tr.Name, Detail: "unknown effect kind '" + string(effect.Kind) + "'"}
		}
	}
	return evalCtx, nil
}

// resolveMessage materializes the message a sendMessage effect should
// hand to the transport. Triggers not marked send-automatically require
// a user-supplied message; automatic ones render their inline or named
// templates against the current context.
func resolveMessage(tr *definition.Trigger, effect *definition.Effect,
	evalCtx *instance.Context, provided *notify.Message) (*notify.Message, error) {

	if !tr.SendAutomatically {
		if provided == nil {
			return nil, &bizerror.ErrEffectConfig{Trigger: tr.Name, Detail: "no message supplied and trigger does not send automatically"}
		}
		return provided, nil
	}

	recipient, subject, body := effect.Recipient, effect.Subject, effect.Body
	if effect.Message != nil {
		if recipient == nil {
			recipient = effect.Message.Recipient
		}
		if subject == nil {
			subject = effect.Message.Subject
		}
		if body == nil {
			body = effect.Message.Body
		}
	}
	if body == nil || recipient == nil {
		return nil, &bizerror.ErrEffectConfig{Trigger: tr.Name, Detail: "sendMessage effect has no resolvable message"}
	}

	message := notify.Message{}
	var err error
	if message.Recipient, err = recipient.Render(evalCtx); err != nil {
		return nil, err
	}
	if subject != nil {
		if message.Subject, err = subject.Render(evalCtx); err != nil {
			return nil, err
		}
	}
	if message.Body, err = body.Render(evalCtx); err != nil {
		return nil, err
	}
	return &message, nil
}

func eventTimeOf(inst *instance.WorkflowInstance, eventId string) *types.Timestamp {
	e := inst.Events[eventId]
	if e == nil {
		return nil
	}
	return e.Time
}
