package definition

import (
	"time"

	"caseflow/domain/expr"
)

type EffectKind string

const (
	EffectRecordEvent EffectKind = "recordEvent"
	EffectUndoEvent   EffectKind = "undoEvent"
	EffectSetProperty EffectKind = "setProperty"
	EffectSendMessage EffectKind = "sendMessage"
)

// Trigger is a condition-gated list of effects bound to a form or action.
// Triggers run in declared order at submission time; a trigger with a
// delay is queued and executed later against freshly fetched state.
type Trigger struct {
	Name string
	// On is the form or action name this trigger reacts to.
	On        string
	Condition *Condition

	SendAutomatically bool
	Delay             time.Duration

	Effects []*Effect
}

type Effect struct {
	Kind EffectKind

	// recordEvent / undoEvent
	Event string

	// setProperty
	Property string
	Value    expr.Node

	// sendMessage: either inline templates or a named message template
	Recipient  *expr.Template
	Subject    *expr.Template
	Body       *expr.Template
	MessageRef string

	// resolved at load time when MessageRef is set
	Message *MessageTemplate
}

// MessageTemplate is a shared, named message body referenced by
// sendMessage effects.
type MessageTemplate struct {
	Name      string
	Recipient *expr.Template
	Subject   *expr.Template
	Body      *expr.Template
}
