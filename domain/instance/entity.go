package instance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

// WorkflowInstance is one live occurrence of a definition: its property
// values, its event history and the step it currently sits in. Mutated by
// the trigger engine and the step machine, persisted after each logical
// transaction.
type WorkflowInstance struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Definition string   `json:"definition" gorm:"index:idx_definition"`

	CurrentStep string   `json:"currentStep"`
	ParentID    types.ID `json:"parentId"`

	Properties PropertyBag `json:"properties" sql:"type:TEXT"`
	Events     EventMap    `json:"events" sql:"type:TEXT"`

	// Version is the journal's monotonically increasing counter; bumped
	// only at submission boundaries, never on single field edits.
	Version int `json:"version"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
}

func (r *WorkflowInstance) TableName() string {
	return "workflow_instances"
}

// InstanceEvent records one named occurrence. A nil Time means the event
// has not fired; a set Time can still be logically inactive when a later
// mutually-exclusive event suppresses it (derived at query time, never
// stored).
type InstanceEvent struct {
	Id   string           `json:"id"`
	Time *types.Timestamp `json:"time,omitempty"`
}

type EventMap map[string]*InstanceEvent

type PropertyBag map[string]interface{}

func (t PropertyBag) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *PropertyBag) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}

func (t EventMap) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *EventMap) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}

// UserRef, CurrencyAmount and FileRef are the dedicated storage
// conversions for user, currency and file typed properties.
type UserRef struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

type CurrencyAmount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
