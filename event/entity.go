package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	ChangeCategoryCreated         = "CREATED"
	ChangeCategoryDeleted         = "DELETED"
	ChangeCategoryPropertyUpdated = "PROPERTY_UPDATED"
	ChangeCategoryEventUpdated    = "EVENT_UPDATED"
	ChangeCategoryStepChanged     = "STEP_CHANGED"
)

type ChangeCategory string

type Change struct {
	SourceId   types.ID `json:"sourceId"`
	SourceType string   `json:"sourceType"`
	SourceDesc string   `json:"sourceDesc"`

	CreatorId   types.ID `json:"creatorId"`
	CreatorName string   `json:"creatorName"`

	ChangeCategory    ChangeCategory    `json:"changeCategory"`
	UpdatedProperties UpdatedProperties `json:"updatedProperties" sql:"type:TEXT"`
	UpdatedEvents     UpdatedEvents     `json:"updatedEvents" sql:"type:TEXT"`
}

type ChangeRecord struct {
	Change

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
	Synced    bool            `json:"synced"`
}

func (r *ChangeRecord) TableName() string {
	return "change_records"
}

type UpdatedProperty struct {
	PropertyName string `json:"propertyName"`
	PropertyDesc string `json:"propertyDesc"`

	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

type UpdatedProperties []UpdatedProperty

// UpdatedEvent records one workflow event's timestamp transition, for
// both record-event and undo-event effects.
type UpdatedEvent struct {
	EventId string `json:"eventId"`

	OldTime *types.Timestamp `json:"oldTime,omitempty"`
	NewTime *types.Timestamp `json:"newTime,omitempty"`
}

type UpdatedEvents []UpdatedEvent

func (t UpdatedProperties) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *UpdatedProperties) Scan(v interface{}) error {
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

func (t UpdatedEvents) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *UpdatedEvents) Scan(v interface{}) error {
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
