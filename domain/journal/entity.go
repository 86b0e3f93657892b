package journal

import (
	"github.com/fundwit/go-commons/types"
)

// JournalEntry is one property delta in the append-only per-instance
// audit log. Values are stored JSON-encoded so reconstruction can put
// typed values back into a property bag.
type JournalEntry struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	InstanceID types.ID `json:"instanceId" gorm:"index:idx_instance_version" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Version    int      `json:"version" gorm:"index:idx_instance_version"`

	Path          string `json:"path"`
	PreviousValue string `json:"previousValue" sql:"type:TEXT"`
	NewValue      string `json:"newValue" sql:"type:TEXT"`

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`

	CreatorId   types.ID `json:"creatorId"`
	CreatorName string   `json:"creatorName"`
}

func (r *JournalEntry) TableName() string {
	return "journal_entries"
}

// PropertyChange is the write-path input: one path transition observed
// during a submission or field edit.
type PropertyChange struct {
	Path          string
	PreviousValue interface{}
	NewValue      interface{}
}
