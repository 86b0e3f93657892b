package journal

import (
	"encoding/json"
	"time"

	"caseflow/common"
	"caseflow/domain/instance"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

// DebounceWindow is the trailing window inside which repeated edits to
// the same path in the same version collapse into one journal entry.
const DebounceWindow = 5 * time.Minute

var (
	journalIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	LogPropertyChangesFunc = LogPropertyChanges
	IncrementVersionFunc   = IncrementVersion
	GetAsOfVersionFunc     = GetAsOfVersion
	GetAsOfTimestampFunc   = GetAsOfTimestamp
	QueryJournalFunc       = QueryJournal
)

// LogPropertyChanges stamps every change with the instance's current
// version counter. A change to a path already journaled for that version
// within the debounce window only refreshes the existing entry's newest
// value and timestamp; the recorded previous value stays untouched so
// reconstruction sees the value from before the whole burst of edits.
func LogPropertyChanges(instanceId types.ID, changes []PropertyChange,
	identity *session.Identity, now types.Timestamp, tx *gorm.DB) error {

	var inst instance.WorkflowInstance
	if err := tx.Where(&instance.WorkflowInstance{ID: instanceId}).First(&inst).Error; err != nil {
		return err
	}

	windowStart := types.Timestamp(now.Time().Add(-DebounceWindow))
	for _, change := range changes {
		newValue, err := encodeValue(change.NewValue)
		if err != nil {
			return err
		}

		var existing JournalEntry
		err = tx.Where("instance_id = ? AND version = ? AND path = ? AND timestamp > ?",
			instanceId, inst.Version, change.Path, windowStart).
			Order("timestamp DESC").First(&existing).Error
		if err == nil {
			if err := tx.Model(&JournalEntry{}).Where("id = ?", existing.ID).
				Update(map[string]interface{}{"new_value": newValue, "timestamp": now}).Error; err != nil {
				return err
			}
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		previousValue, err := encodeValue(change.PreviousValue)
		if err != nil {
			return err
		}
		entry := JournalEntry{
			ID:            common.NextId(journalIdWorker),
			InstanceID:    instanceId,
			Version:       inst.Version,
			Path:          change.Path,
			PreviousValue: previousValue,
			NewValue:      newValue,
			Timestamp:     now,
			CreatorId:     identity.ID,
			CreatorName:   identity.Name,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// IncrementVersion atomically bumps the instance's version counter and
// returns the new value. Called at submission time to close the version
// the preceding journal entries were stamped with.
func IncrementVersion(instanceId types.ID, tx *gorm.DB) (int, error) {
	if err := tx.Model(&instance.WorkflowInstance{}).Where("id = ?", instanceId).
		Update("version", gorm.Expr("version + 1")).Error; err != nil {
		return 0, err
	}
	var inst instance.WorkflowInstance
	if err := tx.Where(&instance.WorkflowInstance{ID: instanceId}).First(&inst).Error; err != nil {
		return 0, err
	}
	return inst.Version, nil
}

// GetAsOfVersion reconstructs the instance's property set as it was
// immediately after version v: start from the current state and apply
// all newer entries in descending timestamp order, each overwriting its
// path with the recorded previous value. The oldest qualifying entry
// wins per path, which is exactly the value live in version v.
func GetAsOfVersion(instanceId types.ID, v int, s *session.Session) (instance.PropertyBag, error) {
	inst, err := instance.DetailInstanceFunc(instanceId, s)
	if err != nil {
		return nil, err
	}

	bag := instance.PropertyBag{}
	for path, value := range inst.Properties {
		bag[path] = value
	}

	var entries []JournalEntry
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where("instance_id = ? AND version > ?", instanceId, v).
		Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, err
	}

	for _, entry := range entries {
		previous, err := decodeValue(entry.PreviousValue)
		if err != nil {
			return nil, err
		}
		if previous == nil {
			delete(bag, entry.Path)
		} else {
			bag[entry.Path] = previous
		}
	}
	return bag, nil
}

// GetAsOfTimestamp resolves the version that was current at the given
// instant, then delegates to GetAsOfVersion.
func GetAsOfTimestamp(instanceId types.ID, at types.Timestamp, s *session.Session) (instance.PropertyBag, error) {
	type row struct {
		MaxVersion int
	}
	var r row
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Model(&JournalEntry{}).
		Select("COALESCE(MAX(version), 0) AS max_version").
		Where("instance_id = ? AND timestamp < ?", instanceId, at).
		Scan(&r).Error; err != nil {
		return nil, err
	}
	return GetAsOfVersionFunc(instanceId, r.MaxVersion, s)
}

// QueryJournal lists an instance's journal entries, newest first.
func QueryJournal(instanceId types.ID, s *session.Session) ([]JournalEntry, error) {
	if _, err := instance.DetailInstanceFunc(instanceId, s); err != nil {
		return nil, err
	}
	var entries []JournalEntry
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where("instance_id = ?", instanceId).
		Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func encodeValue(v interface{}) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

func decodeValue(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
