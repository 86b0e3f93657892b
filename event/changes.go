package event

import (
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

func CreateChange(sourceType string, sourceId types.ID, sourceDesc string, category ChangeCategory,
	updatedProperties UpdatedProperties, updatedEvents UpdatedEvents,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*ChangeRecord, error) {

	record := ChangeRecord{
		Change: Change{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			ChangeCategory:    category,
			UpdatedProperties: updatedProperties,
			UpdatedEvents:     updatedEvents,

			CreatorId:   identity.ID,
			CreatorName: identity.Name,
		},
		Synced:    false,
		Timestamp: timestamp,
	}
	if err := ChangePersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}
