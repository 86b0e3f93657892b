package event

import "github.com/jinzhu/gorm"

var (
	ChangePersistCreateFunc = changePersistCreate
)

func changePersistCreate(record *ChangeRecord, db *gorm.DB) error {
	return db.Create(record).Error
}
