package account

import (
	"errors"
	"os"

	"caseflow/authority"
	"caseflow/bizerror"
	"caseflow/common"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	LoadPermFunc = loadPerms

	bindingIdWorker = userIdWorker
)

func LoadPermFuncReset() {
	LoadPermFunc = loadPerms
}

// DefaultSecurityConfiguration seeds the admin account on first start.
// INITIAL_ADMIN_PASSWORD overrides the default secret.
func DefaultSecurityConfiguration() error {
	return persistence.ActiveDataSourceManager.GormDB(nil).Transaction(func(tx *gorm.DB) error {
		admin := User{}
		err := tx.Model(&User{}).Where(&User{ID: 1}).First(&admin).Error
		if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
			initialAdminPassword := os.ExpandEnv("${INITIAL_ADMIN_PASSWORD}")
			if initialAdminPassword == "" {
				initialAdminPassword = "admin123"
			}
			if err := tx.Save(&User{ID: 1, Name: "admin", Secret: HashSha256(initialAdminPassword)}).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return tx.Save(&RoleBinding{ID: 1, UserID: 1, Role: authority.SystemAdminRole}).Error
	})
}

func loadPerms(userId types.ID) authority.Permissions {
	var bindings []RoleBinding
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Where(&RoleBinding{UserID: userId}).Find(&bindings).Error; err != nil {
		return authority.Permissions{}
	}
	perms := make(authority.Permissions, 0, len(bindings))
	for _, b := range bindings {
		perms = append(perms, b.Role)
	}
	return perms
}

var (
	AssignRoleFunc   = AssignRole
	UnassignRoleFunc = UnassignRole
)

func AssignRole(userId types.ID, role string, sec *session.Session) (*RoleBinding, error) {
	if !sec.Perms.HasRole(authority.SystemAdminRole) {
		return nil, bizerror.ErrForbidden
	}

	binding := RoleBinding{ID: common.NextId(bindingIdWorker), UserID: userId, Role: role}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		existing := RoleBinding{}
		err := tx.Where(&RoleBinding{UserID: userId, Role: role}).First(&existing).Error
		if err == nil {
			binding = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&binding).Error
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func UnassignRole(userId types.ID, role string, sec *session.Session) error {
	if !sec.Perms.HasRole(authority.SystemAdminRole) {
		return bizerror.ErrForbidden
	}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	return db.Where(&RoleBinding{UserID: userId, Role: role}).Delete(&RoleBinding{}).Error
}
