package instance

import (
	"fmt"

	"caseflow/bizerror"
	"caseflow/common"
	"caseflow/domain/definition"
	"caseflow/event"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	instanceIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateInstanceFunc   = CreateInstance
	DetailInstanceFunc   = DetailInstance
	QueryInstancesFunc   = QueryInstances
	UpdatePropertiesFunc = UpdateProperties
)

type InstanceCreation struct {
	Definition string                 `json:"definition" binding:"required"`
	ParentID   types.ID               `json:"parentId"`
	Properties map[string]interface{} `json:"properties"`
}

type InstanceQuery struct {
	Definition string `json:"definition" form:"definition"`
	Step       string `json:"step" form:"step"`
}

func CreateInstance(c *InstanceCreation, s *session.Session) (*WorkflowInstance, error) {
	d, err := definition.FindDefinitionFunc(c.Definition)
	if err != nil {
		return nil, err
	}
	if !s.Perms.HasDefinitionViewPerm(d.Name) {
		return nil, bizerror.ErrForbidden
	}

	now := types.CurrentTimestamp()
	inst := &WorkflowInstance{
		ID:         common.NextId(instanceIdWorker),
		Definition: d.Name,
		ParentID:   c.ParentID,
		Properties: PropertyBag{},
		Events:     EventMap{},
		CreateTime: now,
	}
	for name, value := range c.Properties {
		inst.Properties[name] = value
	}
	step, err := ComputeCurrentStep(d, BuildContext(inst, d))
	if err != nil {
		return nil, err
	}
	inst.CurrentStep = step

	var rec *event.ChangeRecord
	err1 := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inst).Error; err != nil {
			return err
		}
		rec, err = event.CreateChange("workflow_instance", inst.ID, describeInstance(d, inst),
			event.ChangeCategoryCreated, nil, nil, &s.Identity, now, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(rec)
	}

	return inst, nil
}

func DetailInstance(id types.ID, s *session.Session) (*WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	return findInstanceAndCheckPerms(db, id, s)
}

func QueryInstances(q *InstanceQuery, s *session.Session) ([]WorkflowInstance, error) {
	var instances []WorkflowInstance
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	query := db.Model(&WorkflowInstance{})
	if q.Definition != "" {
		if !s.Perms.HasDefinitionViewPerm(q.Definition) {
			return nil, bizerror.ErrForbidden
		}
		query = query.Where(&WorkflowInstance{Definition: q.Definition})
	} else if !s.Perms.HasGlobalAdminRole() {
		return nil, bizerror.ErrForbidden
	}
	if q.Step != "" {
		query = query.Where(&WorkflowInstance{CurrentStep: q.Step})
	}
	if err := query.Order("create_time DESC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// UpdateProperties assigns the given values to the instance's property
// paths, recomputes the current step, and records the change. The
// journal and version counter are the caller's concern; submission
// paths log and bump, raw field edits only log.
func UpdateProperties(id types.ID, values map[string]interface{}, s *session.Session) (*WorkflowInstance, error) {
	var inst *WorkflowInstance
	var rec *event.ChangeRecord

	err1 := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		var err error
		inst, err = findInstanceAndCheckPerms(tx, id, s)
		if err != nil {
			return err
		}
		d, err := definition.FindDefinitionFunc(inst.Definition)
		if err != nil {
			return err
		}

		updated := event.UpdatedProperties{}
		for path, value := range values {
			updated = append(updated, event.UpdatedProperty{
				PropertyName: path,
				OldValue:     stringifyPropertyValue(inst.Properties[path]),
				NewValue:     stringifyPropertyValue(value),
			})
			if value == nil {
				delete(inst.Properties, path)
			} else {
				inst.Properties[path] = value
			}
		}
		step, err := ComputeCurrentStep(d, BuildContext(inst, d))
		if err != nil {
			return err
		}
		inst.CurrentStep = step

		if err := tx.Model(&WorkflowInstance{}).Where(&WorkflowInstance{ID: inst.ID}).
			Update(map[string]interface{}{"properties": inst.Properties, "current_step": inst.CurrentStep}).Error; err != nil {
			return err
		}

		rec, err = event.CreateChange("workflow_instance", inst.ID, describeInstance(d, inst),
			event.ChangeCategoryPropertyUpdated, updated, nil, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(rec)
	}

	return inst, nil
}

// SaveInstanceState persists the mutable state of an already-loaded
// instance inside a caller-owned transaction. Used by the effect
// engine after applying a batch of effects.
func SaveInstanceState(inst *WorkflowInstance, tx *gorm.DB) error {
	return tx.Model(&WorkflowInstance{}).Where(&WorkflowInstance{ID: inst.ID}).
		Update(map[string]interface{}{
			"properties":   inst.Properties,
			"events":       inst.Events,
			"current_step": inst.CurrentStep,
		}).Error
}

func findInstanceAndCheckPerms(db *gorm.DB, id types.ID, s *session.Session) (*WorkflowInstance, error) {
	inst := WorkflowInstance{}
	if err := db.Where(&WorkflowInstance{ID: id}).First(&inst).Error; err == gorm.ErrRecordNotFound {
		return nil, &bizerror.ErrEntityNotFound{EntityType: "workflow_instance", Key: id.String()}
	} else if err != nil {
		return nil, err
	}
	if !s.Perms.HasDefinitionViewPerm(inst.Definition) {
		return nil, bizerror.ErrForbidden
	}
	return &inst, nil
}

func describeInstance(d *definition.Definition, inst *WorkflowInstance) string {
	return d.Title + " " + inst.ID.String()
}

func stringifyPropertyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
