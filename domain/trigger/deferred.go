package trigger

import (
	"context"

	"caseflow/common"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/event"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

const (
	DeferredStatePending = "PENDING"
	DeferredStateDone    = "DONE"
	DeferredStateSkipped = "SKIPPED"
	DeferredStateFailed  = "FAILED"
)

// DeferredTrigger is a queued work item for a trigger with a delay. It
// holds no captured instance state; execution re-fetches everything.
type DeferredTrigger struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	InstanceID types.ID `json:"instanceId" gorm:"index:idx_instance" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Trigger    string   `json:"trigger"`

	DueTime    types.Timestamp `json:"dueTime" sql:"type:DATETIME(6)"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`

	State        string           `json:"state" gorm:"index:idx_state"`
	ExecutedTime *types.Timestamp `json:"executedTime,omitempty" sql:"type:DATETIME(6)"`
	Message      string           `json:"message" sql:"type:TEXT"`
}

func (r *DeferredTrigger) TableName() string {
	return "deferred_triggers"
}

var (
	deferredIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	EnqueueDeferredTriggersFunc = EnqueueDeferredTriggers
	ExecuteDeferredTriggerFunc  = ExecuteDeferredTrigger
)

// EnqueueDeferredTriggers queues the named triggers of the instance's
// definition for later execution.
func EnqueueDeferredTriggers(d *definition.Definition, inst *instance.WorkflowInstance,
	names []string, now types.Timestamp, tx *gorm.DB) error {

	for _, name := range names {
		tr := findTrigger(d, name)
		if tr == nil {
			continue
		}
		item := DeferredTrigger{
			ID:         common.NextId(deferredIdWorker),
			InstanceID: inst.ID,
			Trigger:    name,
			DueTime:    types.Timestamp(now.Time().Add(tr.Delay)),
			CreateTime: now,
			State:      DeferredStatePending,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
	}
	return nil
}

// StartDeferredTriggerPump scans for due work items once a minute.
func StartDeferredTriggerPump() {
	crontab := cron.New(cron.WithSeconds())
	crontab.AddFunc("0 * * * * ?", executeDueDeferredTriggers)
	crontab.Start()
}

func executeDueDeferredTriggers() {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	var pending []DeferredTrigger
	if err := db.Where("state = ? AND due_time <= ?", DeferredStatePending, types.CurrentTimestamp()).
		Order("due_time ASC").Find(&pending).Error; err != nil {
		logrus.Errorf("deferred triggers: scan failed: %v", err)
		return
	}
	for i := range pending {
		ExecuteDeferredTriggerFunc(&pending[i])
	}
}

// ExecuteDeferredTrigger runs one queued work item against freshly
// fetched instance state. A condition that no longer holds skips the
// item silently; failures are recorded for operator inspection, never
// retried here.
func ExecuteDeferredTrigger(item *DeferredTrigger) {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	now := types.CurrentTimestamp()

	finish := func(state, message string) {
		changes := map[string]interface{}{"state": state, "executed_time": &now, "message": message}
		if err := db.Model(&DeferredTrigger{}).Where("id = ?", item.ID).Update(changes).Error; err != nil {
			logrus.Errorf("deferred trigger %v: failed to record state %s: %v", item.ID, state, err)
		}
	}
	fail := func(message string) {
		logrus.WithFields(logrus.Fields{"trigger": item.Trigger, "instance": item.InstanceID}).
			Error("deferred trigger failed: ", message)
		finish(DeferredStateFailed, message)
	}

	var inst instance.WorkflowInstance
	if err := db.Where(&instance.WorkflowInstance{ID: item.InstanceID}).First(&inst).Error; err != nil {
		fail("instance not found: " + err.Error())
		return
	}
	d, err := definition.FindDefinitionFunc(inst.Definition)
	if err != nil {
		fail(err.Error())
		return
	}
	tr := findTrigger(d, item.Trigger)
	if tr == nil {
		fail("trigger no longer defined")
		return
	}

	evalCtx := instance.BuildContext(&inst, d)
	met, err := tr.Condition.IsMet(evalCtx)
	if err != nil {
		fail(err.Error())
		return
	}
	if !met {
		// the instance moved on; this is the expected outcome, not an error
		finish(DeferredStateSkipped, "")
		return
	}

	result := &ExecutionResult{}
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := applyEffects(d, &inst, tr, evalCtx, nil, now, result); err != nil {
			return err
		}
		step, err := instance.ComputeCurrentStep(d, instance.BuildContext(&inst, d))
		if err != nil {
			return err
		}
		inst.CurrentStep = step
		if err := instance.SaveInstanceState(&inst, tx); err != nil {
			return err
		}

		if len(result.EventWrites) > 0 || len(result.PropertyWrites) > 0 {
			updatedEvents := event.UpdatedEvents{}
			for _, w := range result.EventWrites {
				updatedEvents = append(updatedEvents, event.UpdatedEvent{EventId: w.EventId, OldTime: w.OldTime, NewTime: w.NewTime})
			}
			_, err = event.CreateChange("workflow_instance", inst.ID, d.Title+" "+inst.ID.String(),
				event.ChangeCategoryEventUpdated, nil, updatedEvents,
				&session.Identity{Name: "system"}, now, tx)
			return err
		}
		return nil
	})
	if err != nil {
		fail(err.Error())
		return
	}
	finish(DeferredStateDone, "")
}

func findTrigger(d *definition.Definition, name string) *definition.Trigger {
	for _, tr := range d.Triggers {
		if tr.Name == name {
			return tr
		}
	}
	return nil
}
