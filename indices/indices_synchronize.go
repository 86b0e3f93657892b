package indices

import (
	"context"
	"fmt"
	"sync"

	"caseflow/authority"
	"caseflow/bizerror"
	"caseflow/client/es"
	"caseflow/domain/instance"
	"caseflow/event"
	"caseflow/indices/indexlog"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexHandlerName = "instanceIndexer"
	indexRobot               = &session.Session{
		Identity: session.Identity{ID: 10, Name: "index-robot"},
		Perms:    authority.Permissions{authority.SystemAdminRole},
		Context:  context.Background(),
	}

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc         = IndicesFullSync
	ScheduleNewSyncRunFunc      = ScheduleNewSyncRun
	IndexlogRecoveryRoutineFunc = IndexlogRecoveryRoutine
)

func ScheduleNewSyncRun(sec *session.Session) (bool, error) {
	if !sec.Perms.HasRole(authority.SystemAdminRole) {
		return false, bizerror.ErrForbidden
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		IndicesFullSyncFunc()
	}()
	waitRunning.Wait()
	return true, nil
}

var (
	SyncBatchSize = 500
)

func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	page := 1
	for {
		instances, err := loadInstancesPage(page, SyncBatchSize)
		if err != nil {
			logrus.Warnf("indices full sync: error on retrieve instances(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
			page++
			continue
		}

		if len(instances) == 0 {
			logrus.Infof("indices full sync: there are no more instances to index")
			return nil // loop exit
		}

		if err := IndexInstances(instances); err != nil {
			logrus.Warnf("indices full sync: error on index instances(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
}

func loadInstancesPage(page, size int) ([]instance.WorkflowInstance, error) {
	instances := []instance.WorkflowInstance{}
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Order("id ASC").Offset(offset).Limit(size).Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// IndexInstanceChangeHandle keeps the search index in step with the
// change log: a pending index log is recorded first, so a failed index
// write can be replayed by the recovery routine.
func IndexInstanceChangeHandle(r *event.ChangeRecord) *event.ChangeHandleResult {
	if r.SourceType != "workflow_instance" {
		return nil
	}

	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	logRecord, err := indexlog.CreateIndexLogFunc(r.SourceType, r.SourceId, r.SourceDesc,
		r.ChangeCategory == event.ChangeCategoryDeleted, r.Timestamp, db)
	if err != nil {
		return &event.ChangeHandleResult{
			Message:           fmt.Sprintf("record index log for instance %d, %v", r.SourceId, err),
			HandlerIdentifier: InstanceIndexHandlerName,
		}
	}

	if err := indexInstanceBySource(r.SourceId, r.ChangeCategory == event.ChangeCategoryDeleted); err != nil {
		return &event.ChangeHandleResult{
			Message:           fmt.Sprintf("index instance %d, %v", r.SourceId, err),
			HandlerIdentifier: InstanceIndexHandlerName,
		}
	}
	if err := indexlog.FinishIndexLogFunc(logRecord.ID); err != nil {
		return &event.ChangeHandleResult{
			Message:           fmt.Sprintf("finish index log %d, %v", logRecord.ID, err),
			HandlerIdentifier: InstanceIndexHandlerName,
		}
	}
	return &event.ChangeHandleResult{Success: true, HandlerIdentifier: InstanceIndexHandlerName}
}

func indexInstanceBySource(sourceId types.ID, deletion bool) error {
	if deletion {
		return es.DeleteDocumentByIdFunc(InstanceIndexName, sourceId, indexRobot)
	}
	inst, err := instance.DetailInstanceFunc(sourceId, indexRobot)
	if err != nil {
		return err
	}
	return IndexInstances([]instance.WorkflowInstance{*inst})
}

// IndexlogRecoveryRoutine replays pending index logs in the background.
func IndexlogRecoveryRoutine(sec *session.Session) error {
	if !sec.Perms.HasRole(authority.SystemAdminRole) {
		return bizerror.ErrForbidden
	}

	go func() {
		page := 1
		for {
			pending, err := indexlog.LoadPendingIndexLogFunc(page, SyncBatchSize)
			if err != nil {
				logrus.Warnf("index log recovery: load pending logs(page = %d): %v", page, err)
				return
			}
			if len(pending) == 0 {
				logrus.Infof("index log recovery: no more pending index logs")
				return
			}
			for _, logRecord := range pending {
				if err := indexInstanceBySource(logRecord.SourceId, logRecord.Deletion); err != nil {
					logrus.Warnf("index log recovery: index instance %d: %v", logRecord.SourceId, err)
					continue
				}
				if err := indexlog.FinishIndexLogFunc(logRecord.ID); err != nil {
					logrus.Warnf("index log recovery: finish index log %d: %v", logRecord.ID, err)
				}
			}
			page++
		}
	}()
	return nil
}
