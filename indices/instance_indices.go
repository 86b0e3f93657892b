package indices

import (
	"fmt"

	"caseflow/client/es"
	"caseflow/domain/instance"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexName = "workflow_instances"
)

type InstanceDocument struct {
	instance.WorkflowInstance
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexInstances(instances []instance.WorkflowInstance) error {
	docs := make([]InstanceDocument, 0, len(instances))
	for _, inst := range instances {
		docs = append(docs, InstanceDocument{WorkflowInstance: inst})
	}

	if err := saveInstanceDocuments(docs); err != nil {
		return err
	}
	return nil
}

func saveInstanceDocuments(docs []InstanceDocument) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(InstanceIndexName, doc.ID, doc, indexRobot); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index instance %d %s %s\n", doc.ID, doc.Definition, err)
		} else {
			logrus.Infof("index instance %d successfully\n", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
