package event

import (
	"github.com/sirupsen/logrus"
)

/*
return nil if not support
*/
type ChangeHandler func(r *ChangeRecord) *ChangeHandleResult

type ChangeHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var ChangeHandlers []ChangeHandler

var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *ChangeRecord) []ChangeHandleResult {
	results := []ChangeHandleResult{}
	for _, handler := range ChangeHandlers {
		logrus.Debug("pre handle change ", record.Change)
		r := handler(record)

		if r == nil {
			continue
		}

		results = append(results, *r)

		if r.Success {
			logrus.Info("post handle change. ", r)
		} else {
			logrus.Error("post handler error. ", r)
		}
	}
	return results
}
