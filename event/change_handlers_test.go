package event_test

import (
	"testing"
	"time"

	"caseflow/event"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestInvokeHandlers(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should invoke all registered change handlers", func(t *testing.T) {
		event.ChangeHandlers = append(event.ChangeHandlers, func(r *event.ChangeRecord) *event.ChangeHandleResult {
			return nil
		})
		event.ChangeHandlers = append(event.ChangeHandlers, func(r *event.ChangeRecord) *event.ChangeHandleResult {
			return &event.ChangeHandleResult{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"}
		})
		event.ChangeHandlers = append(event.ChangeHandlers, func(r *event.ChangeRecord) *event.ChangeHandleResult {
			return &event.ChangeHandleResult{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"}
		})

		rec := event.ChangeRecord{
			Change: event.Change{
				SourceType: "workflow_instance",
				SourceId:   1234,
				SourceDesc: "Expense 1234",

				ChangeCategory:    event.ChangeCategoryCreated,
				UpdatedProperties: event.UpdatedProperties{{PropertyName: "Amount", OldValue: "", NewValue: "12.5"}},

				CreatorId:   333,
				CreatorName: "user333",
			},
			Timestamp: types.TimestampOfDate(2021, 1, 1, 12, 12, 12, 0, time.Local),
			Synced:    true,
		}

		ret := event.InvokeHandlersFunc(&rec)
		Expect(ret).To(Equal([]event.ChangeHandleResult{
			{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"},
			{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"},
		}))
	})
}
