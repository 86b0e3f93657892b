package journal_test

import (
	"testing"
	"time"

	"caseflow/domain/definition"
	"caseflow/domain/journal"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func occurrence(id string, t time.Time) journal.EventOccurrence {
	return journal.EventOccurrence{EventId: id, Timestamp: types.Timestamp(t)}
}

func TestConsolidateStepVersions(t *testing.T) {
	RegisterTestingT(t)

	t0 := time.Date(2021, 3, 1, 10, 0, 0, 0, time.Local)
	at := func(hours int) time.Time { return t0.Add(time.Duration(hours) * time.Hour) }

	t.Run("leaf step: each qualifying occurrence is its own version", func(t *testing.T) {
		step := &definition.Step{
			Name:         "Draft",
			EndCondition: definition.NewEventCondition("SubmitExpense", "", false),
		}
		history := []journal.EventOccurrence{
			occurrence("SubmitExpense", at(0)),
			occurrence("RejectExpense", at(1)),
			occurrence("SubmitExpense", at(2)),
		}
		versions := journal.ConsolidateStepVersions(step, history)
		Expect(versions).To(Equal([]journal.StepVersion{
			{Version: 2, EventIds: []string{"SubmitExpense"}, CompletedAt: types.Timestamp(at(2))},
			{Version: 1, EventIds: []string{"SubmitExpense"}, CompletedAt: types.Timestamp(at(0))},
		}))
	})

	t.Run("sequential children: cycle closes on the last child's end event", func(t *testing.T) {
		step := &definition.Step{
			Name: "Review",
			Mode: definition.HierarchySequential,
			Children: []*definition.Step{
				{Name: "CheckReceipts", EndCondition: definition.NewEventCondition("ReceiptsChecked", "", false)},
				{Name: "ApproveBudget", EndCondition: definition.NewEventCondition("BudgetApproved", "", false)},
			},
		}
		history := []journal.EventOccurrence{
			occurrence("ReceiptsChecked", at(0)),
			occurrence("BudgetApproved", at(1)),
			occurrence("ReceiptsChecked", at(2)),
			occurrence("BudgetApproved", at(3)),
		}
		versions := journal.ConsolidateStepVersions(step, history)
		Expect(versions).To(Equal([]journal.StepVersion{
			{Version: 2, EventIds: []string{"ReceiptsChecked", "BudgetApproved"}, CompletedAt: types.Timestamp(at(3))},
			{Version: 1, EventIds: []string{"ReceiptsChecked", "BudgetApproved"}, CompletedAt: types.Timestamp(at(1))},
		}))
	})

	t.Run("sequential children: trailing incomplete cycle is discarded", func(t *testing.T) {
		step := &definition.Step{
			Name: "Review",
			Mode: definition.HierarchySequential,
			Children: []*definition.Step{
				{Name: "CheckReceipts", EndCondition: definition.NewEventCondition("ReceiptsChecked", "", false)},
				{Name: "ApproveBudget", EndCondition: definition.NewEventCondition("BudgetApproved", "", false)},
			},
		}
		history := []journal.EventOccurrence{
			occurrence("ReceiptsChecked", at(0)),
			occurrence("BudgetApproved", at(1)),
			occurrence("ReceiptsChecked", at(2)),
		}
		versions := journal.ConsolidateStepVersions(step, history)
		Expect(len(versions)).To(Equal(1))
		Expect(versions[0].Version).To(Equal(1))
		Expect(versions[0].CompletedAt).To(Equal(types.Timestamp(at(1))))
	})

	t.Run("parallel children: cycle closes once every child contributed", func(t *testing.T) {
		step := &definition.Step{
			Name: "Review",
			Mode: definition.HierarchyParallel,
			Children: []*definition.Step{
				{Name: "CheckReceipts", EndCondition: definition.NewEventCondition("ReceiptsChecked", "", false)},
				{Name: "ApproveBudget", EndCondition: definition.NewEventCondition("BudgetApproved", "", false)},
			},
		}
		history := []journal.EventOccurrence{
			occurrence("ReceiptsChecked", at(0)),
			occurrence("ReceiptsChecked", at(1)),
			occurrence("BudgetApproved", at(2)),
			occurrence("BudgetApproved", at(3)),
		}
		versions := journal.ConsolidateStepVersions(step, history)
		// second BudgetApproved opens a new cycle that never completes
		Expect(versions).To(Equal([]journal.StepVersion{
			{Version: 1, EventIds: []string{"ReceiptsChecked", "BudgetApproved"}, CompletedAt: types.Timestamp(at(2))},
		}))
	})

	t.Run("parallel children: incomplete group never appears", func(t *testing.T) {
		step := &definition.Step{
			Name: "Review",
			Mode: definition.HierarchyParallel,
			Children: []*definition.Step{
				{Name: "CheckReceipts", EndCondition: definition.NewEventCondition("ReceiptsChecked", "", false)},
				{Name: "ApproveBudget", EndCondition: definition.NewEventCondition("BudgetApproved", "", false)},
			},
		}
		history := []journal.EventOccurrence{
			occurrence("ReceiptsChecked", at(0)),
			occurrence("ReceiptsChecked", at(1)),
		}
		Expect(journal.ConsolidateStepVersions(step, history)).To(BeEmpty())
	})

	t.Run("irrelevant events are ignored entirely", func(t *testing.T) {
		step := &definition.Step{
			Name:         "Draft",
			EndCondition: definition.NewEventCondition("SubmitExpense", "", false),
		}
		history := []journal.EventOccurrence{
			occurrence("SomethingElse", at(0)),
		}
		Expect(journal.ConsolidateStepVersions(step, history)).To(BeEmpty())
	})
}
