package instance_test

import (
	"errors"
	"testing"
	"time"

	"caseflow/bizerror"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/event"
	"caseflow/persistence"
	"caseflow/testinfra"

	. "github.com/onsi/gomega"

	"github.com/jinzhu/gorm"
)

func instancesTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) (*[]event.ChangeRecord, *[]event.ChangeRecord) {
	db := testinfra.StartMysqlTestDatabase("caseflow")
	*testDatabase = db
	Expect(db.DS.GormDB(nil).AutoMigrate(&instance.WorkflowInstance{}, &event.ChangeRecord{}).Error).To(BeNil())

	persistence.ActiveDataSourceManager = db.DS
	definition.ActiveLoader = &definition.Loader{Definitions: map[string]*definition.Definition{
		"Expense": reviewDefinition(),
	}}
	definition.FindDefinitionFunc = definition.FindDefinition

	persistedChanges := []event.ChangeRecord{}
	event.ChangePersistCreateFunc = func(record *event.ChangeRecord, db *gorm.DB) error {
		persistedChanges = append(persistedChanges, *record)
		return nil
	}
	handedChanges := []event.ChangeRecord{}
	event.InvokeHandlersFunc = func(record *event.ChangeRecord) []event.ChangeHandleResult {
		handedChanges = append(handedChanges, *record)
		return nil
	}
	return &persistedChanges, &handedChanges
}

func instancesTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
	definition.ActiveLoader = nil
}

func TestCreateInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should forbid creation without a role on the definition", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Travel")
		_, err := instance.CreateInstance(&instance.InstanceCreation{Definition: "Expense"}, sec)
		Expect(errors.Is(err, bizerror.ErrForbidden)).To(BeTrue())
	})

	t.Run("should fail for an unknown definition", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Travel")
		_, err := instance.CreateInstance(&instance.InstanceCreation{Definition: "Travel"}, sec)
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())
	})

	t.Run("should create instance with computed step and change record", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		persistedChanges, handedChanges := instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		inst, err := instance.CreateInstance(&instance.InstanceCreation{
			Definition: "Expense",
			Properties: map[string]interface{}{"Title": "trip"},
		}, sec)
		Expect(err).To(BeNil())
		Expect(inst.ID).ToNot(BeZero())
		Expect(inst.Definition).To(Equal("Expense"))
		Expect(inst.CurrentStep).To(Equal("Draft"))
		Expect(inst.Properties["Title"]).To(Equal("trip"))

		detail, err := instance.DetailInstance(inst.ID, sec)
		Expect(err).To(BeNil())
		Expect(detail.ID).To(Equal(inst.ID))
		Expect(detail.CurrentStep).To(Equal("Draft"))
		Expect(detail.Properties["Title"]).To(Equal("trip"))

		Expect(len(*persistedChanges)).To(Equal(1))
		Expect((*persistedChanges)[0].SourceId).To(Equal(inst.ID))
		Expect((*persistedChanges)[0].ChangeCategory).To(Equal(event.ChangeCategory(event.ChangeCategoryCreated)))
		Expect(len(*handedChanges)).To(Equal(1))
	})
}

func TestDetailInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should return not found error for unknown instance", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		_, err := instance.DetailInstance(404404, sec)
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())
	})

	t.Run("should forbid detail without a role on the definition", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		inst, err := instance.CreateInstance(&instance.InstanceCreation{Definition: "Expense"}, sec)
		Expect(err).To(BeNil())

		other := testinfra.BuildSecCtx(200, "Applicant_Travel")
		_, err = instance.DetailInstance(inst.ID, other)
		Expect(errors.Is(err, bizerror.ErrForbidden)).To(BeTrue())
	})
}

func TestQueryInstances(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should filter by definition and step", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		_, err := instance.CreateInstance(&instance.InstanceCreation{Definition: "Expense"}, sec)
		Expect(err).To(BeNil())
		_, err = instance.CreateInstance(&instance.InstanceCreation{Definition: "Expense"}, sec)
		Expect(err).To(BeNil())

		list, err := instance.QueryInstances(&instance.InstanceQuery{Definition: "Expense"}, sec)
		Expect(err).To(BeNil())
		Expect(len(list)).To(Equal(2))

		list, err = instance.QueryInstances(&instance.InstanceQuery{Definition: "Expense", Step: "Draft"}, sec)
		Expect(err).To(BeNil())
		Expect(len(list)).To(Equal(2))
		Expect(list[0].ID).ToNot(BeZero())
		Expect(list[0].Definition).To(Equal("Expense"))

		list, err = instance.QueryInstances(&instance.InstanceQuery{Definition: "Expense", Step: "Review"}, sec)
		Expect(err).To(BeNil())
		Expect(len(list)).To(Equal(0))
	})

	t.Run("should forbid query without a matching role", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Travel")
		_, err := instance.QueryInstances(&instance.InstanceQuery{Definition: "Expense"}, sec)
		Expect(errors.Is(err, bizerror.ErrForbidden)).To(BeTrue())

		_, err = instance.QueryInstances(&instance.InstanceQuery{}, sec)
		Expect(errors.Is(err, bizerror.ErrForbidden)).To(BeTrue())
	})
}

func TestUpdateProperties(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should update properties and record the change", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		persistedChanges, _ := instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		inst, err := instance.CreateInstance(&instance.InstanceCreation{
			Definition: "Expense",
			Properties: map[string]interface{}{"Title": "trip"},
		}, sec)
		Expect(err).To(BeNil())

		updated, err := instance.UpdateProperties(inst.ID, map[string]interface{}{"Title": "trip to Berlin"}, sec)
		Expect(err).To(BeNil())
		Expect(updated.Properties["Title"]).To(Equal("trip to Berlin"))

		detail, err := instance.DetailInstance(inst.ID, sec)
		Expect(err).To(BeNil())
		Expect(detail.Properties["Title"]).To(Equal("trip to Berlin"))

		last := (*persistedChanges)[len(*persistedChanges)-1]
		Expect(last.ChangeCategory).To(Equal(event.ChangeCategory(event.ChangeCategoryPropertyUpdated)))
		Expect(last.UpdatedProperties).To(Equal(event.UpdatedProperties{
			{PropertyName: "Title", OldValue: "trip", NewValue: "trip to Berlin"},
		}))
	})

	t.Run("recorded events move the step forward on update", func(t *testing.T) {
		defer instancesTestTeardown(t, testDatabase)
		instancesTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "Applicant_Expense")
		inst, err := instance.CreateInstance(&instance.InstanceCreation{Definition: "Expense"}, sec)
		Expect(err).To(BeNil())
		Expect(inst.CurrentStep).To(Equal("Draft"))

		// record the submission event directly through the store
		ts := time.Now()
		inst.Events["SubmitExpense"] = eventAt("SubmitExpense", ts)
		db := testDatabase.DS.GormDB(nil)
		Expect(db.Model(&instance.WorkflowInstance{}).Where(&instance.WorkflowInstance{ID: inst.ID}).
			Update(map[string]interface{}{"events": inst.Events}).Error).To(BeNil())

		updated, err := instance.UpdateProperties(inst.ID, map[string]interface{}{"Title": "trip"}, sec)
		Expect(err).To(BeNil())
		Expect(updated.CurrentStep).To(Equal("Review"))
	})
}
