package servehttp_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caseflow/bizerror"
	"caseflow/domain/flow"
	"caseflow/domain/instance"
	"caseflow/indices/search"
	"caseflow/servehttp"
	"caseflow/session"
	"caseflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestCreateInstanceRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should return 400 when failed to bind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/instances", bytes.NewReader([]byte(`bbb`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"bad param: invalid character 'b' looking for beginning of value","data":null}`))
	})

	t.Run("should return 400 when definition is missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/instances", bytes.NewReader([]byte(`{}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{
			"code": "common.bad_param",
			"message": "bad param: Key: 'InstanceCreation.Definition' Error:Field validation for 'Definition' failed on the 'required' tag",
			"data": null
		}`))
	})

	t.Run("should be able to handle error when create instance", func(t *testing.T) {
		instance.CreateInstanceFunc = func(c *instance.InstanceCreation, s *session.Session) (*instance.WorkflowInstance, error) {
			return nil, errors.New("a mocked error")
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/instances",
			bytes.NewReader([]byte(`{"definition": "Expense"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
	})

	t.Run("should be able to create instance successfully", func(t *testing.T) {
		ts := time.Date(2022, 3, 1, 10, 0, 0, 0, time.Now().Location())
		timeBytes, err := ts.MarshalJSON()
		Expect(err).To(BeNil())
		timeString := strings.Trim(string(timeBytes), `"`)
		instance.CreateInstanceFunc = func(c *instance.InstanceCreation, s *session.Session) (*instance.WorkflowInstance, error) {
			Expect(c.Definition).To(Equal("Expense"))
			return &instance.WorkflowInstance{ID: 123, Definition: c.Definition, CurrentStep: "Draft",
				Properties: instance.PropertyBag{"Title": "lunch"}, Events: instance.EventMap{},
				CreateTime: types.Timestamp(ts)}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/instances",
			bytes.NewReader([]byte(`{"definition": "Expense", "properties": {"Title": "lunch"}}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id": "123", "definition": "Expense", "currentStep": "Draft", "parentId": "0",
			"properties": {"Title": "lunch"}, "events": {}, "version": 0, "createTime": "` + timeString + `"}`))
	})
}

func TestDetailInstanceRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should return 400 when id is invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/instances/abc", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
	})

	t.Run("should return 404 when instance is not found", func(t *testing.T) {
		instance.DetailInstanceFunc = func(id types.ID, s *session.Session) (*instance.WorkflowInstance, error) {
			return nil, &bizerror.ErrEntityNotFound{EntityType: "workflow_instance"}
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/instances/123", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
	})

	t.Run("should return instance detail", func(t *testing.T) {
		ts := time.Date(2022, 3, 1, 10, 0, 0, 0, time.Now().Location())
		timeBytes, err := ts.MarshalJSON()
		Expect(err).To(BeNil())
		timeString := strings.Trim(string(timeBytes), `"`)
		instance.DetailInstanceFunc = func(id types.ID, s *session.Session) (*instance.WorkflowInstance, error) {
			Expect(id).To(Equal(types.ID(123)))
			return &instance.WorkflowInstance{ID: 123, Definition: "Expense", CurrentStep: "Approval",
				Properties: instance.PropertyBag{"Amount": 25.5},
				Events:     instance.EventMap{"SubmitExpense": {Id: "SubmitExpense", Time: nil}},
				Version:    1, CreateTime: types.Timestamp(ts)}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/instances/123", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id": "123", "definition": "Expense", "currentStep": "Approval", "parentId": "0",
			"properties": {"Amount": 25.5}, "events": {"SubmitExpense": {"id": "SubmitExpense"}},
			"version": 1, "createTime": "` + timeString + `"}`))
	})
}

func TestQueryInstancesRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should pass query parameters through", func(t *testing.T) {
		instance.QueryInstancesFunc = func(q *instance.InstanceQuery, s *session.Session) ([]instance.WorkflowInstance, error) {
			Expect(q.Definition).To(Equal("Expense"))
			Expect(q.Step).To(Equal("Approval"))
			return []instance.WorkflowInstance{}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/instances?definition=Expense&step=Approval", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
	})

	t.Run("should be able to handle error when query instances", func(t *testing.T) {
		instance.QueryInstancesFunc = func(q *instance.InstanceQuery, s *session.Session) ([]instance.WorkflowInstance, error) {
			return nil, errors.New("a mocked error")
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/instances", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
	})
}

func TestUpdatePropertiesRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should return 400 when id is invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/instances/abc/properties", bytes.NewReader([]byte(`{}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
	})

	t.Run("should be able to update properties", func(t *testing.T) {
		instance.UpdatePropertiesFunc = func(id types.ID, values map[string]interface{}, s *session.Session) (*instance.WorkflowInstance, error) {
			Expect(id).To(Equal(types.ID(123)))
			Expect(values).To(Equal(map[string]interface{}{"Title": "dinner"}))
			return &instance.WorkflowInstance{ID: 123, Definition: "Expense",
				Properties: instance.PropertyBag{"Title": "dinner"}, Events: instance.EventMap{}}, nil
		}

		req := httptest.NewRequest(http.MethodPut, "/v1/instances/123/properties",
			bytes.NewReader([]byte(`{"Title": "dinner"}`)))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
	})
}

func TestSubmitFormRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should return 400 when id is invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/instances/abc/form-submissions", bytes.NewReader([]byte(`{}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
	})

	t.Run("should return 400 when form is missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/instances/123/form-submissions", bytes.NewReader([]byte(`{}`)))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	t.Run("should take instance id from the path", func(t *testing.T) {
		flow.SubmitFormFunc = func(sub *flow.FormSubmission, s *session.Session) (*flow.SubmitResult, error) {
			Expect(sub.InstanceID).To(Equal(types.ID(123)))
			Expect(sub.Form).To(Equal("SubmitForm"))
			Expect(sub.Answers).To(Equal(map[string]interface{}{"Amount": 25.5}))
			return &flow.SubmitResult{Instance: &instance.WorkflowInstance{ID: 123, Definition: "Expense",
				CurrentStep: "Approval", Properties: instance.PropertyBag{"Amount": 25.5},
				Events: instance.EventMap{}, Version: 1}, Version: 1}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/instances/123/form-submissions",
			bytes.NewReader([]byte(`{"form": "SubmitForm", "answers": {"Amount": 25.5}}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"version":1`))
	})

	t.Run("should return 422 with failures when validation fails", func(t *testing.T) {
		flow.SubmitFormFunc = func(sub *flow.FormSubmission, s *session.Session) (*flow.SubmitResult, error) {
			return &flow.SubmitResult{Failures: []flow.ValidationFailure{
				{Question: "Amount", Message: "Amount is required"}}}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/instances/123/form-submissions",
			bytes.NewReader([]byte(`{"form": "SubmitForm"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnprocessableEntity))
		Expect(body).To(MatchJSON(`{"failures": [{"question": "Amount", "message": "Amount is required"}], "version": 0}`))
	})

	t.Run("should be able to handle error when submit form", func(t *testing.T) {
		flow.SubmitFormFunc = func(sub *flow.FormSubmission, s *session.Session) (*flow.SubmitResult, error) {
			return nil, &bizerror.ErrActionForbidden{Instance: "123", Action: "SubmitForm", Form: "SubmitForm"}
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/instances/123/form-submissions",
			bytes.NewReader([]byte(`{"form": "SubmitForm"}`)))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
	})
}

func TestSearchInstancesRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterInstanceHandler(router)

	t.Run("should pass search parameters through", func(t *testing.T) {
		search.SearchInstancesFunc = func(q search.InstanceSearchQuery, s *session.Session) ([]instance.WorkflowInstance, error) {
			Expect(q.Definition).To(Equal("Expense"))
			Expect(q.Text).To(Equal("lunch"))
			return []instance.WorkflowInstance{}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/instance-searches?definition=Expense&text=lunch", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
	})

	t.Run("should be able to handle error when search instances", func(t *testing.T) {
		search.SearchInstancesFunc = func(q search.InstanceSearchQuery, s *session.Session) ([]instance.WorkflowInstance, error) {
			return nil, errors.New("a mocked error")
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/instance-searches", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
	})
}
