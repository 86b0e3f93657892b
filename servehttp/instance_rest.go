package servehttp

import (
	"net/http"

	"caseflow/bizerror"
	"caseflow/common"
	"caseflow/domain/flow"
	"caseflow/domain/instance"
	"caseflow/indices/search"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterInstanceHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/instances", middleWares...)

	handler := &instanceHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateInstance)
	g.GET("", handler.handleQueryInstances)
	g.GET(":id", handler.handleDetailInstance)
	g.PUT(":id/properties", handler.handleUpdateProperties)
	g.POST(":id/form-submissions", handler.handleSubmitForm)

	s := r.Group("/v1/instance-searches", middleWares...)
	s.GET("", handler.handleSearchInstances)
}

type instanceHandler struct {
	validator *validator.Validate
}

func (h *instanceHandler) handleCreateInstance(c *gin.Context) {
	creation := instance.InstanceCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	inst, err := instance.CreateInstanceFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, inst)
}

func (h *instanceHandler) handleQueryInstances(c *gin.Context) {
	query := instance.InstanceQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	instances, err := instance.QueryInstancesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, instances)
}

func (h *instanceHandler) handleDetailInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	inst, err := instance.DetailInstanceFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *instanceHandler) handleUpdateProperties(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	values := map[string]interface{}{}
	err = c.ShouldBindBodyWith(&values, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	inst, err := instance.UpdatePropertiesFunc(id, values, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *instanceHandler) handleSubmitForm(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	submission := flow.FormSubmission{}
	err = c.ShouldBindBodyWith(&submission, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(submission); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	submission.InstanceID = id

	result, err := flow.SubmitFormFunc(&submission, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if len(result.Failures) > 0 {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *instanceHandler) handleSearchInstances(c *gin.Context) {
	query := search.InstanceSearchQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	instances, err := search.SearchInstancesFunc(query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, instances)
}
