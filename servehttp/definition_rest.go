package servehttp

import (
	"net/http"

	"caseflow/domain/definition"
	"caseflow/session"

	"github.com/gin-gonic/gin"
)

func RegisterDefinitionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/definitions", middleWares...)

	g.GET("", handleListDefinitions)
	g.GET(":name", handleDetailDefinition)
}

func handleListDefinitions(c *gin.Context) {
	briefs := definition.ListDefinitionsFunc(session.ExtractSessionFromGinContext(c))
	c.JSON(http.StatusOK, briefs)
}

func handleDetailDefinition(c *gin.Context) {
	detail, err := definition.DetailDefinitionFunc(c.Param("name"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}
