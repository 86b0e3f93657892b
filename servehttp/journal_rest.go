package servehttp

import (
	"net/http"
	"strconv"
	"time"

	"caseflow/common"
	"caseflow/domain/journal"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

func RegisterJournalHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/instances", middleWares...)

	g.GET(":id/journal", handleQueryJournal)
	g.GET(":id/property-snapshot", handlePropertySnapshot)
	g.GET(":id/steps/:stepName/versions", handleStepVersions)
}

func handleQueryJournal(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	entries, err := journal.QueryJournalFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, entries)
}

// handlePropertySnapshot reconstructs the instance's properties as they
// were at a past version (`?version=N`) or point in time (`?at=RFC3339`).
// Exactly one of the two selectors must be given.
func handlePropertySnapshot(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	versionParam, hasVersion := c.GetQuery("version")
	atParam, hasAt := c.GetQuery("at")
	if hasVersion == hasAt {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param",
			Message: "exactly one of 'version' and 'at' is required"})
		return
	}

	s := session.ExtractSessionFromGinContext(c)
	if hasVersion {
		version, err := strconv.Atoi(versionParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid version '" + versionParam + "'"})
			return
		}
		bag, err := journal.GetAsOfVersionFunc(id, version, s)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.JSON(http.StatusOK, bag)
		return
	}

	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid timestamp '" + atParam + "'"})
		return
	}
	bag, err := journal.GetAsOfTimestampFunc(id, types.Timestamp(at), s)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, bag)
}

func handleStepVersions(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	versions, err := journal.GetStepVersionsFunc(id, c.Param("stepName"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, versions)
}
