package servehttp

import (
	"io/ioutil"
	"net/http"

	"caseflow/bizerror"
	"caseflow/client/oss"
	"caseflow/session"

	"github.com/gin-gonic/gin"
)

func RegisterAttachmentHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/attachments", middleWares...)

	g.POST("", handleUploadAttachment)
	g.GET(":id", handleDownloadAttachment)
	g.DELETE(":id", handleDeleteAttachment)
}

// handleUploadAttachment stores the uploaded file and returns the
// reference a file-typed property carries.
func handleUploadAttachment(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	src, err := file.Open()
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	defer src.Close()

	content, err := ioutil.ReadAll(src)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	ref, err := oss.SaveFileFunc(file.Filename, content, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func handleDownloadAttachment(c *gin.Context) {
	content, err := oss.GetFileFunc(c.Param("id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", content)
}

func handleDeleteAttachment(c *gin.Context) {
	err := oss.DeleteFileFunc(c.Param("id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
