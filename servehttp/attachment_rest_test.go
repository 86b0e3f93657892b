package servehttp_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"caseflow/bizerror"
	"caseflow/client/oss"
	"caseflow/domain/instance"
	"caseflow/servehttp"
	"caseflow/session"
	"caseflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestAttachmentRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterAttachmentHandler(router)

	t.Run("should return 400 when file part is missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/attachments", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	t.Run("should be able to upload a file", func(t *testing.T) {
		oss.SaveFileFunc = func(name string, content []byte, s *session.Session) (*instance.FileRef, error) {
			Expect(name).To(Equal("receipt.pdf"))
			Expect(content).To(Equal([]byte("file content")))
			return &instance.FileRef{ID: "100", Name: name}, nil
		}

		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		part, err := writer.CreateFormFile("file", "receipt.pdf")
		Expect(err).To(BeNil())
		_, err = part.Write([]byte("file content"))
		Expect(err).To(BeNil())
		Expect(writer.Close()).To(BeNil())

		req := httptest.NewRequest(http.MethodPost, "/v1/attachments", buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id": "100", "name": "receipt.pdf"}`))
	})

	t.Run("should be able to download a file", func(t *testing.T) {
		oss.GetFileFunc = func(id string, s *session.Session) ([]byte, error) {
			Expect(id).To(Equal("100"))
			return []byte("file content"), nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/attachments/100", nil)
		status, body, resp := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("file content"))
		Expect(resp.Header.Get("Content-Type")).To(Equal("application/octet-stream"))
	})

	t.Run("should be able to delete a file", func(t *testing.T) {
		oss.DeleteFileFunc = func(id string, s *session.Session) error {
			Expect(id).To(Equal("100"))
			return nil
		}

		req := httptest.NewRequest(http.MethodDelete, "/v1/attachments/100", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
	})

	t.Run("should be able to handle storage errors", func(t *testing.T) {
		oss.GetFileFunc = func(id string, s *session.Session) ([]byte, error) {
			return nil, errors.New("a mocked error")
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/attachments/100", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
	})
}
