package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caseflow/bizerror"
	"caseflow/session"
	"caseflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestSimpleAuthFilter(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	router.Use(session.SimpleAuthFilter())
	router.GET("/secured", func(c *gin.Context) {
		c.JSON(http.StatusOK, &session.ExtractSessionFromGinContext(c).Identity)
	})

	t.Run("should reject requests without a valid token", func(t *testing.T) {
		defer session.TokenCache.Flush()

		req := httptest.NewRequest(http.MethodGet, "/secured", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))

		req = httptest.NewRequest(http.MethodGet, "/secured", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: "unknown-token"})
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	t.Run("should pass valid sessions through", func(t *testing.T) {
		defer session.TokenCache.Flush()
		s := &session.Session{Token: "t-100", Identity: session.Identity{ID: 100, Name: "ann"}}
		session.TokenCache.SetDefault("t-100", s)

		req := httptest.NewRequest(http.MethodGet, "/secured", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: "t-100"})
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id": "100", "name": "ann", "nickname": ""}`))
	})

	t.Run("should refresh the token expiration on access", func(t *testing.T) {
		defer session.TokenCache.Flush()
		s := &session.Session{Token: "t-100", Identity: session.Identity{ID: 100, Name: "ann"}}
		session.TokenCache.Set("t-100", s, 10*time.Second)
		_, before, found := session.TokenCache.GetWithExpiration("t-100")
		Expect(found).To(BeTrue())

		req := httptest.NewRequest(http.MethodGet, "/secured", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: "t-100"})
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		_, after, found := session.TokenCache.GetWithExpiration("t-100")
		Expect(found).To(BeTrue())
		Expect(after.After(before)).To(BeTrue())
	})
}
