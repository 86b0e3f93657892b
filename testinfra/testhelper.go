package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"caseflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx builds a session for tests. Perms follow the
// "<role>_<definitionName>" convention, e.g. "Approver_Expense".
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Identity: session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:    perms,
		Token:    "test-token-" + uid.String(),
		Context:  context.Background(),
	}
}

// ExecuteRequest drives the router with the request and collects the
// response for assertions.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	body, _ := ioutil.ReadAll(res.Body)
	return res.StatusCode, string(body), res
}
