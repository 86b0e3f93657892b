package bizerror

import (
	"errors"
	"fmt"
	"net/http"

	"caseflow/common"
)

var ErrUnauthenticated = errors.New("unauthenticated")
var ErrForbidden = errors.New("forbidden")
var ErrNotFound = errors.New("not found")

var ErrUnknownEvent = errors.New("unknown event")
var ErrUnknownStep = errors.New("unknown step")
var ErrDefinitionIsReferenced = errors.New("definition is referenced")
var ErrInvalidPassword = errors.New("invalid password")

// ErrBadParam wraps a binding or validation failure on a request
// parameter.
type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Error() string {
	if e.Cause == nil {
		return "bad param"
	}
	return "bad param: " + e.Cause.Error()
}
func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: e.Error()}
}

// ErrEntityNotFound carries the entity type and key so callers can map it
// to a 404 with context.
type ErrEntityNotFound struct {
	EntityType string
	Key        string
}

func (e *ErrEntityNotFound) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.EntityType, e.Key)
}
func (e *ErrEntityNotFound) Is(err error) bool {
	return err == ErrNotFound
}
func (e *ErrEntityNotFound) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusNotFound, Code: "common.record_not_found",
		Message: e.Error(), Data: common.ErrorBody{Code: e.EntityType, Message: e.Key}}
}

// ErrActionForbidden carries the instance, action and form context of a
// rejected workflow action.
type ErrActionForbidden struct {
	Instance string
	Action   string
	Form     string
}

func (e *ErrActionForbidden) Error() string {
	return fmt.Sprintf("action '%s' on instance '%s' (form '%s') is not permitted", e.Action, e.Instance, e.Form)
}
func (e *ErrActionForbidden) Is(err error) bool {
	return err == ErrForbidden
}
func (e *ErrActionForbidden) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusForbidden, Code: "security.forbidden", Message: e.Error()}
}

// ErrDefinitionLoad is fatal: the engine must not start while the
// definition graph has unresolved references.
type ErrDefinitionLoad struct {
	Definition string
	Detail     string
}

func (e *ErrDefinitionLoad) Error() string {
	if e.Definition == "" {
		return "definition load: " + e.Detail
	}
	return fmt.Sprintf("definition load: %s: %s", e.Definition, e.Detail)
}

// ErrEffectConfig aborts the remaining effects of a trigger batch.
type ErrEffectConfig struct {
	Trigger string
	Detail  string
}

func (e *ErrEffectConfig) Error() string {
	return fmt.Sprintf("effect configuration: trigger '%s': %s", e.Trigger, e.Detail)
}
