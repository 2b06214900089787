package v1

import (
	"net/http"

	"github.com/kiosk404/agentcore/pkg/errorx"
)

// agentcore handler error codes.
// Code format: 1XXYYZ
//   - 1:  module prefix (agentcore handler)
//   - XX: resource group (00=common, 01=invocation, 02=session, 03=tool, 04=policy)
//   - YY: sequential error number
//   - Z:  reserved (0)

const (
	// Common request errors (100xxx).
	ErrBind       = 100001
	ErrValidation = 100002

	// Invocation errors (1001xx).
	ErrPromptMissing      = 100101
	ErrSessionBusy        = 100102
	ErrStepBudgetExceeded = 100103
	ErrRunCancelled       = 100104
	ErrIdentity           = 100105
	ErrRunDeadline        = 100106
	ErrAgentRun           = 100107
	ErrSessionForbidden   = 100108

	// Session errors (1002xx).
	ErrSessionList = 100201
	ErrTurnList    = 100202
	ErrNoActiveRun = 100203

	// Policy errors (1004xx).
	ErrAuditRead = 100401
)

// StatusClientClosedRequest is the non-standard status of a run the client cancelled.
const StatusClientClosedRequest = 499

func init() {
	// Common.
	errorx.MustRegister(newCoder(ErrBind, http.StatusBadRequest, "Request body binding failed"))
	errorx.MustRegister(newCoder(ErrValidation, http.StatusBadRequest, "Request validation failed"))

	// Invocation.
	errorx.MustRegister(newCoder(ErrPromptMissing, http.StatusBadRequest, "No prompt found in input payload"))
	errorx.MustRegister(newCoder(ErrSessionBusy, http.StatusConflict, "Session is busy"))
	errorx.MustRegister(newCoder(ErrStepBudgetExceeded, http.StatusUnprocessableEntity, "Step budget exceeded"))
	errorx.MustRegister(newCoder(ErrRunCancelled, StatusClientClosedRequest, "Invocation cancelled"))
	errorx.MustRegister(newCoder(ErrIdentity, http.StatusServiceUnavailable, "Identity service unavailable"))
	errorx.MustRegister(newCoder(ErrRunDeadline, http.StatusGatewayTimeout, "Invocation deadline exceeded"))
	errorx.MustRegister(newCoder(ErrAgentRun, http.StatusInternalServerError, "Agent run failed"))
	errorx.MustRegister(newCoder(ErrSessionForbidden, http.StatusForbidden, "Session belongs to another actor"))

	// Session.
	errorx.MustRegister(newCoder(ErrSessionList, http.StatusInternalServerError, "Failed to list sessions"))
	errorx.MustRegister(newCoder(ErrTurnList, http.StatusInternalServerError, "Failed to list turns"))
	errorx.MustRegister(newCoder(ErrNoActiveRun, http.StatusNotFound, "No run in progress"))

	// Policy.
	errorx.MustRegister(newCoder(ErrAuditRead, http.StatusInternalServerError, "Failed to read policy audit"))
}

type coder struct {
	code int
	http int
	msg  string
}

func newCoder(code, httpStatus int, msg string) *coder {
	return &coder{code: code, http: httpStatus, msg: msg}
}

func (c *coder) Code() int         { return c.code }
func (c *coder) HTTPStatus() int   { return c.http }
func (c *coder) String() string    { return c.msg }
func (c *coder) Reference() string { return "" }
