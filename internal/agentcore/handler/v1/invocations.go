package v1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/service/runtime"
	agentErrno "github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	identityErrno "github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	"github.com/kiosk404/agentcore/internal/pkg/server"
	"github.com/kiosk404/agentcore/pkg/errorx"
	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

const promptMissingMessage = "No prompt found in input payload"

// Runner runs one invocation through the reasoning loop.
type Runner interface {
	Run(ctx context.Context, req runtime.RunRequest) (*runtime.RunResult, error)
}

// AgentInfo is reported in the metadata of every successful invocation.
type AgentInfo struct {
	Name   string
	Model  string
	Region string
}

// InvocationHandler handles POST /invocations.
//
// A request with Accept: text/event-stream gets one "step" event per tool
// dispatch followed by a single "result" or "error" event.
type InvocationHandler struct {
	runner   Runner
	info     AgentInfo
	activity *Activity
}

func NewInvocationHandler(runner Runner, info AgentInfo, activity *Activity) *InvocationHandler {
	if activity == nil {
		activity = NewActivity()
	}
	return &InvocationHandler{runner: runner, info: info, activity: activity}
}

func (h *InvocationHandler) Handle(c *gin.Context) {
	start := time.Now()

	var req InvocationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(c, errorx.WrapC(err, ErrBind, "invalid request body"))
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(req.Input)
	}
	if prompt == "" {
		writeFailure(c, errorx.WithCode(ErrPromptMissing, promptMissingMessage))
		return
	}

	cc := middleware.CallerFrom(c, req.ActorID, req.SessionID)
	runReq := runtime.RunRequest{
		Prompt:        prompt,
		SessionID:     req.SessionID,
		ActorID:       cc.ActorID,
		PrincipalTags: cc.PrincipalTags,
	}

	h.activity.Begin()
	defer h.activity.End()

	if wantsStream(c) {
		h.handleStream(c, runReq, start)
		return
	}

	res, err := h.runner.Run(c.Request.Context(), runReq)
	if err != nil {
		writeFailure(c, runError(err))
		return
	}
	c.JSON(http.StatusOK, h.success(c, res, start))
}

func (h *InvocationHandler) handleStream(c *gin.Context, req runtime.RunRequest, start time.Time) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	seq := 0
	emit := func(event string, data any) {
		payload, err := json.MarshalString(data)
		if err != nil {
			logger.Warn("[Invocations] marshal %s event: %v", event, err)
			return
		}
		seq++
		if err := sse.Encode(c.Writer, sse.Event{Event: event, Id: strconv.Itoa(seq), Data: payload}); err != nil {
			logger.Warn("[Invocations] write %s event: %v", event, err)
			return
		}
		c.Writer.Flush()
	}

	req.Observer = runtime.ObserverFunc(func(step entity.Step) {
		emit("step", StepView{Action: step.Action, Result: step.Result})
	})

	res, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		err = runError(err)
		logFailure(c, err)
		emit("error", FailureResponse{Error: err.Error()})
		return
	}
	emit("result", h.success(c, res, start))
}

func (h *InvocationHandler) success(c *gin.Context, res *runtime.RunResult, start time.Time) InvocationResponse {
	return InvocationResponse{
		Result:  res.Answer,
		Success: true,
		Metadata: InvocationMetadata{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			SessionID:       res.SessionID,
			ActorID:         res.ActorID,
			RequestID:       c.GetString(server.HeaderRequestID),
			Model:           h.info.Model,
			Region:          h.info.Region,
			Agent:           h.info.Name,
			Steps:           toStepViews(res.Steps),
		},
	}
}

// runError attaches the HTTP-facing code of a loop failure. A busy session
// wraps the abort reason, so it is checked first.
func runError(err error) error {
	switch {
	case errors.Is(err, agentErrno.ErrEmptyPrompt):
		return errorx.WithCode(ErrPromptMissing, promptMissingMessage)
	case errors.Is(err, agentErrno.ErrSessionForbidden):
		return errorx.WrapC(err, ErrSessionForbidden, "invocation failed")
	case errors.Is(err, agentErrno.ErrSessionBusy):
		return errorx.WrapC(err, ErrSessionBusy, "invocation failed")
	case errors.Is(err, agentErrno.ErrStepBudgetExceeded):
		return errorx.WrapC(err, ErrStepBudgetExceeded, "invocation failed")
	case errors.Is(err, agentErrno.ErrDeadlineExceeded):
		return errorx.WrapC(err, ErrRunDeadline, "invocation failed")
	case errors.Is(err, agentErrno.ErrCancelled):
		return errorx.WrapC(err, ErrRunCancelled, "invocation failed")
	case errors.Is(err, identityErrno.ErrIdentityUnavailable):
		return errorx.WrapC(err, ErrIdentity, "invocation failed")
	default:
		return errorx.WrapC(err, ErrAgentRun, "invocation failed")
	}
}

// writeFailure renders the uniform failure body with the coder's status.
func writeFailure(c *gin.Context, err error) {
	logFailure(c, err)
	c.JSON(errorx.ParseCoder(err).HTTPStatus(), FailureResponse{Success: false, Error: err.Error()})
}

func logFailure(c *gin.Context, err error) {
	coder := errorx.ParseCoder(err)
	logger.Warn("[Invocations] request %s failed (code=%d): %v", c.GetString(server.HeaderRequestID), coder.Code(), err)
}

func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}
