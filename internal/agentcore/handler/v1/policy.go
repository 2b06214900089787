package v1

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/audit"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/pkg/core"
	"github.com/kiosk404/agentcore/pkg/errorx"
)

// DryRunner evaluates a policy decision without recording it.
type DryRunner interface {
	DryRun(actionID string, args map[string]any, c caller.Context) policy.Decision
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

type PolicyHandler struct {
	evaluator DryRunner
	audit     audit.Reader
}

func NewPolicyHandler(evaluator DryRunner, reader audit.Reader) *PolicyHandler {
	return &PolicyHandler{evaluator: evaluator, audit: reader}
}

// Evaluate handles POST /v1/policy/evaluate. Principal tags come from the
// request only when the caller is not authenticated.
func (h *PolicyHandler) Evaluate(c *gin.Context) {
	var req PolicyEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind policy evaluate request"), nil)
		return
	}

	cc := middleware.CallerFrom(c, req.ActorID, "")
	if p, _ := middleware.PrincipalFrom(c); !p.Authenticated && len(req.Tags) > 0 {
		cc.PrincipalTags = req.Tags
	}
	d := h.evaluator.DryRun(req.ActionID, req.Arguments, cc)
	core.WriteResponse(c, nil, PolicyEvaluateResponse{ActionID: req.ActionID, Decision: d, Blocks: d.Blocks()})
}

// Audit handles GET /v1/policy/audit?limit=n.
func (h *PolicyHandler) Audit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			core.WriteResponse(c, errorx.WithCode(ErrValidation, "limit must be a positive integer, got %q", raw), nil)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrAuditRead, "read policy audit"), nil)
		return
	}
	if entries == nil {
		entries = []*policy.AuditEntry{}
	}
	core.WriteResponse(c, nil, gin.H{"data": entries})
}
