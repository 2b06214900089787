package v1

import (
	"github.com/gin-gonic/gin"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/pkg/core"
)

// ToolLister is the read side of the tool registry.
type ToolLister interface {
	List() []*tools.ToolSpec
}

type ToolHandler struct {
	registry ToolLister
}

func NewToolHandler(registry ToolLister) *ToolHandler {
	return &ToolHandler{registry: registry}
}

// List handles GET /v1/tools.
func (h *ToolHandler) List(c *gin.Context) {
	specs := h.registry.List()
	resp := make([]ToolResponse, 0, len(specs))
	for _, s := range specs {
		r := ToolResponse{
			Name:        s.Name,
			Description: s.Description,
			Source:      s.Source,
			ActionID:    s.Action().String(),
		}
		if s.InputSchema != nil {
			r.InputSchema = s.InputSchema
		}
		resp = append(resp, r)
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}
