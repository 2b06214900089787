package v1

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	agentErrno "github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	"github.com/kiosk404/agentcore/internal/pkg/core"
	"github.com/kiosk404/agentcore/pkg/errorx"
)

// Aborter cancels the run in progress on a session.
type Aborter interface {
	Abort(sessionID, actorID string) error
}

// SessionHandler serves conversation memory read endpoints and run aborts.
type SessionHandler struct {
	memory  repo.MemoryRepository
	aborter Aborter
}

func NewSessionHandler(memory repo.MemoryRepository, aborter Aborter) *SessionHandler {
	return &SessionHandler{memory: memory, aborter: aborter}
}

// Abort handles POST /v1/sessions/:session_id/abort. Only the session's actor
// may abort its run.
func (h *SessionHandler) Abort(c *gin.Context) {
	id := c.Param("session_id")
	cc := middleware.CallerFrom(c, c.Query("actor_id"), id)
	err := h.aborter.Abort(id, cc.ActorID)
	switch {
	case err == nil:
		core.WriteResponse(c, nil, gin.H{"session_id": id, "aborted": true})
	case errors.Is(err, agentErrno.ErrNoActiveRun):
		core.WriteResponse(c, errorx.WrapC(err, ErrNoActiveRun, "abort session %q", id), nil)
	case errors.Is(err, agentErrno.ErrSessionForbidden):
		core.WriteResponse(c, errorx.WrapC(err, ErrSessionForbidden, "abort session %q", id), nil)
	default:
		core.WriteResponse(c, errorx.WrapC(err, ErrAgentRun, "abort session %q", id), nil)
	}
}

// Turns handles GET /v1/sessions/:session_id/turns.
func (h *SessionHandler) Turns(c *gin.Context) {
	id := c.Param("session_id")
	turns, err := h.memory.List(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrTurnList, "list turns of session %q", id), nil)
		return
	}

	resp := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		resp = append(resp, TurnResponse{
			ID:        t.ID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: FormatTime(t.CreatedAt),
			Tool:      t.Tool,
		})
	}
	core.WriteResponse(c, nil, gin.H{"session_id": id, "data": resp})
}

// ListByActor handles GET /v1/actors/:actor_id/sessions.
func (h *SessionHandler) ListByActor(c *gin.Context) {
	actorID := c.Param("actor_id")
	sessions, err := h.memory.ListSessions(c.Request.Context(), actorID)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrSessionList, "list sessions for actor %q", actorID), nil)
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, SessionResponse{
			SessionID: s.SessionID,
			Turns:     s.Turns,
			UpdatedAt: FormatTime(s.UpdatedAt),
		})
	}
	core.WriteResponse(c, nil, gin.H{"actor_id": actorID, "data": resp})
}
