package agentcore

import (
	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	v1 "github.com/kiosk404/agentcore/internal/agentcore/handler/v1"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/audit"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	runner     v1.Runner
	aborter    v1.Aborter
	memory     repo.MemoryRepository
	tools      v1.ToolLister
	dryRunner  v1.DryRunner
	audit      audit.Reader
	authConfig *middleware.AuthConfig
	agentInfo  v1.AgentInfo
	activity   *v1.Activity
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installMiddleware(g, deps)
	installController(g, deps)
}

func installMiddleware(g *gin.Engine, deps *routerDeps) {
	g.Use(gin.Recovery())
	g.Use(middleware.CORS())

	if deps.authConfig != nil {
		g.Use(middleware.BearerAuth(deps.authConfig))
	}
}

func installController(g *gin.Engine, deps *routerDeps) {
	activity := deps.activity
	if activity == nil {
		activity = v1.NewActivity()
	}

	invocationHandler := v1.NewInvocationHandler(deps.runner, deps.agentInfo, activity)
	sessionHandler := v1.NewSessionHandler(deps.memory, deps.aborter)
	toolHandler := v1.NewToolHandler(deps.tools)
	policyHandler := v1.NewPolicyHandler(deps.dryRunner, deps.audit)

	// Runtime contract.
	g.POST("/invocations", invocationHandler.Handle)
	g.GET("/ping", v1.Ping(activity))

	apiV1 := g.Group("/v1")
	{
		apiV1.GET("/sessions/:session_id/turns", sessionHandler.Turns)
		apiV1.POST("/sessions/:session_id/abort", sessionHandler.Abort)
		apiV1.GET("/actors/:actor_id/sessions", sessionHandler.ListByActor)

		apiV1.GET("/tools", toolHandler.List)

		apiV1.POST("/policy/evaluate", policyHandler.Evaluate)
		apiV1.GET("/policy/audit", policyHandler.Audit)
	}
}
