package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiosk404/agentcore/pkg/logger"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// GenericAPIServer contains state for a gin based api server.
type GenericAPIServer struct {
	middlewares         []string
	InsecureServingInfo *InsecureServingInfo
	shutdownTimeout     time.Duration

	*gin.Engine
	healthz         bool
	enableProfiling bool

	insecureServer *http.Server
}

func initGenericAPIServer(s *GenericAPIServer) {
	s.Setup()
	s.InstallMiddlewares()
	s.InstallAPIs()
}

// Setup prints registered routes in debug mode.
func (s *GenericAPIServer) Setup() {
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
		logger.Debug("%-6s %-s --> %s (%d handlers)", httpMethod, absolutePath, handlerName, nuHandlers)
	}
}

// InstallMiddlewares installs the generic middlewares. Request ids are always on.
func (s *GenericAPIServer) InstallMiddlewares() {
	s.Use(RequestID())
	for _, m := range s.middlewares {
		mw, ok := Middlewares[m]
		if !ok {
			logger.Warn("can not find middleware: %s", m)
			continue
		}
		logger.Info("install middleware: %s", m)
		s.Use(mw)
	}
}

// InstallAPIs installs the generic apis.
func (s *GenericAPIServer) InstallAPIs() {
	if s.healthz {
		s.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
	if s.enableProfiling {
		pprof.Register(s.Engine)
	}
}

// Run spawns the http server. It only returns when the server stops listening.
func (s *GenericAPIServer) Run() error {
	s.insecureServer = &http.Server{
		Addr:    s.InsecureServingInfo.Address,
		Handler: s,
	}

	logger.Info("start to listening the incoming requests on http address: %s", s.InsecureServingInfo.Address)
	if err := s.insecureServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server on %s stopped", s.InsecureServingInfo.Address)
	return nil
}

// Close gracefully shuts the api server down.
func (s *GenericAPIServer) Close() {
	if s.insecureServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.insecureServer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown insecure server failed: %s", err.Error())
	}
}

// Middlewares are the optional middlewares selectable by name.
var Middlewares = map[string]gin.HandlerFunc{
	"recovery": gin.Recovery(),
	"logger":   Logger(),
}

// RequestID ensures every request carries an X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
			c.Request.Header.Set(HeaderRequestID, rid)
		}
		c.Set(HeaderRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// Logger logs one line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(map[string]any{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(HeaderRequestID),
		}).Info("http request")
	}
}
