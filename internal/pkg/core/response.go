package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/pkg/errorx"
	"github.com/kiosk404/agentcore/pkg/logger"
)

// ErrResponse defines the return messages when an error occurred.
type ErrResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// WriteResponse writes an error or the response data into the http response body.
// An error is rendered through its registered coder.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		coder := errorx.ParseCoder(err)
		logger.Warn("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(coder.HTTPStatus(), ErrResponse{
			Code:      coder.Code(),
			Message:   coder.String(),
			Reference: coder.Reference(),
		})
		return
	}

	c.JSON(http.StatusOK, data)
}
