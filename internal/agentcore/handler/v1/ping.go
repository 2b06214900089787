package v1

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy     = "Healthy"
	StatusHealthyBusy = "HealthyBusy"
)

// Activity tracks in-flight invocations for the ping endpoint. The update
// time moves only when the status changes.
type Activity struct {
	inflight   atomic.Int64
	lastUpdate atomic.Int64
	now        func() time.Time
}

func NewActivity() *Activity {
	a := &Activity{now: time.Now}
	a.lastUpdate.Store(a.now().Unix())
	return a
}

func (a *Activity) Begin() {
	if a.inflight.Add(1) == 1 {
		a.lastUpdate.Store(a.now().Unix())
	}
}

func (a *Activity) End() {
	if a.inflight.Add(-1) == 0 {
		a.lastUpdate.Store(a.now().Unix())
	}
}

// Status returns the health status and the unix time it last changed.
func (a *Activity) Status() (string, int64) {
	status := StatusHealthy
	if a.inflight.Load() > 0 {
		status = StatusHealthyBusy
	}
	return status, a.lastUpdate.Load()
}

// Ping handles GET /ping.
func Ping(a *Activity) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, last := a.Status()
		c.JSON(http.StatusOK, gin.H{"status": status, "time_of_last_update": last})
	}
}
