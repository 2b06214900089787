package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kiosk404/agentcore/pkg/logger"
)

// ShutdownCallback runs once when the process receives a termination signal.
type ShutdownCallback func(signal string) error

// GracefulShutdown fans a SIGINT/SIGTERM out to registered callbacks in order.
type GracefulShutdown struct {
	mu        sync.Mutex
	callbacks []ShutdownCallback
	once      sync.Once
}

func NewGracefulShutdown() *GracefulShutdown {
	return &GracefulShutdown{}
}

func (gs *GracefulShutdown) AddShutdownCallback(cb ShutdownCallback) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.callbacks = append(gs.callbacks, cb)
}

// Start listens for signals until ctx is done.
func (gs *GracefulShutdown) Start(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			gs.Shutdown(sig.String())
		case <-ctx.Done():
		}
	}()
}

// Shutdown runs every callback once, logging failures.
func (gs *GracefulShutdown) Shutdown(reason string) {
	gs.once.Do(func() {
		gs.mu.Lock()
		cbs := append([]ShutdownCallback(nil), gs.callbacks...)
		gs.mu.Unlock()

		logger.Info("shutting down: %s", reason)
		for _, cb := range cbs {
			if err := cb(reason); err != nil {
				logger.Warn("shutdown callback failed: %v", err)
			}
		}
	})
}
