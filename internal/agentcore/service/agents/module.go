package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/service/runtime"
	boltdbStore "github.com/kiosk404/agentcore/internal/agentcore/service/agents/store/boltdb"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/store/inmemory"
	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/kiosk404/agentcore/pkg/utils/safego"
)

const ModuleName = "agents"

const (
	StoreInMemory = "inmemory"
	StoreBoltDB   = "boltdb"
)

// Config holds the configuration for the Agents module.
// Follows K8S-style: Config → Complete() → New(ctx, deps).
type Config struct {
	// MaxSteps is the maximum tool dispatches per run (default: 10).
	MaxSteps int `json:"max_steps,omitempty"`

	// RunTimeout is the maximum duration for a single run (default: 5m).
	RunTimeout time.Duration `json:"run_timeout,omitempty"`

	// HistoryLimit keeps only the most recent turns of a session in the
	// reasoner's view. 0 means no limit.
	HistoryLimit int `json:"history_limit,omitempty"`

	// StoreType selects the persistence backend: "inmemory" or "boltdb".
	StoreType string `json:"store_type,omitempty"`

	// BoltDBPath is the file path for BoltDB storage (when StoreType="boltdb").
	// Default: "data/agentcore.db".
	BoltDBPath string `json:"boltdb_path,omitempty"`

	// EventExpiry drops turns older than this (default: 7 days). Negative disables pruning.
	EventExpiry time.Duration `json:"event_expiry,omitempty"`

	// PruneInterval is how often expired turns are removed (default: 1h).
	PruneInterval time.Duration `json:"prune_interval,omitempty"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.StoreType == "" {
		c.StoreType = StoreInMemory
	}
	if c.BoltDBPath == "" {
		c.BoltDBPath = "data/agentcore.db"
	}
	if c.EventExpiry == 0 {
		c.EventExpiry = 7 * 24 * time.Hour
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Hour
	}
	return CompletedConfig{c}
}

// Dependencies holds the external modules required by the Agents module.
type Dependencies struct {
	Reasoner runtime.Reasoner
	Tools    runtime.ToolDispatcher
}

// Module is the top-level Agents module.
type Module struct {
	Loop   *runtime.Loop
	Memory repo.MemoryRepository
	boltDB *boltdbStore.DB // nil when using inmemory store
	stop   context.CancelFunc
	done   chan struct{}
}

// Close stops the pruner and releases the store.
func (m *Module) Close() error {
	if m.stop != nil {
		m.stop()
		<-m.done
	}
	if m.boltDB != nil {
		return m.boltDB.Close()
	}
	return nil
}

// New creates and initializes the Agents module from a completed config.
func (c CompletedConfig) New(ctx context.Context, deps Dependencies) (*Module, error) {
	logger.InfoX(ModuleName, "creating agents module...")

	var (
		memory repo.MemoryRepository
		boltDB *boltdbStore.DB
	)
	switch c.StoreType {
	case StoreBoltDB:
		var err error
		boltDB, err = boltdbStore.Open(c.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb at %s: %w", c.BoltDBPath, err)
		}
		memory = boltdbStore.NewMemoryStore(boltDB)
		logger.InfoX(ModuleName, "using BoltDB store at %s", c.BoltDBPath)
	case StoreInMemory:
		memory = inmemory.NewMemoryStore()
		logger.InfoX(ModuleName, "using in-memory store")
	default:
		return nil, fmt.Errorf("unknown memory store %q", c.StoreType)
	}

	loop, err := runtime.NewLoop(deps.Reasoner, deps.Tools, memory, runtime.LoopConfig{
		MaxSteps:     c.MaxSteps,
		RunTimeout:   c.RunTimeout,
		HistoryLimit: c.HistoryLimit,
	})
	if err != nil {
		if boltDB != nil {
			_ = boltDB.Close()
		}
		return nil, err
	}

	m := &Module{Loop: loop, Memory: memory, boltDB: boltDB}
	if c.EventExpiry > 0 {
		pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.stop = cancel
		m.done = make(chan struct{})
		safego.Go(context.Background(), func() { m.pruneLoop(pctx, c.EventExpiry, c.PruneInterval) })
	}

	logger.InfoX(ModuleName, "agents module initialized (store=%s, max_steps=%d, timeout=%s, history_limit=%d, expiry=%s)",
		c.StoreType, c.MaxSteps, c.RunTimeout, c.HistoryLimit, c.EventExpiry)
	return m, nil
}

func (m *Module) pruneLoop(ctx context.Context, expiry, every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := m.Memory.Prune(ctx, now.Add(-expiry))
			if err != nil {
				logger.WarnX(ModuleName, "prune expired turns: %v", err)
				continue
			}
			if n > 0 {
				logger.InfoX(ModuleName, "pruned %d turns older than %s", n, expiry)
			}
		}
	}
}
