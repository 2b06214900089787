package options

import (
	"time"

	"github.com/spf13/pflag"
)

type MemoryOptions struct {
	StoreType     string        `json:"store"          mapstructure:"store"          validate:"oneof=inmemory boltdb"`
	BoltDBPath    string        `json:"boltdb-path"    mapstructure:"boltdb-path"    validate:"required_if=StoreType boltdb"`
	EventExpiry   time.Duration `json:"event-expiry"   mapstructure:"event-expiry"`
	PruneInterval time.Duration `json:"prune-interval" mapstructure:"prune-interval" validate:"gte=0"`
	HistoryLimit  int           `json:"history-limit"  mapstructure:"history-limit"  validate:"min=0"`
}

func NewMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		StoreType:     "inmemory",
		BoltDBPath:    "data/agentcore.db",
		EventExpiry:   7 * 24 * time.Hour,
		PruneInterval: time.Hour,
	}
}

func (o *MemoryOptions) Validate() []error {
	return validateStruct("memory", o)
}

func (o *MemoryOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.StoreType, "memory.store", o.StoreType, "Conversation memory backend: inmemory or boltdb.")
	fs.StringVar(&o.BoltDBPath, "memory.boltdb-path", o.BoltDBPath, "BoltDB file of the boltdb backend.")
	fs.DurationVar(&o.EventExpiry, "memory.event-expiry", o.EventExpiry, "Turns older than this are pruned. Negative keeps everything.")
	fs.DurationVar(&o.PruneInterval, "memory.prune-interval", o.PruneInterval, "How often expired turns are pruned.")
	fs.IntVar(&o.HistoryLimit, "memory.history-limit", o.HistoryLimit, "Most recent turns shown to the model, 0 for all.")
}
