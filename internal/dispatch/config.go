package dispatch

import (
	"fmt"

	"github.com/atharv3903/towdispatch/internal/algo"
	"github.com/atharv3903/towdispatch/internal/model"
)

// DefaultMaxDistance is the distance above which the nearest truck is
// rejected as too far.
const DefaultMaxDistance model.Distance = 10_000_000

const (
	// GraphPerRequest builds a fresh graph for every dispatch and discards it.
	GraphPerRequest = "per_request"
	// GraphShared keeps built graphs per area until the area is invalidated.
	// Each shared graph also caches the distance tables of its most recent
	// sources, at most SourceCacheCapacity of them.
	GraphShared = "shared"
)

// Config defines dispatch-related settings.
type Config struct {
	// MaxDistance is nil when unset. Zero is a valid threshold that only
	// accepts trucks on the order's node.
	MaxDistance         *int64 `json:"max_distance"`
	GraphMode           string `json:"graph_mode"`
	Algorithm           string `json:"algorithm"`
	GraphCacheCapacity  int    `json:"graph_cache_capacity"`
	SourceCacheCapacity int    `json:"source_cache_capacity"`
}

// SetDefaults applies the defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.MaxDistance == nil {
		d := int64(DefaultMaxDistance)
		c.MaxDistance = &d
	}
	if c.GraphMode == "" {
		c.GraphMode = GraphPerRequest
	}
	if c.Algorithm == "" {
		c.Algorithm = string(algo.AlgorithmQueue)
	}
	if c.GraphCacheCapacity == 0 {
		c.GraphCacheCapacity = 64
	}
	if c.SourceCacheCapacity == 0 {
		c.SourceCacheCapacity = 256
	}
}

// Threshold returns the configured maximum distance, or the default when
// MaxDistance is unset.
func (c Config) Threshold() model.Distance {
	if c.MaxDistance == nil {
		return DefaultMaxDistance
	}
	return model.Distance(*c.MaxDistance)
}

func (c Config) Validate() error {
	if c.MaxDistance != nil && *c.MaxDistance < 0 {
		return fmt.Errorf("dispatch: max_distance must not be negative")
	}
	if c.GraphMode != GraphPerRequest && c.GraphMode != GraphShared {
		return fmt.Errorf("dispatch: unknown graph_mode %q", c.GraphMode)
	}
	if _, err := algo.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if c.GraphCacheCapacity < 0 {
		return fmt.Errorf("dispatch: graph_cache_capacity must not be negative")
	}
	if c.SourceCacheCapacity < 0 {
		return fmt.Errorf("dispatch: source_cache_capacity must not be negative")
	}
	return nil
}
