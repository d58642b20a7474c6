package resources

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config" //nolint:depguard // Wired in engine wiring
)

// NodeID is the unique identifier for the resource tracker Graft node.
const NodeID graft.ID = "engine.resources"

func init() {
	graft.Register(graft.Node[*Tracker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (*Tracker, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewTracker(cfg.Resources.RAMMB, cfg.Resources.CPUCores), nil
		},
	})
}
