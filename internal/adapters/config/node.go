package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the config Graft node.
const NodeID graft.ID = "adapter.config"

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "FORGE_CONFIG"

func init() {
	graft.Register(graft.Node[*Config]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (*Config, error) {
			path := os.Getenv(EnvConfigPath)
			if path == "" {
				path = "forge.yaml"
			}
			return Load(path)
		},
	})
}
