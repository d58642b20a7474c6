package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/checkpoint" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/config"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/logger"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/shell"      //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/state"      //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/telemetry"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/resources"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			state.NodeID,
			shell.NodeID,
			checkpoint.NodeID,
			telemetry.NodeID,
			logger.NodeID,
			resolver.NodeID,
			resources.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.StateStore](ctx)
			if err != nil {
				return nil, err
			}

			executor, err := graft.Dep[ports.BuildExecutor](ctx)
			if err != nil {
				return nil, err
			}

			checkpoints, err := graft.Dep[ports.CheckpointManager](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			res, err := graft.Dep[*resolver.Resolver](ctx)
			if err != nil {
				return nil, err
			}

			tracker, err := graft.Dep[*resources.Tracker](ctx)
			if err != nil {
				return nil, err
			}

			return New(store, executor, checkpoints, tracker, res, tracer, log, Options{
				MaxParallel:     cfg.MaxParallel,
				PollInterval:    cfg.PollInterval.Std(),
				BuildRoot:       cfg.BuildRoot,
				SkipTests:       cfg.SkipTests,
				DefaultRAMMB:    cfg.Defaults.RAMMB,
				DefaultCPUCores: cfg.Defaults.CPUCores,
			}), nil
		},
	})
}
