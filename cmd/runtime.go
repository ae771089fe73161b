package cmd

import (
	"fmt"
	"log/slog"

	"github.com/adalundhe/agentpm/core/composer"
	"github.com/adalundhe/agentpm/core/config"
	"github.com/adalundhe/agentpm/core/hierarchy"
	"github.com/adalundhe/agentpm/core/orchestrator"
	"github.com/adalundhe/agentpm/core/profile"
	"github.com/adalundhe/agentpm/core/promptcache"
	"github.com/adalundhe/agentpm/core/training"
)

// runtime wires the full component stack for one CLI invocation. Each
// command builds its own; the prompt cache is constructed once from the
// loaded config and shared by every component in the runtime, so
// repeated compositions within one invocation hit it.
type runtime struct {
	cfg      *config.Config
	manager  *config.Manager
	store    *profile.Store
	resolver *hierarchy.Resolver
	training *training.Store
	cache    *promptcache.Cache
	composer *composer.Composer
	builder  *orchestrator.Builder
}

func newRuntime() (*runtime, error) {
	manager := config.NewManager(slog.Default())
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := manager.Get()

	store, err := profile.NewStore(profile.StoreConfig{
		TierPaths: map[profile.Tier]string{
			profile.TierProject: cfg.Profiles.ProjectDir,
			profile.TierUser:    cfg.Profiles.UserDir,
			profile.TierSystem:  cfg.Profiles.SystemDir,
		},
	})
	if err != nil {
		return nil, err
	}
	resolver := hierarchy.NewResolver(store, slog.Default())

	trainingStore, err := training.NewStore(training.StoreConfig{
		Dir:      cfg.Training.Dir,
		CacheTTL: cfg.Training.CacheTTL,
	})
	if err != nil {
		return nil, err
	}

	cache := promptcache.New(promptcache.Config{
		Capacity:   cfg.Cache.Capacity,
		DefaultTTL: cfg.Cache.TTL,
	})
	comp := composer.New(composer.Config{
		Resolver: resolver,
		Training: trainingStore,
		Cache:    cache,
		CacheTTL: cfg.Cache.TTL,
	})
	builder := orchestrator.NewBuilder(orchestrator.BuilderConfig{
		Composer: comp,
		History:  orchestrator.NewHistory(cfg.History.Size, cfg.History.AuditDB, slog.Default()),
	})

	return &runtime{
		cfg:      cfg,
		manager:  manager,
		store:    store,
		resolver: resolver,
		training: trainingStore,
		cache:    cache,
		composer: comp,
		builder:  builder,
	}, nil
}

func (r *runtime) close() {
	r.training.Close()
	_ = r.builder.History().Close()
	_ = r.manager.Close()
}
