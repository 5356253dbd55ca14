package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/config"
	"github.com/jwebster45206/parley/internal/conversation"
	"github.com/jwebster45206/parley/internal/memory"
	"github.com/jwebster45206/parley/internal/services"
	"github.com/jwebster45206/parley/internal/services/events"
	"github.com/jwebster45206/parley/internal/services/queue"
	"github.com/jwebster45206/parley/internal/speech"
	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/internal/worker"
	queuePkg "github.com/jwebster45206/parley/pkg/queue"
)

const (
	redisRetries    = 5
	redisRetryDelay = time.Second
	modelInitWait   = 10 * time.Minute
)

// app holds the long-lived services a command needs. Optional parts stay nil
// when configuration leaves them out.
type app struct {
	cfg *config.Config
	log *slog.Logger

	store   *storage.Store
	roster  *agent.Roster
	mem     *memory.Service
	factory *speech.Factory

	redis  *services.RedisService
	llm    services.LLMService
	dialog *services.Dialog
	direct *worker.Direct
}

// openStore opens the world database, creating its directory if needed
func openStore(ctx context.Context) (*storage.Store, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return storage.Open(ctx, cfg.Storage.Path)
}

// newApp wires storage and the engine. withLLM adds the LLM backend, the
// phrase dialog and the configured summarizer.
func newApp(ctx context.Context, log *slog.Logger, withLLM bool) (*app, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: store}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	a.roster = agent.NewRoster(store)
	a.mem = memory.NewService(store, rand.New(rand.NewPCG(seed, seed>>1)))
	a.factory = speech.NewFactory(a.mem, rand.New(rand.NewPCG(seed>>1, seed)), log)
	log.Debug("Engine seeded", "seed", seed)

	if cfg.Redis.URL != "" {
		a.redis, err = services.NewRedisService(cfg.Redis.URL, log)
		if err == nil {
			err = a.redis.WaitForConnection(ctx, redisRetries, redisRetryDelay)
		}
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if !withLLM {
		return a, nil
	}
	if err := a.initLLM(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) initLLM(ctx context.Context) error {
	llm, err := services.NewLLMService(a.cfg.LLM, a.log)
	if err != nil {
		return err
	}
	initCtx, cancel := context.WithTimeout(ctx, modelInitWait)
	defer cancel()
	if err := llm.InitModel(initCtx, a.cfg.LLM.Model); err != nil {
		return fmt.Errorf("failed to initialize model %s: %w", a.cfg.LLM.Model, err)
	}
	a.llm = llm
	a.log.Info("LLM service initialized", "llm", a.cfg.LLM.String())

	if a.cfg.Dialog.Enabled {
		var cache services.Cache = services.NewMemoryCache()
		if a.redis != nil {
			cache = a.redis
		}
		a.dialog = services.NewDialog(llm, cache, services.DialogOptions{
			Timeout:  a.cfg.LLM.Timeout,
			CacheTTL: a.cfg.Dialog.CacheTTL,
			Rating:   a.cfg.LLM.ContentRating,
		}, a.log)
	}

	if a.cfg.Summaries.Mode == config.SummariesDirect {
		a.direct = worker.NewDirect(worker.NewSummarizer(llm, a.roster, a.log), a.cfg.LLM.Timeout, a.log)
	}
	return nil
}

// summarize returns the summary sink for the configured mode, or nil when
// summaries are off
func (a *app) summarize() func(context.Context, *queuePkg.SummaryRequest) error {
	switch {
	case a.cfg.Summaries.Mode == config.SummariesQueue && a.redis != nil:
		return queue.NewSummaryQueue(a.redis.GetClient(), a.log).Enqueue
	case a.direct != nil:
		return a.direct.Enqueue
	}
	return nil
}

// speaker fans speech out to the local sink and, with Redis, to the agents'
// event channels
func (a *app) speaker(local services.SpeakerService) services.SpeakerService {
	if a.redis == nil {
		return local
	}
	return services.Speakers{local, events.NewSpeakerBroadcaster(a.redis.GetClient(), a.log)}
}

// deps assembles a conversation's collaborators
func (a *app) deps(local services.SpeakerService) conversation.Deps {
	d := conversation.Deps{
		Memory:    a.mem,
		Factory:   a.factory,
		Speaker:   a.speaker(local),
		Summarize: a.summarize(),
		Logger:    a.log,
	}
	if a.dialog != nil {
		d.Phraser = a.dialog
	}
	return d
}

// Close waits for background phrasing and summaries, then releases every
// connection
func (a *app) Close() error {
	if a.dialog != nil {
		a.dialog.Wait()
	}
	if a.direct != nil {
		a.direct.Wait()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
