// Package app wires every component package into one running instance:
// storage, embedding stores, the LLM client, entity resolution, dedup,
// retain, recall, consolidation, mental models, the async registry, rate
// limiting and working memory. This replaces the teacher's
// internal/dependencies container with the same role, adapted to this
// module's component set.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/memoryengine/memoryengine/internal/ai"
	"github.com/memoryengine/memoryengine/internal/asyncop"
	"github.com/memoryengine/memoryengine/internal/consolidate"
	"github.com/memoryengine/memoryengine/internal/dedup"
	"github.com/memoryengine/memoryengine/internal/entity"
	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/mentalmodel"
	"github.com/memoryengine/memoryengine/internal/ratelimit"
	"github.com/memoryengine/memoryengine/internal/recall"
	"github.com/memoryengine/memoryengine/internal/retain"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/vector"
	"github.com/memoryengine/memoryengine/internal/workingmemory"
	"github.com/memoryengine/memoryengine/pkg/config"
)

// App holds every wired component for one process.
type App struct {
	Config *config.Config
	DB     *storage.DB
	IDs    *ids.Generator
	LLM    *ai.Client

	MemoryVectors *vector.Store
	EntityVectors *vector.Store

	Resolver       *entity.Resolver
	Dedup          *dedup.Checker
	RetainPipeline *retain.Pipeline
	Recall         *recall.Engine
	MentalModels   *mentalmodel.Service
	Consolidate    *consolidate.Engine
	AsyncOps       *asyncop.Registry
	RateLimit      *ratelimit.Limiter
	Working        *workingmemory.Cache
	Hooks          *hooks.Hooks
}

// New opens the database, applies the schema, and wires every component
// against it using cfg.
func New(cfg *config.Config) (*App, error) {
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	gen := ids.NewGenerator()

	llm := ai.New(ai.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		ChatModel:      cfg.Ollama.ChatModel,
		Enabled:        cfg.Ollama.Enabled,
		EmbeddingDim:   cfg.Ollama.EmbeddingDim,
	})

	embedFunc := llm.Embed
	if !llm.Enabled() {
		embedFunc = vector.HashEmbed(llm.EmbeddingDim())
	}

	memVec := vector.New(db.Conn(), vector.NamespaceMemory, llm.EmbeddingDim(), embedFunc)
	entityVec := vector.New(db.Conn(), vector.NamespaceEntity, llm.EmbeddingDim(), embedFunc)
	modelVec := vector.New(db.Conn(), vector.NamespaceMentalModel, llm.EmbeddingDim(), embedFunc)

	resolver := entity.New(db)
	dedupChecker := dedup.New(db, memVec)
	retainPipeline := retain.New(db, gen, memVec, entityVec, resolver, dedupChecker, llm)
	recallEngine := recall.New(db, memVec)
	modelsService := mentalmodel.New(db, recallEngine, llm, gen, modelVec)
	consolidateEngine := consolidate.New(db, memVec, llm, gen, modelsService)
	asyncRegistry := asyncop.New(db, gen)
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled: cfg.RateLimit.Enabled,
		Global: ratelimit.OpLimit{
			Name:              "global",
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
		},
	})

	return &App{
		Config:         cfg,
		DB:             db,
		IDs:            gen,
		LLM:            llm,
		MemoryVectors:  memVec,
		EntityVectors:  entityVec,
		Resolver:       resolver,
		Dedup:          dedupChecker,
		RetainPipeline: retainPipeline,
		Recall:         recallEngine,
		MentalModels:   modelsService,
		Consolidate:    consolidateEngine,
		AsyncOps:       asyncRegistry,
		RateLimit:      limiter,
		Working:        workingmemory.New(),
		Hooks:          hooks.Default(),
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.DB.Close()
}

// CreateBank inserts a new bank using cfg.BankDefaults for any disposition
// fields the caller leaves at zero.
func (a *App) CreateBank(name, description, mission string) (*storage.Bank, error) {
	now := time.Now().UnixMilli()
	b := &storage.Bank{
		ID:          a.IDs.New(),
		Name:        name,
		Description: description,
		Config:      map[string]any{},
		Disposition: storage.Disposition{
			Skepticism: a.Config.BankDefaults.Skepticism,
			Literalism: a.Config.BankDefaults.Literalism,
			Empathy:    a.Config.BankDefaults.Empathy,
		},
		Mission:   firstNonEmpty(mission, a.Config.BankDefaults.Mission),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.DB.InsertBank(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Retain runs opts through the retain pipeline and, when opts.Consolidate is
// set, follows a successful retain with a consolidation pass over the same
// bank. retain.Options.Consolidate is a caller-facing marker only: the retain
// package cannot import consolidate (consolidate already imports retain for
// ConsolidationCandidateThreshold), so this orchestration has to live here,
// one level above both packages.
func (a *App) Retain(ctx context.Context, opts retain.Options) ([]*retain.Result, *consolidate.Summary, error) {
	results, err := a.RetainPipeline.Retain(ctx, opts)
	if err != nil || !opts.Consolidate {
		return results, nil, err
	}
	summary, cErr := a.Consolidate.ConsolidateBank(ctx, opts.BankID)
	if cErr != nil {
		return results, nil, fmt.Errorf("retain succeeded but consolidation failed: %w", cErr)
	}
	return results, summary, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
