package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"google.golang.org/genai"

	"github.com/skyrules/skyrules/db"
	"github.com/skyrules/skyrules/internal/capability"
	"github.com/skyrules/skyrules/internal/compare"
	"github.com/skyrules/skyrules/internal/config"
	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/database"
	"github.com/skyrules/skyrules/internal/indexer"
	"github.com/skyrules/skyrules/internal/observability"
	"github.com/skyrules/skyrules/internal/pipeline"
	"github.com/skyrules/skyrules/internal/retrieval"
	"github.com/skyrules/skyrules/internal/router"
	"github.com/skyrules/skyrules/internal/synthesis"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be wired before genkit.Init so the provider is ready.
	a.otelCleanup = observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	if err := db.Migrate(cfg.ConnectionString()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	capCfg := capability.DefaultConfig()
	capCfg.RequestsPerSecond = cfg.RequestsPerSecond
	capCfg.EmbedOptions = provideEmbedOptions(cfg)
	client := capability.New(g, ai.NewModelRef(cfg.FullModelName(), nil), embedder, capCfg, logger)
	a.Client = client

	store := vectorstore.New(pool, logger)
	a.Store = store

	c, err := corpus.Load(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	a.Corpus = c
	logger.Debug("corpus loaded", "path", cfg.CorpusPath, "questions", c.Len())

	reranker, err := retrieval.NewReranker(cfg.Reranker, client, client)
	if err != nil {
		return nil, fmt.Errorf("selecting reranker: %w", err)
	}
	var reformulator retrieval.Reformulator
	if cfg.Reformulate {
		reformulator = retrieval.NewLLMReformulator(client)
	}

	retrievalEngine := retrieval.New(client, store, c, reformulator, reranker, retrieval.Config{
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}, logger)

	compareEngine := compare.New(store, c, compare.Config{
		MaxQuestions:  cfg.MaxQuestions,
		MinDifference: cfg.MinDifference,
	}, logger)

	classifier := router.NewClassifier(router.NewGenkitClassifier(client), router.Config{
		FastPathConfidence: cfg.FastPathConfidence,
		CountryWindow:      cfg.CountryWindow,
	}, logger)

	synthesizer := synthesis.New(client)

	a.Pipe = pipeline.New(classifier, retrievalEngine, compareEngine, synthesizer, nil, logger)
	a.Indexer = indexer.New(client, store, cfg.LockPath, logger)

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideEmbedOptions returns the provider-specific options attached to
// every embed request. Gemini embedding models emit 3072 dimensions by
// default and must be told to produce vectors matching the schema width;
// ollama and openai embedder models are chosen to emit that width
// natively, so no per-request option exists for them.
func provideEmbedOptions(cfg *config.Config) any {
	switch cfg.Provider {
	case config.ProviderOllama, config.ProviderOpenAI:
		return nil
	default:
		dim := int32(vectorstore.Dimension)
		return &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
}
