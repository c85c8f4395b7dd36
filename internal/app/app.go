// Package app assembles the application: configuration, storage, the
// Genkit provider, and the query pipeline.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyrules/skyrules/internal/capability"
	"github.com/skyrules/skyrules/internal/config"
	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/indexer"
	"github.com/skyrules/skyrules/internal/pipeline"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// App holds the assembled components. Create with Setup; release with
// Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool    *pgxpool.Pool
	Genkit  *genkit.Genkit
	Client  *capability.Client
	Store   *vectorstore.Store
	Corpus  *corpus.Corpus
	Pipe    *pipeline.Pipeline
	Indexer *indexer.Indexer

	otelCleanup func()
}

// Close releases everything Setup acquired. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
