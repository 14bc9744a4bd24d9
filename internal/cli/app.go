package cli

import (
	"context"
	"fmt"
	"os"

	"kbrag/config"
	"kbrag/internal/adapter/chunker"
	"kbrag/internal/adapter/embedding"
	"kbrag/internal/adapter/retriever"
	"kbrag/internal/adapter/store"
	"kbrag/internal/port"
	"kbrag/internal/usecase"
)

// app wires the store and use cases for one command invocation.
type app struct {
	store      *store.BoltVectorStore
	embedder   port.Embedder
	vectorizer *usecase.Vectorizer
	retrieval  *usecase.Retrieval
}

// openApp opens the vector database under dir. create controls whether a
// missing database is created.
func openApp(dir string, create bool) (*app, error) {
	cfg := GetConfig()
	dbPath := config.StoreDBPath(dir)

	if create {
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create .kbrag directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no vector store found. Run 'kbrag ingest' first")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	emb, err := embedding.New(cfg, cfg.APIKey())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	chk := chunker.NewCharChunker(cfg.Chunk.Size, cfg.Chunk.Overlap, cfg.Chunk.MaxChunks)
	queryEmbedder := embedding.WithCache(emb, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL)

	return &app{
		store:      st,
		embedder:   emb,
		vectorizer: usecase.NewVectorizer(st, emb, chk, usecase.OptionsFromConfig(cfg), appStats),
		retrieval:  usecase.NewRetrieval(retriever.NewSemanticRetriever(st, queryEmbedder, appStats), st, cfg.Search),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// prepareStore clears or migrates the database when its schema or the
// chunking/embedding settings no longer match.
func (a *app) prepareStore(ctx context.Context) error {
	cfg := GetConfig()

	migration, err := a.store.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	if migration.NeedsRebuild {
		fmt.Printf("Vector store rebuild required: %s\n", migration.Reason)
		fmt.Println("Clearing existing vectors...")
		if err := a.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear vector store: %w", err)
		}
		return a.store.Migrate(cfg)
	}
	if migration.NeedsMigration {
		fmt.Printf("Running schema migration: %s\n", migration.Reason)
		if err := a.store.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return ctx.Err()
}
