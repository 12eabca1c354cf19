package builders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/storage"
	"github.com/pilobster/pilobster/internal/store"
	"github.com/pilobster/pilobster/internal/workspace"
)

// Storage is everything backed by the SQLite database.
type Storage struct {
	DB        *sql.DB
	Store     *store.Store
	Memory    *memory.Memory
	Workspace *workspace.Workspace
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.DB.Close()
}

type StorageBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewStorageBuilder(cfg *config.Config, log *logger.Logger) *StorageBuilder {
	return &StorageBuilder{
		config: cfg,
		logger: log,
	}
}

// Build opens the database and creates the workspace directory.
func (b *StorageBuilder) Build(ctx context.Context) (*Storage, error) {
	db, err := storage.Open(ctx, b.config.Memory.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ws := workspace.New(b.config.Workspace.Path, db, b.logger)
	if err := ws.EnsureDir(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	b.logger.Info("storage initialized",
		logger.Field{Key: "database", Value: b.config.Memory.Database},
		logger.Field{Key: "workspace", Value: ws.Path()})

	return &Storage{
		DB:        db,
		Store:     store.New(db, b.logger),
		Memory:    memory.New(db, b.logger),
		Workspace: ws,
	}, nil
}
