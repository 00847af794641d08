package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/application/dispatcher"
	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/config"
	"github.com/crmkit/pipeline-engine/internal/infrastructure/persistence/repository"
	"github.com/crmkit/pipeline-engine/internal/infrastructure/persistence/sqlite"
	"github.com/crmkit/pipeline-engine/pkg/database"
)

// Repositories groups the persistence-layer ports
type Repositories struct {
	Entities  port.EntityGateway
	Approvals port.ApprovalStore
	Audit     port.AuditSink
}

// Infrastructure holds long-lived infrastructure components: the database,
// the transaction manager, the repositories, and the event dispatcher.
type Infrastructure struct {
	DB           *database.DB
	TxManager    port.TransactionManager
	Repositories Repositories
	Dispatcher   *dispatcher.Dispatcher

	logger *zap.Logger
}

// NewInfrastructure opens the database, runs migrations, and wires the
// persistence layer.
func NewInfrastructure(cfg *config.Config, logger *zap.Logger) (*Infrastructure, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Infrastructure{
		DB:        db,
		TxManager: sqlite.NewDB(db.DB, logger),
		Repositories: Repositories{
			Entities:  repository.NewEntityRepository(db.DB, logger),
			Approvals: repository.NewApprovalRepository(db.DB, logger),
			Audit:     repository.NewAuditRepository(db.DB, logger),
		},
		Dispatcher: dispatcher.New(logger),
		logger:     logger,
	}, nil
}

// Close releases infrastructure resources
func (i *Infrastructure) Close() error {
	if err := i.Dispatcher.Close(); err != nil {
		i.logger.Warn("Dispatcher close", zap.Error(err))
	}
	return i.DB.Close()
}
