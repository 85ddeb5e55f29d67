// Package postgresql provides PostgreSQL persistence for workflow templates,
// requests, approvals and back-office documents.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/eventiq/eventiq/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	templateRepo *TemplateRepository
	requestRepo  *RequestRepository
	approvalRepo *ApprovalRepository
	historyRepo  *HistoryRepository
	documentRepo *DocumentRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		templateRepo: NewTemplateRepository(database, logger),
		requestRepo:  NewRequestRepository(database, logger),
		approvalRepo: NewApprovalRepository(database, logger),
		historyRepo:  NewHistoryRepository(database, logger),
		documentRepo: NewDocumentRepository(database, logger),
	}, nil
}

func (p *Persistence) Templates() persistence.TemplateRepository {
	return p.templateRepo
}

func (p *Persistence) Requests() persistence.RequestRepository {
	return p.requestRepo
}

func (p *Persistence) Approvals() persistence.ApprovalRepository {
	return p.approvalRepo
}

func (p *Persistence) History() persistence.HistoryRepository {
	return p.historyRepo
}

func (p *Persistence) Documents() persistence.DocumentRepository {
	return p.documentRepo
}

// HealthCheck verifies the database connection.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
