package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/google/uuid"
)

// DocumentRepository handles back-office document storage.
type DocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sql.DB, logger *slog.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

// Get returns a document by collection and ID.
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (*persistence.Document, error) {
	query := `
		SELECT collection, id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	doc, err := r.scanDocument(r.db.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	return doc, nil
}

// List returns all documents in a collection, newest first.
func (r *DocumentRepository) List(ctx context.Context, collection string) ([]*persistence.Document, error) {
	query := `
		SELECT collection, id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	docs := make([]*persistence.Document, 0)

	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Save inserts or updates a document.
func (r *DocumentRepository) Save(ctx context.Context, doc *persistence.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	doc.UpdatedAt = now

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal document data: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, doc.Collection, doc.ID, data, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save document %s/%s: %w", doc.Collection, doc.ID, err)
	}

	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}

	return nil
}

func (r *DocumentRepository) scanDocument(row rowScanner) (*persistence.Document, error) {
	var (
		doc      persistence.Document
		dataJSON []byte
	)

	err := row.Scan(&doc.Collection, &doc.ID, &dataJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dataJSON, &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document data: %w", err)
	}

	return &doc, nil
}
