package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/eventiq/eventiq/pkg/persistence"
)

// DocumentRepository handles back-office document file operations, one
// directory per collection.
type DocumentRepository struct {
	root string
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(root string) *DocumentRepository {
	return &DocumentRepository{root: root}
}

// Get retrieves a document from a collection.
func (dr *DocumentRepository) Get(_ context.Context, collection, id string) (*persistence.Document, error) {
	filePath := filepath.Clean(path.Join(dr.root, "documents", collection, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}

	var doc persistence.Document

	err = json.Unmarshal(body, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}

	return &doc, nil
}

// List returns all documents in a collection, newest first.
func (dr *DocumentRepository) List(ctx context.Context, collection string) ([]*persistence.Document, error) {
	dir := path.Join(dr.root, "documents", collection)

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", collection, err)
	}

	docs := make([]*persistence.Document, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5]

		doc, err := dr.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	return docs, nil
}

// Save saves a document into its collection.
func (dr *DocumentRepository) Save(_ context.Context, doc *persistence.Document) error {
	dir := path.Join(dr.root, "documents", doc.Collection)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	doc.UpdatedAt = now

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", doc.Collection, doc.ID, err)
	}

	return os.WriteFile(path.Join(dir, doc.ID+".json"), data, 0600)
}

// Delete removes a document from a collection.
func (dr *DocumentRepository) Delete(_ context.Context, collection, id string) error {
	filePath := path.Join(dr.root, "documents", collection, id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}

	return nil
}
