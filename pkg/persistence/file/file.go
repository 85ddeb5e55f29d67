// Package file provides file-based persistence for workflow templates,
// requests, approvals and back-office documents. It backs local development
// and the test suite.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/eventiq/eventiq/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	templateRepo *TemplateRepository
	requestRepo  *RequestRepository
	approvalRepo *ApprovalRepository
	historyRepo  *HistoryRepository
	documentRepo *DocumentRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		templateRepo: NewTemplateRepository(cleanRoot),
		requestRepo:  NewRequestRepository(cleanRoot),
		approvalRepo: NewApprovalRepository(cleanRoot),
		historyRepo:  NewHistoryRepository(cleanRoot),
		documentRepo: NewDocumentRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Templates() persistence.TemplateRepository {
	return fp.templateRepo
}

func (fp *Persistence) Requests() persistence.RequestRepository {
	return fp.requestRepo
}

func (fp *Persistence) Approvals() persistence.ApprovalRepository {
	return fp.approvalRepo
}

func (fp *Persistence) History() persistence.HistoryRepository {
	return fp.historyRepo
}

func (fp *Persistence) Documents() persistence.DocumentRepository {
	return fp.documentRepo
}
