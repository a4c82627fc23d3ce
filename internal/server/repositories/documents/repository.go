// Package documents persists artifact metadata records. The record is only
// created after the storage backend confirmed the write, so a crash between
// the two leaves an orphaned file, never a dangling pointer.
package documents

import (
	"context"

	"github.com/propertyhub/docgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
}
