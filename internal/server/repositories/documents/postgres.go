package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/dbx"
	"github.com/propertyhub/docgate/internal/server/models"
	"github.com/propertyhub/docgate/internal/server/storage"
)

// PostgresRepository implements document metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx). The tagged storage ref is flattened into columns;
// ref_kind decides which of them are meaningful.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := doc.Ref.Validate(); err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO documents (owner_id, title, file_name, mime_type, size_bytes, ref_kind, remote_id, remote_url, relative_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		doc.OwnerID, doc.Title, doc.FileName, doc.MimeType, doc.SizeBytes,
		string(doc.Ref.Kind), doc.Ref.ID, doc.Ref.WebURL, doc.Ref.RelativePath,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return doc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query :=
		`SELECT id, owner_id, title, file_name, mime_type, size_bytes, ref_kind, remote_id, remote_url, relative_path, created_at
		 FROM documents
		 WHERE id = $1
		 `

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return doc, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	query :=
		`SELECT id, owner_id, title, file_name, mime_type, size_bytes, ref_kind, remote_id, remote_url, relative_path, created_at
		 FROM documents
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	doc := &models.Document{}
	var kind, remoteID, remoteURL, relativePath string

	if err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Title, &doc.FileName, &doc.MimeType, &doc.SizeBytes,
		&kind, &remoteID, &remoteURL, &relativePath, &doc.CreatedAt,
	); err != nil {
		return nil, err
	}

	switch storage.RefKind(kind) {
	case storage.RefKindRemote:
		doc.Ref = storage.RemoteRef(remoteID, remoteURL)
	case storage.RefKindLocal:
		doc.Ref = storage.LocalRef(relativePath)
	default:
		return nil, fmt.Errorf("%w: document %s has unknown ref kind %q", common.ErrInternal, doc.ID, kind)
	}

	return doc, nil
}
