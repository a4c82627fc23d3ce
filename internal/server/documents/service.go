// Package documents orchestrates gated document uploads and downloads:
// authorization first, storage write second, metadata last.
package documents

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/logging"
	"github.com/propertyhub/docgate/internal/server/auth"
	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/models"
	"github.com/propertyhub/docgate/internal/server/repositories/repomanager"
	"github.com/propertyhub/docgate/internal/server/storage"
)

// Storer writes artifact bytes and returns their canonical pointer.
type Storer interface {
	Store(ctx context.Context, req *storage.UploadRequest) (storage.Ref, error)
}

// Opener turns a canonical pointer back into a content stream.
type Opener interface {
	Open(ctx context.Context, ref storage.Ref) (io.ReadCloser, error)
}

// UploadInput is one file received from a client, fully buffered.
type UploadInput struct {
	OwnerID  string
	Title    string
	FileName string
	MimeType string
	Content  []byte
}

var generalMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// invoiceMimeTypes restricts the billing route to PDFs.
var invoiceMimeTypes = map[string]struct{}{
	"application/pdf": {},
}

// Service handles document operations behind the authorization gate. Every
// operation checks the caller's capability before any storage or database
// I/O, so a denied request has no side effects.
type Service struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	storer   Storer
	opener   Opener
	maxBytes int64
	logger   logging.Logger
}

func NewService(db *sql.DB, repos repomanager.RepositoryManager, storer Storer, opener Opener, cfg *config.Config, logger logging.Logger) *Service {
	return &Service{
		db:       db,
		repos:    repos,
		storer:   storer,
		opener:   opener,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.With("module", "documents"),
	}
}

// Upload stores one artifact under module's write capability and records its
// metadata. The storage write strictly precedes the metadata insert; a Ref
// is only ever persisted for bytes already confirmed durable. The billing
// module accepts PDFs only, every other module accepts PDF, JPEG and PNG.
func (s *Service) Upload(ctx context.Context, caller *auth.Identity, module authz.Module, in *UploadInput) (*models.Document, error) {
	if !authz.CanWrite(caller.Role, module) {
		return nil, common.ErrForbidden
	}
	if err := s.validateUpload(module, in); err != nil {
		return nil, err
	}

	ref, err := s.storer.Store(ctx, &storage.UploadRequest{
		OwnerID:  in.OwnerID,
		FileName: in.FileName,
		MimeType: in.MimeType,
		Content:  in.Content,
	})
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		OwnerID:   in.OwnerID,
		Title:     in.Title,
		FileName:  in.FileName,
		MimeType:  in.MimeType,
		SizeBytes: int64(len(in.Content)),
		Ref:       ref,
	}
	created, err := s.repos.Documents(s.db).Create(ctx, doc)
	if err != nil {
		s.logger.Error(ctx, "metadata insert failed after storage write",
			"owner", in.OwnerID, "ref_kind", string(ref.Kind), "error", err.Error())
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "document stored",
		"id", created.ID, "owner", created.OwnerID, "ref_kind", string(ref.Kind), "size", created.SizeBytes)
	return created, nil
}

// Download returns the metadata record and a content stream for the
// document behind id. The caller needs read capability on module.
func (s *Service) Download(ctx context.Context, caller *auth.Identity, module authz.Module, id string) (*models.Document, io.ReadCloser, error) {
	if !authz.CanRead(caller.Role, module) {
		return nil, nil, common.ErrForbidden
	}

	doc, err := s.repos.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.opener.Open(ctx, doc.Ref)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

// List returns the metadata records owned by ownerID, newest first.
func (s *Service) List(ctx context.Context, caller *auth.Identity, module authz.Module, ownerID string) ([]*models.Document, error) {
	if !authz.CanRead(caller.Role, module) {
		return nil, common.ErrForbidden
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	return s.repos.Documents(s.db).ListByOwner(ctx, ownerID)
}

// OpenPath streams a local artifact addressed by its stored relative path.
// It exists for records written before metadata carried tagged refs; the
// path goes through the same containment checks as any local read.
func (s *Service) OpenPath(ctx context.Context, caller *auth.Identity, module authz.Module, relativePath string) (io.ReadCloser, error) {
	if !authz.CanRead(caller.Role, module) {
		return nil, common.ErrForbidden
	}
	if relativePath == "" {
		return nil, fmt.Errorf("%w: empty path", common.ErrInvalidPath)
	}
	return s.opener.Open(ctx, storage.LocalRef(relativePath))
}

func (s *Service) validateUpload(module authz.Module, in *UploadInput) error {
	if in.OwnerID == "" || in.Title == "" || in.FileName == "" {
		return fmt.Errorf("%w: owner, title and file name are required", common.ErrValidation)
	}
	if len(in.Content) == 0 {
		return fmt.Errorf("%w: empty file", common.ErrValidation)
	}
	if int64(len(in.Content)) > s.maxBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", common.ErrValidation, s.maxBytes)
	}

	allowed := generalMimeTypes
	if module == authz.ModuleBillings {
		allowed = invoiceMimeTypes
	}
	if _, ok := allowed[in.MimeType]; !ok {
		return fmt.Errorf("%w: unsupported content type %q", common.ErrValidation, in.MimeType)
	}
	return nil
}
