package models

import (
	"time"

	"github.com/propertyhub/docgate/internal/server/storage"
)

// Document is the metadata record for one stored artifact. The bytes live
// wherever Ref points; this record is only written after the storage
// backend has confirmed the write.
type Document struct {
	ID string
	// OwnerID is the owning entity (e.g. a resident) whose namespace the
	// artifact was stored under.
	OwnerID   string
	Title     string
	FileName  string
	MimeType  string
	SizeBytes int64
	Ref       storage.Ref
	CreatedAt time.Time
}
