// Package storage implements the storage backend router and the path
// resolver/streamer: deciding which backend owns new bytes, producing a
// canonical tagged pointer for them, and turning that pointer back into a
// byte stream safely.
package storage

import (
	"fmt"

	"github.com/propertyhub/docgate/internal/common"
)

// RefKind tags which backend owns an artifact. The tag is decided once at
// write time; resolution never sniffs string prefixes of the stored value.
type RefKind string

const (
	RefKindRemote RefKind = "remote"
	RefKindLocal  RefKind = "local"
)

// Ref is the canonical artifact pointer persisted with each document
// record. Exactly one variant is populated:
//
//	Remote: ID (backend object key) and WebURL (possibly short-lived
//	        browser link). Fetches go by ID, never by WebURL.
//	Local:  RelativePath under the uploads root. The path passed
//	        traversal validation at write time and is stored relative.
type Ref struct {
	Kind         RefKind
	ID           string
	WebURL       string
	RelativePath string
}

// RemoteRef builds a remote-backend pointer.
func RemoteRef(id, webURL string) Ref {
	return Ref{Kind: RefKindRemote, ID: id, WebURL: webURL}
}

// LocalRef builds a local-backend pointer.
func LocalRef(relativePath string) Ref {
	return Ref{Kind: RefKindLocal, RelativePath: relativePath}
}

// Validate checks the single-variant invariant.
func (r Ref) Validate() error {
	switch r.Kind {
	case RefKindRemote:
		if r.ID == "" {
			return fmt.Errorf("%w: remote ref without id", common.ErrValidation)
		}
		if r.RelativePath != "" {
			return fmt.Errorf("%w: remote ref with local path", common.ErrValidation)
		}
	case RefKindLocal:
		if r.RelativePath == "" {
			return fmt.Errorf("%w: local ref without path", common.ErrValidation)
		}
		if r.ID != "" || r.WebURL != "" {
			return fmt.Errorf("%w: local ref with remote fields", common.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown ref kind %q", common.ErrValidation, r.Kind)
	}
	return nil
}
