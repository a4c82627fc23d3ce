package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/propertyhub/docgate/internal/common"
)

// Streamer turns a canonical Ref back into bytes. There is no retry and no
// silent cross-backend fallback on reads: a local copy is not guaranteed to
// exist for a remote artifact, or vice versa.
type Streamer struct {
	remote  RemoteBackend // nil when the remote backend is unconfigured
	local   *LocalBackend
	timeout time.Duration
}

// NewStreamer wires a streamer over the same backends the router writes to.
// timeout bounds each remote fetch, covering the body read as well.
func NewStreamer(remote RemoteBackend, local *LocalBackend, timeout time.Duration) *Streamer {
	return &Streamer{remote: remote, local: local, timeout: timeout}
}

// Open returns the content stream for ref. Error mapping:
//
//	remote ref, backend error        -> ErrRemoteFetchFailed
//	local ref, traversal attempt     -> ErrInvalidPath
//	local ref, missing file          -> ErrNotFound
func (s *Streamer) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	switch ref.Kind {
	case RefKindRemote:
		if s.remote == nil {
			return nil, fmt.Errorf("%w: remote backend not configured", common.ErrRemoteFetchFailed)
		}
		return s.openRemote(ctx, ref.ID)

	case RefKindLocal:
		rc, err := s.local.Open(ref.RelativePath)
		if err != nil {
			if errors.Is(err, common.ErrInvalidPath) || errors.Is(err, common.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
		}
		return rc, nil
	}

	return nil, fmt.Errorf("%w: unknown ref kind %q", common.ErrValidation, ref.Kind)
}

// openRemote fetches key under the per-call deadline. The deadline stays in
// force while the caller drains the body; it is released on Close.
func (s *Streamer) openRemote(ctx context.Context, key string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	rc, err := s.remote.Get(ctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteFetchFailed, err)
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, nil
}

// cancelOnClose releases the fetch deadline's resources once the stream is
// fully consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
