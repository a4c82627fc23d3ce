package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/logging"
)

// Router owns the decision of which backend receives new bytes. The
// priority is fixed: remote first when configured, local otherwise or on
// remote failure. The fallback is one-shot; if the local write also fails
// the upload fails, it never loops back to the remote path.
type Router struct {
	remote   RemoteBackend // nil when the remote backend is unconfigured
	local    *LocalBackend
	attempts int
	timeout  time.Duration
	logger   logging.Logger
}

// NewRouter wires a router. remote may be nil; attempts is the total number
// of remote tries per upload (minimum 1), timeout bounds each remote call.
func NewRouter(remote RemoteBackend, local *LocalBackend, attempts int, timeout time.Duration, logger logging.Logger) *Router {
	if attempts < 1 {
		attempts = 1
	}
	return &Router{
		remote:   remote,
		local:    local,
		attempts: attempts,
		timeout:  timeout,
		logger:   logger.With("module", "storage_router"),
	}
}

// Store uploads req and returns the canonical pointer for the bytes. The
// returned Ref must only be persisted by the caller after this call
// succeeds; a Ref is never produced for bytes that are not durably stored.
func (r *Router) Store(ctx context.Context, req *UploadRequest) (Ref, error) {
	if r.remote != nil {
		key := remoteKey(req)
		webURL, err := r.tryRemote(ctx, key, req)
		if err == nil {
			return RemoteRef(key, webURL), nil
		}
		// Transient retries are exhausted; the artifact's home becomes
		// the local backend for good.
		r.logger.Warn(ctx, "remote upload failed, falling back to local backend",
			"key", key, "error", err.Error())
	}

	relativePath, err := r.local.Store(req)
	if err != nil {
		r.logger.Error(ctx, "local upload failed", "owner", req.OwnerID, "error", err.Error())
		return Ref{}, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}

	return LocalRef(relativePath), nil
}

// tryRemote performs up to r.attempts remote uploads with constant backoff,
// each bounded by r.timeout.
func (r *Router) tryRemote(ctx context.Context, key string, req *UploadRequest) (string, error) {
	var webURL string

	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewConstant(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		url, err := r.remote.Put(callCtx, key, req.Content, req.MimeType)
		if err != nil {
			return retry.RetryableError(err)
		}
		webURL = url
		return nil
	})
	if err != nil {
		return "", err
	}
	return webURL, nil
}

// remoteKey builds a date-partitioned object key scoped to the owner
// namespace. The uuid makes retried uploads land on fresh keys, never
// overwriting a prior artifact.
func remoteKey(req *UploadRequest) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%s%s",
		sanitizeSegment(req.OwnerID), d.Year(), d.Month(), d.Day(), uuid.New(), safeExtension(req.FileName))
}
