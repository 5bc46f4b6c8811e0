// Package media stages profile pictures at registration and promotes them
// to permanent storage once the registration is verified.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/id"
)

const (
	stagingPrefix   = "pending/"
	permanentPrefix = "profiles/"
)

// Asset is an uploaded file waiting to be staged.
type Asset struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, srcKey, dstKey string) (string, error)
	Delete(ctx context.Context, key string) error
}

// remoteUploader hosts finalized media outside the object store.
type remoteUploader interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

type Service struct {
	store  objectStore
	remote remoteUploader
}

// NewService returns a media service. When remote is nil, finalized media
// stays in the object store under the permanent prefix.
func NewService(store objectStore, remote remoteUploader) *Service {
	return &Service{store: store, remote: remote}
}

// Stage uploads a to a temporary key and returns that key.
func (s *Service) Stage(ctx context.Context, a Asset) (string, error) {
	safeName := sanitizeFilename(a.Filename)
	contentType := a.ContentType
	if contentType == "" {
		contentType = contentTypeFromName(safeName)
	}
	key := stagingPrefix + id.New() + "-" + safeName
	if _, err := s.store.Upload(ctx, key, a.Reader, contentType); err != nil {
		return "", fmt.Errorf("stage media: %v: %w", err, domain.ErrDependency)
	}
	return key, nil
}

// Finalize promotes a staged object and returns its public URL. The staged
// object is kept so a failed account write can finalize it again; callers
// remove it with Discard once the account exists.
func (s *Service) Finalize(ctx context.Context, stagedKey string) (string, error) {
	if !strings.HasPrefix(stagedKey, stagingPrefix) {
		return "", fmt.Errorf("not a staged media key: %w", domain.ErrValidation)
	}
	var (
		url string
		err error
	)
	if s.remote != nil {
		url, err = s.finalizeRemote(ctx, stagedKey)
	} else {
		url, err = s.store.Copy(ctx, stagedKey, permanentPrefix+strings.TrimPrefix(stagedKey, stagingPrefix))
	}
	if err != nil {
		return "", fmt.Errorf("finalize media: %v: %w", err, domain.ErrDependency)
	}
	return url, nil
}

// Discard removes a staged object. Keys outside the staging prefix are left
// alone, and a failed delete is only logged.
func (s *Service) Discard(ctx context.Context, stagedKey string) {
	if !strings.HasPrefix(stagedKey, stagingPrefix) {
		return
	}
	if err := s.store.Delete(ctx, stagedKey); err != nil {
		slog.Warn("failed to delete staged media", "key", stagedKey, "err", err)
	}
}

func (s *Service) finalizeRemote(ctx context.Context, stagedKey string) (string, error) {
	rc, err := s.store.Download(ctx, stagedKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return s.remote.Upload(ctx, data, path.Base(stagedKey))
}

func contentTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename strips directory components and keeps only alphanumerics,
// dot, dash and underscore so the name is safe inside an object key.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
