package port

import (
	"context"

	"github.com/vertextoedge/release-sync/internal/domain"
)

// Resolver resolves the release feed to its newest artifact
type Resolver interface {
	Resolve(ctx context.Context) (*domain.Artifact, error)
}

// Downloader transfers an artifact to a local destination path, resuming
// from the already-written byte offset after partial failures
type Downloader interface {
	Download(ctx context.Context, artifact *domain.Artifact, destPath string) (int64, error)
}

// Notifier delivers a plain-text status message to the configured recipient
type Notifier interface {
	Send(ctx context.Context, text string) error
}
