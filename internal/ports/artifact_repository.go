package ports

import (
	"context"
	"errors"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact type labels, assigned by content sniffing at upload.
const (
	ArtifactTypeSourceMap = "sourcemap"
	ArtifactTypeSource    = "source"
)

// Artifact is one uploaded debug file, content-addressed by sha256 within
// its project. LastAccessedAt is nil until the first symbolication hit.
type Artifact struct {
	ArtifactID        uint64
	ProjectID         string
	Release           string
	Name              string
	SHA256            string
	Type              string
	Content           []byte
	Size              int64
	HasSourcesContent bool
	UploadedAt        string
	LastAccessedAt    *string
}

type ArtifactRepository interface {
	// Insert dedupes by (project, sha256): the returned artifact is the
	// stored row either way, created reports whether this call made it.
	Insert(ctx context.Context, artifact Artifact) (stored Artifact, created bool, err error)
	GetByID(ctx context.Context, artifactID uint64) (Artifact, error)
	GetBySHA256(ctx context.Context, projectID string, sha256 string) (Artifact, error)
	// GetByName resolves the newest upload for (project, release, name).
	GetByName(ctx context.Context, projectID string, release string, name string) (Artifact, error)
	// Touch records a symbolication hit; retention keys off this.
	Touch(ctx context.Context, artifactID uint64, accessedAt string) error
	Delete(ctx context.Context, artifactID uint64) error
	// DeleteOlderThan removes artifacts with last_accessed_at < cutoff, or
	// never accessed and uploaded_at < cutoff. Returns the removed count.
	DeleteOlderThan(ctx context.Context, cutoff string) (int64, error)
}
