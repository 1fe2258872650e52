package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
	"faultline/internal/metrics"
	"faultline/internal/ports"
)

type UploadArtifactInput struct {
	ProjectID string
	Release   string
	Name      string
	Content   []byte
}

// ArtifactRef is the upload response: the stored row, whether this call
// created it or found identical bytes already there.
type ArtifactRef struct {
	ArtifactID   uint64 `json:"artifact_id"`
	ProjectID    string `json:"project_id"`
	Release      string `json:"release"`
	Name         string `json:"name"`
	SHA256       string `json:"sha256"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	Deduplicated bool   `json:"deduplicated"`
	UploadedAt   string `json:"uploaded_at"`
}

// UploadArtifact stores one debug file, content-addressed by sha256
// within the project. Re-uploading identical bytes succeeds and reports
// the existing row.
func (s *Service) UploadArtifact(ctx context.Context, input UploadArtifactInput) (ArtifactRef, error) {
	if ctx == nil {
		return ArtifactRef{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ArtifactRef{}, errs.Wrap(err, "check context")
	}
	if s.artifacts == nil {
		return ArtifactRef{}, errors.New("artifact repository is required")
	}

	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return ArtifactRef{}, errors.New("project is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ArtifactRef{}, errors.New("artifact name is required")
	}
	release := strings.TrimSpace(input.Release)
	if release == "" {
		return ArtifactRef{}, errors.New("release is required")
	}
	if len(input.Content) == 0 {
		return ArtifactRef{}, errors.New("artifact content is empty")
	}
	if int64(len(input.Content)) > s.cfg.MaxUploadBytes {
		return ArtifactRef{}, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(input.Content), s.cfg.MaxUploadBytes)
	}

	digest := sha256.Sum256(input.Content)
	kind, hasSourcesContent := sniffArtifact(input.Content)

	stored, created, err := s.artifacts.Insert(ctx, ports.Artifact{
		ProjectID:         projectID,
		Release:           release,
		Name:              name,
		SHA256:            hex.EncodeToString(digest[:]),
		Type:              kind,
		Content:           input.Content,
		Size:              int64(len(input.Content)),
		HasSourcesContent: hasSourcesContent,
		UploadedAt:        nowUTCString(),
	})
	if err != nil {
		return ArtifactRef{}, err
	}

	if created {
		metrics.ArtifactUploads.WithLabelValues(metrics.UploadCreated).Inc()
	} else {
		metrics.ArtifactUploads.WithLabelValues(metrics.UploadDeduplicated).Inc()
	}

	logging.Info(ctx, "artifact uploaded",
		slog.String("project", projectID),
		slog.String("release", release),
		slog.String("name", name),
		slog.String("type", kind),
		slog.Bool("deduplicated", !created))

	return ArtifactRef{
		ArtifactID:   stored.ArtifactID,
		ProjectID:    stored.ProjectID,
		Release:      stored.Release,
		Name:         stored.Name,
		SHA256:       stored.SHA256,
		Type:         stored.Type,
		Size:         stored.Size,
		Deduplicated: !created,
		UploadedAt:   stored.UploadedAt,
	}, nil
}

// GetArtifact loads one artifact with content, scoped to the project.
func (s *Service) GetArtifact(ctx context.Context, projectID string, artifactID uint64) (ports.Artifact, error) {
	if ctx == nil {
		return ports.Artifact{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Artifact{}, errs.Wrap(err, "check context")
	}

	stored, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return ports.Artifact{}, err
	}
	if stored.ProjectID != strings.TrimSpace(projectID) {
		return ports.Artifact{}, ports.ErrArtifactNotFound
	}
	return stored, nil
}

func (s *Service) DeleteArtifact(ctx context.Context, projectID string, artifactID uint64) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	stored, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return err
	}
	if stored.ProjectID != strings.TrimSpace(projectID) {
		return ports.ErrArtifactNotFound
	}
	return s.artifacts.Delete(ctx, artifactID)
}

// sniffArtifact classifies uploaded bytes without a full mappings parse:
// a JSON document shaped like a version-3 source map is a sourcemap,
// anything else is treated as plain source. Corrupt mappings surface
// later, at symbolication time.
func sniffArtifact(content []byte) (kind string, hasSourcesContent bool) {
	var probe struct {
		Version        int       `json:"version"`
		Sources        []string  `json:"sources"`
		SourcesContent []*string `json:"sourcesContent"`
		Mappings       string    `json:"mappings"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return ports.ArtifactTypeSource, false
	}
	if probe.Version != 3 || len(probe.Sources) == 0 || probe.Mappings == "" {
		return ports.ArtifactTypeSource, false
	}

	for _, sc := range probe.SourcesContent {
		if sc != nil && *sc != "" {
			hasSourcesContent = true
			break
		}
	}
	return ports.ArtifactTypeSourceMap, hasSourcesContent
}
