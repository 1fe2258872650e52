package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/ports"
)

type ArtifactRepository struct {
	db *gorm.DB
}

var _ ports.ArtifactRepository = (*ArtifactRepository)(nil)

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) Insert(ctx context.Context, artifact ports.Artifact) (ports.Artifact, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Artifact{}, false, err
	}

	row := model.Artifact{
		ProjectID:         artifact.ProjectID,
		SHA256:            artifact.SHA256,
		Release:           artifact.Release,
		Name:              artifact.Name,
		Type:              artifact.Type,
		Content:           artifact.Content,
		Size:              artifact.Size,
		HasSourcesContent: artifact.HasSourcesContent,
		UploadedAt:        artifact.UploadedAt,
		LastAccessedAt:    artifact.LastAccessedAt,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "sha256"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return ports.Artifact{}, false, errs.Wrap(result.Error, "insert artifact")
	}
	if result.RowsAffected > 0 {
		return mapArtifact(row), true, nil
	}

	// Identical content already stored; re-upload reports the existing row.
	existing, err := r.GetBySHA256(ctx, artifact.ProjectID, artifact.SHA256)
	if err != nil {
		return ports.Artifact{}, false, err
	}
	return existing, false, nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, artifactID uint64) (ports.Artifact, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Artifact{}, err
	}

	var row model.Artifact
	if err := db.Where("artifact_id = ?", artifactID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Artifact{}, ports.ErrArtifactNotFound
		}
		return ports.Artifact{}, errs.Wrap(err, "query artifact")
	}
	return mapArtifact(row), nil
}

func (r *ArtifactRepository) GetBySHA256(ctx context.Context, projectID string, sha256 string) (ports.Artifact, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Artifact{}, err
	}

	var row model.Artifact
	if err := db.Where("project_id = ? AND sha256 = ?", projectID, sha256).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Artifact{}, ports.ErrArtifactNotFound
		}
		return ports.Artifact{}, errs.Wrap(err, "query artifact by sha256")
	}
	return mapArtifact(row), nil
}

func (r *ArtifactRepository) GetByName(ctx context.Context, projectID string, release string, name string) (ports.Artifact, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Artifact{}, err
	}

	var row model.Artifact
	if err := db.
		Where("project_id = ? AND release = ? AND name = ?", projectID, release, name).
		Order("uploaded_at desc, artifact_id desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Artifact{}, ports.ErrArtifactNotFound
		}
		return ports.Artifact{}, errs.Wrap(err, "query artifact by name")
	}
	return mapArtifact(row), nil
}

func (r *ArtifactRepository) Touch(ctx context.Context, artifactID uint64, accessedAt string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Artifact{}).
		Where("artifact_id = ?", artifactID).
		Update("last_accessed_at", accessedAt).Error; err != nil {
		return errs.Wrap(err, "touch artifact")
	}
	return nil
}

func (r *ArtifactRepository) Delete(ctx context.Context, artifactID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Where("artifact_id = ?", artifactID).Delete(&model.Artifact{}).Error; err != nil {
		return errs.Wrap(err, "delete artifact")
	}
	return nil
}

func (r *ArtifactRepository) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("last_accessed_at < ? OR (last_accessed_at IS NULL AND uploaded_at < ?)", cutoff, cutoff).
		Delete(&model.Artifact{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete old artifacts")
	}
	return result.RowsAffected, nil
}

func mapArtifact(row model.Artifact) ports.Artifact {
	return ports.Artifact{
		ArtifactID:        row.ArtifactID,
		ProjectID:         row.ProjectID,
		Release:           row.Release,
		Name:              row.Name,
		SHA256:            row.SHA256,
		Type:              row.Type,
		Content:           row.Content,
		Size:              row.Size,
		HasSourcesContent: row.HasSourcesContent,
		UploadedAt:        row.UploadedAt,
		LastAccessedAt:    row.LastAccessedAt,
	}
}
