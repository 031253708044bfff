package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error)
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Artifact, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{
		db:  db,
		log: baseLog.With("repo", "ArtifactRepo"),
	}
}

func (r *artifactRepo) Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(artifacts) == 0 {
		return []*types.Artifact{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (r *artifactRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	if jobID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
