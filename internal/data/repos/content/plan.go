package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type PlanRepo interface {
	Create(dbc dbctx.Context, plans []*types.RemediationPlanDoc) ([]*types.RemediationPlanDoc, error)
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.RemediationPlanDoc, error)
}

type planRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
	return &planRepo{
		db:  db,
		log: baseLog.With("repo", "PlanRepo"),
	}
}

func (r *planRepo) Create(dbc dbctx.Context, plans []*types.RemediationPlanDoc) ([]*types.RemediationPlanDoc, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.RemediationPlanDoc{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *planRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.RemediationPlanDoc, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RemediationPlanDoc
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
