package content

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type PrereqCacheRepo interface {
	Get(dbc dbctx.Context, gapCode, gradeLevel, subject string) (*types.PrerequisiteCacheEntry, error)
	Put(dbc dbctx.Context, entry *types.PrerequisiteCacheEntry) error
}

type prereqCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPrereqCacheRepo(db *gorm.DB, baseLog *logger.Logger) PrereqCacheRepo {
	return &prereqCacheRepo{
		db:  db,
		log: baseLog.With("repo", "PrereqCacheRepo"),
	}
}

func (r *prereqCacheRepo) Get(dbc dbctx.Context, gapCode, gradeLevel, subject string) (*types.PrerequisiteCacheEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	gapCode = strings.TrimSpace(gapCode)
	if gapCode == "" {
		return nil, nil
	}
	var entry types.PrerequisiteCacheEntry
	err := transaction.WithContext(dbc.Ctx).
		Where("gap_code = ? AND grade_level = ? AND subject = ?", gapCode, gradeLevel, subject).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func (r *prereqCacheRepo) Put(dbc dbctx.Context, entry *types.PrerequisiteCacheEntry) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil || strings.TrimSpace(entry.GapCode) == "" {
		return nil
	}
	entry.UpdatedAt = time.Now()
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "gap_code"}, {Name: "grade_level"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"prerequisites", "source", "updated_at",
			}),
		}).
		Create(entry).Error
}
