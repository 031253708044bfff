package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type SessionDocRepo interface {
	GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*types.SessionDoc, error)
	Upsert(dbc dbctx.Context, doc *types.SessionDoc) error
	UpdateFields(dbc dbctx.Context, sessionID uuid.UUID, updates map[string]interface{}) error
}

type sessionDocRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionDocRepo(db *gorm.DB, baseLog *logger.Logger) SessionDocRepo {
	return &sessionDocRepo{
		db:  db,
		log: baseLog.With("repo", "SessionDocRepo"),
	}
}

func (r *sessionDocRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*types.SessionDoc, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var doc types.SessionDoc
	err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, nil
	}
	return &doc, nil
}

func (r *sessionDocRepo) Upsert(dbc dbctx.Context, doc *types.SessionDoc) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if doc == nil || doc.SessionID == uuid.Nil {
		return nil
	}
	doc.UpdatedAt = time.Now()
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"topic", "grade_level",
				"texts", "videos", "games", "practice_questions", "assessment_questions",
				"status", "updated_at",
			}),
		}).
		Create(doc).Error
}

func (r *sessionDocRepo) UpdateFields(dbc dbctx.Context, sessionID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.SessionDoc{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}
