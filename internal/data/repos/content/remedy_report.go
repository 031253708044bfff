package content

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type RemedyReportRepo interface {
	GetByStudentID(dbc dbctx.Context, studentID uuid.UUID) (*types.RemedyReport, error)
	AppendEntry(dbc dbctx.Context, studentID uuid.UUID, entry map[string]any) error
}

type remedyReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRemedyReportRepo(db *gorm.DB, baseLog *logger.Logger) RemedyReportRepo {
	return &remedyReportRepo{
		db:  db,
		log: baseLog.With("repo", "RemedyReportRepo"),
	}
}

func (r *remedyReportRepo) GetByStudentID(dbc dbctx.Context, studentID uuid.UUID) (*types.RemedyReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return nil, nil
	}
	var report types.RemedyReport
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Limit(1).
		Find(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == uuid.Nil {
		return nil, nil
	}
	return &report, nil
}

// AppendEntry reads the student's report inside a transaction, appends the
// entry to the entries array, and writes the row back. The row is created on
// first append.
func (r *remedyReportRepo) AppendEntry(dbc dbctx.Context, studentID uuid.UUID, entry map[string]any) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return fmt.Errorf("studentID required")
	}
	if entry == nil {
		entry = map[string]any{}
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var report types.RemedyReport
		err := txx.Where("student_id = ?", studentID).Limit(1).Find(&report).Error
		if err != nil {
			return err
		}

		var entries []map[string]any
		if len(report.Entries) > 0 {
			if err := json.Unmarshal(report.Entries, &entries); err != nil {
				return fmt.Errorf("decode remedy report entries: %w", err)
			}
		}
		entries = append(entries, entry)
		raw, err := json.Marshal(entries)
		if err != nil {
			return err
		}

		now := time.Now()
		if report.ID == uuid.Nil {
			report = types.RemedyReport{
				StudentID: studentID,
				Entries:   datatypes.JSON(raw),
				CreatedAt: now,
				UpdatedAt: now,
			}
			return txx.Create(&report).Error
		}
		return txx.Model(&types.RemedyReport{}).
			Where("id = ?", report.ID).
			Updates(map[string]interface{}{
				"entries":    datatypes.JSON(raw),
				"updated_at": now,
			}).Error
	})
}
