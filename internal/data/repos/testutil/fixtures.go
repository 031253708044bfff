package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/classforge/classforge-backend/internal/domain"
)

func SeedJobRun(tb testing.TB, ctx context.Context, tx *gorm.DB, route, jobType, status string) *types.JobRun {
	tb.Helper()
	job := &types.JobRun{
		ID:      uuid.New(),
		Route:   route,
		JobType: jobType,
		Status:  status,
		Stage:   "pending",
		Message: "Queued",
		Payload: datatypes.JSON([]byte(`{}`)),
		Result:  datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(job).Error; err != nil {
		tb.Fatalf("seed job run: %v", err)
	}
	return job
}

func SeedArtifact(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, mode string) *types.Artifact {
	tb.Helper()
	a := &types.Artifact{
		ID:      uuid.New(),
		JobID:   jobID,
		Mode:    mode,
		Content: datatypes.JSON([]byte(`{"title":"seeded"}`)),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed artifact: %v", err)
	}
	return a
}

func SeedSessionDoc(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) *types.SessionDoc {
	tb.Helper()
	doc := &types.SessionDoc{
		ID:        uuid.New(),
		SessionID: sessionID,
		Topic:     "seeded topic",
		Status:    "ready",
		Texts:     datatypes.JSON([]byte(`[]`)),
	}
	if err := tx.WithContext(ctx).Create(doc).Error; err != nil {
		tb.Fatalf("seed session doc: %v", err)
	}
	return doc
}
