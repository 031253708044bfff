package jobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/platform/envutil"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/google/uuid"
)

// Cache is a read-through cache for job rows keyed by job ID. Postgres stays
// authoritative: every write here is best-effort and a miss falls through to
// the repo.
type Cache interface {
	Put(ctx context.Context, job *types.JobRun)
	Get(ctx context.Context, id uuid.UUID) (*types.JobRun, bool)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type cache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func New(log *logger.Logger, rdb *goredis.Client) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ttl := time.Duration(envutil.Int("JOB_CACHE_TTL_SECONDS", 3600)) * time.Second
	return &cache{
		log: log.With("service", "JobCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func key(id uuid.UUID) string { return "job:" + id.String() }

func (c *cache) Put(ctx context.Context, job *types.JobRun) {
	if job == nil || job.ID == uuid.Nil {
		return
	}
	raw, err := json.Marshal(job)
	if err != nil {
		c.log.Warn("job cache encode failed", "job_id", job.ID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key(job.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("job cache set failed", "job_id", job.ID, "error", err)
	}
}

func (c *cache) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, bool) {
	if id == uuid.Nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("job cache get failed", "job_id", id, "error", err)
		}
		return nil, false
	}
	var job types.JobRun
	if err := json.Unmarshal(raw, &job); err != nil {
		c.log.Warn("job cache decode failed", "job_id", id, "error", err)
		return nil, false
	}
	return &job, true
}

func (c *cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		c.log.Warn("job cache invalidate failed", "job_id", id, "error", err)
	}
}
