package main

import (
	"context"
	"fmt"
	"os"

	redisclient "github.com/classforge/classforge-backend/internal/clients/redis"
	"github.com/classforge/classforge-backend/internal/data/repos"
	"github.com/classforge/classforge-backend/internal/db"
	httpsrv "github.com/classforge/classforge-backend/internal/http"
	httpH "github.com/classforge/classforge-backend/internal/http/handlers"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/assessment_build"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/content_build"
	"github.com/classforge/classforge-backend/internal/jobs/pipeline/remedy_build"
	"github.com/classforge/classforge-backend/internal/jobs/runtime"
	"github.com/classforge/classforge-backend/internal/jobs/worker"
	"github.com/classforge/classforge-backend/internal/modules/content"
	"github.com/classforge/classforge-backend/internal/platform/envutil"
	"github.com/classforge/classforge-backend/internal/platform/logger"
	"github.com/classforge/classforge-backend/internal/platform/media"
	"github.com/classforge/classforge-backend/internal/platform/openai"
	"github.com/classforge/classforge-backend/internal/platform/pinecone"
	"github.com/classforge/classforge-backend/internal/services"
	"github.com/classforge/classforge-backend/internal/services/jobcache"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Error("postgres migration failed", "error", err)
		os.Exit(1)
	}
	gdb := pg.DB()

	// Repos
	jobRunRepo := repos.NewJobRunRepo(gdb, log)
	artifactRepo := repos.NewArtifactRepo(gdb, log)
	sessionRepo := repos.NewSessionDocRepo(gdb, log)
	reportRepo := repos.NewRemedyReportRepo(gdb, log)
	planRepo := repos.NewPlanRepo(gdb, log)
	prereqRepo := repos.NewPrereqCacheRepo(gdb, log)

	// External clients. Media and vector search are optional; the workflows
	// degrade without them.
	ai, err := openai.NewClient(log)
	if err != nil {
		log.Error("openai init failed", "error", err)
		os.Exit(1)
	}
	mediaClient, err := media.NewClient(log)
	if err != nil {
		log.Warn("media search unavailable", "error", err)
		mediaClient = nil
	}
	var vectors pinecone.VectorStore
	if pc, pcErr := pinecone.New(log, pinecone.ConfigFromEnv()); pcErr != nil {
		log.Warn("pinecone unavailable", "error", pcErr)
	} else if vectors, pcErr = pinecone.NewVectorStore(log, pc); pcErr != nil {
		log.Warn("vector store unavailable", "error", pcErr)
		vectors = nil
	}

	// Redis job cache, also optional.
	var cache jobcache.Cache
	if rdb, rErr := redisclient.NewClient(log); rErr != nil {
		log.Warn("redis unavailable, job cache disabled", "error", rErr)
	} else if cache, rErr = jobcache.New(log, rdb); rErr != nil {
		log.Warn("job cache init failed", "error", rErr)
		cache = nil
	}

	notify := services.NewJobNotifier(log)
	jobs := services.NewJobService(gdb, log, jobRunRepo, cache, notify)

	deps := content.Deps{
		Log:         log,
		AI:          ai,
		Media:       mediaClient,
		Vectors:     vectors,
		Artifacts:   artifactRepo,
		Sessions:    sessionRepo,
		Reports:     reportRepo,
		Plans:       planRepo,
		PrereqCache: prereqRepo,
	}

	// Pipelines
	registry := runtime.NewRegistry()
	for _, h := range []runtime.Handler{
		content_build.New(log, deps),
		remedy_build.New(log, deps, jobs),
		assessment_build.New(log, deps),
	} {
		if err := registry.Register(h); err != nil {
			log.Error("pipeline registration failed", "job_type", h.Type(), "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// WORKER_ENABLED=false runs an API-only process; another instance must
	// claim the jobs.
	if envutil.Bool("WORKER_ENABLED", true) {
		worker.NewWorker(gdb, log, jobRunRepo, registry, notify, cache).Start(ctx)
	} else {
		log.Warn("job worker disabled by WORKER_ENABLED")
	}

	srv := httpsrv.NewServer(httpsrv.RouterConfig{
		Log:            log,
		JobHandler:     httpH.NewJobHandler(jobs),
		ContentHandler: httpH.NewContentHandler(sessionRepo, reportRepo, artifactRepo),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	port := envutil.Str("PORT", "8080")
	log.Info("starting http server", "port", port)
	if err := srv.Run(":" + port); err != nil {
		log.Error("http server exited", "error", err)
		os.Exit(1)
	}
}
