package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/section-allocator/api/swagger"
	"github.com/noah-isme/section-allocator/internal/engine"
	"github.com/noah-isme/section-allocator/internal/handler"
	internalmiddleware "github.com/noah-isme/section-allocator/internal/middleware"
	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/internal/repository"
	"github.com/noah-isme/section-allocator/internal/service"
	"github.com/noah-isme/section-allocator/pkg/cache"
	"github.com/noah-isme/section-allocator/pkg/config"
	"github.com/noah-isme/section-allocator/pkg/database"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/export"
	"github.com/noah-isme/section-allocator/pkg/logger"
	corsmiddleware "github.com/noah-isme/section-allocator/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/section-allocator/pkg/middleware/requestid"
)

// @title Section Allocator API
// @version 1.0.0
// @description Allocates eligible students to course sections.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, logr, os.Args[2:]); err != nil {
			logr.Sugar().Fatalw("token issue failed", "error", err)
		}
		return
	}

	if err := serve(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func newAuthService(cfg *config.Config, logr *zap.Logger) *service.AuthService {
	return service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})
}

// issueToken prints an operator access token: allocator token -role ADMIN -email ops@example.edu
func issueToken(cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	role := fs.String("role", string(models.RoleAdmin), "operator role (SUPERADMIN, ADMIN, REGISTRAR)")
	email := fs.String("email", "", "operator email")
	name := fs.String("name", "", "operator full name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, expiresAt, err := newAuthService(cfg, logr).IssueToken(service.Operator{
		Role:     models.UserRole(*role),
		Email:    *email,
		FullName: *name,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}

func serve(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	snapshots := repository.NewSnapshotRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	history := repository.NewEnrollmentHistoryRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Forecast.CacheTTL, logr, cacheRepo.Enabled())
	forecaster := service.NewDemandForecaster(cfg.Forecast, history, cacheSvc, logr)

	sched := cfg.Scheduler
	evaluator := engine.NewEvaluator(engine.EligibilityConfig{PriorityThreshold: sched.PriorityThreshold, PriorityWeight: sched.PriorityWeight})
	window, err := engine.ParseEarlyMorningWindow(sched.EarlyMorningStart, sched.EarlyMorningEnd)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInvalidModel, "invalid early morning window")
	}

	fullCfg := engine.DefaultGeneticConfig()
	fullCfg.PopulationSize = sched.Population
	fullCfg.Generations = sched.Generations
	fullCfg.MutationRate = sched.MutationRate
	fullCfg.UnassignProbability = sched.UnassignProbability
	fullCfg.Workers = sched.Workers
	fullCfg.Window = window
	fullSearch, err := engine.NewGeneticOptimizer(fullCfg, logr)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInvalidModel, "invalid search configuration")
	}

	targetedCfg := fullCfg
	targetedCfg.PopulationSize = sched.ReoptPopulation
	targetedCfg.Generations = sched.ReoptGenerations
	targetedSearch, err := engine.NewGeneticOptimizer(targetedCfg, logr)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInvalidModel, "invalid targeted search configuration")
	}

	solver := engine.NewRepairSolver(sched.SolverTimeBudget, logr)

	allocations := service.NewAllocationService(
		snapshots,
		assignments,
		evaluator,
		fullSearch,
		targetedSearch,
		solver,
		forecaster,
		metrics,
		validate,
		logr,
		service.AllocationConfigFromScheduler(sched),
	)

	dispatcher := service.NewReoptimizeDispatcher(allocations, metrics, cfg.Queue, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if sched.Cron != "" {
		scheduler, err := service.NewAllocationScheduler(sched.Cron, sched.SemesterLabel, allocations, logr)
		if err != nil {
			return appErrors.WrapAs(err, appErrors.ErrInvalidModel, "invalid allocation cron schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	exporter := service.NewExportService(snapshots, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	authSvc := newAuthService(cfg, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	checks := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if cacheRepo.Enabled() {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: cacheRepo.Ping})
	}

	handler.RegisterRoutes(r, handler.Routes{
		APIPrefix:   cfg.APIPrefix,
		Allocations: handler.NewAllocationHandler(allocations, dispatcher, exporter),
		Metrics:     handler.NewMetricsHandler(metrics, checks...),
		Auth:        internalmiddleware.JWT(authSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
