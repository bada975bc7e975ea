package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/betassistant/server/external/apifootball"
	"github.com/betassistant/server/external/webhook"
	"github.com/betassistant/server/internal/config"
	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/domain/match"
	"github.com/betassistant/server/internal/infrastructure/repository/memory"
	"github.com/betassistant/server/internal/infrastructure/repository/postgres"
	"github.com/betassistant/server/internal/interfaces/httpapi"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/platform/resilience"
	"github.com/betassistant/server/internal/usecase"
	"github.com/betassistant/server/internal/worker"
)

// Application bundles the wired components shared by the api and worker
// binaries.
type Application struct {
	Config       config.Config
	Logger       *logging.Logger
	DB           *sqlx.DB
	JobService   *usecase.JobService
	Orchestrator *usecase.ImportOrchestratorService
	Worker       *worker.Worker
	HTTPServer   *http.Server
}

func New(cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		db          *sqlx.DB
		jobRepo     importjob.Repository
		failureRepo importjob.FailureRepository
		leagueRepo  league.Repository
		matchRepo   match.Repository
	)
	if strings.TrimSpace(cfg.DBURL) == "" {
		logger.Info("DB_URL is empty, using in-memory repositories")
		jobRepo = memory.NewImportJobRepository()
		failureRepo = memory.NewImportFailureRepository()
		leagueRepo = memory.NewLeagueRepository(memory.DefaultLeagues()...)
		matchRepo = memory.NewMatchRepository()
	} else {
		opened, err := openDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db = opened
		jobRepo = postgres.NewImportJobRepository(db)
		failureRepo = postgres.NewImportFailureRepository(db)
		leagueRepo = postgres.NewLeagueRepository(db)
		matchRepo = postgres.NewMatchRepository(db)
	}

	provider := apifootball.NewClient(apifootball.ClientConfig{
		BaseURL:    cfg.APIFootballBaseURL,
		APIKey:     cfg.APIFootballAPIKey,
		Timeout:    cfg.APIFootballTimeout,
		MaxRetries: cfg.APIFootballMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.APIFootballCircuitEnabled,
			FailureThreshold: cfg.APIFootballCircuitFailureCount,
			OpenTimeout:      cfg.APIFootballCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.APIFootballCircuitHalfOpenMaxReq,
		},
	})
	monitor := usecase.NewRateLimitMonitor(provider)

	matchImporter := usecase.NewMatchImportService(matchRepo, failureRepo, provider, logger, usecase.MatchImportConfig{
		RequestDelay: cfg.RequestDelay,
	})
	leagueImporter := usecase.NewLeagueImportService(jobRepo, matchImporter, provider, monitor, logger, usecase.LeagueImportConfig{
		PreemptiveThreshold: cfg.RateLimitPreemptiveThreshold,
	})
	orchestrator := usecase.NewImportOrchestratorService(jobRepo, leagueRepo, provider, monitor, leagueImporter, logger, usecase.ImportOrchestratorConfig{
		PreemptiveThreshold: cfg.RateLimitPreemptiveThreshold,
		RescheduleDelay:     cfg.RescheduleDelay,
		MaxBackoff:          cfg.MaxBackoff,
	})
	jobService := usecase.NewJobService(jobRepo, failureRepo, leagueRepo, orchestrator, logger)

	notifier := webhook.NewNotifier(webhook.NotifierConfig{
		URL:     cfg.NotifyWebhookURL,
		Secret:  cfg.NotifyWebhookSecret,
		Timeout: cfg.NotifyWebhookTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.WebhookCircuitEnabled,
			FailureThreshold: cfg.WebhookCircuitFailureCount,
			OpenTimeout:      cfg.WebhookCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.WebhookCircuitHalfOpenMax,
		},
	}, logger)

	importWorker, err := worker.New(jobRepo, jobService, orchestrator, notifier, logger, worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		HookWorkers:  cfg.WorkerHookWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", err)
	}

	handler := httpapi.NewHandler(jobService, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.AdminAPIToken)

	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &Application{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		JobService:   jobService,
		Orchestrator: orchestrator,
		Worker:       importWorker,
		HTTPServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// InMemory reports whether the application runs without postgres. The api
// binary embeds the worker in that mode so jobs still execute.
func (a *Application) InMemory() bool {
	return a.DB == nil
}

func (a *Application) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func openDatabase(cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
