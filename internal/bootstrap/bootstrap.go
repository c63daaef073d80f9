package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/ap-automation/internal/config"
	"github.com/kirillkom/ap-automation/internal/core/ports"
	"github.com/kirillkom/ap-automation/internal/core/usecase"
	"github.com/kirillkom/ap-automation/internal/core/workflow"
	"github.com/kirillkom/ap-automation/internal/infrastructure/dedup"
	"github.com/kirillkom/ap-automation/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/ap-automation/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/ap-automation/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/ap-automation/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ap-automation/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ap-automation/internal/infrastructure/resilience"
	"github.com/kirillkom/ap-automation/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/ap-automation/internal/infrastructure/textsource"
	"github.com/kirillkom/ap-automation/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	// Queue is nil when uploads are processed inline.
	Queue *natsqueue.Queue

	Auth       ports.Authenticator
	IngestUC   ports.InvoiceIngestor
	ProcessUC  ports.InvoiceProcessor
	InvoiceUC  ports.InvoiceService
	SupplierUC ports.SupplierService

	WorkflowMetrics *metrics.WorkflowMetrics

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:          cfg,
		Logger:          logger,
		WorkflowMetrics: metrics.NewWorkflowMetrics("ap-workflow"),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, db)
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	invoiceRepo := postgres.NewInvoiceRepository(db)
	supplierRepo := postgres.NewSupplierRepository(db)
	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(cfg.Resilience())
	executor.OnStateChange(app.WorkflowMetrics.BreakerStateChanged)

	extractor, err := app.fieldExtractor(ctx, executor)
	if err != nil {
		return nil, err
	}
	source, err := newTextSource(cfg, storage, executor)
	if err != nil {
		return nil, err
	}
	duplicates, err := app.duplicateDetector(ctx, invoiceRepo)
	if err != nil {
		return nil, err
	}
	book, err := loadCodeBook(cfg.CodingRulesPath)
	if err != nil {
		return nil, err
	}

	processor, err := workflow.NewProcessor(workflow.Options{
		Source:               source,
		Extractor:            extractor,
		Duplicates:           duplicates,
		CodeBook:             book,
		POPrefix:             cfg.POPrefix,
		ExtractionConfidence: cfg.ExtractionConfidence,
		Approval:             workflow.DefaultApprovalPolicy(cfg.TouchlessThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}
	processUC := usecase.NewProcessInvoiceUseCase(invoiceRepo, supplierRepo, auditRepo, processor, app.WorkflowMetrics)

	var (
		inline ports.InvoiceProcessor
		queue  ports.MessageQueue
	)
	if cfg.ProcessInline {
		inline = processUC
	} else {
		nq, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, closerFunc(func() error { nq.Close(); return nil }))
		app.Queue = nq
		queue = nq
	}

	app.Auth = usecase.NewDemoAuthenticator(userRepo, cfg.AuthDemoFallback)
	app.IngestUC = usecase.NewIngestInvoiceUseCase(invoiceRepo, auditRepo, storage, queue, inline, cfg.MaxUploadBytes)
	app.ProcessUC = processUC
	app.InvoiceUC = usecase.NewInvoiceServiceUseCase(invoiceRepo, auditRepo, xlsx.NewExporter())
	app.SupplierUC = usecase.NewSupplierServiceUseCase(supplierRepo, auditRepo)

	logger.Info("bootstrap_ready",
		"llm_provider", cfg.LLMProvider,
		"dedup_backend", cfg.DedupBackend,
		"process_inline", cfg.ProcessInline,
		"extraction_simulate", cfg.ExtractionSimulate,
	)
	return app, nil
}

func (a *App) fieldExtractor(ctx context.Context, executor *resilience.Executor) (ports.FieldExtractor, error) {
	switch strings.ToLower(a.Config.LLMProvider) {
	case "", "ollama":
		client := ollama.NewWithOptions(a.Config.OllamaURL, a.Config.OllamaGenModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewFieldExtractor(client), nil
	case "gemini":
		extractor, err := gemini.NewFieldExtractor(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		a.closers = append(a.closers, extractor)
		return extractor, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", a.Config.LLMProvider)
	}
}

func (a *App) duplicateDetector(ctx context.Context, invoices *postgres.InvoiceRepository) (ports.DuplicateDetector, error) {
	switch strings.ToLower(a.Config.DedupBackend) {
	case "", "postgres":
		return dedup.NewRepositoryDetector(invoices), nil
	case "redis":
		client, err := dedup.OpenRedis(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis dedup: %w", err)
		}
		a.closers = append(a.closers, client)
		return dedup.NewRedisDetector(client, time.Duration(a.Config.DedupTTLHours)*time.Hour), nil
	case "none":
		return dedup.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown DEDUP_BACKEND %q", a.Config.DedupBackend)
	}
}

func newTextSource(cfg config.Config, storage ports.ObjectStorage, executor *resilience.Executor) (ports.TextSource, error) {
	if cfg.ExtractionSimulate {
		return textsource.Simulated{}, nil
	}
	source := textsource.New(storage)
	if cfg.AzureVisionEndpoint != "" && cfg.AzureVisionKey != "" {
		ocr, err := textsource.NewImageOCR(cfg.AzureVisionEndpoint, cfg.AzureVisionKey, executor)
		if err != nil {
			return nil, fmt.Errorf("init image ocr: %w", err)
		}
		source.Register("png", ocr).Register("jpg", ocr)
	}
	return source, nil
}

func loadCodeBook(path string) (*workflow.CodeBook, error) {
	if path == "" {
		return workflow.DefaultCodeBook(), nil
	}
	book, err := workflow.LoadCodeBookFile(path)
	if err != nil {
		return nil, fmt.Errorf("load coding rules: %w", err)
	}
	return book, nil
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close_failed", "error", err)
		}
	}
	a.closers = nil
}
