package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/audit"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/internal/documents"
	"github.com/wolfman30/patient-portal/internal/events"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// Infra holds the shared clients a process opened. Any of them may be nil.
type Infra struct {
	Pool    *pgxpool.Pool
	SQLDB   *sql.DB
	Redis   *redis.Client
	AWS     *aws.Config
	Metrics *metrics.PortalMetrics
}

// App is the assembled portal core.
type App struct {
	Portal    *portal.Portal
	Chat      *conversation.Controller
	Audit     *audit.Logger
	AuditLog  *audit.PostgresStore
	Deliverer *events.Deliverer
	Sinks     []string
}

// BuildPortal assembles every portal module from config and infra. Without
// a database the stores fall back to memory, which only suits local runs.
func BuildPortal(ctx context.Context, cfg *appconfig.Config, infra Infra, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		patients identity.Store
		apptRepo appointments.Repository
		docRepo  documents.Repository
	)
	if infra.Pool != nil {
		patients = identity.NewPostgresStore(infra.Pool)
		apptRepo = appointments.NewPostgresRepository(infra.Pool)
	} else {
		logger.Warn("no database pool; patients and appointments kept in memory")
		patients = identity.NewMemoryStore()
		apptRepo = appointments.NewMemoryRepository()
	}
	if infra.SQLDB != nil {
		docRepo = documents.NewPostgresRepository(infra.SQLDB)
	} else {
		docRepo = documents.NewMemoryRepository()
	}

	var signer documents.URLSigner
	if cfg.DocumentsBucket != "" && infra.AWS != nil {
		signer = documents.NewS3URLSigner(s3.NewFromConfig(*infra.AWS), cfg.DocumentURLTTL)
	}

	auditStore, pgAudit, err := buildAuditStore(cfg, infra)
	if err != nil {
		return nil, err
	}
	auditLogger := audit.NewLogger(auditStore, logger, audit.WithMetrics(infra.Metrics))

	client, err := BuildCompletionClient(ctx, cfg, infra.AWS, logger)
	if err != nil {
		return nil, err
	}
	gateway := BuildGateway(client, cfg, infra.Metrics, logger)

	chat := conversation.NewController(
		BuildSessionStore(infra.Redis, cfg, logger),
		conversation.NewContextBuilder(conversation.PromptConfig{ClinicName: cfg.ClinicName, ClinicHours: cfg.ClinicHours}),
		gateway,
		auditLogger,
		conversation.ControllerConfig{ClinicName: cfg.ClinicName, Channel: cfg.AuditChannel},
		logger,
	)

	intents := BuildIntentSinks(cfg, infra.Pool, infra.AWS, logger)
	apptOpts := append([]appointments.Option{appointments.WithMetrics(infra.Metrics)}, intents.Options...)

	p := portal.New(portal.Deps{
		Resolver: identity.NewResolver(patients, logger,
			identity.WithBirthDateRequired(cfg.RequireBirthDate),
			identity.WithMetrics(infra.Metrics)),
		Appointments: appointments.NewService(apptRepo, logger, apptOpts...),
		Documents:    documents.NewService(docRepo, signer),
		Chat:         chat,
		Logger:       logger,
	})

	logger.Info("portal assembled",
		"completion_configured", gateway.Configured(),
		"audit_backend", cfg.AuditBackend,
		"intent_sinks", strings.Join(intents.Sinks, ","),
	)
	return &App{
		Portal:    p,
		Chat:      chat,
		Audit:     auditLogger,
		AuditLog:  pgAudit,
		Deliverer: intents.Deliverer,
		Sinks:     intents.Sinks,
	}, nil
}

func buildAuditStore(cfg *appconfig.Config, infra Infra) (audit.Store, *audit.PostgresStore, error) {
	switch cfg.AuditBackend {
	case "", "postgres":
		if infra.SQLDB == nil {
			return audit.NewMemoryStore(), nil, nil
		}
		store := audit.NewPostgresStore(infra.SQLDB, cfg.AuditTable)
		return store, store, nil
	case "dynamodb":
		if infra.AWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: aws config required for dynamodb audit")
		}
		return audit.NewDynamoStore(dynamodb.NewFromConfig(*infra.AWS), cfg.AuditTable), nil, nil
	case "memory":
		return audit.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown audit backend %q", cfg.AuditBackend)
	}
}

// DefaultTokenTTL bounds portal tokens to the chat session lifetime.
func DefaultTokenTTL(cfg *appconfig.Config) time.Duration {
	if cfg == nil || cfg.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return cfg.SessionTTL
}
