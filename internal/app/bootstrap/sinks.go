package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/patient-portal/internal/appointments"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/events"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// IntentWiring is the set of sinks appointment intents fan out to, plus
// the outbox deliverer when intents are queued through Postgres.
type IntentWiring struct {
	Options   []appointments.Option
	Sinks     []string
	Deliverer *events.Deliverer
}

// BuildIntentSinks wires staff-facing intent delivery from config. Every
// sink is optional; with none configured intents are only logged.
func BuildIntentSinks(cfg *appconfig.Config, pool *pgxpool.Pool, awsCfg *aws.Config, logger *logging.Logger) IntentWiring {
	if logger == nil {
		logger = logging.Default()
	}
	var w IntentWiring
	add := func(name string, sink appointments.IntentSink) {
		w.Options = append(w.Options, appointments.WithIntentSink(name, sink))
		w.Sinks = append(w.Sinks, name)
	}

	if queueURL := strings.TrimSpace(cfg.StaffIntentQueueURL); queueURL != "" && awsCfg != nil {
		publisher := events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), queueURL)
		if cfg.IntentOutbox && pool != nil {
			outbox := events.NewOutboxStore(pool)
			add("outbox", outbox)
			w.Deliverer = events.NewDeliverer(outbox, publisher, logger)
		} else {
			add("sqs", publisher)
		}
	}

	if sender := buildEmailSender(cfg, awsCfg, logger); sender != nil {
		add("staff_email", notify.NewStaffNotifier(sender, notify.StaffConfig{
			ClinicName: cfg.ClinicName,
			Recipients: splitList(cfg.StaffNotifyEmail),
		}, logger))
	}

	if len(w.Sinks) == 0 {
		add("log", appointments.IntentSinkFunc(logIntent(logger)))
	}
	logger.Info("appointment intent sinks configured", "sinks", w.Sinks)
	return w
}

func buildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if strings.TrimSpace(cfg.StaffNotifyEmail) == "" {
		return nil
	}
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		return sender
	}
	if cfg.SESFromEmail != "" && awsCfg != nil {
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	logger.Warn("staff notify email set but no email provider configured; using stub sender")
	return notify.NewStubEmailSender(logger)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logIntent(logger *logging.Logger) func(context.Context, appointments.Intent) error {
	return func(_ context.Context, intent appointments.Intent) error {
		logger.Info("appointment intent",
			"intent_id", intent.ID,
			"action", intent.Action,
			"appointment_id", intent.Appointment.ID,
			"status", intent.Appointment.Status,
		)
		return nil
	}
}
