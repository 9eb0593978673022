package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var identityTracer = otel.Tracer("portal.internal.identity")

// Store looks patients up by normalized credentials. Rows come back newest first.
type Store interface {
	Find(ctx context.Context, lookup Lookup, limit int) ([]Patient, error)
	Get(ctx context.Context, id string) (Patient, error)
}

// Resolver maps credentials to exactly one Patient.
type Resolver struct {
	store            Store
	requireBirthDate bool
	logger           *logging.Logger
	metrics          *metrics.PortalMetrics
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithBirthDateRequired makes the secondary credential mandatory.
func WithBirthDateRequired(required bool) Option {
	return func(r *Resolver) { r.requireBirthDate = required }
}

// WithMetrics records resolution outcomes.
func WithMetrics(m *metrics.PortalMetrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver constructs a resolver over the given store.
func NewResolver(store Store, logger *logging.Logger, opts ...Option) *Resolver {
	if store == nil {
		panic("identity: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Resolver{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the single patient matching creds. Failures are one of
// ErrNotFound, ErrAmbiguous or ErrStoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Patient, error) {
	ctx, span := identityTracer.Start(ctx, "identity.resolve")
	defer span.End()

	lookup, ok := r.lookupFor(creds)
	if !ok {
		r.metrics.ObserveIdentity("not_found")
		return nil, ErrNotFound
	}
	span.SetAttributes(attribute.Bool("portal.identity.birth_date", lookup.BirthDate != ""))

	// Two rows are enough to detect ambiguity.
	patients, err := r.store.Find(ctx, lookup, 2)
	if err != nil {
		span.RecordError(err)
		r.metrics.ObserveIdentity("store_unavailable")
		r.logger.Error("patient lookup failed", "error", err)
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	switch len(patients) {
	case 0:
		r.metrics.ObserveIdentity("not_found")
		return nil, ErrNotFound
	case 1:
		r.metrics.ObserveIdentity("resolved")
		patient := patients[0]
		r.logger.Info("patient resolved", "patient_id", patient.ID)
		return &patient, nil
	default:
		r.metrics.ObserveIdentity("ambiguous")
		r.logger.Warn("credentials matched multiple patients", "matches", len(patients))
		return nil, ErrAmbiguous
	}
}

func (r *Resolver) lookupFor(creds Credentials) (Lookup, bool) {
	nationalID := NormalizeNationalID(creds.NationalID)
	if nationalID == "" {
		return Lookup{}, false
	}
	birthDate := strings.TrimSpace(creds.BirthDate)
	if birthDate == "" {
		return Lookup{NationalID: nationalID}, !r.requireBirthDate
	}
	if !validBirthDate(birthDate) {
		return Lookup{}, false
	}
	return Lookup{NationalID: nationalID, BirthDate: birthDate}, true
}

// Profile reloads an already resolved patient by id.
func (r *Resolver) Profile(ctx context.Context, patientID string) (*Patient, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrNotFound
	}
	p, err := r.store.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
