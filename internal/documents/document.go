// Package documents lists the clinical documents shared with a patient.
package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrStoreUnavailable is returned when documents cannot be read.
var ErrStoreUnavailable = errors.New("documents: store unavailable")

// Type tags a document.
type Type string

const (
	TypeExam         Type = "exam"
	TypePrescription Type = "prescription"
	TypeOther        Type = "other"
)

// ParseType maps unknown tags to TypeOther.
func ParseType(raw string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeExam, TypePrescription:
		return t
	default:
		return TypeOther
	}
}

// Document is a file the clinic published for a patient.
type Document struct {
	ID        string    `json:"id"`
	PatientID string    `json:"-"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository reads documents newest first.
type Repository interface {
	ListByPatient(ctx context.Context, patientID string, types []Type) ([]Document, error)
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Add stores a document.
func (r *MemoryRepository) Add(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

// ListByPatient implements Repository.
func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string, types []Type) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Document
	for _, d := range r.docs {
		if d.PatientID == patientID && matchesType(d.Type, types) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matchesType(t Type, types []Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// URLSigner turns a stored location into a URL the patient can open.
type URLSigner interface {
	Sign(ctx context.Context, raw string) (string, error)
}

// Service lists documents for a resolved patient.
type Service struct {
	repo   Repository
	signer URLSigner
}

// NewService builds a Service. signer may be nil.
func NewService(repo Repository, signer URLSigner) *Service {
	if repo == nil {
		panic("documents: repository required")
	}
	return &Service{repo: repo, signer: signer}
}

// List returns the patient's documents, newest first.
func (s *Service) List(ctx context.Context, patientID string, types ...Type) ([]Document, error) {
	if patientID == "" {
		return nil, fmt.Errorf("documents: patient id required")
	}
	docs, err := s.repo.ListByPatient(ctx, patientID, types)
	if err != nil {
		return nil, err
	}
	if s.signer == nil {
		return docs, nil
	}
	for i := range docs {
		signed, err := s.signer.Sign(ctx, docs[i].URL)
		if err != nil {
			return nil, fmt.Errorf("%w: sign %s: %w", ErrStoreUnavailable, docs[i].ID, err)
		}
		docs[i].URL = signed
	}
	return docs, nil
}
