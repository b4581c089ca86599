// Package subjects provides the administrative service for registering
// callers (users and client applications) and protected domains, on top
// of the permission store.
package subjects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/dataplane/catalog-access/pkg/permissions"
)

// ErrDomainExists indicates an attempt to create a protected domain that
// is already registered.
var ErrDomainExists = errors.New("protected domain already exists")

// ValidationError indicates a rejected admin request: an unknown subject
// type, an illegal domain name, or a grant naming a permission outside
// the vocabulary.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// domainNameRe restricts protected domain names to the characters the
// permission-string codec can round-trip.
var domainNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{1,127}$`)

// SubjectStore is the persistence the service needs; *permissions.Store
// satisfies it.
type SubjectStore interface {
	MissingPermissionIDs(ctx context.Context, ids []string) ([]string, error)
	UpsertPermissions(ctx context.Context, records []permissions.PermissionRecord) error
	CreateSubject(ctx context.Context, subject *permissions.SubjectRecord, permissionIDs []string) error
	ReplaceSubjectPermissions(ctx context.Context, subjectID string, permissionIDs []string) error
	GetSubject(ctx context.Context, subjectID string) (*permissions.SubjectRecord, error)
}

// ProtectedResolver lists the stored PROTECTED-scoped permissions;
// *permissions.Resolver satisfies it.
type ProtectedResolver interface {
	ResolveProtected(ctx context.Context) ([]permissions.Permission, error)
}

// Service implements subject and protected-domain administration.
type Service struct {
	store    SubjectStore
	resolver ProtectedResolver
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(store SubjectStore, resolver ProtectedResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resolver: resolver, logger: logger}
}

// CreateSubjectRequest registers a new caller with its initial grants.
type CreateSubjectRequest struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// CreateSubject validates and stores a new subject, returning the
// generated subject id.
func (s *Service) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*permissions.SubjectRecord, error) {
	subjectType := strings.ToUpper(req.Type)
	if subjectType != string(SubjectTypeUser) && subjectType != string(SubjectTypeClient) {
		return nil, &ValidationError{Message: fmt.Sprintf("subject type must be USER or CLIENT, got %q", req.Type)}
	}
	if req.Name == "" {
		return nil, &ValidationError{Message: "subject name is required"}
	}
	if err := s.validateGrants(ctx, req.Permissions); err != nil {
		return nil, err
	}

	subject := &permissions.SubjectRecord{
		ID:          uuid.NewString(),
		SubjectType: subjectType,
		SubjectName: req.Name,
	}
	if err := s.store.CreateSubject(ctx, subject, req.Permissions); err != nil {
		return nil, err
	}

	s.logger.Info("subject created",
		"subject", subject.ID, "type", subjectType, "grants", len(req.Permissions))
	return subject, nil
}

// SubjectType is the kind of registered caller.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeClient SubjectType = "CLIENT"
)

// SetSubjectPermissions replaces a subject's grants after validating
// every named permission against the vocabulary.
func (s *Service) SetSubjectPermissions(ctx context.Context, subjectID string, grants []string) error {
	if err := s.validateGrants(ctx, grants); err != nil {
		return err
	}
	if err := s.store.ReplaceSubjectPermissions(ctx, subjectID, grants); err != nil {
		return err
	}
	s.logger.Info("subject permissions replaced", "subject", subjectID, "grants", len(grants))
	return nil
}

// ListProtectedDomains returns the registered protected domains, lower
// cased and sorted.
func (s *Service) ListProtectedDomains(ctx context.Context) ([]string, error) {
	granted, err := s.resolver.ResolveProtected(ctx)
	if err != nil {
		return nil, err
	}

	domains := mapset.NewSet[string]()
	for _, permission := range granted {
		if permission.Domain != "" {
			domains.Add(strings.ToLower(permission.Domain))
		}
	}

	sorted := domains.ToSlice()
	sort.Strings(sorted)
	return sorted, nil
}

// CreateProtectedDomain registers a new protected domain: it adds the
// READ and WRITE permissions for every layer scope to the vocabulary.
func (s *Service) CreateProtectedDomain(ctx context.Context, domain string) error {
	if !domainNameRe.MatchString(domain) {
		return &ValidationError{Message: fmt.Sprintf("invalid protected domain name %q", domain)}
	}

	existing, err := s.ListProtectedDomains(ctx)
	if err != nil {
		return err
	}
	for _, registered := range existing {
		if strings.EqualFold(registered, domain) {
			return ErrDomainExists
		}
	}

	vocabulary := permissions.ProtectedVocabulary(domain)
	records := make([]permissions.PermissionRecord, len(vocabulary))
	for i, permission := range vocabulary {
		records[i] = permissions.RecordFor(permission)
	}
	if err := s.store.UpsertPermissions(ctx, records); err != nil {
		return err
	}

	s.logger.Info("protected domain created", "domain", strings.ToLower(domain))
	return nil
}

func (s *Service) validateGrants(ctx context.Context, grants []string) error {
	for _, grant := range grants {
		if _, err := permissions.Decompose(grant); err != nil {
			return &ValidationError{Message: fmt.Sprintf("permission %q is not a legal permission string", grant)}
		}
	}
	missing, err := s.store.MissingPermissionIDs(ctx, grants)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &ValidationError{Message: fmt.Sprintf("one or more of the provided permissions do not exist: %s", strings.Join(missing, ", "))}
	}
	return nil
}

// SeedVocabulary inserts the full static permission vocabulary. It is
// idempotent and safe to run at every startup.
func (s *Service) SeedVocabulary(ctx context.Context) error {
	vocabulary := permissions.Vocabulary()
	records := make([]permissions.PermissionRecord, len(vocabulary))
	for i, permission := range vocabulary {
		records[i] = permissions.RecordFor(permission)
	}
	return s.store.UpsertPermissions(ctx, records)
}
