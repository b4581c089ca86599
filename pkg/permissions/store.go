package permissions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionRecord is a stored vocabulary entry. The ID column holds the
// canonical permission string; the remaining columns are its decomposition
// and exist for filtered queries.
type PermissionRecord struct {
	ID          string `gorm:"primaryKey;size:128"`
	Action      string `gorm:"size:32;not null;index"`
	Layer       string `gorm:"size:32"`
	Sensitivity string `gorm:"size:32;index"`
	Domain      string `gorm:"size:128"`
}

// TableName overrides the gorm default.
func (PermissionRecord) TableName() string {
	return "permission_records"
}

// RecordFor builds the stored form of a decoded permission.
func RecordFor(p Permission) PermissionRecord {
	return PermissionRecord{
		ID:          p.ID(),
		Action:      string(p.Action),
		Layer:       string(p.Layer),
		Sensitivity: string(p.Sensitivity),
		Domain:      p.Domain,
	}
}

// SubjectRecord is a registered caller: a human user or a client
// application, with its granted permissions.
type SubjectRecord struct {
	ID          string             `gorm:"primaryKey;size:64"`
	SubjectType string             `gorm:"size:16;not null"`
	SubjectName string             `gorm:"size:128;not null;uniqueIndex"`
	Permissions []PermissionRecord `gorm:"many2many:subject_permissions"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the gorm default.
func (SubjectRecord) TableName() string {
	return "subject_records"
}

// Store provides database operations for the permission vocabulary and
// subject grants.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the permission and subject tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&PermissionRecord{}, &SubjectRecord{})
}

// GetPermissionsForSubject returns the raw permission records granted to
// the subject. A subject with no store record yields ErrSubjectNotFound;
// a subject that exists with zero grants yields an empty slice.
func (s *Store) GetPermissionsForSubject(ctx context.Context, subjectID string) ([]PermissionRecord, error) {
	var subject SubjectRecord
	err := s.db.WithContext(ctx).First(&subject, "id = ?", subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, &StoreUnavailableError{Op: "get subject", Err: err}
	}

	var records []PermissionRecord
	err = s.db.WithContext(ctx).Model(&subject).Association("Permissions").Find(&records)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "get subject permissions", Err: err}
	}
	return records, nil
}

// GetAllPermissions returns every stored permission record.
func (s *Store) GetAllPermissions(ctx context.Context) ([]PermissionRecord, error) {
	var records []PermissionRecord
	err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error
	if err != nil {
		return nil, &StoreUnavailableError{Op: "list permissions", Err: err}
	}
	return records, nil
}

// GetAllProtectedPermissions returns the stored permissions scoped to a
// protected domain.
func (s *Store) GetAllProtectedPermissions(ctx context.Context) ([]PermissionRecord, error) {
	var records []PermissionRecord
	err := s.db.WithContext(ctx).
		Where("sensitivity = ?", string(SensitivityProtected)).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, &StoreUnavailableError{Op: "list protected permissions", Err: err}
	}
	return records, nil
}

// MissingPermissionIDs returns the subset of ids that have no vocabulary
// record. An empty result means every id is grantable.
func (s *Store) MissingPermissionIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var existing []string
	err := s.db.WithContext(ctx).Model(&PermissionRecord{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, &StoreUnavailableError{Op: "validate permissions", Err: err}
	}

	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// UpsertPermissions inserts vocabulary records, ignoring ones that
// already exist. Used for seeding and protected-domain creation.
func (s *Store) UpsertPermissions(ctx context.Context, records []PermissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&records).Error
	if err != nil {
		return &StoreUnavailableError{Op: "upsert permissions", Err: err}
	}
	return nil
}

// GetSubject retrieves a subject record with its grants preloaded.
// Returns nil, nil if the subject does not exist.
func (s *Store) GetSubject(ctx context.Context, subjectID string) (*SubjectRecord, error) {
	var subject SubjectRecord
	err := s.db.WithContext(ctx).Preload("Permissions").First(&subject, "id = ?", subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &StoreUnavailableError{Op: "get subject", Err: err}
	}
	return &subject, nil
}

// CreateSubject stores a new subject with the given permission grants.
// The permission ids must already be validated against the vocabulary.
func (s *Store) CreateSubject(ctx context.Context, subject *SubjectRecord, permissionIDs []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Permissions").Create(subject).Error; err != nil {
			return err
		}
		return s.replaceGrants(tx, subject, permissionIDs)
	})
	if err != nil {
		return &StoreUnavailableError{Op: "create subject", Err: err}
	}
	return nil
}

// ReplaceSubjectPermissions replaces a subject's grants wholesale.
// Returns ErrSubjectNotFound if the subject does not exist.
func (s *Store) ReplaceSubjectPermissions(ctx context.Context, subjectID string, permissionIDs []string) error {
	var subject SubjectRecord
	err := s.db.WithContext(ctx).First(&subject, "id = ?", subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return &StoreUnavailableError{Op: "get subject", Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.replaceGrants(tx, &subject, permissionIDs)
	})
	if err != nil {
		return &StoreUnavailableError{Op: "replace subject permissions", Err: err}
	}
	return nil
}

func (s *Store) replaceGrants(tx *gorm.DB, subject *SubjectRecord, permissionIDs []string) error {
	records := make([]PermissionRecord, len(permissionIDs))
	for i, id := range permissionIDs {
		records[i] = PermissionRecord{ID: id}
	}
	return tx.Model(subject).Association("Permissions").Replace(&records)
}
