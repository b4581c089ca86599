package datacatalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dataplane/catalog-access/pkg/permissions"
)

// Catalog is the read-side interface the access decision engine consumes.
type Catalog interface {
	GetDatasetsMetadata(ctx context.Context, filter DatasetFilter) ([]DatasetMetadata, error)
	GetTags(ctx context.Context, dataset DatasetMetadata) (DatasetTags, error)
}

// DatasetRecord is the stored catalog entry for one dataset version.
type DatasetRecord struct {
	ID          uint          `gorm:"primaryKey;autoIncrement"`
	Layer       string        `gorm:"size:32;not null;index:idx_dataset_identity,unique"`
	Domain      string        `gorm:"size:128;not null;index:idx_dataset_identity,unique"`
	Dataset     string        `gorm:"size:128;not null;index:idx_dataset_identity,unique"`
	Version     int           `gorm:"not null;index:idx_dataset_identity,unique"`
	Sensitivity string        `gorm:"size:32;not null;index"`
	Description string        `gorm:"size:512"`
	Tags        JSONStringMap `gorm:"type:text"`
}

// TableName overrides the gorm default.
func (DatasetRecord) TableName() string {
	return "dataset_records"
}

// Store is the gorm-backed catalog implementation.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the dataset table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&DatasetRecord{})
}

// GetDatasetsMetadata returns the datasets matching the filter, ordered
// by domain, dataset, version.
func (s *Store) GetDatasetsMetadata(ctx context.Context, filter DatasetFilter) ([]DatasetMetadata, error) {
	query := s.db.WithContext(ctx).Model(&DatasetRecord{})
	if len(filter.Sensitivities) > 0 {
		query = query.Where("sensitivity IN ?", toStrings(filter.Sensitivities))
	}
	if len(filter.Layers) > 0 {
		query = query.Where("layer IN ?", toStrings(filter.Layers))
	}
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
	}

	var records []DatasetRecord
	err := query.Order("domain ASC, dataset ASC, version ASC").Find(&records).Error
	if err != nil {
		return nil, &CatalogUnavailableError{Op: "list datasets", Err: err}
	}

	datasets := make([]DatasetMetadata, len(records))
	for i, record := range records {
		datasets[i] = DatasetMetadata{
			Layer:   permissions.LayerScope(record.Layer),
			Domain:  record.Domain,
			Dataset: record.Dataset,
			Version: record.Version,
		}
	}
	return datasets, nil
}

// GetTags returns the classification of the given dataset. When the
// caller does not name a version, the latest version's tags are used.
func (s *Store) GetTags(ctx context.Context, dataset DatasetMetadata) (DatasetTags, error) {
	query := s.db.WithContext(ctx).
		Where("layer = ? AND domain = ? AND dataset = ?",
			string(dataset.Layer), dataset.Domain, dataset.Dataset)
	if dataset.Version > 0 {
		query = query.Where("version = ?", dataset.Version)
	}

	var record DatasetRecord
	err := query.Order("version DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DatasetTags{}, ErrDatasetNotFound
		}
		return DatasetTags{}, &CatalogUnavailableError{Op: "get dataset tags", Err: err}
	}

	return DatasetTags{
		Sensitivity: permissions.Sensitivity(record.Sensitivity),
		Layer:       permissions.LayerScope(record.Layer),
		Domain:      record.Domain,
		Extra:       record.Tags,
	}, nil
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
