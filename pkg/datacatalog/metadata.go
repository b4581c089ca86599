// Package datacatalog exposes the dataset catalog collaborator: the
// authoritative classification (sensitivity, layer, domain) of every
// stored dataset. The records are written by the schema-upload workflow;
// the authorization core only ever reads them.
package datacatalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/dataplane/catalog-access/pkg/permissions"
)

// DatasetMetadata identifies a dataset by its layer/domain/dataset triple
// plus an optional version.
type DatasetMetadata struct {
	Layer   permissions.LayerScope `json:"layer"`
	Domain  string                 `json:"domain"`
	Dataset string                 `json:"dataset"`
	Version int                    `json:"version,omitempty"`
}

// String renders the identity for audit messages.
func (m DatasetMetadata) String() string {
	if m.Version > 0 {
		return fmt.Sprintf("layer [%s], domain [%s], dataset [%s] and version [%d]",
			m.Layer, m.Domain, m.Dataset, m.Version)
	}
	return fmt.Sprintf("layer [%s], domain [%s] and dataset [%s]", m.Layer, m.Domain, m.Dataset)
}

// DatasetTags is the stored classification of a dataset. Extra carries
// the free-form key/value tags attached at upload time.
type DatasetTags struct {
	Sensitivity permissions.Sensitivity
	Layer       permissions.LayerScope
	Domain      string
	Extra       map[string]string
}

// DatasetFilter selects datasets by classification. Empty fields match
// everything; a nil Sensitivities or Layers slice is unconstrained.
type DatasetFilter struct {
	Sensitivities []permissions.Sensitivity
	Layers        []permissions.LayerScope
	Domain        string
}

// JSONStringMap is a custom GORM type for map[string]string stored as JSON.
type JSONStringMap map[string]string

// Scan implements the sql.Scanner interface for JSONStringMap.
func (m *JSONStringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONStringMap.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
