package datacatalog

import (
	"errors"
	"fmt"
)

// ErrDatasetNotFound indicates the catalog has no record for the
// requested layer/domain/dataset triple.
var ErrDatasetNotFound = errors.New("dataset not found in catalog")

// CatalogUnavailableError indicates the catalog store could not be
// reached. It must surface as a service error so operators can tell an
// outage apart from a deny decision.
type CatalogUnavailableError struct {
	Op  string
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("dataset catalog unavailable during %s: %v", e.Op, e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Err
}
