package access

import "fmt"

// AuthorisationError indicates a valid caller whose permission set does
// not satisfy the requirement. The message names the subject and the
// target resource for audit traceability; it deliberately never includes
// the caller's permission list.
type AuthorisationError struct {
	Subject  string
	Resource string
}

func (e *AuthorisationError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("subject %s does not have enough permissions to access this endpoint", e.Subject)
	}
	return fmt.Sprintf("subject %s does not have enough permissions to access the dataset %s", e.Subject, e.Resource)
}
