package wiki

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"arbor/internal/domain"
)

// bodyPolicy sanitizes file body HTML before it is stored. UGC policy plus
// the handful of layout tags the editor emits.
var bodyPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("span", "div", "p")
	p.AllowElements("u", "s", "mark")
	return p
}()

// SanitizeBody strips unsafe markup from a file body.
func SanitizeBody(body string) string {
	return bodyPolicy.Sanitize(body)
}

// requireUUID rejects ids that are not UUID-shaped. A malformed id is a
// validation failure (422), distinct from a well-formed id that resolves to
// nothing (404).
func requireUUID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s is not a valid identifier", domain.ErrValidation, field)
	}
	return nil
}

// requireOptionalUUID accepts nil and validates the shape otherwise.
func requireOptionalUUID(field string, id *string) error {
	if id == nil {
		return nil
	}
	return requireUUID(field, *id)
}
