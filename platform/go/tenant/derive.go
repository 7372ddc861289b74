package tenant

import (
	"errors"
	"regexp"
)

// ErrInvalidID is returned when a tenant id does not match the slug format.
var ErrInvalidID = errors.New("invalid tenant id: must be 3-30 lowercase alphanumeric characters starting with a letter")

// Tenant ids are chosen once at registration and embedded in schema names,
// so the format is deliberately strict: lowercase alphanumeric only.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9]{2,29}$`)

// ValidateID checks the tenant id slug format.
func ValidateID(tenantID string) error {
	if !idPattern.MatchString(tenantID) {
		return ErrInvalidID
	}
	return nil
}

// SchemaName derives the PostgreSQL schema name for a tenant id.
// The `<tenantId>_schema` convention is a durable persisted contract:
// changing it after tenants exist would orphan their data.
// The id is validated before it is ever embedded in DDL text.
func SchemaName(tenantID string) (string, error) {
	if err := ValidateID(tenantID); err != nil {
		return "", err
	}
	return tenantID + "_schema", nil
}
