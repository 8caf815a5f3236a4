package tenant

import (
	"strings"

	"github.com/google/uuid"
)

// ToSnake converts a kebab-case slug into snake_case for schema names.
func ToSnake(slug string) string {
	return strings.ReplaceAll(strings.ToLower(slug), "-", "_")
}

// ShortID returns the first 8 hexadecimal characters of a UUID (without dashes).
func ShortID(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	if len(hex) < 8 {
		return hex
	}
	return hex[:8]
}

// BuildSchemaName returns the canonical PostgreSQL schema name for a school.
// Format: <prefix>__school_<slugSnake> — the double underscore keeps the
// deployment prefix visually separated from the fixed segment and reduces
// accidental collisions across shared databases.
func BuildSchemaName(prefix, slugSnake string) string {
	return strings.TrimSpace(prefix) + "__school_" + slugSnake
}

// BuildRoleName returns the NOLOGIN role owning a school schema.
func BuildRoleName(schemaName string) string {
	return schemaName + "_role"
}

// BuildMediaPrefix returns `<slug>-<shortSchoolID>/`, the per-school
// directory prefix for branding assets.
func BuildMediaPrefix(slug, shortID string) string {
	return slug + "-" + shortID + "/"
}
