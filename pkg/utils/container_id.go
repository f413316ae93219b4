package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID creates a standardized, human-readable entity ID.
// Format: {kind}-{8charHexUUID}, e.g. GenerateID("vehicle") -> "vehicle-a3f8e2b1".
func GenerateID(kind string) string {
	return kind + "-" + shortUUID()
}

// shortUUID creates an 8-character hex string from a UUID, compact but
// globally unique enough for engine-internal identities.
func shortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
