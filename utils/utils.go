package utils

import (
	"strings"

	"github.com/gofrs/uuid"
)

// namespace for identifiers derived from protocol keys
var keyNamespace = uuid.Must(uuid.FromString("6f1d3c8e-2b7a-4c55-9a0e-5d2f8b1e4a77"))

// GenUuidFromStrings derives a stable v5 uuid from the ordered parts.
func GenUuidFromStrings(parts ...string) uuid.UUID {
	return uuid.NewV5(keyNamespace, strings.Join(parts, "/"))
}

// NormalizeKey trims surrounding whitespace from a caller identity.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
