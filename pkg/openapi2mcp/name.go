// name.go
package openapi2mcp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxToolNameLen is the longest tool name the protocol accepts.
const maxToolNameLen = 64

// hashSuffixLen is the number of hex digits appended when a name is truncated.
const hashSuffixLen = 8

// SanitizeToolName maps an operation identity (operationId, or method+path
// when absent) to a protocol-legal tool name: lowercase, [a-z0-9_-] only,
// at most 64 characters. The mapping is deterministic and idempotent.
// Names that need truncating get a short hash of the original identity
// appended, so distinct long identities never collapse to the same name.
func SanitizeToolName(raw string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(sb.String(), "_")
	if name == "" {
		name = "operation"
	}
	if len(name) <= maxToolNameLen {
		return name
	}

	sum := sha256.Sum256([]byte(raw))
	suffix := hex.EncodeToString(sum[:])[:hashSuffixLen]
	keep := maxToolNameLen - hashSuffixLen - 1
	return strings.TrimRight(name[:keep], "_") + "_" + suffix
}
