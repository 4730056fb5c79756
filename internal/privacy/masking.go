package privacy

import (
	"strings"

	"kenalan/internal/constants"
)

// MaskConnectionID masks a connection identifier for logging while keeping
// enough of the tail to correlate log lines.
// Example: "3f2a9c1e-..." -> "****9c1e"
func MaskConnectionID(id string) string {
	if id == "" {
		return ""
	}
	return maskString(id, constants.DefaultIDMaskLength)
}

// MaskMessageID masks a message identifier the same way as connection ids.
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	return maskString(messageID, constants.DefaultIDMaskLength)
}

// MaskName masks a client-declared display name, keeping only the first rune.
// Example: "Budi" -> "B***"
func MaskName(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	if len(runes) == 1 {
		return "*"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// maskString shows only the last keepChars characters of a string.
func maskString(value string, keepChars int) string {
	if len(value) <= keepChars {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", keepChars) + value[len(value)-keepChars:]
}
