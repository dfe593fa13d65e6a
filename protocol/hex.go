package protocol

import (
	"encoding/hex"
	"strings"
)

// ParseHex decodes a hex parameter as typed by a user.
// Spaces and "0x" prefixes are ignored, case is not significant.
//
// Example:
//
//	key, err := protocol.ParseHex("key", "0x8A 55 11 4D ...")
func ParseHex(field, s string) ([]byte, error) {
	clean := strings.ReplaceAll(s, " ", "")
	clean = strings.ReplaceAll(clean, "0x", "")
	clean = strings.ReplaceAll(clean, "0X", "")

	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, &ValidationError{Field: field, Reason: err.Error()}
	}
	return data, nil
}
