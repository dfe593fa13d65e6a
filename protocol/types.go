package protocol

import (
	"encoding/hex"
	"strings"
)

// Tag is the authentication tag produced by the accelerator.
type Tag [TagSize]byte

// String returns the tag as uppercase hex.
func (t Tag) String() string {
	return strings.ToUpper(hex.EncodeToString(t[:]))
}

// Ciphertext is the encrypted, padded data block produced by the accelerator.
type Ciphertext [CiphertextSize]byte

// String returns the ciphertext as uppercase hex.
func (c Ciphertext) String() string {
	return strings.ToUpper(hex.EncodeToString(c[:]))
}

// ReplyMode selects how a success reply is recognized.
type ReplyMode int

const (
	// ReplyPermissive accepts any reply that contains "OK".
	// The accelerator may prepend non-textual status bytes.
	ReplyPermissive ReplyMode = iota

	// ReplyStrict accepts only a reply that is exactly "OK" once trimmed.
	// Used by the register command set.
	ReplyStrict
)

func (m ReplyMode) String() string {
	switch m {
	case ReplyPermissive:
		return "permissive"
	case ReplyStrict:
		return "strict"
	default:
		return "unknown"
	}
}
