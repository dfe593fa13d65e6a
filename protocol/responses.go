package protocol

import (
	"bytes"
	"fmt"
)

var sentinel = []byte(Sentinel)

// ValidateOK checks that a reply acknowledges a command.
//
// With ReplyStrict the reply, trimmed of ASCII whitespace, must be exactly
// "OK". With ReplyPermissive "OK" may appear anywhere in the raw bytes.
func ValidateOK(reply []byte, mode ReplyMode) error {
	switch mode {
	case ReplyStrict:
		if bytes.Equal(bytes.TrimSpace(reply), sentinel) {
			return nil
		}
		return &ProtocolError{Operation: "acknowledge", Reason: `reply is not exactly "OK"`, Reply: reply}
	case ReplyPermissive:
		if bytes.Contains(reply, sentinel) {
			return nil
		}
		return &ProtocolError{Operation: "acknowledge", Reason: `reply does not contain "OK"`, Reply: reply}
	default:
		return fmt.Errorf("unknown reply mode %d", mode)
	}
}

// ParseTagResponse extracts the authentication tag from a Fetch Tag reply.
//
// Reply format:
//
//	[TAG(16)]["OK"]
//
// The second return value reports whether the bytes after the tag contain
// "OK". A missing trailer is not an error; callers should log it.
func ParseTagResponse(reply []byte) (Tag, bool, error) {
	var tag Tag
	if len(reply) < TagSize {
		return tag, false, &ProtocolError{
			Operation: "fetch tag",
			Reason:    fmt.Sprintf("reply too short: got %d bytes, need %d", len(reply), TagSize),
			Reply:     reply,
		}
	}
	copy(tag[:], reply[:TagSize])
	return tag, bytes.Contains(reply[TagSize:], sentinel), nil
}

// ParseCiphertextResponse extracts the ciphertext from a Fetch Ciphertext reply.
//
// Reply format:
//
//	[CIPHERTEXT(184)]["OK"]
//
// The second return value reports whether the bytes after the ciphertext
// contain "OK". A missing trailer is not an error; callers should log it.
func ParseCiphertextResponse(reply []byte) (Ciphertext, bool, error) {
	var ct Ciphertext
	if len(reply) < CiphertextSize {
		return ct, false, &ProtocolError{
			Operation: "fetch ciphertext",
			Reason:    fmt.Sprintf("reply too short: got %d bytes, need %d", len(reply), CiphertextSize),
			Reply:     reply,
		}
	}
	copy(ct[:], reply[:CiphertextSize])
	return ct, bytes.Contains(reply[CiphertextSize:], sentinel), nil
}

// ParseReadValueResponse extracts the register value from a Read Value reply.
//
// Reply format:
//
//	[VALUE(1)]["OK"]
//
// Trailing whitespace after the trailer is ignored.
func ParseReadValueResponse(reply []byte) (uint8, error) {
	trimmed := bytes.TrimRight(reply, " \t\r\n")
	if len(trimmed) < 1+len(Sentinel) {
		return 0, &ProtocolError{
			Operation: "read value",
			Reason:    fmt.Sprintf("reply too short: got %d bytes, need %d", len(trimmed), 1+len(Sentinel)),
			Reply:     reply,
		}
	}
	if len(trimmed) != 1+len(Sentinel) || !bytes.Equal(trimmed[1:], sentinel) {
		return 0, &ProtocolError{
			Operation: "read value",
			Reason:    `value byte is not followed by "OK"`,
			Reply:     reply,
		}
	}
	return trimmed[0], nil
}

// OKReceived reports whether a reply to an accelerator command is complete.
func OKReceived(reply []byte) bool {
	return bytes.Contains(reply, sentinel)
}

// LineReceived reports whether a reply to a register command is complete:
// either the sentinel arrived or the device finished a line.
func LineReceived(reply []byte) bool {
	return bytes.Contains(reply, sentinel) || bytes.HasSuffix(reply, []byte("\n"))
}

// PayloadReceived returns a completion check for replies carrying n payload
// bytes followed by "OK".
func PayloadReceived(n int) func([]byte) bool {
	return func(reply []byte) bool {
		return len(reply) >= n+len(Sentinel) && bytes.Contains(reply[n:], sentinel)
	}
}

// ReadValueReceived reports whether a Read Value reply is complete. The
// first byte is the raw value and may itself be a line feed.
func ReadValueReceived(reply []byte) bool {
	return PayloadReceived(1)(reply) || (len(reply) > 1 && bytes.HasSuffix(reply[1:], []byte("\n")))
}
