package protocol

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "nonce", Expected: 16, Actual: 3}
	if got := err.Error(); got != "nonce must be exactly 16 bytes, got 3" {
		t.Errorf("Error() = %q", got)
	}

	err = &ValidationError{Field: "command tag", Reason: "0x31 is not an ASCII letter"}
	if got := err.Error(); got != "invalid command tag: 0x31 is not an ASCII letter" {
		t.Errorf("Error() = %q", got)
	}
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Operation: "load key", Reason: "no sentinel", Reply: []byte{0x01, 0xFF}}
	msg := err.Error()

	for _, want := range []string{"load key failed", "no sentinel", "01 FF"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message should contain %q, got: %s", want, msg)
		}
	}
}

func TestIsHelpersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", &ProtocolError{Operation: "trigger"})
	if !IsProtocolError(wrapped) {
		t.Error("IsProtocolError should see through wrapping")
	}
	if IsValidationError(wrapped) {
		t.Error("IsValidationError should be false for a ProtocolError")
	}

	wrapped = fmt.Errorf("stage: %w", &ValidationError{Field: "key"})
	if !IsValidationError(wrapped) {
		t.Error("IsValidationError should see through wrapping")
	}
	if IsProtocolError(nil) {
		t.Error("IsProtocolError(nil) should be false")
	}
}
