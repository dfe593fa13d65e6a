package protocol

import (
	"fmt"
)

// BuildCommand constructs a frame from a tag and a payload.
// The tag is upper-cased before it is sent and must be an ASCII letter.
//
// Frame structure:
//
//	[TAG][PAYLOAD...]
func BuildCommand(tag byte, payload []byte) ([]byte, error) {
	if tag >= 'a' && tag <= 'z' {
		tag -= 'a' - 'A'
	}
	if tag < 'A' || tag > 'Z' {
		return nil, &ValidationError{
			Field:  "command tag",
			Reason: fmt.Sprintf("0x%02X is not an ASCII letter", tag),
		}
	}

	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, tag)
	frame = append(frame, payload...)
	return frame, nil
}

// BuildLoadKeyCmd constructs a Load Key command frame.
// The key must be exactly KeySize bytes.
//
// Frame structure:
//
//	[L][KEY(16)]
func BuildLoadKeyCmd(key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, lengthError("key", KeySize, len(key))
	}
	return BuildCommand(CmdLoadKey, key)
}

// BuildLoadNonceCmd constructs a Load Nonce command frame.
// The nonce must be exactly NonceSize bytes.
//
// Frame structure:
//
//	[O][NONCE(16)]
func BuildLoadNonceCmd(nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, lengthError("nonce", NonceSize, len(nonce))
	}
	return BuildCommand(CmdLoadNonce, nonce)
}

// BuildLoadAssociatedDataCmd constructs a Load Associated Data command frame.
// The data must be exactly AssociatedDataSize bytes; the padding 0x80 0x00
// is appended so the payload fills the 8-byte register.
//
// Frame structure:
//
//	[B][AD(6)][0x80][0x00]
func BuildLoadAssociatedDataCmd(ad []byte) ([]byte, error) {
	if len(ad) != AssociatedDataSize {
		return nil, lengthError("associated data", AssociatedDataSize, len(ad))
	}
	return BuildCommand(CmdLoadAssociatedData, pad(ad, associatedDataPadding[:]))
}

// BuildLoadDataBlockCmd constructs a Load Data Block command frame.
// The block must be exactly DataBlockSize bytes; the padding 0x80 0x00 0x00
// is appended so the payload fills the 184-byte register.
//
// Frame structure:
//
//	[X][DATA(181)][0x80][0x00][0x00]
func BuildLoadDataBlockCmd(data []byte) ([]byte, error) {
	if len(data) != DataBlockSize {
		return nil, lengthError("data block", DataBlockSize, len(data))
	}
	return BuildCommand(CmdLoadDataBlock, pad(data, dataBlockPadding[:]))
}

// BuildTriggerCmd constructs the Trigger command frame that starts encryption.
//
// Frame structure:
//
//	[H]
func BuildTriggerCmd() []byte {
	return []byte{CmdTrigger}
}

// BuildFetchTagCmd constructs the Fetch Tag command frame.
//
// Frame structure:
//
//	[U]
func BuildFetchTagCmd() []byte {
	return []byte{CmdFetchTag}
}

// BuildFetchCiphertextCmd constructs the Fetch Ciphertext command frame.
//
// Frame structure:
//
//	[D]
func BuildFetchCiphertextCmd() []byte {
	return []byte{CmdFetchCiphertext}
}

// BuildSetAddressCmd constructs a Set Address register command.
//
// Frame structure (ASCII):
//
//	A<HEX2>
func BuildSetAddressCmd(addr uint8) []byte {
	return []byte(fmt.Sprintf("%c%02X", CmdSetAddress, addr))
}

// BuildWriteValueCmd constructs a Write Value register command.
//
// Frame structure (ASCII):
//
//	W<HEX2>
func BuildWriteValueCmd(value uint8) []byte {
	return []byte(fmt.Sprintf("%c%02X", CmdWriteValue, value))
}

// BuildDisplayCmd constructs the Display On LEDs register command.
func BuildDisplayCmd() []byte {
	return []byte{CmdDisplay}
}

// BuildReadValueCmd constructs the Read Value register command.
func BuildReadValueCmd() []byte {
	return []byte{CmdReadValue}
}

// UnpadAssociatedData strips the associated data padding from a wire payload.
func UnpadAssociatedData(payload []byte) ([]byte, error) {
	return unpad("associated data", payload, PaddedAssociatedDataSize, associatedDataPadding[:])
}

// UnpadDataBlock strips the data block padding from a wire payload.
func UnpadDataBlock(payload []byte) ([]byte, error) {
	return unpad("data block", payload, PaddedDataBlockSize, dataBlockPadding[:])
}

func pad(data, padding []byte) []byte {
	out := make([]byte, 0, len(data)+len(padding))
	out = append(out, data...)
	return append(out, padding...)
}

func unpad(field string, payload []byte, size int, padding []byte) ([]byte, error) {
	if len(payload) != size {
		return nil, lengthError("padded "+field, size, len(payload))
	}
	raw := size - len(padding)
	for i, b := range padding {
		if payload[raw+i] != b {
			return nil, &ValidationError{
				Field:  "padded " + field,
				Reason: fmt.Sprintf("padding byte %d is 0x%02X, expected 0x%02X", i, payload[raw+i], b),
			}
		}
	}
	out := make([]byte, raw)
	copy(out, payload[:raw])
	return out, nil
}
