package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func TestBuildLoadKeyCmd(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
		errMsg  string
	}{
		{name: "valid 16-byte key", key: seq(16, 0x00)},
		{name: "all 0xFF", key: bytes.Repeat([]byte{0xFF}, 16)},
		{name: "15 bytes", key: seq(15, 0), wantErr: true, errMsg: "key must be exactly 16 bytes, got 15"},
		{name: "17 bytes", key: seq(17, 0), wantErr: true, errMsg: "key must be exactly 16 bytes, got 17"},
		{name: "nil key", key: nil, wantErr: true, errMsg: "key must be exactly 16 bytes, got 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildLoadKeyCmd(tt.key)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, frame)
				return
			}

			require.NoError(t, err)
			require.Len(t, frame, 17)
			assert.Equal(t, byte(0x4C), frame[0])
			assert.Equal(t, tt.key, frame[1:])
		})
	}
}

func TestBuildLoadKeyCmdDoesNotAliasInput(t *testing.T) {
	key := seq(16, 0x10)
	frame, err := BuildLoadKeyCmd(key)
	require.NoError(t, err)

	key[0] = 0xEE
	assert.Equal(t, byte(0x10), frame[1])
}

func TestBuildLoadNonceCmd(t *testing.T) {
	nonce := seq(16, 0xA0)
	frame, err := BuildLoadNonceCmd(nonce)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{'O'}, nonce...), frame)

	_, err = BuildLoadNonceCmd(seq(12, 0))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "nonce must be exactly 16 bytes")
}

func TestBuildLoadAssociatedDataCmd(t *testing.T) {
	tests := []struct {
		name    string
		ad      []byte
		want    []byte
		wantErr bool
	}{
		{
			name: "6 bytes are padded to 8",
			ad:   []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
			want: []byte{'B', 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x80, 0x00},
		},
		{
			name: "ascii text",
			ad:   []byte("A to B"),
			want: append([]byte("BA to B"), 0x80, 0x00),
		},
		{name: "8 bytes rejected", ad: seq(8, 0), wantErr: true},
		{name: "5 bytes rejected", ad: seq(5, 0), wantErr: true},
		{name: "empty rejected", ad: []byte{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildLoadAssociatedDataCmd(tt.ad)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Contains(t, err.Error(), "associated data must be exactly 6 bytes")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame)
			assert.Len(t, frame[1:], PaddedAssociatedDataSize)
		})
	}
}

func TestBuildLoadDataBlockCmd(t *testing.T) {
	block := seq(DataBlockSize, 0x00)
	block[len(block)-1] = 0xFF

	frame, err := BuildLoadDataBlockCmd(block)
	require.NoError(t, err)

	assert.Equal(t, byte('X'), frame[0])
	payload := frame[1:]
	require.Len(t, payload, 184)
	assert.Equal(t, block, payload[:DataBlockSize])
	assert.Equal(t, []byte{0xFF, 0x80, 0x00, 0x00}, payload[len(payload)-4:])

	for _, n := range []int{0, 180, 182, 184} {
		_, err := BuildLoadDataBlockCmd(make([]byte, n))
		require.Error(t, err, "length %d", n)
		assert.True(t, IsValidationError(err))
	}
}

func TestBuildNoPayloadCmds(t *testing.T) {
	assert.Equal(t, []byte("H"), BuildTriggerCmd())
	assert.Equal(t, []byte("U"), BuildFetchTagCmd())
	assert.Equal(t, []byte("D"), BuildFetchCiphertextCmd())
	assert.Equal(t, []byte("G"), BuildDisplayCmd())
	assert.Equal(t, []byte("R"), BuildReadValueCmd())
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		tag     byte
		payload []byte
		want    []byte
		wantErr bool
	}{
		{name: "upper-case tag", tag: 'L', payload: []byte{1}, want: []byte{'L', 1}},
		{name: "lower-case tag is upper-cased", tag: 'x', payload: []byte{2, 3}, want: []byte{'X', 2, 3}},
		{name: "no payload", tag: 'h', want: []byte{'H'}},
		{name: "digit rejected", tag: '1', wantErr: true},
		{name: "binary rejected", tag: 0x80, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildCommand(tt.tag, tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame)
		})
	}
}

func TestBuildRegisterCmds(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  string
	}{
		{name: "set address 0x10", frame: BuildSetAddressCmd(0x10), want: "A10"},
		{name: "set address 0x00", frame: BuildSetAddressCmd(0x00), want: "A00"},
		{name: "set address 0xAB", frame: BuildSetAddressCmd(0xAB), want: "AAB"},
		{name: "write value 0x2A", frame: BuildWriteValueCmd(0x2A), want: "W2A"},
		{name: "write value 0xF5", frame: BuildWriteValueCmd(0xF5), want: "WF5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.frame))
		})
	}
}

func TestUnpad(t *testing.T) {
	ad := []byte{1, 2, 3, 4, 5, 6}
	frame, err := BuildLoadAssociatedDataCmd(ad)
	require.NoError(t, err)

	got, err := UnpadAssociatedData(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, ad, got)

	block := seq(DataBlockSize, 7)
	frame, err = BuildLoadDataBlockCmd(block)
	require.NoError(t, err)

	got, err = UnpadDataBlock(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, block, got)

	_, err = UnpadAssociatedData([]byte{1, 2, 3, 4, 5, 6, 0x00, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "padding byte 0")

	_, err = UnpadDataBlock(seq(10, 0))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestParseHex(t *testing.T) {
	got, err := ParseHex("key", "0x8A 55 11 4d")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x8A, 0x55, 0x11, 0x4D}, got)

	_, err = ParseHex("key", "zz")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "invalid key")
}
