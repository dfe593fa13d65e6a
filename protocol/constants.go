package protocol

import "time"

// Accelerator command tags.
const (
	// CmdLoadKey loads the 16-byte key
	CmdLoadKey = 'L'

	// CmdLoadNonce loads the 16-byte nonce
	CmdLoadNonce = 'O'

	// CmdLoadAssociatedData loads the padded associated data
	CmdLoadAssociatedData = 'B'

	// CmdLoadDataBlock loads the padded plaintext block
	CmdLoadDataBlock = 'X'

	// CmdTrigger starts the encryption ("go")
	CmdTrigger = 'H'

	// CmdFetchTag requests the authentication tag
	CmdFetchTag = 'U'

	// CmdFetchCiphertext requests the ciphertext
	CmdFetchCiphertext = 'D'
)

// Register command tags.
const (
	// CmdSetAddress selects the register address (followed by two hex digits)
	CmdSetAddress = 'A'

	// CmdWriteValue writes the selected register (followed by two hex digits)
	CmdWriteValue = 'W'

	// CmdDisplay shows the selected register on the board LEDs
	CmdDisplay = 'G'

	// CmdReadValue reads the selected register
	CmdReadValue = 'R'
)

// Sentinel is the success marker sent by the device.
const Sentinel = "OK"

// Parameter sizes, before padding.
const (
	// KeySize is the ASCON-128 key size
	KeySize = 16

	// NonceSize is the ASCON-128 nonce size
	NonceSize = 16

	// AssociatedDataSize is the raw associated data size accepted by the accelerator
	AssociatedDataSize = 6

	// DataBlockSize is the raw plaintext block size accepted by the accelerator
	DataBlockSize = 181
)

// Wire sizes, after padding.
const (
	// PaddedAssociatedDataSize is the associated data register width (6 + 2)
	PaddedAssociatedDataSize = AssociatedDataSize + len(associatedDataPadding)

	// PaddedDataBlockSize is the data block register width (181 + 3)
	PaddedDataBlockSize = DataBlockSize + len(dataBlockPadding)

	// TagSize is the authentication tag size returned by the U command
	TagSize = 16

	// CiphertextSize is the ciphertext size returned by the D command
	CiphertextSize = PaddedDataBlockSize
)

// Padding appended to variable data so it fills the accelerator registers.
var (
	associatedDataPadding = [...]byte{0x80, 0x00}
	dataBlockPadding      = [...]byte{0x80, 0x00, 0x00}
)

// Default reply timeouts. The device answers as soon as it can; these bound
// the wait when it does not.
const (
	// DefaultRegisterTimeout bounds short register commands
	DefaultRegisterTimeout = 500 * time.Millisecond

	// DefaultLoadTimeout bounds parameter loads
	DefaultLoadTimeout = time.Second

	// DefaultTriggerTimeout bounds the trigger command
	DefaultTriggerTimeout = time.Second

	// DefaultFetchTimeout bounds tag and ciphertext retrieval
	DefaultFetchTimeout = 2 * time.Second
)

// LineTerminator ends register commands on the wire.
const LineTerminator = "\n"
