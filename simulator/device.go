// Package simulator provides an in-memory accelerator that speaks the full
// wire protocol. It implements channel.Channel, so it can stand in for the
// serial link in tests, examples and dry runs:
//
//	dev := simulator.New(simulator.WithCipher(simulator.FixedCipher{Tag: tag, Ciphertext: ct}))
//	acc := accelerator.New(dev)
//
// The device validates frames the way the board does, keeps the loaded
// parameters and a 256-entry register file, and can be told to misbehave
// (reject a command, stay silent, drop the "OK" trailer) to exercise error
// paths.
package simulator

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
)

// Cipher is the encryption capability of the simulated core. The associated
// data and plaintext are passed padded, exactly as loaded on the wire.
type Cipher interface {
	Encrypt(key, nonce, ad, plaintext []byte) (protocol.Ciphertext, protocol.Tag)
}

// FixedCipher always returns the same outputs.
type FixedCipher struct {
	Tag        protocol.Tag
	Ciphertext protocol.Ciphertext
}

// Encrypt returns the fixed outputs.
func (c FixedCipher) Encrypt(_, _, _, _ []byte) (protocol.Ciphertext, protocol.Tag) {
	return c.Ciphertext, c.Tag
}

// PlaceholderCipher derives outputs from every input byte so tests can tell
// sessions apart. It is not a cipher.
type PlaceholderCipher struct{}

// Encrypt mixes the inputs into deterministic outputs.
func (PlaceholderCipher) Encrypt(key, nonce, ad, plaintext []byte) (protocol.Ciphertext, protocol.Tag) {
	var ct protocol.Ciphertext
	var tag protocol.Tag
	for i := range ct {
		ct[i] = plaintext[i] ^ key[i%len(key)] ^ nonce[(i+7)%len(nonce)]
		tag[i%len(tag)] ^= ct[i] + byte(i)
	}
	for i, b := range ad {
		tag[i%len(tag)] ^= b
	}
	return ct, tag
}

// Fault selects how the device misbehaves for a command.
type Fault int

const (
	// FaultNone handles the command normally
	FaultNone Fault = iota

	// FaultReject answers "ERR" without touching device state
	FaultReject

	// FaultSilent swallows the command and sends nothing
	FaultSilent

	// FaultNoTrailer answers normally but omits the "OK" trailer
	FaultNoTrailer
)

var (
	okReply  = []byte(protocol.Sentinel)
	okLine   = []byte(protocol.Sentinel + "\r\n")
	errReply = []byte("ERR\r\n")
)

// Device is a simulated accelerator board.
type Device struct {
	mu   sync.Mutex
	open bool

	name      string
	chunkSize int
	prefix    []byte
	cipher    Cipher
	openErr   error
	faults    map[byte]Fault
	graces    map[byte]int

	in  []byte
	out []byte

	key, nonce, ad, data []byte
	tag                  protocol.Tag
	ciphertext           protocol.Ciphertext
	encrypted            bool

	address   uint8
	registers [256]uint8
	leds      uint8

	frames [][]byte
}

// Option configures a Device.
type Option func(*Device)

// WithName sets the name reported in connection errors.
func WithName(name string) Option {
	return func(d *Device) {
		d.name = name
	}
}

// WithCipher sets the encryption capability. Default is PlaceholderCipher.
func WithCipher(c Cipher) Option {
	return func(d *Device) {
		d.cipher = c
	}
}

// WithChunkSize limits how many reply bytes each read returns, to mimic a
// slow UART. Zero returns everything pending.
func WithChunkSize(n int) Option {
	return func(d *Device) {
		if n >= 0 {
			d.chunkSize = n
		}
	}
}

// WithStatusPrefix prepends bytes to every accelerator acknowledgement,
// like the board's status byte.
func WithStatusPrefix(prefix ...byte) Option {
	return func(d *Device) {
		d.prefix = append([]byte{}, prefix...)
	}
}

// WithOpenError makes Open fail with err.
func WithOpenError(err error) Option {
	return func(d *Device) {
		d.openErr = err
	}
}

// WithFault injects a fault for the given command tag.
func WithFault(tag byte, f Fault) Option {
	return func(d *Device) {
		d.faults[tag] = f
	}
}

// WithFaultAfter injects a fault for the given command tag that starts
// after the first n frames with that tag were handled normally.
func WithFaultAfter(tag byte, f Fault, n int) Option {
	return func(d *Device) {
		d.faults[tag] = f
		d.graces[tag] = n
	}
}

// New creates a simulated device.
func New(opts ...Option) *Device {
	d := &Device{
		name:   "simulator",
		cipher: PlaceholderCipher{},
		faults: make(map[byte]Fault),
		graces: make(map[byte]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open connects the simulated link.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return &channel.ConnectionError{Port: d.name, Err: d.openErr}
	}
	d.open = true
	return nil
}

// Close disconnects the simulated link. Device state is kept, like a board
// that stays powered while the cable is unplugged.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.in = nil
	d.out = nil
	return nil
}

// Write feeds host bytes to the command parser.
func (d *Device) Write(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return &channel.ConnectionError{Port: d.name}
	}
	d.in = append(d.in, p...)
	d.process()
	return nil
}

// ReadAvailable returns pending reply bytes. When nothing is pending it
// waits until deadline, since the simulated board never answers late.
func (d *Device) ReadAvailable(deadline time.Time) ([]byte, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, &channel.ConnectionError{Port: d.name}
	}
	if len(d.out) == 0 {
		d.mu.Unlock()
		if wait := time.Until(deadline); wait > 0 {
			time.Sleep(wait)
		}
		return nil, nil
	}
	defer d.mu.Unlock()

	n := len(d.out)
	if d.chunkSize > 0 && n > d.chunkSize {
		n = d.chunkSize
	}
	chunk := append([]byte{}, d.out[:n]...)
	d.out = d.out[n:]
	return chunk, nil
}

// ResetInput drops unread reply bytes.
func (d *Device) ResetInput() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = nil
	return nil
}

// SetFault changes the fault for a command tag on a running device.
func (d *Device) SetFault(tag byte, f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[tag] = f
}

// Frames returns every complete frame received, terminators stripped.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.frames))
	for i, f := range d.frames {
		out[i] = append([]byte{}, f...)
	}
	return out
}

// Commands returns the tag of every frame received, in order.
func (d *Device) Commands() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	tags := make([]byte, len(d.frames))
	for i, f := range d.frames {
		tags[i] = f[0]
	}
	return string(tags)
}

// Register returns the value stored at addr.
func (d *Device) Register(addr uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers[addr]
}

// LEDs returns the value last shown on the LEDs.
func (d *Device) LEDs() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leds
}

// Loaded returns copies of the parameters currently held by the core, padded
// as received.
func (d *Device) Loaded() (key, nonce, ad, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return clone(d.key), clone(d.nonce), clone(d.ad), clone(d.data)
}

var errUnknownCommand = errors.New("unknown command")

// payloadSize returns the payload length that follows a tag.
func payloadSize(tag byte) (int, error) {
	switch tag {
	case protocol.CmdLoadKey:
		return protocol.KeySize, nil
	case protocol.CmdLoadNonce:
		return protocol.NonceSize, nil
	case protocol.CmdLoadAssociatedData:
		return protocol.PaddedAssociatedDataSize, nil
	case protocol.CmdLoadDataBlock:
		return protocol.PaddedDataBlockSize, nil
	case protocol.CmdSetAddress, protocol.CmdWriteValue:
		return 2, nil
	case protocol.CmdTrigger, protocol.CmdFetchTag, protocol.CmdFetchCiphertext,
		protocol.CmdDisplay, protocol.CmdReadValue:
		return 0, nil
	default:
		return 0, errUnknownCommand
	}
}

// process consumes every complete frame in the input buffer.
func (d *Device) process() {
	for len(d.in) > 0 {
		tag := d.in[0]
		if tag == '\r' || tag == '\n' || tag == ' ' {
			d.in = d.in[1:]
			continue
		}

		n, err := payloadSize(tag)
		if err != nil {
			d.in = d.in[1:]
			d.out = append(d.out, errReply...)
			continue
		}
		if len(d.in) < 1+n {
			return
		}

		frame := clone(d.in[:1+n])
		d.in = d.in[1+n:]
		d.frames = append(d.frames, frame)
		d.handle(frame)
	}
}

func (d *Device) handle(frame []byte) {
	tag, payload := frame[0], frame[1:]

	fault := d.faults[tag]
	if d.graces[tag] > 0 {
		d.graces[tag]--
		fault = FaultNone
	}

	switch fault {
	case FaultReject:
		d.out = append(d.out, errReply...)
		return
	case FaultSilent:
		return
	}
	trailer := fault != FaultNoTrailer

	switch tag {
	case protocol.CmdLoadKey:
		d.key = clone(payload)
		d.ack(trailer)
	case protocol.CmdLoadNonce:
		d.nonce = clone(payload)
		d.ack(trailer)
	case protocol.CmdLoadAssociatedData:
		if _, err := protocol.UnpadAssociatedData(payload); err != nil {
			d.out = append(d.out, errReply...)
			return
		}
		d.ad = clone(payload)
		d.ack(trailer)
	case protocol.CmdLoadDataBlock:
		if _, err := protocol.UnpadDataBlock(payload); err != nil {
			d.out = append(d.out, errReply...)
			return
		}
		d.data = clone(payload)
		d.ack(trailer)
	case protocol.CmdTrigger:
		if d.key == nil || d.nonce == nil || d.ad == nil || d.data == nil {
			d.out = append(d.out, errReply...)
			return
		}
		d.ciphertext, d.tag = d.cipher.Encrypt(d.key, d.nonce, d.ad, d.data)
		d.encrypted = true
		d.ack(trailer)
	case protocol.CmdFetchTag:
		if !d.encrypted {
			d.out = append(d.out, errReply...)
			return
		}
		d.out = append(d.out, d.tag[:]...)
		if trailer {
			d.out = append(d.out, okReply...)
		}
	case protocol.CmdFetchCiphertext:
		if !d.encrypted {
			d.out = append(d.out, errReply...)
			return
		}
		d.out = append(d.out, d.ciphertext[:]...)
		if trailer {
			d.out = append(d.out, okReply...)
		}
	case protocol.CmdSetAddress, protocol.CmdWriteValue:
		v, err := hex.DecodeString(string(payload))
		if err != nil {
			d.out = append(d.out, errReply...)
			return
		}
		if tag == protocol.CmdSetAddress {
			d.address = v[0]
		} else {
			d.registers[d.address] = v[0]
		}
		d.out = append(d.out, okLine...)
	case protocol.CmdDisplay:
		d.leds = d.registers[d.address]
		d.out = append(d.out, okLine...)
	case protocol.CmdReadValue:
		d.out = append(d.out, d.registers[d.address])
		if trailer {
			d.out = append(d.out, okLine...)
		}
	}
}

// ack acknowledges an accelerator command.
func (d *Device) ack(trailer bool) {
	d.out = append(d.out, d.prefix...)
	if trailer {
		d.out = append(d.out, okReply...)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
