package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialConfig holds the UART settings of the accelerator board.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0 or COM3
	Port string `yaml:"port"`

	// BaudRate defaults to 115200
	BaudRate int `yaml:"baud_rate"`

	// DataBits defaults to 8
	DataBits int `yaml:"data_bits"`

	// Parity is "none", "odd" or "even" (default "none")
	Parity string `yaml:"parity"`

	// StopBits is 1 or 2 (default 1)
	StopBits int `yaml:"stop_bits"`
}

// DefaultSerialConfig returns the settings used by the reference board.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   "none",
		StopBits: 1,
	}
}

// Mode converts the configuration to a serial.Mode.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 115200
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch strings.ToLower(c.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unknown parity %q", c.Parity)
	}

	switch c.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", c.StopBits)
	}

	return mode, nil
}

// port is the subset of serial.Port used by Serial.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// openPort is replaced in tests.
var openPort = func(name string, mode *serial.Mode) (port, error) {
	return serial.Open(name, mode)
}

// minReadTimeout keeps a read from degenerating into a non-blocking poll.
const minReadTimeout = time.Millisecond

// readBufferSize is large enough for the longest reply (ciphertext + "OK").
const readBufferSize = 256

// Serial is a Channel over a UART.
type Serial struct {
	cfg  SerialConfig
	port port
	buf  []byte
}

// NewSerial creates a Serial channel. Call Open before use.
func NewSerial(cfg SerialConfig) *Serial {
	return &Serial{
		cfg: cfg,
		buf: make([]byte, readBufferSize),
	}
}

// Open opens the serial port.
func (s *Serial) Open() error {
	if s.port != nil {
		return nil
	}
	if s.cfg.Port == "" {
		return &ConnectionError{Port: "serial", Err: errors.New("no port configured")}
	}

	mode, err := s.cfg.Mode()
	if err != nil {
		return &ConnectionError{Port: s.cfg.Port, Err: err}
	}

	p, err := openPort(s.cfg.Port, mode)
	if err != nil {
		return &ConnectionError{Port: s.cfg.Port, Err: err}
	}
	s.port = p
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Write sends all of p.
func (s *Serial) Write(p []byte) error {
	if s.port == nil {
		return &ConnectionError{Port: s.cfg.Port}
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return &IOError{Op: "write", Err: err}
		}
		if n == 0 {
			return &IOError{Op: "write", Err: errors.New("port accepted no bytes")}
		}
		p = p[n:]
	}
	return nil
}

// ReadAvailable waits until deadline for input and returns what one read
// produced. An empty result means nothing arrived in time.
func (s *Serial) ReadAvailable(deadline time.Time) ([]byte, error) {
	if s.port == nil {
		return nil, &ConnectionError{Port: s.cfg.Port}
	}

	timeout := time.Until(deadline)
	if timeout < minReadTimeout {
		timeout = minReadTimeout
	}
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return nil, &IOError{Op: "read", Err: err}
	}

	n, err := s.port.Read(s.buf)
	if err != nil {
		return nil, &IOError{Op: "read", Err: err}
	}

	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// ResetInput discards bytes received but not yet read.
func (s *Serial) ResetInput() error {
	if s.port == nil {
		return &ConnectionError{Port: s.cfg.Port}
	}
	return s.port.ResetInputBuffer()
}

// String returns the port name.
func (s *Serial) String() string {
	return s.cfg.Port
}
