// Package channel provides the byte transport used to reach the accelerator.
//
// A Channel knows nothing about framing: it opens a link, writes bytes and
// returns whatever has arrived by a deadline. Link adds the request/response
// discipline on top of a Channel: one mutex, one command in flight, and a
// read loop that stops as soon as the reply is complete.
//
//	ch := channel.NewSerial(channel.SerialConfig{Port: "/dev/ttyUSB0"})
//	if err := ch.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	link := channel.NewLink(ch)
//	reply, err := link.Exchange(ctx, frame, channel.Expect{
//	    Done:    protocol.OKReceived,
//	    Timeout: time.Second,
//	})
package channel

import (
	"errors"
	"fmt"
	"time"
)

// Channel is a byte transport over a physical link.
// Implementations are not required to be safe for concurrent use; Link
// serializes access.
type Channel interface {
	// Open connects the link. Returns *ConnectionError on failure.
	Open() error

	// Close releases the link. Closing a closed channel is a no-op.
	Close() error

	// Write sends all of p. Returns *IOError on transport failure and
	// *ConnectionError if the channel is not open.
	Write(p []byte) error

	// ReadAvailable returns whatever bytes arrive before deadline,
	// possibly none.
	ReadAvailable(deadline time.Time) ([]byte, error)
}

// InputResetter is implemented by channels that can discard unread input.
// Link calls it before each command so a late byte from a previous reply
// cannot be mistaken for the start of the next one.
type InputResetter interface {
	ResetInput() error
}

// ConnectionError indicates the link is unavailable: it could not be opened
// or is not open.
type ConnectionError struct {
	// Port is the link name (device path or simulator name)
	Port string

	// Err is the underlying cause, if any
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection %s: not open", e.Port)
	}
	return fmt.Sprintf("connection %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError indicates a transport-level read or write failure.
type IOError struct {
	// Op is "read" or "write"
	Op string

	// Err is the underlying cause
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsConnectionError returns true if err is or wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var cerr *ConnectionError
	return errors.As(err, &cerr)
}

// IsIOError returns true if err is or wraps an IOError.
func IsIOError(err error) bool {
	var ioerr *IOError
	return errors.As(err, &ioerr)
}
