// Package register implements the register commands of the accelerator
// board, used for bring-up and LED diagnostics.
//
// Register commands are line-oriented ASCII. Each one must be answered with
// exactly "OK" (surrounding whitespace allowed), except Read Value which
// returns the raw value byte followed by "OK".
package register

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
)

// Logger is an optional logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
}

// Client issues register commands over a link shared with the accelerator.
type Client struct {
	link       *channel.Link
	terminator string
	timeout    time.Duration
	logger     Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTerminator sets the bytes appended to every register frame.
// Default is a line feed.
func WithTerminator(terminator string) Option {
	return func(c *Client) {
		c.terminator = terminator
	}
}

// WithTimeout bounds the wait for each reply.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client on link.
func New(link *channel.Link, opts ...Option) *Client {
	if link == nil {
		panic("link cannot be nil")
	}
	c := &Client{
		link:       link,
		terminator: protocol.LineTerminator,
		timeout:    protocol.DefaultRegisterTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAddress selects the register used by the following commands.
func (c *Client) SetAddress(ctx context.Context, addr uint8) error {
	if err := c.command(ctx, protocol.BuildSetAddressCmd(addr)); err != nil {
		return fmt.Errorf("set address 0x%02X: %w", addr, err)
	}
	return nil
}

// WriteValue stores value at the selected address.
func (c *Client) WriteValue(ctx context.Context, value uint8) error {
	if err := c.command(ctx, protocol.BuildWriteValueCmd(value)); err != nil {
		return fmt.Errorf("write value 0x%02X: %w", value, err)
	}
	return nil
}

// DisplayOnLEDs shows the selected register on the board LEDs.
func (c *Client) DisplayOnLEDs(ctx context.Context) error {
	if err := c.command(ctx, protocol.BuildDisplayCmd()); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

// ReadValue returns the value at the selected address.
func (c *Client) ReadValue(ctx context.Context) (uint8, error) {
	reply, err := c.link.Exchange(ctx, c.frame(protocol.BuildReadValueCmd()), channel.Expect{
		Done:    protocol.ReadValueReceived,
		Timeout: c.timeout,
	})
	if err != nil {
		return 0, fmt.Errorf("read value: %w", err)
	}

	v, err := protocol.ParseReadValueResponse(reply)
	if err != nil {
		return 0, err
	}
	c.logDebug("register read", "value", fmt.Sprintf("0x%02X", v))
	return v, nil
}

func (c *Client) command(ctx context.Context, cmd []byte) error {
	reply, err := c.link.Exchange(ctx, c.frame(cmd), channel.Expect{
		Done:    protocol.LineReceived,
		Timeout: c.timeout,
	})
	if err != nil {
		return err
	}
	return protocol.ValidateOK(reply, protocol.ReplyStrict)
}

func (c *Client) frame(cmd []byte) []byte {
	return append(cmd, c.terminator...)
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, keysAndValues...)
	}
}
