package accelerator

import (
	"time"

	"github.com/moffa90/go-asconlink/protocol"
)

// Config holds the accelerator configuration.
type Config struct {
	// ProgressCallback is called during batch encryption (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Observer receives exchange, stage and session measurements (optional)
	Observer Observer

	// LoadTimeout bounds the wait for a load acknowledgement
	LoadTimeout time.Duration

	// TriggerTimeout bounds the wait for the trigger acknowledgement
	TriggerTimeout time.Duration

	// FetchTimeout bounds the wait for the tag or ciphertext
	FetchTimeout time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		LoadTimeout:    protocol.DefaultLoadTimeout,
		TriggerTimeout: protocol.DefaultTriggerTimeout,
		FetchTimeout:   protocol.DefaultFetchTimeout,
	}
}

// Option is a functional option for configuring the Accelerator.
type Option func(*Config)

// WithProgressCallback sets a callback function to track batch progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for accelerator and link operations.
//
// Example:
//
//	log, _ := logging.New("debug")
//	acc := accelerator.New(ch, accelerator.WithLogger(log))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithObserver sets the measurement sink.
//
// Example:
//
//	acc := accelerator.New(ch, accelerator.WithObserver(metrics.NewCollector(reg)))
func WithObserver(observer Observer) Option {
	return func(c *Config) {
		c.Observer = observer
	}
}

// WithTimeout sets the load, trigger and fetch timeouts at once.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.LoadTimeout = timeout
			c.TriggerTimeout = timeout
			c.FetchTimeout = timeout
		}
	}
}

// WithLoadTimeout sets the timeout for key, nonce, associated data and data
// block loads.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.LoadTimeout = timeout
		}
	}
}

// WithTriggerTimeout sets the timeout for the trigger acknowledgement.
func WithTriggerTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.TriggerTimeout = timeout
		}
	}
}

// WithFetchTimeout sets the timeout for tag and ciphertext reads.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.FetchTimeout = timeout
		}
	}
}
