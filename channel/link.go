package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrReplyTimeout is reported to the Observer for an exchange whose reply
// was not complete within Expect.Timeout. Exchange itself returns the
// partial reply without error.
var ErrReplyTimeout = errors.New("reply timed out")

// Expect describes when a reply is complete.
type Expect struct {
	// Done reports whether the accumulated reply is complete.
	// A nil Done waits for the full timeout.
	Done func(reply []byte) bool

	// Timeout bounds the wait for a complete reply.
	Timeout time.Duration
}

// Logger is an optional logging interface.
// Frames and replies are logged at debug level.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, keysAndValues ...interface{})
}

// Observer receives one call per exchange.
type Observer interface {
	ObserveExchange(command byte, elapsed time.Duration, replyLen int, err error)
}

// Link serializes command/response exchanges over a Channel.
//
// Link is safe for concurrent use: exchanges from several goroutines are
// executed one at a time. The device offers no request IDs, so interleaving
// commands from independent callers is still a caller error.
type Link struct {
	mu       sync.Mutex
	ch       Channel
	logger   Logger
	observer Observer
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithLinkLogger sets the logger used for frame traces.
func WithLinkLogger(logger Logger) LinkOption {
	return func(l *Link) {
		l.logger = logger
	}
}

// WithLinkObserver sets an observer notified after every exchange.
func WithLinkObserver(observer Observer) LinkOption {
	return func(l *Link) {
		l.observer = observer
	}
}

// NewLink wraps ch. The channel is neither opened nor closed by NewLink.
func NewLink(ch Channel, opts ...LinkOption) *Link {
	if ch == nil {
		panic("channel cannot be nil")
	}
	l := &Link{ch: ch}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open opens the underlying channel.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch.Open()
}

// Close closes the underlying channel.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch.Close()
}

// Exchange writes frame and accumulates the reply until exp.Done reports it
// complete or the timeout elapses. The context deadline, when earlier,
// bounds the wait as well.
//
// A timeout is not an error: the partial reply is returned and the caller's
// decoder decides whether it is acceptable. Transport failures are returned
// as *IOError or *ConnectionError.
func (l *Link) Exchange(ctx context.Context, frame []byte, exp Expect) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	reply, err := l.exchange(ctx, frame, exp)

	observed := err
	if errors.Is(err, ErrReplyTimeout) {
		err = nil
	}
	l.observe(frame[0], time.Since(start), len(reply), observed)
	return reply, err
}

// exchange returns ErrReplyTimeout when Expect.Timeout ends an incomplete
// reply, and the context error when the context deadline does.
func (l *Link) exchange(ctx context.Context, frame []byte, exp Expect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r, ok := l.ch.(InputResetter); ok {
		if err := r.ResetInput(); err != nil {
			return nil, &IOError{Op: "reset input", Err: err}
		}
	}

	l.logDebug("send frame", "command", string(frame[0]), "bytes", len(frame), "frame", fmt.Sprintf("% X", head(frame)))
	if err := l.ch.Write(frame); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(exp.Timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		ctxBound = true
	}

	var reply []byte
	for {
		if exp.Done != nil && exp.Done(reply) {
			l.logDebug("reply complete", "command", string(frame[0]), "bytes", len(reply), "reply", fmt.Sprintf("% X", head(reply)))
			return reply, nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			return reply, err
		}
		chunk, err := l.ch.ReadAvailable(deadline)
		if err != nil {
			return reply, err
		}
		reply = append(reply, chunk...)
	}

	if exp.Done == nil {
		return reply, nil
	}

	l.logWarn("reply timed out", "command", string(frame[0]), "bytes", len(reply), "timeout", exp.Timeout.String())
	if ctxBound {
		if err := ctx.Err(); err != nil {
			return reply, err
		}
		return reply, context.DeadlineExceeded
	}
	return reply, ErrReplyTimeout
}

func (l *Link) observe(command byte, elapsed time.Duration, replyLen int, err error) {
	if l.observer != nil {
		l.observer.ObserveExchange(command, elapsed, replyLen, err)
	}
}

func (l *Link) logDebug(msg string, keysAndValues ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, keysAndValues...)
	}
}

func (l *Link) logWarn(msg string, keysAndValues ...interface{}) {
	if l.logger != nil {
		l.logger.Warn(msg, keysAndValues...)
	}
}

// head limits trace output for long frames.
func head(b []byte) []byte {
	const max = 20
	if len(b) > max {
		return b[:max]
	}
	return b
}
