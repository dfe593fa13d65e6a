package accelerator

import (
	"time"

	"github.com/moffa90/go-asconlink/channel"
)

// Progress phases reported by EncryptBlocks.
const (
	PhaseEncrypting = "encrypting"
	PhaseComplete   = "complete"
)

// Progress contains information about a batch encryption.
// Passed to ProgressCallback after every block.
type Progress struct {
	// Phase is PhaseEncrypting while blocks remain, then PhaseComplete
	Phase string

	// CurrentBlock is the number of blocks encrypted so far
	CurrentBlock int

	// TotalBlocks is the number of blocks in the batch
	TotalBlocks int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the batch started
	ElapsedTime time.Duration
}

// ProgressCallback is called during batch encryption to report progress.
// Implementations should return quickly; the link is idle while it runs.
//
// Example:
//
//	acc := accelerator.New(ch,
//	    accelerator.WithProgressCallback(func(p accelerator.Progress) {
//	        fmt.Printf("[%s] %.1f%% - block %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentBlock, p.TotalBlocks)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the
// accelerator. It also receives the link's frame traces.
//
// Example with the standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Warn(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Observer receives measurements for every exchange, stage and session.
// metrics.Collector implements it.
type Observer interface {
	channel.Observer

	// ObserveStage is called once per attempted step that reached the link
	ObserveStage(stage State, elapsed time.Duration, err error)

	// ObserveSession is called when Run finishes
	ObserveSession(elapsed time.Duration, err error)
}
