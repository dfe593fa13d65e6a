package accelerator

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
)

// EncryptedSize is the length of the storage form of one encrypted block.
const EncryptedSize = protocol.CiphertextSize + protocol.TagSize

// Accelerator owns the link to an ASCON accelerator board and creates
// encryption sessions on it.
//
// Accelerator is safe for concurrent use: exchanges are serialized by the
// link. Sessions running concurrently on one board would overwrite each
// other's parameters, so run them one at a time.
type Accelerator struct {
	link   *channel.Link
	config Config
}

// Request is the input of a single encryption.
type Request struct {
	Key            []byte
	Nonce          []byte
	AssociatedData []byte
	Data           []byte
}

// Params are the parameters shared by every block of a batch.
type Params struct {
	Key            []byte
	Nonce          []byte
	AssociatedData []byte
}

// Result is the output of one encryption.
type Result struct {
	SessionID  string
	Tag        protocol.Tag
	Ciphertext protocol.Ciphertext
}

// Encrypted returns Ciphertext followed by Tag.
func (r *Result) Encrypted() []byte {
	out := make([]byte, 0, EncryptedSize)
	out = append(out, r.Ciphertext[:]...)
	return append(out, r.Tag[:]...)
}

// New creates an Accelerator on the given channel.
//
// Example:
//
//	ch := channel.NewSerial(channel.SerialConfig{Port: "/dev/ttyUSB0"})
//	acc := accelerator.New(ch,
//	    accelerator.WithLogger(logger),
//	    accelerator.WithTimeout(2*time.Second),
//	)
func New(ch channel.Channel, opts ...Option) *Accelerator {
	if ch == nil {
		panic("channel cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var linkOpts []channel.LinkOption
	if cfg.Logger != nil {
		linkOpts = append(linkOpts, channel.WithLinkLogger(cfg.Logger))
	}
	if cfg.Observer != nil {
		linkOpts = append(linkOpts, channel.WithLinkObserver(cfg.Observer))
	}

	return &Accelerator{
		link:   channel.NewLink(ch, linkOpts...),
		config: cfg,
	}
}

// Open opens the channel.
func (a *Accelerator) Open() error {
	return a.link.Open()
}

// Close closes the channel.
func (a *Accelerator) Close() error {
	return a.link.Close()
}

// Link returns the link, for clients that share the board such as the
// register client.
func (a *Accelerator) Link() *channel.Link {
	return a.link
}

// NewSession starts a session in state Idle.
func (a *Accelerator) NewSession() *Session {
	return newSession(a.link, &a.config)
}

// Encrypt runs one session.
func (a *Accelerator) Encrypt(ctx context.Context, req Request) (*Result, error) {
	s := a.NewSession()
	tag, ct, err := s.Run(ctx, req.Key, req.Nonce, req.AssociatedData, req.Data)
	if err != nil {
		return nil, err
	}
	return &Result{SessionID: s.ID(), Tag: tag, Ciphertext: ct}, nil
}

// EncryptBlocks encrypts each block with its own session. It stops at the
// first failure and returns the results completed before it.
//
// Example:
//
//	blocks, _ := blockfile.Parse("plain.csv", protocol.DataBlockSize)
//	results, err := acc.EncryptBlocks(ctx, params, blocks)
func (a *Accelerator) EncryptBlocks(ctx context.Context, p Params, blocks [][]byte) ([]*Result, error) {
	if err := validate(p.Key, p.Nonce, p.AssociatedData, make([]byte, protocol.DataBlockSize)); err != nil {
		return nil, err
	}

	startTime := time.Now()
	results := make([]*Result, 0, len(blocks))

	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("cancelled: %w", err)
		}

		res, err := a.Encrypt(ctx, Request{
			Key:            p.Key,
			Nonce:          p.Nonce,
			AssociatedData: p.AssociatedData,
			Data:           block,
		})
		if err != nil {
			return results, fmt.Errorf("block %d: %w", i, err)
		}
		results = append(results, res)

		phase := PhaseEncrypting
		if i == len(blocks)-1 {
			phase = PhaseComplete
		}
		a.reportProgress(Progress{
			Phase:        phase,
			CurrentBlock: i + 1,
			TotalBlocks:  len(blocks),
			Percentage:   float64(i+1) / float64(len(blocks)) * 100,
			ElapsedTime:  time.Since(startTime),
		})
	}

	a.logInfo("batch complete",
		"blocks", len(blocks),
		"elapsed", time.Since(startTime).String(),
	)
	return results, nil
}

func (a *Accelerator) reportProgress(progress Progress) {
	if a.config.ProgressCallback != nil {
		a.config.ProgressCallback(progress)
	}
}

func (a *Accelerator) logInfo(msg string, keysAndValues ...interface{}) {
	if a.config.Logger != nil {
		a.config.Logger.Info(msg, keysAndValues...)
	}
}
