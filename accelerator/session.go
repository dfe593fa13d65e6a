package accelerator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
)

// Session drives one encryption through the accelerator. Steps must be
// called in order; a failed step halts the session for good.
//
// A Session is discarded after Complete or after a failure. It holds no
// device state of its own: aborting mid-session leaves the accelerator at
// the last acknowledged stage.
type Session struct {
	id     string
	link   *channel.Link
	config *Config

	// stepMu serializes steps; mu guards the fields below and is not held
	// while waiting on the link
	stepMu sync.Mutex
	mu     sync.Mutex
	state  State
	halted bool
	tag    protocol.Tag
	ct     protocol.Ciphertext
}

func newSession(link *channel.Link, cfg *Config) *Session {
	return &Session{
		id:     uuid.NewString(),
		link:   link,
		config: cfg,
	}
}

// ID returns the identifier used to correlate log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Halted reports whether a step failed.
func (s *Session) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Tag returns the tag once it has been retrieved.
func (s *Session) Tag() (protocol.Tag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tag, s.state >= TagRetrieved
}

// Ciphertext returns the ciphertext once the session is complete.
func (s *Session) Ciphertext() (protocol.Ciphertext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ct, s.state == Complete
}

// LoadKey sends the 16-byte key. Requires Idle.
func (s *Session) LoadKey(ctx context.Context, key []byte) error {
	return s.step(ctx, KeyLoaded, func() ([]byte, error) {
		return protocol.BuildLoadKeyCmd(key)
	}, s.loadExpect(), s.acknowledge)
}

// LoadNonce sends the 16-byte nonce. Requires KeyLoaded.
func (s *Session) LoadNonce(ctx context.Context, nonce []byte) error {
	return s.step(ctx, NonceLoaded, func() ([]byte, error) {
		return protocol.BuildLoadNonceCmd(nonce)
	}, s.loadExpect(), s.acknowledge)
}

// LoadAssociatedData pads and sends the 6-byte associated data.
// Requires NonceLoaded.
func (s *Session) LoadAssociatedData(ctx context.Context, ad []byte) error {
	return s.step(ctx, AdLoaded, func() ([]byte, error) {
		return protocol.BuildLoadAssociatedDataCmd(ad)
	}, s.loadExpect(), s.acknowledge)
}

// LoadDataBlock pads and sends the 181-byte plaintext block.
// Requires AdLoaded.
func (s *Session) LoadDataBlock(ctx context.Context, data []byte) error {
	return s.step(ctx, DataLoaded, func() ([]byte, error) {
		return protocol.BuildLoadDataBlockCmd(data)
	}, s.loadExpect(), s.acknowledge)
}

// Trigger starts the encryption. Requires DataLoaded.
func (s *Session) Trigger(ctx context.Context) error {
	return s.step(ctx, Triggered, func() ([]byte, error) {
		return protocol.BuildTriggerCmd(), nil
	}, channel.Expect{Done: protocol.OKReceived, Timeout: s.config.TriggerTimeout}, s.acknowledge)
}

// FetchTag reads the 16-byte tag. Requires Triggered.
func (s *Session) FetchTag(ctx context.Context) (protocol.Tag, error) {
	var tag protocol.Tag
	err := s.step(ctx, TagRetrieved, func() ([]byte, error) {
		return protocol.BuildFetchTagCmd(), nil
	}, channel.Expect{Done: protocol.PayloadReceived(protocol.TagSize), Timeout: s.config.FetchTimeout},
		func(reply []byte) error {
			var confirmed bool
			var err error
			tag, confirmed, err = protocol.ParseTagResponse(reply)
			if err != nil {
				return err
			}
			if !confirmed {
				s.logWarn("tag reply without OK trailer", "session_id", s.id, "bytes", len(reply))
			}
			s.tag = tag
			return nil
		})
	return tag, err
}

// FetchCiphertext reads the 184-byte ciphertext. Requires TagRetrieved.
func (s *Session) FetchCiphertext(ctx context.Context) (protocol.Ciphertext, error) {
	var ct protocol.Ciphertext
	err := s.step(ctx, Complete, func() ([]byte, error) {
		return protocol.BuildFetchCiphertextCmd(), nil
	}, channel.Expect{Done: protocol.PayloadReceived(protocol.CiphertextSize), Timeout: s.config.FetchTimeout},
		func(reply []byte) error {
			var confirmed bool
			var err error
			ct, confirmed, err = protocol.ParseCiphertextResponse(reply)
			if err != nil {
				return err
			}
			if !confirmed {
				s.logWarn("ciphertext reply without OK trailer", "session_id", s.id, "bytes", len(reply))
			}
			s.ct = ct
			return nil
		})
	return ct, err
}

// Run validates all inputs, then drives the session from Idle to Complete.
// A device-side failure is returned as *StageError; invalid inputs are
// returned as *protocol.ValidationError before anything is sent.
//
// Run needs a fresh session. On a session that already left Idle or halted
// it sends nothing and returns a *StageError for the key load wrapping a
// *StateError.
func (s *Session) Run(ctx context.Context, key, nonce, ad, data []byte) (protocol.Tag, protocol.Ciphertext, error) {
	if err := s.requireFresh(); err != nil {
		return protocol.Tag{}, protocol.Ciphertext{}, err
	}
	if err := validate(key, nonce, ad, data); err != nil {
		return protocol.Tag{}, protocol.Ciphertext{}, err
	}

	start := time.Now()
	s.logDebug("session started", "session_id", s.id)

	tag, ct, err := s.run(ctx, key, nonce, ad, data)
	if s.config.Observer != nil {
		s.config.Observer.ObserveSession(time.Since(start), err)
	}
	if err != nil {
		return protocol.Tag{}, protocol.Ciphertext{}, err
	}

	s.logInfo("session complete", "session_id", s.id, "elapsed", time.Since(start).String())
	return tag, ct, nil
}

func (s *Session) run(ctx context.Context, key, nonce, ad, data []byte) (protocol.Tag, protocol.Ciphertext, error) {
	var none protocol.Tag
	var noCT protocol.Ciphertext

	if err := s.LoadKey(ctx, key); err != nil {
		return none, noCT, err
	}
	if err := s.LoadNonce(ctx, nonce); err != nil {
		return none, noCT, err
	}
	if err := s.LoadAssociatedData(ctx, ad); err != nil {
		return none, noCT, err
	}
	if err := s.LoadDataBlock(ctx, data); err != nil {
		return none, noCT, err
	}
	if err := s.Trigger(ctx); err != nil {
		return none, noCT, err
	}
	tag, err := s.FetchTag(ctx)
	if err != nil {
		return none, noCT, err
	}
	ct, err := s.FetchCiphertext(ctx)
	if err != nil {
		return none, noCT, err
	}
	return tag, ct, nil
}

func (s *Session) requireFresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted || s.state != Idle {
		return &StageError{
			Stage: KeyLoaded,
			Err:   &StateError{Op: "run", State: s.state, Required: Idle, Halted: s.halted},
		}
	}
	return nil
}

// validate checks every input of Run by building its frame.
func validate(key, nonce, ad, data []byte) error {
	if _, err := protocol.BuildLoadKeyCmd(key); err != nil {
		return err
	}
	if _, err := protocol.BuildLoadNonceCmd(nonce); err != nil {
		return err
	}
	if _, err := protocol.BuildLoadAssociatedDataCmd(ad); err != nil {
		return err
	}
	_, err := protocol.BuildLoadDataBlockCmd(data)
	return err
}

// step performs one transition: state check, encode, exchange, decode.
// Encoding errors leave the session untouched; anything after the frame
// reaches the link halts it. State and Halted stay readable during the
// exchange.
func (s *Session) step(ctx context.Context, target State, build func() ([]byte, error), exp channel.Expect, decode func([]byte) error) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if err := s.check(target); err != nil {
		return err
	}

	frame, err := build()
	if err != nil {
		return err
	}

	start := time.Now()
	reply, err := s.link.Exchange(ctx, frame, exp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		err = decode(reply)
	}
	if s.config.Observer != nil {
		s.config.Observer.ObserveStage(target, time.Since(start), err)
	}

	if err != nil {
		s.halted = true
		s.logError("stage failed", "session_id", s.id, "stage", target.String(), "error", err)
		return &StageError{Stage: target, Err: err}
	}

	s.state = target
	s.logDebug("stage complete", "session_id", s.id, "stage", target.String(), "bytes", len(reply))
	return nil
}

// check reports whether the session may move to target.
func (s *Session) check(target State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return &StateError{Op: target.Action(), State: s.state, Halted: true}
	}
	if s.state != target-1 {
		return &StateError{Op: target.Action(), State: s.state, Required: target - 1}
	}
	return nil
}

func (s *Session) acknowledge(reply []byte) error {
	return protocol.ValidateOK(reply, protocol.ReplyPermissive)
}

func (s *Session) loadExpect() channel.Expect {
	return channel.Expect{Done: protocol.OKReceived, Timeout: s.config.LoadTimeout}
}

func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

func (s *Session) logWarn(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, keysAndValues...)
	}
}

func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
