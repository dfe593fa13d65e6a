package accelerator

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/protocol"
	"github.com/moffa90/go-asconlink/simulator"
)

// testTimeout keeps failing exchanges short.
const testTimeout = 50 * time.Millisecond

var (
	testKey   = bytes.Repeat([]byte{0x11}, protocol.KeySize)
	testNonce = bytes.Repeat([]byte{0x22}, protocol.NonceSize)
	testAD    = []byte{0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6}
	testData  = bytes.Repeat([]byte{0x33}, protocol.DataBlockSize)
)

func fixedOutputs() (protocol.Tag, protocol.Ciphertext) {
	var tag protocol.Tag
	var ct protocol.Ciphertext
	for i := range tag {
		tag[i] = byte(0xF0 - i)
	}
	for i := range ct {
		ct[i] = byte(i * 3)
	}
	return tag, ct
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...interface{}) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.record("error", msg) }

type recordingObserver struct {
	mu        sync.Mutex
	exchanges []byte
	stages    []State
	stageErrs []error
	sessions  []error
}

func (o *recordingObserver) ObserveExchange(command byte, _ time.Duration, _ int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exchanges = append(o.exchanges, command)
}

func (o *recordingObserver) ObserveStage(stage State, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
	o.stageErrs = append(o.stageErrs, err)
}

func (o *recordingObserver) ObserveSession(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions = append(o.sessions, err)
}

func newTestAccelerator(t *testing.T, dev *simulator.Device, opts ...Option) *Accelerator {
	t.Helper()
	opts = append([]Option{WithTimeout(testTimeout)}, opts...)
	acc := New(dev, opts...)
	require.NoError(t, acc.Open())
	t.Cleanup(func() { acc.Close() })
	return acc
}

func TestSessionRunEndToEnd(t *testing.T) {
	tag, ct := fixedOutputs()
	dev := simulator.New(
		simulator.WithCipher(simulator.FixedCipher{Tag: tag, Ciphertext: ct}),
		simulator.WithStatusPrefix(0x01),
		simulator.WithChunkSize(7),
	)
	obs := &recordingObserver{}
	acc := newTestAccelerator(t, dev, WithObserver(obs))

	s := acc.NewSession()
	assert.Equal(t, Idle, s.State())
	assert.NotEmpty(t, s.ID())

	gotTag, gotCT, err := s.Run(context.Background(), testKey, testNonce, testAD, testData)
	require.NoError(t, err)

	assert.Equal(t, tag, gotTag)
	assert.Equal(t, ct, gotCT)
	assert.Equal(t, Complete, s.State())
	assert.False(t, s.Halted())

	storedTag, ok := s.Tag()
	assert.True(t, ok)
	assert.Equal(t, tag, storedTag)
	storedCT, ok := s.Ciphertext()
	assert.True(t, ok)
	assert.Equal(t, ct, storedCT)

	assert.Equal(t, "LOBXHUD", dev.Commands())
	assert.Equal(t, []byte("LOBXHUD"), obs.exchanges)
	assert.Equal(t, []State{KeyLoaded, NonceLoaded, AdLoaded, DataLoaded, Triggered, TagRetrieved, Complete}, obs.stages)
	require.Len(t, obs.sessions, 1)
	assert.NoError(t, obs.sessions[0])

	_, _, ad, data := dev.Loaded()
	assert.Equal(t, append(append([]byte{}, testAD...), 0x80, 0x00), ad)
	assert.Equal(t, append(append([]byte{}, testData...), 0x80, 0x00, 0x00), data)
}

func TestSessionFailureHaltsInPreviousState(t *testing.T) {
	tests := []struct {
		name      string
		fault     byte
		wantStage State
		wantState State
		sent      string
	}{
		{name: "key rejected", fault: protocol.CmdLoadKey, wantStage: KeyLoaded, wantState: Idle, sent: "L"},
		{name: "associated data rejected", fault: protocol.CmdLoadAssociatedData, wantStage: AdLoaded, wantState: NonceLoaded, sent: "LOB"},
		{name: "trigger rejected", fault: protocol.CmdTrigger, wantStage: Triggered, wantState: DataLoaded, sent: "LOBXH"},
		{name: "tag rejected", fault: protocol.CmdFetchTag, wantStage: TagRetrieved, wantState: Triggered, sent: "LOBXHU"},
		{name: "ciphertext rejected", fault: protocol.CmdFetchCiphertext, wantStage: Complete, wantState: TagRetrieved, sent: "LOBXHUD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := simulator.New(simulator.WithFault(tt.fault, simulator.FaultReject))
			acc := newTestAccelerator(t, dev)
			s := acc.NewSession()

			_, _, err := s.Run(context.Background(), testKey, testNonce, testAD, testData)
			require.Error(t, err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.True(t, protocol.IsProtocolError(err), "cause must stay reachable: %v", err)

			stage, ok := FailedStage(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantStage, stage)

			assert.Equal(t, tt.wantState, s.State())
			assert.True(t, s.Halted())
			assert.Equal(t, tt.sent, dev.Commands(), "nothing is sent after the failure")
		})
	}
}

func TestSessionHaltedRejectsFurtherSteps(t *testing.T) {
	dev := simulator.New(simulator.WithFault(protocol.CmdLoadNonce, simulator.FaultSilent))
	acc := newTestAccelerator(t, dev)
	s := acc.NewSession()
	ctx := context.Background()

	require.NoError(t, s.LoadKey(ctx, testKey))
	err := s.LoadNonce(ctx, testNonce)
	require.Error(t, err)
	assert.True(t, IsStageError(err))

	dev.SetFault(protocol.CmdLoadNonce, simulator.FaultNone)
	err = s.LoadNonce(ctx, testNonce)
	require.Error(t, err)

	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.True(t, stateErr.Halted)
	assert.Equal(t, KeyLoaded, stateErr.State)
	assert.Contains(t, err.Error(), "halted")
	assert.Equal(t, "LO", dev.Commands())
}

func TestSessionOutOfOrder(t *testing.T) {
	dev := simulator.New()
	acc := newTestAccelerator(t, dev)
	s := acc.NewSession()
	ctx := context.Background()

	err := s.Trigger(ctx)
	require.Error(t, err)
	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.False(t, stateErr.Halted)
	assert.Equal(t, Idle, stateErr.State)
	assert.Equal(t, DataLoaded, stateErr.Required)

	_, err = s.FetchTag(ctx)
	assert.True(t, IsStateError(err))

	require.NoError(t, s.LoadKey(ctx, testKey))
	err = s.LoadKey(ctx, testKey)
	assert.True(t, IsStateError(err), "a step cannot be repeated")

	assert.Equal(t, "L", dev.Commands())
	assert.False(t, s.Halted(), "out-of-order calls do not halt the session")
	assert.Equal(t, KeyLoaded, s.State())
}

func TestSessionValidationDoesNotTouchDevice(t *testing.T) {
	dev := simulator.New()
	acc := newTestAccelerator(t, dev)
	ctx := context.Background()

	t.Run("step", func(t *testing.T) {
		s := acc.NewSession()
		err := s.LoadKey(ctx, testKey[:15])
		require.Error(t, err)
		assert.True(t, protocol.IsValidationError(err))
		assert.False(t, s.Halted())
		assert.Equal(t, Idle, s.State())

		require.NoError(t, s.LoadKey(ctx, testKey), "session remains usable")
	})

	t.Run("run checks every input first", func(t *testing.T) {
		before := len(dev.Frames())
		s := acc.NewSession()
		_, _, err := s.Run(ctx, testKey, testNonce, testAD, testData[:180])
		require.Error(t, err)
		assert.True(t, protocol.IsValidationError(err))
		assert.Contains(t, err.Error(), "181")
		assert.Len(t, dev.Frames(), before, "key must not be sent when the data block is invalid")
	})
}

func TestSessionMissingTrailerIsLogged(t *testing.T) {
	tag, ct := fixedOutputs()
	dev := simulator.New(
		simulator.WithCipher(simulator.FixedCipher{Tag: tag, Ciphertext: ct}),
		simulator.WithFault(protocol.CmdFetchTag, simulator.FaultNoTrailer),
	)
	logger := &recordingLogger{}
	acc := newTestAccelerator(t, dev, WithLogger(logger))

	gotTag, gotCT, err := acc.NewSession().Run(context.Background(), testKey, testNonce, testAD, testData)
	require.NoError(t, err)
	assert.Equal(t, tag, gotTag)
	assert.Equal(t, ct, gotCT)
	assert.Contains(t, logger.entries, "warn: tag reply without OK trailer")
}

func TestSessionShortReplyIsProtocolError(t *testing.T) {
	dev := simulator.New(simulator.WithFault(protocol.CmdFetchCiphertext, simulator.FaultSilent))
	acc := newTestAccelerator(t, dev)

	_, _, err := acc.NewSession().Run(context.Background(), testKey, testNonce, testAD, testData)
	require.Error(t, err)

	var perr *protocol.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "fetch ciphertext", perr.Operation)
}

func TestSessionTransportError(t *testing.T) {
	dev := simulator.New()
	acc := New(dev, WithTimeout(testTimeout))

	_, _, err := acc.NewSession().Run(context.Background(), testKey, testNonce, testAD, testData)
	require.Error(t, err)
	assert.True(t, channel.IsConnectionError(err), "link was never opened")
	stage, _ := FailedStage(err)
	assert.Equal(t, KeyLoaded, stage)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AdLoaded", AdLoaded.String())
	assert.Equal(t, "load associated data", AdLoaded.Action())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestSessionRunNeedsFreshSession(t *testing.T) {
	t.Run("completed session", func(t *testing.T) {
		dev := simulator.New()
		acc := newTestAccelerator(t, dev)
		s := acc.NewSession()
		_, _, err := s.Run(context.Background(), testKey, testNonce, testAD, testData)
		require.NoError(t, err)

		_, _, err = s.Run(context.Background(), testKey, testNonce, testAD, testData)
		require.Error(t, err)

		stage, ok := FailedStage(err)
		require.True(t, ok)
		assert.Equal(t, KeyLoaded, stage)

		var stateErr *StateError
		require.True(t, errors.As(err, &stateErr))
		assert.Equal(t, Complete, stateErr.State)
		assert.Equal(t, Idle, stateErr.Required)
		assert.Equal(t, "LOBXHUD", dev.Commands(), "second run sends nothing")
	})

	t.Run("halted session", func(t *testing.T) {
		dev := simulator.New(simulator.WithFault(protocol.CmdLoadKey, simulator.FaultReject))
		acc := newTestAccelerator(t, dev)
		s := acc.NewSession()
		_, _, err := s.Run(context.Background(), testKey, testNonce, testAD, testData)
		require.Error(t, err)

		_, _, err = s.Run(context.Background(), testKey, testNonce, testAD, testData)
		require.True(t, IsStageError(err))
		var stateErr *StateError
		require.True(t, errors.As(err, &stateErr))
		assert.True(t, stateErr.Halted)
		assert.Equal(t, "L", dev.Commands())
	})
}

func TestSessionStateReadableDuringExchange(t *testing.T) {
	dev := simulator.New(simulator.WithFault(protocol.CmdTrigger, simulator.FaultSilent))
	acc := New(dev, WithTimeout(testTimeout), WithTriggerTimeout(time.Second))
	require.NoError(t, acc.Open())
	defer acc.Close()

	s := acc.NewSession()
	done := make(chan error, 1)
	go func() {
		_, _, err := s.Run(context.Background(), testKey, testNonce, testAD, testData)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return dev.Commands() == "LOBXH"
	}, time.Second, time.Millisecond)

	start := time.Now()
	assert.Equal(t, DataLoaded, s.State())
	assert.False(t, s.Halted())
	assert.Less(t, time.Since(start), 100*time.Millisecond, "state must not wait for the trigger reply")

	err := <-done
	require.Error(t, err)
	assert.True(t, s.Halted())
}
