package register

import (
	"context"
	"fmt"

	"github.com/moffa90/go-asconlink/protocol"
)

// CycleResult is the outcome of one bring-up cycle.
type CycleResult struct {
	Cycle   int
	Address uint8
	Written uint8
	Read    uint8
}

// Match reports whether the value read back equals the value written.
func (r CycleResult) Match() bool {
	return r.Written == r.Read
}

// RunCycles exercises the register file n times. Cycle i writes (i*16)%256
// to address i%256, shows it on the LEDs and reads it back.
//
// It stops at the first command that fails and returns the cycles completed
// so far. A mismatch is not an error; check CycleResult.Match. A negative n
// is rejected with *protocol.ValidationError before anything is sent.
func (c *Client) RunCycles(ctx context.Context, n int) ([]CycleResult, error) {
	if n < 0 {
		return nil, &protocol.ValidationError{Field: "cycle count", Reason: fmt.Sprintf("%d is negative", n)}
	}

	results := make([]CycleResult, 0, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("cancelled: %w", err)
		}

		r := CycleResult{
			Cycle:   i,
			Address: uint8(i % 256),
			Written: uint8((i * 16) % 256),
		}

		if err := c.SetAddress(ctx, r.Address); err != nil {
			return results, fmt.Errorf("cycle %d: %w", i, err)
		}
		if err := c.WriteValue(ctx, r.Written); err != nil {
			return results, fmt.Errorf("cycle %d: %w", i, err)
		}
		if err := c.DisplayOnLEDs(ctx); err != nil {
			return results, fmt.Errorf("cycle %d: %w", i, err)
		}
		v, err := c.ReadValue(ctx)
		if err != nil {
			return results, fmt.Errorf("cycle %d: %w", i, err)
		}
		r.Read = v

		results = append(results, r)
		c.logInfo("register cycle",
			"cycle", i,
			"address", fmt.Sprintf("0x%02X", r.Address),
			"written", fmt.Sprintf("0x%02X", r.Written),
			"read", fmt.Sprintf("0x%02X", r.Read),
			"match", r.Match(),
		)
	}

	return results, nil
}
