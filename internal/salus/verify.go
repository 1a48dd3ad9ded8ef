package salus

import (
	"context"
	"fmt"
	"time"
)

// VerificationOptions configures how a setpoint write is confirmed
type VerificationOptions struct {
	// MaxRetries is the number of reads after the first one
	// Default: 3
	MaxRetries int

	// InitialDelay is the wait before the first read. The cloud applies
	// datapoints asynchronously, so an immediate read often shows the old value.
	// Default: 2s
	InitialDelay time.Duration

	// RetryDelay is the delay between reads, doubled after each one
	// up to MaxRetryDelay
	// Default: 2s
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff
	// Default: 10s
	MaxRetryDelay time.Duration
}

// DefaultVerificationOptions returns the defaults used by "salus set-temp --verify"
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:    3,
		InitialDelay:  2 * time.Second,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: 10 * time.Second,
	}
}

// VerificationResult describes the outcome of VerifySetpoint
type VerificationResult struct {
	Success  bool
	Attempts int
	Expected float64

	// Actual is the last state read from the device, if any read succeeded
	Actual *DeviceState

	// Error is the last read error or the final mismatch
	Error error
}

// VerifySetpoint reads the device until its heating setpoint equals expected
// or the retries run out. Read errors are retried like mismatches. The
// returned result is never nil; cancellation stops early with ctx.Err().
func (c *Client) VerifySetpoint(ctx context.Context, id string, expected float64, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}
	result := &VerificationResult{Expected: expected}

	if err := sleepContext(ctx, opts.InitialDelay); err != nil {
		result.Error = err
		return result
	}

	delay := opts.RetryDelay
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				result.Error = err
				return result
			}
			delay *= 2
			if opts.MaxRetryDelay > 0 && delay > opts.MaxRetryDelay {
				delay = opts.MaxRetryDelay
			}
		}
		result.Attempts++

		state, err := c.DeviceState(ctx, id)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: %w", result.Attempts, err)
			continue
		}
		result.Actual = &state

		if state.HeatingSetpoint == expected {
			result.Success = true
			result.Error = nil
			return result
		}
		result.Error = fmt.Errorf("heating setpoint is %s, expected %s",
			FormatTemperature(state.HeatingSetpoint), FormatTemperature(expected))
	}

	return result
}

// UpdateAndVerify writes value and then confirms it with VerifySetpoint.
// A write that returns a non-2xx status is not verified.
func (c *Client) UpdateAndVerify(ctx context.Context, id string, value float64, opts *VerificationOptions) (int, *VerificationResult) {
	status, err := c.UpdateTemperature(ctx, id, value)
	if err != nil {
		return status, &VerificationResult{Expected: value, Error: fmt.Errorf("update failed: %w", err)}
	}
	if !isSuccess(status) {
		return status, &VerificationResult{
			Expected: value,
			Error:    RejectedSetpointError(status, id),
		}
	}
	return status, c.VerifySetpoint(ctx, id, value, opts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
