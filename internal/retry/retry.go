package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 1
	defaultJitterFraction = 0.30
)

type Sleeper func(ctx context.Context, d time.Duration) error
type RandFunc func() float64

// Classifier decides whether err is worth another attempt. reason is only
// used for logging.
type Classifier func(err error) (retryable bool, reason string)

// Policy describes caller-side retries. The zero value performs a single
// attempt.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
	Sleep          Sleeper
	Rand           RandFunc
}

func DefaultPolicy() Policy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return Policy{
		BaseDelay:      defaultBaseDelay,
		MaxDelay:       defaultMaxDelay,
		Multiplier:     defaultMultiplier,
		MaxAttempts:    defaultMaxAttempts,
		JitterFraction: defaultJitterFraction,
		Sleep:          defaultSleep,
		Rand:           rng.Float64,
	}
}

type ExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. With more than one attempt configured, the last
// retryable failure is wrapped in *ExhaustedError.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, classify Classifier, fn func(ctx context.Context) error) error {
	policy = withDefaults(policy)

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if classify == nil {
			return err
		}
		retryable, reason := classify(err)
		if !retryable {
			return err
		}
		if attempt == policy.MaxAttempts {
			if policy.MaxAttempts == 1 {
				return err
			}
			return &ExhaustedError{Cause: err, Attempts: attempt}
		}

		delay := policy.jitterDelay(policy.backoffDelay(attempt))
		logRetry(logger, attempt+1, policy.MaxAttempts, reason, delay)
		if sleepErr := policy.Sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
	return err
}

func withDefaults(p Policy) Policy {
	if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = defaultJitterFraction
	}
	if p.Sleep == nil {
		p.Sleep = defaultSleep
	}
	if p.Rand == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		p.Rand = rng.Float64
	}
	return p
}

func (p Policy) backoffDelay(retryIndex int) time.Duration {
	if retryIndex < 1 {
		retryIndex = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retryIndex-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (p Policy) jitterDelay(delay time.Duration) time.Duration {
	if delay <= 0 || p.JitterFraction <= 0 {
		return delay
	}
	// +/- JitterFraction around the backoff delay.
	factor := 1 + (p.Rand()*2-1)*p.JitterFraction
	adjusted := float64(delay) * factor
	if adjusted < 0 {
		adjusted = 0
	}
	return time.Duration(adjusted)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func logRetry(logger *slog.Logger, attempt int, maxAttempts int, reason string, delay time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("retrying completion",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.String("reason", reason),
		slog.Duration("retry_in", delay),
	)
}
