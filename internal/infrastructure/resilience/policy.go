package resilience

import (
	"strings"
	"time"
)

// Config is the executor policy. Calls in the recall pipeline are single-shot
// by default; Operations can raise the attempt budget per operation name.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Operations map[string]OperationPolicy
}

type OperationPolicy struct {
	MaxAttempts    int
	BreakerEnabled *bool
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// ParseOperationAttempts reads "embed=2,rerank=1" style overrides.
// Malformed pairs are ignored.
func ParseOperationAttempts(raw string) map[string]OperationPolicy {
	out := make(map[string]OperationPolicy)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		attempts := 0
		for _, r := range strings.TrimSpace(value) {
			if r < '0' || r > '9' {
				attempts = 0
				break
			}
			attempts = attempts*10 + int(r-'0')
		}
		if name == "" || attempts <= 0 {
			continue
		}
		out[name] = OperationPolicy{MaxAttempts: attempts}
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	ops := make(map[string]OperationPolicy, len(out.Operations))
	for name, p := range out.Operations {
		if p.MaxAttempts <= 0 {
			p.MaxAttempts = out.RetryMaxAttempts
		}
		ops[name] = p
	}
	out.Operations = ops

	return out
}

func (c Config) attemptsFor(operation string) int {
	if p, ok := c.Operations[operation]; ok {
		return p.MaxAttempts
	}
	return c.RetryMaxAttempts
}

func (c Config) breakerFor(operation string) bool {
	if p, ok := c.Operations[operation]; ok && p.BreakerEnabled != nil {
		return *p.BreakerEnabled
	}
	return c.BreakerEnabled
}
