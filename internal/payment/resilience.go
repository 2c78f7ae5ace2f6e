package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrGatewayTimeout marks an attempt that exceeded the per-attempt budget.
// Timeouts are retryable; the breaker sees them only after retries run out.
var ErrGatewayTimeout = errors.New("payment gateway timeout")

// PipelineConfig tunes the resilience pipeline around gateway calls:
// circuit breaker outermost, then retry, then a per-attempt timeout.
type PipelineConfig struct {
	FailureRatio   float64       // breaker trips at this failure ratio
	MinThroughput  uint32        // minimum sampled calls before tripping
	SamplingWindow time.Duration // counts reset cycle while closed
	BreakDuration  time.Duration // how long the breaker stays open
	MaxAttempts    uint64        // total attempts per call, retries included
	RetryInitial   time.Duration // first backoff delay, doubles per retry
	AttemptTimeout time.Duration // budget per individual attempt
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FailureRatio:   0.5,
		MinThroughput:  3,
		SamplingWindow: 30 * time.Second,
		BreakDuration:  30 * time.Second,
		MaxAttempts:    3,
		RetryInitial:   time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

type Pipeline struct {
	cb  *gobreaker.CircuitBreaker[*gatewayReply]
	cfg PipelineConfig
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	st := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1, // a single half-open probe
		Interval:    cfg.SamplingWindow,
		Timeout:     cfg.BreakDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinThroughput &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}
	return &Pipeline{cb: gobreaker.NewCircuitBreaker[*gatewayReply](st), cfg: cfg}
}

// Execute runs one gateway call through the pipeline. A business rejection
// (success=false reply) is a successful sample; only transport-level
// failures count against the breaker. Cancelled calls are never retried.
func (p *Pipeline) Execute(ctx context.Context, call func(ctx context.Context) (*gatewayReply, error)) (*gatewayReply, error) {
	return p.cb.Execute(func() (*gatewayReply, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = p.cfg.RetryInitial

		var out *gatewayReply
		attempt := func() error {
			actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
			defer cancel()

			r, err := call(actx)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				if errors.Is(err, context.DeadlineExceeded) {
					return ErrGatewayTimeout
				}
				return err
			}
			out = r
			return nil
		}

		err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, p.cfg.MaxAttempts-1), ctx))
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
