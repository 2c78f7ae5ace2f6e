package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FailureRatio:   0.5,
		MinThroughput:  3,
		SamplingWindow: time.Minute,
		BreakDuration:  50 * time.Millisecond,
		MaxAttempts:    1,
		RetryInitial:   time.Millisecond,
		AttemptTimeout: 100 * time.Millisecond,
	}
}

func TestPipelineSuccess(t *testing.T) {
	p := NewPipeline(testPipelineConfig())

	calls := 0
	out, err := p.Execute(context.Background(), func(ctx context.Context) (*gatewayReply, error) {
		calls++
		return &gatewayReply{Success: true, TransactionID: "ext-1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ext-1", out.TransactionID)
}

func TestPipelineRetriesThenSucceeds(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxAttempts = 3
	p := NewPipeline(cfg)

	calls := 0
	out, err := p.Execute(context.Background(), func(ctx context.Context) (*gatewayReply, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return &gatewayReply{Success: true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, out.Success)
}

func TestPipelineRetriesExhausted(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxAttempts = 2
	p := NewPipeline(cfg)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (*gatewayReply, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestPipelineBreakerOpensAndFailsFast(t *testing.T) {
	p := NewPipeline(testPipelineConfig())
	ctx := context.Background()
	boom := func(ctx context.Context) (*gatewayReply, error) {
		return nil, errors.New("connection refused")
	}

	// Three consecutive failures reach min throughput at 100% failure.
	for i := 0; i < 3; i++ {
		_, err := p.Execute(ctx, boom)
		require.Error(t, err)
	}

	// Breaker is open: the call function must not run.
	calls := 0
	_, err := p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		calls++
		return &gatewayReply{Success: true}, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 0, calls)
}

func TestPipelineBreakerRecovers(t *testing.T) {
	p := NewPipeline(testPipelineConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
			return nil, errors.New("connection refused")
		})
	}
	_, err := p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		return &gatewayReply{Success: true}, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	// After the break the half-open probe goes through and closes the breaker.
	time.Sleep(60 * time.Millisecond)

	out, err := p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		return &gatewayReply{Success: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, out.Success)

	out, err = p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		return &gatewayReply{Success: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestPipelineTimeoutMapped(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.AttemptTimeout = 10 * time.Millisecond
	p := NewPipeline(cfg)

	_, err := p.Execute(context.Background(), func(ctx context.Context) (*gatewayReply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrGatewayTimeout)
}

func TestPipelineNoRetryOnCancel(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxAttempts = 3
	p := NewPipeline(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := p.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		calls++
		cancel()
		return nil, errors.New("interrupted")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
