package llm

import (
	"context"
	"fmt"
	"time"

	mberrors "membench/internal/errors"
	"membench/internal/logging"
)

// retryClient wraps a Client with retry logic and a circuit breaker.
type retryClient struct {
	underlying     Client
	retryConfig    mberrors.RetryConfig
	circuitBreaker *mberrors.CircuitBreaker
	logger         logging.Logger
}

// WrapWithRetry wraps an existing client with retry and circuit breaker logic.
func WrapWithRetry(client Client, retryConfig mberrors.RetryConfig, breakerConfig mberrors.CircuitBreakerConfig) Client {
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: mberrors.NewCircuitBreaker(fmt.Sprintf("llm-%s", client.Model()), breakerConfig),
		logger:         logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// Complete executes a completion with retry logic. Transient failures are
// retried with exponential backoff; the circuit breaker protects the endpoint
// from hammering during an outage.
func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	startTime := time.Now()

	resp, err := mberrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*CompletionResponse, error) {
		return mberrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*CompletionResponse, error) {
			return c.underlying.Complete(ctx, req)
		})
	}, c.logger)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		if mberrors.IsDegraded(err) {
			return nil, fmt.Errorf("%s", mberrors.FormatForLLM(err))
		}
		return nil, fmt.Errorf("%s Retried %d times over %v.",
			mberrors.FormatForLLM(err), c.retryConfig.MaxAttempts+1, duration.Round(time.Second))
	}

	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}

	return resp, nil
}
