package llm

import (
	"context"
	"testing"
	"time"
)

func TestCacheClientMemoizesDeterministicRequests(t *testing.T) {
	mock := NewMockClient("m", TextResponse("first"), TextResponse("second"))
	client := WrapWithCache(mock, CacheConfig{MaxSize: 8, TTL: time.Minute})

	req := CompletionRequest{Messages: []Message{{Role: "user", Content: "same prompt"}}}

	first, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.Content != "first" || second.Content != "first" {
		t.Fatalf("cache miss: %q / %q", first.Content, second.Content)
	}
	if len(mock.Requests) != 1 {
		t.Fatalf("underlying called %d times", len(mock.Requests))
	}
}

func TestCacheClientBypassesToolRequests(t *testing.T) {
	mock := NewMockClient("m", TextResponse("a"))
	client := WrapWithCache(mock, DefaultCacheConfig())

	req := CompletionRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
		Tools:    []ToolDefinition{{Name: "run_terminal_command"}},
	}

	_, _ = client.Complete(context.Background(), req)
	_, _ = client.Complete(context.Background(), req)

	if len(mock.Requests) != 2 {
		t.Fatalf("tool request cached: %d calls", len(mock.Requests))
	}
}

func TestCacheClientBypassesSampledRequests(t *testing.T) {
	mock := NewMockClient("m", TextResponse("a"))
	client := WrapWithCache(mock, DefaultCacheConfig())

	req := CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "x"}},
		Temperature: 0.7,
	}

	_, _ = client.Complete(context.Background(), req)
	_, _ = client.Complete(context.Background(), req)

	if len(mock.Requests) != 2 {
		t.Fatalf("sampled request cached: %d calls", len(mock.Requests))
	}
}

func TestCacheClientDistinguishesPrompts(t *testing.T) {
	mock := NewMockClient("m", TextResponse("a"), TextResponse("b"))
	client := WrapWithCache(mock, DefaultCacheConfig())

	r1, _ := client.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "one"}}})
	r2, _ := client.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "two"}}})

	if r1.Content == r2.Content {
		t.Fatalf("different prompts collided: %q", r1.Content)
	}
}
