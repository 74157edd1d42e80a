package middleware

import (
	"context"
	"testing"
	"time"

	"mini-jsonrpc/wire"
)

func echoHandler(ctx context.Context, req *wire.Request) *wire.Response {
	return wire.NewResult(req.ID, "ok")
}

func slowHandler(ctx context.Context, req *wire.Request) *wire.Response {
	time.Sleep(200 * time.Millisecond)
	return wire.NewResult(req.ID, "ok")
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	req := wire.NewRequest(int64(1), "hello", nil)
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Result != "ok" {
		t.Fatalf("expect result 'ok', got '%v'", resp.Result)
	}
}

func TestTimeoutPass(t *testing.T) {
	// Generous timeout, fast handler, should pass through untouched.
	handler := TimeoutMiddleware(500 * time.Millisecond)(echoHandler)

	req := wire.NewRequest(int64(1), "hello", nil)
	resp := handler(context.Background(), req)

	if resp.Error != nil {
		t.Fatalf("expect no error, got '%v'", resp.Error)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	// 50ms limit against a 200ms handler must produce a timeout envelope.
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)

	req := wire.NewRequest(int64(7), "hello", nil)
	resp := handler(context.Background(), req)

	if resp.Error == nil || resp.Error.Message != "request timed out" {
		t.Fatalf("expect timeout error, got '%v'", resp.Error)
	}
	if resp.ID != int64(7) {
		t.Fatalf("timeout envelope must echo the request id, got %v", resp.ID)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2 → first 2 pass, third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := wire.NewRequest(int64(1), "hello", nil)

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.Error != nil {
			t.Fatalf("request %d should pass, got error: %v", i, resp.Error)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Error == nil || resp.Error.Message != "rate limit exceeded" {
		t.Fatalf("request 3 should be rate limited, got: '%v'", resp.Error)
	}
}

func TestRetryRecovers(t *testing.T) {
	attempts := 0
	flaky := func(ctx context.Context, req *wire.Request) *wire.Response {
		attempts++
		if attempts < 3 {
			return wire.NewError(req.ID, wire.CodeApplication, "request timed out", nil)
		}
		return wire.NewResult(req.ID, "ok")
	}
	handler := RetryMiddleware(3, time.Millisecond)(flaky)

	resp := handler(context.Background(), wire.NewRequest(int64(1), "hello", nil))
	if resp.Error != nil {
		t.Fatalf("expect success after retries, got %v", resp.Error)
	}
	if attempts != 3 {
		t.Fatalf("expect 3 attempts, got %d", attempts)
	}
}

func TestRetryNonRetryable(t *testing.T) {
	attempts := 0
	failing := func(ctx context.Context, req *wire.Request) *wire.Response {
		attempts++
		return wire.NewError(req.ID, wire.CodeMethodNotFound, "Method not found: x", nil)
	}
	handler := RetryMiddleware(3, time.Millisecond)(failing)

	resp := handler(context.Background(), wire.NewRequest(int64(1), "x", nil))
	if resp.Error == nil || resp.Error.Code != wire.CodeMethodNotFound {
		t.Fatalf("expect method-not-found to pass through, got %v", resp.Error)
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d attempts", attempts)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(), TimeoutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	req := wire.NewRequest(int64(1), "hello", nil)
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Error != nil {
		t.Fatalf("expect no error, got '%v'", resp.Error)
	}
}
