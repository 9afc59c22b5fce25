package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheckRetryPassesThrough401(t *testing.T) {
	ctx := context.Background()

	retry, err := checkRetry(ctx, &http.Response{StatusCode: http.StatusUnauthorized}, nil)
	if err != nil {
		t.Fatalf("checkRetry errored: %v", err)
	}
	if retry {
		t.Error("401 must not be retried; the session layer handles it")
	}
}

func TestCheckRetryRetriesServerErrors(t *testing.T) {
	ctx := context.Background()

	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		retry, _ := checkRetry(ctx, &http.Response{StatusCode: status}, nil)
		if !retry {
			t.Errorf("Status %d should be retried", status)
		}
	}

	retry, _ := checkRetry(ctx, nil, errors.New("connection reset"))
	if !retry {
		t.Error("Transport errors should be retried")
	}

	retry, _ = checkRetry(ctx, &http.Response{StatusCode: http.StatusOK}, nil)
	if retry {
		t.Error("200 must not be retried")
	}
}

func TestCheckRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := checkRetry(ctx, nil, errors.New("connection reset"))
	if retry {
		t.Error("Cancelled context must stop retries")
	}
	if err == nil {
		t.Error("Expected context error")
	}
}

func TestRetryClientRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewRetryClient(&http.Client{})
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected eventual 200, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	if d := Backoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("Attempt 0 should not wait, got %s", d)
	}

	for attempt := 1; attempt <= 10; attempt++ {
		d := Backoff(attempt, time.Second, 15*time.Second)
		if d < 0 || d > 15*time.Second {
			t.Errorf("Attempt %d: backoff %s outside [0, 15s]", attempt, d)
		}
	}
}
