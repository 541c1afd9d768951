package util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), Backoff{Attempts: 5}, func(attempt int) error {
		attempts++
		if attempt != attempts {
			t.Errorf("fn got attempt %d, want %d", attempt, attempts)
		}
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), Backoff{Attempts: maxAttempts}, func(int) error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	cause := errors.New("bad symbol")
	attempts := 0
	err := Retry(context.Background(), Backoff{Attempts: 5}, func(int) error {
		attempts++
		return Permanent(cause)
	})
	if err != cause {
		t.Errorf("Retry returned %v, want the unwrapped cause", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryZeroAttemptsCallsOnce(t *testing.T) {
	attempts := 0
	_ = Retry(context.Background(), Backoff{}, func(int) error {
		attempts++
		return errors.New("fail")
	})
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for n, w := range want {
		if got := b.Delay(n); got != w {
			t.Errorf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
	if got := (Backoff{Base: time.Second}).Delay(4); got != 16*time.Second {
		t.Errorf("uncapped Delay(4) = %v, want 16s", got)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if rl.Interval() != time.Second {
		t.Errorf("Interval = %v, want 1s", rl.Interval())
	}
	if got := NewRateLimiter(0, 0).Interval(); got != time.Second {
		t.Errorf("default Interval = %v, want 1s", got)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d returned %v, want nil", i, err)
		}
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait returned %v, want nil", err)
	}

	// The next slot is a minute away.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait returned %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, Backoff{Attempts: 5, Base: time.Hour}, func(int) error {
		attempts++
		cancel()
		return errors.New("transient error")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry returned %v, want %v", err, context.Canceled)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "json").Info("run complete", "bars", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output %q: %v", buf.String(), err)
	}
	if rec["msg"] != "run complete" || rec["bars"] != float64(3) {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	logger := NewLoggerTo(&buf, "warn", "text")
	logger.Info("dropped")
	logger.Warn("kept", "symbol", "AAPL")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "symbol=AAPL") {
		t.Errorf("text output = %q", out)
	}
}

func TestProfileLogger(t *testing.T) {
	var buf bytes.Buffer
	l := profileLogger{NewLoggerTo(&buf, "info", "text")}
	l.Debugf("skipped %d", 1)
	l.Infof("uploading %d profiles", 5)
	l.Errorf("upload failed: %s", "timeout")

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, `msg="uploading 5 profiles"`) || !strings.Contains(out, "level=ERROR") {
		t.Errorf("output = %q", out)
	}
}
