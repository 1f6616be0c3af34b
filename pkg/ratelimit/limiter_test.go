package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiterAppliesDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.Rate() != 10 {
		t.Errorf("expected default rate 10, got %v", rl.Rate())
	}
	if rl.Burst() != 20 {
		t.Errorf("expected default burst 2x rate, got %v", rl.Burst())
	}
}

func TestNewRateLimiterBurstFloorsAtRate(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	if rl.Burst() != 10 {
		t.Errorf("expected burst floored to rate 10, got %v", rl.Burst())
	}
}

func TestAllowConsumesToken(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	if !rl.Allow() {
		t.Fatal("expected first Allow to succeed with a full bucket")
	}
	if rl.Allow() {
		t.Error("expected second immediate Allow to fail with burst=1")
	}
}

func TestAllowNRequiresEnoughTokens(t *testing.T) {
	rl := NewRateLimiter(1000, 5)
	if !rl.AllowN(5) {
		t.Fatal("expected AllowN(5) to succeed with a full bucket of 5")
	}
	if rl.AllowN(1) {
		t.Error("expected bucket to be empty after consuming all 5 tokens")
	}
}

func TestAllowNNonPositiveAlwaysSucceeds(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if !rl.AllowN(0) {
		t.Error("AllowN(0) should always succeed")
	}
	if !rl.AllowN(-1) {
		t.Error("AllowN(negative) should always succeed")
	}
}

func TestTokensRefillOverTime(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	if !rl.Allow() {
		t.Fatal("expected initial token")
	}
	time.Sleep(5 * time.Millisecond)
	if !rl.Allow() {
		t.Error("expected bucket to have refilled within 5ms at 1000/sec")
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	_ = rl.Allow() // drain the bucket

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("expected Wait to return quickly at 1000 tokens/sec, took %v", time.Since(start))
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	_ = rl.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("expected context deadline to cancel the wait")
	}
}

func TestWaitNZeroOrNegativeIsNoOp(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if err := rl.WaitN(context.Background(), 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := rl.WaitN(context.Background(), -1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReserveAndCancelReturnsToken(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	res := rl.Reserve()
	if !res.OK() {
		t.Fatal("expected reservation to succeed")
	}
	if rl.Allow() {
		t.Error("expected bucket to be empty after reservation")
	}
	res.Cancel()
	if !rl.Allow() {
		t.Error("expected token to be returned after Cancel")
	}
}

func TestSetRateAndSetBurst(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.SetRate(20)
	if rl.Rate() != 20 {
		t.Errorf("expected rate 20, got %v", rl.Rate())
	}
	rl.SetRate(0) // ignored
	if rl.Rate() != 20 {
		t.Errorf("expected SetRate(0) to be a no-op, got %v", rl.Rate())
	}

	rl.SetBurst(5)
	if rl.Burst() != 5 {
		t.Errorf("expected burst 5, got %v", rl.Burst())
	}
	if rl.Tokens() > 5 {
		t.Errorf("expected tokens clamped to new burst, got %v", rl.Tokens())
	}
}

func TestMultiLimiterWaitOnUnregisteredCategoryIsNoOp(t *testing.T) {
	ml := NewMultiLimiter()
	if err := ml.Wait(context.Background(), "unknown"); err != nil {
		t.Errorf("unexpected error for unregistered category: %v", err)
	}
	if !ml.Allow("unknown") {
		t.Error("expected Allow to default to true for unregistered category")
	}
}

func TestMultiLimiterPerCategoryLimits(t *testing.T) {
	ml := NewMultiLimiter()
	ml.Add("market-data", 1000, 1)
	ml.Add("account", 1000, 1)

	if !ml.Allow("market-data") {
		t.Fatal("expected first market-data request to pass")
	}
	if ml.Allow("market-data") {
		t.Error("expected market-data bucket to be exhausted")
	}
	if !ml.Allow("account") {
		t.Error("expected account bucket to be independent of market-data")
	}
}

func TestMultiLimiterGetReturnsRegisteredLimiter(t *testing.T) {
	ml := NewMultiLimiter()
	ml.Add("market-data", 5, 10)
	rl := ml.Get("market-data")
	if rl == nil {
		t.Fatal("expected registered limiter")
	}
	if rl.Rate() != 5 {
		t.Errorf("expected rate 5, got %v", rl.Rate())
	}
	if ml.Get("missing") != nil {
		t.Error("expected nil for unregistered category")
	}
}
