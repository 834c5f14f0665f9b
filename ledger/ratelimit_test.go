package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadmarket/config"
	"leadmarket/models"
	"leadmarket/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLimiter() (*RateLimiter, *fakeClock) {
	limits := config.BrandLimits{
		Brands:   map[string]map[string]int{"ownerfi": {"sms": 3, "webhook": 10}},
		Fallback: 2,
	}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limits, time.Hour, utils.NopLogger())
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiterIncrementAndCheck(t *testing.T) {
	rl, _ := testLimiter()

	if st := rl.CheckLimit("ownerfi", "sms"); !st.Allowed || st.Remaining != 3 {
		t.Fatalf("fresh status = %+v", st)
	}
	for want := 2; want >= 0; want-- {
		got, err := rl.Increment("ownerfi", "sms")
		if err != nil || got != want {
			t.Fatalf("Increment = %d, %v; want %d", got, err, want)
		}
	}

	st := rl.CheckLimit("OwnerFi", "sms")
	if st.Allowed || st.Remaining != 0 || st.Count != 3 {
		t.Errorf("exhausted status = %+v", st)
	}

	_, err := rl.Increment("ownerfi", "sms")
	var rle *models.RateLimitError
	if !errors.As(err, &rle) || !errors.Is(err, models.ErrRateLimitExceeded) {
		t.Fatalf("err = %v; want RateLimitError", err)
	}
	if !rle.ResetAt.Equal(st.ResetAt) {
		t.Errorf("ResetAt = %v; want %v", rle.ResetAt, st.ResetAt)
	}
	if again := rl.CheckLimit("ownerfi", "sms"); again.Count != 3 {
		t.Errorf("rejected call was counted: %+v", again)
	}
}

func TestRateLimiterCheckIsReadOnly(t *testing.T) {
	rl, _ := testLimiter()
	for i := 0; i < 10; i++ {
		rl.CheckLimit("ownerfi", "webhook")
	}
	if n := rl.Sweep(); n != 0 {
		t.Errorf("CheckLimit created %d entries", n)
	}
	if st := rl.CheckLimit("ownerfi", "webhook"); st.Count != 0 {
		t.Errorf("Count = %d; want 0", st.Count)
	}
}

func TestRateLimiterStaleWindowReadsAsReset(t *testing.T) {
	rl, clock := testLimiter()
	for i := 0; i < 3; i++ {
		_, _ = rl.Increment("ownerfi", "sms")
	}
	clock.Advance(time.Hour)

	if st := rl.CheckLimit("ownerfi", "sms"); !st.Allowed || st.Count != 0 {
		t.Errorf("stale counter should read as zero before any sweep: %+v", st)
	}
	if left, err := rl.Increment("ownerfi", "sms"); err != nil || left != 2 {
		t.Errorf("Increment after window = %d, %v; want 2", left, err)
	}
}

func TestRateLimiterFallbackAndSweep(t *testing.T) {
	rl, clock := testLimiter()
	_, _ = rl.Increment("carz", "geocode")
	_, _ = rl.Increment("carz", "geocode")
	if _, err := rl.Increment("carz", "geocode"); !errors.Is(err, models.ErrRateLimitExceeded) {
		t.Errorf("unknown brand should use fallback limit 2, err = %v", err)
	}

	clock.Advance(30 * time.Minute)
	_, _ = rl.Increment("ownerfi", "sms")
	clock.Advance(31 * time.Minute)

	if n := rl.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d; want 1", n)
	}
	if st := rl.CheckLimit("ownerfi", "sms"); st.Count != 1 {
		t.Errorf("live counter swept: %+v", st)
	}
}

func TestRateLimiterStatusAndReset(t *testing.T) {
	rl, _ := testLimiter()
	_, _ = rl.Increment("ownerfi", "sms")
	_, _ = rl.Increment("ownerfi", "heygen")

	st := rl.Status("ownerfi")
	if len(st) != 3 {
		t.Fatalf("Status returned %d services; want 3: %+v", len(st), st)
	}
	if st[0].Service != "heygen" || st[1].Service != "sms" || st[2].Service != "webhook" {
		t.Errorf("services = %s %s %s", st[0].Service, st[1].Service, st[2].Service)
	}

	rl.Reset("ownerfi", "sms")
	if c := rl.CheckLimit("ownerfi", "sms"); c.Count != 0 {
		t.Errorf("Reset(sms) left count %d", c.Count)
	}
	rl.Reset("ownerfi", "")
	if c := rl.CheckLimit("ownerfi", "heygen"); c.Count != 0 {
		t.Errorf("Reset(brand) left count %d", c.Count)
	}
}

func TestRateLimiterDoAndConcurrency(t *testing.T) {
	rl, _ := testLimiter()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Do(ctx, "ownerfi", "webhook", func(context.Context) error {
				mu.Lock()
				ran++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if ran != 10 {
		t.Errorf("Do ran %d times; want exactly the limit of 10", ran)
	}
}

func TestRateLimiterRunStopsOnCancel(t *testing.T) {
	rl, _ := testLimiter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLimitedDispatcherSpendsQuota(t *testing.T) {
	rl, _ := testLimiter()
	inner := &countingDispatcher{}
	d := rl.Limited("ownerfi", config.ServiceSMS, inner)

	for i := 0; i < 5; i++ {
		err := d.Dispatch(context.Background(), models.Notification{BuyerID: "b1"})
		if i < 3 && err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
		if i >= 3 && !errors.Is(err, models.ErrRateLimitExceeded) {
			t.Fatalf("dispatch %d err = %v; want rate limited", i, err)
		}
	}
	if got := inner.calls.Load(); got != 3 {
		t.Errorf("inner dispatcher called %d times; want 3", got)
	}
}
