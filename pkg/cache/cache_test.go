package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/keyforge/pkg/observability"
)

type missCounter struct {
	observability.NoopCacheHooks
	misses map[string]int
}

func (m *missCounter) OnCacheMiss(_ context.Context, keyType string) { m.misses[keyType]++ }

func TestNullCacheReportsMisses(t *testing.T) {
	t.Cleanup(observability.Reset)
	hooks := &missCounter{misses: map[string]int{}}
	observability.SetCacheHooks(hooks)

	c := NewNullCache()
	c.Get(context.Background(), "stats:abc")
	c.Get(context.Background(), "result:def")
	c.Get(context.Background(), "result:ghi")
	if hooks.misses["stats"] != 1 || hooks.misses["result"] != 2 {
		t.Errorf("misses = %v", hooks.misses)
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always return miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	s1 := k.StatsKey("corpus", StatsKeyOpts{Keyboard: "ibmpc105", LayoutHash: "a"})
	s2 := k.StatsKey("corpus", StatsKeyOpts{Keyboard: "ibmpc105", LayoutHash: "b"})
	if !strings.HasPrefix(s1, "stats:") {
		t.Errorf("StatsKey = %s, want stats: prefix", s1)
	}
	if s1 == s2 {
		t.Error("Different layouts should produce different stats keys")
	}
	if s1 != k.StatsKey("corpus", StatsKeyOpts{Keyboard: "ibmpc105", LayoutHash: "a"}) {
		t.Error("StatsKey should be deterministic")
	}

	base := ResultKeyOpts{Keyboard: "ibmpc105", LayoutHash: "a", Model: "mod01", Steps: 1000, Seed: 1}
	r1 := k.ResultKey("triads", base)
	if !strings.HasPrefix(r1, "result:") {
		t.Errorf("ResultKey = %s, want result: prefix", r1)
	}
	variants := []func(*ResultKeyOpts){
		func(o *ResultKeyOpts) { o.Seed = 2 },
		func(o *ResultKeyOpts) { o.Steps = 2000 },
		func(o *ResultKeyOpts) { o.Model = "salvo" },
		func(o *ResultKeyOpts) { o.ModelHash = "edited" },
		func(o *ResultKeyOpts) { o.KeyboardHash = "other" },
		func(o *ResultKeyOpts) { o.Pins = "Dl1" },
		func(o *ResultKeyOpts) { o.Restarts = 4 },
		func(o *ResultKeyOpts) { o.Randomize = true },
	}
	for i, mod := range variants {
		opts := base
		mod(&opts)
		if k.ResultKey("triads", opts) == r1 {
			t.Errorf("variant %d should change the result key", i)
		}
	}
	if k.ResultKey("other", base) == r1 {
		t.Error("Different triads should produce different result keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	k := NewScopedKeyer(inner, "server:")
	opts := StatsKeyOpts{Keyboard: "ibmpc105"}
	if got, want := k.StatsKey("c", opts), "server:"+inner.StatsKey("c", opts); got != want {
		t.Errorf("StatsKey = %s, want %s", got, want)
	}
	ropts := ResultKeyOpts{Model: "mod01"}
	if got, want := k.ResultKey("t", ropts), "server:"+inner.ResultKey("t", ropts); got != want {
		t.Errorf("ResultKey = %s, want %s", got, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	k := NewScopedKeyer(nil, "x:")
	if !strings.HasPrefix(k.StatsKey("c", StatsKeyOpts{}), "x:stats:") {
		t.Error("nil inner should fall back to the default keyer")
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Dir() != dir {
		t.Errorf("Dir() = %s, want %s", c.Dir(), dir)
	}

	if _, hit, err := c.Get(ctx, "stats:a"); hit || err != nil {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, "stats:a", []byte("one"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "result:b", []byte("two"), 0); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "stats:a")
	if err != nil || !hit || string(data) != "one" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "stats:a"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "stats:a"); hit {
		t.Error("deleted entry still present")
	}
	if err := c.Delete(ctx, "stats:a"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if _, hit, _ := c.Get(ctx, "result:b"); hit {
		t.Error("entry survived Clear")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("expired entry: hit=%v err=%v", hit, err)
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestFileCacheCorrupt(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := c.path("k")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v", hit, err)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("KEYFORGE_TEST_REDIS")
	if addr == "" {
		t.Skip("KEYFORGE_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr, Prefix: "keyforge-test:"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	defer c.Clear(ctx)

	if err := c.Set(ctx, "stats:a", []byte("one"), time.Minute); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "stats:a")
	if err != nil || !hit || string(data) != "one" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, "stats:a"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "stats:a"); hit {
		t.Error("deleted entry still present")
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("Retryable should unwrap to the original error")
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(ErrNetwork) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	errPermanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, true, 1, false},
		{"permanent", 5, false, 1, true},
		{"retry once", 1, true, 2, false},
		{"exhausted", 5, true, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(ctx, time.Millisecond, func() error {
				calls++
				if calls <= tt.failures {
					if tt.retryable {
						return Retryable(ErrNetwork)
					}
					return errPermanent
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, time.Hour, func() error {
		return Retryable(ErrNetwork)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
