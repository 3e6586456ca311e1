package rotation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediaseal/internal/drm"
	"mediaseal/internal/rotation"
	"mediaseal/internal/testsupport"
)

func TestNoRotationSingleInfinitePeriod(t *testing.T) {
	t.Parallel()

	// Raw-provider scenario: one default entry serves every label forever.
	k1 := drm.KeyPair{KeyID: []byte("K1______________"), Key: []byte("V1______________")}
	provider := &testsupport.FakeProvider{
		KeyFunc: func(int, string) drm.KeyPair { return k1.Clone() },
	}
	scheduler, err := rotation.New(provider, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, timestamp := range []time.Duration{0, 3 * time.Second, time.Hour} {
		for _, label := range []string{"SD", "HD", "AUDIO-STEREO"} {
			keys, err := scheduler.ActiveKeys(context.Background(), timestamp, []string{label})
			if err != nil {
				t.Fatalf("ActiveKeys(%s, %s): %v", timestamp, label, err)
			}
			if !keys[label].Equal(k1) {
				t.Fatalf("label %q at %s did not resolve to (K1, V1)", label, timestamp)
			}
		}
	}
	if provider.PeriodCalls() != 0 {
		t.Fatal("rotation disabled must never use the per-period fetch path")
	}
}

func TestRotationPeriodIndexing(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := scheduler.ActiveKeys(context.Background(), 25*time.Second, []string{"SD"})
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	want := testsupport.DeterministicKey(2, "SD")
	if !keys["SD"].Equal(want) {
		t.Fatalf("timestamp 25s must resolve period 2 keys, got id %x", keys["SD"].KeyID)
	}
}

func TestIdempotentWithinPeriod(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := scheduler.ActiveKeys(context.Background(), 21*time.Second, []string{"HD"})
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	second, err := scheduler.ActiveKeys(context.Background(), 29*time.Second, []string{"HD"})
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	if !first["HD"].Equal(second["HD"]) {
		t.Fatal("timestamps in the same period must yield identical keys")
	}
	if provider.PeriodCalls() != 1 {
		t.Fatalf("expected a single provider fetch, got %d", provider.PeriodCalls())
	}
}

func TestOutOfOrderTimestampsHitCache(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	early, err := scheduler.ActiveKeys(context.Background(), 5*time.Second, []string{"SD"})
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	if _, err := scheduler.ActiveKeys(context.Background(), 45*time.Second, []string{"SD"}); err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}

	// A late segment for period 0 must return the originally cached pair.
	replay, err := scheduler.ActiveKeys(context.Background(), 2*time.Second, []string{"SD"})
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	if !replay["SD"].Equal(early["SD"]) {
		t.Fatal("past period resolved to different keys")
	}
	if provider.PeriodCalls() != 2 {
		t.Fatalf("expected 2 fetches (periods 0 and 4), got %d", provider.PeriodCalls())
	}
}

func TestConcurrentCallersCoalesceToOneFetch(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	provider := &testsupport.FakeProvider{
		KeyFunc: func(periodIndex int, label string) drm.KeyPair {
			<-gate
			return testsupport.DeterministicKey(periodIndex, label)
		},
	}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const callers = 8
	results := make([]map[string]drm.KeyPair, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = scheduler.ActiveKeys(context.Background(), 12*time.Second, []string{"HD"})
		}(i)
	}
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i]["HD"].Equal(results[0]["HD"]) {
			t.Fatalf("caller %d observed different keys", i)
		}
	}
	if calls := provider.PeriodCalls(); calls != 1 {
		t.Fatalf("expected exactly one coalesced fetch, got %d", calls)
	}
}

func TestProviderFailurePropagates(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{Err: errors.New("license server down")}
	scheduler, err := rotation.New(provider, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := scheduler.ActiveKeys(context.Background(), 0, []string{"SD"}); !errors.Is(err, drm.ErrKeyProvider) {
		t.Fatalf("expected key provider error, got %v", err)
	}
}

func TestCancellationAbortsFetch(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{}
	scheduler, err := rotation.New(provider, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scheduler.ActiveKeys(ctx, 0, []string{"SD"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestInconsistentProviderDetected(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	provider := &testsupport.FakeProvider{
		KeyFunc: func(periodIndex int, label string) drm.KeyPair {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			pair := testsupport.DeterministicKey(periodIndex, label)
			// Same period, different material on the second fetch.
			pair.Key[0] = byte(n)
			return pair
		},
	}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := scheduler.ActiveKeys(context.Background(), 0, []string{"SD"}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	// Requesting a wider label set for the cached period re-fetches and
	// must notice the provider changed SD's key.
	_, err = scheduler.ActiveKeys(context.Background(), 0, []string{"SD", "HD"})
	if !errors.Is(err, drm.ErrRotationConsistency) {
		t.Fatalf("expected rotation consistency error, got %v", err)
	}
}

func TestPeriodsSnapshot(t *testing.T) {
	t.Parallel()

	provider := &testsupport.FakeProvider{}
	scheduler, err := rotation.New(provider, 10*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, timestamp := range []time.Duration{35 * time.Second, 5 * time.Second} {
		if _, err := scheduler.ActiveKeys(context.Background(), timestamp, []string{"SD"}); err != nil {
			t.Fatalf("ActiveKeys: %v", err)
		}
	}

	periods := scheduler.Periods()
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].Index != 0 || periods[1].Index != 3 {
		t.Fatalf("unexpected period ordering: %d, %d", periods[0].Index, periods[1].Index)
	}
	if periods[1].StartTime != 30*time.Second {
		t.Fatalf("unexpected start time %s", periods[1].StartTime)
	}
}
