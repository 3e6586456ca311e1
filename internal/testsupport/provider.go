package testsupport

import (
	"context"
	"sync"

	"mediaseal/internal/drm"
)

// FakeProvider is a scripted key provider for scheduler and facade tests.
// KeyFunc decides the pair returned per (period, label); the default
// derives deterministic material from both, so rotation tests can assert
// exact bytes.
type FakeProvider struct {
	KeyFunc func(periodIndex int, label string) drm.KeyPair
	Err     error

	mu           sync.Mutex
	initialCalls int
	periodCalls  int
}

// DeterministicKey derives a stable 16-byte pair from a period index and
// label, with the key bytes doubled relative to the ID bytes.
func DeterministicKey(periodIndex int, label string) drm.KeyPair {
	keyID := make([]byte, 16)
	key := make([]byte, 16)
	for i := range keyID {
		keyID[i] = byte(periodIndex)
		key[i] = byte(periodIndex * 2)
	}
	for i, c := range []byte(label) {
		keyID[i%16] ^= c
		key[i%16] ^= c
	}
	return drm.KeyPair{KeyID: keyID, Key: key}
}

func (f *FakeProvider) keyFor(periodIndex int, label string) drm.KeyPair {
	if f.KeyFunc != nil {
		return f.KeyFunc(periodIndex, label)
	}
	return DeterministicKey(periodIndex, label)
}

// FetchInitialKeys implements keyprovider.Provider.
func (f *FakeProvider) FetchInitialKeys(ctx context.Context, labels []string) (map[string]drm.KeyPair, error) {
	f.mu.Lock()
	f.initialCalls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make(map[string]drm.KeyPair, len(labels))
	for _, label := range labels {
		keys[label] = f.keyFor(0, label)
	}
	return keys, nil
}

// FetchKeysForPeriod implements keyprovider.Provider.
func (f *FakeProvider) FetchKeysForPeriod(ctx context.Context, periodIndex int, labels []string) (map[string]drm.KeyPair, error) {
	f.mu.Lock()
	f.periodCalls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make(map[string]drm.KeyPair, len(labels))
	for _, label := range labels {
		keys[label] = f.keyFor(periodIndex, label)
	}
	return keys, nil
}

// InitialCalls reports how many times FetchInitialKeys ran.
func (f *FakeProvider) InitialCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialCalls
}

// PeriodCalls reports how many times FetchKeysForPeriod ran.
func (f *FakeProvider) PeriodCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.periodCalls
}

// TotalCalls reports every provider invocation.
func (f *FakeProvider) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialCalls + f.periodCalls
}
