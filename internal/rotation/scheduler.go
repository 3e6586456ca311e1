package rotation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider"
)

// Scheduler resolves active keys per crypto period. A zero rotation period
// disables rotation: every timestamp maps to a single infinite period
// fetched once via the provider's initial-keys path.
type Scheduler struct {
	provider keyprovider.Provider
	period   time.Duration

	mu      sync.Mutex
	periods map[int]drm.CryptoPeriod

	group singleflight.Group
}

// New creates a scheduler for the given provider and rotation period.
func New(provider keyprovider.Provider, period time.Duration) (*Scheduler, error) {
	if provider == nil {
		return nil, drm.Wrap(drm.ErrConfiguration, "rotation", "new", "a key provider is required", nil)
	}
	if period < 0 {
		return nil, drm.Wrap(drm.ErrConfiguration, "rotation", "new", "crypto period must not be negative", nil)
	}
	return &Scheduler{
		provider: provider,
		period:   period,
		periods:  make(map[int]drm.CryptoPeriod),
	}, nil
}

// PeriodIndex computes the crypto period index for a timestamp. Index 0
// covers everything when rotation is disabled.
func (s *Scheduler) PeriodIndex(timestamp time.Duration) int {
	if s.period <= 0 {
		return 0
	}
	return int(timestamp / s.period)
}

// ActiveKeys resolves the key for each label at the given timestamp.
func (s *Scheduler) ActiveKeys(ctx context.Context, timestamp time.Duration, labels []string) (map[string]drm.KeyPair, error) {
	period, err := s.ActivePeriod(ctx, timestamp, labels)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]drm.KeyPair, len(labels))
	for _, label := range labels {
		keys[label] = period.Keys[label].Clone()
	}
	return keys, nil
}

// ActivePeriod resolves the crypto period covering the timestamp,
// materializing it at most once per index. Two calls mapping to the same
// index always observe identical keys.
func (s *Scheduler) ActivePeriod(ctx context.Context, timestamp time.Duration, labels []string) (drm.CryptoPeriod, error) {
	if timestamp < 0 {
		return drm.CryptoPeriod{}, drm.Wrap(drm.ErrKeyProvider, "rotation", "resolve", fmt.Sprintf("negative timestamp %s", timestamp), nil)
	}
	if len(labels) == 0 {
		return drm.CryptoPeriod{}, drm.Wrap(drm.ErrKeyProvider, "rotation", "resolve", "at least one stream label is required", nil)
	}
	index := s.PeriodIndex(timestamp)

	if period, ok := s.cached(index, labels); ok {
		return period, nil
	}

	// Coalesce concurrent fetches for the same (index, label set). The
	// provider call runs once; everyone blocked here shares its outcome.
	_, err, _ := s.group.Do(flightKey(index, labels), func() (any, error) {
		return nil, s.materialize(ctx, index, labels)
	})
	if err != nil {
		return drm.CryptoPeriod{}, err
	}

	period, ok := s.cached(index, labels)
	if !ok {
		return drm.CryptoPeriod{}, drm.Wrap(drm.ErrKeyProvider, "rotation", "resolve", fmt.Sprintf("period %d did not materialize", index), nil)
	}
	return period, nil
}

// Periods returns a snapshot of every materialized period, ordered by
// index. Intended for diagnostics and audit output.
func (s *Scheduler) Periods() []drm.CryptoPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]drm.CryptoPeriod, 0, len(s.periods))
	for _, period := range s.periods {
		snapshot = append(snapshot, drm.CryptoPeriod{
			Index:     period.Index,
			StartTime: period.StartTime,
			Keys:      period.CloneKeys(),
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Index < snapshot[j].Index })
	return snapshot
}

func (s *Scheduler) cached(index int, labels []string) (drm.CryptoPeriod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[index]
	if !ok {
		return drm.CryptoPeriod{}, false
	}
	for _, label := range labels {
		if _, ok := period.Keys[label]; !ok {
			return drm.CryptoPeriod{}, false
		}
	}
	return drm.CryptoPeriod{
		Index:     period.Index,
		StartTime: period.StartTime,
		Keys:      period.CloneKeys(),
	}, true
}

// materialize fetches keys for every requested label and merges them into
// the period cache. The provider call happens without holding the lock.
func (s *Scheduler) materialize(ctx context.Context, index int, labels []string) error {
	var fetched map[string]drm.KeyPair
	var err error
	if s.period <= 0 {
		fetched, err = s.provider.FetchInitialKeys(ctx, labels)
	} else {
		fetched, err = s.provider.FetchKeysForPeriod(ctx, index, labels)
	}
	if err != nil {
		return drm.Wrap(drm.ErrKeyProvider, "rotation", "fetch", fmt.Sprintf("period %d", index), err)
	}
	for _, label := range labels {
		if pair, ok := fetched[label]; !ok || pair.IsZero() {
			return drm.Wrap(drm.ErrKeyProvider, "rotation", "fetch", fmt.Sprintf("provider returned no key for label %q in period %d", label, index), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[index]
	if !ok {
		period = drm.CryptoPeriod{
			Index:     index,
			StartTime: time.Duration(index) * s.period,
			Keys:      make(map[string]drm.KeyPair, len(labels)),
		}
	}

	// Periods are immutable to readers: build a superseding key map rather
	// than mutating the one snapshots may reference.
	merged := make(map[string]drm.KeyPair, len(period.Keys)+len(labels))
	for label, pair := range period.Keys {
		merged[label] = pair
	}
	for _, label := range labels {
		pair := fetched[label].Clone()
		if existing, ok := merged[label]; ok && !existing.Equal(pair) {
			return drm.Wrap(drm.ErrRotationConsistency, "rotation", "fetch",
				fmt.Sprintf("provider returned different keys for label %q in period %d", label, index), nil)
		}
		merged[label] = pair
	}
	period.Keys = merged
	s.periods[index] = period
	return nil
}

func flightKey(index int, labels []string) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)
	return strconv.Itoa(index) + "|" + strings.Join(sorted, "\x00")
}
