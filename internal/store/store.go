package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fractal-lba/bestarm/internal/report"
)

// Store persists confidence reports keyed by input digest, error rate and
// reward bounds. The first live write for a key wins.
type Store interface {
	// Get returns the stored report, or nil if there is none.
	Get(ctx context.Context, key string) (*report.Report, error)

	// Put stores a report with a TTL unless the key already holds a live one.
	Put(ctx context.Context, key string, rep *report.Report, ttl time.Duration) error

	Close() error
}

// Key derives the store key of a report over one input. The reward bounds
// are part of the key since they change every normalized statistic.
func Key(digest string, errorRate, minReward, maxReward float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return digest + ":" + f(errorRate) + ":" + f(minReward) + ":" + f(maxReward)
}

// MemoryStore keeps reports in memory, optionally mirrored to a JSON
// snapshot file that is reloaded on start.
type MemoryStore struct {
	mu       sync.RWMutex
	store    map[string]*entry
	snapshot string
	now      func() time.Time
}

type entry struct {
	Report    *report.Report `json:"report"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewMemoryStore creates a memory store. An empty snapshotPath disables
// persistence.
func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	ms := &MemoryStore{
		store:    make(map[string]*entry),
		snapshot: snapshotPath,
		now:      time.Now,
	}
	if snapshotPath != "" {
		if err := ms.loadSnapshot(); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*report.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.store[key]
	if !ok || m.now().After(e.ExpiresAt) {
		return nil, nil
	}
	return e.Report, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, rep *report.Report, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, exists := m.store[key]; exists && m.now().Before(e.ExpiresAt) {
		return nil
	}
	m.store[key] = &entry{Report: rep, ExpiresAt: m.now().Add(ttl)}

	if m.snapshot != "" {
		return m.saveSnapshotLocked()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSnapshotLocked()
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot map[string]*entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	now := m.now()
	for k, v := range snapshot {
		if now.Before(v.ExpiresAt) {
			m.store[k] = v
		}
	}
	return nil
}

// saveSnapshotLocked writes live entries. Caller must hold m.mu.
func (m *MemoryStore) saveSnapshotLocked() error {
	now := m.now()
	toSave := make(map[string]*entry, len(m.store))
	for k, v := range m.store {
		if now.Before(v.ExpiresAt) {
			toSave[k] = v
		}
	}

	data, err := json.MarshalIndent(toSave, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.snapshot, data, 0600)
}
