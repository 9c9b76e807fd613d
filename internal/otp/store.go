package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redisclient "github.com/angelmondragon/localdrop/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// ErrNoRecord is returned when no passcode is pending for an email.
var ErrNoRecord = errors.New("otp record not found")

// Record is a pending passcode. The code itself is only kept hashed.
type Record struct {
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
}

// Store keeps one record per normalized email.
type Store interface {
	Get(ctx context.Context, email string) (Record, error)
	// Put replaces any pending record. ttl bounds how long it may linger.
	Put(ctx context.Context, email string, rec Record, ttl time.Duration) error
	// Update rewrites a record without extending its lifetime.
	Update(ctx context.Context, email string, rec Record) error
	Delete(ctx context.Context, email string) error
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

// MemoryStore is the process-lifetime store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, now: now}
}

func (m *MemoryStore) Get(_ context.Context, email string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[email]
	if !ok {
		return Record{}, ErrNoRecord
	}
	return entry.rec, nil
}

func (m *MemoryStore) Put(_ context.Context, email string, rec Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	entry := memoryEntry{rec: rec}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	m.entries[email] = entry
	return nil
}

func (m *MemoryStore) Update(_ context.Context, email string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[email]
	if !ok {
		return ErrNoRecord
	}
	entry.rec = rec
	m.entries[email] = entry
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, email)
	return nil
}

type recordStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetKeepTTL(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type recordKeyer interface {
	OTPKey(email string) string
}

// RedisStore shares pending passcodes across API instances.
type RedisStore struct {
	store recordStore
	keyer recordKeyer
}

func NewRedisStore(client *redisclient.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{store: client, keyer: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, email string) (Record, error) {
	raw, err := r.store.Get(ctx, r.keyer.OTPKey(email))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return Record{}, ErrNoRecord
		}
		return Record{}, err
	}
	var rec Record
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode otp record: %w", err)
	}
	return rec, nil
}

func (r *RedisStore) Put(ctx context.Context, email string, rec Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.keyer.OTPKey(email), string(payload), ttl)
}

func (r *RedisStore) Update(ctx context.Context, email string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.SetKeepTTL(ctx, r.keyer.OTPKey(email), string(payload))
}

func (r *RedisStore) Delete(ctx context.Context, email string) error {
	return r.store.Del(ctx, r.keyer.OTPKey(email))
}
