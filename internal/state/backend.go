package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/localdrop/pkg/db"
	"github.com/angelmondragon/localdrop/pkg/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backend is the durable storage behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryBackend keeps values for the lifetime of the process.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string]string{}}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	m.values = map[string]string{}
	m.mu.Unlock()
	return nil
}

type entry struct {
	Scope     string    `gorm:"column:scope;primaryKey"`
	Key       string    `gorm:"column:state_key;primaryKey"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entry) TableName() string { return "client_state" }

// SQLBackend stores values in the client_state table, one row per scope and key.
type SQLBackend struct {
	db    *gorm.DB
	scope string
	now   func() time.Time
}

// NewSQLBackend binds a backend to scope. The table must already be migrated.
func NewSQLBackend(client *db.Client, scope string) (*SQLBackend, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("db client is required")
	}
	return &SQLBackend{db: client.DB(), scope: scope, now: time.Now}, nil
}

func (s *SQLBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var row entry
	err := s.db.WithContext(ctx).
		Where(map[string]any{"scope": s.scope, "state_key": key}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *SQLBackend) Set(ctx context.Context, key, value string) error {
	row := entry{Scope: s.scope, Key: key, Value: value, UpdatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "state_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *SQLBackend) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where(map[string]any{"scope": s.scope, "state_key": key}).
		Delete(&entry{}).Error
}

func (s *SQLBackend) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where(map[string]any{"scope": s.scope}).
		Delete(&entry{}).Error
}

// RedisBackend stores values under the state namespace of a redis client.
type RedisBackend struct {
	client *redis.Client
	scope  string
}

func NewRedisBackend(client *redis.Client, scope string) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisBackend{client: client, scope: scope}, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.client.StateKey(r.scope, key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.StateKey(r.scope, key), value, 0)
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.StateKey(r.scope, key))
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	return r.client.DelPrefix(ctx, r.client.StatePrefix(r.scope))
}
