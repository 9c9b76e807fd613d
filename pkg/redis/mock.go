package redis

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockCmdable is an in-process stand-in for a redis connection used by tests
// across packages. Expiry is recorded but never enforced.
type MockCmdable struct {
	mu          sync.Mutex
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

// NewMockCmdable returns an empty mock.
func NewMockCmdable() *MockCmdable {
	return &MockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

// NewWithCmdable wraps a mock (or any compatible connection) in a Client.
func NewWithCmdable(store cmdable) *Client {
	return &Client{store: store}
}

// Keys returns the sorted keys currently stored.
func (m *MockCmdable) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *MockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *MockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *MockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *MockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *MockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			removed++
		}
		delete(m.data, key)
		delete(m.incr, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (m *MockCmdable) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if ok, _ := path.Match(match, k); ok || (strings.HasSuffix(match, "*") && strings.HasPrefix(k, strings.TrimSuffix(match, "*"))) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	cmd := redis.NewScanCmd(context.Background(), nil)
	cmd.SetVal(keys, 0)
	return cmd
}
