package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"go.uber.org/multierr"
)

// Change describes a single write observed by subscribers.
type Change struct {
	Key     Key
	Value   string
	Removed bool
	Cleared bool
}

// Store is the persisted client state shared by every component.
// Reads never fail: a backend error is logged and reported as absent.
type Store struct {
	backend Backend
	logg    *logger.Logger

	mu        sync.RWMutex
	listeners map[int]func(Change)
	nextID    int
}

func NewStore(backend Backend, logg *logger.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("state backend is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{backend: backend, logg: logg, listeners: map[int]func(Change){}}, nil
}

// Get returns the value and whether it was present.
func (s *Store) Get(ctx context.Context, key Key) (string, bool) {
	v, ok, err := s.backend.Get(ctx, string(key))
	if err != nil {
		s.warn(ctx, key, "state.get.failed", err)
		return "", false
	}
	return v, ok
}

// ValueOrNull returns the stored value or the literal "null" when absent.
func (s *Store) ValueOrNull(ctx context.Context, key Key) string {
	if v, ok := s.Get(ctx, key); ok {
		return v
	}
	return NullLiteral
}

func (s *Store) Set(ctx context.Context, key Key, value string) {
	if err := s.backend.Set(ctx, string(key), value); err != nil {
		s.warn(ctx, key, "state.set.failed", err)
		return
	}
	s.notify(Change{Key: key, Value: value})
}

// Remove deletes every key given. Missing keys are not an error.
func (s *Store) Remove(ctx context.Context, keys ...Key) {
	var errs error
	for _, key := range keys {
		if err := s.backend.Remove(ctx, string(key)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		s.notify(Change{Key: key, Removed: true})
	}
	if errs != nil {
		s.warn(ctx, "", "state.remove.failed", errs)
	}
}

// Clear wipes the whole store.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Clear(ctx); err != nil {
		s.warn(ctx, "", "state.clear.failed", err)
		return
	}
	s.notify(Change{Cleared: true})
}

// warn logs a backend failure with its decoded driver details.
func (s *Store) warn(ctx context.Context, key Key, event string, err error) {
	fields := pkgerrors.Dump(err).Fields()
	if key != "" {
		fields["state_key"] = string(key)
	}
	s.logg.WarnErr(s.logg.WithFields(ctx, fields), event, err)
}

// GetJSON decodes a JSON blob into dst. It reports false when the key is
// absent or the blob is unreadable.
func (s *Store) GetJSON(ctx context.Context, key Key, dst any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "state_key", string(key)), "state.decode.failed", err)
		return false
	}
	return true
}

func (s *Store) SetJSON(ctx context.Context, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Set(ctx, key, string(raw))
	return nil
}

// Subscribe registers fn for every successful write and returns its cancel func.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
