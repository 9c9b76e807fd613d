package state

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Ambient is the set of values the marketplace API expects on most calls.
// Absent values carry NullLiteral, matching the mobile client's wire format.
type Ambient struct {
	CartNo string
	UserID string
	LangID string
	CityID string
	Lat    string
	Lng    string
}

// HasCoordinates reports whether both coordinates are known.
func (a Ambient) HasCoordinates() bool {
	return a.Lat != NullLiteral && a.Lng != NullLiteral && a.Lat != "" && a.Lng != ""
}

// Session hands out ambient snapshots and guards the coordinate pair.
type Session struct {
	store *Store
	mu    sync.RWMutex
}

func NewSession(store *Store) (*Session, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	return &Session{store: store}, nil
}

func (s *Session) Store() *Store {
	return s.store
}

// Snapshot reads the ambient values. It waits for any coordinate override in progress.
func (s *Session) Snapshot(ctx context.Context) Ambient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(ctx)
}

func (s *Session) read(ctx context.Context) Ambient {
	return Ambient{
		CartNo: s.store.ValueOrNull(ctx, KeyCartNo),
		UserID: s.store.ValueOrNull(ctx, KeyUserID),
		LangID: s.store.ValueOrNull(ctx, KeyLangID),
		CityID: s.store.ValueOrNull(ctx, KeyCityID),
		Lat:    s.store.ValueOrNull(ctx, KeyLat),
		Lng:    s.store.ValueOrNull(ctx, KeyLng),
	}
}

// SetCoordinates records the last known position.
func (s *Session) SetCoordinates(ctx context.Context, lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Set(ctx, KeyLat, FormatCoordinate(lat))
	s.store.Set(ctx, KeyLng, FormatCoordinate(lng))
}

// WithCoordinates runs fn while lat/lng are substituted, then restores the
// previous values (or removes them if they were absent). No Snapshot can
// observe the substitute pair: the exclusive lock is held until restore.
func (s *Session) WithCoordinates(ctx context.Context, lat, lng string, fn func(Ambient) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevLat, hadLat := s.store.Get(ctx, KeyLat)
	prevLng, hadLng := s.store.Get(ctx, KeyLng)
	defer func() {
		restore(ctx, s.store, KeyLat, prevLat, hadLat)
		restore(ctx, s.store, KeyLng, prevLng, hadLng)
	}()

	s.store.Set(ctx, KeyLat, lat)
	s.store.Set(ctx, KeyLng, lng)
	return fn(s.read(ctx))
}

func restore(ctx context.Context, store *Store, key Key, value string, present bool) {
	if present {
		store.Set(ctx, key, value)
		return
	}
	store.Remove(ctx, key)
}

// FormatCoordinate renders a coordinate the way it is persisted.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseCoordinate reads a persisted coordinate; absent or "null" yields false.
func ParseCoordinate(raw string) (float64, bool) {
	if raw == "" || raw == NullLiteral {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
