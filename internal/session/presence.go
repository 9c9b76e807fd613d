package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/metrics"
)

const (
	defaultPushInterval = 10 * time.Second
	pushLoop            = "rider_push"
	msgRiderLoggedOut   = "Please log in as a rider first"
	msgStatusFailed     = "Could not update your status, please try again"
)

// Geolocator is a continuous location source. The returned stop func must
// release the underlying sampler.
type Geolocator interface {
	Watch(ctx context.Context, fn func(lat, lng float64)) (stop func(), err error)
}

// StatusPusher is the rider setStatus call.
type StatusPusher interface {
	SetStatus(ctx context.Context, riderID string, online bool, lat, lng string) (*gateway.Envelope, error)
}

// PresenceParams configure rider presence tracking.
type PresenceParams struct {
	Gateway    StatusPusher
	Session    *state.Session
	Geolocator Geolocator
	Logger     *logger.Logger
	Metrics    *metrics.PollMetrics
	Interval   time.Duration
	NewTicker  func(time.Duration) (<-chan time.Time, func())
}

// RiderPresence owns the online toggle: while online it samples location
// into the session and pushes status on a fixed cadence.
type RiderPresence struct {
	gw        StatusPusher
	session   *state.Session
	store     *state.Store
	geo       Geolocator
	logg      *logger.Logger
	metrics   *metrics.PollMetrics
	interval  time.Duration
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu        sync.Mutex
	cancel    context.CancelFunc
	stopWatch func()
	done      chan struct{}
}

func NewRiderPresence(p PresenceParams) (*RiderPresence, error) {
	if p.Gateway == nil {
		return nil, errors.New("rider gateway is required")
	}
	if p.Session == nil {
		return nil, errors.New("session is required")
	}
	if p.Geolocator == nil {
		return nil, errors.New("geolocator is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Interval <= 0 {
		p.Interval = defaultPushInterval
	}
	if p.NewTicker == nil {
		p.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &RiderPresence{
		gw:        p.Gateway,
		session:   p.Session,
		store:     p.Session.Store(),
		geo:       p.Geolocator,
		logg:      p.Logger,
		metrics:   p.Metrics,
		interval:  p.Interval,
		newTicker: p.NewTicker,
	}, nil
}

// Online reports whether the sampler and push loop are running.
func (r *RiderPresence) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// SetOnline tells the server about the toggle and, once accepted, starts or
// tears down location sampling.
func (r *RiderPresence) SetOnline(ctx context.Context, online bool) Result {
	riderID, ok := r.store.Get(ctx, state.KeyRiderID)
	if !ok || riderID == "" {
		return Result{Message: msgRiderLoggedOut}
	}
	ctx = r.logg.WithUserID(r.logg.WithRole(ctx, RiderKeys.Role), riderID)

	amb := r.session.Snapshot(ctx)
	resp, err := r.gw.SetStatus(ctx, riderID, online, amb.Lat, amb.Lng)
	if err != nil {
		return Result{Message: gateway.Normalize(err).Message}
	}
	if !resp.OK() {
		return Result{Message: resp.Failure(msgStatusFailed)}
	}

	if online {
		r.store.Set(ctx, state.KeyRiderOnline, "1")
		r.start(ctx, riderID)
	} else {
		r.store.Set(ctx, state.KeyRiderOnline, "0")
		r.stop()
	}
	return Result{Success: true}
}

// Resume restarts sampling after a reload when the persisted toggle is on.
func (r *RiderPresence) Resume(ctx context.Context) bool {
	riderID, ok := r.store.Get(ctx, state.KeyRiderID)
	if !ok || riderID == "" {
		return false
	}
	if v, _ := r.store.Get(ctx, state.KeyRiderOnline); v != "1" {
		return false
	}
	r.start(r.logg.WithUserID(ctx, riderID), riderID)
	return true
}

// Close stops sampling without changing the persisted toggle.
func (r *RiderPresence) Close() {
	r.stop()
}

func (r *RiderPresence) start(ctx context.Context, riderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopWatch, err := r.geo.Watch(runCtx, func(lat, lng float64) {
		r.session.SetCoordinates(runCtx, lat, lng)
	})
	if err != nil {
		// keep pushing the last known coordinates
		r.logg.WarnErr(runCtx, "rider.location.watch_failed", err)
		stopWatch = func() {}
	}
	done := make(chan struct{})
	r.cancel, r.stopWatch, r.done = cancel, stopWatch, done
	go r.pushLoop(runCtx, riderID, done)
}

func (r *RiderPresence) stop() {
	r.mu.Lock()
	cancel, stopWatch, done := r.cancel, r.stopWatch, r.done
	r.cancel, r.stopWatch, r.done = nil, nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	stopWatch()
	cancel()
	<-done
}

func (r *RiderPresence) pushLoop(ctx context.Context, riderID string, done chan struct{}) {
	defer close(done)
	tick, stopTicker := r.newTicker(r.interval)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.push(ctx, riderID)
		}
	}
}

func (r *RiderPresence) push(ctx context.Context, riderID string) {
	amb := r.session.Snapshot(ctx)
	resp, err := r.gw.SetStatus(ctx, riderID, true, amb.Lat, amb.Lng)
	switch {
	case err != nil:
		r.metrics.Tick(pushLoop, "error")
		r.logg.WarnErr(ctx, "rider.location.push_failed", err)
	case !resp.OK():
		r.metrics.Tick(pushLoop, "error")
		r.logg.Warn(ctx, "rider.location.push_rejected")
	default:
		r.metrics.Tick(pushLoop, "ok")
	}
}
