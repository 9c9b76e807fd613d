package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/metrics"
)

const (
	defaultPollInterval = 15 * time.Second
	pollLoop            = "tracking"
	msgOrderUnavailable = "Order details are unavailable"
)

// Source delivers order snapshots until the returned func is called.
type Source interface {
	Subscribe(ctx context.Context, orderID string, fn func(*gateway.Order, error)) func()
}

// Fetcher is the order detail call the poller repeats.
type Fetcher interface {
	OrderDetail(ctx context.Context, orderID string, langID string) (*gateway.OrderDetailResponse, error)
}

// Ticker abstracts time.Ticker so tests can drive ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

// PollerParams configure the order poller.
type PollerParams struct {
	Gateway   Fetcher
	Session   *state.Session
	Logger    *logger.Logger
	Metrics   *metrics.PollMetrics
	Interval  time.Duration
	NewTicker func(time.Duration) Ticker
}

// Poller fetches order detail on a fixed cadence. A tick is skipped while
// the previous fetch is outstanding, and failures are retried on the next
// tick without limit.
type Poller struct {
	gw        Fetcher
	session   *state.Session
	logg      *logger.Logger
	metrics   *metrics.PollMetrics
	interval  time.Duration
	newTicker func(time.Duration) Ticker
}

func NewPoller(p PollerParams) (*Poller, error) {
	if p.Gateway == nil {
		return nil, errors.New("order gateway is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.NewTicker == nil {
		p.NewTicker = newTimeTicker
	}
	return &Poller{
		gw:        p.Gateway,
		session:   p.Session,
		logg:      p.Logger,
		metrics:   p.Metrics,
		interval:  p.Interval,
		newTicker: p.NewTicker,
	}, nil
}

type subscription struct {
	orderID  string
	fn       func(*gateway.Order, error)
	inFlight atomic.Bool
	stopped  atomic.Bool
}

// Subscribe fetches immediately and then on every tick. Results that
// arrive after the returned func is called are dropped; the request itself
// is left to finish under the gateway timeout.
func (p *Poller) Subscribe(ctx context.Context, orderID string, fn func(*gateway.Order, error)) func() {
	runCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{orderID: orderID, fn: fn}
	go p.run(runCtx, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.stopped.Store(true)
			cancel()
		})
	}
}

func (p *Poller) run(ctx context.Context, sub *subscription) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.tick(ctx, sub)
		}
	}
}

func (p *Poller) tick(ctx context.Context, sub *subscription) {
	if sub.stopped.Load() {
		return
	}
	if !sub.inFlight.CompareAndSwap(false, true) {
		p.metrics.Tick(pollLoop, "skipped")
		return
	}
	go func() {
		defer sub.inFlight.Store(false)
		order, err := p.fetch(context.WithoutCancel(ctx), sub.orderID)
		if sub.stopped.Load() {
			p.metrics.Tick(pollLoop, "discarded")
			return
		}
		if err != nil {
			p.metrics.Tick(pollLoop, "error")
			p.logg.WarnErr(p.logg.WithOrderID(ctx, sub.orderID), "tracking.poll.failed", err)
		} else {
			p.metrics.Tick(pollLoop, "ok")
		}
		sub.fn(order, err)
	}()
}

func (p *Poller) fetch(ctx context.Context, orderID string) (*gateway.Order, error) {
	langID := state.NullLiteral
	if p.session != nil {
		langID = p.session.Snapshot(ctx).LangID
	}
	resp, err := p.gw.OrderDetail(ctx, orderID, langID)
	if err != nil {
		return nil, err
	}
	if !resp.OK() || resp.Order == nil {
		return nil, &gateway.Error{Message: resp.Failure(msgOrderUnavailable)}
	}
	return resp.Order, nil
}
