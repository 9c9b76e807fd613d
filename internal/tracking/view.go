package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

const msgCancelled = "This order has been cancelled"

// Navigator moves the user away from the tracking view.
type Navigator interface {
	Home(notice string)
}

// Frame is one redraw of the tracking view.
type Frame struct {
	Order *gateway.Order
	State RenderState
	Trail []TrailPoint
}

// ViewParams configure a tracking view.
type ViewParams struct {
	Source    Source
	Navigator Navigator
	OnFrame   func(Frame)
	Logger    *logger.Logger
	Now       func() time.Time
}

// View renders whatever status the source reports. The only side effect
// tied to a status is leaving the view once the order is cancelled.
type View struct {
	source    Source
	navigator Navigator
	onFrame   func(Frame)
	logg      *logger.Logger
	trail     *Trail

	// emitMu serializes result handling with Open's reset.
	emitMu sync.Mutex

	mu          sync.Mutex
	gen         uint64
	unsubscribe func()
	last        *Frame
	redirected  bool
}

func NewView(p ViewParams) (*View, error) {
	if p.Source == nil {
		return nil, errors.New("order source is required")
	}
	if p.Navigator == nil {
		return nil, errors.New("navigator is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.OnFrame == nil {
		p.OnFrame = func(Frame) {}
	}
	return &View{
		source:    p.Source,
		navigator: p.Navigator,
		onFrame:   p.OnFrame,
		logg:      p.Logger,
		trail:     NewTrail(p.Now),
	}, nil
}

// Open starts tracking orderID. Opening an open view replaces the previous
// subscription, and results still in flight for it are dropped. OnFrame must
// not call Open.
func (v *View) Open(ctx context.Context, orderID string) {
	v.Close()
	ctx = v.logg.WithOrderID(ctx, orderID)

	v.emitMu.Lock()
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.trail.Reset()
	v.last = nil
	v.redirected = false
	v.mu.Unlock()
	v.emitMu.Unlock()

	unsubscribe := v.source.Subscribe(ctx, orderID, func(order *gateway.Order, err error) {
		v.handle(ctx, gen, order, err)
	})

	v.mu.Lock()
	v.unsubscribe = unsubscribe
	v.mu.Unlock()
}

// Close stops polling. Safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	v.gen++
	unsubscribe := v.unsubscribe
	v.unsubscribe = nil
	v.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns the last rendered frame.
func (v *View) Current() (Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.last == nil {
		return Frame{}, false
	}
	return *v.last, true
}

func (v *View) handle(ctx context.Context, gen uint64, order *gateway.Order, err error) {
	if err != nil || order == nil {
		// keep the previous frame
		return
	}

	v.emitMu.Lock()
	v.mu.Lock()
	if v.gen != gen || v.redirected {
		v.mu.Unlock()
		v.emitMu.Unlock()
		return
	}

	if Status(order.Status) == StatusCancelled {
		v.redirected = true
		v.mu.Unlock()
		v.emitMu.Unlock()
		v.logg.Info(ctx, "tracking.order.cancelled")
		v.Close()
		v.navigator.Home(msgCancelled)
		return
	}

	rs := Render(order)
	if rs.RiderMarker != nil {
		v.trail.Observe(*rs.RiderMarker)
	}
	frame := Frame{Order: order, State: rs, Trail: v.trail.Points()}
	v.last = &frame
	v.mu.Unlock()

	v.onFrame(frame)
	v.emitMu.Unlock()
}
