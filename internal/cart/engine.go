package cart

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

const (
	msgAddFailed    = "Could not add this item, please try again"
	msgOutOfStock   = "This item is out of stock"
	msgLoadFailed   = "Could not load your cart, please try again"
	msgUpdateFailed = "Could not update your cart, please try again"
)

// handle bounds: 15 or 16 decimal digits.
const (
	minHandle int64 = 100_000_000_000_000
	maxHandle int64 = 9_999_999_999_999_999
)

// Gateway is the slice of the customer API the engine needs.
type Gateway interface {
	AddToCart(ctx context.Context, amb state.Ambient, req gateway.AddToCartRequest) (*gateway.CartResponse, error)
	GetCart(ctx context.Context, amb state.Ambient) (*gateway.CartResponse, error)
	UpdateCart(ctx context.Context, amb state.Ambient, lineID string, dir gateway.UpdateDirection) (*gateway.CartResponse, error)
	CartCount(ctx context.Context, amb state.Ambient) (int, error)
}

// Result is the outcome of a user-initiated cart action.
type Result struct {
	Success bool
	Message string
}

func ok() Result { return Result{Success: true} }

func failed(msg string) Result { return Result{Message: msg} }

// View is an immutable copy of the engine state.
type View struct {
	Handle    string
	Lines     []gateway.CartLine
	Summary   *gateway.CartSummary
	Count     int
	IsLoading bool
}

type Params struct {
	Gateway   Gateway
	Session   *state.Session
	Logger    *logger.Logger
	NewHandle func() string
}

// Engine owns the local read-through cache of the server cart. Every
// mutation is serialized and the server answer replaces lines and summary
// together.
type Engine struct {
	gw        Gateway
	session   *state.Session
	store     *state.Store
	logg      *logger.Logger
	newHandle func() string

	// serializes calls so an older answer can never overwrite a newer one
	callMu sync.Mutex

	mu      sync.RWMutex
	lines   []gateway.CartLine
	summary *gateway.CartSummary
	count   int
	loading int

	listenersMu sync.Mutex
	listeners   map[int]func(View)
	nextID      int
}

func NewEngine(p Params) (*Engine, error) {
	if p.Gateway == nil {
		return nil, errors.New("cart gateway is required")
	}
	if p.Session == nil {
		return nil, errors.New("session is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.NewHandle == nil {
		p.NewHandle = randomHandle
	}
	return &Engine{
		gw:        p.Gateway,
		session:   p.Session,
		store:     p.Session.Store(),
		logg:      p.Logger,
		newHandle: p.NewHandle,
		listeners: map[int]func(View){},
	}, nil
}

func randomHandle() string {
	return strconv.FormatInt(minHandle+rand.Int64N(maxHandle-minHandle+1), 10)
}

// Initialize returns the persisted handle, generating one if absent.
func (e *Engine) Initialize(ctx context.Context) string {
	if handle, ok := e.store.Get(ctx, state.KeyCartNo); ok && handle != "" {
		return handle
	}
	handle := e.newHandle()
	e.store.Set(ctx, state.KeyCartNo, handle)
	e.logg.Info(e.logg.WithCartHandle(ctx, handle), "cart.handle.created")
	return handle
}

// Add issues the add call and adopts the server projection on success.
func (e *Engine) Add(ctx context.Context, req gateway.AddToCartRequest) Result {
	e.Initialize(ctx)
	// Session before callMu, the order LoadWith callers inside WithCoordinates use.
	amb := e.session.Snapshot(ctx)

	e.callMu.Lock()
	defer e.callMu.Unlock()
	defer e.beginLoading()()

	resp, err := e.gw.AddToCart(ctx, amb, req)
	if err != nil {
		return failed(msgAddFailed)
	}
	if resp.OutOfStock() {
		return failed(resp.Failure(msgOutOfStock))
	}
	if !resp.OK() {
		return failed(resp.Failure(msgAddFailed))
	}
	e.apply(resp)
	return ok()
}

// Load fetches the cart priced for the ambient coordinates.
func (e *Engine) Load(ctx context.Context) Result {
	_, res := e.LoadWith(ctx, e.session.Snapshot(ctx))
	return res
}

// LoadWith fetches the cart with an explicit ambient snapshot. It is used
// while the session holds substituted coordinates.
func (e *Engine) LoadWith(ctx context.Context, amb state.Ambient) (*gateway.CartSummary, Result) {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	defer e.beginLoading()()

	resp, err := e.gw.GetCart(ctx, amb)
	if err != nil {
		return nil, failed(msgLoadFailed)
	}
	if !resp.OK() {
		return nil, failed(resp.Failure(msgLoadFailed))
	}
	e.apply(resp)
	return resp.Data.Summary, ok()
}

// UpdateLine steps a line quantity. Decrementing a quantity of one removes it.
func (e *Engine) UpdateLine(ctx context.Context, lineID string, dir gateway.UpdateDirection) Result {
	res := e.updateLine(ctx, lineID, dir)
	if res.Success {
		go e.RefreshCount(context.WithoutCancel(ctx))
	}
	return res
}

func (e *Engine) updateLine(ctx context.Context, lineID string, dir gateway.UpdateDirection) Result {
	amb := e.session.Snapshot(ctx)

	e.callMu.Lock()
	defer e.callMu.Unlock()
	defer e.beginLoading()()

	resp, err := e.gw.UpdateCart(ctx, amb, lineID, dir)
	if err != nil {
		return failed(msgUpdateFailed)
	}
	if resp.OutOfStock() {
		return failed(resp.Failure(msgOutOfStock))
	}
	if !resp.OK() {
		return failed(resp.Failure(msgUpdateFailed))
	}
	e.apply(resp)
	return ok()
}

// RefreshCount updates the badge count. Failures keep the previous count.
func (e *Engine) RefreshCount(ctx context.Context) {
	count, err := e.gw.CartCount(ctx, e.session.Snapshot(ctx))
	if err != nil {
		e.logg.WarnErr(ctx, "cart.count.refresh_failed", err)
		return
	}
	e.mu.Lock()
	e.count = count
	e.mu.Unlock()
	e.notify()
}

// Clear rotates the handle and drops the local cache.
func (e *Engine) Clear(ctx context.Context) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	handle := e.newHandle()
	e.store.Set(ctx, state.KeyCartNo, handle)

	e.mu.Lock()
	e.lines = nil
	e.summary = nil
	e.count = 0
	e.mu.Unlock()

	e.logg.Info(e.logg.WithCartHandle(ctx, handle), "cart.handle.rotated")
	e.notify()
}

// StageCheckout persists the current lines and summary for the checkout view.
func (e *Engine) StageCheckout(ctx context.Context) error {
	v := e.View(ctx)
	if len(v.Lines) == 0 || v.Summary == nil {
		return errors.New("cart is empty")
	}
	if v.Summary.StoreID != "" {
		e.store.Set(ctx, state.KeyStoreID, string(v.Summary.StoreID))
	}
	return e.store.SetJSON(ctx, state.KeyCheckoutData, Staged{Lines: v.Lines, Summary: *v.Summary})
}

// Staged is the snapshot handed from the cart view to checkout.
type Staged struct {
	Lines   []gateway.CartLine  `json:"items"`
	Summary gateway.CartSummary `json:"summary"`
}

func (e *Engine) View(ctx context.Context) View {
	handle, _ := e.store.Get(ctx, state.KeyCartNo)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewLocked(handle)
}

func (e *Engine) viewLocked(handle string) View {
	lines := make([]gateway.CartLine, len(e.lines))
	copy(lines, e.lines)
	var summary *gateway.CartSummary
	if e.summary != nil {
		s := *e.summary
		summary = &s
	}
	return View{Handle: handle, Lines: lines, Summary: summary, Count: e.count, IsLoading: e.loading > 0}
}

// Subscribe registers fn for every state change. fn runs on the caller's
// goroutine and must not call back into the engine or the session.
func (e *Engine) Subscribe(fn func(View)) func() {
	e.listenersMu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

// apply is the only writer of lines and summary.
func (e *Engine) apply(resp *gateway.CartResponse) {
	count := int(resp.Count)
	if count == 0 {
		count = len(resp.Data.Items)
	}
	e.mu.Lock()
	e.lines = resp.Data.Items
	e.summary = resp.Data.Summary
	e.count = count
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) beginLoading() func() {
	e.mu.Lock()
	e.loading++
	e.mu.Unlock()
	e.notify()
	return func() {
		e.mu.Lock()
		e.loading--
		e.mu.Unlock()
		e.notify()
	}
}

func (e *Engine) notify() {
	e.listenersMu.Lock()
	fns := make([]func(View), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.listenersMu.Unlock()
	if len(fns) == 0 {
		return
	}

	v := e.View(context.Background())
	for _, fn := range fns {
		fn(v)
	}
}
