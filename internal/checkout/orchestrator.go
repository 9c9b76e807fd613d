package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	msgEmpty          = "Your cart is empty"
	msgAccountFailed  = "Could not load your account details"
	msgNotReady       = "Checkout is not ready yet"
	msgBusy           = "Please wait while the delivery charge is updated"
	msgPickupOnly     = "Addresses only apply to delivery orders"
	msgUnknownAddress = "Please choose one of your saved addresses"
	msgNeedAddress    = "Please select a delivery address"
	msgNeedSchedule   = "Please choose a delivery time"
	msgNeedCard       = "Please complete your card details"
	msgNeedProof      = "Please upload your proof of payment"
	msgNeedLogin      = "Please log in to place your order"
	msgNoStore        = "We could not determine the store for this order. Please reload your cart and try again"
	msgRepriceFailed  = "Could not update the delivery charge for this address"
	msgSubmitFailed   = "Could not place your order, please try again"
)

// StoreSentinel is the unresolved store id.
const StoreSentinel = "0"

// Fulfilment selects delivery or pickup.
type Fulfilment string

const (
	FulfilmentDelivery Fulfilment = "delivery"
	FulfilmentPickup   Fulfilment = "pickup"
)

// Timing is the order timing mode.
type Timing string

const (
	TimingNow      Timing = "now"
	TimingSchedule Timing = "schedule"
)

// Gateway is the slice of the customer API checkout needs.
type Gateway interface {
	UserInfo(ctx context.Context, userID string) (*gateway.UserInfoResponse, error)
	Addresses(ctx context.Context, userID string) ([]gateway.Address, error)
	Wallet(ctx context.Context, userID string) (*gateway.WalletResponse, error)
	PlaceOrder(ctx context.Context, req gateway.OrderRequest, proof *gateway.Attachment) (*gateway.PlaceOrderResponse, error)
}

// Cart reprices and rotates the cart.
type Cart interface {
	LoadWith(ctx context.Context, amb state.Ambient) (*gateway.CartSummary, cart.Result)
	Clear(ctx context.Context)
}

type Params struct {
	Gateway Gateway
	Cart    Cart
	Session *state.Session
	Logger  *logger.Logger
	Now     func() time.Time
}

// Result mirrors cart.Result for checkout actions.
type Result = cart.Result

// SubmitResult carries the placed order id on success.
type SubmitResult struct {
	Result
	OrderID string
}

// Confirmation is staged under order_confirm after a successful submit.
type Confirmation struct {
	OrderID       string          `json:"order_id"`
	Total         decimal.Decimal `json:"total"`
	Payable       decimal.Decimal `json:"payable"`
	ECash         decimal.Decimal `json:"ecash"`
	PaymentMethod PaymentMethod   `json:"payment"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// Orchestrator recomputes checkout from the staged cart whenever an input changes.
type Orchestrator struct {
	gw      Gateway
	cart    Cart
	session *state.Session
	store   *state.Store
	logg    *logger.Logger
	now     func() time.Time

	// set while the coordinate swap or a submit is outstanding
	busy atomic.Bool

	mu           sync.Mutex
	prepared     bool
	quote        Quote
	summaryStore string
	summaryFlat  string
	profileStore string
	profileFlat  string
	wallet       decimal.Decimal
	ecash        bool
	addresses    []gateway.Address
	addressID    string
	fulfilment   Fulfilment
	timing       Timing
	scheduledAt  string
	comment      string
	method       PaymentMethod
	card         Card
	proof        *Proof
}

func New(p Params) (*Orchestrator, error) {
	if p.Gateway == nil {
		return nil, errors.New("checkout gateway is required")
	}
	if p.Cart == nil {
		return nil, errors.New("cart is required")
	}
	if p.Session == nil {
		return nil, errors.New("session is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Orchestrator{
		gw:         p.Gateway,
		cart:       p.Cart,
		session:    p.Session,
		store:      p.Session.Store(),
		logg:       p.Logger,
		now:        p.Now,
		fulfilment: FulfilmentDelivery,
		timing:     TimingNow,
		method:     PaymentCash,
		wallet:     decimal.Zero,
	}, nil
}

// Prepare loads the staged snapshot and, when signed in, the profile,
// saved addresses and wallet balance.
func (o *Orchestrator) Prepare(ctx context.Context) Result {
	var staged cart.Staged
	if !o.store.GetJSON(ctx, state.KeyCheckoutData, &staged) || len(staged.Lines) == 0 {
		return Result{Message: msgEmpty}
	}

	quote := quoteFromSummary(staged.Lines, staged.Summary)
	var summaryStore string
	if staged.Summary.Store != nil {
		summaryStore = string(staged.Summary.Store.ID)
	}

	// The staged quote is priced for the ambient coordinates, so a previous
	// address selection no longer matches it.
	o.mu.Lock()
	o.quote = quote
	o.summaryStore = summaryStore
	o.summaryFlat = string(staged.Summary.StoreID)
	o.addressID = ""
	o.prepared = true
	o.mu.Unlock()

	userID, ok := o.store.Get(ctx, state.KeyUserID)
	if !ok || userID == "" {
		return Result{Success: true}
	}

	var (
		info      *gateway.UserInfoResponse
		addresses []gateway.Address
		wallet    *gateway.WalletResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = o.gw.UserInfo(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		addresses, err = o.gw.Addresses(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		wallet, err = o.gw.Wallet(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		o.logg.WarnErr(o.logg.WithUserID(ctx, userID), "checkout.prepare.account_failed", err)
		return Result{Message: msgAccountFailed}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.addresses = addresses
	if info != nil && info.OK() {
		if info.Store != nil {
			o.profileStore = string(info.Store.ID)
			if info.Store.Tax.IsPositive() {
				o.quote.Tax = storeTax(o.quote.ItemTotal, info.Store.Tax.Decimal)
				if info.Store.TaxName != "" {
					o.quote.TaxName = info.Store.TaxName
				}
			}
		}
		o.profileFlat = string(info.StoreID)
		if info.User != nil {
			o.wallet = info.User.Wallet.Decimal
		}
	}
	if wallet != nil && wallet.OK() {
		o.wallet = wallet.Balance.Decimal
	}
	return Result{Success: true}
}

func (o *Orchestrator) Quote() Quote {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quote
}

func (o *Orchestrator) Addresses() []gateway.Address {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]gateway.Address, len(o.addresses))
	copy(out, o.addresses)
	return out
}

// Totals returns the payable amount after the wallet offset.
func (o *Orchestrator) Totals() Totals {
	o.mu.Lock()
	defer o.mu.Unlock()
	return offset(o.quote.Total(), o.wallet, o.ecash)
}

// SetECash toggles the wallet offset. It only changes the local display.
func (o *Orchestrator) SetECash(enabled bool) Totals {
	o.mu.Lock()
	o.ecash = enabled
	o.mu.Unlock()
	return o.Totals()
}

func (o *Orchestrator) SetFulfilment(f Fulfilment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfilment = f
	if f == FulfilmentPickup {
		o.addressID = ""
	}
}

func (o *Orchestrator) SetTiming(t Timing, scheduledAt string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timing = t
	o.scheduledAt = strings.TrimSpace(scheduledAt)
}

func (o *Orchestrator) SetComment(comment string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.comment = strings.TrimSpace(comment)
}

func (o *Orchestrator) SetPaymentMethod(m PaymentMethod) error {
	if !m.IsValid() {
		return errors.New("unknown payment method")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.method = m
	return nil
}

func (o *Orchestrator) SetCard(c Card) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.card = c.normalized()
}

// AttachProof validates and keeps a proof-of-payment upload.
func (o *Orchestrator) AttachProof(filename string, data []byte) error {
	proof, err := NewProof(filename, data)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.proof = proof
	return nil
}

// Busy reports an outstanding reprice or submit.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// SelectAddress reprices the cart for the address's coordinates. The ambient
// coordinates are swapped for the single reprice call and restored after.
func (o *Orchestrator) SelectAddress(ctx context.Context, addressID string) Result {
	o.mu.Lock()
	fulfilment := o.fulfilment
	var addr *gateway.Address
	for i := range o.addresses {
		if string(o.addresses[i].ID) == addressID {
			a := o.addresses[i]
			addr = &a
			break
		}
	}
	o.mu.Unlock()

	if fulfilment != FulfilmentDelivery {
		return Result{Message: msgPickupOnly}
	}
	if addr == nil {
		return Result{Message: msgUnknownAddress}
	}
	if !o.busy.CompareAndSwap(false, true) {
		return Result{Message: msgBusy}
	}
	defer o.busy.Store(false)

	var (
		summary *gateway.CartSummary
		res     cart.Result
	)
	lat := state.FormatCoordinate(float64(addr.Lat))
	lng := state.FormatCoordinate(float64(addr.Lng))
	err := o.session.WithCoordinates(ctx, lat, lng, func(amb state.Ambient) error {
		summary, res = o.cart.LoadWith(ctx, amb)
		if !res.Success {
			return errors.New(res.Message)
		}
		return nil
	})
	if err != nil {
		msg := res.Message
		if msg == "" {
			msg = msgRepriceFailed
		}
		return Result{Message: msg}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.addressID = addressID
	if summary != nil {
		o.quote.Delivery = summary.DeliveryCharge.Decimal
		o.quote.Discount = summary.Discount.Decimal
		if summary.Store != nil {
			o.summaryStore = string(summary.Store.ID)
		}
		if summary.StoreID != "" {
			o.summaryFlat = string(summary.StoreID)
		}
	}
	return Result{Success: true}
}

// CanSubmit reports whether the active payment method's requirements are met.
func (o *Orchestrator) CanSubmit() (bool, string) {
	if o.busy.Load() {
		return false, msgBusy
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canSubmitLocked()
}

func (o *Orchestrator) canSubmitLocked() (bool, string) {
	if !o.prepared {
		return false, msgNotReady
	}
	if o.fulfilment == FulfilmentDelivery && o.addressID == "" {
		return false, msgNeedAddress
	}
	if o.timing == TimingSchedule && o.scheduledAt == "" {
		return false, msgNeedSchedule
	}
	switch o.method {
	case PaymentCard:
		if len(missingCardFields(o.card)) > 0 {
			return false, msgNeedCard
		}
	case PaymentQR:
		if o.proof == nil {
			return false, msgNeedProof
		}
	}
	return true, ""
}

// Submit places the order. Nothing is sent when a gate is not satisfied or
// the store cannot be resolved.
func (o *Orchestrator) Submit(ctx context.Context) SubmitResult {
	if ok, msg := o.CanSubmit(); !ok {
		return SubmitResult{Result: Result{Message: msg}}
	}
	userID, ok := o.store.Get(ctx, state.KeyUserID)
	if !ok || userID == "" {
		return SubmitResult{Result: Result{Message: msgNeedLogin}}
	}
	persisted, _ := o.store.Get(ctx, state.KeyStoreID)

	o.mu.Lock()
	storeID := resolveStoreID(o.summaryStore, o.profileStore, o.summaryFlat, o.profileFlat, persisted)
	o.mu.Unlock()
	if storeID == StoreSentinel {
		return SubmitResult{Result: Result{Message: msgNoStore}}
	}

	if !o.busy.CompareAndSwap(false, true) {
		return SubmitResult{Result: Result{Message: msgBusy}}
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	totals := offset(o.quote.Total(), o.wallet, o.ecash)
	req := gateway.OrderRequest{
		UserID:        userID,
		CartNo:        o.store.ValueOrNull(ctx, state.KeyCartNo),
		StoreID:       storeID,
		PaymentMethod: string(o.method),
		Timing:        string(o.timing),
		ECash:         gateway.NewAmount(totals.ECash),
		Total:         gateway.NewAmount(totals.Total),
		Comment:       o.comment,
	}
	if o.timing == TimingSchedule {
		req.ScheduledAt = o.scheduledAt
	}
	if o.fulfilment == FulfilmentPickup {
		req.Pickup = 1
	} else {
		req.AddressID = o.addressID
	}
	if o.method == PaymentCard {
		req.CardNumber = o.card.Number
		req.CardExpMonth = o.card.ExpMonth
		req.CardExpYear = o.card.ExpYear
		req.CardCVV = o.card.CVV
	}
	var attachment *gateway.Attachment
	if o.method == PaymentQR && o.proof != nil {
		attachment = &gateway.Attachment{Field: "proof", Filename: o.proof.Filename, ContentType: o.proof.ContentType, Data: o.proof.Data}
	}
	method := o.method
	o.mu.Unlock()

	resp, err := o.gw.PlaceOrder(ctx, req, attachment)
	if err != nil {
		return SubmitResult{Result: Result{Message: serverMessage(err, msgSubmitFailed)}}
	}
	if !resp.OK() || resp.OrderID == "" {
		return SubmitResult{Result: Result{Message: resp.Failure(msgSubmitFailed)}}
	}

	orderID := string(resp.OrderID)
	if err := o.store.SetJSON(ctx, state.KeyOrderConfirm, Confirmation{
		OrderID:       orderID,
		Total:         totals.Total,
		Payable:       totals.Payable,
		ECash:         totals.ECash,
		PaymentMethod: method,
		PlacedAt:      o.now().UTC(),
	}); err != nil {
		o.logg.WarnErr(o.logg.WithOrderID(ctx, orderID), "checkout.confirmation.stage_failed", err)
	}
	o.store.Remove(ctx, state.KeyCheckoutData)
	o.cart.Clear(ctx)

	o.mu.Lock()
	o.prepared = false
	o.ecash = false
	o.proof = nil
	o.card = Card{}
	o.mu.Unlock()

	o.logg.Info(o.logg.WithOrderID(ctx, orderID), "checkout.order.placed")
	return SubmitResult{Result: Result{Success: true}, OrderID: orderID}
}

// resolveStoreID returns the first usable candidate or the sentinel.
func resolveStoreID(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && c != StoreSentinel && c != state.NullLiteral {
			return c
		}
	}
	return StoreSentinel
}

// serverMessage keeps a message the server sent with an error status.
func serverMessage(err error, fallback string) string {
	gerr := gateway.Normalize(err)
	if gerr == nil || gerr.Status == nil {
		return fallback
	}
	if gerr.Message == "" || gerr.Message == http.StatusText(*gerr.Status) {
		return fallback
	}
	return gerr.Message
}
