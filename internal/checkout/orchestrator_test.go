package checkout

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeGateway struct {
	mu       sync.Mutex
	info     *gateway.UserInfoResponse
	wallet   *gateway.WalletResponse
	addrs    []gateway.Address
	placeErr error
	placeRes *gateway.PlaceOrderResponse
	placed   []gateway.OrderRequest
	proofs   []*gateway.Attachment
}

func (f *fakeGateway) UserInfo(context.Context, string) (*gateway.UserInfoResponse, error) {
	if f.info == nil {
		return &gateway.UserInfoResponse{Envelope: gateway.Envelope{Msg: gateway.MsgDone}}, nil
	}
	return f.info, nil
}

func (f *fakeGateway) Addresses(context.Context, string) ([]gateway.Address, error) {
	return f.addrs, nil
}

func (f *fakeGateway) Wallet(context.Context, string) (*gateway.WalletResponse, error) {
	return f.wallet, nil
}

func (f *fakeGateway) PlaceOrder(_ context.Context, req gateway.OrderRequest, proof *gateway.Attachment) (*gateway.PlaceOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	f.proofs = append(f.proofs, proof)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	if f.placeRes != nil {
		return f.placeRes, nil
	}
	return &gateway.PlaceOrderResponse{Envelope: gateway.Envelope{Msg: gateway.MsgDone}, OrderID: "981"}, nil
}

type fakeCart struct {
	mu      sync.Mutex
	seen    []state.Ambient
	summary *gateway.CartSummary
	fail    bool
	block   chan struct{}
	entered chan struct{}
	cleared int
}

func (f *fakeCart) LoadWith(_ context.Context, amb state.Ambient) (*gateway.CartSummary, cart.Result) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, amb)
	if f.fail {
		return nil, cart.Result{Message: "Could not load your cart, please try again"}
	}
	return f.summary, cart.Result{Success: true}
}

func (f *fakeCart) Clear(context.Context) {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
}

type fixture struct {
	session *state.Session
	gw      *fakeGateway
	cart    *fakeCart
	orch    *Orchestrator
}

func newFixture(t *testing.T, summary gateway.CartSummary) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := state.NewStore(state.NewMemoryBackend(), nil)
	require.NoError(t, err)
	session, err := state.NewSession(store)
	require.NoError(t, err)

	store.Set(ctx, state.KeyUserID, "4")
	store.Set(ctx, state.KeyCartNo, "482913574829135")
	require.NoError(t, store.SetJSON(ctx, state.KeyCheckoutData, cart.Staged{
		Lines:   []gateway.CartLine{{ID: "1", Name: "Biryani", Qty: 1, Price: summary.ItemTotal}},
		Summary: summary,
	}))

	f := &fixture{session: session, gw: &fakeGateway{}, cart: &fakeCart{}}
	f.orch, err = New(Params{
		Gateway: f.gw,
		Cart:    f.cart,
		Session: session,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return f
}

func amount(v int64) gateway.Amount { return gateway.AmountFromInt(v) }

func TestECashOffsetsPayable(t *testing.T) {
	cases := []struct {
		wallet        int64
		payable       int64
		walletDisplay int64
	}{
		{wallet: 700, payable: 0, walletDisplay: 200},
		{wallet: 300, payable: 200, walletDisplay: 0},
	}
	for _, tc := range cases {
		f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), StoreID: "8"})
		f.gw.wallet = &gateway.WalletResponse{Envelope: gateway.Envelope{Msg: gateway.MsgDone}, Balance: amount(tc.wallet)}
		require.True(t, f.orch.Prepare(context.Background()).Success)

		on := f.orch.SetECash(true)
		assert.True(t, on.Payable.Equal(decimal.NewFromInt(tc.payable)), "payable %s", on.Payable)
		assert.True(t, on.WalletDisplay.Equal(decimal.NewFromInt(tc.walletDisplay)), "wallet %s", on.WalletDisplay)

		off := f.orch.SetECash(false)
		assert.True(t, off.Payable.Equal(decimal.NewFromInt(500)))
		assert.True(t, off.WalletDisplay.Equal(decimal.NewFromInt(tc.wallet)))
		assert.True(t, off.ECash.IsZero())
	}
}

func TestPrepareAdoptsStoreTaxRate(t *testing.T) {
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(455), DeliveryCharge: amount(50), TaxValue: amount(9)})
	f.gw.info = &gateway.UserInfoResponse{
		Envelope: gateway.Envelope{Msg: gateway.MsgDone},
		User:     &gateway.CustomerProfile{ID: "4", Wallet: amount(10)},
		Store:    &gateway.StoreRef{ID: "8", Tax: amount(5), TaxName: "GST"},
	}
	require.True(t, f.orch.Prepare(context.Background()).Success)

	q := f.orch.Quote()
	assert.Equal(t, "23", q.Tax.String())
	assert.Equal(t, "GST", q.TaxName)
	assert.Equal(t, "528", q.Total().String())
	assert.Equal(t, "10", f.orch.Totals().WalletDisplay.String())
}

func TestPrepareWithoutStagedCart(t *testing.T) {
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100)})
	f.session.Store().Remove(context.Background(), state.KeyCheckoutData)

	res := f.orch.Prepare(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, msgEmpty, res.Message)
}

func TestPaymentGatesBlockSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100), StoreID: "8"})
	require.True(t, f.orch.Prepare(ctx).Success)
	f.orch.SetFulfilment(FulfilmentPickup)

	require.NoError(t, f.orch.SetPaymentMethod(PaymentCard))
	f.orch.SetCard(Card{Number: "4242 4242 4242 4242", ExpMonth: "12"})
	ok, msg := f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedCard, msg)
	assert.False(t, f.orch.Submit(ctx).Success)

	f.orch.SetCard(Card{Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "2030", CVV: "123"})
	ok, _ = f.orch.CanSubmit()
	assert.True(t, ok)

	require.NoError(t, f.orch.SetPaymentMethod(PaymentQR))
	ok, msg = f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedProof, msg)

	require.Error(t, f.orch.AttachProof("notes.txt", []byte("just some text")))
	require.NoError(t, f.orch.AttachProof("proof.png", pngBytes))
	ok, _ = f.orch.CanSubmit()
	assert.True(t, ok)

	assert.Empty(t, f.gw.placed)
}

func TestDeliveryRequiresAddressAndScheduleRequiresTime(t *testing.T) {
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100), StoreID: "8"})
	require.True(t, f.orch.Prepare(context.Background()).Success)

	ok, msg := f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedAddress, msg)

	f.orch.SetFulfilment(FulfilmentPickup)
	f.orch.SetTiming(TimingSchedule, "")
	ok, msg = f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedSchedule, msg)
}

func TestSubmitRefusesUnresolvedStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100), StoreID: "0"})
	require.True(t, f.orch.Prepare(ctx).Success)
	f.orch.SetFulfilment(FulfilmentPickup)

	res := f.orch.Submit(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, msgNoStore, res.Message)
	assert.Empty(t, f.gw.placed)
}

func TestSubmitFallsBackToPersistedStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100)})
	f.session.Store().Set(ctx, state.KeyStoreID, "12")
	require.True(t, f.orch.Prepare(ctx).Success)
	f.orch.SetFulfilment(FulfilmentPickup)

	res := f.orch.Submit(ctx)
	require.True(t, res.Success, res.Message)
	require.Len(t, f.gw.placed, 1)
	assert.Equal(t, "12", f.gw.placed[0].StoreID)
}

func TestResolveStoreIDOrder(t *testing.T) {
	assert.Equal(t, "5", resolveStoreID("", "5", "6", "7"))
	assert.Equal(t, "6", resolveStoreID("", "0", "6"))
	assert.Equal(t, StoreSentinel, resolveStoreID("", "null", " "))
}

func TestSelectAddressSwapsAndRestoresCoordinates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(40), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "77", Address: "House 5, Model Town", Lat: 31.48, Lng: 74.32}}
	f.cart.summary = &gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(90), StoreID: "8"}
	f.session.SetCoordinates(ctx, 31.52, 74.35)
	require.True(t, f.orch.Prepare(ctx).Success)

	res := f.orch.SelectAddress(ctx, "77")
	require.True(t, res.Success, res.Message)

	require.Len(t, f.cart.seen, 1)
	assert.Equal(t, "31.48", f.cart.seen[0].Lat)
	assert.Equal(t, "74.32", f.cart.seen[0].Lng)

	amb := f.session.Snapshot(ctx)
	assert.Equal(t, "31.52", amb.Lat)
	assert.Equal(t, "74.35", amb.Lng)
	assert.Equal(t, "90", f.orch.Quote().Delivery.String())
	assert.Equal(t, "590", f.orch.Totals().Total.String())
}

func TestSelectAddressIsGuardedByBusyFlag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "1", Lat: 1, Lng: 2}, {ID: "2", Lat: 3, Lng: 4}}
	f.cart.summary = &gateway.CartSummary{ItemTotal: amount(500)}
	f.cart.block = make(chan struct{})
	f.cart.entered = make(chan struct{}, 1)
	require.True(t, f.orch.Prepare(ctx).Success)

	done := make(chan Result, 1)
	go func() { done <- f.orch.SelectAddress(ctx, "1") }()
	<-f.cart.entered

	assert.True(t, f.orch.Busy())
	second := f.orch.SelectAddress(ctx, "2")
	assert.False(t, second.Success)
	assert.Equal(t, msgBusy, second.Message)
	ok, _ := f.orch.CanSubmit()
	assert.False(t, ok)

	close(f.cart.block)
	assert.True(t, (<-done).Success)
	assert.False(t, f.orch.Busy())
}

func TestSelectAddressFailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "1", Lat: 1, Lng: 2}}
	f.cart.fail = true
	require.True(t, f.orch.Prepare(ctx).Success)

	res := f.orch.SelectAddress(ctx, "1")
	assert.False(t, res.Success)
	ok, msg := f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedAddress, msg)

	f.orch.SetFulfilment(FulfilmentPickup)
	res = f.orch.SelectAddress(ctx, "1")
	assert.Equal(t, msgPickupOnly, res.Message)
}

func TestSubmitSuccessStagesConfirmationAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "77", Lat: 31.48, Lng: 74.32}}
	f.gw.wallet = &gateway.WalletResponse{Envelope: gateway.Envelope{Msg: gateway.MsgDone}, Balance: amount(120)}
	f.cart.summary = &gateway.CartSummary{ItemTotal: amount(500), StoreID: "8"}
	require.True(t, f.orch.Prepare(ctx).Success)
	require.True(t, f.orch.SelectAddress(ctx, "77").Success)
	f.orch.SetECash(true)
	f.orch.SetComment("  ring the bell ")

	res := f.orch.Submit(ctx)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "981", res.OrderID)

	require.Len(t, f.gw.placed, 1)
	req := f.gw.placed[0]
	assert.Equal(t, "482913574829135", req.CartNo)
	assert.Equal(t, "77", req.AddressID)
	assert.Equal(t, 0, req.Pickup)
	assert.Equal(t, "120", req.ECash.String())
	assert.Equal(t, "ring the bell", req.Comment)
	assert.Equal(t, "now", req.Timing)
	assert.Nil(t, f.gw.proofs[0])

	var confirm Confirmation
	require.True(t, f.session.Store().GetJSON(ctx, state.KeyOrderConfirm, &confirm))
	assert.Equal(t, "981", confirm.OrderID)
	assert.Equal(t, "380", confirm.Payable.String())
	_, staged := f.session.Store().Get(ctx, state.KeyCheckoutData)
	assert.False(t, staged)
	assert.Equal(t, 1, f.cart.cleared)
}

func TestSubmitQRSendsProofAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100), StoreID: "8"})
	require.True(t, f.orch.Prepare(ctx).Success)
	f.orch.SetFulfilment(FulfilmentPickup)
	require.NoError(t, f.orch.SetPaymentMethod(PaymentQR))
	require.NoError(t, f.orch.AttachProof("", pngBytes))

	res := f.orch.Submit(ctx)
	require.True(t, res.Success, res.Message)
	require.NotNil(t, f.gw.proofs[0])
	assert.Equal(t, "image/png", f.gw.proofs[0].ContentType)
	assert.Equal(t, "proof.png", f.gw.proofs[0].Filename)
	assert.Equal(t, 1, f.gw.placed[0].Pickup)
}

func TestSubmitSurfacesServerMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(100), StoreID: "8"})
	require.True(t, f.orch.Prepare(ctx).Success)
	f.orch.SetFulfilment(FulfilmentPickup)

	f.gw.placeRes = &gateway.PlaceOrderResponse{Envelope: gateway.Envelope{Msg: "Store is closed right now"}}
	res := f.orch.Submit(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, "Store is closed right now", res.Message)

	status := http.StatusBadRequest
	f.gw.placeRes = nil
	f.gw.placeErr = &gateway.Error{Status: &status, Message: "Minimum order is 200"}
	res = f.orch.Submit(ctx)
	assert.Equal(t, "Minimum order is 200", res.Message)

	f.gw.placeErr = errors.New("dial tcp: connection refused")
	res = f.orch.Submit(ctx)
	assert.Equal(t, msgSubmitFailed, res.Message)
	assert.Zero(t, f.cart.cleared)
}

func TestPrepareDropsAddressPricedSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(40), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "77", Lat: 31.48, Lng: 74.32}}
	f.cart.summary = &gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(90), StoreID: "8"}
	require.True(t, f.orch.Prepare(ctx).Success)
	require.True(t, f.orch.SelectAddress(ctx, "77").Success)
	assert.Equal(t, "590", f.orch.Totals().Total.String())

	require.True(t, f.orch.Prepare(ctx).Success)
	assert.Equal(t, "540", f.orch.Totals().Total.String())
	ok, msg := f.orch.CanSubmit()
	assert.False(t, ok)
	assert.Equal(t, msgNeedAddress, msg)

	require.True(t, f.orch.SelectAddress(ctx, "77").Success)
	assert.Equal(t, "590", f.orch.Totals().Total.String())
	ok, _ = f.orch.CanSubmit()
	assert.True(t, ok)
}

type cartBackend struct{}

func cartProjection() *gateway.CartResponse {
	resp := &gateway.CartResponse{Envelope: gateway.Envelope{Msg: gateway.MsgDone}, Count: gateway.Int(1)}
	resp.Data.Items = []gateway.CartLine{{ID: "1", Name: "Biryani", Qty: 1, Price: amount(500)}}
	resp.Data.Summary = &gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(90), StoreID: "8"}
	return resp
}

func (cartBackend) AddToCart(context.Context, state.Ambient, gateway.AddToCartRequest) (*gateway.CartResponse, error) {
	return cartProjection(), nil
}

func (cartBackend) GetCart(context.Context, state.Ambient) (*gateway.CartResponse, error) {
	return cartProjection(), nil
}

func (cartBackend) UpdateCart(context.Context, state.Ambient, string, gateway.UpdateDirection) (*gateway.CartResponse, error) {
	return cartProjection(), nil
}

func (cartBackend) CartCount(context.Context, state.Ambient) (int, error) {
	return 1, nil
}

func TestSelectAddressWhileCartAddInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.CartSummary{ItemTotal: amount(500), DeliveryCharge: amount(40), StoreID: "8"})
	f.gw.addrs = []gateway.Address{{ID: "77", Lat: 31.48, Lng: 74.32}}

	engine, err := cart.NewEngine(cart.Params{Gateway: cartBackend{}, Session: f.session})
	require.NoError(t, err)
	orch, err := New(Params{Gateway: f.gw, Cart: engine, Session: f.session})
	require.NoError(t, err)
	require.True(t, orch.Prepare(ctx).Success)

	// The first loading notification fires once Add holds the engine's call
	// lock. The address swap starts there and grabs the session lock.
	selected := make(chan Result, 1)
	var once sync.Once
	unsubscribe := engine.Subscribe(func(v cart.View) {
		if !v.IsLoading {
			return
		}
		once.Do(func() {
			go func() { selected <- orch.SelectAddress(ctx, "77") }()
			time.Sleep(50 * time.Millisecond)
		})
	})
	defer unsubscribe()

	added := make(chan cart.Result, 1)
	go func() { added <- engine.Add(ctx, gateway.AddToCartRequest{ItemID: "1", Price: "500", Qty: 1}) }()

	timeout := time.After(5 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case res := <-added:
			assert.True(t, res.Success, res.Message)
		case res := <-selected:
			assert.True(t, res.Success, res.Message)
		case <-timeout:
			t.Fatal("cart add and address selection did not both finish")
		}
	}
	assert.Equal(t, "590", orch.Totals().Total.String())
}
