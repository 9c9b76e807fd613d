package session

import (
	"context"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

// Keys describes the persisted key space owned by one role.
type Keys struct {
	Role    string
	ID      state.Key
	Profile state.Key
	// Extra keys removed on logout besides ID and Profile.
	Wipe []state.Key
}

func (k Keys) wiped() []state.Key {
	out := make([]state.Key, 0, len(k.Wipe)+2)
	out = append(out, k.ID, k.Profile)
	return append(out, k.Wipe...)
}

var (
	CustomerKeys = Keys{
		Role:    "customer",
		ID:      state.KeyUserID,
		Profile: state.KeyUserProfile,
		Wipe: []state.Key{
			state.KeyCartNo,
			state.KeyCheckoutData,
			state.KeyOrderConfirm,
			state.KeyLangText,
			state.KeySettings,
			state.KeyAddress,
			state.KeyStoreID,
		},
	}
	// Locale text and coordinates are process-wide and survive a rider logout.
	RiderKeys = Keys{
		Role:    "rider",
		ID:      state.KeyRiderID,
		Profile: state.KeyRiderProfile,
		Wipe:    []state.Key{state.KeyRiderOnline},
	}
	StoreKeys = Keys{
		Role:    "store",
		ID:      state.KeyStoreUserID,
		Profile: state.KeyStoreProfile,
	}
)

type (
	CustomerSession = Manager[gateway.CustomerProfile]
	RiderSession    = Manager[gateway.RiderProfile]
	StoreSession    = Manager[gateway.StoreProfile]
)

// CartClearer rotates the cart handle on customer logout.
type CartClearer interface {
	Clear(ctx context.Context)
}

func NewCustomerSession(auth Authenticator[gateway.CustomerProfile], store *state.Store, c CartClearer, logg *logger.Logger) (*CustomerSession, error) {
	p := Params[gateway.CustomerProfile]{Auth: auth, Store: store, Keys: CustomerKeys, Logger: logg}
	if c != nil {
		p.OnLogout = append(p.OnLogout, c.Clear)
	}
	return NewManager(p)
}

// NewRiderSession takes the presence tracker down before the rider keys
// are wiped so the offline push still carries the rider id.
func NewRiderSession(auth Authenticator[gateway.RiderProfile], store *state.Store, presence *RiderPresence, logg *logger.Logger) (*RiderSession, error) {
	p := Params[gateway.RiderProfile]{Auth: auth, Store: store, Keys: RiderKeys, Logger: logg}
	if presence != nil {
		p.OnLogout = append(p.OnLogout, func(ctx context.Context) {
			if presence.Online() {
				presence.SetOnline(ctx, false)
			}
			presence.Close()
		})
	}
	return NewManager(p)
}

func NewStoreSession(auth Authenticator[gateway.StoreProfile], store *state.Store, logg *logger.Logger) (*StoreSession, error) {
	return NewManager(Params[gateway.StoreProfile]{Auth: auth, Store: store, Keys: StoreKeys, Logger: logg})
}
