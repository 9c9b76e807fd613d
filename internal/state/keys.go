package state

// Key names a persisted client value.
type Key string

const (
	KeyCartNo       Key = "cart_no"
	KeyUserID       Key = "user_id"
	KeyUserProfile  Key = "user_profile"
	KeyRiderID      Key = "dboy_id"
	KeyRiderProfile Key = "dboy_profile"
	KeyRiderOnline  Key = "dboy_online"
	KeyStoreUserID  Key = "store_user_id"
	KeyStoreProfile Key = "store_profile"
	KeyStoreID      Key = "store_id"
	KeyLangID       Key = "lang_id"
	KeyLangText     Key = "lang_text"
	KeySettings     Key = "settings"
	KeyCityID       Key = "city_id"
	KeyLat          Key = "lat"
	KeyLng          Key = "lng"
	KeyAddress      Key = "address"
	KeyCheckoutData Key = "checkout_data"
	KeyOrderConfirm Key = "order_confirm"
)

// NullLiteral is forwarded on the wire in place of absent ambient values.
const NullLiteral = "null"

func (k Key) String() string {
	return string(k)
}
